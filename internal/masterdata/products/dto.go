package products

import "github.com/shopspring/decimal"

// ProductForm is the create/update payload.
type ProductForm struct {
	SKU          string          `json:"sku" validate:"required,max=64"`
	Name         string          `json:"name" validate:"required,max=255"`
	Description  *string         `json:"description,omitempty"`
	Unit         string          `json:"unit" validate:"required,max=20"`
	DefaultPrice decimal.Decimal `json:"default_price"`
	DefaultCost  decimal.Decimal `json:"default_cost"`
	IsActive     bool            `json:"is_active"`
}
