package products

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a sellable item tracked in inventory.
type Product struct {
	ID           int64           `json:"id"`
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	Description  *string         `json:"description,omitempty"`
	Unit         string          `json:"unit"`
	DefaultPrice decimal.Decimal `json:"default_price"`
	DefaultCost  decimal.Decimal `json:"default_cost"`
	IsActive     bool            `json:"is_active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
