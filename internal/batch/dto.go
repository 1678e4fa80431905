package batch

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateBatchRequest describes a manually received lot.
type CreateBatchRequest struct {
	ProductID        int64           `json:"product_id" validate:"required,gt=0"`
	WarehouseID      int64           `json:"warehouse_id" validate:"required,gt=0"`
	SupplierID       *int64          `json:"supplier_id,omitempty"`
	Quantity         decimal.Decimal `json:"quantity" validate:"required"`
	UnitPurchaseCost decimal.Decimal `json:"unit_purchase_cost" validate:"required"`
	Currency         string          `json:"currency" validate:"required,len=3"`
	ReceivedDate     time.Time       `json:"received_date" validate:"required"`
}

// CostItemForm is the add/update payload for a landed cost item.
type CostItemForm struct {
	CostTypeID   int64           `json:"cost_type_id" validate:"required,gt=0"`
	Description  *string         `json:"description,omitempty"`
	Amount       decimal.Decimal `json:"amount" validate:"required"`
	Currency     string          `json:"currency" validate:"required,len=3"`
	ExchangeRate decimal.Decimal `json:"exchange_rate" validate:"required"`
}

// ListBatchesRequest filters batch listings.
type ListBatchesRequest struct {
	ProductID   *int64  `json:"product_id,omitempty"`
	WarehouseID *int64  `json:"warehouse_id,omitempty"`
	Status      *Status `json:"status,omitempty"`
	Limit       int     `json:"limit" validate:"gte=0,lte=1000"`
	Offset      int     `json:"offset" validate:"gte=0"`
}
