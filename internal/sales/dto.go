package sales

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/C-W-Wong/omni-erp-sub000/internal/inventory"
)

// ItemForm is one requested order line.
type ItemForm struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Quantity  decimal.Decimal `json:"quantity" validate:"required"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"required"`
}

// OrderForm creates or replaces a sales order.
type OrderForm struct {
	CustomerID       int64            `json:"customer_id" validate:"required,gt=0"`
	WarehouseID      *int64           `json:"warehouse_id,omitempty"`
	AllocationMethod inventory.Method `json:"allocation_method,omitempty"`
	Currency         string           `json:"currency" validate:"required,len=3"`
	Notes            *string          `json:"notes,omitempty"`
	Items            []ItemForm       `json:"items" validate:"required,min=1,dive"`
}

// ShipLine is one shipped quantity against an order line.
type ShipLine struct {
	ItemID   int64           `json:"item_id" validate:"required,gt=0"`
	Quantity decimal.Decimal `json:"quantity" validate:"required"`
}

// ShipRequest books a full or partial shipment.
type ShipRequest struct {
	ShippedDate time.Time  `json:"shipped_date" validate:"required"`
	Lines       []ShipLine `json:"lines" validate:"required,min=1,dive"`
}

// ListOrdersRequest filters sales order listings.
type ListOrdersRequest struct {
	CustomerID *int64  `json:"customer_id,omitempty"`
	Status     *Status `json:"status,omitempty"`
	Limit      int     `json:"limit"`
	Offset     int     `json:"offset"`
}
