package procurement

import (
	"time"

	"github.com/shopspring/decimal"
)

// ItemForm is one requested order line.
type ItemForm struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Quantity  decimal.Decimal `json:"quantity" validate:"required"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"required"`
}

// OrderForm creates or replaces a purchase order.
type OrderForm struct {
	SupplierID   int64      `json:"supplier_id" validate:"required,gt=0"`
	WarehouseID  int64      `json:"warehouse_id" validate:"required,gt=0"`
	Currency     string     `json:"currency" validate:"required,len=3"`
	ExpectedDate *time.Time `json:"expected_date,omitempty"`
	Notes        *string    `json:"notes,omitempty"`
	Items        []ItemForm `json:"items" validate:"required,min=1,dive"`
}

// ReceiveLine is one received quantity against an order line.
type ReceiveLine struct {
	ItemID   int64           `json:"item_id" validate:"required,gt=0"`
	Quantity decimal.Decimal `json:"quantity" validate:"required"`
}

// ReceiveRequest books a full or partial goods receipt.
type ReceiveRequest struct {
	ReceivedDate time.Time     `json:"received_date" validate:"required"`
	Lines        []ReceiveLine `json:"lines" validate:"required,min=1,dive"`
}

// ListOrdersRequest filters purchase order listings.
type ListOrdersRequest struct {
	SupplierID *int64  `json:"supplier_id,omitempty"`
	Status     *Status `json:"status,omitempty"`
	Limit      int     `json:"limit"`
	Offset     int     `json:"offset"`
}
