package procurement

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates the purchase order lifecycle.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusConfirmed Status = "CONFIRMED"
	StatusPartial   Status = "PARTIAL"
	StatusReceived  Status = "RECEIVED"
	StatusCancelled Status = "CANCELLED"
)

var validTransitions = map[Status][]Status{
	StatusDraft:     {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusPartial, StatusReceived, StatusCancelled},
	StatusPartial:   {StatusReceived, StatusCancelled},
	StatusReceived:  {},
	StatusCancelled: {},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to Status) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PurchaseOrder is an order placed with a supplier. Receiving lines
// turns them into DRAFT batches at the target warehouse.
type PurchaseOrder struct {
	ID           int64           `json:"id"`
	Number       string          `json:"number"`
	SupplierID   int64           `json:"supplier_id"`
	WarehouseID  int64           `json:"warehouse_id"`
	Status       Status          `json:"status"`
	Currency     string          `json:"currency"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	ExpectedDate *time.Time      `json:"expected_date,omitempty"`
	Notes        *string         `json:"notes,omitempty"`
	CreatedBy    int64           `json:"created_by"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	Items        []Item          `json:"items,omitempty"`
}

// Item is one ordered product line.
type Item struct {
	ID               int64           `json:"id"`
	OrderID          int64           `json:"order_id"`
	ProductID        int64           `json:"product_id"`
	Quantity         decimal.Decimal `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	LineTotal        decimal.Decimal `json:"line_total"`
	ReceivedQuantity decimal.Decimal `json:"received_quantity"`
}

// Remaining is the quantity still expected on this line.
func (i Item) Remaining() decimal.Decimal {
	return i.Quantity.Sub(i.ReceivedQuantity)
}

// FullyReceived reports whether all items were fully received.
func (po PurchaseOrder) FullyReceived() bool {
	for _, item := range po.Items {
		if item.Remaining().IsPositive() {
			return false
		}
	}
	return true
}
