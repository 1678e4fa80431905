package sales

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/C-W-Wong/omni-erp-sub000/internal/inventory"
)

// Status enumerates the sales order lifecycle.
type Status string

const (
	StatusDraft      Status = "DRAFT"
	StatusConfirmed  Status = "CONFIRMED"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

var validTransitions = map[Status][]Status{
	StatusDraft:      {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusShipped, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusCompleted},
	StatusCompleted:  {},
	StatusCancelled:  {},
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

// SalesOrder sells stock to a customer. Confirming reserves batches
// through the allocation planner; shipping consumes the reservations.
type SalesOrder struct {
	ID               int64            `json:"id"`
	Number           string           `json:"number"`
	CustomerID       int64            `json:"customer_id"`
	WarehouseID      *int64           `json:"warehouse_id,omitempty"`
	AllocationMethod inventory.Method `json:"allocation_method"`
	Status           Status           `json:"status"`
	Currency         string           `json:"currency"`
	TotalAmount      decimal.Decimal  `json:"total_amount"`
	TotalCost        decimal.Decimal  `json:"total_cost"`
	ShippedDate      *time.Time       `json:"shipped_date,omitempty"`
	Notes            *string          `json:"notes,omitempty"`
	CreatedBy        int64            `json:"created_by"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
	Items            []Item           `json:"items,omitempty"`
}

// Item is one sold product line. UnitCost and CostAmount are filled at
// confirmation from the allocation plan.
type Item struct {
	ID              int64           `json:"id"`
	OrderID         int64           `json:"order_id"`
	ProductID       int64           `json:"product_id"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	LineTotal       decimal.Decimal `json:"line_total"`
	ShippedQuantity decimal.Decimal `json:"shipped_quantity"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
	CostAmount      decimal.Decimal `json:"cost_amount"`
	Allocations     []Allocation    `json:"allocations,omitempty"`
}

// Remaining is the quantity not yet shipped on this line.
func (i Item) Remaining() decimal.Decimal {
	return i.Quantity.Sub(i.ShippedQuantity)
}

// Allocation is one reserved batch slice backing an order item.
type Allocation struct {
	ID              int64           `json:"id"`
	ItemID          int64           `json:"item_id"`
	BatchID         int64           `json:"batch_id"`
	WarehouseID     int64           `json:"warehouse_id"`
	Quantity        decimal.Decimal `json:"quantity"`
	ShippedQuantity decimal.Decimal `json:"shipped_quantity"`
	CostPerUnit     decimal.Decimal `json:"cost_per_unit"`
}

// Remaining is the reserved quantity not yet shipped from this slice.
func (a Allocation) Remaining() decimal.Decimal {
	return a.Quantity.Sub(a.ShippedQuantity)
}

// FullyShipped reports whether every item was shipped in full.
func (so SalesOrder) FullyShipped() bool {
	for _, item := range so.Items {
		if item.Remaining().IsPositive() {
			return false
		}
	}
	return true
}
