package batch

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates the batch lifecycle.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
)

// validTransitions is the single source of truth for batch status changes.
var validTransitions = map[Status][]Status{
	StatusDraft:     {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCancelled},
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

// Batch is a received lot of one product at one warehouse, the unit of
// cost tracking. Invariants held after every mutation while DRAFT:
//
//	totalCost   = totalPurchaseCost + totalLandedCost
//	costPerUnit = totalCost / quantity
//
// Once CONFIRMED the cost fields are locked.
type Batch struct {
	ID                int64            `json:"id"`
	Number            string           `json:"number"`
	ProductID         int64            `json:"product_id"`
	WarehouseID       int64            `json:"warehouse_id"`
	SupplierID        *int64           `json:"supplier_id,omitempty"`
	PurchaseOrderID   *int64           `json:"purchase_order_id,omitempty"`
	Quantity          decimal.Decimal  `json:"quantity"`
	UnitPurchaseCost  decimal.Decimal  `json:"unit_purchase_cost"`
	TotalPurchaseCost decimal.Decimal  `json:"total_purchase_cost"`
	TotalLandedCost   decimal.Decimal  `json:"total_landed_cost"`
	TotalCost         decimal.Decimal  `json:"total_cost"`
	CostPerUnit       decimal.Decimal  `json:"cost_per_unit"`
	Currency          string           `json:"currency"`
	ReceivedDate      time.Time        `json:"received_date"`
	Status            Status           `json:"status"`
	ConfirmedBy       *int64           `json:"confirmed_by,omitempty"`
	ConfirmedAt       *time.Time       `json:"confirmed_at,omitempty"`
	CreatedBy         int64            `json:"created_by"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
	CostItems         []LandedCostItem `json:"cost_items,omitempty"`
}

// LandedCostItem is one landed cost component (freight, duty, ...) attached
// to a DRAFT batch, carried in its own currency and converted to the batch's.
type LandedCostItem struct {
	ID                    int64           `json:"id"`
	BatchID               int64           `json:"batch_id"`
	CostTypeID            int64           `json:"cost_type_id"`
	Description           *string         `json:"description,omitempty"`
	Amount                decimal.Decimal `json:"amount"`
	Currency              string          `json:"currency"`
	ExchangeRate          decimal.Decimal `json:"exchange_rate"`
	AmountInBatchCurrency decimal.Decimal `json:"amount_in_batch_currency"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}
