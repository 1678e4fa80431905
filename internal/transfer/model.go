package transfer

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates the transfer lifecycle.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPending   Status = "PENDING"
	StatusInTransit Status = "IN_TRANSIT"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

var validTransitions = map[Status][]Status{
	StatusDraft:     {StatusPending, StatusCancelled},
	StatusPending:   {StatusInTransit, StatusCancelled},
	StatusInTransit: {StatusCompleted, StatusCancelled},
	StatusCompleted: {},
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

// Transfer moves batch stock between two warehouses. Stock is reserved
// at the source when the transfer goes IN_TRANSIT and lands at the
// target only on completion.
type Transfer struct {
	ID                int64      `json:"id"`
	Number            string     `json:"number"`
	SourceWarehouseID int64      `json:"source_warehouse_id"`
	TargetWarehouseID int64      `json:"target_warehouse_id"`
	Status            Status     `json:"status"`
	Notes             *string    `json:"notes,omitempty"`
	CreatedBy         int64      `json:"created_by"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	Items             []Item     `json:"items,omitempty"`
}

// Item is one batch quantity carried by a transfer.
type Item struct {
	ID         int64           `json:"id"`
	TransferID int64           `json:"transfer_id"`
	ProductID  int64           `json:"product_id"`
	BatchID    int64           `json:"batch_id"`
	Quantity   decimal.Decimal `json:"quantity"`
}
