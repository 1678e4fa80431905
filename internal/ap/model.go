package ap

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/C-W-Wong/omni-erp-sub000/internal/shared"
)

// Status is the lifecycle of a payable open item.
type Status string

const (
	StatusOpen    Status = "OPEN"
	StatusPartial Status = "PARTIAL"
	StatusPaid    Status = "PAID"
)

// OpenItem is one outstanding payable created by a goods receipt.
type OpenItem struct {
	ID         int64           `json:"id"`
	Number     string          `json:"number"`
	SupplierID int64           `json:"supplier_id"`
	OrderID    int64           `json:"order_id"`
	Total      decimal.Decimal `json:"total"`
	PaidAmount decimal.Decimal `json:"paid_amount"`
	Balance    decimal.Decimal `json:"balance"`
	DueDate    time.Time       `json:"due_date"`
	Status     Status          `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Payment is one disbursement applied against an open item.
type Payment struct {
	ID         int64           `json:"id"`
	Number     string          `json:"number"`
	OpenItemID int64           `json:"open_item_id"`
	Amount     decimal.Decimal `json:"amount"`
	PaidAt     time.Time       `json:"paid_at"`
	Method     string          `json:"method"`
	Reference  *string         `json:"reference,omitempty"`
	CreatedBy  int64           `json:"created_by"`
	CreatedAt  time.Time       `json:"created_at"`
}

// AgingRow is one supplier's outstanding balance bucketed by days
// past due.
type AgingRow struct {
	SupplierID   int64               `json:"supplier_id"`
	SupplierName string              `json:"supplier_name"`
	Buckets      shared.AgingBuckets `json:"buckets"`
	Total        decimal.Decimal     `json:"total"`
}

// AgingReport is the full payables aging as of one date.
type AgingReport struct {
	AsOf   time.Time           `json:"as_of"`
	Rows   []AgingRow          `json:"rows"`
	Totals shared.AgingBuckets `json:"totals"`
}
