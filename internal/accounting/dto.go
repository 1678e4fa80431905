package accounting

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountForm creates or updates a chart of accounts row.
type AccountForm struct {
	Code          string        `json:"code" validate:"required,max=16"`
	Name          string        `json:"name" validate:"required,max=120"`
	Category      Category      `json:"category" validate:"required"`
	NormalBalance NormalBalance `json:"normal_balance" validate:"required,oneof=DEBIT CREDIT"`
	IsActive      bool          `json:"is_active"`
}

// LineForm is one leg of a new journal entry.
type LineForm struct {
	AccountID int64           `json:"account_id" validate:"required,gt=0"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	Memo      *string         `json:"memo,omitempty"`
}

// CreateEntryRequest creates a DRAFT journal entry.
type CreateEntryRequest struct {
	EntryDate    time.Time  `json:"entry_date" validate:"required"`
	Memo         *string    `json:"memo,omitempty"`
	SourceModule *string    `json:"source_module,omitempty"`
	SourceID     *int64     `json:"source_id,omitempty"`
	Lines        []LineForm `json:"lines" validate:"required,min=2,dive"`
}

// ListEntriesRequest filters journal entry listings.
type ListEntriesRequest struct {
	Status       *EntryStatus `json:"status,omitempty"`
	SourceModule *string      `json:"source_module,omitempty"`
	From         *time.Time   `json:"from,omitempty"`
	To           *time.Time   `json:"to,omitempty"`
	Limit        int          `json:"limit"`
	Offset       int          `json:"offset"`
}
