package accounting

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category classifies an account in the chart of accounts.
type Category string

const (
	CategoryAsset     Category = "ASSET"
	CategoryLiability Category = "LIABILITY"
	CategoryEquity    Category = "EQUITY"
	CategoryRevenue   Category = "REVENUE"
	CategoryExpense   Category = "EXPENSE"
)

// ValidCategory reports whether c is a known account category.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryAsset, CategoryLiability, CategoryEquity, CategoryRevenue, CategoryExpense:
		return true
	}
	return false
}

// NormalBalance is the side on which an account naturally increases.
type NormalBalance string

const (
	NormalDebit  NormalBalance = "DEBIT"
	NormalCredit NormalBalance = "CREDIT"
)

// Account is one row of the chart of accounts. System accounts are
// wired to the posting builders, their code and name cannot change.
type Account struct {
	ID            int64         `json:"id"`
	Code          string        `json:"code"`
	Name          string        `json:"name"`
	Category      Category      `json:"category"`
	NormalBalance NormalBalance `json:"normal_balance"`
	IsSystem      bool          `json:"is_system"`
	IsActive      bool          `json:"is_active"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// System account codes used by the automatic posting builders.
const (
	AccountCodeInventory = "1200"
	AccountCodeAR        = "1100"
	AccountCodeBank      = "1000"
	AccountCodeAP        = "2100"
	AccountCodeRevenue   = "4000"
	AccountCodeCOGS      = "5000"
)

// EntryStatus enumerates the journal entry lifecycle.
type EntryStatus string

const (
	EntryDraft  EntryStatus = "DRAFT"
	EntryPosted EntryStatus = "POSTED"
	EntryVoided EntryStatus = "VOIDED"
)

// JournalEntry is a double-entry document. Only POSTED entries count
// toward balances.
type JournalEntry struct {
	ID           int64       `json:"id"`
	Number       string      `json:"number"`
	EntryDate    time.Time   `json:"entry_date"`
	Memo         *string     `json:"memo,omitempty"`
	SourceModule *string     `json:"source_module,omitempty"`
	SourceID     *int64      `json:"source_id,omitempty"`
	Status       EntryStatus `json:"status"`
	CreatedBy    int64       `json:"created_by"`
	PostedBy     *int64      `json:"posted_by,omitempty"`
	PostedAt     *time.Time  `json:"posted_at,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	Lines        []Line      `json:"lines,omitempty"`
}

// Line is one debit or credit leg of a journal entry.
type Line struct {
	ID        int64           `json:"id"`
	EntryID   int64           `json:"entry_id"`
	AccountID int64           `json:"account_id"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	Memo      *string         `json:"memo,omitempty"`
}

// TrialBalanceRow is one account's posted totals.
type TrialBalanceRow struct {
	AccountID   int64           `json:"account_id"`
	AccountCode string          `json:"account_code"`
	AccountName string          `json:"account_name"`
	Category    Category        `json:"category"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
}

// TrialBalance is the full report over posted entries.
type TrialBalance struct {
	Rows        []TrialBalanceRow `json:"rows"`
	TotalDebit  decimal.Decimal   `json:"total_debit"`
	TotalCredit decimal.Decimal   `json:"total_credit"`
}
