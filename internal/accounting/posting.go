package accounting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/C-W-Wong/omni-erp-sub000/internal/platform/httpx"
	"github.com/C-W-Wong/omni-erp-sub000/internal/shared"
)

// DBTX is the slice of a pgx connection or transaction the posting
// helper needs. Workflow repositories pass their own transaction so the
// journal entry commits or rolls back with the document that caused it.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// LineInput is one leg of an automatic posting, addressed by account code.
type LineInput struct {
	AccountCode string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Memo        *string
}

// EntryInput describes an automatic journal entry to post.
type EntryInput struct {
	EntryDate    time.Time
	Memo         *string
	SourceModule string
	SourceID     int64
	CreatedBy    int64
	Lines        []LineInput
}

// ValidateBalanced checks every line and the debit/credit totals.
// The totals may differ by at most the rounding tolerance.
func ValidateBalanced(lines []LineInput) error {
	if len(lines) < 2 {
		return fmt.Errorf("%w: journal entry needs at least two lines", httpx.ErrValidation)
	}
	totalDebit := decimal.Zero
	totalCredit := decimal.Zero
	for _, l := range lines {
		if l.Debit.IsNegative() || l.Credit.IsNegative() {
			return fmt.Errorf("%w: debit and credit must not be negative", httpx.ErrValidation)
		}
		if l.Debit.IsPositive() == l.Credit.IsPositive() {
			return fmt.Errorf("%w: each line carries exactly one of debit or credit", httpx.ErrValidation)
		}
		totalDebit = totalDebit.Add(l.Debit)
		totalCredit = totalCredit.Add(l.Credit)
	}
	if totalDebit.Sub(totalCredit).Abs().GreaterThan(shared.BalanceTolerance) {
		return fmt.Errorf("%w: entry is unbalanced, debit %s vs credit %s", httpx.ErrValidation, totalDebit, totalCredit)
	}
	return nil
}

// PostInTx validates, numbers, and inserts a POSTED journal entry using
// the caller's transaction. Account codes are resolved to ids here.
func PostInTx(ctx context.Context, q DBTX, in EntryInput, at time.Time) (int64, error) {
	if err := ValidateBalanced(in.Lines); err != nil {
		return 0, err
	}
	number, err := shared.NextDocNumber(ctx, q, "JE", in.EntryDate)
	if err != nil {
		return 0, err
	}

	const insertEntry = `
		INSERT INTO journal_entries (number, entry_date, memo, source_module, source_id, status, created_by, posted_by, posted_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'POSTED', $6, $6, $7, NOW(), NOW())
		RETURNING id`
	var entryID int64
	if err := q.QueryRow(ctx, insertEntry, number, in.EntryDate, in.Memo, in.SourceModule, in.SourceID, in.CreatedBy, at).Scan(&entryID); err != nil {
		return 0, err
	}

	for _, l := range in.Lines {
		var accountID int64
		err := q.QueryRow(ctx, `SELECT id FROM accounts WHERE code = $1`, l.AccountCode).Scan(&accountID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return 0, fmt.Errorf("%w: account code %s is not configured", httpx.ErrPrecondition, l.AccountCode)
			}
			return 0, err
		}
		_, err = q.Exec(ctx, `INSERT INTO journal_lines (entry_id, account_id, debit, credit, memo) VALUES ($1, $2, $3, $4, $5)`,
			entryID, accountID, l.Debit, l.Credit, l.Memo)
		if err != nil {
			return 0, err
		}
	}
	return entryID, nil
}

// BuildSalesEntry books a shipment: AR debit / Revenue credit for the
// sold value, plus COGS debit / Inventory credit when the shipped cost
// is positive.
func BuildSalesEntry(orderID int64, orderNumber string, revenue, cost decimal.Decimal, date time.Time, userID int64) EntryInput {
	memo := fmt.Sprintf("Sales shipment %s", orderNumber)
	in := EntryInput{
		EntryDate:    date,
		Memo:         &memo,
		SourceModule: "sales",
		SourceID:     orderID,
		CreatedBy:    userID,
		Lines: []LineInput{
			{AccountCode: AccountCodeAR, Debit: revenue},
			{AccountCode: AccountCodeRevenue, Credit: revenue},
		},
	}
	if cost.IsPositive() {
		in.Lines = append(in.Lines,
			LineInput{AccountCode: AccountCodeCOGS, Debit: cost},
			LineInput{AccountCode: AccountCodeInventory, Credit: cost},
		)
	}
	return in
}

// BuildPurchaseEntry books a goods receipt: Inventory debit / AP credit.
func BuildPurchaseEntry(orderID int64, orderNumber string, amount decimal.Decimal, date time.Time, userID int64) EntryInput {
	memo := fmt.Sprintf("Goods receipt %s", orderNumber)
	return EntryInput{
		EntryDate:    date,
		Memo:         &memo,
		SourceModule: "procurement",
		SourceID:     orderID,
		CreatedBy:    userID,
		Lines: []LineInput{
			{AccountCode: AccountCodeInventory, Debit: amount},
			{AccountCode: AccountCodeAP, Credit: amount},
		},
	}
}

// BuildPaymentEntry books a customer receipt or supplier payment
// against the bank account. For AR the bank is debited, for AP credited.
func BuildPaymentEntry(sourceModule string, sourceID int64, docNumber string, amount decimal.Decimal, date time.Time, userID int64) EntryInput {
	memo := fmt.Sprintf("Payment on %s", docNumber)
	in := EntryInput{
		EntryDate:    date,
		Memo:         &memo,
		SourceModule: sourceModule,
		SourceID:     sourceID,
		CreatedBy:    userID,
	}
	if sourceModule == "ar" {
		in.Lines = []LineInput{
			{AccountCode: AccountCodeBank, Debit: amount},
			{AccountCode: AccountCodeAR, Credit: amount},
		}
	} else {
		in.Lines = []LineInput{
			{AccountCode: AccountCodeAP, Debit: amount},
			{AccountCode: AccountCodeBank, Credit: amount},
		}
	}
	return in
}
