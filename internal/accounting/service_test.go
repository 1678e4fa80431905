package accounting

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/C-W-Wong/omni-erp-sub000/internal/platform/httpx"
)

type fakeRepo struct {
	accounts    map[int64]*Account
	entries     map[int64]*JournalEntry
	nextAccID   int64
	nextEntryID int64
	nextLineID  int64
	seq         int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{accounts: map[int64]*Account{}, entries: map[int64]*JournalEntry{}}
}

func (f *fakeRepo) seedAccount(code, name string, category Category, normal NormalBalance, system bool) int64 {
	f.nextAccID++
	f.accounts[f.nextAccID] = &Account{
		ID: f.nextAccID, Code: code, Name: name, Category: category,
		NormalBalance: normal, IsSystem: system, IsActive: true,
	}
	return f.nextAccID
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, f)
}

func (f *fakeRepo) GetAccount(_ context.Context, id int64) (*Account, error) {
	a, ok := f.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%w: account %d", httpx.ErrNotFound, id)
	}
	cp := *a
	return &cp, nil
}

func (f *fakeRepo) GetAccountByCode(_ context.Context, code string) (*Account, error) {
	for _, a := range f.accounts {
		if a.Code == code {
			cp := *a
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: account code %s", httpx.ErrNotFound, code)
}

func (f *fakeRepo) ListAccounts(_ context.Context) ([]Account, error) {
	var out []Account
	for _, a := range f.accounts {
		out = append(out, *a)
	}
	return out, nil
}

func (f *fakeRepo) CreateAccount(_ context.Context, a Account) (int64, error) {
	for _, existing := range f.accounts {
		if existing.Code == a.Code {
			return 0, fmt.Errorf("%w: account code %s", httpx.ErrDuplicate, a.Code)
		}
	}
	f.nextAccID++
	a.ID = f.nextAccID
	f.accounts[a.ID] = &a
	return a.ID, nil
}

func (f *fakeRepo) UpdateAccount(_ context.Context, a Account) error {
	if _, ok := f.accounts[a.ID]; !ok {
		return fmt.Errorf("%w: account %d", httpx.ErrNotFound, a.ID)
	}
	f.accounts[a.ID] = &a
	return nil
}

func (f *fakeRepo) DeleteAccount(_ context.Context, id int64) error {
	if _, ok := f.accounts[id]; !ok {
		return fmt.Errorf("%w: account %d", httpx.ErrNotFound, id)
	}
	delete(f.accounts, id)
	return nil
}

func (f *fakeRepo) AccountHasLines(_ context.Context, id int64) (bool, error) {
	for _, e := range f.entries {
		for _, l := range e.Lines {
			if l.AccountID == id {
				return true, nil
			}
		}
	}
	return false, nil
}

func (f *fakeRepo) GetEntry(_ context.Context, id int64) (*JournalEntry, error) {
	e, ok := f.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: journal entry %d", httpx.ErrNotFound, id)
	}
	cp := *e
	cp.Lines = append([]Line(nil), e.Lines...)
	return &cp, nil
}

func (f *fakeRepo) ListEntries(_ context.Context, _ ListEntriesRequest) ([]JournalEntry, int, error) {
	var out []JournalEntry
	for _, e := range f.entries {
		out = append(out, *e)
	}
	return out, len(out), nil
}

func (f *fakeRepo) InsertEntry(_ context.Context, e JournalEntry) (int64, error) {
	f.nextEntryID++
	e.ID = f.nextEntryID
	f.entries[e.ID] = &e
	return e.ID, nil
}

func (f *fakeRepo) InsertLine(_ context.Context, l Line) error {
	e, ok := f.entries[l.EntryID]
	if !ok {
		return fmt.Errorf("%w: journal entry %d", httpx.ErrNotFound, l.EntryID)
	}
	if _, err := f.GetAccount(context.Background(), l.AccountID); err != nil {
		return fmt.Errorf("%w: account %d does not exist", httpx.ErrPrecondition, l.AccountID)
	}
	f.nextLineID++
	l.ID = f.nextLineID
	e.Lines = append(e.Lines, l)
	return nil
}

func (f *fakeRepo) UpdateEntryStatus(_ context.Context, id int64, status EntryStatus, userID int64, at time.Time) error {
	e, ok := f.entries[id]
	if !ok {
		return fmt.Errorf("%w: journal entry %d", httpx.ErrNotFound, id)
	}
	e.Status = status
	if status == EntryPosted {
		e.PostedBy = &userID
		e.PostedAt = &at
	}
	return nil
}

func (f *fakeRepo) AccountBalance(_ context.Context, accountID int64) (decimal.Decimal, decimal.Decimal, error) {
	debit := decimal.Zero
	credit := decimal.Zero
	for _, e := range f.entries {
		if e.Status != EntryPosted {
			continue
		}
		for _, l := range e.Lines {
			if l.AccountID == accountID {
				debit = debit.Add(l.Debit)
				credit = credit.Add(l.Credit)
			}
		}
	}
	return debit, credit, nil
}

func (f *fakeRepo) TrialBalance(_ context.Context) (*TrialBalance, error) {
	tb := &TrialBalance{TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}
	for id, a := range f.accounts {
		debit, credit, _ := f.AccountBalance(context.Background(), id)
		if debit.IsZero() && credit.IsZero() {
			continue
		}
		tb.Rows = append(tb.Rows, TrialBalanceRow{
			AccountID: id, AccountCode: a.Code, AccountName: a.Name, Category: a.Category,
			TotalDebit: debit, TotalCredit: credit,
		})
		tb.TotalDebit = tb.TotalDebit.Add(debit)
		tb.TotalCredit = tb.TotalCredit.Add(credit)
	}
	return tb, nil
}

func (f *fakeRepo) NextNumber(_ context.Context, date time.Time) (string, error) {
	f.seq++
	return fmt.Sprintf("JE-%s-%04d", date.Format("20060102"), f.seq), nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seededService() (*Service, *fakeRepo, int64, int64) {
	repo := newFakeRepo()
	arID := repo.seedAccount(AccountCodeAR, "Accounts Receivable", CategoryAsset, NormalDebit, true)
	revID := repo.seedAccount(AccountCodeRevenue, "Revenue", CategoryRevenue, NormalCredit, true)
	return NewService(repo, nil), repo, arID, revID
}

func entryRequest(arID, revID int64, debit, credit string) CreateEntryRequest {
	return CreateEntryRequest{
		EntryDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Lines: []LineForm{
			{AccountID: arID, Debit: dec(debit)},
			{AccountID: revID, Credit: dec(credit)},
		},
	}
}

func TestCreateEntryRequiresBalance(t *testing.T) {
	svc, _, arID, revID := seededService()

	_, err := svc.CreateEntry(context.Background(), entryRequest(arID, revID, "100.00", "99.50"), 7)
	require.ErrorIs(t, err, httpx.ErrValidation)

	// within the rounding tolerance
	e, err := svc.CreateEntry(context.Background(), entryRequest(arID, revID, "100.00", "99.99"), 7)
	require.NoError(t, err)
	require.Equal(t, EntryDraft, e.Status)
	require.Equal(t, "JE-20260310-0001", e.Number)
}

func TestCreateEntryRejectsTwoSidedLines(t *testing.T) {
	svc, _, arID, _ := seededService()

	_, err := svc.CreateEntry(context.Background(), CreateEntryRequest{
		EntryDate: time.Now(),
		Lines: []LineForm{
			{AccountID: arID, Debit: dec("50"), Credit: dec("50")},
			{AccountID: arID, Credit: dec("0")},
		},
	}, 7)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestPostAndVoidGuards(t *testing.T) {
	svc, _, arID, revID := seededService()
	e, err := svc.CreateEntry(context.Background(), entryRequest(arID, revID, "100.00", "100.00"), 7)
	require.NoError(t, err)

	_, err = svc.VoidEntry(context.Background(), e.ID, 7)
	require.ErrorIs(t, err, httpx.ErrPrecondition, "void requires POSTED")

	posted, err := svc.PostEntry(context.Background(), e.ID, 7)
	require.NoError(t, err)
	require.Equal(t, EntryPosted, posted.Status)
	require.NotNil(t, posted.PostedBy)

	_, err = svc.PostEntry(context.Background(), e.ID, 7)
	require.ErrorIs(t, err, httpx.ErrPrecondition, "double post")

	voided, err := svc.VoidEntry(context.Background(), e.ID, 7)
	require.NoError(t, err)
	require.Equal(t, EntryVoided, voided.Status)
}

func TestAccountBalanceSignAdjusts(t *testing.T) {
	svc, _, arID, revID := seededService()
	e, err := svc.CreateEntry(context.Background(), entryRequest(arID, revID, "250.00", "250.00"), 7)
	require.NoError(t, err)
	_, err = svc.PostEntry(context.Background(), e.ID, 7)
	require.NoError(t, err)

	arBalance, err := svc.AccountBalance(context.Background(), arID)
	require.NoError(t, err)
	require.True(t, arBalance.Equal(dec("250.00")), "debit-normal account")

	revBalance, err := svc.AccountBalance(context.Background(), revID)
	require.NoError(t, err)
	require.True(t, revBalance.Equal(dec("250.00")), "credit-normal account")
}

func TestVoidedEntriesLeaveBalances(t *testing.T) {
	svc, _, arID, revID := seededService()
	e, err := svc.CreateEntry(context.Background(), entryRequest(arID, revID, "80.00", "80.00"), 7)
	require.NoError(t, err)
	_, err = svc.PostEntry(context.Background(), e.ID, 7)
	require.NoError(t, err)
	_, err = svc.VoidEntry(context.Background(), e.ID, 7)
	require.NoError(t, err)

	balance, err := svc.AccountBalance(context.Background(), arID)
	require.NoError(t, err)
	require.True(t, balance.IsZero())
}

func TestSystemAccountGuards(t *testing.T) {
	svc, repo, arID, _ := seededService()

	_, err := svc.UpdateAccount(context.Background(), arID, AccountForm{
		Code: "9999", Name: "Renamed", Category: CategoryAsset, NormalBalance: NormalDebit, IsActive: true,
	})
	require.ErrorIs(t, err, httpx.ErrForbidden)

	// deactivating without renaming is allowed
	updated, err := svc.UpdateAccount(context.Background(), arID, AccountForm{
		Code: AccountCodeAR, Name: "Accounts Receivable", Category: CategoryAsset, NormalBalance: NormalDebit, IsActive: false,
	})
	require.NoError(t, err)
	require.False(t, updated.IsActive)

	err = svc.DeleteAccount(context.Background(), arID)
	require.ErrorIs(t, err, httpx.ErrForbidden)

	plainID := repo.seedAccount("6000", "Office Supplies", CategoryExpense, NormalDebit, false)
	require.NoError(t, svc.DeleteAccount(context.Background(), plainID))
}

func TestDeleteAccountBlockedWithLines(t *testing.T) {
	svc, repo, _, revID := seededService()
	expenseID := repo.seedAccount("6000", "Office Supplies", CategoryExpense, NormalDebit, false)

	_, err := svc.CreateEntry(context.Background(), CreateEntryRequest{
		EntryDate: time.Now(),
		Lines: []LineForm{
			{AccountID: expenseID, Debit: dec("10.00")},
			{AccountID: revID, Credit: dec("10.00")},
		},
	}, 7)
	require.NoError(t, err)

	err = svc.DeleteAccount(context.Background(), expenseID)
	require.ErrorIs(t, err, httpx.ErrPrecondition)
}

func TestCreateAccountNeverSystem(t *testing.T) {
	svc, _, _, _ := seededService()
	a, err := svc.CreateAccount(context.Background(), AccountForm{
		Code: "3000", Name: "Retained Earnings", Category: CategoryEquity, NormalBalance: NormalCredit, IsActive: true,
	})
	require.NoError(t, err)
	require.False(t, a.IsSystem)
}

func TestBuildSalesEntryBalances(t *testing.T) {
	in := BuildSalesEntry(5, "SO-20260310-0001", dec("500.00"), dec("320.00"), time.Now(), 7)
	require.Len(t, in.Lines, 4)
	require.NoError(t, ValidateBalanced(in.Lines))

	zeroCost := BuildSalesEntry(5, "SO-20260310-0001", dec("500.00"), decimal.Zero, time.Now(), 7)
	require.Len(t, zeroCost.Lines, 2)
	require.NoError(t, ValidateBalanced(zeroCost.Lines))
}

func TestBuildPurchaseAndPaymentEntries(t *testing.T) {
	purchase := BuildPurchaseEntry(3, "PO-20260310-0001", dec("1000.00"), time.Now(), 7)
	require.NoError(t, ValidateBalanced(purchase.Lines))
	require.Equal(t, AccountCodeInventory, purchase.Lines[0].AccountCode)
	require.Equal(t, AccountCodeAP, purchase.Lines[1].AccountCode)

	receipt := BuildPaymentEntry("ar", 9, "SO-20260310-0001", dec("400.00"), time.Now(), 7)
	require.NoError(t, ValidateBalanced(receipt.Lines))
	require.Equal(t, AccountCodeBank, receipt.Lines[0].AccountCode)

	payment := BuildPaymentEntry("ap", 9, "PO-20260310-0001", dec("400.00"), time.Now(), 7)
	require.NoError(t, ValidateBalanced(payment.Lines))
	require.Equal(t, AccountCodeAP, payment.Lines[0].AccountCode)
}
