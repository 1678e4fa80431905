package accounting

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/C-W-Wong/omni-erp-sub000/internal/platform/httpx"
	"github.com/C-W-Wong/omni-erp-sub000/internal/shared"
)

// AuditPort records workflow mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns the chart of accounts and the journal.
type Service struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

// NewService constructs the accounting service.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) ListAccounts(ctx context.Context) ([]Account, error) {
	return s.repo.ListAccounts(ctx)
}

func (s *Service) GetAccount(ctx context.Context, id int64) (*Account, error) {
	return s.repo.GetAccount(ctx, id)
}

func (s *Service) CreateAccount(ctx context.Context, form AccountForm) (*Account, error) {
	if err := validateAccountForm(form); err != nil {
		return nil, err
	}
	// user-created accounts are never system accounts
	id, err := s.repo.CreateAccount(ctx, Account{
		Code:          form.Code,
		Name:          form.Name,
		Category:      form.Category,
		NormalBalance: form.NormalBalance,
		IsSystem:      false,
		IsActive:      form.IsActive,
	})
	if err != nil {
		return nil, err
	}
	return s.repo.GetAccount(ctx, id)
}

func (s *Service) UpdateAccount(ctx context.Context, id int64, form AccountForm) (*Account, error) {
	if err := validateAccountForm(form); err != nil {
		return nil, err
	}
	existing, err := s.repo.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.IsSystem && (existing.Code != form.Code || existing.Name != form.Name) {
		return nil, fmt.Errorf("%w: system account %s cannot be renamed", httpx.ErrForbidden, existing.Code)
	}
	existing.Code = form.Code
	existing.Name = form.Name
	existing.Category = form.Category
	existing.NormalBalance = form.NormalBalance
	existing.IsActive = form.IsActive
	if err := s.repo.UpdateAccount(ctx, *existing); err != nil {
		return nil, err
	}
	return s.repo.GetAccount(ctx, id)
}

// DeleteAccount removes an account that has never been posted to.
func (s *Service) DeleteAccount(ctx context.Context, id int64) error {
	existing, err := s.repo.GetAccount(ctx, id)
	if err != nil {
		return err
	}
	if existing.IsSystem {
		return fmt.Errorf("%w: system account %s cannot be deleted", httpx.ErrForbidden, existing.Code)
	}
	hasLines, err := s.repo.AccountHasLines(ctx, id)
	if err != nil {
		return err
	}
	if hasLines {
		return fmt.Errorf("%w: account %s has journal lines", httpx.ErrPrecondition, existing.Code)
	}
	return s.repo.DeleteAccount(ctx, id)
}

func (s *Service) GetEntry(ctx context.Context, id int64) (*JournalEntry, error) {
	return s.repo.GetEntry(ctx, id)
}

func (s *Service) ListEntries(ctx context.Context, req ListEntriesRequest) ([]JournalEntry, int, error) {
	return s.repo.ListEntries(ctx, req)
}

// CreateEntry stores a validated DRAFT journal entry.
func (s *Service) CreateEntry(ctx context.Context, req CreateEntryRequest, userID int64) (*JournalEntry, error) {
	lines := make([]LineInput, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = LineInput{Debit: l.Debit, Credit: l.Credit}
	}
	if err := ValidateBalanced(lines); err != nil {
		return nil, err
	}

	var id int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		number, err := repo.NextNumber(ctx, req.EntryDate)
		if err != nil {
			return err
		}
		id, err = repo.InsertEntry(ctx, JournalEntry{
			Number:       number,
			EntryDate:    req.EntryDate,
			Memo:         req.Memo,
			SourceModule: req.SourceModule,
			SourceID:     req.SourceID,
			Status:       EntryDraft,
			CreatedBy:    userID,
		})
		if err != nil {
			return err
		}
		for _, l := range req.Lines {
			err := repo.InsertLine(ctx, Line{
				EntryID:   id,
				AccountID: l.AccountID,
				Debit:     shared.RoundMoney(l.Debit),
				Credit:    shared.RoundMoney(l.Credit),
				Memo:      l.Memo,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.repo.GetEntry(ctx, id)
}

// PostEntry moves a DRAFT entry to POSTED.
func (s *Service) PostEntry(ctx context.Context, id int64, userID int64) (*JournalEntry, error) {
	e, err := s.repo.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Status != EntryDraft {
		return nil, fmt.Errorf("%w: journal entry %s is %s", httpx.ErrPrecondition, e.Number, e.Status)
	}
	if err := s.repo.UpdateEntryStatus(ctx, id, EntryPosted, userID, s.now()); err != nil {
		return nil, err
	}
	s.record(ctx, userID, "journal.post", e)
	return s.repo.GetEntry(ctx, id)
}

// VoidEntry reverses a POSTED entry's effect by excluding it from
// balances. Lines are kept for the audit trail.
func (s *Service) VoidEntry(ctx context.Context, id int64, userID int64) (*JournalEntry, error) {
	e, err := s.repo.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Status != EntryPosted {
		return nil, fmt.Errorf("%w: journal entry %s is %s", httpx.ErrPrecondition, e.Number, e.Status)
	}
	if err := s.repo.UpdateEntryStatus(ctx, id, EntryVoided, userID, s.now()); err != nil {
		return nil, err
	}
	s.record(ctx, userID, "journal.void", e)
	return s.repo.GetEntry(ctx, id)
}

// AccountBalance sums the posted lines of one account, sign-adjusted
// by its normal balance side.
func (s *Service) AccountBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	debit, credit, err := s.repo.AccountBalance(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	if account.NormalBalance == NormalDebit {
		return debit.Sub(credit), nil
	}
	return credit.Sub(debit), nil
}

func (s *Service) TrialBalance(ctx context.Context) (*TrialBalance, error) {
	return s.repo.TrialBalance(ctx)
}

func (s *Service) record(ctx context.Context, actorID int64, action string, e *JournalEntry) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "journal_entry",
		EntityID: fmt.Sprintf("%d", e.ID),
		Meta:     map[string]any{"number": e.Number},
		At:       s.now(),
	})
}

func validateAccountForm(form AccountForm) error {
	if !ValidCategory(form.Category) {
		return fmt.Errorf("%w: unknown account category %q", httpx.ErrValidation, form.Category)
	}
	if form.NormalBalance != NormalDebit && form.NormalBalance != NormalCredit {
		return fmt.Errorf("%w: unknown normal balance %q", httpx.ErrValidation, form.NormalBalance)
	}
	return nil
}
