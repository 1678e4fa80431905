package ar

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/C-W-Wong/omni-erp-sub000/internal/accounting"
	"github.com/C-W-Wong/omni-erp-sub000/internal/platform/httpx"
	"github.com/C-W-Wong/omni-erp-sub000/internal/shared"
)

// AuditPort records workflow mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service exposes receivable open items, payment receipt, and aging.
type Service struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
	aging singleflight.Group
}

// NewService constructs the receivables service.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) Get(ctx context.Context, id int64) (*OpenItem, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListOpenItemsRequest) ([]OpenItem, int, error) {
	return s.repo.List(ctx, req)
}

func (s *Service) Payments(ctx context.Context, openItemID int64) ([]Payment, error) {
	if _, err := s.repo.Get(ctx, openItemID); err != nil {
		return nil, err
	}
	return s.repo.Payments(ctx, openItemID)
}

// ReceivePayment applies a receipt against an open item and books the
// bank and receivable movement in the same transaction.
func (s *Service) ReceivePayment(ctx context.Context, itemID int64, req PaymentRequest, userID int64) (*OpenItem, error) {
	amount := shared.RoundMoney(req.Amount)
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: payment amount must be positive", httpx.ErrValidation)
	}

	var item *OpenItem
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		var err error
		item, err = repo.Get(ctx, itemID)
		if err != nil {
			return err
		}
		if item.Status == StatusPaid {
			return fmt.Errorf("%w: open item %s is already paid", httpx.ErrValidation, item.Number)
		}
		if amount.GreaterThan(item.Balance) {
			return fmt.Errorf("%w: payment %s exceeds outstanding balance %s", httpx.ErrValidation, amount, item.Balance)
		}

		item.PaidAmount = shared.RoundMoney(item.PaidAmount.Add(amount))
		item.Balance = shared.RoundMoney(item.Balance.Sub(amount))
		item.Status = StatusPartial
		if item.Balance.IsZero() {
			item.Status = StatusPaid
		}
		if err := repo.UpdatePayment(ctx, item.ID, item.PaidAmount, item.Balance, item.Status); err != nil {
			return err
		}

		number, err := repo.NextPaymentNumber(ctx, s.now())
		if err != nil {
			return err
		}
		if _, err := repo.InsertPayment(ctx, Payment{
			Number:     number,
			OpenItemID: item.ID,
			Amount:     amount,
			PaidAt:     req.PaidAt,
			Method:     req.Method,
			Reference:  req.Reference,
			CreatedBy:  userID,
		}); err != nil {
			return err
		}

		entry := accounting.BuildPaymentEntry("ar", item.ID, item.Number, amount, req.PaidAt, userID)
		_, err = repo.PostJournalEntry(ctx, entry, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, userID, item, amount.String())
	return item, nil
}

// Aging builds the receivables aging report as of the given date.
// Concurrent requests for the same date share one computation.
func (s *Service) Aging(ctx context.Context, asOf time.Time) (*AgingReport, error) {
	key := asOf.UTC().Format("2006-01-02")
	v, err, _ := s.aging.Do(key, func() (interface{}, error) {
		return s.buildAging(ctx, asOf)
	})
	if err != nil {
		return nil, err
	}
	return v.(*AgingReport), nil
}

// SnapshotAging recomputes the aging report and persists one row per
// customer. The nightly job calls this.
func (s *Service) SnapshotAging(ctx context.Context, asOf time.Time) (*AgingReport, error) {
	report, err := s.buildAging(ctx, asOf)
	if err != nil {
		return nil, err
	}
	if err := s.repo.InsertAgingSnapshot(ctx, *report); err != nil {
		return nil, err
	}
	return report, nil
}

func (s *Service) buildAging(ctx context.Context, asOf time.Time) (*AgingReport, error) {
	outstanding, err := s.repo.Outstanding(ctx)
	if err != nil {
		return nil, err
	}

	byCustomer := map[int64]*AgingRow{}
	for _, item := range outstanding {
		row, ok := byCustomer[item.CustomerID]
		if !ok {
			row = &AgingRow{
				CustomerID:   item.CustomerID,
				CustomerName: item.CustomerName,
				Buckets:      shared.ZeroBuckets(),
			}
			byCustomer[item.CustomerID] = row
		}
		row.Buckets.Add(item.Balance, item.DueDate, asOf)
	}

	report := &AgingReport{AsOf: asOf, Totals: shared.ZeroBuckets()}
	for _, row := range byCustomer {
		row.Total = row.Buckets.Total()
		report.Totals.Merge(row.Buckets)
		report.Rows = append(report.Rows, *row)
	}
	sort.Slice(report.Rows, func(i, j int) bool {
		return report.Rows[i].CustomerID < report.Rows[j].CustomerID
	})
	return report, nil
}

func (s *Service) record(ctx context.Context, actorID int64, item *OpenItem, amount string) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "ar.receive_payment",
		Entity:   "ar_open_item",
		EntityID: fmt.Sprintf("%d", item.ID),
		Meta:     map[string]any{"number": item.Number, "amount": amount, "status": item.Status},
	})
}
