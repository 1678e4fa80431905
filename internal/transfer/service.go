package transfer

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

// Service drives the warehouse transfer workflow.
type Service struct {
	repo          Repository
	audit         AuditPort
	allowNegative bool
	now           func() time.Time
}

// NewService constructs the transfer service. allowNegative disables
// the availability checks on create/submit/approve.
func NewService(repo Repository, audit AuditPort, allowNegative bool) *Service {
	return &Service{repo: repo, audit: audit, allowNegative: allowNegative, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) Get(ctx context.Context, id int64) (*Transfer, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListTransfersRequest) ([]Transfer, int, error) {
	return s.repo.List(ctx, req)
}

// Create opens a DRAFT transfer after validating the source stock.
func (s *Service) Create(ctx context.Context, req CreateTransferRequest, createdBy int64) (*Transfer, error) {
	if req.SourceWarehouseID == req.TargetWarehouseID {
		return nil, fmt.Errorf("%w: source and target warehouse must differ", httpx.ErrValidation)
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: transfer needs at least one item", httpx.ErrValidation)
	}
	for _, item := range req.Items {
		if !item.Quantity.IsPositive() {
			return nil, fmt.Errorf("%w: quantity must be positive", httpx.ErrValidation)
		}
	}
	if err := s.checkAvailability(ctx, req.SourceWarehouseID, req.Items); err != nil {
		return nil, err
	}

	var id int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		number, err := repo.NextNumber(ctx, s.now())
		if err != nil {
			return err
		}
		id, err = repo.Create(ctx, Transfer{
			Number:            number,
			SourceWarehouseID: req.SourceWarehouseID,
			TargetWarehouseID: req.TargetWarehouseID,
			Status:            StatusDraft,
			Notes:             req.Notes,
			CreatedBy:         createdBy,
		})
		if err != nil {
			return err
		}
		for _, item := range req.Items {
			err := repo.InsertItem(ctx, Item{
				TransferID: id,
				ProductID:  item.ProductID,
				BatchID:    item.BatchID,
				Quantity:   item.Quantity,
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
	return s.repo.Get(ctx, id)
}

// Submit moves a DRAFT transfer to PENDING, re-checking the source stock.
func (s *Service) Submit(ctx context.Context, id int64, userID int64) (*Transfer, error) {
	t, err := s.transitionTarget(ctx, id, StatusPending)
	if err != nil {
		return nil, err
	}
	if err := s.checkAvailabilityItems(ctx, t.SourceWarehouseID, t.Items); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusPending, nil); err != nil {
		return nil, err
	}
	s.record(ctx, userID, "transfer.submit", t)
	return s.repo.Get(ctx, id)
}

// Approve moves a PENDING transfer to IN_TRANSIT and reserves the
// source stock atomically.
func (s *Service) Approve(ctx context.Context, id int64, userID int64) (*Transfer, error) {
	t, err := s.transitionTarget(ctx, id, StatusInTransit)
	if err != nil {
		return nil, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		for _, item := range t.Items {
			if err := repo.ReserveStock(ctx, item.ProductID, item.BatchID, t.SourceWarehouseID, item.Quantity); err != nil {
				return err
			}
		}
		return repo.UpdateStatus(ctx, id, StatusInTransit, nil)
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, userID, "transfer.approve", t)
	return s.repo.Get(ctx, id)
}

// Complete lands an IN_TRANSIT transfer: stock leaves the source rows
// and is added to the target rows in one transaction.
func (s *Service) Complete(ctx context.Context, id int64, userID int64) (*Transfer, error) {
	t, err := s.transitionTarget(ctx, id, StatusCompleted)
	if err != nil {
		return nil, err
	}
	completedAt := s.now()
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		for _, item := range t.Items {
			if err := repo.DeductStock(ctx, item.ProductID, item.BatchID, t.SourceWarehouseID, item.Quantity); err != nil {
				return err
			}
			if err := repo.AddStock(ctx, item.ProductID, item.BatchID, t.TargetWarehouseID, item.Quantity); err != nil {
				return err
			}
		}
		return repo.UpdateStatus(ctx, id, StatusCompleted, &completedAt)
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, userID, "transfer.complete", t)
	return s.repo.Get(ctx, id)
}

// Cancel voids a non-terminal transfer. Reservations exist only once
// the transfer reached IN_TRANSIT, so only then are they released.
func (s *Service) Cancel(ctx context.Context, id int64, userID int64) (*Transfer, error) {
	t, err := s.transitionTarget(ctx, id, StatusCancelled)
	if err != nil {
		return nil, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if t.Status == StatusInTransit {
			for _, item := range t.Items {
				if err := repo.ReleaseStock(ctx, item.ProductID, item.BatchID, t.SourceWarehouseID, item.Quantity); err != nil {
					return err
				}
			}
		}
		return repo.UpdateStatus(ctx, id, StatusCancelled, nil)
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, userID, "transfer.cancel", t)
	return s.repo.Get(ctx, id)
}

func (s *Service) transitionTarget(ctx context.Context, id int64, to Status) (*Transfer, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(t.Status, to) {
		return nil, fmt.Errorf("%w: transfer %s is %s", httpx.ErrValidation, t.Number, t.Status)
	}
	return t, nil
}

func (s *Service) checkAvailability(ctx context.Context, warehouseID int64, items []ItemForm) error {
	if s.allowNegative {
		return nil
	}
	type stockKey struct {
		productID int64
		batchID   int64
	}
	needed := make(map[stockKey]decimal.Decimal, len(items))
	for _, item := range items {
		key := stockKey{productID: item.ProductID, batchID: item.BatchID}
		needed[key] = needed[key].Add(item.Quantity)
	}
	for _, item := range items {
		key := stockKey{productID: item.ProductID, batchID: item.BatchID}
		requested, ok := needed[key]
		if !ok {
			continue
		}
		delete(needed, key)
		available, err := s.repo.AvailableQuantity(ctx, item.ProductID, item.BatchID, warehouseID)
		if err != nil {
			return err
		}
		if available.LessThan(requested) {
			return fmt.Errorf("%w: product %d batch %d has %s available, requested %s",
				httpx.ErrValidation, item.ProductID, item.BatchID, available, requested)
		}
	}
	return nil
}

func (s *Service) checkAvailabilityItems(ctx context.Context, warehouseID int64, items []Item) error {
	forms := make([]ItemForm, len(items))
	for i, it := range items {
		forms[i] = ItemForm{ProductID: it.ProductID, BatchID: it.BatchID, Quantity: it.Quantity}
	}
	return s.checkAvailability(ctx, warehouseID, forms)
}

func (s *Service) record(ctx context.Context, actorID int64, action string, t *Transfer) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "transfer",
		EntityID: fmt.Sprintf("%d", t.ID),
		Meta:     map[string]any{"number": t.Number},
		At:       s.now(),
	})
}
