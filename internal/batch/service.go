package batch

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

// Service owns the batch costing rules.
type Service struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

// NewService constructs the batch service.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create registers a new DRAFT batch and its inventory row.
// totalPurchaseCost = quantity x unitPurchaseCost rounded to 2 decimals;
// landed cost starts at zero so totalCost equals the purchase cost.
func (s *Service) Create(ctx context.Context, req CreateBatchRequest, createdBy int64) (*Batch, error) {
	if !req.Quantity.IsPositive() {
		return nil, fmt.Errorf("%w: quantity must be positive", httpx.ErrValidation)
	}
	if req.UnitPurchaseCost.IsNegative() {
		return nil, fmt.Errorf("%w: unit purchase cost must not be negative", httpx.ErrValidation)
	}

	totalPurchase := shared.RoundMoney(req.Quantity.Mul(req.UnitPurchaseCost))
	b := Batch{
		ProductID:         req.ProductID,
		WarehouseID:       req.WarehouseID,
		SupplierID:        req.SupplierID,
		Quantity:          req.Quantity,
		UnitPurchaseCost:  req.UnitPurchaseCost,
		TotalPurchaseCost: totalPurchase,
		TotalLandedCost:   decimal.Zero,
		TotalCost:         totalPurchase,
		CostPerUnit:       shared.RoundUnitCost(totalPurchase.Div(req.Quantity)),
		Currency:          req.Currency,
		ReceivedDate:      req.ReceivedDate,
		Status:            StatusDraft,
		CreatedBy:         createdBy,
	}

	var id int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		number, err := repo.NextNumber(ctx, req.ReceivedDate)
		if err != nil {
			return err
		}
		b.Number = number
		id, err = repo.Create(ctx, b)
		if err != nil {
			return err
		}
		return repo.InsertInventoryRow(ctx, b.ProductID, id, b.WarehouseID, b.Quantity)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id int64) (*Batch, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListBatchesRequest) ([]Batch, int, error) {
	return s.repo.List(ctx, req)
}

// AddCostItem attaches a landed cost component to a DRAFT batch and
// recomputes the batch costs in the same transaction.
func (s *Service) AddCostItem(ctx context.Context, batchID int64, form CostItemForm) (*Batch, error) {
	if err := validateCostItem(form); err != nil {
		return nil, err
	}
	b, err := s.mutableBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	item := LandedCostItem{
		BatchID:               batchID,
		CostTypeID:            form.CostTypeID,
		Description:           form.Description,
		Amount:                form.Amount,
		Currency:              form.Currency,
		ExchangeRate:          form.ExchangeRate,
		AmountInBatchCurrency: shared.RoundMoney(form.Amount.Mul(form.ExchangeRate)),
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if _, err := repo.InsertCostItem(ctx, item); err != nil {
			return err
		}
		return s.recomputeCosts(ctx, repo, b)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, batchID)
}

// UpdateCostItem edits a landed cost component of a DRAFT batch.
func (s *Service) UpdateCostItem(ctx context.Context, batchID, itemID int64, form CostItemForm) (*Batch, error) {
	if err := validateCostItem(form); err != nil {
		return nil, err
	}
	b, err := s.mutableBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	existing, err := s.repo.GetCostItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if existing.BatchID != batchID {
		return nil, fmt.Errorf("%w: landed cost item %d does not belong to batch %d", httpx.ErrValidation, itemID, batchID)
	}

	existing.CostTypeID = form.CostTypeID
	existing.Description = form.Description
	existing.Amount = form.Amount
	existing.Currency = form.Currency
	existing.ExchangeRate = form.ExchangeRate
	existing.AmountInBatchCurrency = shared.RoundMoney(form.Amount.Mul(form.ExchangeRate))

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.UpdateCostItem(ctx, *existing); err != nil {
			return err
		}
		return s.recomputeCosts(ctx, repo, b)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, batchID)
}

// RemoveCostItem detaches a landed cost component from a DRAFT batch.
func (s *Service) RemoveCostItem(ctx context.Context, batchID, itemID int64) (*Batch, error) {
	b, err := s.mutableBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	existing, err := s.repo.GetCostItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if existing.BatchID != batchID {
		return nil, fmt.Errorf("%w: landed cost item %d does not belong to batch %d", httpx.ErrValidation, itemID, batchID)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.DeleteCostItem(ctx, itemID); err != nil {
			return err
		}
		return s.recomputeCosts(ctx, repo, b)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, batchID)
}

// Confirm locks the batch costs. Only DRAFT batches can be confirmed.
func (s *Service) Confirm(ctx context.Context, id int64, userID int64) (*Batch, error) {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(b.Status, StatusConfirmed) {
		return nil, fmt.Errorf("%w: cannot confirm batch in status %s", httpx.ErrValidation, b.Status)
	}
	at := s.now()
	if err := s.repo.UpdateStatus(ctx, id, StatusConfirmed, userID, at); err != nil {
		return nil, err
	}
	s.record(ctx, userID, "batch.confirm", id, map[string]any{"number": b.Number})
	return s.repo.Get(ctx, id)
}

// Cancel voids a DRAFT or CONFIRMED batch. Costs are left untouched.
func (s *Service) Cancel(ctx context.Context, id int64, userID int64) (*Batch, error) {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(b.Status, StatusCancelled) {
		return nil, fmt.Errorf("%w: cannot cancel batch in status %s", httpx.ErrValidation, b.Status)
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusCancelled, userID, s.now()); err != nil {
		return nil, err
	}
	s.record(ctx, userID, "batch.cancel", id, map[string]any{"number": b.Number})
	return s.repo.Get(ctx, id)
}

// mutableBatch loads a batch and rejects cost mutations outside DRAFT.
func (s *Service) mutableBatch(ctx context.Context, id int64) (*Batch, error) {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status != StatusDraft {
		return nil, fmt.Errorf("%w: batch %s is %s, costs are locked", httpx.ErrForbidden, b.Number, b.Status)
	}
	return b, nil
}

// recomputeCosts re-aggregates landed cost items and refreshes the derived
// cost fields inside the caller's transaction.
func (s *Service) recomputeCosts(ctx context.Context, repo Repository, b *Batch) error {
	items, err := repo.ListCostItems(ctx, b.ID)
	if err != nil {
		return err
	}
	totalLanded := decimal.Zero
	for _, it := range items {
		totalLanded = totalLanded.Add(it.AmountInBatchCurrency)
	}
	totalLanded = shared.RoundMoney(totalLanded)
	totalCost := shared.RoundMoney(b.TotalPurchaseCost.Add(totalLanded))
	costPerUnit := shared.RoundUnitCost(totalCost.Div(b.Quantity))
	return repo.UpdateCosts(ctx, b.ID, totalLanded, totalCost, costPerUnit)
}

func (s *Service) record(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "batch",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
		At:       s.now(),
	})
}

func validateCostItem(form CostItemForm) error {
	if !form.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", httpx.ErrValidation)
	}
	if !form.ExchangeRate.IsPositive() {
		return fmt.Errorf("%w: exchange rate must be positive", httpx.ErrValidation)
	}
	return nil
}
