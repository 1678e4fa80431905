package procurement

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/C-W-Wong/omni-erp-sub000/internal/accounting"
	"github.com/C-W-Wong/omni-erp-sub000/internal/platform/httpx"
	"github.com/C-W-Wong/omni-erp-sub000/internal/shared"
)

// AuditPort records workflow mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service drives the purchase order workflow.
type Service struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

// NewService constructs the procurement service.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) Get(ctx context.Context, id int64) (*PurchaseOrder, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListOrdersRequest) ([]PurchaseOrder, int, error) {
	return s.repo.List(ctx, req)
}

// Create opens a DRAFT purchase order. The total is the sum of the
// line totals, each rounded to 2 decimals.
func (s *Service) Create(ctx context.Context, form OrderForm, createdBy int64) (*PurchaseOrder, error) {
	items, total, err := buildItems(form.Items)
	if err != nil {
		return nil, err
	}

	var id int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		number, err := repo.NextNumber(ctx, s.now())
		if err != nil {
			return err
		}
		id, err = repo.Create(ctx, PurchaseOrder{
			Number:       number,
			SupplierID:   form.SupplierID,
			WarehouseID:  form.WarehouseID,
			Status:       StatusDraft,
			Currency:     form.Currency,
			TotalAmount:  total,
			ExpectedDate: form.ExpectedDate,
			Notes:        form.Notes,
			CreatedBy:    createdBy,
		})
		if err != nil {
			return err
		}
		return insertItems(ctx, repo, id, items)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Update replaces a DRAFT order's header and items.
func (s *Service) Update(ctx context.Context, id int64, form OrderForm) (*PurchaseOrder, error) {
	po, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if po.Status != StatusDraft {
		return nil, fmt.Errorf("%w: purchase order %s is %s", httpx.ErrValidation, po.Number, po.Status)
	}
	items, total, err := buildItems(form.Items)
	if err != nil {
		return nil, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		po.SupplierID = form.SupplierID
		po.WarehouseID = form.WarehouseID
		po.Currency = form.Currency
		po.TotalAmount = total
		po.ExpectedDate = form.ExpectedDate
		po.Notes = form.Notes
		if err := repo.UpdateHeader(ctx, *po); err != nil {
			return err
		}
		if err := repo.DeleteItems(ctx, id); err != nil {
			return err
		}
		return insertItems(ctx, repo, id, items)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Confirm moves a DRAFT order to CONFIRMED.
func (s *Service) Confirm(ctx context.Context, id int64, userID int64) (*PurchaseOrder, error) {
	po, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(po.Status, StatusConfirmed) {
		return nil, fmt.Errorf("%w: purchase order %s is %s", httpx.ErrValidation, po.Number, po.Status)
	}
	if len(po.Items) == 0 {
		return nil, fmt.Errorf("%w: purchase order has no items", httpx.ErrValidation)
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusConfirmed); err != nil {
		return nil, err
	}
	s.record(ctx, userID, "purchase_order.confirm", po, nil)
	return s.repo.Get(ctx, id)
}

// Receive books a goods receipt: per received line one DRAFT batch and
// its inventory row are created, the line's received quantity grows,
// and the receipt value is posted to the journal (Inventory debit, AP
// credit) together with the payable. Everything in one transaction.
func (s *Service) Receive(ctx context.Context, id int64, req ReceiveRequest, userID int64) (*PurchaseOrder, error) {
	po, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if po.Status != StatusConfirmed && po.Status != StatusPartial {
		return nil, fmt.Errorf("%w: purchase order %s is %s", httpx.ErrValidation, po.Number, po.Status)
	}
	if len(req.Lines) == 0 {
		return nil, fmt.Errorf("%w: receipt needs at least one line", httpx.ErrValidation)
	}

	itemsByID := make(map[int64]*Item, len(po.Items))
	for i := range po.Items {
		itemsByID[po.Items[i].ID] = &po.Items[i]
	}
	requested := make(map[int64]decimal.Decimal, len(req.Lines))
	for _, line := range req.Lines {
		item, ok := itemsByID[line.ItemID]
		if !ok {
			return nil, fmt.Errorf("%w: item %d does not belong to order %s", httpx.ErrValidation, line.ItemID, po.Number)
		}
		if !line.Quantity.IsPositive() {
			return nil, fmt.Errorf("%w: received quantity must be positive", httpx.ErrValidation)
		}
		total := requested[line.ItemID].Add(line.Quantity)
		if total.GreaterThan(item.Remaining()) {
			return nil, fmt.Errorf("%w: item %d has %s remaining, received %s",
				httpx.ErrValidation, line.ItemID, item.Remaining(), total)
		}
		requested[line.ItemID] = total
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		receivedValue := decimal.Zero
		for _, line := range req.Lines {
			item := itemsByID[line.ItemID]

			number, err := repo.NextBatchNumber(ctx, req.ReceivedDate)
			if err != nil {
				return err
			}
			lineValue := shared.RoundMoney(line.Quantity.Mul(item.UnitPrice))
			batchID, err := repo.InsertReceivedBatch(ctx, ReceivedBatch{
				Number:           number,
				ProductID:        item.ProductID,
				WarehouseID:      po.WarehouseID,
				SupplierID:       po.SupplierID,
				PurchaseOrderID:  po.ID,
				Quantity:         line.Quantity,
				UnitPurchaseCost: item.UnitPrice,
				TotalCost:        lineValue,
				CostPerUnit:      shared.RoundUnitCost(lineValue.Div(line.Quantity)),
				Currency:         po.Currency,
				ReceivedDate:     req.ReceivedDate,
				CreatedBy:        userID,
			})
			if err != nil {
				return err
			}
			if err := repo.InsertInventoryRow(ctx, item.ProductID, batchID, po.WarehouseID, line.Quantity); err != nil {
				return err
			}

			item.ReceivedQuantity = item.ReceivedQuantity.Add(line.Quantity)
			if err := repo.UpdateItemReceived(ctx, item.ID, item.ReceivedQuantity); err != nil {
				return err
			}
			receivedValue = receivedValue.Add(lineValue)
		}

		status := StatusPartial
		if po.FullyReceived() {
			status = StatusReceived
		}
		if err := repo.UpdateStatus(ctx, po.ID, status); err != nil {
			return err
		}

		entry := accounting.BuildPurchaseEntry(po.ID, po.Number, receivedValue, req.ReceivedDate, userID)
		if _, err := repo.PostJournalEntry(ctx, entry, s.now()); err != nil {
			return err
		}

		termsDays, err := repo.SupplierTermsDays(ctx, po.SupplierID)
		if err != nil {
			return err
		}
		return repo.InsertOpenItem(ctx, OpenItem{
			Number:     po.Number,
			SupplierID: po.SupplierID,
			OrderID:    po.ID,
			Total:      receivedValue,
			DueDate:    req.ReceivedDate.AddDate(0, 0, termsDays),
		})
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, userID, "purchase_order.receive", po, map[string]any{"lines": len(req.Lines)})
	return s.repo.Get(ctx, id)
}

// Cancel voids an order that was not fully received.
func (s *Service) Cancel(ctx context.Context, id int64, userID int64) (*PurchaseOrder, error) {
	po, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(po.Status, StatusCancelled) {
		return nil, fmt.Errorf("%w: purchase order %s is %s", httpx.ErrValidation, po.Number, po.Status)
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusCancelled); err != nil {
		return nil, err
	}
	s.record(ctx, userID, "purchase_order.cancel", po, nil)
	return s.repo.Get(ctx, id)
}

// Delete removes a DRAFT order and its items.
func (s *Service) Delete(ctx context.Context, id int64) error {
	po, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if po.Status != StatusDraft {
		return fmt.Errorf("%w: purchase order %s is %s", httpx.ErrValidation, po.Number, po.Status)
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		return repo.Delete(ctx, id)
	})
}

func buildItems(forms []ItemForm) ([]Item, decimal.Decimal, error) {
	if len(forms) == 0 {
		return nil, decimal.Zero, fmt.Errorf("%w: order needs at least one item", httpx.ErrValidation)
	}
	items := make([]Item, len(forms))
	total := decimal.Zero
	for i, form := range forms {
		if !form.Quantity.IsPositive() {
			return nil, decimal.Zero, fmt.Errorf("%w: quantity must be positive", httpx.ErrValidation)
		}
		if form.UnitPrice.IsNegative() {
			return nil, decimal.Zero, fmt.Errorf("%w: unit price must not be negative", httpx.ErrValidation)
		}
		lineTotal := shared.RoundMoney(form.Quantity.Mul(form.UnitPrice))
		items[i] = Item{
			ProductID: form.ProductID,
			Quantity:  form.Quantity,
			UnitPrice: form.UnitPrice,
			LineTotal: lineTotal,
		}
		total = total.Add(lineTotal)
	}
	return items, shared.RoundMoney(total), nil
}

func insertItems(ctx context.Context, repo Repository, orderID int64, items []Item) error {
	for _, item := range items {
		item.OrderID = orderID
		if err := repo.InsertItem(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, po *PurchaseOrder, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["number"] = po.Number
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "purchase_order",
		EntityID: fmt.Sprintf("%d", po.ID),
		Meta:     meta,
		At:       s.now(),
	})
}
