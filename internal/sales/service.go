package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/C-W-Wong/omni-erp-sub000/internal/accounting"
	"github.com/C-W-Wong/omni-erp-sub000/internal/inventory"
	"github.com/C-W-Wong/omni-erp-sub000/internal/platform/httpx"
	"github.com/C-W-Wong/omni-erp-sub000/internal/shared"
)

// Receivables fall due 30 days after shipment.
const arTermsDays = 30

// AuditPort records workflow mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service drives the sales order workflow.
type Service struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

// NewService constructs the sales service.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) Get(ctx context.Context, id int64) (*SalesOrder, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListOrdersRequest) ([]SalesOrder, int, error) {
	return s.repo.List(ctx, req)
}

// Create opens a DRAFT sales order.
func (s *Service) Create(ctx context.Context, form OrderForm, createdBy int64) (*SalesOrder, error) {
	items, total, err := buildItems(form.Items)
	if err != nil {
		return nil, err
	}
	method := form.AllocationMethod
	if method == "" {
		method = inventory.MethodFIFO
	}
	if !inventory.ValidMethod(method) {
		return nil, fmt.Errorf("%w: unknown allocation method %q", httpx.ErrValidation, method)
	}

	var id int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		number, err := repo.NextNumber(ctx, s.now())
		if err != nil {
			return err
		}
		id, err = repo.Create(ctx, SalesOrder{
			Number:           number,
			CustomerID:       form.CustomerID,
			WarehouseID:      form.WarehouseID,
			AllocationMethod: method,
			Status:           StatusDraft,
			Currency:         form.Currency,
			TotalAmount:      total,
			Notes:            form.Notes,
			CreatedBy:        createdBy,
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
func (s *Service) Update(ctx context.Context, id int64, form OrderForm) (*SalesOrder, error) {
	so, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if so.Status != StatusDraft {
		return nil, fmt.Errorf("%w: sales order %s is %s", httpx.ErrValidation, so.Number, so.Status)
	}
	items, total, err := buildItems(form.Items)
	if err != nil {
		return nil, err
	}
	method := form.AllocationMethod
	if method == "" {
		method = inventory.MethodFIFO
	}
	if !inventory.ValidMethod(method) {
		return nil, fmt.Errorf("%w: unknown allocation method %q", httpx.ErrValidation, method)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		so.CustomerID = form.CustomerID
		so.WarehouseID = form.WarehouseID
		so.AllocationMethod = method
		so.Currency = form.Currency
		so.TotalAmount = total
		so.Notes = form.Notes
		if err := repo.UpdateHeader(ctx, *so); err != nil {
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

// Confirm allocates stock for every item with the order's method and
// reserves it. A shortfall on any item aborts the whole confirmation.
func (s *Service) Confirm(ctx context.Context, id int64, userID int64) (*SalesOrder, error) {
	so, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(so.Status, StatusConfirmed) {
		return nil, fmt.Errorf("%w: sales order %s is %s", httpx.ErrValidation, so.Number, so.Status)
	}
	if len(so.Items) == 0 {
		return nil, fmt.Errorf("%w: sales order has no items", httpx.ErrValidation)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		totalCost := decimal.Zero
		for _, item := range so.Items {
			lots, err := repo.AvailableLots(ctx, item.ProductID, so.WarehouseID)
			if err != nil {
				return err
			}
			plan, err := inventory.Plan(item.ProductID, so.AllocationMethod, lots, item.Quantity)
			if err != nil {
				var shortfall *inventory.ShortfallError
				if errors.As(err, &shortfall) {
					return fmt.Errorf("%w: order %s item %d short by %s",
						httpx.ErrValidation, so.Number, item.ID, shortfall.Missing())
				}
				return err
			}
			for _, slice := range plan {
				err := repo.InsertAllocation(ctx, Allocation{
					ItemID:      item.ID,
					BatchID:     slice.BatchID,
					WarehouseID: slice.WarehouseID,
					Quantity:    slice.Quantity,
					CostPerUnit: slice.CostPerUnit,
				})
				if err != nil {
					return err
				}
				if err := repo.ReserveStock(ctx, item.ProductID, slice.BatchID, slice.WarehouseID, slice.Quantity); err != nil {
					return err
				}
			}
			unitCost, costAmount := inventory.PlanCost(plan)
			if err := repo.UpdateItemCost(ctx, item.ID, unitCost, costAmount); err != nil {
				return err
			}
			totalCost = totalCost.Add(costAmount)
		}
		if err := repo.UpdateTotalCost(ctx, so.ID, shared.RoundMoney(totalCost)); err != nil {
			return err
		}
		return repo.UpdateStatus(ctx, so.ID, StatusConfirmed, nil)
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, userID, "sales_order.confirm", so, nil)
	return s.repo.Get(ctx, id)
}

// Ship consumes the reserved allocations in order, moves stock out of
// inventory, and posts the revenue and cost of the shipment together
// with the receivable. Partial shipments leave the order PROCESSING.
func (s *Service) Ship(ctx context.Context, id int64, req ShipRequest, userID int64) (*SalesOrder, error) {
	so, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if so.Status != StatusConfirmed && so.Status != StatusProcessing {
		return nil, fmt.Errorf("%w: sales order %s is %s", httpx.ErrValidation, so.Number, so.Status)
	}
	if len(req.Lines) == 0 {
		return nil, fmt.Errorf("%w: shipment needs at least one line", httpx.ErrValidation)
	}

	itemsByID := make(map[int64]*Item, len(so.Items))
	for i := range so.Items {
		itemsByID[so.Items[i].ID] = &so.Items[i]
	}
	requested := make(map[int64]decimal.Decimal, len(req.Lines))
	for _, line := range req.Lines {
		item, ok := itemsByID[line.ItemID]
		if !ok {
			return nil, fmt.Errorf("%w: item %d does not belong to order %s", httpx.ErrValidation, line.ItemID, so.Number)
		}
		if !line.Quantity.IsPositive() {
			return nil, fmt.Errorf("%w: shipped quantity must be positive", httpx.ErrValidation)
		}
		total := requested[line.ItemID].Add(line.Quantity)
		if total.GreaterThan(item.Remaining()) {
			return nil, fmt.Errorf("%w: item %d has %s remaining, shipped %s",
				httpx.ErrValidation, line.ItemID, item.Remaining(), total)
		}
		requested[line.ItemID] = total
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		revenue := decimal.Zero
		cost := decimal.Zero
		for _, line := range req.Lines {
			item := itemsByID[line.ItemID]
			remaining := line.Quantity
			for i := range item.Allocations {
				if !remaining.IsPositive() {
					break
				}
				alloc := &item.Allocations[i]
				take := decimal.Min(alloc.Remaining(), remaining)
				if !take.IsPositive() {
					continue
				}
				if err := repo.DeductShippedStock(ctx, alloc.BatchID, alloc.WarehouseID, take); err != nil {
					return err
				}
				alloc.ShippedQuantity = alloc.ShippedQuantity.Add(take)
				if err := repo.UpdateAllocationShipped(ctx, alloc.ID, alloc.ShippedQuantity); err != nil {
					return err
				}
				cost = cost.Add(take.Mul(alloc.CostPerUnit))
				remaining = remaining.Sub(take)
			}
			if remaining.IsPositive() {
				return fmt.Errorf("%w: item %d has no allocation for %s units", httpx.ErrPrecondition, item.ID, remaining)
			}

			item.ShippedQuantity = item.ShippedQuantity.Add(line.Quantity)
			if err := repo.UpdateItemShipped(ctx, item.ID, item.ShippedQuantity); err != nil {
				return err
			}
			revenue = revenue.Add(line.Quantity.Mul(item.UnitPrice))
		}
		revenue = shared.RoundMoney(revenue)
		cost = shared.RoundMoney(cost)

		status := StatusProcessing
		var shippedDate *time.Time
		if so.FullyShipped() {
			status = StatusShipped
			shippedDate = &req.ShippedDate
		}
		if err := repo.UpdateStatus(ctx, so.ID, status, shippedDate); err != nil {
			return err
		}

		entry := accounting.BuildSalesEntry(so.ID, so.Number, revenue, cost, req.ShippedDate, userID)
		if _, err := repo.PostJournalEntry(ctx, entry, s.now()); err != nil {
			return err
		}
		return repo.InsertOpenItem(ctx, OpenItem{
			Number:     so.Number,
			CustomerID: so.CustomerID,
			OrderID:    so.ID,
			Total:      revenue,
			DueDate:    req.ShippedDate.AddDate(0, 0, arTermsDays),
		})
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, userID, "sales_order.ship", so, map[string]any{"lines": len(req.Lines)})
	return s.repo.Get(ctx, id)
}

// Cancel voids the order and releases any reservations not yet shipped.
func (s *Service) Cancel(ctx context.Context, id int64, userID int64) (*SalesOrder, error) {
	so, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(so.Status, StatusCancelled) {
		return nil, fmt.Errorf("%w: sales order %s is %s", httpx.ErrValidation, so.Number, so.Status)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if so.Status != StatusDraft {
			for _, item := range so.Items {
				for _, alloc := range item.Allocations {
					outstanding := alloc.Remaining()
					if !outstanding.IsPositive() {
						continue
					}
					if err := repo.ReleaseStock(ctx, alloc.BatchID, alloc.WarehouseID, outstanding); err != nil {
						return err
					}
				}
			}
		}
		return repo.UpdateStatus(ctx, so.ID, StatusCancelled, nil)
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, userID, "sales_order.cancel", so, nil)
	return s.repo.Get(ctx, id)
}

// Complete closes a fully shipped order.
func (s *Service) Complete(ctx context.Context, id int64, userID int64) (*SalesOrder, error) {
	so, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(so.Status, StatusCompleted) {
		return nil, fmt.Errorf("%w: sales order %s is %s", httpx.ErrValidation, so.Number, so.Status)
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusCompleted, nil); err != nil {
		return nil, err
	}
	s.record(ctx, userID, "sales_order.complete", so, nil)
	return s.repo.Get(ctx, id)
}

// Delete removes a DRAFT order and its items.
func (s *Service) Delete(ctx context.Context, id int64) error {
	so, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if so.Status != StatusDraft {
		return fmt.Errorf("%w: sales order %s is %s", httpx.ErrValidation, so.Number, so.Status)
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
		if _, err := repo.InsertItem(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, so *SalesOrder, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["number"] = so.Number
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "sales_order",
		EntityID: fmt.Sprintf("%d", so.ID),
		Meta:     meta,
		At:       s.now(),
	})
}
