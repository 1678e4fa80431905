package sales

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/C-W-Wong/omni-erp-sub000/internal/accounting"
	"github.com/C-W-Wong/omni-erp-sub000/internal/inventory"
	"github.com/C-W-Wong/omni-erp-sub000/internal/platform/httpx"
)

type lotState struct {
	productID   int64
	batchID     int64
	warehouseID int64
	received    time.Time
	quantity    decimal.Decimal
	reserved    decimal.Decimal
	costPerUnit decimal.Decimal
}

type fakeRepo struct {
	orders      map[int64]*SalesOrder
	lots        []*lotState
	entries     []accounting.EntryInput
	openItems   []OpenItem
	nextID      int64
	nextItemID  int64
	nextAllocID int64
	seq         int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{orders: map[int64]*SalesOrder{}}
}

func (f *fakeRepo) seedLot(productID, batchID, warehouseID int64, day int, qty, cost string) {
	f.lots = append(f.lots, &lotState{
		productID:   productID,
		batchID:     batchID,
		warehouseID: warehouseID,
		received:    time.Date(2026, 1, day, 0, 0, 0, 0, time.UTC),
		quantity:    dec(qty),
		reserved:    decimal.Zero,
		costPerUnit: dec(cost),
	})
}

func (f *fakeRepo) lot(batchID, warehouseID int64) *lotState {
	for _, l := range f.lots {
		if l.batchID == batchID && l.warehouseID == warehouseID {
			return l
		}
	}
	return nil
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, f)
}

func (f *fakeRepo) Get(_ context.Context, id int64) (*SalesOrder, error) {
	so, ok := f.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: sales order %d", httpx.ErrNotFound, id)
	}
	cp := *so
	cp.Items = make([]Item, len(so.Items))
	for i, item := range so.Items {
		cp.Items[i] = item
		cp.Items[i].Allocations = append([]Allocation(nil), item.Allocations...)
	}
	return &cp, nil
}

func (f *fakeRepo) List(_ context.Context, _ ListOrdersRequest) ([]SalesOrder, int, error) {
	var out []SalesOrder
	for _, so := range f.orders {
		out = append(out, *so)
	}
	return out, len(out), nil
}

func (f *fakeRepo) Create(_ context.Context, so SalesOrder) (int64, error) {
	f.nextID++
	so.ID = f.nextID
	f.orders[so.ID] = &so
	return so.ID, nil
}

func (f *fakeRepo) InsertItem(_ context.Context, item Item) (int64, error) {
	so, ok := f.orders[item.OrderID]
	if !ok {
		return 0, fmt.Errorf("%w: sales order %d", httpx.ErrNotFound, item.OrderID)
	}
	f.nextItemID++
	item.ID = f.nextItemID
	so.Items = append(so.Items, item)
	return item.ID, nil
}

func (f *fakeRepo) DeleteItems(_ context.Context, orderID int64) error {
	if so, ok := f.orders[orderID]; ok {
		so.Items = nil
	}
	return nil
}

func (f *fakeRepo) UpdateHeader(_ context.Context, so SalesOrder) error {
	existing, ok := f.orders[so.ID]
	if !ok {
		return fmt.Errorf("%w: sales order %d", httpx.ErrNotFound, so.ID)
	}
	so.Items = existing.Items
	so.Status = existing.Status
	f.orders[so.ID] = &so
	return nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, id int64, status Status, shippedDate *time.Time) error {
	so, ok := f.orders[id]
	if !ok {
		return fmt.Errorf("%w: sales order %d", httpx.ErrNotFound, id)
	}
	so.Status = status
	if shippedDate != nil {
		so.ShippedDate = shippedDate
	}
	return nil
}

func (f *fakeRepo) UpdateTotalCost(_ context.Context, id int64, totalCost decimal.Decimal) error {
	so, ok := f.orders[id]
	if !ok {
		return fmt.Errorf("%w: sales order %d", httpx.ErrNotFound, id)
	}
	so.TotalCost = totalCost
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, id int64) error {
	if _, ok := f.orders[id]; !ok {
		return fmt.Errorf("%w: sales order %d", httpx.ErrNotFound, id)
	}
	delete(f.orders, id)
	return nil
}

func (f *fakeRepo) AvailableLots(_ context.Context, productID int64, warehouseID *int64) ([]inventory.Lot, error) {
	var lots []inventory.Lot
	for _, l := range f.lots {
		if l.productID != productID {
			continue
		}
		if warehouseID != nil && l.warehouseID != *warehouseID {
			continue
		}
		available := l.quantity.Sub(l.reserved)
		if !available.IsPositive() {
			continue
		}
		lots = append(lots, inventory.Lot{
			BatchID:      l.batchID,
			WarehouseID:  l.warehouseID,
			ReceivedDate: l.received,
			Available:    available,
			CostPerUnit:  l.costPerUnit,
		})
	}
	return lots, nil
}

func (f *fakeRepo) InsertAllocation(_ context.Context, a Allocation) error {
	for _, so := range f.orders {
		for i := range so.Items {
			if so.Items[i].ID == a.ItemID {
				f.nextAllocID++
				a.ID = f.nextAllocID
				so.Items[i].Allocations = append(so.Items[i].Allocations, a)
				return nil
			}
		}
	}
	return fmt.Errorf("%w: sales order item %d", httpx.ErrNotFound, a.ItemID)
}

func (f *fakeRepo) DeleteAllocations(_ context.Context, orderID int64) error {
	if so, ok := f.orders[orderID]; ok {
		for i := range so.Items {
			so.Items[i].Allocations = nil
		}
	}
	return nil
}

func (f *fakeRepo) UpdateAllocationShipped(_ context.Context, id int64, shipped decimal.Decimal) error {
	for _, so := range f.orders {
		for i := range so.Items {
			for j := range so.Items[i].Allocations {
				if so.Items[i].Allocations[j].ID == id {
					so.Items[i].Allocations[j].ShippedQuantity = shipped
					return nil
				}
			}
		}
	}
	return fmt.Errorf("%w: allocation %d", httpx.ErrNotFound, id)
}

func (f *fakeRepo) UpdateItemCost(_ context.Context, itemID int64, unitCost, costAmount decimal.Decimal) error {
	for _, so := range f.orders {
		for i := range so.Items {
			if so.Items[i].ID == itemID {
				so.Items[i].UnitCost = unitCost
				so.Items[i].CostAmount = costAmount
				return nil
			}
		}
	}
	return fmt.Errorf("%w: sales order item %d", httpx.ErrNotFound, itemID)
}

func (f *fakeRepo) UpdateItemShipped(_ context.Context, itemID int64, shipped decimal.Decimal) error {
	for _, so := range f.orders {
		for i := range so.Items {
			if so.Items[i].ID == itemID {
				so.Items[i].ShippedQuantity = shipped
				return nil
			}
		}
	}
	return fmt.Errorf("%w: sales order item %d", httpx.ErrNotFound, itemID)
}

func (f *fakeRepo) ReserveStock(_ context.Context, productID, batchID, warehouseID int64, qty decimal.Decimal) error {
	l := f.lot(batchID, warehouseID)
	if l == nil || l.quantity.Sub(l.reserved).LessThan(qty) {
		return fmt.Errorf("%w: insufficient stock for product %d batch %d", httpx.ErrPrecondition, productID, batchID)
	}
	l.reserved = l.reserved.Add(qty)
	return nil
}

func (f *fakeRepo) ReleaseStock(_ context.Context, batchID, warehouseID int64, qty decimal.Decimal) error {
	if l := f.lot(batchID, warehouseID); l != nil {
		l.reserved = decimal.Max(l.reserved.Sub(qty), decimal.Zero)
	}
	return nil
}

func (f *fakeRepo) DeductShippedStock(_ context.Context, batchID, warehouseID int64, qty decimal.Decimal) error {
	l := f.lot(batchID, warehouseID)
	if l == nil {
		return fmt.Errorf("%w: inventory row for batch %d", httpx.ErrNotFound, batchID)
	}
	l.quantity = l.quantity.Sub(qty)
	l.reserved = decimal.Max(l.reserved.Sub(qty), decimal.Zero)
	return nil
}

func (f *fakeRepo) PostJournalEntry(_ context.Context, in accounting.EntryInput, _ time.Time) (int64, error) {
	if err := accounting.ValidateBalanced(in.Lines); err != nil {
		return 0, err
	}
	f.entries = append(f.entries, in)
	return int64(len(f.entries)), nil
}

func (f *fakeRepo) InsertOpenItem(_ context.Context, item OpenItem) error {
	f.openItems = append(f.openItems, item)
	return nil
}

func (f *fakeRepo) NextNumber(_ context.Context, date time.Time) (string, error) {
	f.seq++
	return fmt.Sprintf("SO-%s-%04d", date.Format("20060102"), f.seq), nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seededService() (*Service, *fakeRepo) {
	repo := newFakeRepo()
	repo.seedLot(1, 10, 1, 10, "100", "10.0000")
	repo.seedLot(1, 11, 1, 20, "50", "12.0000")
	return NewService(repo, nil), repo
}

func createOrder(t *testing.T, svc *Service, qty string) *SalesOrder {
	t.Helper()
	so, err := svc.Create(context.Background(), OrderForm{
		CustomerID: 1,
		Currency:   "USD",
		Items:      []ItemForm{{ProductID: 1, Quantity: dec(qty), UnitPrice: dec("20.00")}},
	}, 7)
	require.NoError(t, err)
	return so
}

func TestCreateDefaultsToFIFO(t *testing.T) {
	svc, _ := seededService()
	so := createOrder(t, svc, "120")
	require.Equal(t, inventory.MethodFIFO, so.AllocationMethod)
	require.True(t, so.TotalAmount.Equal(dec("2400.00")))
	require.Equal(t, StatusDraft, so.Status)
}

func TestConfirmAllocatesAndReserves(t *testing.T) {
	svc, repo := seededService()
	so := createOrder(t, svc, "120")

	so, err := svc.Confirm(context.Background(), so.ID, 7)
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, so.Status)

	item := so.Items[0]
	require.Len(t, item.Allocations, 2)
	require.Equal(t, int64(10), item.Allocations[0].BatchID, "oldest batch first")
	require.True(t, item.Allocations[0].Quantity.Equal(dec("100")))
	require.True(t, item.Allocations[1].Quantity.Equal(dec("20")))

	// weighted unit cost: (100x10 + 20x12) / 120
	require.True(t, item.UnitCost.Equal(dec("10.3333")), "got %s", item.UnitCost)
	require.True(t, item.CostAmount.Equal(dec("1240.00")))
	require.True(t, so.TotalCost.Equal(dec("1240.00")))

	require.True(t, repo.lot(10, 1).reserved.Equal(dec("100")))
	require.True(t, repo.lot(11, 1).reserved.Equal(dec("20")))
}

func TestConfirmShortfallAbortsWhole(t *testing.T) {
	svc, repo := seededService()
	so := createOrder(t, svc, "200")

	_, err := svc.Confirm(context.Background(), so.ID, 7)
	require.ErrorIs(t, err, httpx.ErrValidation)
	require.Contains(t, err.Error(), "short by 50")

	// the fake applies writes immediately, reservations must be
	// absent because the shortfall fires before any write
	require.True(t, repo.lot(10, 1).reserved.IsZero())
}

func TestShipPartialThenFull(t *testing.T) {
	svc, repo := seededService()
	so := createOrder(t, svc, "120")
	so, err := svc.Confirm(context.Background(), so.ID, 7)
	require.NoError(t, err)

	shipDate := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	so, err = svc.Ship(context.Background(), so.ID, ShipRequest{
		ShippedDate: shipDate,
		Lines:       []ShipLine{{ItemID: so.Items[0].ID, Quantity: dec("70")}},
	}, 7)
	require.NoError(t, err)
	require.Equal(t, StatusProcessing, so.Status)
	require.Nil(t, so.ShippedDate)
	require.True(t, so.Items[0].ShippedQuantity.Equal(dec("70")))

	// stock left the oldest batch first
	require.True(t, repo.lot(10, 1).quantity.Equal(dec("30")))
	require.True(t, repo.lot(10, 1).reserved.Equal(dec("30")))

	// revenue 70x20, cost 70x10
	require.Len(t, repo.entries, 1)
	require.Len(t, repo.entries[0].Lines, 4)
	require.True(t, repo.entries[0].Lines[0].Debit.Equal(dec("1400.00")))
	require.True(t, repo.entries[0].Lines[2].Debit.Equal(dec("700.00")))
	require.Len(t, repo.openItems, 1)
	require.True(t, repo.openItems[0].Total.Equal(dec("1400.00")))
	require.Equal(t, shipDate.AddDate(0, 0, 30), repo.openItems[0].DueDate)

	so, err = svc.Ship(context.Background(), so.ID, ShipRequest{
		ShippedDate: shipDate.AddDate(0, 0, 2),
		Lines:       []ShipLine{{ItemID: so.Items[0].ID, Quantity: dec("50")}},
	}, 7)
	require.NoError(t, err)
	require.Equal(t, StatusShipped, so.Status)
	require.NotNil(t, so.ShippedDate)

	// 30 remaining in batch 10 shipped, then 20 from batch 11
	require.True(t, repo.lot(10, 1).quantity.Equal(dec("0")))
	require.True(t, repo.lot(11, 1).quantity.Equal(dec("30")))
	require.True(t, repo.lot(11, 1).reserved.IsZero())

	// second entry cost: 30x10 + 20x12 = 540
	require.Len(t, repo.entries, 2)
	require.True(t, repo.entries[1].Lines[2].Debit.Equal(dec("540.00")))
}

func TestShipRejectsOverShipment(t *testing.T) {
	svc, _ := seededService()
	so := createOrder(t, svc, "120")
	so, err := svc.Confirm(context.Background(), so.ID, 7)
	require.NoError(t, err)

	_, err = svc.Ship(context.Background(), so.ID, ShipRequest{
		ShippedDate: time.Now(),
		Lines:       []ShipLine{{ItemID: so.Items[0].ID, Quantity: dec("121")}},
	}, 7)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestShipRejectsDuplicateLinesOverRemaining(t *testing.T) {
	svc, repo := seededService()
	so := createOrder(t, svc, "120")
	so, err := svc.Confirm(context.Background(), so.ID, 7)
	require.NoError(t, err)

	// each line alone fits the remaining quantity; together they exceed it
	_, err = svc.Ship(context.Background(), so.ID, ShipRequest{
		ShippedDate: time.Now(),
		Lines: []ShipLine{
			{ItemID: so.Items[0].ID, Quantity: dec("70")},
			{ItemID: so.Items[0].ID, Quantity: dec("70")},
		},
	}, 7)
	require.ErrorIs(t, err, httpx.ErrValidation)
	require.Empty(t, repo.entries)
	require.Empty(t, repo.openItems)
	require.True(t, repo.lot(10, 1).quantity.Equal(dec("100")))
	require.True(t, repo.lot(10, 1).reserved.Equal(dec("100")))
}

func TestShipSplitLinesWithinRemaining(t *testing.T) {
	svc, repo := seededService()
	so := createOrder(t, svc, "120")
	so, err := svc.Confirm(context.Background(), so.ID, 7)
	require.NoError(t, err)

	so, err = svc.Ship(context.Background(), so.ID, ShipRequest{
		ShippedDate: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		Lines: []ShipLine{
			{ItemID: so.Items[0].ID, Quantity: dec("70")},
			{ItemID: so.Items[0].ID, Quantity: dec("50")},
		},
	}, 7)
	require.NoError(t, err)
	require.Equal(t, StatusShipped, so.Status)
	require.True(t, so.Items[0].ShippedQuantity.Equal(dec("120")))
	require.True(t, repo.lot(10, 1).quantity.IsZero())
	require.True(t, repo.lot(11, 1).reserved.IsZero())
}

func TestShipRequiresConfirmed(t *testing.T) {
	svc, _ := seededService()
	so := createOrder(t, svc, "10")

	_, err := svc.Ship(context.Background(), so.ID, ShipRequest{
		ShippedDate: time.Now(),
		Lines:       []ShipLine{{ItemID: so.Items[0].ID, Quantity: dec("10")}},
	}, 7)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCancelReleasesOutstandingReservations(t *testing.T) {
	svc, repo := seededService()
	so := createOrder(t, svc, "120")
	so, err := svc.Confirm(context.Background(), so.ID, 7)
	require.NoError(t, err)

	so, err = svc.Ship(context.Background(), so.ID, ShipRequest{
		ShippedDate: time.Now(),
		Lines:       []ShipLine{{ItemID: so.Items[0].ID, Quantity: dec("70")}},
	}, 7)
	require.NoError(t, err)

	cancelled, err := svc.Cancel(context.Background(), so.ID, 7)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)

	// only the unshipped 50 units are released
	require.True(t, repo.lot(10, 1).reserved.IsZero())
	require.True(t, repo.lot(11, 1).reserved.IsZero())
	require.True(t, repo.lot(10, 1).quantity.Equal(dec("30")))
	require.True(t, repo.lot(11, 1).quantity.Equal(dec("50")))
}

func TestCompleteOnlyFromShipped(t *testing.T) {
	svc, _ := seededService()
	so := createOrder(t, svc, "100")
	so, err := svc.Confirm(context.Background(), so.ID, 7)
	require.NoError(t, err)

	_, err = svc.Complete(context.Background(), so.ID, 7)
	require.ErrorIs(t, err, httpx.ErrValidation)

	so, err = svc.Ship(context.Background(), so.ID, ShipRequest{
		ShippedDate: time.Now(),
		Lines:       []ShipLine{{ItemID: so.Items[0].ID, Quantity: dec("100")}},
	}, 7)
	require.NoError(t, err)
	require.Equal(t, StatusShipped, so.Status)

	completed, err := svc.Complete(context.Background(), so.ID, 7)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, completed.Status)
}

func TestWeightedAverageConfirm(t *testing.T) {
	repo := newFakeRepo()
	repo.seedLot(1, 10, 1, 10, "100", "10.0000")
	repo.seedLot(1, 11, 1, 20, "100", "14.0000")
	svc := NewService(repo, nil)

	so, err := svc.Create(context.Background(), OrderForm{
		CustomerID:       1,
		AllocationMethod: inventory.MethodWeightedAverage,
		Currency:         "USD",
		Items:            []ItemForm{{ProductID: 1, Quantity: dec("150"), UnitPrice: dec("25.00")}},
	}, 7)
	require.NoError(t, err)

	so, err = svc.Confirm(context.Background(), so.ID, 7)
	require.NoError(t, err)

	// pool average (100x10 + 100x14) / 200 = 12
	item := so.Items[0]
	require.True(t, item.UnitCost.Equal(dec("12.0000")), "got %s", item.UnitCost)
	require.True(t, item.CostAmount.Equal(dec("1800.00")))
	for _, alloc := range item.Allocations {
		require.True(t, alloc.CostPerUnit.Equal(dec("12.0000")))
	}
}

func TestDeleteOnlyDraft(t *testing.T) {
	svc, _ := seededService()
	so := createOrder(t, svc, "10")
	require.NoError(t, svc.Delete(context.Background(), so.ID))

	so2 := createOrder(t, svc, "10")
	_, err := svc.Confirm(context.Background(), so2.ID, 7)
	require.NoError(t, err)
	err = svc.Delete(context.Background(), so2.ID)
	require.ErrorIs(t, err, httpx.ErrValidation)
}
