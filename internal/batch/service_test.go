package batch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/C-W-Wong/omni-erp-sub000/internal/platform/httpx"
	"github.com/C-W-Wong/omni-erp-sub000/internal/shared"
)

type fakeRepo struct {
	batches    map[int64]*Batch
	items      map[int64]*LandedCostItem
	inventory  []invRow
	nextID     int64
	nextItemID int64
	seq        int
}

type invRow struct {
	productID, batchID, warehouseID int64
	quantity                        decimal.Decimal
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{batches: map[int64]*Batch{}, items: map[int64]*LandedCostItem{}}
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, f)
}

func (f *fakeRepo) Get(_ context.Context, id int64) (*Batch, error) {
	b, ok := f.batches[id]
	if !ok {
		return nil, fmt.Errorf("%w: batch %d", httpx.ErrNotFound, id)
	}
	cp := *b
	cp.CostItems = nil
	for _, it := range f.items {
		if it.BatchID == id {
			cp.CostItems = append(cp.CostItems, *it)
		}
	}
	return &cp, nil
}

func (f *fakeRepo) List(_ context.Context, _ ListBatchesRequest) ([]Batch, int, error) {
	var out []Batch
	for _, b := range f.batches {
		out = append(out, *b)
	}
	return out, len(out), nil
}

func (f *fakeRepo) Create(_ context.Context, b Batch) (int64, error) {
	f.nextID++
	b.ID = f.nextID
	f.batches[b.ID] = &b
	return b.ID, nil
}

func (f *fakeRepo) InsertInventoryRow(_ context.Context, productID, batchID, warehouseID int64, quantity decimal.Decimal) error {
	f.inventory = append(f.inventory, invRow{productID, batchID, warehouseID, quantity})
	return nil
}

func (f *fakeRepo) GetCostItem(_ context.Context, id int64) (*LandedCostItem, error) {
	it, ok := f.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: landed cost item %d", httpx.ErrNotFound, id)
	}
	cp := *it
	return &cp, nil
}

func (f *fakeRepo) ListCostItems(_ context.Context, batchID int64) ([]LandedCostItem, error) {
	var out []LandedCostItem
	for _, it := range f.items {
		if it.BatchID == batchID {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (f *fakeRepo) InsertCostItem(_ context.Context, item LandedCostItem) (int64, error) {
	f.nextItemID++
	item.ID = f.nextItemID
	f.items[item.ID] = &item
	return item.ID, nil
}

func (f *fakeRepo) UpdateCostItem(_ context.Context, item LandedCostItem) error {
	if _, ok := f.items[item.ID]; !ok {
		return fmt.Errorf("%w: landed cost item %d", httpx.ErrNotFound, item.ID)
	}
	f.items[item.ID] = &item
	return nil
}

func (f *fakeRepo) DeleteCostItem(_ context.Context, id int64) error {
	if _, ok := f.items[id]; !ok {
		return fmt.Errorf("%w: landed cost item %d", httpx.ErrNotFound, id)
	}
	delete(f.items, id)
	return nil
}

func (f *fakeRepo) UpdateCosts(_ context.Context, id int64, totalLanded, totalCost, costPerUnit decimal.Decimal) error {
	b, ok := f.batches[id]
	if !ok {
		return fmt.Errorf("%w: batch %d", httpx.ErrNotFound, id)
	}
	b.TotalLandedCost = totalLanded
	b.TotalCost = totalCost
	b.CostPerUnit = costPerUnit
	return nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, id int64, status Status, userID int64, at time.Time) error {
	b, ok := f.batches[id]
	if !ok {
		return fmt.Errorf("%w: batch %d", httpx.ErrNotFound, id)
	}
	b.Status = status
	if status == StatusConfirmed {
		b.ConfirmedBy = &userID
		b.ConfirmedAt = &at
	}
	return nil
}

func (f *fakeRepo) NextNumber(_ context.Context, date time.Time) (string, error) {
	f.seq++
	return fmt.Sprintf("BATCH-%s-%04d", date.Format("20060102"), f.seq), nil
}

type fakeAudit struct {
	logs []shared.AuditLog
}

func (f *fakeAudit) Record(_ context.Context, log shared.AuditLog) error {
	f.logs = append(f.logs, log)
	return nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func createTestBatch(t *testing.T, svc *Service) *Batch {
	t.Helper()
	b, err := svc.Create(context.Background(), CreateBatchRequest{
		ProductID:        1,
		WarehouseID:      1,
		Quantity:         dec("100"),
		UnitPurchaseCost: dec("10.00"),
		Currency:         "USD",
		ReceivedDate:     time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
	}, 7)
	require.NoError(t, err)
	return b
}

func TestCreateBatchComputesPurchaseCost(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)

	b := createTestBatch(t, svc)

	require.Equal(t, "BATCH-20260115-0001", b.Number)
	require.Equal(t, StatusDraft, b.Status)
	require.True(t, b.TotalPurchaseCost.Equal(dec("1000.00")), "got %s", b.TotalPurchaseCost)
	require.True(t, b.TotalLandedCost.IsZero())
	require.True(t, b.TotalCost.Equal(dec("1000.00")))
	require.True(t, b.CostPerUnit.Equal(dec("10.0000")))

	require.Len(t, repo.inventory, 1)
	require.Equal(t, b.ID, repo.inventory[0].batchID)
	require.True(t, repo.inventory[0].quantity.Equal(dec("100")))
}

func TestCreateBatchRejectsNonPositiveQuantity(t *testing.T) {
	svc := NewService(newFakeRepo(), nil)
	_, err := svc.Create(context.Background(), CreateBatchRequest{
		ProductID:        1,
		WarehouseID:      1,
		Quantity:         dec("0"),
		UnitPurchaseCost: dec("10.00"),
		Currency:         "USD",
		ReceivedDate:     time.Now(),
	}, 7)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestAddCostItemRecomputesTotals(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)
	b := createTestBatch(t, svc)

	updated, err := svc.AddCostItem(context.Background(), b.ID, CostItemForm{
		CostTypeID:   2,
		Amount:       dec("150.00"),
		Currency:     "USD",
		ExchangeRate: dec("1"),
	})
	require.NoError(t, err)

	require.True(t, updated.TotalLandedCost.Equal(dec("150.00")), "got %s", updated.TotalLandedCost)
	require.True(t, updated.TotalCost.Equal(dec("1150.00")), "got %s", updated.TotalCost)
	require.True(t, updated.CostPerUnit.Equal(dec("11.5000")), "got %s", updated.CostPerUnit)
	require.Len(t, updated.CostItems, 1)
}

func TestAddCostItemConvertsCurrency(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)
	b := createTestBatch(t, svc)

	updated, err := svc.AddCostItem(context.Background(), b.ID, CostItemForm{
		CostTypeID:   2,
		Amount:       dec("100.00"),
		Currency:     "EUR",
		ExchangeRate: dec("1.0837"),
	})
	require.NoError(t, err)

	require.True(t, updated.CostItems[0].AmountInBatchCurrency.Equal(dec("108.37")))
	require.True(t, updated.TotalLandedCost.Equal(dec("108.37")))
	require.True(t, updated.TotalCost.Equal(dec("1108.37")))
	require.True(t, updated.CostPerUnit.Equal(dec("11.0837")))
}

func TestUpdateAndRemoveCostItem(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)
	b := createTestBatch(t, svc)

	withItem, err := svc.AddCostItem(context.Background(), b.ID, CostItemForm{
		CostTypeID:   2,
		Amount:       dec("150.00"),
		Currency:     "USD",
		ExchangeRate: dec("1"),
	})
	require.NoError(t, err)
	itemID := withItem.CostItems[0].ID

	updated, err := svc.UpdateCostItem(context.Background(), b.ID, itemID, CostItemForm{
		CostTypeID:   3,
		Amount:       dec("200.00"),
		Currency:     "USD",
		ExchangeRate: dec("1"),
	})
	require.NoError(t, err)
	require.True(t, updated.TotalCost.Equal(dec("1200.00")))
	require.True(t, updated.CostPerUnit.Equal(dec("12.0000")))

	removed, err := svc.RemoveCostItem(context.Background(), b.ID, itemID)
	require.NoError(t, err)
	require.True(t, removed.TotalLandedCost.IsZero())
	require.True(t, removed.TotalCost.Equal(dec("1000.00")))
	require.True(t, removed.CostPerUnit.Equal(dec("10.0000")))
	require.Empty(t, removed.CostItems)
}

func TestUpdateCostItemRejectsForeignItem(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)
	first := createTestBatch(t, svc)
	second := createTestBatch(t, svc)

	withItem, err := svc.AddCostItem(context.Background(), first.ID, CostItemForm{
		CostTypeID:   2,
		Amount:       dec("50.00"),
		Currency:     "USD",
		ExchangeRate: dec("1"),
	})
	require.NoError(t, err)

	_, err = svc.UpdateCostItem(context.Background(), second.ID, withItem.CostItems[0].ID, CostItemForm{
		CostTypeID:   2,
		Amount:       dec("60.00"),
		Currency:     "USD",
		ExchangeRate: dec("1"),
	})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestConfirmLocksCostMutations(t *testing.T) {
	repo := newFakeRepo()
	audit := &fakeAudit{}
	svc := NewService(repo, audit)
	b := createTestBatch(t, svc)

	confirmed, err := svc.Confirm(context.Background(), b.ID, 7)
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.ConfirmedBy)
	require.Equal(t, int64(7), *confirmed.ConfirmedBy)

	_, err = svc.AddCostItem(context.Background(), b.ID, CostItemForm{
		CostTypeID:   2,
		Amount:       dec("10.00"),
		Currency:     "USD",
		ExchangeRate: dec("1"),
	})
	require.ErrorIs(t, err, httpx.ErrForbidden)

	_, err = svc.Confirm(context.Background(), b.ID, 7)
	require.ErrorIs(t, err, httpx.ErrValidation)

	require.Len(t, audit.logs, 1)
	require.Equal(t, "batch.confirm", audit.logs[0].Action)
}

func TestCancelTransitions(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)
	b := createTestBatch(t, svc)

	cancelled, err := svc.Cancel(context.Background(), b.ID, 7)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)

	_, err = svc.Confirm(context.Background(), b.ID, 7)
	require.ErrorIs(t, err, httpx.ErrValidation)
	_, err = svc.Cancel(context.Background(), b.ID, 7)
	require.ErrorIs(t, err, httpx.ErrValidation)
}
