package transfer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/C-W-Wong/omni-erp-sub000/internal/platform/httpx"
)

type stockKey struct {
	productID, batchID, warehouseID int64
}

type stock struct {
	quantity, reserved decimal.Decimal
}

type fakeRepo struct {
	transfers map[int64]*Transfer
	stocks    map[stockKey]*stock
	nextID    int64
	seq       int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{transfers: map[int64]*Transfer{}, stocks: map[stockKey]*stock{}}
}

func (f *fakeRepo) seed(productID, batchID, warehouseID int64, qty string) {
	f.stocks[stockKey{productID, batchID, warehouseID}] = &stock{quantity: dec(qty), reserved: decimal.Zero}
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, f)
}

func (f *fakeRepo) Get(_ context.Context, id int64) (*Transfer, error) {
	t, ok := f.transfers[id]
	if !ok {
		return nil, fmt.Errorf("%w: transfer %d", httpx.ErrNotFound, id)
	}
	cp := *t
	cp.Items = append([]Item(nil), t.Items...)
	return &cp, nil
}

func (f *fakeRepo) List(_ context.Context, _ ListTransfersRequest) ([]Transfer, int, error) {
	var out []Transfer
	for _, t := range f.transfers {
		out = append(out, *t)
	}
	return out, len(out), nil
}

func (f *fakeRepo) Create(_ context.Context, t Transfer) (int64, error) {
	f.nextID++
	t.ID = f.nextID
	f.transfers[t.ID] = &t
	return t.ID, nil
}

func (f *fakeRepo) InsertItem(_ context.Context, item Item) error {
	t, ok := f.transfers[item.TransferID]
	if !ok {
		return fmt.Errorf("%w: transfer %d", httpx.ErrNotFound, item.TransferID)
	}
	item.ID = int64(len(t.Items) + 1)
	t.Items = append(t.Items, item)
	return nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, id int64, status Status, completedAt *time.Time) error {
	t, ok := f.transfers[id]
	if !ok {
		return fmt.Errorf("%w: transfer %d", httpx.ErrNotFound, id)
	}
	t.Status = status
	if completedAt != nil {
		t.CompletedAt = completedAt
	}
	return nil
}

func (f *fakeRepo) AvailableQuantity(_ context.Context, productID, batchID, warehouseID int64) (decimal.Decimal, error) {
	s, ok := f.stocks[stockKey{productID, batchID, warehouseID}]
	if !ok {
		return decimal.Zero, nil
	}
	return s.quantity.Sub(s.reserved), nil
}

func (f *fakeRepo) ReserveStock(_ context.Context, productID, batchID, warehouseID int64, qty decimal.Decimal) error {
	s, ok := f.stocks[stockKey{productID, batchID, warehouseID}]
	if !ok || s.quantity.Sub(s.reserved).LessThan(qty) {
		return fmt.Errorf("%w: insufficient stock for product %d batch %d", httpx.ErrPrecondition, productID, batchID)
	}
	s.reserved = s.reserved.Add(qty)
	return nil
}

func (f *fakeRepo) ReleaseStock(_ context.Context, productID, batchID, warehouseID int64, qty decimal.Decimal) error {
	if s, ok := f.stocks[stockKey{productID, batchID, warehouseID}]; ok {
		s.reserved = decimal.Max(s.reserved.Sub(qty), decimal.Zero)
	}
	return nil
}

func (f *fakeRepo) DeductStock(_ context.Context, productID, batchID, warehouseID int64, qty decimal.Decimal) error {
	s, ok := f.stocks[stockKey{productID, batchID, warehouseID}]
	if !ok {
		return fmt.Errorf("%w: inventory row for product %d batch %d", httpx.ErrNotFound, productID, batchID)
	}
	s.quantity = s.quantity.Sub(qty)
	s.reserved = decimal.Max(s.reserved.Sub(qty), decimal.Zero)
	return nil
}

func (f *fakeRepo) AddStock(_ context.Context, productID, batchID, warehouseID int64, qty decimal.Decimal) error {
	key := stockKey{productID, batchID, warehouseID}
	if s, ok := f.stocks[key]; ok {
		s.quantity = s.quantity.Add(qty)
		return nil
	}
	f.stocks[key] = &stock{quantity: qty, reserved: decimal.Zero}
	return nil
}

func (f *fakeRepo) NextNumber(_ context.Context, date time.Time) (string, error) {
	f.seq++
	return fmt.Sprintf("TRF-%s-%04d", date.Format("20060102"), f.seq), nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func createTestTransfer(t *testing.T, svc *Service, repo *fakeRepo) *Transfer {
	t.Helper()
	repo.seed(1, 10, 1, "100")
	tr, err := svc.Create(context.Background(), CreateTransferRequest{
		SourceWarehouseID: 1,
		TargetWarehouseID: 2,
		Items:             []ItemForm{{ProductID: 1, BatchID: 10, Quantity: dec("40")}},
	}, 7)
	require.NoError(t, err)
	return tr
}

func TestCreateTransferValidatesWarehousesAndStock(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, false)

	_, err := svc.Create(context.Background(), CreateTransferRequest{
		SourceWarehouseID: 1,
		TargetWarehouseID: 1,
		Items:             []ItemForm{{ProductID: 1, BatchID: 10, Quantity: dec("1")}},
	}, 7)
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Create(context.Background(), CreateTransferRequest{
		SourceWarehouseID: 1,
		TargetWarehouseID: 2,
		Items:             []ItemForm{{ProductID: 1, BatchID: 10, Quantity: dec("5")}},
	}, 7)
	require.ErrorIs(t, err, httpx.ErrValidation, "no stock at source")

	svc.WithNow(func() time.Time { return time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC) })
	tr := createTestTransfer(t, svc, repo)
	require.Equal(t, StatusDraft, tr.Status)
	require.Equal(t, "TRF-20260201-0001", tr.Number)
}

func TestCreateRejectsCombinedDemandOverAvailable(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, false)
	repo.seed(1, 10, 1, "100")

	// each item alone fits the batch; together they exceed it
	_, err := svc.Create(context.Background(), CreateTransferRequest{
		SourceWarehouseID: 1,
		TargetWarehouseID: 2,
		Items: []ItemForm{
			{ProductID: 1, BatchID: 10, Quantity: dec("60")},
			{ProductID: 1, BatchID: 10, Quantity: dec("60")},
		},
	}, 7)
	require.ErrorIs(t, err, httpx.ErrValidation)

	tr, err := svc.Create(context.Background(), CreateTransferRequest{
		SourceWarehouseID: 1,
		TargetWarehouseID: 2,
		Items: []ItemForm{
			{ProductID: 1, BatchID: 10, Quantity: dec("60")},
			{ProductID: 1, BatchID: 10, Quantity: dec("40")},
		},
	}, 7)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, tr.Status)
}

func TestTransferFullLifecycleMovesStock(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, false)
	tr := createTestTransfer(t, svc, repo)

	tr, err := svc.Submit(context.Background(), tr.ID, 7)
	require.NoError(t, err)
	require.Equal(t, StatusPending, tr.Status)

	tr, err = svc.Approve(context.Background(), tr.ID, 7)
	require.NoError(t, err)
	require.Equal(t, StatusInTransit, tr.Status)

	src := repo.stocks[stockKey{1, 10, 1}]
	require.True(t, src.reserved.Equal(dec("40")))

	tr, err = svc.Complete(context.Background(), tr.ID, 7)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, tr.Status)
	require.NotNil(t, tr.CompletedAt)

	require.True(t, src.quantity.Equal(dec("60")))
	require.True(t, src.reserved.IsZero())
	dst := repo.stocks[stockKey{1, 10, 2}]
	require.NotNil(t, dst)
	require.True(t, dst.quantity.Equal(dec("40")))
}

func TestTransferGuardsTransitions(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, false)
	tr := createTestTransfer(t, svc, repo)

	_, err := svc.Approve(context.Background(), tr.ID, 7)
	require.ErrorIs(t, err, httpx.ErrValidation, "approve requires PENDING")

	_, err = svc.Complete(context.Background(), tr.ID, 7)
	require.ErrorIs(t, err, httpx.ErrValidation, "complete requires IN_TRANSIT")
}

func TestCancelReleasesReservationsOnlyInTransit(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, false)
	tr := createTestTransfer(t, svc, repo)

	_, err := svc.Submit(context.Background(), tr.ID, 7)
	require.NoError(t, err)
	_, err = svc.Approve(context.Background(), tr.ID, 7)
	require.NoError(t, err)

	src := repo.stocks[stockKey{1, 10, 1}]
	require.True(t, src.reserved.Equal(dec("40")))

	cancelled, err := svc.Cancel(context.Background(), tr.ID, 7)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)
	require.True(t, src.reserved.IsZero())
	require.True(t, src.quantity.Equal(dec("100")))

	_, err = svc.Cancel(context.Background(), tr.ID, 7)
	require.ErrorIs(t, err, httpx.ErrValidation, "terminal state")
}

func TestAllowNegativeSkipsAvailabilityCheck(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, true)

	tr, err := svc.Create(context.Background(), CreateTransferRequest{
		SourceWarehouseID: 1,
		TargetWarehouseID: 2,
		Items:             []ItemForm{{ProductID: 1, BatchID: 10, Quantity: dec("5")}},
	}, 7)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, tr.Status)
}
