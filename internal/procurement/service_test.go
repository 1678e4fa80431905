package procurement

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/C-W-Wong/omni-erp-sub000/internal/accounting"
	"github.com/C-W-Wong/omni-erp-sub000/internal/platform/httpx"
)

type fakeBatch struct {
	id    int64
	batch ReceivedBatch
}

type fakeRepo struct {
	orders      map[int64]*PurchaseOrder
	batches     []fakeBatch
	inventory   map[int64]decimal.Decimal
	entries     []accounting.EntryInput
	openItems   []OpenItem
	termsDays   int
	nextID      int64
	nextItemID  int64
	nextBatchID int64
	seq         int
	batchSeq    int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{orders: map[int64]*PurchaseOrder{}, inventory: map[int64]decimal.Decimal{}, termsDays: 30}
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, f)
}

func (f *fakeRepo) Get(_ context.Context, id int64) (*PurchaseOrder, error) {
	po, ok := f.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: purchase order %d", httpx.ErrNotFound, id)
	}
	cp := *po
	cp.Items = append([]Item(nil), po.Items...)
	return &cp, nil
}

func (f *fakeRepo) List(_ context.Context, _ ListOrdersRequest) ([]PurchaseOrder, int, error) {
	var out []PurchaseOrder
	for _, po := range f.orders {
		out = append(out, *po)
	}
	return out, len(out), nil
}

func (f *fakeRepo) Create(_ context.Context, po PurchaseOrder) (int64, error) {
	f.nextID++
	po.ID = f.nextID
	f.orders[po.ID] = &po
	return po.ID, nil
}

func (f *fakeRepo) InsertItem(_ context.Context, item Item) error {
	po, ok := f.orders[item.OrderID]
	if !ok {
		return fmt.Errorf("%w: purchase order %d", httpx.ErrNotFound, item.OrderID)
	}
	f.nextItemID++
	item.ID = f.nextItemID
	po.Items = append(po.Items, item)
	return nil
}

func (f *fakeRepo) DeleteItems(_ context.Context, orderID int64) error {
	if po, ok := f.orders[orderID]; ok {
		po.Items = nil
	}
	return nil
}

func (f *fakeRepo) UpdateHeader(_ context.Context, po PurchaseOrder) error {
	existing, ok := f.orders[po.ID]
	if !ok {
		return fmt.Errorf("%w: purchase order %d", httpx.ErrNotFound, po.ID)
	}
	po.Items = existing.Items
	po.Status = existing.Status
	f.orders[po.ID] = &po
	return nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, id int64, status Status) error {
	po, ok := f.orders[id]
	if !ok {
		return fmt.Errorf("%w: purchase order %d", httpx.ErrNotFound, id)
	}
	po.Status = status
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, id int64) error {
	if _, ok := f.orders[id]; !ok {
		return fmt.Errorf("%w: purchase order %d", httpx.ErrNotFound, id)
	}
	delete(f.orders, id)
	return nil
}

func (f *fakeRepo) UpdateItemReceived(_ context.Context, itemID int64, received decimal.Decimal) error {
	for _, po := range f.orders {
		for i := range po.Items {
			if po.Items[i].ID == itemID {
				po.Items[i].ReceivedQuantity = received
				return nil
			}
		}
	}
	return fmt.Errorf("%w: purchase order item %d", httpx.ErrNotFound, itemID)
}

func (f *fakeRepo) InsertReceivedBatch(_ context.Context, b ReceivedBatch) (int64, error) {
	f.nextBatchID++
	f.batches = append(f.batches, fakeBatch{id: f.nextBatchID, batch: b})
	return f.nextBatchID, nil
}

func (f *fakeRepo) InsertInventoryRow(_ context.Context, _, batchID, _ int64, quantity decimal.Decimal) error {
	f.inventory[batchID] = quantity
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

func (f *fakeRepo) SupplierTermsDays(_ context.Context, _ int64) (int, error) {
	return f.termsDays, nil
}

func (f *fakeRepo) NextNumber(_ context.Context, date time.Time) (string, error) {
	f.seq++
	return fmt.Sprintf("PO-%s-%04d", date.Format("20060102"), f.seq), nil
}

func (f *fakeRepo) NextBatchNumber(_ context.Context, date time.Time) (string, error) {
	f.batchSeq++
	return fmt.Sprintf("BATCH-%s-%04d", date.Format("20060102"), f.batchSeq), nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testOrderForm() OrderForm {
	return OrderForm{
		SupplierID:  1,
		WarehouseID: 1,
		Currency:    "USD",
		Items: []ItemForm{
			{ProductID: 1, Quantity: dec("100"), UnitPrice: dec("10.00")},
			{ProductID: 2, Quantity: dec("50"), UnitPrice: dec("4.50")},
		},
	}
}

func confirmedOrder(t *testing.T, svc *Service) *PurchaseOrder {
	t.Helper()
	po, err := svc.Create(context.Background(), testOrderForm(), 7)
	require.NoError(t, err)
	po, err = svc.Confirm(context.Background(), po.ID, 7)
	require.NoError(t, err)
	return po
}

func TestCreateOrderComputesTotals(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)

	po, err := svc.Create(context.Background(), testOrderForm(), 7)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, po.Status)
	require.True(t, po.TotalAmount.Equal(dec("1225.00")), "got %s", po.TotalAmount)
	require.Len(t, po.Items, 2)
	require.True(t, po.Items[0].LineTotal.Equal(dec("1000.00")))
	require.True(t, po.Items[1].LineTotal.Equal(dec("225.00")))
}

func TestUpdateOnlyDraft(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)
	po := confirmedOrder(t, svc)

	_, err := svc.Update(context.Background(), po.ID, testOrderForm())
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestUpdateReplacesItems(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)
	po, err := svc.Create(context.Background(), testOrderForm(), 7)
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), po.ID, OrderForm{
		SupplierID:  1,
		WarehouseID: 2,
		Currency:    "USD",
		Items:       []ItemForm{{ProductID: 3, Quantity: dec("10"), UnitPrice: dec("2.00")}},
	})
	require.NoError(t, err)
	require.Len(t, updated.Items, 1)
	require.True(t, updated.TotalAmount.Equal(dec("20.00")))
	require.Equal(t, int64(2), updated.WarehouseID)
}

func TestReceivePartialThenFull(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)
	po := confirmedOrder(t, svc)
	receivedDate := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	po, err := svc.Receive(context.Background(), po.ID, ReceiveRequest{
		ReceivedDate: receivedDate,
		Lines:        []ReceiveLine{{ItemID: po.Items[0].ID, Quantity: dec("60")}},
	}, 7)
	require.NoError(t, err)
	require.Equal(t, StatusPartial, po.Status)
	require.True(t, po.Items[0].ReceivedQuantity.Equal(dec("60")))

	// one DRAFT batch with the order's prices
	require.Len(t, repo.batches, 1)
	b := repo.batches[0].batch
	require.Equal(t, "BATCH-20260401-0001", b.Number)
	require.True(t, b.Quantity.Equal(dec("60")))
	require.True(t, b.TotalCost.Equal(dec("600.00")))
	require.True(t, b.CostPerUnit.Equal(dec("10.0000")))
	require.Equal(t, po.ID, b.PurchaseOrderID)
	require.True(t, repo.inventory[repo.batches[0].id].Equal(dec("60")))

	// journal entry and payable for the received value
	require.Len(t, repo.entries, 1)
	require.True(t, repo.entries[0].Lines[0].Debit.Equal(dec("600.00")))
	require.Len(t, repo.openItems, 1)
	require.True(t, repo.openItems[0].Total.Equal(dec("600.00")))
	require.Equal(t, receivedDate.AddDate(0, 0, 30), repo.openItems[0].DueDate)

	po, err = svc.Receive(context.Background(), po.ID, ReceiveRequest{
		ReceivedDate: receivedDate.AddDate(0, 0, 3),
		Lines: []ReceiveLine{
			{ItemID: po.Items[0].ID, Quantity: dec("40")},
			{ItemID: po.Items[1].ID, Quantity: dec("50")},
		},
	}, 7)
	require.NoError(t, err)
	require.Equal(t, StatusReceived, po.Status)
	require.Len(t, repo.batches, 3)
	require.Len(t, repo.entries, 2)
}

func TestReceiveRejectsOverReceipt(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)
	po := confirmedOrder(t, svc)

	_, err := svc.Receive(context.Background(), po.ID, ReceiveRequest{
		ReceivedDate: time.Now(),
		Lines:        []ReceiveLine{{ItemID: po.Items[0].ID, Quantity: dec("101")}},
	}, 7)
	require.ErrorIs(t, err, httpx.ErrValidation)
	require.Empty(t, repo.batches)
}

func TestReceiveRejectsDuplicateLinesOverOrdered(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)
	po := confirmedOrder(t, svc)

	// each line alone fits the remaining quantity; together they exceed it
	_, err := svc.Receive(context.Background(), po.ID, ReceiveRequest{
		ReceivedDate: time.Now(),
		Lines: []ReceiveLine{
			{ItemID: po.Items[0].ID, Quantity: dec("60")},
			{ItemID: po.Items[0].ID, Quantity: dec("60")},
		},
	}, 7)
	require.ErrorIs(t, err, httpx.ErrValidation)
	require.Empty(t, repo.batches)
	require.Empty(t, repo.openItems)

	got, err := svc.Get(context.Background(), po.ID)
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, got.Status)
	require.True(t, got.Items[0].ReceivedQuantity.IsZero())
}

func TestReceiveSplitLinesWithinOrdered(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)
	po := confirmedOrder(t, svc)

	po, err := svc.Receive(context.Background(), po.ID, ReceiveRequest{
		ReceivedDate: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		Lines: []ReceiveLine{
			{ItemID: po.Items[0].ID, Quantity: dec("40")},
			{ItemID: po.Items[0].ID, Quantity: dec("60")},
		},
	}, 7)
	require.NoError(t, err)
	require.True(t, po.Items[0].ReceivedQuantity.Equal(dec("100")))
	require.Len(t, repo.batches, 2)
}

func TestReceiveRequiresConfirmed(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)
	po, err := svc.Create(context.Background(), testOrderForm(), 7)
	require.NoError(t, err)

	_, err = svc.Receive(context.Background(), po.ID, ReceiveRequest{
		ReceivedDate: time.Now(),
		Lines:        []ReceiveLine{{ItemID: po.Items[0].ID, Quantity: dec("10")}},
	}, 7)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCancelGuards(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)
	po := confirmedOrder(t, svc)

	_, err := svc.Receive(context.Background(), po.ID, ReceiveRequest{
		ReceivedDate: time.Now(),
		Lines: []ReceiveLine{
			{ItemID: po.Items[0].ID, Quantity: dec("100")},
			{ItemID: po.Items[1].ID, Quantity: dec("50")},
		},
	}, 7)
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), po.ID, 7)
	require.ErrorIs(t, err, httpx.ErrValidation, "cancel from RECEIVED")
}

func TestDeleteOnlyDraft(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil)

	po, err := svc.Create(context.Background(), testOrderForm(), 7)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(context.Background(), po.ID))

	confirmed := confirmedOrder(t, svc)
	err = svc.Delete(context.Background(), confirmed.ID)
	require.ErrorIs(t, err, httpx.ErrValidation)
}
