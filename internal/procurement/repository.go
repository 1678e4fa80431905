package procurement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/C-W-Wong/omni-erp-sub000/internal/accounting"
	"github.com/C-W-Wong/omni-erp-sub000/internal/platform/db"
	"github.com/C-W-Wong/omni-erp-sub000/internal/platform/httpx"
	"github.com/C-W-Wong/omni-erp-sub000/internal/shared"
)

// ReceivedBatch is the DRAFT batch created for one received order line.
type ReceivedBatch struct {
	Number           string
	ProductID        int64
	WarehouseID      int64
	SupplierID       int64
	PurchaseOrderID  int64
	Quantity         decimal.Decimal
	UnitPurchaseCost decimal.Decimal
	TotalCost        decimal.Decimal
	CostPerUnit      decimal.Decimal
	Currency         string
	ReceivedDate     time.Time
	CreatedBy        int64
}

// OpenItem is the payable created for a goods receipt.
type OpenItem struct {
	Number     string
	SupplierID int64
	OrderID    int64
	Total      decimal.Decimal
	DueDate    time.Time
}

// Repository owns the purchase order tables plus everything a goods
// receipt mutates: batches, inventory, the journal, and AP open items.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*PurchaseOrder, error)
	List(ctx context.Context, req ListOrdersRequest) ([]PurchaseOrder, int, error)
	Create(ctx context.Context, po PurchaseOrder) (int64, error)
	InsertItem(ctx context.Context, item Item) error
	DeleteItems(ctx context.Context, orderID int64) error
	UpdateHeader(ctx context.Context, po PurchaseOrder) error
	UpdateStatus(ctx context.Context, id int64, status Status) error
	Delete(ctx context.Context, id int64) error
	UpdateItemReceived(ctx context.Context, itemID int64, received decimal.Decimal) error
	InsertReceivedBatch(ctx context.Context, b ReceivedBatch) (int64, error)
	InsertInventoryRow(ctx context.Context, productID, batchID, warehouseID int64, quantity decimal.Decimal) error
	PostJournalEntry(ctx context.Context, in accounting.EntryInput, at time.Time) (int64, error)
	InsertOpenItem(ctx context.Context, item OpenItem) error
	SupplierTermsDays(ctx context.Context, supplierID int64) (int, error)
	NextNumber(ctx context.Context, date time.Time) (string, error)
	NextBatchNumber(ctx context.Context, date time.Time) (string, error)
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository constructs a procurement repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const orderColumns = `id, number, supplier_id, warehouse_id, status, currency, total_amount, expected_date, notes, created_by, created_at, updated_at`

func scanOrder(row pgx.Row) (PurchaseOrder, error) {
	var po PurchaseOrder
	err := row.Scan(&po.ID, &po.Number, &po.SupplierID, &po.WarehouseID, &po.Status, &po.Currency,
		&po.TotalAmount, &po.ExpectedDate, &po.Notes, &po.CreatedBy, &po.CreatedAt, &po.UpdatedAt)
	return po, err
}

func (r *repository) Get(ctx context.Context, id int64) (*PurchaseOrder, error) {
	po, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: purchase order %d", httpx.ErrNotFound, id)
		}
		return nil, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, product_id, quantity, unit_price, line_total, received_quantity
		FROM purchase_order_items WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.LineTotal, &it.ReceivedQuantity); err != nil {
			return nil, err
		}
		po.Items = append(po.Items, it)
	}
	return &po, rows.Err()
}

func (r *repository) List(ctx context.Context, req ListOrdersRequest) ([]PurchaseOrder, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	if req.SupplierID != nil {
		args = append(args, *req.SupplierID)
		where += fmt.Sprintf(` AND supplier_id = $%d`, len(args))
	}
	if req.Status != nil {
		args = append(args, *req.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM purchase_orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, req.Offset)
	query := fmt.Sprintf(`SELECT %s FROM purchase_orders%s ORDER BY id DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var orders []PurchaseOrder
	for rows.Next() {
		po, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, po)
	}
	return orders, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, po PurchaseOrder) (int64, error) {
	const query = `
		INSERT INTO purchase_orders (number, supplier_id, warehouse_id, status, currency, total_amount, expected_date, notes, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING id`
	var id int64
	err := r.db.QueryRow(ctx, query,
		po.Number, po.SupplierID, po.WarehouseID, po.Status, po.Currency, po.TotalAmount, po.ExpectedDate, po.Notes, po.CreatedBy,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return 0, fmt.Errorf("%w: purchase order number %s", httpx.ErrDuplicate, po.Number)
			case "23503":
				return 0, fmt.Errorf("%w: supplier or warehouse does not exist", httpx.ErrPrecondition)
			}
		}
		return 0, err
	}
	return id, nil
}

func (r *repository) InsertItem(ctx context.Context, item Item) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO purchase_order_items (order_id, product_id, quantity, unit_price, line_total, received_quantity)
		VALUES ($1, $2, $3, $4, $5, 0)`,
		item.OrderID, item.ProductID, item.Quantity, item.UnitPrice, item.LineTotal)
	return err
}

func (r *repository) DeleteItems(ctx context.Context, orderID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM purchase_order_items WHERE order_id = $1`, orderID)
	return err
}

func (r *repository) UpdateHeader(ctx context.Context, po PurchaseOrder) error {
	const query = `
		UPDATE purchase_orders
		SET supplier_id = $2, warehouse_id = $3, currency = $4, total_amount = $5, expected_date = $6, notes = $7, updated_at = NOW()
		WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, po.ID, po.SupplierID, po.WarehouseID, po.Currency, po.TotalAmount, po.ExpectedDate, po.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: purchase order %d", httpx.ErrNotFound, po.ID)
	}
	return nil
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.db.Exec(ctx, `UPDATE purchase_orders SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: purchase order %d", httpx.ErrNotFound, id)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	if err := r.DeleteItems(ctx, id); err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM purchase_orders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: purchase order %d", httpx.ErrNotFound, id)
	}
	return nil
}

func (r *repository) UpdateItemReceived(ctx context.Context, itemID int64, received decimal.Decimal) error {
	tag, err := r.db.Exec(ctx, `UPDATE purchase_order_items SET received_quantity = $2 WHERE id = $1`, itemID, received)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: purchase order item %d", httpx.ErrNotFound, itemID)
	}
	return nil
}

func (r *repository) InsertReceivedBatch(ctx context.Context, b ReceivedBatch) (int64, error) {
	const query = `
		INSERT INTO batches (number, product_id, warehouse_id, supplier_id, purchase_order_id,
			quantity, unit_purchase_cost, total_purchase_cost, total_landed_cost, total_cost, cost_per_unit,
			currency, received_date, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $8, $9, $10, $11, 'DRAFT', $12, NOW(), NOW())
		RETURNING id`
	var id int64
	err := r.db.QueryRow(ctx, query,
		b.Number, b.ProductID, b.WarehouseID, b.SupplierID, b.PurchaseOrderID,
		b.Quantity, b.UnitPurchaseCost, b.TotalCost, b.CostPerUnit,
		b.Currency, b.ReceivedDate, b.CreatedBy,
	).Scan(&id)
	return id, err
}

func (r *repository) InsertInventoryRow(ctx context.Context, productID, batchID, warehouseID int64, quantity decimal.Decimal) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO inventory (product_id, batch_id, warehouse_id, quantity, reserved_quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, NOW(), NOW())`,
		productID, batchID, warehouseID, quantity)
	return err
}

func (r *repository) PostJournalEntry(ctx context.Context, in accounting.EntryInput, at time.Time) (int64, error) {
	return accounting.PostInTx(ctx, r.db, in, at)
}

func (r *repository) InsertOpenItem(ctx context.Context, item OpenItem) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO ap_open_items (number, supplier_id, order_id, total, paid_amount, balance, due_date, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, $4, $5, 'OPEN', NOW(), NOW())`,
		item.Number, item.SupplierID, item.OrderID, item.Total, item.DueDate)
	return err
}

func (r *repository) SupplierTermsDays(ctx context.Context, supplierID int64) (int, error) {
	var days int
	err := r.db.QueryRow(ctx, `SELECT COALESCE(payment_terms_days, 30) FROM suppliers WHERE id = $1`, supplierID).Scan(&days)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: supplier %d", httpx.ErrNotFound, supplierID)
	}
	return days, err
}

func (r *repository) NextNumber(ctx context.Context, date time.Time) (string, error) {
	return shared.NextDocNumber(ctx, r.db, "PO", date)
}

func (r *repository) NextBatchNumber(ctx context.Context, date time.Time) (string, error) {
	return shared.NextDocNumber(ctx, r.db, "BATCH", date)
}
