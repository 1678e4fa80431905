package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/C-W-Wong/omni-erp-sub000/internal/platform/db"
	"github.com/C-W-Wong/omni-erp-sub000/internal/platform/httpx"
	"github.com/C-W-Wong/omni-erp-sub000/internal/shared"
)

// Repository owns the transfer tables plus the inventory rows a
// transfer mutates so the moves stay in one transaction.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*Transfer, error)
	List(ctx context.Context, req ListTransfersRequest) ([]Transfer, int, error)
	Create(ctx context.Context, t Transfer) (int64, error)
	InsertItem(ctx context.Context, item Item) error
	UpdateStatus(ctx context.Context, id int64, status Status, completedAt *time.Time) error
	AvailableQuantity(ctx context.Context, productID, batchID, warehouseID int64) (decimal.Decimal, error)
	ReserveStock(ctx context.Context, productID, batchID, warehouseID int64, qty decimal.Decimal) error
	ReleaseStock(ctx context.Context, productID, batchID, warehouseID int64, qty decimal.Decimal) error
	DeductStock(ctx context.Context, productID, batchID, warehouseID int64, qty decimal.Decimal) error
	AddStock(ctx context.Context, productID, batchID, warehouseID int64, qty decimal.Decimal) error
	NextNumber(ctx context.Context, date time.Time) (string, error)
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

// NewRepository constructs a transfer repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const transferColumns = `id, number, source_warehouse_id, target_warehouse_id, status, notes, created_by, completed_at, created_at, updated_at`

func scanTransfer(row pgx.Row) (Transfer, error) {
	var t Transfer
	err := row.Scan(&t.ID, &t.Number, &t.SourceWarehouseID, &t.TargetWarehouseID, &t.Status, &t.Notes, &t.CreatedBy, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (r *repository) Get(ctx context.Context, id int64) (*Transfer, error) {
	row := r.db.QueryRow(ctx, `SELECT `+transferColumns+` FROM inventory_transfers WHERE id = $1`, id)
	t, err := scanTransfer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: transfer %d", httpx.ErrNotFound, id)
		}
		return nil, err
	}

	rows, err := r.db.Query(ctx, `SELECT id, transfer_id, product_id, batch_id, quantity FROM inventory_transfer_items WHERE transfer_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.TransferID, &it.ProductID, &it.BatchID, &it.Quantity); err != nil {
			return nil, err
		}
		t.Items = append(t.Items, it)
	}
	return &t, rows.Err()
}

func (r *repository) List(ctx context.Context, req ListTransfersRequest) ([]Transfer, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	if req.WarehouseID != nil {
		args = append(args, *req.WarehouseID)
		where += fmt.Sprintf(` AND (source_warehouse_id = $%d OR target_warehouse_id = $%d)`, len(args), len(args))
	}
	if req.Status != nil {
		args = append(args, *req.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM inventory_transfers`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, req.Offset)
	query := fmt.Sprintf(`SELECT %s FROM inventory_transfers%s ORDER BY id DESC LIMIT $%d OFFSET $%d`,
		transferColumns, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, t Transfer) (int64, error) {
	const query = `
		INSERT INTO inventory_transfers (number, source_warehouse_id, target_warehouse_id, status, notes, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id`
	var id int64
	err := r.db.QueryRow(ctx, query, t.Number, t.SourceWarehouseID, t.TargetWarehouseID, t.Status, t.Notes, t.CreatedBy).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, fmt.Errorf("%w: transfer number %s", httpx.ErrDuplicate, t.Number)
		}
		return 0, err
	}
	return id, nil
}

func (r *repository) InsertItem(ctx context.Context, item Item) error {
	_, err := r.db.Exec(ctx, `INSERT INTO inventory_transfer_items (transfer_id, product_id, batch_id, quantity) VALUES ($1, $2, $3, $4)`,
		item.TransferID, item.ProductID, item.BatchID, item.Quantity)
	return err
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status Status, completedAt *time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE inventory_transfers SET status = $2, completed_at = COALESCE($3, completed_at), updated_at = NOW() WHERE id = $1`,
		id, status, completedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: transfer %d", httpx.ErrNotFound, id)
	}
	return nil
}

func (r *repository) AvailableQuantity(ctx context.Context, productID, batchID, warehouseID int64) (decimal.Decimal, error) {
	var available decimal.Decimal
	err := r.db.QueryRow(ctx, `
		SELECT quantity - reserved_quantity FROM inventory
		WHERE product_id = $1 AND batch_id = $2 AND warehouse_id = $3`,
		productID, batchID, warehouseID).Scan(&available)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil
	}
	return available, err
}

func (r *repository) ReserveStock(ctx context.Context, productID, batchID, warehouseID int64, qty decimal.Decimal) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE inventory SET reserved_quantity = reserved_quantity + $4, updated_at = NOW()
		WHERE product_id = $1 AND batch_id = $2 AND warehouse_id = $3
			AND quantity - reserved_quantity >= $4`,
		productID, batchID, warehouseID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: insufficient stock for product %d batch %d", httpx.ErrPrecondition, productID, batchID)
	}
	return nil
}

func (r *repository) ReleaseStock(ctx context.Context, productID, batchID, warehouseID int64, qty decimal.Decimal) error {
	_, err := r.db.Exec(ctx, `
		UPDATE inventory SET reserved_quantity = GREATEST(reserved_quantity - $4, 0), updated_at = NOW()
		WHERE product_id = $1 AND batch_id = $2 AND warehouse_id = $3`,
		productID, batchID, warehouseID, qty)
	return err
}

func (r *repository) DeductStock(ctx context.Context, productID, batchID, warehouseID int64, qty decimal.Decimal) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE inventory
		SET quantity = quantity - $4, reserved_quantity = GREATEST(reserved_quantity - $4, 0), updated_at = NOW()
		WHERE product_id = $1 AND batch_id = $2 AND warehouse_id = $3`,
		productID, batchID, warehouseID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: inventory row for product %d batch %d", httpx.ErrNotFound, productID, batchID)
	}
	return nil
}

func (r *repository) AddStock(ctx context.Context, productID, batchID, warehouseID int64, qty decimal.Decimal) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO inventory (product_id, batch_id, warehouse_id, quantity, reserved_quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, NOW(), NOW())
		ON CONFLICT (product_id, batch_id, warehouse_id)
		DO UPDATE SET quantity = inventory.quantity + EXCLUDED.quantity, updated_at = NOW()`,
		productID, batchID, warehouseID, qty)
	return err
}

func (r *repository) NextNumber(ctx context.Context, date time.Time) (string, error) {
	return shared.NextDocNumber(ctx, r.db, "TRF", date)
}
