package batch

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

// Repository defines persistence operations for the batch module.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*Batch, error)
	List(ctx context.Context, req ListBatchesRequest) ([]Batch, int, error)
	Create(ctx context.Context, b Batch) (int64, error)
	InsertInventoryRow(ctx context.Context, productID, batchID, warehouseID int64, quantity decimal.Decimal) error
	GetCostItem(ctx context.Context, id int64) (*LandedCostItem, error)
	ListCostItems(ctx context.Context, batchID int64) ([]LandedCostItem, error)
	InsertCostItem(ctx context.Context, item LandedCostItem) (int64, error)
	UpdateCostItem(ctx context.Context, item LandedCostItem) error
	DeleteCostItem(ctx context.Context, id int64) error
	UpdateCosts(ctx context.Context, id int64, totalLanded, totalCost, costPerUnit decimal.Decimal) error
	UpdateStatus(ctx context.Context, id int64, status Status, userID int64, at time.Time) error
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

// NewRepository constructs a batch repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const batchColumns = `id, number, product_id, warehouse_id, supplier_id, purchase_order_id,
	quantity, unit_purchase_cost, total_purchase_cost, total_landed_cost, total_cost, cost_per_unit,
	currency, received_date, status, confirmed_by, confirmed_at, created_by, created_at, updated_at`

func scanBatch(row pgx.Row) (Batch, error) {
	var b Batch
	err := row.Scan(
		&b.ID, &b.Number, &b.ProductID, &b.WarehouseID, &b.SupplierID, &b.PurchaseOrderID,
		&b.Quantity, &b.UnitPurchaseCost, &b.TotalPurchaseCost, &b.TotalLandedCost, &b.TotalCost, &b.CostPerUnit,
		&b.Currency, &b.ReceivedDate, &b.Status, &b.ConfirmedBy, &b.ConfirmedAt, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt,
	)
	return b, err
}

func (r *repository) Get(ctx context.Context, id int64) (*Batch, error) {
	row := r.db.QueryRow(ctx, `SELECT `+batchColumns+` FROM batches WHERE id = $1`, id)
	b, err := scanBatch(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: batch %d", httpx.ErrNotFound, id)
		}
		return nil, err
	}
	items, err := r.ListCostItems(ctx, id)
	if err != nil {
		return nil, err
	}
	b.CostItems = items
	return &b, nil
}

func (r *repository) List(ctx context.Context, req ListBatchesRequest) ([]Batch, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	if req.ProductID != nil {
		args = append(args, *req.ProductID)
		where += fmt.Sprintf(` AND product_id = $%d`, len(args))
	}
	if req.WarehouseID != nil {
		args = append(args, *req.WarehouseID)
		where += fmt.Sprintf(` AND warehouse_id = $%d`, len(args))
	}
	if req.Status != nil {
		args = append(args, *req.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM batches`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, req.Offset)
	query := fmt.Sprintf(`SELECT %s FROM batches%s ORDER BY received_date DESC, id DESC LIMIT $%d OFFSET $%d`,
		batchColumns, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, b)
	}
	return items, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, b Batch) (int64, error) {
	const query = `
		INSERT INTO batches (number, product_id, warehouse_id, supplier_id, purchase_order_id,
			quantity, unit_purchase_cost, total_purchase_cost, total_landed_cost, total_cost, cost_per_unit,
			currency, received_date, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW(), NOW())
		RETURNING id`
	var id int64
	err := r.db.QueryRow(ctx, query,
		b.Number, b.ProductID, b.WarehouseID, b.SupplierID, b.PurchaseOrderID,
		b.Quantity, b.UnitPurchaseCost, b.TotalPurchaseCost, b.TotalLandedCost, b.TotalCost, b.CostPerUnit,
		b.Currency, b.ReceivedDate, b.Status, b.CreatedBy,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, fmt.Errorf("%w: batch number %s", httpx.ErrDuplicate, b.Number)
		}
		return 0, err
	}
	return id, nil
}

func (r *repository) InsertInventoryRow(ctx context.Context, productID, batchID, warehouseID int64, quantity decimal.Decimal) error {
	const query = `
		INSERT INTO inventory (product_id, batch_id, warehouse_id, quantity, reserved_quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, NOW(), NOW())`
	_, err := r.db.Exec(ctx, query, productID, batchID, warehouseID, quantity)
	return err
}

const costItemColumns = `id, batch_id, cost_type_id, description, amount, currency, exchange_rate, amount_in_batch_currency, created_at, updated_at`

func scanCostItem(row pgx.Row) (LandedCostItem, error) {
	var it LandedCostItem
	err := row.Scan(&it.ID, &it.BatchID, &it.CostTypeID, &it.Description, &it.Amount, &it.Currency, &it.ExchangeRate, &it.AmountInBatchCurrency, &it.CreatedAt, &it.UpdatedAt)
	return it, err
}

func (r *repository) GetCostItem(ctx context.Context, id int64) (*LandedCostItem, error) {
	row := r.db.QueryRow(ctx, `SELECT `+costItemColumns+` FROM landed_cost_items WHERE id = $1`, id)
	it, err := scanCostItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: landed cost item %d", httpx.ErrNotFound, id)
		}
		return nil, err
	}
	return &it, nil
}

func (r *repository) ListCostItems(ctx context.Context, batchID int64) ([]LandedCostItem, error) {
	rows, err := r.db.Query(ctx, `SELECT `+costItemColumns+` FROM landed_cost_items WHERE batch_id = $1 ORDER BY id`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []LandedCostItem
	for rows.Next() {
		it, err := scanCostItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *repository) InsertCostItem(ctx context.Context, item LandedCostItem) (int64, error) {
	const query = `
		INSERT INTO landed_cost_items (batch_id, cost_type_id, description, amount, currency, exchange_rate, amount_in_batch_currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING id`
	var id int64
	err := r.db.QueryRow(ctx, query,
		item.BatchID, item.CostTypeID, item.Description, item.Amount, item.Currency, item.ExchangeRate, item.AmountInBatchCurrency,
	).Scan(&id)
	return id, err
}

func (r *repository) UpdateCostItem(ctx context.Context, item LandedCostItem) error {
	const query = `
		UPDATE landed_cost_items
		SET cost_type_id = $2, description = $3, amount = $4, currency = $5, exchange_rate = $6, amount_in_batch_currency = $7, updated_at = NOW()
		WHERE id = $1`
	tag, err := r.db.Exec(ctx, query,
		item.ID, item.CostTypeID, item.Description, item.Amount, item.Currency, item.ExchangeRate, item.AmountInBatchCurrency)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: landed cost item %d", httpx.ErrNotFound, item.ID)
	}
	return nil
}

func (r *repository) DeleteCostItem(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM landed_cost_items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: landed cost item %d", httpx.ErrNotFound, id)
	}
	return nil
}

func (r *repository) UpdateCosts(ctx context.Context, id int64, totalLanded, totalCost, costPerUnit decimal.Decimal) error {
	const query = `
		UPDATE batches
		SET total_landed_cost = $2, total_cost = $3, cost_per_unit = $4, updated_at = NOW()
		WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, totalLanded, totalCost, costPerUnit)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: batch %d", httpx.ErrNotFound, id)
	}
	return nil
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status Status, userID int64, at time.Time) error {
	var query string
	if status == StatusConfirmed {
		query = `UPDATE batches SET status = $2, confirmed_by = $3, confirmed_at = $4, updated_at = NOW() WHERE id = $1`
	} else {
		query = `UPDATE batches SET status = $2, updated_at = NOW() WHERE id = $1`
	}
	var tag pgconn.CommandTag
	var err error
	if status == StatusConfirmed {
		tag, err = r.db.Exec(ctx, query, id, status, userID, at)
	} else {
		tag, err = r.db.Exec(ctx, query, id, status)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: batch %d", httpx.ErrNotFound, id)
	}
	return nil
}

func (r *repository) NextNumber(ctx context.Context, date time.Time) (string, error) {
	return shared.NextDocNumber(ctx, r.db, "BATCH", date)
}
