package sales

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
	"github.com/C-W-Wong/omni-erp-sub000/internal/inventory"
	"github.com/C-W-Wong/omni-erp-sub000/internal/platform/db"
	"github.com/C-W-Wong/omni-erp-sub000/internal/platform/httpx"
	"github.com/C-W-Wong/omni-erp-sub000/internal/shared"
)

// OpenItem is the receivable created for a shipment.
type OpenItem struct {
	Number     string
	CustomerID int64
	OrderID    int64
	Total      decimal.Decimal
	DueDate    time.Time
}

// Repository owns the sales order tables plus everything a confirm or
// ship mutates: allocations, inventory reservations, the journal, and
// AR open items.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*SalesOrder, error)
	List(ctx context.Context, req ListOrdersRequest) ([]SalesOrder, int, error)
	Create(ctx context.Context, so SalesOrder) (int64, error)
	InsertItem(ctx context.Context, item Item) (int64, error)
	DeleteItems(ctx context.Context, orderID int64) error
	UpdateHeader(ctx context.Context, so SalesOrder) error
	UpdateStatus(ctx context.Context, id int64, status Status, shippedDate *time.Time) error
	UpdateTotalCost(ctx context.Context, id int64, totalCost decimal.Decimal) error
	Delete(ctx context.Context, id int64) error

	AvailableLots(ctx context.Context, productID int64, warehouseID *int64) ([]inventory.Lot, error)
	InsertAllocation(ctx context.Context, a Allocation) error
	DeleteAllocations(ctx context.Context, orderID int64) error
	UpdateAllocationShipped(ctx context.Context, id int64, shipped decimal.Decimal) error
	UpdateItemCost(ctx context.Context, itemID int64, unitCost, costAmount decimal.Decimal) error
	UpdateItemShipped(ctx context.Context, itemID int64, shipped decimal.Decimal) error
	ReserveStock(ctx context.Context, productID, batchID, warehouseID int64, qty decimal.Decimal) error
	ReleaseStock(ctx context.Context, batchID, warehouseID int64, qty decimal.Decimal) error
	DeductShippedStock(ctx context.Context, batchID, warehouseID int64, qty decimal.Decimal) error

	PostJournalEntry(ctx context.Context, in accounting.EntryInput, at time.Time) (int64, error)
	InsertOpenItem(ctx context.Context, item OpenItem) error
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

// NewRepository constructs a sales repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const orderColumns = `id, number, customer_id, warehouse_id, allocation_method, status, currency, total_amount, total_cost, shipped_date, notes, created_by, created_at, updated_at`

func scanOrder(row pgx.Row) (SalesOrder, error) {
	var so SalesOrder
	err := row.Scan(&so.ID, &so.Number, &so.CustomerID, &so.WarehouseID, &so.AllocationMethod, &so.Status,
		&so.Currency, &so.TotalAmount, &so.TotalCost, &so.ShippedDate, &so.Notes, &so.CreatedBy, &so.CreatedAt, &so.UpdatedAt)
	return so, err
}

func (r *repository) Get(ctx context.Context, id int64) (*SalesOrder, error) {
	so, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM sales_orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: sales order %d", httpx.ErrNotFound, id)
		}
		return nil, err
	}

	itemRows, err := r.db.Query(ctx, `
		SELECT id, order_id, product_id, quantity, unit_price, line_total, shipped_quantity, unit_cost, cost_amount
		FROM sales_order_items WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()
	itemIdx := map[int64]int{}
	for itemRows.Next() {
		var it Item
		if err := itemRows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.LineTotal,
			&it.ShippedQuantity, &it.UnitCost, &it.CostAmount); err != nil {
			return nil, err
		}
		itemIdx[it.ID] = len(so.Items)
		so.Items = append(so.Items, it)
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	allocRows, err := r.db.Query(ctx, `
		SELECT a.id, a.item_id, a.batch_id, a.warehouse_id, a.quantity, a.shipped_quantity, a.cost_per_unit
		FROM sales_order_allocations a
		JOIN sales_order_items i ON i.id = a.item_id
		WHERE i.order_id = $1 ORDER BY a.id`, id)
	if err != nil {
		return nil, err
	}
	defer allocRows.Close()
	for allocRows.Next() {
		var a Allocation
		if err := allocRows.Scan(&a.ID, &a.ItemID, &a.BatchID, &a.WarehouseID, &a.Quantity, &a.ShippedQuantity, &a.CostPerUnit); err != nil {
			return nil, err
		}
		if idx, ok := itemIdx[a.ItemID]; ok {
			so.Items[idx].Allocations = append(so.Items[idx].Allocations, a)
		}
	}
	return &so, allocRows.Err()
}

func (r *repository) List(ctx context.Context, req ListOrdersRequest) ([]SalesOrder, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	if req.CustomerID != nil {
		args = append(args, *req.CustomerID)
		where += fmt.Sprintf(` AND customer_id = $%d`, len(args))
	}
	if req.Status != nil {
		args = append(args, *req.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM sales_orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, req.Offset)
	query := fmt.Sprintf(`SELECT %s FROM sales_orders%s ORDER BY id DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var orders []SalesOrder
	for rows.Next() {
		so, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, so)
	}
	return orders, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, so SalesOrder) (int64, error) {
	const query = `
		INSERT INTO sales_orders (number, customer_id, warehouse_id, allocation_method, status, currency, total_amount, total_cost, notes, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $9, NOW(), NOW())
		RETURNING id`
	var id int64
	err := r.db.QueryRow(ctx, query,
		so.Number, so.CustomerID, so.WarehouseID, so.AllocationMethod, so.Status, so.Currency, so.TotalAmount, so.Notes, so.CreatedBy,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return 0, fmt.Errorf("%w: sales order number %s", httpx.ErrDuplicate, so.Number)
			case "23503":
				return 0, fmt.Errorf("%w: customer or warehouse does not exist", httpx.ErrPrecondition)
			}
		}
		return 0, err
	}
	return id, nil
}

func (r *repository) InsertItem(ctx context.Context, item Item) (int64, error) {
	const query = `
		INSERT INTO sales_order_items (order_id, product_id, quantity, unit_price, line_total, shipped_quantity, unit_cost, cost_amount)
		VALUES ($1, $2, $3, $4, $5, 0, 0, 0)
		RETURNING id`
	var id int64
	err := r.db.QueryRow(ctx, query, item.OrderID, item.ProductID, item.Quantity, item.UnitPrice, item.LineTotal).Scan(&id)
	return id, err
}

func (r *repository) DeleteItems(ctx context.Context, orderID int64) error {
	if err := r.DeleteAllocations(ctx, orderID); err != nil {
		return err
	}
	_, err := r.db.Exec(ctx, `DELETE FROM sales_order_items WHERE order_id = $1`, orderID)
	return err
}

func (r *repository) UpdateHeader(ctx context.Context, so SalesOrder) error {
	const query = `
		UPDATE sales_orders
		SET customer_id = $2, warehouse_id = $3, allocation_method = $4, currency = $5, total_amount = $6, notes = $7, updated_at = NOW()
		WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, so.ID, so.CustomerID, so.WarehouseID, so.AllocationMethod, so.Currency, so.TotalAmount, so.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: sales order %d", httpx.ErrNotFound, so.ID)
	}
	return nil
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status Status, shippedDate *time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE sales_orders SET status = $2, shipped_date = COALESCE($3, shipped_date), updated_at = NOW()
		WHERE id = $1`, id, status, shippedDate)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: sales order %d", httpx.ErrNotFound, id)
	}
	return nil
}

func (r *repository) UpdateTotalCost(ctx context.Context, id int64, totalCost decimal.Decimal) error {
	tag, err := r.db.Exec(ctx, `UPDATE sales_orders SET total_cost = $2, updated_at = NOW() WHERE id = $1`, id, totalCost)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: sales order %d", httpx.ErrNotFound, id)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	if err := r.DeleteItems(ctx, id); err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM sales_orders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: sales order %d", httpx.ErrNotFound, id)
	}
	return nil
}

func (r *repository) AvailableLots(ctx context.Context, productID int64, warehouseID *int64) ([]inventory.Lot, error) {
	query := `
		SELECT i.batch_id, i.warehouse_id, b.received_date,
			i.quantity - i.reserved_quantity AS available,
			b.cost_per_unit
		FROM inventory i
		JOIN batches b ON b.id = i.batch_id
		WHERE i.product_id = $1 AND b.status = 'CONFIRMED'
			AND i.quantity - i.reserved_quantity > 0`
	args := []interface{}{productID}
	if warehouseID != nil {
		args = append(args, *warehouseID)
		query += ` AND i.warehouse_id = $2`
	}
	query += ` ORDER BY b.received_date, i.batch_id`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lots []inventory.Lot
	for rows.Next() {
		var lot inventory.Lot
		if err := rows.Scan(&lot.BatchID, &lot.WarehouseID, &lot.ReceivedDate, &lot.Available, &lot.CostPerUnit); err != nil {
			return nil, err
		}
		lots = append(lots, lot)
	}
	return lots, rows.Err()
}

func (r *repository) InsertAllocation(ctx context.Context, a Allocation) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO sales_order_allocations (item_id, batch_id, warehouse_id, quantity, shipped_quantity, cost_per_unit)
		VALUES ($1, $2, $3, $4, 0, $5)`,
		a.ItemID, a.BatchID, a.WarehouseID, a.Quantity, a.CostPerUnit)
	return err
}

func (r *repository) DeleteAllocations(ctx context.Context, orderID int64) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM sales_order_allocations
		WHERE item_id IN (SELECT id FROM sales_order_items WHERE order_id = $1)`, orderID)
	return err
}

func (r *repository) UpdateAllocationShipped(ctx context.Context, id int64, shipped decimal.Decimal) error {
	tag, err := r.db.Exec(ctx, `UPDATE sales_order_allocations SET shipped_quantity = $2 WHERE id = $1`, id, shipped)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: allocation %d", httpx.ErrNotFound, id)
	}
	return nil
}

func (r *repository) UpdateItemCost(ctx context.Context, itemID int64, unitCost, costAmount decimal.Decimal) error {
	tag, err := r.db.Exec(ctx, `UPDATE sales_order_items SET unit_cost = $2, cost_amount = $3 WHERE id = $1`, itemID, unitCost, costAmount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: sales order item %d", httpx.ErrNotFound, itemID)
	}
	return nil
}

func (r *repository) UpdateItemShipped(ctx context.Context, itemID int64, shipped decimal.Decimal) error {
	tag, err := r.db.Exec(ctx, `UPDATE sales_order_items SET shipped_quantity = $2 WHERE id = $1`, itemID, shipped)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: sales order item %d", httpx.ErrNotFound, itemID)
	}
	return nil
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

func (r *repository) ReleaseStock(ctx context.Context, batchID, warehouseID int64, qty decimal.Decimal) error {
	_, err := r.db.Exec(ctx, `
		UPDATE inventory SET reserved_quantity = GREATEST(reserved_quantity - $3, 0), updated_at = NOW()
		WHERE batch_id = $1 AND warehouse_id = $2`,
		batchID, warehouseID, qty)
	return err
}

func (r *repository) DeductShippedStock(ctx context.Context, batchID, warehouseID int64, qty decimal.Decimal) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE inventory
		SET quantity = quantity - $3, reserved_quantity = GREATEST(reserved_quantity - $3, 0), updated_at = NOW()
		WHERE batch_id = $1 AND warehouse_id = $2`,
		batchID, warehouseID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: inventory row for batch %d", httpx.ErrNotFound, batchID)
	}
	return nil
}

func (r *repository) PostJournalEntry(ctx context.Context, in accounting.EntryInput, at time.Time) (int64, error) {
	return accounting.PostInTx(ctx, r.db, in, at)
}

func (r *repository) InsertOpenItem(ctx context.Context, item OpenItem) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO ar_open_items (number, customer_id, order_id, total, paid_amount, balance, due_date, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, $4, $5, 'OPEN', NOW(), NOW())`,
		item.Number, item.CustomerID, item.OrderID, item.Total, item.DueDate)
	return err
}

func (r *repository) NextNumber(ctx context.Context, date time.Time) (string, error) {
	return shared.NextDocNumber(ctx, r.db, "SO", date)
}
