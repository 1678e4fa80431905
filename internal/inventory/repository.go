package inventory

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository reads stock levels and allocation candidates. Workflow
// modules mutate inventory rows inside their own transactions.
type Repository interface {
	Levels(ctx context.Context, filters LevelFilters) ([]Level, int, error)
	Valuation(ctx context.Context, warehouseID *int64) (*ValuationReport, error)
	AvailableLots(ctx context.Context, productID int64, warehouseID *int64) ([]Lot, error)
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db dbtx
}

// NewRepository constructs an inventory repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

func (r *repository) Levels(ctx context.Context, filters LevelFilters) ([]Level, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	if filters.ProductID != nil {
		args = append(args, *filters.ProductID)
		where += fmt.Sprintf(` AND i.product_id = $%d`, len(args))
	}
	if filters.WarehouseID != nil {
		args = append(args, *filters.WarehouseID)
		where += fmt.Sprintf(` AND i.warehouse_id = $%d`, len(args))
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM inventory i`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filters.Offset)
	query := fmt.Sprintf(`
		SELECT i.id, i.product_id, i.batch_id, i.warehouse_id, i.quantity, i.reserved_quantity,
			i.created_at, i.updated_at,
			b.number, b.status, b.cost_per_unit,
			p.sku, p.name
		FROM inventory i
		JOIN batches b ON b.id = i.batch_id
		JOIN products p ON p.id = i.product_id
		%s
		ORDER BY p.sku, b.received_date, i.id
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var levels []Level
	for rows.Next() {
		var l Level
		if err := rows.Scan(
			&l.ID, &l.ProductID, &l.BatchID, &l.WarehouseID, &l.Quantity, &l.ReservedQuantity,
			&l.CreatedAt, &l.UpdatedAt,
			&l.BatchNumber, &l.BatchStatus, &l.CostPerUnit,
			&l.ProductSKU, &l.ProductName,
		); err != nil {
			return nil, 0, err
		}
		l.Available = l.Row.Available()
		levels = append(levels, l)
	}
	return levels, total, rows.Err()
}

func (r *repository) Valuation(ctx context.Context, warehouseID *int64) (*ValuationReport, error) {
	query := `
		SELECT i.product_id, p.sku, p.name, i.warehouse_id,
			SUM(i.quantity - i.reserved_quantity) AS quantity,
			SUM((i.quantity - i.reserved_quantity) * b.cost_per_unit) AS value
		FROM inventory i
		JOIN batches b ON b.id = i.batch_id
		JOIN products p ON p.id = i.product_id
		WHERE b.status = 'CONFIRMED' AND i.quantity - i.reserved_quantity > 0`
	args := []interface{}{}
	if warehouseID != nil {
		args = append(args, *warehouseID)
		query += ` AND i.warehouse_id = $1`
	}
	query += `
		GROUP BY i.product_id, p.sku, p.name, i.warehouse_id
		ORDER BY p.sku, i.warehouse_id`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	report := &ValuationReport{TotalValue: decimal.Zero}
	for rows.Next() {
		var l ValuationLine
		if err := rows.Scan(&l.ProductID, &l.ProductSKU, &l.ProductName, &l.WarehouseID, &l.Quantity, &l.Value); err != nil {
			return nil, err
		}
		report.Lines = append(report.Lines, l)
		report.TotalValue = report.TotalValue.Add(l.Value)
	}
	return report, rows.Err()
}

func (r *repository) AvailableLots(ctx context.Context, productID int64, warehouseID *int64) ([]Lot, error) {
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

	var lots []Lot
	for rows.Next() {
		var lot Lot
		if err := rows.Scan(&lot.BatchID, &lot.WarehouseID, &lot.ReceivedDate, &lot.Available, &lot.CostPerUnit); err != nil {
			return nil, err
		}
		lots = append(lots, lot)
	}
	return lots, rows.Err()
}
