package warehouses

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/C-W-Wong/omni-erp-sub000/internal/masterdata/mdshared"
	"github.com/C-W-Wong/omni-erp-sub000/internal/platform/httpx"
)

// Repository defines persistence operations for warehouses.
type Repository interface {
	List(ctx context.Context, filters mdshared.ListFilters) ([]Warehouse, int, error)
	Get(ctx context.Context, id int64) (Warehouse, error)
	Create(ctx context.Context, warehouse Warehouse) (Warehouse, error)
	Update(ctx context.Context, id int64, warehouse Warehouse) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs a warehouse repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const warehouseColumns = `id, code, name, address, is_active, created_at, updated_at`

func scanWarehouse(row pgx.Row) (Warehouse, error) {
	var wh Warehouse
	err := row.Scan(&wh.ID, &wh.Code, &wh.Name, &wh.Address, &wh.IsActive, &wh.CreatedAt, &wh.UpdatedAt)
	return wh, err
}

func (r *repository) List(ctx context.Context, filters mdshared.ListFilters) ([]Warehouse, int, error) {
	filters.Normalize()

	where := ` WHERE 1=1`
	args := []interface{}{}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		where += fmt.Sprintf(` AND (name ILIKE $%d OR code ILIKE $%d)`, len(args), len(args))
	}
	if filters.IsActive != nil {
		args = append(args, *filters.IsActive)
		where += fmt.Sprintf(` AND is_active = $%d`, len(args))
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM warehouses`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filters.Limit, filters.Offset)
	query := fmt.Sprintf(`SELECT %s FROM warehouses%s ORDER BY code LIMIT $%d OFFSET $%d`,
		warehouseColumns, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Warehouse
	for rows.Next() {
		wh, err := scanWarehouse(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, wh)
	}
	return items, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Warehouse, error) {
	row := r.db.QueryRow(ctx, `SELECT `+warehouseColumns+` FROM warehouses WHERE id = $1`, id)
	wh, err := scanWarehouse(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Warehouse{}, fmt.Errorf("%w: warehouse %d", httpx.ErrNotFound, id)
		}
		return Warehouse{}, err
	}
	return wh, nil
}

func (r *repository) Create(ctx context.Context, warehouse Warehouse) (Warehouse, error) {
	const query = `
		INSERT INTO warehouses (code, name, address, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING ` + warehouseColumns
	row := r.db.QueryRow(ctx, query, warehouse.Code, warehouse.Name, warehouse.Address, warehouse.IsActive)
	created, err := scanWarehouse(row)
	if err != nil {
		return Warehouse{}, mapPgError(err, warehouse.Code)
	}
	return created, nil
}

func (r *repository) Update(ctx context.Context, id int64, warehouse Warehouse) error {
	const query = `
		UPDATE warehouses
		SET code = $2, name = $3, address = $4, is_active = $5, updated_at = NOW()
		WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, warehouse.Code, warehouse.Name, warehouse.Address, warehouse.IsActive)
	if err != nil {
		return mapPgError(err, warehouse.Code)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: warehouse %d", httpx.ErrNotFound, id)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM warehouses WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("%w: warehouse %d holds inventory or documents", httpx.ErrPrecondition, id)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: warehouse %d", httpx.ErrNotFound, id)
	}
	return nil
}

func mapPgError(err error, code string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: warehouse code %s", httpx.ErrDuplicate, code)
	}
	return err
}
