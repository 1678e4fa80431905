package customers

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

// Repository defines persistence operations for customers.
type Repository interface {
	List(ctx context.Context, filters mdshared.ListFilters) ([]Customer, int, error)
	Get(ctx context.Context, id int64) (Customer, error)
	Create(ctx context.Context, customer Customer) (Customer, error)
	Update(ctx context.Context, id int64, customer Customer) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs a customer repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const customerColumns = `id, code, name, email, phone, address, credit_limit, is_active, created_at, updated_at`

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Code, &c.Name, &c.Email, &c.Phone, &c.Address, &c.CreditLimit, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *repository) List(ctx context.Context, filters mdshared.ListFilters) ([]Customer, int, error) {
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
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM customers`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filters.Limit, filters.Offset)
	query := fmt.Sprintf(`SELECT %s FROM customers%s ORDER BY code LIMIT $%d OFFSET $%d`,
		customerColumns, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Customer, error) {
	row := r.db.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
	c, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, fmt.Errorf("%w: customer %d", httpx.ErrNotFound, id)
		}
		return Customer{}, err
	}
	return c, nil
}

func (r *repository) Create(ctx context.Context, customer Customer) (Customer, error) {
	const query = `
		INSERT INTO customers (code, name, email, phone, address, credit_limit, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING ` + customerColumns
	row := r.db.QueryRow(ctx, query,
		customer.Code, customer.Name, customer.Email, customer.Phone, customer.Address,
		customer.CreditLimit, customer.IsActive)
	created, err := scanCustomer(row)
	if err != nil {
		return Customer{}, mapPgError(err, customer.Code)
	}
	return created, nil
}

func (r *repository) Update(ctx context.Context, id int64, customer Customer) error {
	const query = `
		UPDATE customers
		SET code = $2, name = $3, email = $4, phone = $5, address = $6, credit_limit = $7, is_active = $8, updated_at = NOW()
		WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id,
		customer.Code, customer.Name, customer.Email, customer.Phone, customer.Address,
		customer.CreditLimit, customer.IsActive)
	if err != nil {
		return mapPgError(err, customer.Code)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: customer %d", httpx.ErrNotFound, id)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("%w: customer %d has existing orders", httpx.ErrPrecondition, id)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: customer %d", httpx.ErrNotFound, id)
	}
	return nil
}

func mapPgError(err error, code string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: customer code %s", httpx.ErrDuplicate, code)
	}
	return err
}
