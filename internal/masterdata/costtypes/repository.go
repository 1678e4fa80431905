package costtypes

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

// Repository defines persistence operations for cost types.
type Repository interface {
	List(ctx context.Context, filters mdshared.ListFilters) ([]CostType, int, error)
	Get(ctx context.Context, id int64) (CostType, error)
	Create(ctx context.Context, costType CostType) (CostType, error)
	Update(ctx context.Context, id int64, costType CostType) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs a cost type repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const costTypeColumns = `id, code, name, description, is_system, is_active, created_at, updated_at`

func scanCostType(row pgx.Row) (CostType, error) {
	var ct CostType
	err := row.Scan(&ct.ID, &ct.Code, &ct.Name, &ct.Description, &ct.IsSystem, &ct.IsActive, &ct.CreatedAt, &ct.UpdatedAt)
	return ct, err
}

func (r *repository) List(ctx context.Context, filters mdshared.ListFilters) ([]CostType, int, error) {
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
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM cost_types`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filters.Limit, filters.Offset)
	query := fmt.Sprintf(`SELECT %s FROM cost_types%s ORDER BY code LIMIT $%d OFFSET $%d`,
		costTypeColumns, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []CostType
	for rows.Next() {
		ct, err := scanCostType(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, ct)
	}
	return items, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (CostType, error) {
	row := r.db.QueryRow(ctx, `SELECT `+costTypeColumns+` FROM cost_types WHERE id = $1`, id)
	ct, err := scanCostType(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CostType{}, fmt.Errorf("%w: cost type %d", httpx.ErrNotFound, id)
		}
		return CostType{}, err
	}
	return ct, nil
}

func (r *repository) Create(ctx context.Context, costType CostType) (CostType, error) {
	const query = `
		INSERT INTO cost_types (code, name, description, is_system, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, FALSE, $4, NOW(), NOW())
		RETURNING ` + costTypeColumns
	row := r.db.QueryRow(ctx, query, costType.Code, costType.Name, costType.Description, costType.IsActive)
	created, err := scanCostType(row)
	if err != nil {
		return CostType{}, mapPgError(err, costType.Code)
	}
	return created, nil
}

func (r *repository) Update(ctx context.Context, id int64, costType CostType) error {
	const query = `
		UPDATE cost_types
		SET code = $2, name = $3, description = $4, is_active = $5, updated_at = NOW()
		WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id, costType.Code, costType.Name, costType.Description, costType.IsActive)
	if err != nil {
		return mapPgError(err, costType.Code)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: cost type %d", httpx.ErrNotFound, id)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM cost_types WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("%w: cost type %d is used by landed cost items", httpx.ErrPrecondition, id)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: cost type %d", httpx.ErrNotFound, id)
	}
	return nil
}

func mapPgError(err error, code string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: cost type code %s", httpx.ErrDuplicate, code)
	}
	return err
}
