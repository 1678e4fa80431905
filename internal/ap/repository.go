package ap

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

// OutstandingItem is the slice of an open item the aging report needs.
type OutstandingItem struct {
	SupplierID   int64
	SupplierName string
	Balance      decimal.Decimal
	DueDate      time.Time
}

// Repository owns ap_open_items, ap_payments, and the aging snapshot
// table. Payment posting also writes the journal through the shared
// accounting helper.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*OpenItem, error)
	List(ctx context.Context, req ListOpenItemsRequest) ([]OpenItem, int, error)
	Payments(ctx context.Context, openItemID int64) ([]Payment, error)
	UpdatePayment(ctx context.Context, id int64, paid, balance decimal.Decimal, status Status) error
	InsertPayment(ctx context.Context, p Payment) (int64, error)
	PostJournalEntry(ctx context.Context, in accounting.EntryInput, at time.Time) (int64, error)
	Outstanding(ctx context.Context) ([]OutstandingItem, error)
	InsertAgingSnapshot(ctx context.Context, report AgingReport) error
	NextPaymentNumber(ctx context.Context, date time.Time) (string, error)
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

// NewRepository constructs a payables repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const itemColumns = `id, number, supplier_id, order_id, total, paid_amount, balance, due_date, status, created_at, updated_at`

func scanItem(row pgx.Row) (OpenItem, error) {
	var item OpenItem
	err := row.Scan(&item.ID, &item.Number, &item.SupplierID, &item.OrderID, &item.Total,
		&item.PaidAmount, &item.Balance, &item.DueDate, &item.Status, &item.CreatedAt, &item.UpdatedAt)
	return item, err
}

func (r *repository) Get(ctx context.Context, id int64) (*OpenItem, error) {
	item, err := scanItem(r.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM ap_open_items WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: open item %d", httpx.ErrNotFound, id)
		}
		return nil, err
	}
	return &item, nil
}

func (r *repository) List(ctx context.Context, req ListOpenItemsRequest) ([]OpenItem, int, error) {
	where := " WHERE 1=1"
	args := []interface{}{}
	if req.SupplierID != nil {
		args = append(args, *req.SupplierID)
		where += fmt.Sprintf(" AND supplier_id = $%d", len(args))
	}
	if req.Status != nil {
		args = append(args, *req.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM ap_open_items`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, req.Limit, req.Offset)
	rows, err := r.db.Query(ctx, `SELECT `+itemColumns+` FROM ap_open_items`+where+
		fmt.Sprintf(` ORDER BY due_date, id LIMIT $%d OFFSET $%d`, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []OpenItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

func (r *repository) Payments(ctx context.Context, openItemID int64) ([]Payment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, number, open_item_id, amount, paid_at, method, reference, created_by, created_at
		FROM ap_payments WHERE open_item_id = $1 ORDER BY id`, openItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.Number, &p.OpenItemID, &p.Amount, &p.PaidAt,
			&p.Method, &p.Reference, &p.CreatedBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *repository) UpdatePayment(ctx context.Context, id int64, paid, balance decimal.Decimal, status Status) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE ap_open_items SET paid_amount = $2, balance = $3, status = $4, updated_at = NOW()
		WHERE id = $1`, id, paid, balance, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: open item %d", httpx.ErrNotFound, id)
	}
	return nil
}

func (r *repository) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO ap_payments (number, open_item_id, amount, paid_at, method, reference, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id`,
		p.Number, p.OpenItemID, p.Amount, p.PaidAt, p.Method, p.Reference, p.CreatedBy).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return 0, fmt.Errorf("%w: open item %d", httpx.ErrPrecondition, p.OpenItemID)
		}
		return 0, err
	}
	return id, nil
}

func (r *repository) PostJournalEntry(ctx context.Context, in accounting.EntryInput, at time.Time) (int64, error) {
	return accounting.PostInTx(ctx, r.db, in, at)
}

func (r *repository) Outstanding(ctx context.Context) ([]OutstandingItem, error) {
	rows, err := r.db.Query(ctx, `
		SELECT i.supplier_id, s.name, i.balance, i.due_date
		FROM ap_open_items i
		JOIN suppliers s ON s.id = i.supplier_id
		WHERE i.balance > 0
		ORDER BY i.supplier_id, i.due_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OutstandingItem
	for rows.Next() {
		var item OutstandingItem
		if err := rows.Scan(&item.SupplierID, &item.SupplierName, &item.Balance, &item.DueDate); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *repository) InsertAgingSnapshot(ctx context.Context, report AgingReport) error {
	for _, row := range report.Rows {
		_, err := r.db.Exec(ctx, `
			INSERT INTO ap_aging_snapshots (as_of, supplier_id, current, days_1_30, days_31_60, days_61_90, days_91_plus, total, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
			ON CONFLICT (as_of, supplier_id) DO UPDATE SET
				current = EXCLUDED.current,
				days_1_30 = EXCLUDED.days_1_30,
				days_31_60 = EXCLUDED.days_31_60,
				days_61_90 = EXCLUDED.days_61_90,
				days_91_plus = EXCLUDED.days_91_plus,
				total = EXCLUDED.total,
				created_at = NOW()`,
			report.AsOf, row.SupplierID, row.Buckets.Current, row.Buckets.Days1To30,
			row.Buckets.Days31To60, row.Buckets.Days61To90, row.Buckets.Days91Plus, row.Total)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repository) NextPaymentNumber(ctx context.Context, date time.Time) (string, error) {
	return shared.NextDocNumber(ctx, r.db, "PMT", date)
}
