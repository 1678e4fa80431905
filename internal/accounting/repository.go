package accounting

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

// Repository persists accounts and journal entries.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error

	GetAccount(ctx context.Context, id int64) (*Account, error)
	GetAccountByCode(ctx context.Context, code string) (*Account, error)
	ListAccounts(ctx context.Context) ([]Account, error)
	CreateAccount(ctx context.Context, a Account) (int64, error)
	UpdateAccount(ctx context.Context, a Account) error
	DeleteAccount(ctx context.Context, id int64) error
	AccountHasLines(ctx context.Context, id int64) (bool, error)

	GetEntry(ctx context.Context, id int64) (*JournalEntry, error)
	ListEntries(ctx context.Context, req ListEntriesRequest) ([]JournalEntry, int, error)
	InsertEntry(ctx context.Context, e JournalEntry) (int64, error)
	InsertLine(ctx context.Context, l Line) error
	UpdateEntryStatus(ctx context.Context, id int64, status EntryStatus, userID int64, at time.Time) error

	AccountBalance(ctx context.Context, accountID int64) (debit, credit decimal.Decimal, err error)
	TrialBalance(ctx context.Context) (*TrialBalance, error)
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

// NewRepository constructs an accounting repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const accountColumns = `id, code, name, category, normal_balance, is_system, is_active, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Category, &a.NormalBalance, &a.IsSystem, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *repository) GetAccount(ctx context.Context, id int64) (*Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: account %d", httpx.ErrNotFound, id)
		}
		return nil, err
	}
	return &a, nil
}

func (r *repository) GetAccountByCode(ctx context.Context, code string) (*Account, error) {
	a, err := scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE code = $1`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: account code %s", httpx.ErrNotFound, code)
		}
		return nil, err
	}
	return &a, nil
}

func (r *repository) ListAccounts(ctx context.Context) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *repository) CreateAccount(ctx context.Context, a Account) (int64, error) {
	const query = `
		INSERT INTO accounts (code, name, category, normal_balance, is_system, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id`
	var id int64
	err := r.db.QueryRow(ctx, query, a.Code, a.Name, a.Category, a.NormalBalance, a.IsSystem, a.IsActive).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, fmt.Errorf("%w: account code %s", httpx.ErrDuplicate, a.Code)
		}
		return 0, err
	}
	return id, nil
}

func (r *repository) UpdateAccount(ctx context.Context, a Account) error {
	const query = `
		UPDATE accounts SET code = $2, name = $3, category = $4, normal_balance = $5, is_active = $6, updated_at = NOW()
		WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, a.ID, a.Code, a.Name, a.Category, a.NormalBalance, a.IsActive)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: account code %s", httpx.ErrDuplicate, a.Code)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: account %d", httpx.ErrNotFound, a.ID)
	}
	return nil
}

func (r *repository) DeleteAccount(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: account %d", httpx.ErrNotFound, id)
	}
	return nil
}

func (r *repository) AccountHasLines(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM journal_lines WHERE account_id = $1)`, id).Scan(&exists)
	return exists, err
}

const entryColumns = `id, number, entry_date, memo, source_module, source_id, status, created_by, posted_by, posted_at, created_at, updated_at`

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var e JournalEntry
	err := row.Scan(&e.ID, &e.Number, &e.EntryDate, &e.Memo, &e.SourceModule, &e.SourceID, &e.Status,
		&e.CreatedBy, &e.PostedBy, &e.PostedAt, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func (r *repository) GetEntry(ctx context.Context, id int64) (*JournalEntry, error) {
	e, err := scanEntry(r.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: journal entry %d", httpx.ErrNotFound, id)
		}
		return nil, err
	}

	rows, err := r.db.Query(ctx, `SELECT id, entry_id, account_id, debit, credit, memo FROM journal_lines WHERE entry_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.EntryID, &l.AccountID, &l.Debit, &l.Credit, &l.Memo); err != nil {
			return nil, err
		}
		e.Lines = append(e.Lines, l)
	}
	return &e, rows.Err()
}

func (r *repository) ListEntries(ctx context.Context, req ListEntriesRequest) ([]JournalEntry, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	if req.Status != nil {
		args = append(args, *req.Status)
		where += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if req.SourceModule != nil {
		args = append(args, *req.SourceModule)
		where += fmt.Sprintf(` AND source_module = $%d`, len(args))
	}
	if req.From != nil {
		args = append(args, *req.From)
		where += fmt.Sprintf(` AND entry_date >= $%d`, len(args))
	}
	if req.To != nil {
		args = append(args, *req.To)
		where += fmt.Sprintf(` AND entry_date <= $%d`, len(args))
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM journal_entries`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, req.Offset)
	query := fmt.Sprintf(`SELECT %s FROM journal_entries%s ORDER BY entry_date DESC, id DESC LIMIT $%d OFFSET $%d`,
		entryColumns, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

func (r *repository) InsertEntry(ctx context.Context, e JournalEntry) (int64, error) {
	const query = `
		INSERT INTO journal_entries (number, entry_date, memo, source_module, source_id, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING id`
	var id int64
	err := r.db.QueryRow(ctx, query, e.Number, e.EntryDate, e.Memo, e.SourceModule, e.SourceID, e.Status, e.CreatedBy).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, fmt.Errorf("%w: journal number %s", httpx.ErrDuplicate, e.Number)
		}
		return 0, err
	}
	return id, nil
}

func (r *repository) InsertLine(ctx context.Context, l Line) error {
	_, err := r.db.Exec(ctx, `INSERT INTO journal_lines (entry_id, account_id, debit, credit, memo) VALUES ($1, $2, $3, $4, $5)`,
		l.EntryID, l.AccountID, l.Debit, l.Credit, l.Memo)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("%w: account %d does not exist", httpx.ErrPrecondition, l.AccountID)
		}
	}
	return err
}

func (r *repository) UpdateEntryStatus(ctx context.Context, id int64, status EntryStatus, userID int64, at time.Time) error {
	var tag pgconn.CommandTag
	var err error
	if status == EntryPosted {
		tag, err = r.db.Exec(ctx, `UPDATE journal_entries SET status = $2, posted_by = $3, posted_at = $4, updated_at = NOW() WHERE id = $1`,
			id, status, userID, at)
	} else {
		tag, err = r.db.Exec(ctx, `UPDATE journal_entries SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: journal entry %d", httpx.ErrNotFound, id)
	}
	return nil
}

func (r *repository) AccountBalance(ctx context.Context, accountID int64) (decimal.Decimal, decimal.Decimal, error) {
	const query = `
		SELECT COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
		FROM journal_lines l
		JOIN journal_entries e ON e.id = l.entry_id
		WHERE l.account_id = $1 AND e.status = 'POSTED'`
	var debit, credit decimal.Decimal
	err := r.db.QueryRow(ctx, query, accountID).Scan(&debit, &credit)
	return debit, credit, err
}

func (r *repository) TrialBalance(ctx context.Context) (*TrialBalance, error) {
	const query = `
		SELECT a.id, a.code, a.name, a.category,
			COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
		FROM accounts a
		JOIN journal_lines l ON l.account_id = a.id
		JOIN journal_entries e ON e.id = l.entry_id AND e.status = 'POSTED'
		GROUP BY a.id, a.code, a.name, a.category
		ORDER BY a.code`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tb := &TrialBalance{TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}
	for rows.Next() {
		var row TrialBalanceRow
		if err := rows.Scan(&row.AccountID, &row.AccountCode, &row.AccountName, &row.Category, &row.TotalDebit, &row.TotalCredit); err != nil {
			return nil, err
		}
		tb.Rows = append(tb.Rows, row)
		tb.TotalDebit = tb.TotalDebit.Add(row.TotalDebit)
		tb.TotalCredit = tb.TotalCredit.Add(row.TotalCredit)
	}
	return tb, rows.Err()
}

func (r *repository) NextNumber(ctx context.Context, date time.Time) (string, error) {
	return shared.NextDocNumber(ctx, r.db, "JE", date)
}
