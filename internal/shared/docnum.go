package shared

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx, so numbers can be
// allocated inside the caller's transaction.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// NextDocNumber allocates a date-scoped sequential document number such as
// PO-20260115-0007. The counter row is upserted atomically, so concurrent
// allocations within the same period never observe the same value.
func NextDocNumber(ctx context.Context, q Querier, prefix string, date time.Time) (string, error) {
	period := date.Format("20060102")
	var counter int64
	err := q.QueryRow(ctx, `
		INSERT INTO document_counters (prefix, period, counter)
		VALUES ($1, $2, 1)
		ON CONFLICT (prefix, period)
		DO UPDATE SET counter = document_counters.counter + 1
		RETURNING counter`, prefix, period).Scan(&counter)
	if err != nil {
		return "", fmt.Errorf("shared: next doc number %s: %w", prefix, err)
	}
	return fmt.Sprintf("%s-%s-%04d", prefix, period, counter), nil
}
