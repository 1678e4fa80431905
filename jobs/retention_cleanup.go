package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultKeepDays = 90

// RetentionCleanupJob prunes expired session rows and document
// counter periods older than the retention window.
type RetentionCleanupJob struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRetentionCleanupJob constructs the cleanup job.
func NewRetentionCleanupJob(pool *pgxpool.Pool, logger *slog.Logger) *RetentionCleanupJob {
	return &RetentionCleanupJob{pool: pool, logger: logger}
}

// Handle processes TaskRetentionCleanup tasks.
func (j *RetentionCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload RetentionCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.KeepDays <= 0 {
		payload.KeepDays = defaultKeepDays
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -payload.KeepDays)

	sessions, err := j.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < NOW()`)
	if err != nil {
		return err
	}
	counters, err := j.pool.Exec(ctx, `DELETE FROM document_counters WHERE period < $1`, cutoff.Format("20060102"))
	if err != nil {
		return err
	}

	j.logger.Info("retention cleanup",
		slog.Int64("sessions_removed", sessions.RowsAffected()),
		slog.Int64("counter_periods_removed", counters.RowsAffected()),
		slog.String("cutoff", cutoff.Format("2006-01-02")))
	return nil
}
