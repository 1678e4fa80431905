package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/C-W-Wong/omni-erp-sub000/internal/ap"
	"github.com/C-W-Wong/omni-erp-sub000/internal/ar"
)

// AgingSnapshotJob recomputes the AR and AP aging reports nightly and
// persists one row per counterparty.
type AgingSnapshotJob struct {
	receivables *ar.Service
	payables    *ap.Service
	logger      *slog.Logger
}

// NewAgingSnapshotJob constructs the snapshot job.
func NewAgingSnapshotJob(receivables *ar.Service, payables *ap.Service, logger *slog.Logger) *AgingSnapshotJob {
	return &AgingSnapshotJob{receivables: receivables, payables: payables, logger: logger}
}

// Handle processes TaskAgingSnapshot tasks.
func (j *AgingSnapshotJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload AgingSnapshotPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	asOf := time.Now().UTC()

	if payload.Receivables {
		report, err := j.receivables.SnapshotAging(ctx, asOf)
		if err != nil {
			return err
		}
		j.logger.Info("ar aging snapshot",
			slog.Int("customers", len(report.Rows)),
			slog.String("total", report.Totals.Total().String()))
	}
	if payload.Payables {
		report, err := j.payables.SnapshotAging(ctx, asOf)
		if err != nil {
			return err
		}
		j.logger.Info("ap aging snapshot",
			slog.Int("suppliers", len(report.Rows)),
			slog.String("total", report.Totals.Total().String()))
	}
	return nil
}
