package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRetentionCleanup prunes expired sessions and stale counters.
	TaskRetentionCleanup = "retention:cleanup"
	// TaskAgingSnapshot persists the nightly AR/AP aging snapshots.
	TaskAgingSnapshot = "aging:snapshot"
)

// RetentionCleanupPayload bounds how far back cleanup reaches.
type RetentionCleanupPayload struct {
	KeepDays int `json:"keep_days"`
}

// NewRetentionCleanupTask constructs the daily cleanup task.
func NewRetentionCleanupTask(keepDays int) (*asynq.Task, error) {
	data, err := json.Marshal(RetentionCleanupPayload{KeepDays: keepDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRetentionCleanup, data), nil
}

// AgingSnapshotPayload selects which ledgers to snapshot.
type AgingSnapshotPayload struct {
	Receivables bool `json:"receivables"`
	Payables    bool `json:"payables"`
}

// NewAgingSnapshotTask constructs the nightly aging snapshot task.
func NewAgingSnapshotTask(receivables, payables bool) (*asynq.Task, error) {
	data, err := json.Marshal(AgingSnapshotPayload{Receivables: receivables, Payables: payables})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAgingSnapshot, data), nil
}
