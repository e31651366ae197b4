package tasks

import (
	"context"
	"log/slog"
)

type SyncTask struct {
	Task
	engine Synchronizer
}

func NewSyncTask(engine Synchronizer) *SyncTask {
	return &SyncTask{
		Task:   NewTask(TaskTypeSync, "all"),
		engine: engine,
	}
}

// Execute runs a full pass. Per-link and per-subscription failures are
// absorbed by the engine, so only cancellation is reported.
func (t *SyncTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	result := t.engine.Synchronize(ctx)

	slog.Info("Task completed",
		"type", "Sync",
		"added", result.Added,
		"updated", result.Updated,
		"deleted", result.Deleted,
		"duration", t.GetDuration())

	return nil
}
