package tasks

import (
	"context"

	"github.com/lysyi3m/rss-feeds/app/feed"
	"github.com/lysyi3m/rss-feeds/app/reconcile"
)

// TaskSchedulerInterface defines the interface for background task processing.
// Example usage:
//
//	scheduler := NewScheduler(configCache, engine, subscriptionRepo, linkRepo)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewSyncTask(engine))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

// Synchronizer runs one synchronization pass.
type Synchronizer interface {
	Synchronize(ctx context.Context) reconcile.Result
}

// SeedSource lists the subscription seeds to import at startup.
type SeedSource interface {
	GetConfigs() []*feed.SeedConfig
}
