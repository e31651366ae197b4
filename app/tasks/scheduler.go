package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/rss-feeds/app/cfg"
	"github.com/lysyi3m/rss-feeds/app/database"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

// Scheduler runs tasks on a small worker pool. At startup it imports the
// seed files; when a sync interval is configured it also enqueues a
// synchronization pass on every tick.
type Scheduler struct {
	seeds            SeedSource
	engine           Synchronizer
	subscriptionRepo database.SubscriptionRepository
	linkRepo         database.LinkRepository
	defaultUser      string
	defaultPostLimit int
	interval         time.Duration
	workerCount      int
	ctx              context.Context
	cancel           context.CancelFunc
	wg               sync.WaitGroup
	taskQueue        chan TaskInterface
}

func NewScheduler(seeds SeedSource, engine Synchronizer, subscriptionRepo database.SubscriptionRepository,
	linkRepo database.LinkRepository) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := cfg.Get()

	return &Scheduler{
		seeds:            seeds,
		engine:           engine,
		subscriptionRepo: subscriptionRepo,
		linkRepo:         linkRepo,
		defaultUser:      cfg.DefaultUser,
		defaultPostLimit: cfg.DefaultPostLimit,
		interval:         time.Duration(cfg.SyncInterval) * time.Second,
		// seed imports and sync passes share the queue; downloads are
		// parallelized inside the engine
		workerCount: 1,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, 300),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.enqueueStartupTasks()

		if s.interval <= 0 {
			slog.Debug("Periodic sync disabled")
			return
		}

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				if err := s.EnqueueTask(NewSyncTask(s.engine)); err != nil {
					slog.Warn("Failed to enqueue SyncTask", "error", err)
				}
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) enqueueStartupTasks() {
	seeds := s.seeds.GetConfigs()
	if len(seeds) == 0 {
		slog.Debug("No subscription seeds found")
		return
	}

	slog.Debug("Importing subscription seeds", "count", len(seeds))

	for _, seed := range seeds {
		task := NewImportSubscriptionsTask(seed, s.subscriptionRepo, s.linkRepo, s.defaultUser, s.defaultPostLimit)
		if err := s.EnqueueTask(task); err != nil {
			slog.Warn("Failed to enqueue ImportSubscriptionsTask", "subscription", seed.Name, "error", err)
		}
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() {
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		return
	}

	task.IncrementRetryCount()
	retryDelay := min(time.Duration(1<<uint(task.GetRetryCount()-1))*time.Second, 30*time.Second)

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "subject", task.GetSubject(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
		case <-time.After(retryDelay):
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
			}
		}
	}()
}
