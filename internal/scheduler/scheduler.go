package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/weather-chunk-server/internal/dataset"
	"github.com/i474232898/weather-chunk-server/internal/metrics"
)

// SnapshotRefresher rescans the snapshot root.
type SnapshotRefresher interface {
	Refresh(ctx context.Context) (dataset.Snapshot, error)
}

// Purger drops expired cache entries.
type Purger interface {
	Purge() int
}

// Scheduler runs the periodic maintenance jobs: snapshot rescans and cache
// purges. A job whose interval is zero or whose target is nil is skipped.
type Scheduler struct {
	scheduler *gocron.Scheduler
	log       *slog.Logger

	snapshots    SnapshotRefresher
	refreshEvery time.Duration

	cache      Purger
	purgeEvery time.Duration
}

// New creates a new Scheduler.
func New(logger *slog.Logger, snapshots SnapshotRefresher, refreshEvery time.Duration, cache Purger, purgeEvery time.Duration) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		scheduler:    gocron.NewScheduler(time.UTC),
		log:          logger,
		snapshots:    snapshots,
		refreshEvery: refreshEvery,
		cache:        cache,
		purgeEvery:   purgeEvery,
	}
}

// Start schedules the jobs and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	jobs := 0
	if s.snapshots != nil && s.refreshEvery > 0 {
		if _, err := s.scheduler.Every(s.refreshEvery).SingletonMode().Do(s.refreshSnapshot); err != nil {
			return err
		}
		jobs++
	}
	if s.cache != nil && s.purgeEvery > 0 {
		if _, err := s.scheduler.Every(s.purgeEvery).SingletonMode().Do(s.purgeCache); err != nil {
			return err
		}
		jobs++
	}
	if jobs == 0 {
		s.log.Info("scheduler: nothing to schedule")
		return nil
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil && s.scheduler.IsRunning() {
		s.scheduler.Stop()
	}
}

func (s *Scheduler) refreshSnapshot() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	snap, err := s.snapshots.Refresh(ctx)
	if err != nil {
		metrics.SnapshotRefreshTotal.WithLabelValues("error").Inc()
		s.log.Warn("scheduler: snapshot refresh failed", "err", err)
		return
	}
	metrics.SnapshotRefreshTotal.WithLabelValues("ok").Inc()
	s.log.Debug("scheduler: snapshot refreshed", "snapshot", snap.Name, "modified", snap.ModTime)
}

func (s *Scheduler) purgeCache() {
	if n := s.cache.Purge(); n > 0 {
		s.log.Debug("scheduler: purged expired cache entries", "count", n)
	}
}
