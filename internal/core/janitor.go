package core

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultCheckInterval is how often the janitor looks for expired entries.
const DefaultCheckInterval = 60 * time.Second

// Janitor periodically evicts entries older than the configured history time.
type Janitor struct {
	tracker  *Tracker
	interval time.Duration
	logger   *slog.Logger

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewJanitor creates a janitor for tracker. A non-positive interval uses
// DefaultCheckInterval.
func NewJanitor(tracker *Tracker, interval time.Duration, logger *slog.Logger) *Janitor {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{
		tracker:  tracker,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Sweep runs one check and evicts if anything has expired.
func (j *Janitor) Sweep(ctx context.Context) []int64 {
	if !j.tracker.CheckOldest() {
		return nil
	}
	ids := j.tracker.DeleteOldest(ctx)
	if len(ids) > 0 {
		j.logger.Info("evicted expired entries", "count", len(ids))
	}
	return ids
}

// Run sweeps on every tick until ctx is done or Stop is called.
func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-j.stop:
			return nil
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Start runs the janitor in the background.
func (j *Janitor) Start(ctx context.Context) {
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		j.Run(ctx)
	}()
}

// Stop halts the janitor and waits for a background run to return. It is
// safe to call more than once.
func (j *Janitor) Stop() {
	j.stopOnce.Do(func() { close(j.stop) })
	j.wg.Wait()
}
