package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/kilupskalvis/clipvault/internal/clipboard"
)

// RetryConfig configures how the capture loop is restarted after the
// clipboard goes away.
type RetryConfig struct {
	// MaxRetries is the number of restarts; negative retries forever.
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	JitterFraction float64 // 0.0 to 1.0
}

// DefaultRetryConfig returns the retry settings used by watch.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     -1,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		JitterFraction: 0.25,
	}
}

// isTransient reports whether the capture loop may succeed if restarted.
func isTransient(err error) bool {
	return errors.Is(err, ErrSelectionClosed) || errors.Is(err, clipboard.ErrUnavailable)
}

// backoff computes the delay for the given attempt with jitter.
func (c *RetryConfig) backoff(attempt int) time.Duration {
	base := float64(c.InitialBackoff) * math.Pow(2, float64(attempt))
	if base > float64(c.MaxBackoff) {
		base = float64(c.MaxBackoff)
	}
	jitter := base * c.JitterFraction * (rand.Float64()*2 - 1)
	d := time.Duration(base + jitter)
	if d < 0 {
		d = 0
	}
	return d
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunWithRetry runs the capture loop and restarts it with exponential backoff
// while the selection is unavailable, for example before a display server
// is up. A loop that captured something resets the backoff.
func (m *CaptureManager) RunWithRetry(ctx context.Context, cfg *RetryConfig) error {
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}

	attempt := 0
	for {
		before := m.captured.Load()
		err := m.Run(ctx)
		if err == nil || !isTransient(err) {
			return err
		}
		if m.captured.Load() != before {
			attempt = 0
		}
		if cfg.MaxRetries >= 0 && attempt >= cfg.MaxRetries {
			return fmt.Errorf("capture: %w (after %d retries)", err, cfg.MaxRetries)
		}

		d := cfg.backoff(attempt)
		m.logger.Warn("clipboard unavailable, retrying", "error", err, "attempt", attempt+1, "backoff", d)
		if err := sleep(ctx, d); err != nil {
			return nil
		}
		attempt++
	}
}
