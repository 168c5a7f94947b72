package core

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kilupskalvis/clipvault/internal/clipboard"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(ErrSelectionClosed))
	assert.True(t, isTransient(fmt.Errorf("init: %w", clipboard.ErrUnavailable)))
	assert.False(t, isTransient(nil))
	assert.False(t, isTransient(context.Canceled))
}

func TestRetryConfig_Backoff(t *testing.T) {
	cfg := &RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		JitterFraction: 0.0, // no jitter for deterministic test
	}

	assert.Equal(t, 100*time.Millisecond, cfg.backoff(0))
	assert.Equal(t, 200*time.Millisecond, cfg.backoff(1))
	assert.Equal(t, 400*time.Millisecond, cfg.backoff(2))
}

func TestRetryConfig_BackoffCapped(t *testing.T) {
	cfg := &RetryConfig{
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     5 * time.Second,
	}
	assert.Equal(t, 5*time.Second, cfg.backoff(10))
}

func TestRetryConfig_BackoffJitter(t *testing.T) {
	cfg := &RetryConfig{
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     10 * time.Second,
		JitterFraction: 0.5,
	}
	for i := 0; i < 20; i++ {
		d := cfg.backoff(0)
		assert.GreaterOrEqual(t, d, 500*time.Millisecond)
		assert.LessOrEqual(t, d, 1500*time.Millisecond)
	}
}

func TestSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleep(ctx, time.Hour), context.Canceled)
}

func TestRunWithRetry_GivesUp(t *testing.T) {
	env := newTestCapture(t)
	env.selection.Disconnect()

	err := env.capture.RunWithRetry(context.Background(), &RetryConfig{
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	})
	assert.ErrorIs(t, err, ErrSelectionClosed)
}

func TestRunWithRetry_Recovers(t *testing.T) {
	env := newTestCapture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env.selection.Disconnect()
	done := make(chan error, 1)
	go func() {
		done <- env.capture.RunWithRetry(ctx, &RetryConfig{
			MaxRetries:     -1,
			InitialBackoff: 5 * time.Millisecond,
			MaxBackoff:     20 * time.Millisecond,
		})
	}()

	time.Sleep(30 * time.Millisecond)
	env.selection.Reconnect()

	assert.Eventually(t, func() bool {
		env.selection.Set(clipboard.MimeText, []byte("back online"))
		return len(env.tracker.Entries()) == 1
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("RunWithRetry did not return after cancel")
	}
}
