package core

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kilupskalvis/clipvault/internal/models"
	"github.com/kilupskalvis/clipvault/internal/store"
	"github.com/stretchr/testify/require"
)

// fakeClock follows the wall clock shifted by an adjustable offset.
type fakeClock struct {
	mu     sync.Mutex
	offset time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Now().Add(c.offset).UTC().Truncate(time.Microsecond)
}

func (c *fakeClock) Shift(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset = d
}

// recorder collects observer notifications.
type recorder struct {
	mu      sync.Mutex
	added   []int64
	removed []int64
	changed []models.Field
}

func (r *recorder) EntryAdded(e *models.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.added = append(r.added, e.ID)
}

func (r *recorder) EntryRemoved(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, id)
}

func (r *recorder) EntryChanged(id int64, field models.Field) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changed = append(r.changed, field)
}

// failingStore wraps a MemoryStore and injects errors.
type failingStore struct {
	*store.MemoryStore
	InitErr   error
	InsertErr error
	UpdateErr error
	DeleteErr error
}

func newFailingStore() *failingStore {
	return &failingStore{MemoryStore: store.NewMemoryStore()}
}

func (s *failingStore) Init(ctx context.Context) error {
	if s.InitErr != nil {
		return s.InitErr
	}
	return s.MemoryStore.Init(ctx)
}

func (s *failingStore) Insert(ctx context.Context, t models.ItemType, content string, meta models.Metadata) (*models.Entry, error) {
	if s.InsertErr != nil {
		return nil, s.InsertErr
	}
	return s.MemoryStore.Insert(ctx, t, content, meta)
}

func (s *failingStore) UpdateField(ctx context.Context, e *models.Entry, field models.Field) error {
	if s.UpdateErr != nil {
		return s.UpdateErr
	}
	return s.MemoryStore.UpdateField(ctx, e, field)
}

func (s *failingStore) Delete(ctx context.Context, id int64) error {
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	return s.MemoryStore.Delete(ctx, id)
}

var errInjected = errors.New("injected failure")

type testEnv struct {
	tracker  *Tracker
	clock    *fakeClock
	observer *recorder
	cache    *Cache
	dataDir  string
	cacheDir string
}

// newTestTracker creates a tracker over s with a temp-dir cache. A nil s
// uses a fresh MemoryStore.
func newTestTracker(t *testing.T, settings Settings, s store.Store) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		clock:    &fakeClock{},
		observer: &recorder{},
		dataDir:  filepath.Join(dir, "data"),
		cacheDir: filepath.Join(dir, "cache"),
	}
	env.cache = NewCache(env.dataDir, env.cacheDir, nil)
	env.tracker = NewTracker(TrackerConfig{
		Settings: settings,
		Cache:    env.cache,
		Observer: env.observer,
		Now:      env.clock.Now,
	})
	if s == nil {
		s = store.NewMemoryStore()
	}
	env.tracker.Init(context.Background(), s)
	require.False(t, env.tracker.Degraded())
	t.Cleanup(func() { env.tracker.Close() })
	return env
}

func defaultSettings() Settings {
	return Settings{HistoryLength: 50, ClearPolicy: models.KeepAll}
}

func sqliteStore(t *testing.T) store.Store {
	return store.NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"), nil)
}
