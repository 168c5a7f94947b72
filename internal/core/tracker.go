// Package core implements the clipboard history pipeline: capturing
// selection changes, tracking entries, caching files and evicting old
// history.
package core

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/kilupskalvis/clipvault/internal/models"
	"github.com/kilupskalvis/clipvault/internal/store"
)

var (
	// ErrUnknownEntry is returned for ids the tracker does not hold.
	ErrUnknownEntry = errors.New("unknown entry")
	// ErrNotEditable is returned when editing the content of an image or file entry.
	ErrNotEditable = errors.New("entry content is not editable")
	// ErrNotInitialized is returned before Init has been called.
	ErrNotInitialized = errors.New("tracker not initialized")
)

// Settings controls retention.
type Settings struct {
	// HistoryLength is how many unprotected entries are kept.
	HistoryLength int
	// HistoryTime is the maximum age of unprotected entries; 0 disables it.
	HistoryTime time.Duration
	// ClearPolicy is applied to the old store when the tracker is re-initialized.
	ClearPolicy models.ClearPolicy
}

// TrackerConfig configures a Tracker.
type TrackerConfig struct {
	Settings Settings
	Cache    *Cache
	Observer Observer
	Logger   *slog.Logger
	// Now returns the current time. Defaults to models.Now.
	Now func() time.Time
}

// Tracker owns the storage backend and a live index of the entries it holds.
// All mutations go through the tracker so the index and storage stay in step.
// Storage failures are logged and leave both unchanged.
type Tracker struct {
	mu       sync.Mutex
	store    store.Store
	entries  map[int64]*models.Entry
	settings Settings
	cache    *Cache
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
	degraded bool
}

// NewTracker creates a tracker. Call Init before use.
func NewTracker(cfg TrackerConfig) *Tracker {
	t := &Tracker{
		entries:  make(map[int64]*models.Entry),
		settings: cfg.Settings,
		cache:    cfg.Cache,
		observer: cfg.Observer,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	if t.now == nil {
		t.now = models.Now
	}
	return t
}

// locked runs fn under the tracker lock and fires the events it raised
// once the lock is released.
func (t *Tracker) locked(fn func(ev *events)) {
	var ev events
	t.mu.Lock()
	fn(&ev)
	t.mu.Unlock()
	ev.fire(t.observer)
}

// Init switches the tracker to s and returns the entries it holds after an
// initial eviction pass. A previously open store is cleared with the
// configured policy and closed first. If s cannot be initialized the
// tracker falls back to an in-memory store and returns no entries.
func (t *Tracker) Init(ctx context.Context, s store.Store) []*models.Entry {
	var out []*models.Entry
	t.locked(func(ev *events) {
		if t.store != nil {
			t.clearLocked(ctx, t.settings.ClearPolicy, ev)
			if err := t.store.Close(); err != nil {
				t.logger.Error("failed to close storage", "error", err)
			}
			for id := range t.entries {
				ev.removed(id)
			}
			t.entries = make(map[int64]*models.Entry)
			t.store = nil
		}

		if s == nil {
			s = store.NewMemoryStore()
		}

		entries, err := openStore(ctx, s)
		if err != nil {
			t.logger.Error("storage unavailable, history will not be persisted", "error", err)
			if err := s.Close(); err != nil {
				t.logger.Debug("failed to close unusable storage", "error", err)
			}
			mem := store.NewMemoryStore()
			if err := mem.Init(ctx); err != nil {
				t.logger.Error("failed to open in-memory fallback", "error", err)
			}
			t.store = mem
			t.degraded = true
			out = []*models.Entry{}
			return
		}

		t.store = s
		t.degraded = false
		for _, e := range entries {
			t.entries[e.ID] = e
		}
		t.evictLocked(ctx, ev)
		out = t.snapshot()
	})
	return out
}

func openStore(ctx context.Context, s store.Store) ([]*models.Entry, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	entries, err := s.Entries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

// Reconfigure applies new settings and re-initializes on s.
func (t *Tracker) Reconfigure(ctx context.Context, settings Settings, s store.Store) []*models.Entry {
	t.mu.Lock()
	t.settings = settings
	t.mu.Unlock()
	return t.Init(ctx, s)
}

// Degraded reports whether the tracker fell back to in-memory storage.
func (t *Tracker) Degraded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.degraded
}

// Settings returns the current retention settings.
func (t *Tracker) Settings() Settings {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.settings
}

// SetSettings changes retention settings without re-initializing storage.
func (t *Tracker) SetSettings(s Settings) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.settings = s
}

// Entries returns copies of all tracked entries, newest first.
func (t *Tracker) Entries() []*models.Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot()
}

func (t *Tracker) snapshot() []*models.Entry {
	out := make([]*models.Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e.Clone())
	}
	slices.SortFunc(out, func(a, b *models.Entry) int {
		if c := b.Datetime.Compare(a.Datetime); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out
}

// Get returns a copy of a tracked entry.
func (t *Tracker) Get(id int64) (*models.Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// Tracks reports whether an entry with this type and content is tracked.
func (t *Tracker) Tracks(typ models.ItemType, content string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.entries {
		if e.Type == typ && e.Content == content {
			return true
		}
	}
	return false
}

// Insert records a classified capture. Re-inserting a tracked (type,
// content) pair refreshes that entry's datetime and returns nil; otherwise
// the new entry is returned. Failures are logged and return nil.
func (t *Tracker) Insert(ctx context.Context, typ models.ItemType, content string, meta models.Metadata) *models.Entry {
	var added *models.Entry
	t.locked(func(ev *events) {
		if t.store == nil {
			t.logger.Warn("insert before init", "type", typ)
			return
		}

		id, found, err := t.store.SelectConflict(ctx, typ, content)
		if err != nil {
			t.logger.Error("failed to check for existing entry", "error", err)
			return
		}
		if found {
			if e, ok := t.entries[id]; ok {
				now := t.now()
				if _, err := t.updateFieldLocked(ctx, e, models.FieldDatetime, func(c *models.Entry) { c.Datetime = now }, ev); err != nil {
					t.logger.Error("failed to refresh entry", "id", id, "error", err)
				}
				return
			}
		}

		e, err := t.store.Insert(ctx, typ, content, meta)
		if errors.Is(err, store.ErrConflict) {
			t.logger.Debug("entry inserted concurrently", "type", typ)
			return
		}
		if err != nil {
			t.logger.Error("failed to insert entry", "type", typ, "error", err)
			return
		}

		t.entries[e.ID] = e
		ev.added(e)
		added = e.Clone()
		t.evictLocked(ctx, ev)
	})
	return added
}

// updateFieldLocked applies mutate to a copy of e and persists field. If the
// change collides with another entry, e is the loser: its datetime moves to
// the winner and e is deleted. The resulting live entry is returned.
func (t *Tracker) updateFieldLocked(ctx context.Context, e *models.Entry, field models.Field, mutate func(*models.Entry), ev *events) (*models.Entry, error) {
	candidate := e.Clone()
	mutate(candidate)

	err := t.store.UpdateField(ctx, candidate, field)

	var conflict *store.ConflictError
	switch {
	case errors.As(err, &conflict):
		winner, tracked := t.entries[conflict.ID]
		if tracked {
			w := winner.Clone()
			w.Datetime = candidate.Datetime
			if err := t.store.UpdateField(ctx, w, models.FieldDatetime); err != nil {
				t.logger.Error("failed to refresh merged entry", "id", w.ID, "error", err)
			} else {
				t.entries[w.ID] = w
				winner = w
				ev.changed(w.ID, models.FieldDatetime)
			}
		}
		if err := t.deleteLocked(ctx, e, ev); err != nil {
			return nil, err
		}
		if !tracked {
			return nil, conflict
		}
		return winner.Clone(), nil

	case err != nil:
		return nil, fmt.Errorf("update %s: %w", field, err)
	}

	t.entries[e.ID] = candidate
	ev.changed(e.ID, field)
	return candidate.Clone(), nil
}

func (t *Tracker) update(ctx context.Context, id int64, field models.Field, mutate func(*models.Entry)) (*models.Entry, error) {
	return t.updateIf(ctx, id, field, nil, mutate)
}

// updateIf is update with a precondition checked under the lock.
func (t *Tracker) updateIf(ctx context.Context, id int64, field models.Field, allow func(*models.Entry) error, mutate func(*models.Entry)) (*models.Entry, error) {
	var (
		out *models.Entry
		err error
	)
	t.locked(func(ev *events) {
		if t.store == nil {
			err = ErrNotInitialized
			return
		}
		e, ok := t.entries[id]
		if !ok {
			err = fmt.Errorf("%w: %d", ErrUnknownEntry, id)
			return
		}
		if allow != nil {
			if err = allow(e); err != nil {
				return
			}
		}
		out, err = t.updateFieldLocked(ctx, e, field, mutate, ev)
	})
	return out, err
}

// SetPinned pins or unpins an entry.
func (t *Tracker) SetPinned(ctx context.Context, id int64, pinned bool) (*models.Entry, error) {
	return t.update(ctx, id, models.FieldPinned, func(e *models.Entry) {
		e.Pinned = pinned
	})
}

// SetTag tags an entry; TagNone removes the tag.
func (t *Tracker) SetTag(ctx context.Context, id int64, tag models.Tag) (*models.Entry, error) {
	return t.update(ctx, id, models.FieldTag, func(e *models.Entry) {
		e.Tag = tag
	})
}

// SetTitle sets the display title; "" restores the default label.
func (t *Tracker) SetTitle(ctx context.Context, id int64, title string) (*models.Entry, error) {
	return t.update(ctx, id, models.FieldTitle, func(e *models.Entry) {
		e.Title = title
	})
}

// SetMetadata replaces an entry's metadata.
func (t *Tracker) SetMetadata(ctx context.Context, id int64, meta models.Metadata) (*models.Entry, error) {
	return t.update(ctx, id, models.FieldMetadata, func(e *models.Entry) {
		e.Metadata = meta
	})
}

// Touch refreshes an entry's datetime to now.
func (t *Tracker) Touch(ctx context.Context, id int64) (*models.Entry, error) {
	now := t.now()
	return t.update(ctx, id, models.FieldDatetime, func(e *models.Entry) {
		e.Datetime = now
	})
}

// SetContent edits the text of an entry. If the new content matches another
// entry of the same type, the two are merged and the surviving entry is
// returned.
func (t *Tracker) SetContent(ctx context.Context, id int64, content string) (*models.Entry, error) {
	editable := func(e *models.Entry) error {
		if !e.Type.IsText() {
			return fmt.Errorf("%w: %s", ErrNotEditable, e.Type)
		}
		return nil
	}
	return t.updateIf(ctx, id, models.FieldContent, editable, func(e *models.Entry) {
		e.Content = content
	})
}

// Delete removes an entry and its cached files.
func (t *Tracker) Delete(ctx context.Context, id int64) error {
	var err error
	t.locked(func(ev *events) {
		if t.store == nil {
			err = ErrNotInitialized
			return
		}
		e, ok := t.entries[id]
		if !ok {
			err = fmt.Errorf("%w: %d", ErrUnknownEntry, id)
			return
		}
		err = t.deleteLocked(ctx, e, ev)
	})
	return err
}

// deleteLocked removes e from storage, then drops its files and index entry.
func (t *Tracker) deleteLocked(ctx context.Context, e *models.Entry, ev *events) error {
	if _, ok := t.entries[e.ID]; !ok {
		t.removeFiles(e)
		return nil
	}
	if err := t.store.Delete(ctx, e.ID); err != nil {
		t.logger.Error("failed to delete entry", "id", e.ID, "error", err)
		return fmt.Errorf("delete entry %d: %w", e.ID, err)
	}
	t.forget(e, ev)
	return nil
}

// forget drops an entry storage has already removed.
func (t *Tracker) forget(e *models.Entry, ev *events) {
	t.removeFiles(e)
	delete(t.entries, e.ID)
	ev.removed(e.ID)
}

func (t *Tracker) removeFiles(e *models.Entry) {
	if t.cache == nil {
		return
	}
	switch e.Type {
	case models.ItemImage:
		t.cache.Remove(e.Content)
	case models.ItemLink:
		if img := models.LinkImage(e.Metadata); img != "" {
			t.cache.Remove(t.cache.ThumbnailPath(img))
		}
	}
}

// DeleteOldest runs an eviction pass and returns the removed ids.
func (t *Tracker) DeleteOldest(ctx context.Context) []int64 {
	var ids []int64
	t.locked(func(ev *events) {
		if t.store == nil {
			return
		}
		ids = t.evictLocked(ctx, ev)
	})
	return ids
}

func (t *Tracker) evictLocked(ctx context.Context, ev *events) []int64 {
	ids, err := t.store.DeleteOldest(ctx, t.settings.HistoryLength, t.settings.HistoryTime)
	if err != nil {
		t.logger.Error("failed to evict old entries", "error", err)
		return nil
	}
	for _, id := range ids {
		if e, ok := t.entries[id]; ok {
			t.forget(e, ev)
		}
	}
	if len(ids) > 0 {
		t.logger.Debug("evicted entries", "count", len(ids))
	}
	return ids
}

// CheckOldest reports whether an age-based eviction pass would remove
// anything.
func (t *Tracker) CheckOldest() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.settings.HistoryTime <= 0 {
		return false
	}
	cutoff := t.now().Add(-t.settings.HistoryTime)
	for _, e := range t.entries {
		if !e.Protected() && e.Datetime.Before(cutoff) {
			return true
		}
	}
	return false
}

// Clear removes the entries the policy selects and returns their ids.
func (t *Tracker) Clear(ctx context.Context, policy models.ClearPolicy) []int64 {
	var ids []int64
	t.locked(func(ev *events) {
		if t.store == nil {
			return
		}
		ids = t.clearLocked(ctx, policy, ev)
	})
	return ids
}

func (t *Tracker) clearLocked(ctx context.Context, policy models.ClearPolicy, ev *events) []int64 {
	ids, err := t.store.Clear(ctx, policy)
	if err != nil {
		t.logger.Error("failed to clear history", "policy", policy, "error", err)
		return nil
	}
	for _, id := range ids {
		if e, ok := t.entries[id]; ok {
			t.forget(e, ev)
		}
	}
	return ids
}

// Close closes the storage backend. Tracked entries stay on disk.
func (t *Tracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.store == nil {
		return nil
	}
	err := t.store.Close()
	t.store = nil
	t.entries = make(map[int64]*models.Entry)
	return err
}
