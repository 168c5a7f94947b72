package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kilupskalvis/clipvault/internal/checksum"
	"github.com/kilupskalvis/clipvault/internal/classify"
	"github.com/kilupskalvis/clipvault/internal/models"
	"github.com/kilupskalvis/clipvault/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countUnprotected(entries []*models.Entry) int {
	n := 0
	for _, e := range entries {
		if !e.Protected() {
			n++
		}
	}
	return n
}

func TestTracker_IdempotentRecopy(t *testing.T) {
	for name, s := range map[string]func(t *testing.T) store.Store{
		"memory": func(*testing.T) store.Store { return store.NewMemoryStore() },
		"sqlite": sqliteStore,
	} {
		t.Run(name, func(t *testing.T) {
			env := newTestTracker(t, defaultSettings(), s(t))
			ctx := context.Background()

			first := env.tracker.Insert(ctx, models.ItemText, "hello", nil)
			require.NotNil(t, first)

			env.clock.Shift(time.Hour)
			second := env.tracker.Insert(ctx, models.ItemText, "hello", nil)
			assert.Nil(t, second)

			entries := env.tracker.Entries()
			require.Len(t, entries, 1)
			assert.Equal(t, first.ID, entries[0].ID)
			assert.True(t, entries[0].Datetime.After(first.Datetime.Add(59*time.Minute)))

			assert.Len(t, env.observer.added, 1)
			assert.Equal(t, []models.Field{models.FieldDatetime}, env.observer.changed)
		})
	}
}

func TestTracker_RefreshIsPersisted(t *testing.T) {
	s := sqliteStore(t)
	env := newTestTracker(t, defaultSettings(), s)
	ctx := context.Background()

	env.tracker.Insert(ctx, models.ItemText, "hello", nil)
	env.clock.Shift(time.Hour)
	env.tracker.Insert(ctx, models.ItemText, "hello", nil)

	stored, err := s.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.True(t, stored[0].Datetime.After(time.Now().Add(30*time.Minute)))
}

func TestTracker_KeyUniqueness(t *testing.T) {
	env := newTestTracker(t, defaultSettings(), sqliteStore(t))
	ctx := context.Background()

	types := []models.ItemType{models.ItemText, models.ItemCode, models.ItemLink}
	for i := 0; i < 60; i++ {
		typ := types[i%len(types)]
		env.tracker.Insert(ctx, typ, fmt.Sprintf("content-%d", i%7), nil)
	}

	seen := map[string]bool{}
	for _, e := range env.tracker.Entries() {
		assert.False(t, seen[e.Key()], "duplicate key %s", e.Key())
		seen[e.Key()] = true
	}
	assert.Len(t, seen, 21)
}

func TestTracker_EvictionCountBound(t *testing.T) {
	settings := Settings{HistoryLength: 3}
	env := newTestTracker(t, settings, sqliteStore(t))
	ctx := context.Background()

	pinned := env.tracker.Insert(ctx, models.ItemText, "keep me", nil)
	require.NotNil(t, pinned)
	_, err := env.tracker.SetPinned(ctx, pinned.ID, true)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.NotNil(t, env.tracker.Insert(ctx, models.ItemText, fmt.Sprintf("item %d", i), nil))
		assert.LessOrEqual(t, countUnprotected(env.tracker.Entries()), 3)
	}

	entries := env.tracker.Entries()
	assert.Len(t, entries, 4)
	_, ok := env.tracker.Get(pinned.ID)
	assert.True(t, ok)
}

func TestTracker_EvictionAgeBound(t *testing.T) {
	env := newTestTracker(t, Settings{HistoryLength: 50, HistoryTime: time.Hour}, nil)
	ctx := context.Background()

	old := env.tracker.Insert(ctx, models.ItemText, "old", nil)
	require.NotNil(t, old)
	env.clock.Shift(-2 * time.Hour)
	_, err := env.tracker.Touch(ctx, old.ID)
	require.NoError(t, err)
	env.clock.Shift(0)

	fresh := env.tracker.Insert(ctx, models.ItemText, "fresh", nil)
	require.NotNil(t, fresh)

	// the insert ran an eviction pass
	_, ok := env.tracker.Get(old.ID)
	assert.False(t, ok)
	assert.Contains(t, env.observer.removed, old.ID)

	cutoff := time.Now().Add(-time.Hour)
	for _, e := range env.tracker.Entries() {
		if !e.Protected() {
			assert.True(t, e.Datetime.After(cutoff))
		}
	}
}

func TestTracker_PinAndTagExemption(t *testing.T) {
	env := newTestTracker(t, Settings{HistoryLength: 1, HistoryTime: time.Minute}, nil)
	ctx := context.Background()

	a := env.tracker.Insert(ctx, models.ItemText, "a", nil)
	_, err := env.tracker.SetPinned(ctx, a.ID, true)
	require.NoError(t, err)
	b := env.tracker.Insert(ctx, models.ItemText, "b", nil)
	_, err = env.tracker.SetTag(ctx, b.ID, models.TagPurple)
	require.NoError(t, err)

	env.clock.Shift(-time.Hour)
	_, err = env.tracker.Touch(ctx, a.ID)
	require.NoError(t, err)
	_, err = env.tracker.Touch(ctx, b.ID)
	require.NoError(t, err)
	env.clock.Shift(0)

	env.tracker.Insert(ctx, models.ItemText, "c", nil)
	env.tracker.Insert(ctx, models.ItemText, "d", nil)
	env.tracker.DeleteOldest(ctx)

	var got []string
	for _, e := range env.tracker.Entries() {
		got = append(got, e.Content)
	}
	assert.ElementsMatch(t, []string{"a", "b", "d"}, got)

	// only an explicit clear-all removes them
	env.tracker.Clear(ctx, models.KeepPinnedAndTagged)
	assert.Len(t, env.tracker.Entries(), 2)
	env.tracker.Clear(ctx, models.ClearAll)
	assert.Empty(t, env.tracker.Entries())
}

func TestTracker_FallbackToMemory(t *testing.T) {
	env := newTestTracker(t, defaultSettings(), nil)
	ctx := context.Background()

	broken := newFailingStore()
	broken.InitErr = errInjected

	entries := env.tracker.Init(ctx, broken)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
	assert.True(t, env.tracker.Degraded())

	e := env.tracker.Insert(ctx, models.ItemText, "still works", nil)
	require.NotNil(t, e)
	assert.Len(t, env.tracker.Entries(), 1)
}

func TestTracker_FallbackWhenSQLiteUnavailable(t *testing.T) {
	// the database directory cannot be created below a regular file
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))
	env := newTestTracker(t, defaultSettings(), nil)

	entries := env.tracker.Init(context.Background(), store.NewSQLiteStore(filepath.Join(blocker, "db", "history.db"), nil))
	assert.Empty(t, entries)
	assert.True(t, env.tracker.Degraded())
	assert.NotNil(t, env.tracker.Insert(context.Background(), models.ItemText, "x", nil))
}

func TestTracker_InitLoadsAndEvicts(t *testing.T) {
	ctx := context.Background()
	s := sqliteStore(t)
	require.NoError(t, s.Init(ctx))
	for i := 0; i < 5; i++ {
		_, err := s.Insert(ctx, models.ItemText, fmt.Sprintf("row %d", i), nil)
		require.NoError(t, err)
	}

	env := newTestTracker(t, Settings{HistoryLength: 2}, nil)
	entries := env.tracker.Init(ctx, s)
	assert.Len(t, entries, 2)

	stored, err := s.Entries(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestTracker_ReconfigureClearsOldStore(t *testing.T) {
	ctx := context.Background()
	old := store.NewMemoryStore()
	env := newTestTracker(t, defaultSettings(), old)

	a := env.tracker.Insert(ctx, models.ItemText, "a", nil)
	require.NotNil(t, a)

	next := sqliteStore(t)
	entries := env.tracker.Reconfigure(ctx, Settings{HistoryLength: 10, ClearPolicy: models.ClearAll}, next)
	assert.Empty(t, entries)
	assert.Contains(t, env.observer.removed, a.ID)
	assert.Equal(t, 10, env.tracker.Settings().HistoryLength)

	require.NotNil(t, env.tracker.Insert(ctx, models.ItemText, "b", nil))
	stored, err := next.Entries(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestTracker_SetContentMergesIntoExisting(t *testing.T) {
	env := newTestTracker(t, defaultSettings(), sqliteStore(t))
	ctx := context.Background()

	a := env.tracker.Insert(ctx, models.ItemText, "a", nil)
	env.clock.Shift(time.Hour)
	b := env.tracker.Insert(ctx, models.ItemText, "b", nil)
	_, err := env.tracker.Touch(ctx, b.ID)
	require.NoError(t, err)
	bNow, _ := env.tracker.Get(b.ID)

	winner, err := env.tracker.SetContent(ctx, b.ID, "a")
	require.NoError(t, err)
	require.NotNil(t, winner)
	assert.Equal(t, a.ID, winner.ID)
	assert.True(t, bNow.Datetime.Equal(winner.Datetime))

	entries := env.tracker.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, a.ID, entries[0].ID)
	assert.Contains(t, env.observer.removed, b.ID)
}

func TestTracker_SetContent(t *testing.T) {
	env := newTestTracker(t, defaultSettings(), nil)
	ctx := context.Background()

	e := env.tracker.Insert(ctx, models.ItemText, `C:\path`, nil)
	updated, err := env.tracker.SetContent(ctx, e.ID, `D:\path`)
	require.NoError(t, err)
	assert.Equal(t, e.ID, updated.ID)
	assert.Equal(t, `D:\path`, updated.Content)

	// the old key is free again
	assert.NotNil(t, env.tracker.Insert(ctx, models.ItemText, `C:\path`, nil))
}

func TestTracker_SetContentNotEditable(t *testing.T) {
	env := newTestTracker(t, defaultSettings(), nil)
	e := env.tracker.Insert(context.Background(), models.ItemFile, "file:///a", &models.FileMetadata{Operation: models.FileCopy})

	_, err := env.tracker.SetContent(context.Background(), e.ID, "file:///b")
	assert.ErrorIs(t, err, ErrNotEditable)

	got, ok := env.tracker.Get(e.ID)
	require.True(t, ok)
	assert.Equal(t, "file:///a", got.Content)
	assert.Empty(t, env.observer.changed)

	_, err = env.tracker.SetContent(context.Background(), e.ID+100, "x")
	assert.ErrorIs(t, err, ErrUnknownEntry)
}

func TestTracker_Setters(t *testing.T) {
	env := newTestTracker(t, defaultSettings(), sqliteStore(t))
	ctx := context.Background()
	e := env.tracker.Insert(ctx, models.ItemText, "x", nil)

	_, err := env.tracker.SetTitle(ctx, e.ID, "Shopping")
	require.NoError(t, err)
	_, err = env.tracker.SetTag(ctx, e.ID, models.TagTeal)
	require.NoError(t, err)
	name := "Example"
	_, err = env.tracker.SetMetadata(ctx, e.ID, &models.LinkMetadata{Title: &name})
	require.NoError(t, err)

	got, ok := env.tracker.Get(e.ID)
	require.True(t, ok)
	assert.Equal(t, "Shopping", got.Title)
	assert.Equal(t, models.TagTeal, got.Tag)
	assert.Equal(t, []models.Field{models.FieldTitle, models.FieldTag, models.FieldMetadata}, env.observer.changed)
}

func TestTracker_UnknownEntry(t *testing.T) {
	env := newTestTracker(t, defaultSettings(), nil)
	ctx := context.Background()

	_, err := env.tracker.SetPinned(ctx, 42, true)
	assert.ErrorIs(t, err, ErrUnknownEntry)
	assert.ErrorIs(t, env.tracker.Delete(ctx, 42), ErrUnknownEntry)
}

func TestTracker_StorageFailureLeavesEntryUnchanged(t *testing.T) {
	s := newFailingStore()
	env := newTestTracker(t, defaultSettings(), s)
	ctx := context.Background()
	e := env.tracker.Insert(ctx, models.ItemText, "x", nil)

	s.UpdateErr = errInjected
	_, err := env.tracker.SetPinned(ctx, e.ID, true)
	assert.ErrorIs(t, err, errInjected)
	got, _ := env.tracker.Get(e.ID)
	assert.False(t, got.Pinned)

	s.DeleteErr = errInjected
	assert.Error(t, env.tracker.Delete(ctx, e.ID))
	_, ok := env.tracker.Get(e.ID)
	assert.True(t, ok)
}

func TestTracker_DeleteRemovesCachedImage(t *testing.T) {
	env := newTestTracker(t, defaultSettings(), nil)
	ctx := context.Background()

	data := []byte("\x89PNG\r\n\x1a\nimage")
	uri, err := env.cache.StoreImage(&classify.Image{MimeType: "image/png", Data: data, Checksum: checksum.Bytes(data)})
	require.NoError(t, err)
	path, _ := checksum.StripFileScheme(uri)
	require.FileExists(t, path)

	e := env.tracker.Insert(ctx, models.ItemImage, uri, nil)
	require.NotNil(t, e)
	require.NoError(t, env.tracker.Delete(ctx, e.ID))

	assert.NoFileExists(t, path)
	assert.Empty(t, env.tracker.Entries())
}

func TestTracker_EvictionRemovesLinkThumbnail(t *testing.T) {
	env := newTestTracker(t, Settings{HistoryLength: 1}, nil)
	ctx := context.Background()

	img := "https://example.org/og.png"
	thumb := env.cache.ThumbnailPath(img)
	require.NoError(t, os.MkdirAll(env.cacheDir, 0755))
	require.NoError(t, os.WriteFile(thumb, []byte("thumb"), 0644))

	link := env.tracker.Insert(ctx, models.ItemLink, "https://example.org", &models.LinkMetadata{Image: &img})
	require.NotNil(t, link)
	env.tracker.Insert(ctx, models.ItemText, "newer", nil)

	_, ok := env.tracker.Get(link.ID)
	assert.False(t, ok)
	assert.NoFileExists(t, thumb)
}

func TestTracker_CheckOldest(t *testing.T) {
	env := newTestTracker(t, defaultSettings(), nil)
	ctx := context.Background()
	env.tracker.Insert(ctx, models.ItemText, "x", nil)

	// no age limit
	env.clock.Shift(2 * time.Hour)
	assert.False(t, env.tracker.CheckOldest())

	env.tracker.SetSettings(Settings{HistoryLength: 50, HistoryTime: time.Hour})
	assert.True(t, env.tracker.CheckOldest())

	env.clock.Shift(0)
	assert.False(t, env.tracker.CheckOldest())
}

func TestTracker_ObserverMayCallBack(t *testing.T) {
	var tracker *Tracker
	var seen int
	tracker = NewTracker(TrackerConfig{
		Settings: defaultSettings(),
		Observer: ObserverFuncs{Added: func(e *models.Entry) {
			seen = len(tracker.Entries())
		}},
	})
	tracker.Init(context.Background(), nil)
	defer tracker.Close()

	tracker.Insert(context.Background(), models.ItemText, "x", nil)
	assert.Equal(t, 1, seen)
}

func TestTracker_InsertBeforeInit(t *testing.T) {
	tracker := NewTracker(TrackerConfig{})
	assert.Nil(t, tracker.Insert(context.Background(), models.ItemText, "x", nil))
	_, err := tracker.SetPinned(context.Background(), 0, true)
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.NoError(t, tracker.Close())
}
