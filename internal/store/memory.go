package store

import (
	"context"
	"sync"
	"time"

	"github.com/kilupskalvis/clipvault/internal/models"
)

// MemoryStore keeps history in process memory. It is the fallback when a
// persistent backend cannot be opened. Ids start at 0.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[int64]*models.Entry
	keys    map[string]int64
	nextID  int64
	closed  bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[int64]*models.Entry),
		keys:    make(map[string]int64),
	}
}

// Init reopens a closed store.
func (s *MemoryStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = false
	return nil
}

// Entries returns copies of all entries, newest first.
func (s *MemoryStore) Entries(ctx context.Context) ([]*models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.snapshot(), nil
}

func (s *MemoryStore) snapshot() []*models.Entry {
	out := make([]*models.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Clone())
	}
	sortNewestFirst(out)
	return out
}

func (s *MemoryStore) SelectConflict(ctx context.Context, t models.ItemType, content string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, false, ErrClosed
	}
	id, ok := s.keys[models.EntryKey(t, content)]
	return id, ok, nil
}

func (s *MemoryStore) Insert(ctx context.Context, t models.ItemType, content string, meta models.Metadata) (*models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	key := models.EntryKey(t, content)
	if _, ok := s.keys[key]; ok {
		return nil, ErrConflict
	}

	e := &models.Entry{
		ID:       s.nextID,
		Type:     t,
		Content:  content,
		Datetime: models.Now(),
		Metadata: meta,
	}
	s.nextID++
	s.entries[e.ID] = e
	s.keys[key] = e.ID
	return e.Clone(), nil
}

func (s *MemoryStore) UpdateField(ctx context.Context, e *models.Entry, field models.Field) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	stored, ok := s.entries[e.ID]
	if !ok {
		return ErrNotFound
	}

	updated := stored.Clone()
	if err := applyField(updated, e, field); err != nil {
		return err
	}

	if field.IsKey() {
		oldKey, newKey := stored.Key(), updated.Key()
		if id, taken := s.keys[newKey]; taken && id != e.ID {
			return &ConflictError{ID: id}
		}
		delete(s.keys, oldKey)
		s.keys[newKey] = e.ID
	}

	s.entries[e.ID] = updated
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.remove(id)
	return nil
}

func (s *MemoryStore) remove(id int64) {
	e, ok := s.entries[id]
	if !ok {
		return
	}
	delete(s.keys, e.Key())
	delete(s.entries, id)
}

func (s *MemoryStore) DeleteOldest(ctx context.Context, keep int, olderThan time.Duration) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	ids := evictionCandidates(s.snapshot(), keep, olderThan, time.Now())
	for _, id := range ids {
		s.remove(id)
	}
	return ids, nil
}

func (s *MemoryStore) Clear(ctx context.Context, policy models.ClearPolicy) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	ids := clearCandidates(s.snapshot(), policy)
	for _, id := range ids {
		s.remove(id)
	}
	return ids, nil
}

// Close discards all entries.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[int64]*models.Entry)
	s.keys = make(map[string]int64)
	s.closed = true
	return nil
}
