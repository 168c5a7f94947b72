// Package store provides persistence backends for clipboard history.
// Every backend enforces uniqueness of (type, content), assigns integer ids
// and implements the same eviction and clear semantics.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/kilupskalvis/clipvault/internal/models"
)

var (
	// ErrConflict is returned when an insert or update would duplicate an
	// existing (type, content) pair.
	ErrConflict = errors.New("entry already exists")
	// ErrNotFound is returned when an id does not exist.
	ErrNotFound = errors.New("entry not found")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store closed")
	// ErrBackendUnavailable is returned when a backend cannot be opened.
	ErrBackendUnavailable = errors.New("storage backend unavailable")
)

// ConflictError reports the id of the entry that already holds a key.
type ConflictError struct {
	ID int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("entry already exists with id %d", e.ID)
}

// Is makes errors.Is(err, ErrConflict) match.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// Store is the persistence contract shared by all backends.
type Store interface {
	// Init prepares the backend and applies pending schema migrations.
	Init(ctx context.Context) error
	// Entries returns every entry, newest first.
	Entries(ctx context.Context) ([]*models.Entry, error)
	// SelectConflict returns the id of the entry holding (type, content).
	SelectConflict(ctx context.Context, t models.ItemType, content string) (int64, bool, error)
	// Insert stores a new unpinned, untagged entry stamped with the current
	// time. It returns ErrConflict if the key is already taken.
	Insert(ctx context.Context, t models.ItemType, content string, meta models.Metadata) (*models.Entry, error)
	// UpdateField persists one field of e, identified by e.ID. A change of
	// type or content onto another entry's key returns *ConflictError.
	UpdateField(ctx context.Context, e *models.Entry, field models.Field) error
	// Delete removes an entry. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id int64) error
	// DeleteOldest removes unprotected entries beyond the newest keep, plus
	// unprotected entries older than olderThan when olderThan is positive.
	DeleteOldest(ctx context.Context, keep int, olderThan time.Duration) ([]int64, error)
	// Clear removes the entries the policy selects and returns their ids.
	Clear(ctx context.Context, policy models.ClearPolicy) ([]int64, error)
	// Close releases the backend. It is safe to call more than once.
	Close() error
}

// sortNewestFirst orders entries by datetime descending, breaking ties by id.
func sortNewestFirst(entries []*models.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Datetime.Equal(entries[j].Datetime) {
			return entries[i].Datetime.After(entries[j].Datetime)
		}
		return entries[i].ID > entries[j].ID
	})
}

// evictionCandidates returns the ids DeleteOldest removes from a snapshot.
// The snapshot must already be sorted newest first.
func evictionCandidates(entries []*models.Entry, keep int, olderThan time.Duration, now time.Time) []int64 {
	if keep < 0 {
		keep = 0
	}
	var cutoff time.Time
	if olderThan > 0 {
		cutoff = now.Add(-olderThan)
	}

	var ids []int64
	rank := 0
	for _, e := range entries {
		if e.Protected() {
			continue
		}
		overflow := rank >= keep
		rank++
		expired := olderThan > 0 && e.Datetime.Before(cutoff)
		if overflow || expired {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

// clearCandidates returns the ids a clear with the given policy removes.
func clearCandidates(entries []*models.Entry, policy models.ClearPolicy) []int64 {
	var ids []int64
	for _, e := range entries {
		if policy.Removes(e) {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

// applyField copies one field from src onto dst.
func applyField(dst, src *models.Entry, field models.Field) error {
	switch field {
	case models.FieldType:
		dst.Type = src.Type
	case models.FieldContent:
		dst.Content = src.Content
	case models.FieldPinned:
		dst.Pinned = src.Pinned
	case models.FieldTag:
		dst.Tag = src.Tag
	case models.FieldDatetime:
		dst.Datetime = src.Datetime.UTC()
	case models.FieldMetadata:
		dst.Metadata = src.Metadata
	case models.FieldTitle:
		dst.Title = src.Title
	default:
		return fmt.Errorf("unknown field %q", field)
	}
	return nil
}
