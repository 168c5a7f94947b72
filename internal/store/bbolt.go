package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/kilupskalvis/clipvault/internal/checksum"
	"github.com/kilupskalvis/clipvault/internal/models"
	bolt "go.etcd.io/bbolt"
)

// Bucket names used by the bolt store.
var (
	bucketEntries = []byte("entries") // id -> boltRecord JSON
	bucketKeys    = []byte("keys")    // checksum of "{type}:{content}" -> ids
	bucketMeta    = []byte("meta")
)

var keySchemaVersion = []byte("schema_version")

// Version 2 keys the keys bucket by digest; version 1 used the raw key,
// which bbolt rejects once it exceeds bolt.MaxKeySize.
const boltSchemaVersion = 2

// BoltStore persists history in an embedded bbolt file.
type BoltStore struct {
	mu     sync.Mutex
	db     *bolt.DB
	path   string
	logger *slog.Logger
}

type boltRecord struct {
	ID       int64           `json:"id"`
	Type     models.ItemType `json:"type"`
	Content  string          `json:"content"`
	Pinned   bool            `json:"pinned"`
	Tag      models.Tag      `json:"tag,omitempty"`
	Datetime time.Time       `json:"datetime"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
	Title    string          `json:"title,omitempty"`
}

// NewBoltStore creates a store for the bolt file at path. Nothing is opened
// until Init.
func NewBoltStore(path string, logger *slog.Logger) *BoltStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &BoltStore{path: path, logger: logger}
}

// Init opens or creates the database file and its buckets.
func (s *BoltStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("%w: create database directory: %v", ErrBackendUnavailable, err)
		}
	}

	db, err := bolt.Open(s.path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return fmt.Errorf("%w: open database: %v", ErrBackendUnavailable, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketEntries, bucketKeys, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		meta := tx.Bucket(bucketMeta)
		version := 0
		if v := meta.Get(keySchemaVersion); v != nil {
			n, err := strconv.Atoi(string(v))
			if err != nil {
				return fmt.Errorf("invalid schema version %q", v)
			}
			version = n
			if version > boltSchemaVersion {
				return fmt.Errorf("database schema version %d is newer than supported version %d", version, boltSchemaVersion)
			}
		}
		if version < boltSchemaVersion {
			if err := rebuildKeys(tx); err != nil {
				return fmt.Errorf("rebuild key index: %w", err)
			}
		}
		return meta.Put(keySchemaVersion, []byte(strconv.Itoa(boltSchemaVersion)))
	})
	if err != nil {
		db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *BoltStore) conn() (*bolt.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, ErrClosed
	}
	return s.db, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func itob(id int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

func btoi(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b))
}

func toRecord(e *models.Entry) (*boltRecord, error) {
	meta, err := models.MarshalMetadata(e.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return &boltRecord{
		ID:       e.ID,
		Type:     e.Type,
		Content:  e.Content,
		Pinned:   e.Pinned,
		Tag:      e.Tag,
		Datetime: e.Datetime.UTC(),
		Metadata: meta,
		Title:    e.Title,
	}, nil
}

func (s *BoltStore) fromRecord(r *boltRecord) *models.Entry {
	e := &models.Entry{
		ID:       r.ID,
		Type:     r.Type,
		Content:  r.Content,
		Pinned:   r.Pinned,
		Tag:      r.Tag,
		Datetime: r.Datetime.UTC(),
		Title:    r.Title,
	}
	if len(r.Metadata) > 0 {
		meta, err := models.UnmarshalMetadata(r.Type, r.Metadata)
		if err != nil {
			s.logger.Warn("failed to parse metadata", "id", r.ID, "error", err)
		} else {
			e.Metadata = meta
		}
	}
	return e
}

func getRecord(tx *bolt.Tx, id int64) (*boltRecord, error) {
	data := tx.Bucket(bucketEntries).Get(itob(id))
	if data == nil {
		return nil, ErrNotFound
	}
	var r boltRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode entry %d: %w", id, err)
	}
	return &r, nil
}

func putRecord(tx *bolt.Tx, r *boltRecord) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	return tx.Bucket(bucketEntries).Put(itob(r.ID), data)
}

// keyDigest returns the keys bucket key for a type and content pair. Content
// is unbounded, so the key is a fixed-size digest and the bucket value lists
// every id sharing it.
func keyDigest(t models.ItemType, content string) []byte {
	return []byte(checksum.Text(models.EntryKey(t, content)))
}

// lookupKey returns the id of the entry holding exactly this type and content.
func lookupKey(tx *bolt.Tx, t models.ItemType, content string) (int64, bool, error) {
	v := tx.Bucket(bucketKeys).Get(keyDigest(t, content))
	for i := 0; i+8 <= len(v); i += 8 {
		id := btoi(v[i : i+8])
		r, err := getRecord(tx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return 0, false, err
		}
		if r.Type == t && r.Content == content {
			return id, true, nil
		}
	}
	return 0, false, nil
}

func addKey(tx *bolt.Tx, t models.ItemType, content string, id int64) error {
	keys := tx.Bucket(bucketKeys)
	k := keyDigest(t, content)
	v := append(append([]byte(nil), keys.Get(k)...), itob(id)...)
	return keys.Put(k, v)
}

func removeKey(tx *bolt.Tx, t models.ItemType, content string, id int64) error {
	keys := tx.Bucket(bucketKeys)
	k := keyDigest(t, content)
	v := keys.Get(k)
	var rest []byte
	for i := 0; i+8 <= len(v); i += 8 {
		if btoi(v[i:i+8]) != id {
			rest = append(rest, v[i:i+8]...)
		}
	}
	if len(rest) == 0 {
		return keys.Delete(k)
	}
	return keys.Put(k, rest)
}

// rebuildKeys recreates the keys bucket from the stored entries.
func rebuildKeys(tx *bolt.Tx) error {
	if err := tx.DeleteBucket(bucketKeys); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
		return err
	}
	if _, err := tx.CreateBucket(bucketKeys); err != nil {
		return err
	}
	return tx.Bucket(bucketEntries).ForEach(func(k, v []byte) error {
		var r boltRecord
		if err := json.Unmarshal(v, &r); err != nil {
			return nil
		}
		return addKey(tx, r.Type, r.Content, btoi(k))
	})
}

func (s *BoltStore) allEntries(tx *bolt.Tx) ([]*models.Entry, error) {
	var entries []*models.Entry
	err := tx.Bucket(bucketEntries).ForEach(func(k, v []byte) error {
		var r boltRecord
		if err := json.Unmarshal(v, &r); err != nil {
			s.logger.Warn("skipping undecodable entry", "id", btoi(k), "error", err)
			return nil
		}
		entries = append(entries, s.fromRecord(&r))
		return nil
	})
	sortNewestFirst(entries)
	return entries, err
}

func (s *BoltStore) Entries(ctx context.Context) ([]*models.Entry, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	var entries []*models.Entry
	err = db.View(func(tx *bolt.Tx) error {
		var err error
		entries, err = s.allEntries(tx)
		return err
	})
	return entries, err
}

func (s *BoltStore) SelectConflict(ctx context.Context, t models.ItemType, content string) (int64, bool, error) {
	db, err := s.conn()
	if err != nil {
		return 0, false, err
	}
	var (
		id    int64
		found bool
	)
	err = db.View(func(tx *bolt.Tx) error {
		var err error
		id, found, err = lookupKey(tx, t, content)
		return err
	})
	return id, found, err
}

func (s *BoltStore) Insert(ctx context.Context, t models.ItemType, content string, meta models.Metadata) (*models.Entry, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	e := &models.Entry{Type: t, Content: content, Datetime: models.Now(), Metadata: meta}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, found, err := lookupKey(tx, t, content); err != nil {
			return err
		} else if found {
			return ErrConflict
		}

		seq, err := tx.Bucket(bucketEntries).NextSequence()
		if err != nil {
			return err
		}
		e.ID = int64(seq)

		r, err := toRecord(e)
		if err != nil {
			return err
		}
		if err := putRecord(tx, r); err != nil {
			return err
		}
		return addKey(tx, t, content, e.ID)
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *BoltStore) UpdateField(ctx context.Context, e *models.Entry, field models.Field) error {
	db, err := s.conn()
	if err != nil {
		return err
	}

	return db.Update(func(tx *bolt.Tx) error {
		r, err := getRecord(tx, e.ID)
		if err != nil {
			return err
		}
		stored := s.fromRecord(r)
		updated := stored.Clone()
		if err := applyField(updated, e, field); err != nil {
			return err
		}

		if field.IsKey() {
			other, found, err := lookupKey(tx, updated.Type, updated.Content)
			if err != nil {
				return err
			}
			if found && other != e.ID {
				return &ConflictError{ID: other}
			}
			if err := removeKey(tx, stored.Type, stored.Content, e.ID); err != nil {
				return err
			}
			if err := addKey(tx, updated.Type, updated.Content, e.ID); err != nil {
				return err
			}
		}

		nr, err := toRecord(updated)
		if err != nil {
			return err
		}
		if field != models.FieldMetadata {
			// keep undecodable metadata untouched
			nr.Metadata = r.Metadata
		}
		return putRecord(tx, nr)
	})
}

func (s *BoltStore) Delete(ctx context.Context, id int64) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	return db.Update(func(tx *bolt.Tx) error {
		return deleteRecord(tx, id)
	})
}

func deleteRecord(tx *bolt.Tx, id int64) error {
	r, err := getRecord(tx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := removeKey(tx, r.Type, r.Content, id); err != nil {
		return err
	}
	return tx.Bucket(bucketEntries).Delete(itob(id))
}

func (s *BoltStore) DeleteOldest(ctx context.Context, keep int, olderThan time.Duration) ([]int64, error) {
	return s.deleteWhere(func(entries []*models.Entry) []int64 {
		return evictionCandidates(entries, keep, olderThan, time.Now())
	})
}

func (s *BoltStore) Clear(ctx context.Context, policy models.ClearPolicy) ([]int64, error) {
	return s.deleteWhere(func(entries []*models.Entry) []int64 {
		return clearCandidates(entries, policy)
	})
}

// deleteWhere removes the ids pick selects from a snapshot, in one transaction.
func (s *BoltStore) deleteWhere(pick func([]*models.Entry) []int64) ([]int64, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	var ids []int64
	err = db.Update(func(tx *bolt.Tx) error {
		entries, err := s.allEntries(tx)
		if err != nil {
			return err
		}
		ids = pick(entries)
		for _, id := range ids {
			if err := deleteRecord(tx, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}
