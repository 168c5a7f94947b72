package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kilupskalvis/clipvault/internal/models"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// datetimeLayout is the on-disk timestamp format. Values are UTC and sort
// lexicographically.
const datetimeLayout = "2006-01-02 15:04:05.000000"

// MemoryPath opens an SQLite database that lives only in memory.
const MemoryPath = ":memory:"

// SQLiteStore persists history in a single SQLite table.
type SQLiteStore struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore creates a store for the database at path. Nothing is opened
// until Init.
func NewSQLiteStore(path string, logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteStore{path: path, logger: logger}
}

// Init opens the database, creating its directory if needed, and migrates it.
func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	dsn := s.path
	if s.path != MemoryPath {
		if dir := filepath.Dir(s.path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("%w: create database directory: %v", ErrBackendUnavailable, err)
			}
		}
		dsn = s.path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("%w: open database: %v", ErrBackendUnavailable, err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *SQLiteStore) conn() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, ErrClosed
	}
	return s.db, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) Entries(ctx context.Context) ([]*models.Entry, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, type, content, pinned, tag, datetime, metadata, title
		FROM clipboard
		ORDER BY datetime DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.Entry
	for rows.Next() {
		e, err := s.scanEntry(rows)
		if err != nil {
			return nil, err
		}
		if e != nil {
			entries = append(entries, e)
		}
	}
	return entries, rows.Err()
}

// scanEntry decodes one row. Rows with an unknown type are skipped and a
// malformed metadata document is dropped; both are logged.
func (s *SQLiteStore) scanEntry(rows *sql.Rows) (*models.Entry, error) {
	var (
		e        models.Entry
		typ      string
		tag      sql.NullString
		datetime string
		metadata sql.NullString
		title    sql.NullString
	)
	if err := rows.Scan(&e.ID, &typ, &e.Content, &e.Pinned, &tag, &datetime, &metadata, &title); err != nil {
		return nil, fmt.Errorf("scan entry: %w", err)
	}

	t, err := models.ParseItemType(typ)
	if err != nil {
		s.logger.Warn("skipping entry with unknown type", "id", e.ID, "type", typ)
		return nil, nil
	}
	e.Type = t
	e.Content = unescapeContent(e.Content)
	e.Title = title.String

	if tag.Valid {
		if parsed, err := models.ParseTag(tag.String); err == nil {
			e.Tag = parsed
		} else {
			s.logger.Warn("ignoring unknown tag", "id", e.ID, "tag", tag.String)
		}
	}

	e.Datetime = parseTimestamp(datetime)

	if metadata.Valid && metadata.String != "" {
		meta, err := models.UnmarshalMetadata(e.Type, []byte(metadata.String))
		if err != nil {
			s.logger.Warn("failed to parse metadata", "id", e.ID, "error", err)
		} else {
			e.Metadata = meta
		}
	}
	return &e, nil
}

func (s *SQLiteStore) SelectConflict(ctx context.Context, t models.ItemType, content string) (int64, bool, error) {
	db, err := s.conn()
	if err != nil {
		return 0, false, err
	}
	return selectConflict(ctx, db, t, content)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func selectConflict(ctx context.Context, q queryer, t models.ItemType, content string) (int64, bool, error) {
	var id int64
	err := q.QueryRowContext(ctx,
		`SELECT id FROM clipboard WHERE type = ? AND content = ?`,
		string(t), escapeContent(content),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("select conflict: %w", err)
	}
	return id, true, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, t models.ItemType, content string, meta models.Metadata) (*models.Entry, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	metaJSON, err := encodeMetadata(meta)
	if err != nil {
		return nil, err
	}

	now := models.Now()
	res, err := db.ExecContext(ctx, `
		INSERT INTO clipboard (type, content, pinned, tag, datetime, metadata, title)
		VALUES (?, ?, 0, NULL, ?, ?, NULL)
	`, string(t), escapeContent(content), now.Format(datetimeLayout), metaJSON)
	if isUniqueViolation(err) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("insert entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert entry: %w", err)
	}

	return &models.Entry{
		ID:       id,
		Type:     t,
		Content:  content,
		Datetime: now,
		Metadata: meta,
	}, nil
}

func (s *SQLiteStore) UpdateField(ctx context.Context, e *models.Entry, field models.Field) error {
	db, err := s.conn()
	if err != nil {
		return err
	}

	column, value, err := columnValue(e, field)
	if err != nil {
		return err
	}

	// column comes from a fixed whitelist in columnValue
	res, err := db.ExecContext(ctx, `UPDATE clipboard SET `+column+` = ? WHERE id = ?`, value, e.ID)
	if isUniqueViolation(err) {
		id, found, selErr := selectConflict(ctx, db, e.Type, e.Content)
		if selErr == nil && found && id != e.ID {
			return &ConflictError{ID: id}
		}
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("update %s: %w", field, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// columnValue maps a field to its column and encoded value.
func columnValue(e *models.Entry, field models.Field) (string, any, error) {
	switch field {
	case models.FieldType:
		return "type", string(e.Type), nil
	case models.FieldContent:
		return "content", escapeContent(e.Content), nil
	case models.FieldPinned:
		return "pinned", e.Pinned, nil
	case models.FieldTag:
		if e.Tag == models.TagNone {
			return "tag", nil, nil
		}
		return "tag", string(e.Tag), nil
	case models.FieldDatetime:
		return "datetime", e.Datetime.UTC().Format(datetimeLayout), nil
	case models.FieldMetadata:
		meta, err := encodeMetadata(e.Metadata)
		return "metadata", meta, err
	case models.FieldTitle:
		if e.Title == "" {
			return "title", nil, nil
		}
		return "title", e.Title, nil
	default:
		return "", nil, fmt.Errorf("unknown field %q", field)
	}
}

func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM clipboard WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

// unprotected matches rows that are neither pinned nor tagged. Legacy
// databases may hold an empty tag instead of NULL.
const unprotected = `NOT (pinned OR (tag IS NOT NULL AND tag <> ''))`

func (s *SQLiteStore) DeleteOldest(ctx context.Context, keep int, olderThan time.Duration) ([]int64, error) {
	if keep < 0 {
		keep = 0
	}

	query := `SELECT id FROM (
		SELECT id FROM clipboard WHERE ` + unprotected + `
		ORDER BY datetime DESC, id DESC LIMIT -1 OFFSET ?
	)`
	args := []any{keep}
	if olderThan > 0 {
		cutoff := time.Now().UTC().Add(-olderThan).Format(datetimeLayout)
		query += ` UNION SELECT id FROM clipboard WHERE ` + unprotected + ` AND datetime < ?`
		args = append(args, cutoff)
	}

	return s.selectAndDelete(ctx, query, args...)
}

func (s *SQLiteStore) Clear(ctx context.Context, policy models.ClearPolicy) ([]int64, error) {
	switch policy {
	case models.ClearAll:
		return s.selectAndDelete(ctx, `SELECT id FROM clipboard`)
	case models.KeepPinnedAndTagged:
		return s.selectAndDelete(ctx, `SELECT id FROM clipboard WHERE `+unprotected)
	default:
		return nil, nil
	}
}

// selectAndDelete removes the rows whose ids the query returns, in one
// transaction, and returns those ids.
func (s *SQLiteStore) selectAndDelete(ctx context.Context, query string, args ...any) ([]int64, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select ids: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	const chunk = 500
	for start := 0; start < len(ids); start += chunk {
		end := min(start+chunk, len(ids))
		batch := ids[start:end]

		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(batch)), ",")
		batchArgs := make([]any, len(batch))
		for i, id := range batch {
			batchArgs[i] = id
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM clipboard WHERE id IN (`+placeholders+`)`, batchArgs...); err != nil {
			return nil, fmt.Errorf("delete ids: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return ids, nil
}

func encodeMetadata(meta models.Metadata) (any, error) {
	data, err := models.MarshalMetadata(meta)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	if data == nil {
		return nil, nil
	}
	return string(data), nil
}

// escapeContent doubles backslashes, matching the escaping older databases
// were written with.
func escapeContent(s string) string {
	return strings.ReplaceAll(s, `\`, `\\`)
}

// unescapeContent reverses escapeContent.
func unescapeContent(s string) string {
	return strings.ReplaceAll(s, `\\`, `\`)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// parseTimestamp accepts the formats timestamps have been written with.
func parseTimestamp(s string) time.Time {
	formats := []string{
		datetimeLayout,
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05-07",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
