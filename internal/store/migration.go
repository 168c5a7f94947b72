package store

import (
	"context"
	"database/sql"
	"fmt"
)

// currentSchemaVersion is stored in PRAGMA user_version.
const currentSchemaVersion = 2

// runMigrations brings the database up to currentSchemaVersion. Version 0
// is a fresh file, version 1 predates the title column.
func runMigrations(ctx context.Context, db *sql.DB) error {
	version, err := getSchemaVersion(ctx, db)
	if err != nil {
		return err
	}

	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}

	if version < 1 {
		if err := migrateToV1(ctx, db); err != nil {
			return fmt.Errorf("migration to v1 failed: %w", err)
		}
	}

	if version < 2 {
		if err := migrateToV2(ctx, db); err != nil {
			return fmt.Errorf("migration to v2 failed: %w", err)
		}
	}

	if version != currentSchemaVersion {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
	}
	return nil
}

func getSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

// migrateToV1 creates the clipboard table.
func migrateToV1(ctx context.Context, db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS clipboard (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			type TEXT NOT NULL,
			content TEXT NOT NULL,
			pinned BOOLEAN NOT NULL DEFAULT 0,
			tag TEXT,
			datetime TIMESTAMP NOT NULL,
			metadata TEXT,
			title TEXT,
			UNIQUE (type, content)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_clipboard_datetime ON clipboard(datetime)`,
	}

	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// migrateToV2 adds the title column to databases created before it existed.
func migrateToV2(ctx context.Context, db *sql.DB) error {
	if columnExists(ctx, db, "clipboard", "title") {
		return nil
	}
	_, err := db.ExecContext(ctx, `ALTER TABLE clipboard ADD COLUMN title TEXT`)
	return err
}

// columnExists checks if a column exists in a table
func columnExists(ctx context.Context, db *sql.DB, table, column string) bool {
	var count int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM pragma_table_info(?)
		WHERE name = ?
	`, table, column).Scan(&count)
	return err == nil && count > 0
}
