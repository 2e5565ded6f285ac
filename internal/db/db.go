// Package db keeps a local SQLite journal of what the node put on the air.
package db

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Open opens (or creates) the journal database at path, logs every statement
// at debug level and applies pending migrations. ":memory:" gives a private
// in-memory database.
func Open(path string, logger *slog.Logger) (*sql.DB, error) {
	dsn, err := buildDSN(path)
	if err != nil {
		return nil, err
	}

	connector, err := NewLoggingConnector(dsn, logger)
	if err != nil {
		return nil, err
	}
	db := sql.OpenDB(connector)

	// One writer: the control loop. A single connection also keeps an
	// in-memory database alive and shared.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if err := Migrate(db, logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db migrate: %w", err)
	}
	return db, nil
}

func Close(db *sql.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}

func buildDSN(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}

	if !strings.HasPrefix(path, "file:") {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", fmt.Errorf("mkdir %s: %w", dir, err)
			}
		}
	}

	// busy_timeout covers the HTTP status reads racing the loop's writes.
	params := []string{
		"_foreign_keys=on",
		"_busy_timeout=5000",
		"_journal_mode=WAL",
	}

	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}
	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}
