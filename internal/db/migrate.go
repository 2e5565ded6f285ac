package db

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"regexp"
	"sort"
)

// Migration files are named NNNN_name.sql and applied in version order.
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	migrationsDir   = "migrations"
	migrationsTable = "schema_migrations"
)

var migrationFileRe = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

type migration struct {
	version string
	name    string
	body    string
}

// Migrate applies every embedded migration not yet recorded in
// schema_migrations.
func Migrate(db *sql.DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS ` + migrationsTable + ` (
			version    TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		)
	`); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	applied, err := appliedVersions(db)
	if err != nil {
		return fmt.Errorf("list applied migrations: %w", err)
	}

	pending, err := pendingMigrations(applied)
	if err != nil {
		return err
	}
	for _, m := range pending {
		if err := apply(db, m); err != nil {
			return fmt.Errorf("apply %s_%s.sql: %w", m.version, m.name, err)
		}
		logger.Info("db: migration applied", "version", m.version, "name", m.name)
	}
	return nil
}

func pendingMigrations(applied map[string]bool) ([]migration, error) {
	entries, err := fs.ReadDir(migrationsFS, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var pending []migration
	for _, e := range entries {
		m := migrationFileRe.FindStringSubmatch(e.Name())
		if e.IsDir() || m == nil || applied[m[1]] {
			continue
		}
		body, err := fs.ReadFile(migrationsFS, migrationsDir+"/"+e.Name())
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		pending = append(pending, migration{version: m[1], name: m[2], body: string(body)})
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].version < pending[j].version })
	return pending, nil
}

func appliedVersions(db *sql.DB) (map[string]bool, error) {
	rows, err := db.Query("SELECT version FROM " + migrationsTable)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out[v] = true
	}
	return out, rows.Err()
}

func apply(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(m.body); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.Exec(
		"INSERT INTO "+migrationsTable+" (version, name) VALUES (?, ?)",
		m.version, m.name,
	); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
