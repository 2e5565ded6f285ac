package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"eolos-node/internal/emitter"
	"eolos-node/internal/publisher"
	"eolos-node/internal/utils"
)

// Entry is one journaled emission.
type Entry struct {
	ID        int64     `json:"id"`
	EmittedAt time.Time `json:"emitted_at"`
	Mode      string    `json:"mode"`
	Kind      string    `json:"kind"`
	Counter   int       `json:"counter"`
	Value     float64   `json:"value"`
	Major     int       `json:"major"`
	Minor     int       `json:"minor"`
	FrameHex  string    `json:"frame_hex,omitempty"`
}

// Journal records emissions and connection events.
type Journal struct {
	db *sql.DB
}

func NewJournal(db *sql.DB) *Journal {
	return &Journal{db: db}
}

func (j *Journal) RecordEmission(ctx context.Context, e publisher.Emission) error {
	frameHex := ""
	if e.Framed {
		frameHex = utils.BytesToHex(e.Frame[:])
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO emissions (emitted_at, mode, kind, counter, value, major, minor, frame_hex)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.At.UTC().Format(time.RFC3339Nano),
		e.Mode.String(),
		e.Kind.String(),
		int(e.Counter),
		e.Value,
		int(e.Major),
		int(e.Minor),
		frameHex,
	)
	if err != nil {
		return fmt.Errorf("journal emission: %w", err)
	}
	return nil
}

func (j *Journal) RecordConnEvent(ctx context.Context, ev emitter.ConnEvent) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO connection_events (at, kind, handle, reason)
		VALUES (?, ?, ?, ?)`,
		ev.At.UTC().Format(time.RFC3339Nano),
		ev.Kind.String(),
		int(ev.Handle),
		int(ev.Reason),
	)
	if err != nil {
		return fmt.Errorf("journal connection event: %w", err)
	}
	return nil
}

// Recent returns up to limit emissions, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, emitted_at, mode, kind, counter, value, major, minor, frame_hex
		FROM emissions
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal recent: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e  Entry
			at string
		)
		if err := rows.Scan(&e.ID, &at, &e.Mode, &e.Kind, &e.Counter, &e.Value, &e.Major, &e.Minor, &e.FrameHex); err != nil {
			return nil, fmt.Errorf("journal scan: %w", err)
		}
		e.EmittedAt, err = time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("journal emitted_at %q: %w", at, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (j *Journal) CountEmissions(ctx context.Context) (int, error) {
	var n int
	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM emissions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("journal count: %w", err)
	}
	return n, nil
}

func (j *Journal) CountConnEvents(ctx context.Context) (int, error) {
	var n int
	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM connection_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("journal count: %w", err)
	}
	return n, nil
}

// Ping reports whether the database answers.
func (j *Journal) Ping(ctx context.Context) error {
	var ok int
	return j.db.QueryRowContext(ctx, `SELECT 1`).Scan(&ok)
}
