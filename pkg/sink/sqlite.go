// Copyright 2026 © The Fops Authors
// SPDX-License-Identifier: Apache-2.0

package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jllopis/fops/pkg/trace"
)

// SQLite persists events in a trace_events table.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLite creates a SQLite-backed sink and ensures the schema exists.
func NewSQLite(db *sql.DB, logger *slog.Logger) (*SQLite, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := ensureTraceSchema(db); err != nil {
		return nil, err
	}
	return &SQLite{db: db, logger: logger}, nil
}

// OpenSQLite opens (or creates) the database at path and returns a sink on it.
func OpenSQLite(path string, logger *slog.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s, err := NewSQLite(db, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Emit implements trace.Sink. Write failures are logged and dropped.
func (s *SQLite) Emit(ctx context.Context, ev trace.Event) {
	if err := s.record(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "trace event not stored",
			slog.String("event", string(ev.Kind)),
			slog.String("error", err.Error()))
	}
}

func (s *SQLite) record(ctx context.Context, ev trace.Event) error {
	meta, err := json.Marshal(ev.Meta)
	if err != nil {
		return err
	}
	at := ev.Time
	if at.IsZero() {
		at = time.Now()
	}
	_, err = s.db.ExecContext(context.WithoutCancel(ctx), `
		INSERT INTO trace_events (
			corr_id, attempt, event, function, line_number, code_line, meta_json, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ev.CorrelationID(),
		ev.Attempt(),
		string(ev.Kind),
		ev.Function,
		ev.Line,
		ev.Code,
		string(meta),
		at.UTC(),
	)
	return err
}

func ensureTraceSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS trace_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			corr_id TEXT,
			attempt INTEGER,
			event TEXT NOT NULL,
			function TEXT NOT NULL,
			line_number INTEGER,
			code_line TEXT,
			meta_json TEXT,
			recorded_at TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_trace_events_corr
			ON trace_events(corr_id, attempt);
	`)
	return err
}
