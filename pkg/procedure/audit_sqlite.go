// Copyright 2026 © The Fops Authors
// SPDX-License-Identifier: Apache-2.0

package procedure

import (
	"context"
	"database/sql"
	"errors"

	_ "modernc.org/sqlite"
)

// SQLiteAuditStore persists step records in SQLite.
type SQLiteAuditStore struct {
	db *sql.DB
}

// NewSQLiteAuditStore creates a SQLite-backed audit store and ensures schema.
func NewSQLiteAuditStore(db *sql.DB) (*SQLiteAuditStore, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := ensureAuditSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteAuditStore{db: db}, nil
}

// Record stores a single audit event.
func (s *SQLiteAuditStore) Record(ctx context.Context, event AuditEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO procedure_steps (
			proc_name, run_id, step_index, primitive, subject, outcome, attempts,
			corr_id, output_json, error_text, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.Procedure,
		event.RunID,
		event.Index,
		event.Primitive,
		event.Subject,
		event.Outcome,
		event.Attempts,
		event.CorrelationID,
		string(encodeOutput(event.Output)),
		event.Error,
		event.StartedAt.UTC(),
		event.FinishedAt.UTC(),
	)
	return err
}

// List returns audit events matching the filter in recording order.
func (s *SQLiteAuditStore) List(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	query := `
		SELECT proc_name, run_id, step_index, primitive, subject, outcome, attempts,
			corr_id, output_json, error_text, started_at, finished_at
		FROM procedure_steps
	`
	var args []any
	where := ""
	addFilter := func(clause string, value any) {
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
		args = append(args, value)
	}
	if filter.Procedure != "" {
		addFilter("proc_name = ?", filter.Procedure)
	}
	if filter.RunID != "" {
		addFilter("run_id = ?", filter.RunID)
	}
	if filter.Outcome != "" {
		addFilter("outcome = ?", filter.Outcome)
	}
	query += where + " ORDER BY id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var (
			event      AuditEvent
			outputJSON sql.NullString
			errText    sql.NullString
			started    sql.NullTime
			finished   sql.NullTime
		)
		if err := rows.Scan(
			&event.Procedure,
			&event.RunID,
			&event.Index,
			&event.Primitive,
			&event.Subject,
			&event.Outcome,
			&event.Attempts,
			&event.CorrelationID,
			&outputJSON,
			&errText,
			&started,
			&finished,
		); err != nil {
			return nil, err
		}
		event.Output = decodeOutput(outputJSON.String)
		event.Error = errText.String
		if started.Valid {
			event.StartedAt = started.Time
		}
		if finished.Valid {
			event.FinishedAt = finished.Time
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func ensureAuditSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS procedure_steps (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			proc_name TEXT NOT NULL,
			run_id TEXT NOT NULL,
			step_index INTEGER NOT NULL,
			primitive TEXT NOT NULL,
			subject TEXT,
			outcome TEXT,
			attempts INTEGER,
			corr_id TEXT,
			output_json TEXT,
			error_text TEXT,
			started_at TIMESTAMP,
			finished_at TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_procedure_steps_run ON procedure_steps(run_id);
		CREATE INDEX IF NOT EXISTS idx_procedure_steps_outcome ON procedure_steps(outcome);
	`)
	return err
}
