// Package audit implements an optional durable mirror of the indexed/failed
// topic events, so operators can query "what happened to key X" without
// replaying the event bus.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Outcome is the result recorded for a single processed object key.
type Outcome string

const (
	OutcomeIndexed Outcome = "indexed"
	OutcomeFailed  Outcome = "failed"
)

// Entry is one row of the audit ledger.
type Entry struct {
	Key       string
	Outcome   Outcome
	Error     string
	Timestamp time.Time
}

// Ledger persists Entry rows to Postgres via pgx, with the table identifier
// sanitized once at construction and every statement parameterized.
type Ledger struct {
	pool  *pgxpool.Pool
	table string
}

// NewLedger builds a Ledger backed by pool, creating its table if absent.
func NewLedger(ctx context.Context, pool *pgxpool.Pool, table string) (*Ledger, error) {
	if table == "" {
		table = "sbomindexd_audit_log"
	}
	l := &Ledger{pool: pool, table: pgx.Identifier{table}.Sanitize()}
	if err := l.ensureTable(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Ledger) ensureTable(ctx context.Context) error {
	stmt := fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            id bigserial PRIMARY KEY,
            key text NOT NULL,
            outcome text NOT NULL,
            error text NOT NULL DEFAULT '',
            recorded_at timestamptz NOT NULL DEFAULT now()
        )
    `, l.table)
	if _, err := l.pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("audit: create table: %w", err)
	}
	return nil
}

// Record appends a single outcome for key.
func (l *Ledger) Record(ctx context.Context, key string, outcome Outcome, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	stmt := fmt.Sprintf(`INSERT INTO %s (key, outcome, error) VALUES ($1, $2, $3)`, l.table)
	if _, err := l.pool.Exec(ctx, stmt, key, string(outcome), msg); err != nil {
		return fmt.Errorf("audit: record %s: %w", key, err)
	}
	return nil
}

// Recent returns the most recent entries for key, newest first, up to
// limit rows.
func (l *Ledger) Recent(ctx context.Context, key string, limit int) ([]Entry, error) {
	stmt := fmt.Sprintf(
		`SELECT key, outcome, error, recorded_at FROM %s WHERE key = $1 ORDER BY recorded_at DESC LIMIT $2`,
		l.table,
	)
	rows, err := l.pool.Query(ctx, stmt, key, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query %s: %w", key, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var outcome string
		if err := rows.Scan(&e.Key, &outcome, &e.Error, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("audit: scan row: %w", err)
		}
		e.Outcome = Outcome(outcome)
		entries = append(entries, e)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("audit: iterate rows: %w", rows.Err())
	}
	return entries, nil
}
