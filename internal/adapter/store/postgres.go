package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hookbridge/hookbridge/internal/domain"
)

// PostgresLedger persists processed-event outcomes and HTTP audit rows so
// failures that the hook endpoint swallows remain inspectable afterwards.
type PostgresLedger struct {
	db *sql.DB
}

// NewPostgresLedger opens a connection pool and verifies it with a ping.
func NewPostgresLedger(databaseURL string) (*PostgresLedger, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresLedger{db: db}, nil
}

// Close closes the database connection.
func (s *PostgresLedger) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the ledger tables if they do not exist yet.
func (s *PostgresLedger) EnsureSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS event_outcomes (
			event_id    TEXT PRIMARY KEY,
			owner       TEXT NOT NULL,
			repo        TEXT NOT NULL,
			ref         TEXT NOT NULL,
			stage       TEXT NOT NULL,
			records     INT NOT NULL,
			error       TEXT,
			duration_ms BIGINT NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS http_audit (
			id          BIGSERIAL PRIMARY KEY,
			method      TEXT NOT NULL,
			path        TEXT NOT NULL,
			status      INT NOT NULL,
			ip          TEXT NOT NULL,
			user_agent  TEXT NOT NULL,
			duration_ms BIGINT NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// RecordOutcome implements port.DeliveryLedger.
func (s *PostgresLedger) RecordOutcome(ctx context.Context, outcome domain.Outcome) error {
	query := `INSERT INTO event_outcomes (event_id, owner, repo, ref, stage, records, error, duration_ms)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	var errText sql.NullString
	if outcome.Err != nil {
		errText = sql.NullString{String: outcome.Err.Error(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		outcome.EventID, outcome.Owner, outcome.Repo, outcome.Ref,
		string(outcome.Stage), outcome.Records, errText, outcome.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

// WriteAudit records one served HTTP request.
func (s *PostgresLedger) WriteAudit(method, path string, status int, ip, userAgent string, durationMS int64) error {
	query := `INSERT INTO http_audit (method, path, status, ip, user_agent, duration_ms)
	          VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := s.db.Exec(query, method, path, status, ip, userAgent, durationMS); err != nil {
		return fmt.Errorf("write audit: %w", err)
	}
	return nil
}
