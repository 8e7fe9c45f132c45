package progress

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS download_progress (
	namespace  TEXT PRIMARY KEY,
	record     JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresBackend stores the record as one JSONB row keyed by namespace.
type PostgresBackend struct {
	db        *sql.DB
	namespace string
}

// OpenPostgres connects to databaseURL and makes sure the table exists.
func OpenPostgres(ctx context.Context, databaseURL, namespace string) (*PostgresBackend, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	backend := NewPostgresBackend(db, namespace)
	if err := backend.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return backend, nil
}

// NewPostgresBackend wraps an existing connection.
func NewPostgresBackend(db *sql.DB, namespace string) *PostgresBackend {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &PostgresBackend{db: db, namespace: namespace}
}

// Migrate creates the progress table if needed.
func (p *PostgresBackend) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create download_progress: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (p *PostgresBackend) Close() error {
	return p.db.Close()
}

// Read implements Backend. A missing row is an empty record.
func (p *PostgresBackend) Read(ctx context.Context) (Record, error) {
	var raw []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT record FROM download_progress WHERE namespace = $1`, p.namespace,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, nil
	}
	if err != nil {
		return Record{}, fmt.Errorf("read progress: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, fmt.Errorf("parse progress: %w", err)
	}
	return rec, nil
}

// Write implements Backend.
func (p *PostgresBackend) Write(ctx context.Context, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO download_progress (namespace, record, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (namespace) DO UPDATE
		SET record = EXCLUDED.record, updated_at = EXCLUDED.updated_at`,
		p.namespace, raw,
	)
	if err != nil {
		return fmt.Errorf("write progress: %w", err)
	}
	return nil
}

// Clear implements Backend.
func (p *PostgresBackend) Clear(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx,
		`DELETE FROM download_progress WHERE namespace = $1`, p.namespace,
	); err != nil {
		return fmt.Errorf("clear progress: %w", err)
	}
	return nil
}
