// Package store keeps a Postgres ledger of completed runs, one row per
// pipeline execution, for the run-history API.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            UUID PRIMARY KEY,
	target_name   TEXT NOT NULL,
	target_phone  TEXT NOT NULL,
	room_name     TEXT NOT NULL,
	call_started  TIMESTAMPTZ,
	call_ended    TIMESTAMPTZ,
	codes_sent    INT NOT NULL DEFAULT 0,
	success       BOOLEAN,
	extracted_otp TEXT,
	otp_match     BOOLEAN,
	confidence    TEXT,
	transcript    JSONB,
	analysis      JSONB,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Init creates the runs table if it does not exist.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create runs table: %w", err)
	}
	return nil
}
