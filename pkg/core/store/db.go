// Package store persists extraction runs. Runs land in Postgres when
// DATABASE_URL is configured, with a file-based fallback for local use.
package store

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	pool    *pgxpool.Pool
	poolErr error
	once    sync.Once
)

// InitDB initializes the shared connection pool from the DATABASE_URL
// environment variable. Safe to call more than once; a failed init stays
// failed for the process lifetime.
func InitDB(ctx context.Context) error {
	once.Do(func() {
		pool, poolErr = open(ctx)
	})
	return poolErr
}

// open builds the pool. The extractor is a batch CLI with a handful of
// writers at most, so the pool stays small.
func open(ctx context.Context) (*pgxpool.Pool, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}

	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	cfg.MaxConns = 4
	cfg.ConnConfig.RuntimeParams["application_name"] = "secfilings"

	return pgxpool.NewWithConfig(ctx, cfg)
}

// GetPool returns the shared connection pool, nil until InitDB succeeds.
func GetPool() *pgxpool.Pool {
	return pool
}

// Close closes the shared connection pool.
func Close() {
	if pool != nil {
		pool.Close()
	}
}
