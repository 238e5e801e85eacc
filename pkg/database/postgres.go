// Package database owns the PostgreSQL pool and schema migrations.
package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	connectTimeout = 10 * time.Second

	// Webhook bursts and the worker share the pool; keep enough headroom
	// that a reconciliation sweep cannot starve request handlers.
	defaultMaxConns = 16
)

// poolConfig parses the DSN and applies our defaults. pgxpool fills MaxConns
// from CPU count when the DSN is silent, so the sizing default only applies
// when no explicit pool_max_conns was given.
func poolConfig(dsn string) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}
	if !strings.Contains(dsn, "pool_max_conns") {
		cfg.MaxConns = defaultMaxConns
	}
	cfg.ConnConfig.RuntimeParams["application_name"] = "atlas-travel"
	return cfg, nil
}

// NewPostgresPool creates a pgx pool and verifies connectivity. Booking
// inserts rely on exclusion constraints, so the schema must be migrated
// (see Migrate) before the pool serves traffic.
func NewPostgresPool(ctx context.Context, dsn string, logger *zap.Logger) (*pgxpool.Pool, error) {
	cfg, err := poolConfig(dsn)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create database pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("postgres pool ready", zap.Int32("max_conns", cfg.MaxConns))
	return pool, nil
}
