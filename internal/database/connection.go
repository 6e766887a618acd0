// Package database opens the Postgres pool and applies schema migrations.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cloo-solutions/agentkb/internal/retry"
)

const applicationName = "agentkb"

type Config struct {
	URL      string
	MaxConns int32
	MinConns int32
	// ConnectAttempts bounds the startup ping loop; zero means 5.
	ConnectAttempts int
	Logger          *zap.Logger
}

// NewPool parses cfg.URL, applies pool sizing and retries the initial ping.
func NewPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = min(cfg.MinConns, poolConfig.MaxConns)
	}
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	poolConfig.HealthCheckPeriod = 30 * time.Second
	if _, ok := poolConfig.ConnConfig.RuntimeParams["application_name"]; !ok {
		poolConfig.ConnConfig.RuntimeParams["application_name"] = applicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	rc := retry.DefaultConfig()
	rc.MaxAttempts = cfg.ConnectAttempts
	if rc.MaxAttempts <= 0 {
		rc.MaxAttempts = 5
	}
	rc.InitialDelay = 500 * time.Millisecond
	if cfg.Logger != nil {
		rc.Logger = cfg.Logger
	}

	if err := retry.Do(ctx, rc, func() error { return pool.Ping(ctx) }); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", poolConfig.ConnConfig.Host, err)
	}
	return pool, nil
}
