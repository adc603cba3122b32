package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/airtide/airtide/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultPingTimeout        = 3 * time.Second
	defaultHealthCheckTimeout = 1 * time.Second
)

// Store is the concrete PostgreSQL driver backed by pgxpool.Pool.
// It intentionally does not leak pgx types through its public API.
type Store struct {
	pool       *pgxpool.Pool
	unregister func()
}

// NewStore initializes the pgx pool from the config, performs a health check
// and registers the pool gauges.
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("postgres: config is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: new pool: %w", err)
	}
	pingTimeout := cfg.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = defaultPingTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	unregister, err := registerPoolMetrics(pool)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: register pool metrics: %w", err)
	}
	logger.FromContext(ctx).Info(
		"Postgres store initialized",
		"max_conns", poolCfg.MaxConns,
	)
	return &Store{pool: pool, unregister: unregister}, nil
}

// Close shuts down the connection pool.
func (s *Store) Close(ctx context.Context) error {
	if s.unregister != nil {
		s.unregister()
	}
	s.pool.Close()
	logger.FromContext(ctx).Info("Postgres store closed")
	return nil
}

// Pool exposes the internal pool for driver-local usage. Do not export pgx
// types through higher layers; keep them local to the driver.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// HealthCheck verifies the connection is alive.
func (s *Store) HealthCheck(ctx context.Context) error {
	checkCtx, cancel := context.WithTimeout(ctx, defaultHealthCheckTimeout)
	defer cancel()
	if err := s.pool.Ping(checkCtx); err != nil {
		return fmt.Errorf("postgres: health check: %w", err)
	}
	return nil
}
