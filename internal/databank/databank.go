package databank

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/npaujiana/scraper-tiktok/internal/models"
)

// Config controls the persistence layer
type Config struct {
	DSN            string
	MinConns       int32
	MaxConns       int32
	AcquireTimeout time.Duration
	MaxRetries     int
}

// DataBank is the single point of contact with Postgres. It owns the
// connection pool; no other component opens a connection directly.
type DataBank struct {
	pool *pgxpool.Pool
	cfg  Config
}

// Open creates the connection pool, verifies connectivity and applies the
// schema. The pool keeps MinConns warm and lazily grows to MaxConns.
func Open(ctx context.Context, cfg Config) (*DataBank, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConns = cfg.MaxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database connection check failed: %w", err)
	}

	if _, err := pool.Exec(ctx, schemaDDL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	logrus.Infof("Data bank initialized (pool %d..%d connections)", cfg.MinConns, cfg.MaxConns)
	return &DataBank{pool: pool, cfg: cfg}, nil
}

// Close releases the connection pool
func (b *DataBank) Close() {
	if b.pool != nil {
		b.pool.Close()
		logrus.Info("Data bank connection pool closed")
	}
}

// acquire leases one connection, waiting at most AcquireTimeout. The lease
// must be released by the caller as soon as its unit of work is done.
func (b *DataBank) acquire(ctx context.Context) (*pgxpool.Conn, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, b.cfg.AcquireTimeout)
	defer cancel()

	conn, err := b.pool.Acquire(acquireCtx)
	if err != nil {
		if acquireCtx.Err() != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: no connection within %s", ErrPoolExhausted, b.cfg.AcquireTimeout)
		}
		return nil, err
	}
	return conn, nil
}

// Counts returns the current row count per record kind. The reads take no
// locks; numbers are informational only.
func (b *DataBank) Counts(ctx context.Context) (map[models.Kind]int64, error) {
	conn, err := b.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	counts := make(map[models.Kind]int64, len(models.Kinds))
	for _, kind := range models.Kinds {
		spec := tableSpecs[kind]
		var n int64
		if err := conn.QueryRow(ctx, "SELECT count(*) FROM "+spec.table).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", spec.table, classify(err))
		}
		counts[kind] = n
	}
	return counts, nil
}
