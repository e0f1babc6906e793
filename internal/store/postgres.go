package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/spendsense/finance-api/internal/db"
	"github.com/spendsense/finance-api/internal/rates"
)

// PostgresStore implements SnapshotStore using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"insert_snapshot": `INSERT INTO rate_snapshots (id, gold_usd, silver_usd, usd_to_egp, stale, sources, captured_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	"latest_snapshot": `SELECT gold_usd, silver_usd, usd_to_egp, stale, sources, captured_at FROM rate_snapshots ORDER BY captured_at DESC LIMIT 1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS rate_snapshots (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	gold_usd    DOUBLE PRECISION NOT NULL,
	silver_usd  DOUBLE PRECISION NOT NULL,
	usd_to_egp  DOUBLE PRECISION NOT NULL,
	stale       BOOLEAN NOT NULL DEFAULT false,
	sources     JSONB NOT NULL,
	captured_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rate_snapshots_captured_at ON rate_snapshots(captured_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Latest(ctx context.Context) (*rates.Snapshot, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT gold_usd, silver_usd, usd_to_egp, stale, sources, captured_at
		 FROM rate_snapshots ORDER BY captured_at DESC LIMIT 1`)

	var snap rates.Snapshot
	var sourcesJSON []byte
	err := row.Scan(&snap.GoldUSD, &snap.SilverUSD, &snap.USDToEGP, &snap.Stale, &sourcesJSON, &snap.CapturedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest snapshot")
	}
	if err := json.Unmarshal(sourcesJSON, &snap.Sources); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal sources")
	}
	return &snap, nil
}

func (s *PostgresStore) Save(ctx context.Context, snap *rates.Snapshot) error {
	sourcesJSON, err := json.Marshal(snap.Sources)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal sources")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO rate_snapshots (id, gold_usd, silver_usd, usd_to_egp, stale, sources, captured_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New().String(), snap.GoldUSD, snap.SilverUSD, snap.USDToEGP,
		snap.Stale, sourcesJSON, snap.CapturedAt.UTC(),
	)
	return eris.Wrap(err, "postgres: insert snapshot")
}
