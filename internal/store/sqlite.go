package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/spendsense/finance-api/internal/rates"
)

// SQLiteStore implements SnapshotStore using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS rate_snapshots (
	id          TEXT PRIMARY KEY,
	gold_usd    REAL NOT NULL,
	silver_usd  REAL NOT NULL,
	usd_to_egp  REAL NOT NULL,
	stale       INTEGER NOT NULL DEFAULT 0,
	sources     TEXT NOT NULL,
	captured_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rate_snapshots_captured_at ON rate_snapshots(captured_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Latest(ctx context.Context) (*rates.Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT gold_usd, silver_usd, usd_to_egp, stale, sources, captured_at
		 FROM rate_snapshots ORDER BY captured_at DESC LIMIT 1`)

	var snap rates.Snapshot
	var sourcesJSON string
	err := row.Scan(&snap.GoldUSD, &snap.SilverUSD, &snap.USDToEGP, &snap.Stale, &sourcesJSON, &snap.CapturedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest snapshot")
	}
	if err := json.Unmarshal([]byte(sourcesJSON), &snap.Sources); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal sources")
	}
	return &snap, nil
}

func (s *SQLiteStore) Save(ctx context.Context, snap *rates.Snapshot) error {
	sourcesJSON, err := json.Marshal(snap.Sources)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal sources")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO rate_snapshots (id, gold_usd, silver_usd, usd_to_egp, stale, sources, captured_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), snap.GoldUSD, snap.SilverUSD, snap.USDToEGP,
		snap.Stale, string(sourcesJSON), snap.CapturedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: insert snapshot")
}
