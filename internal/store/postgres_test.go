package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spendsense/finance-api/internal/rates"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_LatestEmpty(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT gold_usd, silver_usd, usd_to_egp, stale, sources, captured_at`).
		WillReturnError(pgx.ErrNoRows)

	snap, err := s.Latest(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Latest(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	captured := time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT gold_usd, silver_usd, usd_to_egp, stale, sources, captured_at`).
		WillReturnRows(
			pgxmock.NewRows([]string{"gold_usd", "silver_usd", "usd_to_egp", "stale", "sources", "captured_at"}).
				AddRow(2400.0, 28.0, 48.0, false, []byte(`{"gold_usd":"goldprice"}`), captured),
		)

	snap, err := s.Latest(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.InDelta(t, 2400.0, snap.GoldUSD, 0.01)
	assert.Equal(t, "goldprice", snap.Sources[rates.InstrumentGold])
	assert.True(t, snap.CapturedAt.Equal(captured))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Save(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	snap := &rates.Snapshot{
		GoldUSD: 2400, SilverUSD: 28, USDToEGP: 48, Stale: true,
		CapturedAt: time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC),
		Sources:    map[string]string{rates.InstrumentGold: rates.SourceDefault},
	}

	mock.ExpectExec(`INSERT INTO rate_snapshots`).
		WithArgs(pgxmock.AnyArg(), 2400.0, 28.0, 48.0, true, pgxmock.AnyArg(), snap.CapturedAt.UTC()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.Save(context.Background(), snap))
	assert.NoError(t, mock.ExpectationsWereMet())
}
