package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spendsense/finance-api/internal/rates"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "rates.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLiteStore_LatestEmpty(t *testing.T) {
	s := newTestSQLite(t)

	snap, err := s.Latest(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestSQLiteStore_SaveAndLatest(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	older := &rates.Snapshot{
		GoldUSD: 2300, SilverUSD: 27, USDToEGP: 47,
		CapturedAt: time.Date(2024, 6, 14, 8, 0, 0, 0, time.UTC),
		Sources:    map[string]string{rates.InstrumentGold: "goldprice"},
	}
	newer := &rates.Snapshot{
		GoldUSD: 2400, SilverUSD: 28, USDToEGP: 48, Stale: true,
		CapturedAt: time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC),
		Sources:    map[string]string{rates.InstrumentGold: rates.SourceCarried},
	}
	require.NoError(t, s.Save(ctx, older))
	require.NoError(t, s.Save(ctx, newer))

	got, err := s.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.InDelta(t, 2400.0, got.GoldUSD, 0.01)
	assert.True(t, got.Stale)
	assert.Equal(t, rates.SourceCarried, got.Sources[rates.InstrumentGold])
	assert.True(t, got.CapturedAt.Equal(newer.CapturedAt))
}

func TestSQLiteStore_AppendOnly(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		snap := &rates.Snapshot{
			GoldUSD: 2300 + float64(i), SilverUSD: 27, USDToEGP: 47,
			CapturedAt: time.Date(2024, 6, 15, i, 0, 0, 0, time.UTC),
			Sources:    map[string]string{},
		}
		require.NoError(t, s.Save(ctx, snap))
	}

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM rate_snapshots`).Scan(&count))
	assert.Equal(t, 3, count)
}
