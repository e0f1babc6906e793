package rates

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	latest  *Snapshot
	saved   []*Snapshot
	readErr error
	saveErr error
}

func (s *memStore) Latest(context.Context) (*Snapshot, error) {
	if s.readErr != nil {
		return nil, s.readErr
	}
	return s.latest, nil
}

func (s *memStore) Save(_ context.Context, snap *Snapshot) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, snap)
	s.latest = snap
	return nil
}

type stubSource struct {
	name   string
	avail  bool
	quotes map[string]float64
	err    error
	calls  int
}

func (s *stubSource) Name() string    { return s.name }
func (s *stubSource) Available() bool { return s.avail }
func (s *stubSource) Fetch(context.Context) (map[string]float64, error) {
	s.calls++
	return s.quotes, s.err
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

var t0 = time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC)

func TestGetRatesCacheHit(t *testing.T) {
	cached := &Snapshot{GoldUSD: 2300, SilverUSD: 27, USDToEGP: 47, CapturedAt: t0.Add(-time.Hour)}
	store := &memStore{latest: cached}
	src := &stubSource{name: "goldprice", avail: true}

	m := NewManager(store, []Source{src}, Config{Window: 12 * time.Hour, Now: fixedClock(t0)})
	snap := m.GetRates(context.Background(), false)

	assert.Same(t, cached, snap)
	assert.Equal(t, 0, src.calls, "fresh cache must not touch the network")
	assert.Empty(t, store.saved)
}

func TestGetRatesFreshnessBoundary(t *testing.T) {
	window := 12 * time.Hour
	src := &stubSource{name: "goldprice", avail: true,
		quotes: map[string]float64{InstrumentGold: 2400, InstrumentSilver: 28, InstrumentUSDToEGP: 48}}

	t.Run("just inside window", func(t *testing.T) {
		store := &memStore{latest: &Snapshot{GoldUSD: 1, CapturedAt: t0.Add(-window + time.Second)}}
		m := NewManager(store, []Source{src}, Config{Window: window, Now: fixedClock(t0)})
		m.GetRates(context.Background(), false)
		assert.Empty(t, store.saved)
	})

	t.Run("exactly at window", func(t *testing.T) {
		store := &memStore{latest: &Snapshot{GoldUSD: 1, CapturedAt: t0.Add(-window)}}
		m := NewManager(store, []Source{src}, Config{Window: window, Now: fixedClock(t0)})
		snap := m.GetRates(context.Background(), false)
		require.Len(t, store.saved, 1)
		assert.InDelta(t, 2400.0, snap.GoldUSD, 0.01)
	})
}

func TestGetRatesForceBypassesFreshCache(t *testing.T) {
	store := &memStore{latest: &Snapshot{GoldUSD: 1, CapturedAt: t0.Add(-time.Minute)}}
	src := &stubSource{name: "goldprice", avail: true,
		quotes: map[string]float64{InstrumentGold: 2400, InstrumentSilver: 28, InstrumentUSDToEGP: 48}}

	m := NewManager(store, []Source{src}, Config{Now: fixedClock(t0)})
	snap := m.GetRates(context.Background(), true)

	assert.Equal(t, 1, src.calls)
	assert.InDelta(t, 2400.0, snap.GoldUSD, 0.01)
	assert.False(t, snap.Stale)
}

func TestGetRatesSourceFallbackChain(t *testing.T) {
	primary := &stubSource{name: "goldprice", avail: true,
		quotes: map[string]float64{InstrumentGold: 2400}}
	secondary := &stubSource{name: "metals", avail: true,
		quotes: map[string]float64{InstrumentGold: 2390, InstrumentSilver: 28}}
	tertiary := &stubSource{name: "currency", avail: true,
		quotes: map[string]float64{InstrumentUSDToEGP: 48}}

	store := &memStore{}
	m := NewManager(store, []Source{primary, secondary, tertiary}, Config{Now: fixedClock(t0)})
	snap := m.GetRates(context.Background(), false)

	assert.InDelta(t, 2400.0, snap.GoldUSD, 0.01, "primary quote wins over secondary")
	assert.InDelta(t, 28.0, snap.SilverUSD, 0.01)
	assert.InDelta(t, 48.0, snap.USDToEGP, 0.01)
	assert.False(t, snap.Stale)
	assert.Equal(t, "goldprice", snap.Sources[InstrumentGold])
	assert.Equal(t, "metals", snap.Sources[InstrumentSilver])
	assert.Equal(t, "currency", snap.Sources[InstrumentUSDToEGP])
	require.Len(t, store.saved, 1)
}

func TestGetRatesSkipsUnavailableSources(t *testing.T) {
	keyed := &stubSource{name: "metals", avail: false,
		quotes: map[string]float64{InstrumentGold: 1}}
	open := &stubSource{name: "currency", avail: true,
		quotes: map[string]float64{InstrumentUSDToEGP: 48}}

	m := NewManager(&memStore{}, []Source{keyed, open}, Config{Now: fixedClock(t0)})
	snap := m.GetRates(context.Background(), false)

	assert.Equal(t, 0, keyed.calls)
	assert.Equal(t, 1, open.calls)
	assert.Equal(t, SourceDefault, snap.Sources[InstrumentGold])
}

func TestGetRatesCarriesForwardOnTotalFailure(t *testing.T) {
	prev := &Snapshot{GoldUSD: 2350, SilverUSD: 27.5, USDToEGP: 47.5, CapturedAt: t0.Add(-24 * time.Hour)}
	store := &memStore{latest: prev}
	down := &stubSource{name: "goldprice", avail: true, err: eris.New("connect refused")}

	m := NewManager(store, []Source{down}, Config{Now: fixedClock(t0)})
	snap := m.GetRates(context.Background(), false)

	require.NotNil(t, snap)
	assert.True(t, snap.Stale)
	assert.InDelta(t, 2350.0, snap.GoldUSD, 0.01)
	assert.Equal(t, SourceCarried, snap.Sources[InstrumentGold])
	assert.Equal(t, SourceCarried, snap.Sources[InstrumentUSDToEGP])
	require.Len(t, store.saved, 1, "degraded snapshots still persist")
}

func TestGetRatesDefaultsOnColdStart(t *testing.T) {
	down := &stubSource{name: "goldprice", avail: true, err: eris.New("timeout")}
	m := NewManager(&memStore{}, []Source{down}, Config{Now: fixedClock(t0)})

	snap := m.GetRates(context.Background(), false)

	require.NotNil(t, snap)
	assert.True(t, snap.Stale)
	assert.Greater(t, snap.GoldUSD, 0.0)
	assert.Greater(t, snap.USDToEGP, 0.0)
	assert.Equal(t, SourceDefault, snap.Sources[InstrumentGold])
}

func TestGetRatesNeverErrorsOnStoreFailure(t *testing.T) {
	store := &memStore{readErr: eris.New("db down"), saveErr: eris.New("db down")}
	src := &stubSource{name: "goldprice", avail: true,
		quotes: map[string]float64{InstrumentGold: 2400, InstrumentSilver: 28, InstrumentUSDToEGP: 48}}

	m := NewManager(store, []Source{src}, Config{Now: fixedClock(t0)})
	snap := m.GetRates(context.Background(), false)

	require.NotNil(t, snap)
	assert.InDelta(t, 2400.0, snap.GoldUSD, 0.01)
}

func TestGetRatesPartialCoverageMergesWithPrevious(t *testing.T) {
	prev := &Snapshot{GoldUSD: 2350, SilverUSD: 27.5, USDToEGP: 47.5, CapturedAt: t0.Add(-24 * time.Hour)}
	store := &memStore{latest: prev}
	partial := &stubSource{name: "goldprice", avail: true,
		quotes: map[string]float64{InstrumentGold: 2410}}

	m := NewManager(store, []Source{partial}, Config{Now: fixedClock(t0)})
	snap := m.GetRates(context.Background(), false)

	assert.InDelta(t, 2410.0, snap.GoldUSD, 0.01)
	assert.InDelta(t, 27.5, snap.SilverUSD, 0.01)
	assert.True(t, snap.Stale)
	assert.Equal(t, "goldprice", snap.Sources[InstrumentGold])
	assert.Equal(t, SourceCarried, snap.Sources[InstrumentSilver])
}
