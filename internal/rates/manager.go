package rates

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SnapshotStore is the slice of persistence the manager needs: the most
// recent snapshot and an append. Implemented by internal/store.
type SnapshotStore interface {
	Latest(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
}

// Config tunes a Manager.
type Config struct {
	// Window is the staleness window: a snapshot younger than this is
	// served without any network I/O. Default: 12h.
	Window time.Duration `yaml:"window" mapstructure:"window"`

	// Now is injectable for tests. Defaults to time.Now.
	Now func() time.Time `yaml:"-" mapstructure:"-"`
}

// Manager serves reference rates from the freshest available of: cached
// snapshot, live sources in priority order, previous snapshot values, and
// hardcoded defaults. It never returns an error to callers; a degraded
// snapshot is still a snapshot.
type Manager struct {
	store   SnapshotStore
	sources []Source
	window  time.Duration
	now     func() time.Time
}

// NewManager builds a Manager over the given store and sources. Source
// order is priority order.
func NewManager(store SnapshotStore, sources []Source, cfg Config) *Manager {
	if cfg.Window <= 0 {
		cfg.Window = 12 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{store: store, sources: sources, window: cfg.Window, now: cfg.Now}
}

// GetRates returns the current snapshot. A fresh persisted snapshot is a
// cache hit unless force is set; otherwise every source is given a chance
// to quote the instruments still missing, the gaps are carried from the
// previous snapshot or defaulted, and the merged result is persisted.
//
// Two concurrent refreshes are allowed to race; the write is append-only
// and last-snapshot-wins, so the race costs a duplicate fetch, not
// correctness.
func (m *Manager) GetRates(ctx context.Context, force bool) *Snapshot {
	now := m.now()

	prev, err := m.store.Latest(ctx)
	if err != nil {
		zap.L().Warn("rates: reading latest snapshot failed", zap.Error(err))
		prev = nil
	}
	if prev != nil && !force && prev.Fresh(now, m.window) {
		return prev
	}

	snap := &Snapshot{CapturedAt: now, Sources: map[string]string{}}
	missing := func() []string {
		var out []string
		for _, inst := range Instruments {
			if _, ok := snap.Sources[inst]; !ok {
				out = append(out, inst)
			}
		}
		return out
	}

	for _, src := range m.sources {
		if len(missing()) == 0 {
			break
		}
		if !src.Available() {
			continue
		}
		quotes, err := src.Fetch(ctx)
		if err != nil {
			zap.L().Warn("rates: source fetch failed",
				zap.String("source", src.Name()),
				zap.Error(err),
			)
			continue
		}
		for _, inst := range missing() {
			if v, ok := quotes[inst]; ok && v > 0 {
				snap.setValue(inst, v)
				snap.Sources[inst] = src.Name()
			}
		}
	}

	defaults := DefaultSnapshot(now)
	for _, inst := range missing() {
		snap.Stale = true
		if prev != nil && prev.Value(inst) > 0 {
			snap.setValue(inst, prev.Value(inst))
			snap.Sources[inst] = SourceCarried
		} else {
			snap.setValue(inst, defaults.Value(inst))
			snap.Sources[inst] = SourceDefault
		}
	}

	if err := m.store.Save(ctx, snap); err != nil {
		zap.L().Warn("rates: persisting snapshot failed", zap.Error(err))
	}

	zap.L().Info("rates: snapshot refreshed",
		zap.Bool("stale", snap.Stale),
		zap.Any("sources", snap.Sources),
	)
	return snap
}
