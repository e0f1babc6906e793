package rates

import "time"

// Instrument names, used as map keys in Snapshot.Sources and as column
// names in persistence.
const (
	InstrumentGold     = "gold_usd"
	InstrumentSilver   = "silver_usd"
	InstrumentUSDToEGP = "usd_to_egp"
)

// Instruments lists every quoted instrument, in persistence order.
var Instruments = []string{InstrumentGold, InstrumentSilver, InstrumentUSDToEGP}

// Source markers recorded when a value did not come from a live quote.
const (
	SourceCarried = "carried"
	SourceDefault = "default"
)

// Snapshot is one immutable capture of reference rates. Gold and silver are
// USD per troy ounce; USDToEGP is the conversion rate. Snapshots are
// appended on every refresh and never mutated.
type Snapshot struct {
	GoldUSD    float64   `json:"gold_usd"`
	SilverUSD  float64   `json:"silver_usd"`
	USDToEGP   float64   `json:"usd_to_egp"`
	CapturedAt time.Time `json:"captured_at"`

	// Stale is set when any instrument was carried from a previous
	// snapshot or filled from a default instead of a live source.
	Stale bool `json:"stale"`

	// Sources records which source quoted each instrument, or a marker
	// for carried/default values.
	Sources map[string]string `json:"sources"`
}

// Fresh reports whether the snapshot is inside the staleness window.
func (s *Snapshot) Fresh(now time.Time, window time.Duration) bool {
	return now.Sub(s.CapturedAt) < window
}

// Value returns the quoted value for one instrument.
func (s *Snapshot) Value(instrument string) float64 {
	switch instrument {
	case InstrumentGold:
		return s.GoldUSD
	case InstrumentSilver:
		return s.SilverUSD
	case InstrumentUSDToEGP:
		return s.USDToEGP
	}
	return 0
}

func (s *Snapshot) setValue(instrument string, v float64) {
	switch instrument {
	case InstrumentGold:
		s.GoldUSD = v
	case InstrumentSilver:
		s.SilverUSD = v
	case InstrumentUSDToEGP:
		s.USDToEGP = v
	}
}

// DefaultSnapshot returns the hardcoded fallback used when no source and no
// previous snapshot can supply a value. The numbers are deliberately rough;
// they only cushion a cold start with every source down.
func DefaultSnapshot(now time.Time) *Snapshot {
	return &Snapshot{
		GoldUSD:    2400,
		SilverUSD:  28,
		USDToEGP:   48,
		CapturedAt: now,
		Stale:      true,
		Sources: map[string]string{
			InstrumentGold:     SourceDefault,
			InstrumentSilver:   SourceDefault,
			InstrumentUSDToEGP: SourceDefault,
		},
	}
}
