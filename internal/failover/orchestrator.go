package failover

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// CallFunc invokes one provider and returns the raw HTTP status and body, or
// an error for transport-level failures. The context carries the per-attempt
// timeout.
type CallFunc func(ctx context.Context, provider string) (status int, body []byte, err error)

// Config tunes a single Orchestrator. Zero values fall back to defaults.
type Config struct {
	// AttemptTimeout bounds each individual provider call.
	// Observed call sites use 15s (streaming) to 45s (vision). Default: 15s.
	AttemptTimeout time.Duration `yaml:"attempt_timeout" mapstructure:"attempt_timeout"`

	// RateLimitPause is the fixed pause after a rate-limited attempt before
	// the next roster entry is tried. Default: 500ms.
	RateLimitPause time.Duration `yaml:"rate_limit_pause" mapstructure:"rate_limit_pause"`
}

func (c Config) withDefaults() Config {
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 15 * time.Second
	}
	if c.RateLimitPause <= 0 {
		c.RateLimitPause = 500 * time.Millisecond
	}
	return c
}

// Orchestrator drives a roster of interchangeable providers against one
// logical request, strictly sequentially, stopping at first success.
//
// Sequential by contract: the backends are paid (or quota'd) per call, so
// parallel fan-out is not an option here.
type Orchestrator struct {
	cfg Config
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{cfg: cfg.withDefaults()}
}

// Run tries each roster entry in order. For every provider it emits a trying
// event, calls under the per-attempt timeout, classifies the response, and
// emits the classified outcome. The first success terminates the run; a
// rate-limited attempt pauses briefly before the next provider.
//
// Ordering is caller policy: shuffle the roster before calling Run if load
// should be spread. An empty roster is an input error, reported before any
// attempt. Context cancellation aborts the in-flight call and returns
// ctx.Err().
func (o *Orchestrator) Run(ctx context.Context, roster []string, call CallFunc, sink Sink) (*Result, error) {
	if len(roster) == 0 {
		return nil, eris.New("failover: empty provider roster")
	}
	if sink == nil {
		sink = Discard
	}

	runID := uuid.New().String()
	result := &Result{}

	for _, prov := range roster {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sink.Emit(Outcome{Kind: KindTrying, Provider: prov})

		attemptCtx, cancel := context.WithTimeout(ctx, o.cfg.AttemptTimeout)
		status, body, callErr := call(attemptCtx, prov)
		cancel()

		outcome := Classify(prov, status, body, callErr)
		sink.Emit(outcome)

		if outcome.Kind == KindSuccess {
			zap.L().Info("failover: provider succeeded",
				zap.String("run_id", runID),
				zap.String("provider", prov),
				zap.Int("failed_attempts", len(result.History)),
			)
			result.Completed = true
			result.Provider = prov
			result.Payload = outcome.Payload
			return result, nil
		}

		result.History = append(result.History, outcome)
		zap.L().Warn("failover: provider attempt failed",
			zap.String("run_id", runID),
			zap.String("provider", prov),
			zap.String("kind", string(outcome.Kind)),
			zap.String("detail", outcome.Detail),
		)

		if outcome.Kind == KindRateLimited {
			if err := sleepCtx(ctx, o.cfg.RateLimitPause); err != nil {
				return nil, err
			}
		}
	}

	zap.L().Warn("failover: roster exhausted",
		zap.String("run_id", runID),
		zap.Int("attempts", len(result.History)),
		zap.String("history", result.HistorySummary()),
	)
	return result, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
