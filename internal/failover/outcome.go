package failover

import (
	"fmt"
	"strings"
)

// OutcomeKind identifies what happened on a single provider attempt.
type OutcomeKind string

const (
	// KindTrying is emitted immediately before a provider is called.
	KindTrying OutcomeKind = "trying"
	// KindSuccess carries the provider's payload; it terminates a run.
	KindSuccess OutcomeKind = "success"
	// KindRateLimited means the provider returned its too-many-requests signal.
	KindRateLimited OutcomeKind = "rate_limited"
	// KindTimedOut means the per-attempt timeout elapsed.
	KindTimedOut OutcomeKind = "timeout"
	// KindTransportError covers connection failures and any status the other
	// kinds do not claim.
	KindTransportError OutcomeKind = "error"
	// KindEmptyResponse means a 2xx response without the expected payload field.
	KindEmptyResponse OutcomeKind = "empty_response"
)

// Outcome is the classified result of one provider attempt.
type Outcome struct {
	Kind     OutcomeKind
	Provider string
	Payload  string // set only for KindSuccess
	Detail   string // upstream error detail, for logs only
}

func (o Outcome) String() string {
	if o.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", o.Provider, o.Kind, o.Detail)
	}
	return fmt.Sprintf("%s: %s", o.Provider, o.Kind)
}

// Result is the terminal state of an orchestration run: either one provider
// completed, or the roster was exhausted. History holds every non-success
// outcome in attempt order.
type Result struct {
	Completed bool
	Provider  string
	Payload   string
	History   []Outcome
}

// HistorySummary condenses the attempt history for diagnostics. It is meant
// for logs and internal error messages, never for end users.
func (r *Result) HistorySummary() string {
	if len(r.History) == 0 {
		return "no attempts"
	}
	parts := make([]string, len(r.History))
	for i, o := range r.History {
		parts[i] = fmt.Sprintf("%s=%s", o.Provider, o.Kind)
	}
	return strings.Join(parts, ", ")
}
