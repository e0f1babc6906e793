package advisor

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/spendsense/finance-api/internal/failover"
	"github.com/spendsense/finance-api/internal/provider"
)

// BusyMessage is the only failure text ever shown to users when every model
// in the roster failed. Upstream error details stay in the logs.
const BusyMessage = "All AI models are currently busy. Please try again in a minute."

// NoDataSummary is returned for a month with no transactions; no model is
// called for it.
const NoDataSummary = "You haven't added any transactions yet for this month! Start tracking to get AI insights."

// UnavailableMessage is shown when no model backend is configured at all.
const UnavailableMessage = "AI features are not configured. Add an API key to enable them."

// ErrAllBusy reports that the whole roster was exhausted without a usable
// answer.
var ErrAllBusy = eris.New("advisor: " + BusyMessage)

// ErrUnavailable reports that no credentials are configured, before any
// attempt is made.
var ErrUnavailable = eris.New("advisor: no model backend configured")

// ErrNoTransactions reports a month with nothing to analyze.
var ErrNoTransactions = eris.New("advisor: no transactions found for this month")

// ChatMessage is one turn of a free-form conversation.
type ChatMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Summary is the advisor's answer for one month.
type Summary struct {
	Summary string        `json:"summary"`
	Model   string        `json:"model_used,omitempty"`
	Context *MonthContext `json:"context,omitempty"`
}

// Config tunes an Advisor. Zero values use the defaults below.
type Config struct {
	// Roster is shuffled per request. Defaults to the free-model roster.
	Roster provider.Roster

	// CollectTimeout bounds one attempt in collect mode (default 30s);
	// StreamTimeout bounds one attempt while a client is watching progress
	// (default 15s, failing over faster keeps the stream lively).
	CollectTimeout time.Duration
	StreamTimeout  time.Duration

	// RateLimitPause is handed to the failover layer; zero uses its default.
	RateLimitPause time.Duration

	MaxTokens   int     // default 400
	Temperature float64 // default 0.7
}

func (c Config) withDefaults() Config {
	if len(c.Roster) == 0 {
		c.Roster = provider.DefaultFreeModels
	}
	if c.CollectTimeout <= 0 {
		c.CollectTimeout = 30 * time.Second
	}
	if c.StreamTimeout <= 0 {
		c.StreamTimeout = 15 * time.Second
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 400
	}
	if c.Temperature <= 0 {
		c.Temperature = 0.7
	}
	return c
}

// Advisor produces monthly financial summaries and answers chat questions by
// failing over across a roster of chat models.
type Advisor struct {
	caller  provider.Caller
	cfg     Config
	collect *failover.Orchestrator
	stream  *failover.Orchestrator
}

// New builds an Advisor over the given model caller.
func New(caller provider.Caller, cfg Config) *Advisor {
	cfg = cfg.withDefaults()
	return &Advisor{
		caller:  caller,
		cfg:     cfg,
		collect: failover.New(failover.Config{AttemptTimeout: cfg.CollectTimeout, RateLimitPause: cfg.RateLimitPause}),
		stream:  failover.New(failover.Config{AttemptTimeout: cfg.StreamTimeout, RateLimitPause: cfg.RateLimitPause}),
	}
}

// Summarize analyzes one month and returns the full answer at once. A month
// with no transactions short-circuits to NoDataSummary without any model
// call; a fully exhausted roster returns ErrAllBusy.
func (a *Advisor) Summarize(ctx context.Context, mctx *MonthContext) (*Summary, error) {
	if mctx.Current.TransactionCount == 0 {
		return &Summary{Summary: NoDataSummary, Context: mctx}, nil
	}
	return a.run(ctx, a.collect, mctx, failover.Discard)
}

// SummarizeStream analyzes one month while emitting per-attempt progress to
// sink. The caller owns the wire format; exhaustion comes back as ErrAllBusy
// and an empty month as ErrNoTransactions, both before or instead of a
// success event.
func (a *Advisor) SummarizeStream(ctx context.Context, mctx *MonthContext, sink failover.Sink) (*Summary, error) {
	if mctx.Current.TransactionCount == 0 {
		return nil, ErrNoTransactions
	}
	return a.run(ctx, a.stream, mctx, sink)
}

func (a *Advisor) run(ctx context.Context, orch *failover.Orchestrator, mctx *MonthContext, sink failover.Sink) (*Summary, error) {
	if a.caller == nil {
		return nil, ErrUnavailable
	}
	prompt := buildSummaryPrompt(mctx)
	messages := []provider.Message{
		provider.TextMessage("system", systemPrompt),
		provider.TextMessage("user", prompt),
	}

	res, err := orch.Run(ctx, a.cfg.Roster.Shuffled(), a.callFunc(messages), sink)
	if err != nil {
		return nil, err
	}
	if !res.Completed {
		return nil, ErrAllBusy
	}
	return &Summary{Summary: res.Payload, Model: res.Provider, Context: mctx}, nil
}

// Chat answers one free-form question, optionally grounded in a month
// context. The conversation history rides along so follow-up questions work.
func (a *Advisor) Chat(ctx context.Context, mctx *MonthContext, history []ChatMessage) (*Summary, error) {
	if len(history) == 0 {
		return nil, eris.New("advisor: empty chat history")
	}
	if a.caller == nil {
		return nil, ErrUnavailable
	}

	messages := make([]provider.Message, 0, len(history)+1)
	messages = append(messages, provider.TextMessage("system", buildChatSystemPrompt(mctx)))
	for _, m := range history {
		messages = append(messages, provider.TextMessage(m.Role, m.Content))
	}

	res, err := a.collect.Run(ctx, a.cfg.Roster.Shuffled(), a.callFunc(messages), failover.Discard)
	if err != nil {
		return nil, err
	}
	if !res.Completed {
		return nil, ErrAllBusy
	}
	return &Summary{Summary: res.Payload, Model: res.Provider}, nil
}

func (a *Advisor) callFunc(messages []provider.Message) failover.CallFunc {
	temp := a.cfg.Temperature
	return func(ctx context.Context, model string) (int, []byte, error) {
		return a.caller.ChatCompletion(ctx, provider.ChatRequest{
			Model:       model,
			Messages:    messages,
			MaxTokens:   a.cfg.MaxTokens,
			Temperature: &temp,
		})
	}
}
