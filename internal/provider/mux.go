package provider

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
)

// Caller issues one chat completion and returns the raw status and body for
// classification.
type Caller interface {
	ChatCompletion(ctx context.Context, req ChatRequest) (int, []byte, error)
}

// Mux routes each model id to its backend: anthropic/-prefixed ids go to the
// Anthropic caller when one is configured, everything else to OpenRouter.
// This lets a single roster mix free models with paid fallbacks.
type Mux struct {
	openrouter *Client
	anthropic  *AnthropicCaller
}

// NewMux builds a Mux. The anthropic caller may be nil when no key is
// configured; anthropic/ roster entries then fail validation up front.
func NewMux(openrouter *Client, anthropic *AnthropicCaller) *Mux {
	return &Mux{openrouter: openrouter, anthropic: anthropic}
}

// ChatCompletion dispatches to the backend owning req.Model.
func (m *Mux) ChatCompletion(ctx context.Context, req ChatRequest) (int, []byte, error) {
	if strings.HasPrefix(req.Model, anthropicPrefix) {
		if m.anthropic == nil {
			return 0, nil, eris.Errorf("provider: %s requires an anthropic api key", req.Model)
		}
		return m.anthropic.Call(ctx, req)
	}
	if m.openrouter == nil {
		return 0, nil, eris.New("provider: no openrouter client configured")
	}
	return m.openrouter.ChatCompletion(ctx, req)
}
