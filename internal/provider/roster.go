package provider

import (
	"math/rand/v2"
	"strings"

	"github.com/rotisserie/eris"
)

// Roster is an ordered list of interchangeable model identifiers tried for
// one logical request. Order is significant: the failover orchestrator walks
// it front to back.
type Roster []string

// DefaultFreeModels lists the free-tier chat models tried for summary and
// chat requests. Per-call shuffling spreads load so no single free backend
// absorbs every first attempt.
var DefaultFreeModels = Roster{
	"openai/gpt-oss-120b:free",
	"google/gemini-2.0-flash-exp:free",
	"google/gemma-3-27b-it:free",
	"deepseek/deepseek-r1-0528:free",
	"tngtech/deepseek-r1t2-chimera:free",
	"meta-llama/llama-3.3-70b-instruct:free",
	"mistralai/mistral-7b-instruct:free",
	"mistralai/devstral-2512:free",
	"nvidia/nemotron-3-nano-30b-a3b:free",
	"qwen/qwen-2.5-vl-7b-instruct:free",
	"xiaomi/mimo-v2-flash:free",
	"tngtech/tng-r1t-chimera:free",
}

// DefaultVisionModels are the vision-capable models used for direct receipt
// field extraction from images.
var DefaultVisionModels = Roster{
	"qwen/qwen-2.5-vl-7b-instruct:free",
	"google/gemini-2.0-flash-exp:free",
}

// Validate rejects rosters that cannot produce a usable attempt.
func (r Roster) Validate() error {
	if len(r) == 0 {
		return eris.New("provider: roster is empty")
	}
	for _, id := range r {
		if strings.TrimSpace(id) == "" {
			return eris.New("provider: roster contains a blank model id")
		}
	}
	return nil
}

// Shuffled returns a copy of the roster in random order. Shuffling is a
// call-site policy decision; the orchestrator itself preserves whatever
// order it is given.
func (r Roster) Shuffled() Roster {
	out := make(Roster, len(r))
	copy(out, r)
	rand.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
