package failover

import (
	"encoding/json"
	"net/http"

	"github.com/rotisserie/eris"
)

// Sink receives progress events as an orchestration run produces them. The
// Orchestrator is the only writer for a given run, so implementations need
// no internal locking.
type Sink interface {
	Emit(Outcome)
}

type discard struct{}

func (discard) Emit(Outcome) {}

// Discard drops all progress events. Collect-mode callers use it and read
// the final Result instead.
var Discard Sink = discard{}

// Recorder retains every emitted outcome in order. Used by tests and by
// callers that want the full timeline after the fact.
type Recorder struct {
	Events []Outcome
}

func (r *Recorder) Emit(o Outcome) {
	r.Events = append(r.Events, o)
}

// Event is the wire record for one progress update on a streaming response.
// The type discriminator and reason sub-codes match what the frontend
// already consumes: trying_model, model_failed, success, error.
type Event struct {
	Type    string `json:"type"`
	Model   string `json:"model,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Summary string `json:"summary,omitempty"`
	Message string `json:"message,omitempty"`
}

// SSEWriter forwards outcomes to an HTTP response as server-sent events,
// one self-delimited line-oriented record per event, flushed immediately.
type SSEWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

// NewSSEWriter prepares w for a text/event-stream response. It fails if the
// underlying writer cannot flush incrementally.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, eris.New("failover: response writer does not support streaming")
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	return &SSEWriter{w: w, f: f}, nil
}

// Emit writes one outcome as an SSE data record. Upstream error detail is
// deliberately not forwarded; it belongs in logs, not client responses.
func (s *SSEWriter) Emit(o Outcome) {
	var ev Event
	switch o.Kind {
	case KindTrying:
		ev = Event{Type: "trying_model", Model: o.Provider}
	case KindSuccess:
		ev = Event{Type: "success", Model: o.Provider, Summary: o.Payload}
	case KindRateLimited, KindTimedOut, KindTransportError, KindEmptyResponse:
		ev = Event{Type: "model_failed", Model: o.Provider, Reason: string(o.Kind)}
	default:
		return
	}
	s.write(ev)
}

// Error terminates the stream with a user-facing error record.
func (s *SSEWriter) Error(message string) {
	s.write(Event{Type: "error", Message: message})
}

func (s *SSEWriter) write(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if _, err := s.w.Write([]byte("data: ")); err != nil {
		return
	}
	s.w.Write(data) //nolint:errcheck
	s.w.Write([]byte("\n\n")) //nolint:errcheck
	s.f.Flush()
}
