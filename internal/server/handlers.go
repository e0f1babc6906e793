package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spendsense/finance-api/internal/advisor"
	"github.com/spendsense/finance-api/internal/failover"
)

// maxUploadBytes caps receipt uploads at 10 MiB.
const maxUploadBytes = 10 << 20

// monthRequest is the JSON body for summary, progress and chat calls. A
// caller either sends raw transactions for this layer to aggregate, or a
// prebuilt context.
type monthRequest struct {
	Year     int                   `json:"year"`
	Month    int                   `json:"month"`
	Current  []advisor.Transaction `json:"current"`
	Previous []advisor.Transaction `json:"previous"`
	Budgets  []advisor.Budget      `json:"budgets"`
	Context  *advisor.MonthContext `json:"context"`
	Messages []advisor.ChatMessage `json:"messages"`
}

func (m *monthRequest) monthContext() *advisor.MonthContext {
	if m.Context != nil {
		return m.Context
	}
	return advisor.BuildMonthContext(m.Year, m.Month, m.Current, m.Previous, m.Budgets)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	var req monthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	summary, err := s.deps.Advisor.Summarize(r.Context(), req.monthContext())
	if err != nil {
		if errors.Is(err, advisor.ErrAllBusy) {
			writeError(w, http.StatusServiceUnavailable, advisor.BusyMessage)
			return
		}
		if errors.Is(err, advisor.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, advisor.UnavailableMessage)
			return
		}
		zap.L().Error("summary failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "summary failed")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleProgress streams per-model progress as server-sent events. The month
// payload arrives either as a `context` query parameter (JSON, for
// EventSource clients) or as a POST body.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	var req monthRequest
	if raw := r.URL.Query().Get("context"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid context parameter")
			return
		}
	} else if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	sse, err := failover.NewSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// Client disconnects cancel r.Context() and abort the in-flight
	// provider call with it.
	_, err = s.deps.Advisor.SummarizeStream(r.Context(), req.monthContext(), sse)
	switch {
	case err == nil:
		// Success event already emitted by the orchestrator.
	case errors.Is(err, advisor.ErrNoTransactions):
		sse.Error("No transactions found for this month")
	case errors.Is(err, advisor.ErrAllBusy):
		sse.Error(advisor.BusyMessage)
	case errors.Is(err, advisor.ErrUnavailable):
		sse.Error(advisor.UnavailableMessage)
	case errors.Is(err, r.Context().Err()):
		zap.L().Info("progress stream aborted by client")
	default:
		zap.L().Error("progress stream failed", zap.Error(err))
		sse.Error(advisor.BusyMessage)
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req monthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages are required")
		return
	}

	var mctx *advisor.MonthContext
	if req.Context != nil || len(req.Current) > 0 {
		mctx = req.monthContext()
	}

	reply, err := s.deps.Advisor.Chat(r.Context(), mctx, req.Messages)
	if err != nil {
		if errors.Is(err, advisor.ErrAllBusy) {
			writeError(w, http.StatusServiceUnavailable, advisor.BusyMessage)
			return
		}
		if errors.Is(err, advisor.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, advisor.UnavailableMessage)
			return
		}
		zap.L().Error("chat failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "chat failed")
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	if err := s.parseSem.Acquire(r.Context(), 1); err != nil {
		writeError(w, http.StatusServiceUnavailable, "server busy")
		return
	}
	defer s.parseSem.Release(1)

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file upload is required")
		return
	}
	defer file.Close() //nolint:errcheck

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext == "" {
		ext = ".jpg"
	}
	tmpPath := filepath.Join(os.TempDir(), "receipt-"+uuid.New().String()+ext)
	dst, err := os.Create(tmpPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "saving upload failed")
		return
	}
	defer os.Remove(tmpPath) //nolint:errcheck
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		writeError(w, http.StatusInternalServerError, "saving upload failed")
		return
	}
	dst.Close() //nolint:errcheck

	result, err := s.deps.Pipeline.Parse(r.Context(), tmpPath)
	if err != nil {
		zap.L().Error("receipt parse failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "parsing receipt failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"
	snap := s.deps.Rates.GetRates(r.Context(), force)
	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
