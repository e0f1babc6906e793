package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/spendsense/finance-api/internal/advisor"
	"github.com/spendsense/finance-api/internal/extract"
	"github.com/spendsense/finance-api/internal/rates"
)

// Deps carries the wired subsystems the HTTP layer exposes.
type Deps struct {
	Advisor  *advisor.Advisor
	Pipeline *extract.Pipeline
	Rates    *rates.Manager

	// MaxConcurrentParses bounds simultaneous receipt parses; OCR engines
	// are memory-hungry. Default: 4.
	MaxConcurrentParses int64

	AllowedOrigins []string
}

// Server is the HTTP surface over the advisor, extraction pipeline and
// rate cache.
type Server struct {
	deps     Deps
	parseSem *semaphore.Weighted
	router   chi.Router
}

// New assembles the router.
func New(deps Deps) *Server {
	if deps.MaxConcurrentParses <= 0 {
		deps.MaxConcurrentParses = 4
	}
	if len(deps.AllowedOrigins) == 0 {
		deps.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		deps:     deps,
		parseSem: semaphore.NewWeighted(deps.MaxConcurrentParses),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: deps.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Cache-Control"},
	}))

	r.Get("/health", s.handleHealth)
	r.Post("/ai/summary", s.handleSummary)
	r.Get("/ai/progress", s.handleProgress)
	r.Post("/ai/progress", s.handleProgress)
	r.Post("/ai/chat", s.handleChat)
	r.Post("/receipts/parse", s.handleParse)
	r.Get("/rates", s.handleRates)

	s.router = r
	return s
}

// Router returns the assembled handler.
func (s *Server) Router() http.Handler {
	return s.router
}

// requestLogger logs one line per request through the global zap logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
