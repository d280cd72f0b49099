// Package api serves the read-only status API: daemon health, recorded
// implementation attempts, and the recent log tail.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ticketsmith-io/ticketsmith/internal/config"
	"github.com/ticketsmith-io/ticketsmith/internal/history"
	"github.com/ticketsmith-io/ticketsmith/internal/logbuf"
)

// AttemptSource lists recorded implementation attempts.
// Implemented by *history.Store.
type AttemptSource interface {
	List(filter history.Filter) ([]history.Attempt, error)
	Count(filter history.Filter) (int, error)
}

// LogSource serves the recent log tail. Implemented by *logbuf.Buffer.
type LogSource interface {
	Tail(q logbuf.Query) []logbuf.Entry
}

// Server is the ticketsmith status API server.
type Server struct {
	attempts AttemptSource
	logs     LogSource
	cfg      config.APIConfig
	version  string
	started  time.Time
	logger   *slog.Logger
	srv      *http.Server
}

// NewServer creates the status server. attempts and logs may be nil; the
// corresponding endpoints then return empty collections.
func NewServer(attempts AttemptSource, logs LogSource, cfg config.APIConfig, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		attempts: attempts,
		logs:     logs,
		cfg:      cfg,
		version:  version,
		started:  time.Now(),
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/runs", s.requireAuth(s.handleRuns))
	mux.HandleFunc("GET /api/logs", s.requireAuth(s.handleLogs))

	s.srv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start begins listening. Blocks until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.srv.Shutdown(shutCtx)
	}()

	s.logger.Info("status api starting", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("status api: %w", err)
	}
	return nil
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Key == "" {
			next(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != s.cfg.Key {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next(w, r)
	}
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.attempts == nil {
		writeJSON(w, http.StatusOK, map[string]any{"items": []history.Attempt{}, "total": 0})
		return
	}

	filter := history.Filter{Limit: 50}
	if key := r.URL.Query().Get("ticket"); key != "" {
		filter.TicketKey = key
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			filter.Limit = n
		}
	}

	items, err := s.attempts.List(filter)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	total, err := s.attempts.Count(history.Filter{TicketKey: filter.TicketKey})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if items == nil {
		items = []history.Attempt{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": total})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.logs == nil {
		writeJSON(w, http.StatusOK, []logbuf.Entry{})
		return
	}

	q := logbuf.Query{Limit: 200, MinLevel: slog.LevelDebug}
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			q.Limit = n
		}
	}
	if lvl := r.URL.Query().Get("level"); lvl != "" {
		switch strings.ToLower(lvl) {
		case "info":
			q.MinLevel = slog.LevelInfo
		case "warn":
			q.MinLevel = slog.LevelWarn
		case "error":
			q.MinLevel = slog.LevelError
		}
	}
	if since := r.URL.Query().Get("since"); since != "" {
		if ms, err := strconv.ParseInt(since, 10, 64); err == nil {
			q.Since = time.UnixMilli(ms)
		}
	}

	entries := s.logs.Tail(q)
	if entries == nil {
		entries = []logbuf.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
