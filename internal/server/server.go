// Package server exposes a continuously refreshed validation report over
// HTTP. The bound requirements file is watched for changes so the report
// tracks edits without restarting the process.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pyvet/pyvet/pkg/validate"
)

const defaultDebounce = 500 * time.Millisecond

// RefreshFunc recomputes the validation report from scratch.
type RefreshFunc func(ctx context.Context) (*validate.Report, error)

// Server serves the current validation report, its health, and metrics.
type Server struct {
	Logger *log.Logger

	addr      string
	boundPath string
	debounce  time.Duration
	refresh   RefreshFunc
	metrics   *metrics

	mu      sync.RWMutex
	report  *validate.Report
	lastErr error
}

// New creates a server for addr. boundPath is the local requirements file
// to watch for changes; an empty path disables watching.
func New(addr, boundPath string, refresh RefreshFunc) *Server {
	return &Server{
		Logger:    log.Default(),
		addr:      addr,
		boundPath: boundPath,
		debounce:  defaultDebounce,
		refresh:   refresh,
		metrics:   newMetrics(),
	}
}

// Refresh recomputes the report and records the outcome. The previous
// report is kept when the refresh fails.
func (s *Server) Refresh(ctx context.Context) error {
	report, err := s.refresh(ctx)
	s.metrics.observe(report, err)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	if err != nil {
		return err
	}
	s.report = report
	return nil
}

// Report returns the most recent successful report, or nil before the
// first refresh completes.
func (s *Server) Report() *validate.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.report
}

// Handler builds the HTTP routing table.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/report", s.handleReport)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.handler())
	return r
}

// Run refreshes once, starts the file watcher, and serves until ctx is
// cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Refresh(ctx); err != nil {
		return err
	}

	if s.boundPath != "" {
		if _, err := os.Stat(s.boundPath); err == nil {
			w, err := newWatcher(s.boundPath, s.debounce, s.Logger, func() {
				if err := s.Refresh(ctx); err != nil {
					s.Logger.Warn("report refresh failed", "error", err)
				} else {
					s.Logger.Info("report refreshed", "path", s.boundPath)
				}
			})
			if err != nil {
				return err
			}
			go w.run(ctx)
			defer w.close()
		} else {
			s.Logger.Debug("bound source is not a local file, not watching", "path", s.boundPath)
		}
	}

	srv := &http.Server{Addr: s.addr, Handler: s.Handler()}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.Logger.Info("serving validation report", "addr", s.addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report := s.Report()
	if report == nil {
		http.Error(w, "report not ready", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(report.Digest()); err != nil {
		s.Logger.Warn("could not write report", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.Report()
	if report == nil || report.Failures() > 0 {
		http.Error(w, "failing", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
