// Package status serves the poller's health and stats over HTTP.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/helixbot/helix-poller/internal/bot"
	"github.com/helixbot/helix-poller/internal/stats"
	"github.com/helixbot/helix-poller/internal/storage"
	"go.uber.org/zap"
)

const (
	defaultTopLimit = 10
	maxTopLimit     = 100
	shutdownTimeout = 5 * time.Second
)

// Poller exposes the loop's current status.
type Poller interface {
	Status() bot.Status
}

type Server struct {
	HTTPServer *http.Server
	poller     Poller
	store      storage.Storage
	logger     *zap.Logger
}

func New(addr string, poller Poller, store storage.Storage, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{poller: poller, store: store, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.health)
	r.Get("/stats/top", s.topQuestions)

	s.HTTPServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Status server listening", zap.String("addr", s.HTTPServer.Addr))
		if err := s.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.HTTPServer.Shutdown(shutdownCtx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	st := s.poller.Status()
	code, state := http.StatusOK, "ok"
	if !st.Running {
		code, state = http.StatusServiceUnavailable, "stopped"
	} else if st.ConsecutiveFailures > 0 {
		state = "degraded"
	}
	writeJSON(w, code, map[string]any{"status": state, "poller": st})
}

func (s *Server) topQuestions(w http.ResponseWriter, r *http.Request) {
	limit := defaultTopLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxTopLimit)
	}

	aiStats, err := stats.Load(r.Context(), s.store)
	if err != nil {
		s.logger.Error("Failed to load stats", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load stats"})
		return
	}
	top := stats.TopQuestions(aiStats.History, limit)
	if top == nil {
		top = []stats.QuestionCount{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"total": aiStats.Total, "top": top})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
