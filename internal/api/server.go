// Package api serves a read-only JSON view of the ledger for administrators.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"gitlab.com/yelinaung/stokvel-bot/internal/ledger"
	"gitlab.com/yelinaung/stokvel-bot/internal/logger"
	"gitlab.com/yelinaung/stokvel-bot/internal/policy"
	"gitlab.com/yelinaung/stokvel-bot/internal/report"
)

// AdminCodeHeader carries the admin access code on every /api/v1 request.
const AdminCodeHeader = "X-Admin-Code"

const (
	requestTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

// CodeMatcher answers whether a code is the admin access code.
type CodeMatcher interface {
	Match(code string) bool
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Server exposes dashboards, reports and ledger listings over HTTP.
type Server struct {
	ledger  *ledger.Ledger
	reports *report.Service
	matcher CodeMatcher
	clock   policy.Clock
	health  HealthCheck
}

// NewServer creates the API server. health may be nil.
func NewServer(l *ledger.Ledger, reports *report.Service, matcher CodeMatcher, clock policy.Clock, health HealthCheck) *Server {
	if clock == nil {
		clock = policy.SystemClock{}
	}
	return &Server{
		ledger:  l,
		reports: reports,
		matcher: matcher,
		clock:   clock,
		health:  health,
	}
}

// Handler returns the instrumented router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.requireAdminCode)

		r.Get("/dashboard", s.handleDashboard)
		r.Get("/reports/monthly", s.handleMonthlyReport)
		r.Get("/reports/monthly/chart", s.handleMonthlyChart)
		r.Get("/interest/{year}", s.handleInterest)
		r.Get("/members", s.handleMembers)
		r.Get("/submissions", s.handleSubmissions)
	})

	return otelhttp.NewHandler(r, "stokvel-api")
}

// Run serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info().Str("addr", addr).Msg("HTTP API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	logger.Log.Info().Msg("HTTP API stopped")
	return nil
}

func (s *Server) requireAdminCode(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.matcher == nil || !s.matcher.Match(r.Header.Get(AdminCodeHeader)) {
			writeError(w, http.StatusUnauthorized, "missing or invalid admin code")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
