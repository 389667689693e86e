// Package server exposes the HTTP surface: the interview loop, session
// creation and dashboard reads, the credential flows, and health.
package server

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"interviewd/internal/auth"
	"interviewd/internal/config"
	"interviewd/internal/interview"
	"interviewd/internal/logging"
	"interviewd/internal/store"
)

// Server wires the orchestrator, auth service and store behind a ServeMux.
type Server struct {
	cfg  *config.Config
	orch *interview.Orchestrator
	auth *auth.Service
	db   *store.Store
}

// New assembles the HTTP server facade.
func New(cfg *config.Config, orch *interview.Orchestrator, authSvc *auth.Service, db *store.Store) *Server {
	return &Server{cfg: cfg, orch: orch, auth: authSvc, db: db}
}

// Routes builds the full handler chain: routing, then CORS, then request
// logging on the outside.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /interview/start", s.handleStart)
	mux.HandleFunc("POST /interview/answer", s.handleAnswer)
	mux.HandleFunc("POST /interview/session/{id}/score", s.handleSaveScore)

	mux.HandleFunc("POST /session", s.handleCreateSession)
	mux.HandleFunc("PATCH /session/{id}", s.handleResetSession)
	mux.HandleFunc("GET /session/list", s.handleListSessions)
	mux.HandleFunc("GET /session/{id}/summary", s.handleSessionSummary)

	mux.HandleFunc("POST /auth/signup", s.handleSignup)
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("POST /auth/forgot-password", s.handleForgotPassword)

	mux.HandleFunc("GET /healthz", s.handleHealth)

	return s.logRequests(s.cors(mux))
}

// Run serves until ctx is cancelled, then drains in-flight requests under
// the configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logging.Boot("http server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.GetShutdownTimeout())
		defer cancel()
		logging.Boot("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
