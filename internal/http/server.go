// Package http exposes the ledger as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"carteira/internal/core"
	"carteira/internal/ledger"
	"carteira/internal/log"
	"carteira/internal/metrics"
)

// Authenticator checks a username and password.
type Authenticator interface {
	Authenticate(ctx context.Context, name, password string) (core.Identity, error)
}

// TokenIssuer signs and verifies session tokens.
type TokenIssuer interface {
	Issue(id core.Identity) (string, time.Time, error)
	Parse(raw string) (core.Identity, error)
}

// Deps are the collaborators a Server is built from. Metrics and Ready
// are optional.
type Deps struct {
	Ledger  *ledger.Service
	Users   Authenticator
	Tokens  TokenIssuer
	Metrics *metrics.Metrics
	Logger  *log.Logger
	// Ready reports whether storage is reachable.
	Ready func(ctx context.Context) error
}

type Server struct {
	http.Server
	ledger  *ledger.Service
	users   Authenticator
	tokens  TokenIssuer
	metrics *metrics.Metrics
	logger  *log.Logger
	ready   func(ctx context.Context) error

	loginLimiter *rateLimiter
	locks        *userLocks

	shutdownOnce sync.Once
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.Wrap(nil, log.ComponentHTTP)
	}
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		ledger:       deps.Ledger,
		users:        deps.Users,
		tokens:       deps.Tokens,
		metrics:      deps.Metrics,
		logger:       logger.WithComponent(log.ComponentHTTP),
		ready:        deps.Ready,
		loginLimiter: newRateLimiter(loginAttemptsPerMinute, loginWindow),
		locks:        newUserLocks(),
	}
	s.Handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)
	r.Use(s.rejectSuspicious)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.requireToken)

			r.Get("/catalog", s.handleCatalog)
			r.Get("/period", s.handlePeriod)
			r.Get("/transactions", s.handleTransactions)
			r.Get("/transactions.csv", s.handleTransactionsCSV)
			r.Post("/transactions/{category}", s.handleRecord)
			r.Get("/reports", s.handleHistory)
			r.Post("/reports", s.handleSubmit)
			r.Get("/reports/{seq:[0-9]+}", s.handleReport)
			r.Get("/reports/{seq:[0-9]+}.pdf", s.handleReportPDF)

			r.Route("/admin", func(r chi.Router) {
				r.Use(requireAdmin)
				r.Get("/users", s.handleAdminUsers)
				r.Get("/overview.pdf", s.handleAdminOverviewPDF)
				r.Get("/users/{user}/transactions", s.handleAdminTransactions)
				r.Get("/users/{user}/reports", s.handleAdminHistory)
				r.Get("/users/{user}/reports/{seq:[0-9]+}.pdf", s.handleAdminReportPDF)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "storage unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.loginLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
