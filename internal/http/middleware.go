package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"carteira/internal/core"
	"carteira/internal/ledger"
	"carteira/internal/log"
)

type ctxKey int

const identityKey ctxKey = iota

var errMissingToken = errors.New("missing bearer token")

func identityFrom(ctx context.Context) (core.Identity, bool) {
	id, ok := ctx.Value(identityKey).(core.Identity)
	return id, ok
}

// requestLogger attaches a request-scoped logger, then logs and measures
// the request once it is served.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		reqLogger := s.logger.With(
			log.FieldRequestID, middleware.GetReqID(r.Context()),
			log.FieldClientIP, extractClientIP(r),
		)
		r = r.WithContext(log.WithLogger(r.Context(), reqLogger))

		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		if s.metrics != nil {
			s.metrics.ObserveRequest(r.Method, route, status, elapsed)
		}

		args := []any{
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			"route", route,
			log.FieldStatusCode, status,
			"bytes", ww.BytesWritten(),
			log.FieldDuration, elapsed.Milliseconds(),
		}
		if id, ok := identityFrom(r.Context()); ok {
			args = append(args, log.FieldUser, id.User)
		}
		switch {
		case status >= 500:
			reqLogger.ErrorContext(r.Context(), "Request failed", args...)
		case route == "/healthz" || route == "/metrics":
			reqLogger.DebugContext(r.Context(), "Request served", args...)
		default:
			reqLogger.InfoContext(r.Context(), "Request served", args...)
		}
	})
}

// requireToken resolves the bearer token into an identity.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			s.writeError(w, r, errMissingToken)
			return
		}
		id, err := s.tokens.Parse(strings.TrimSpace(raw))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), identityKey, id)
		// the identity is only known here, the logger picks it up for the handlers
		ctx = log.WithLogger(ctx, log.FromContext(ctx).With(log.FieldUser, id.User))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := identityFrom(r.Context())
		if !ok || !id.IsAdmin {
			writeJSON(w, http.StatusForbidden, errorBody{Error: ledger.ErrForbidden.Error()})
			return
		}
		next.ServeHTTP(w, r)
	})
}
