package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"carteira/internal/auth"
	"carteira/internal/ledger"
	"carteira/internal/log"
	"carteira/internal/rules"
	"carteira/internal/storage"
)

type fieldBody struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type errorBody struct {
	Error  string      `json:"error"`
	Fields []fieldBody `json:"fields,omitempty"`
}

// errBadRequest marks a body or path that could not be decoded.
var errBadRequest = errors.New("malformed request")

var errTooManyAttempts = errors.New("too many login attempts")

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	var fe rules.FieldErrors
	var pe *ledger.PreconditionError
	switch {
	case errors.As(err, &fe):
		return http.StatusUnprocessableEntity
	case errors.As(err, &pe):
		return http.StatusConflict
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrReportNotFound),
		errors.Is(err, rules.ErrUnhandledInput),
		errors.Is(err, storage.ErrInvalidUser):
		return http.StatusNotFound
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, errMissingToken):
		return http.StatusUnauthorized
	case errors.Is(err, ledger.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, errTooManyAttempts):
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}

	var fe rules.FieldErrors
	if errors.As(err, &fe) {
		body.Error = "validation failed"
		for _, f := range fe {
			body.Fields = append(body.Fields, fieldBody{Field: f.Field, Message: f.Err.Error()})
		}
	}

	fields := log.NewFields().WithError(err, errorTypeFor(status))
	if id, ok := identityFrom(r.Context()); ok {
		fields.WithUser(id.User, id.IsAdmin)
	}
	logger := log.FromContext(r.Context())
	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request error", fields.ToArgs()...)
		body.Error = "internal error"
	} else {
		logger.DebugContext(r.Context(), "Request rejected", fields.ToArgs()...)
	}
	writeJSON(w, status, body)
}

func errorTypeFor(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return log.ErrorTypeValidation
	case http.StatusConflict:
		return log.ErrorTypePrecondition
	case http.StatusNotFound:
		return log.ErrorTypeNotFound
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		return log.ErrorTypeAuth
	}
	return log.ErrorTypeInternal
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
