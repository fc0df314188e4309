package web

// errors.go renders every handler failure the same way: the technical
// error is logged with the request id, and the client gets the mapped
// core.UserMessage as JSON, or as an HTML fragment for HTMX requests.

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/strata/internal/core"
	"github.com/JonMunkholm/strata/internal/logging"
	"github.com/JonMunkholm/strata/internal/session"
	"github.com/JonMunkholm/strata/internal/sheet"
	"github.com/JonMunkholm/strata/internal/web/templates"
)

var (
	errRateLimited = errors.New("rate limit exceeded")
	errNoFile      = errors.New("no file provided")
)

// badRequest builds an error that maps to UPL007.
func badRequest(format string, args ...any) error {
	return fmt.Errorf("invalid request: "+format, args...)
}

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error      string                 `json:"error"`
	Message    string                 `json:"message"`
	Action     string                 `json:"action,omitempty"`
	Code       string                 `json:"code"`
	RequestID  string                 `json:"requestId,omitempty"`
	Fatal      []core.SemanticError   `json:"fatal,omitempty"`
	Validation []core.ValidationError `json:"validation,omitempty"`
}

// statusFor picks the HTTP status for err.
func statusFor(err error) int {
	var (
		editErr  *core.EditError
		validErr *core.ValidationFailedError
		tooBig   *http.MaxBytesError
	)
	switch {
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, core.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrSessionClosed), errors.Is(err, core.ErrReviewNotAcknowledged):
		return http.StatusConflict
	case errors.As(err, &editErr):
		return http.StatusBadRequest
	case errors.As(err, &validErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &tooBig), errors.Is(err, sheet.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrTooManyExtractions):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrInternalConsistency):
		return http.StatusInternalServerError
	case errors.Is(err, errNoFile):
		return http.StatusBadRequest
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	}
	if _, ok := core.AsFatal(err); ok {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// fail responds with the status statusFor picks.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.respondError(w, r, err, statusFor(err))
}

// respondError logs err and writes the user-facing reply.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	msg := core.MapError(err)
	reqID := middleware.GetReqID(r.Context())

	logger := logging.FromContext(r.Context())
	attrs := []any{"path", r.URL.Path, "method", r.Method, "status", status, "code", msg.Code, "error", err.Error()}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		if err := templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w); err != nil {
			logger.Error("render error fragment", "error", err)
		}
		return
	}

	body := ErrorResponse{
		Error:     msg.Message,
		Message:   msg.Message,
		Action:    msg.Action,
		Code:      msg.Code,
		RequestID: reqID,
	}
	if fe, ok := core.AsFatal(err); ok {
		body.Fatal = fe.Errors
	}
	var validErr *core.ValidationFailedError
	if errors.As(err, &validErr) {
		body.Validation = validErr.Errors
	}
	writeJSONStatus(w, status, body)
}

// writeJSON encodes v with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode", "error", err)
	}
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
