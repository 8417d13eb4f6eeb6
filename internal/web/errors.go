package web

// errors.go provides unified error response handling for the web layer.
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err) with an optional status override
//  3. Error is wrapped via core.NewUserError to get user-friendly message
//  4. Technical error + context is logged with request ID for correlation
//  5. User message is returned as JSON

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/vaultetl/internal/core"
	"github.com/JonMunkholm/vaultetl/internal/ingest"
	"github.com/JonMunkholm/vaultetl/internal/logging"
	"github.com/JonMunkholm/vaultetl/internal/transform"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

var (
	errNoFile     = errors.New("no file provided")
	errFileTooBig = errors.New("file too large")
	errBadRequest = errors.New("invalid request")
)

// statusFor picks the HTTP status for err.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errFileTooBig):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusServiceUnavailable
	case errors.Is(err, errNoFile),
		errors.Is(err, errBadRequest),
		errors.Is(err, transform.ErrUnknownKind),
		errors.Is(err, core.ErrEmptySelection),
		errors.Is(err, core.ErrNoDestination),
		errors.Is(err, core.ErrObjectStoreDisabled),
		errors.Is(err, core.ErrUnknownSetting),
		errors.Is(err, core.ErrInvalidSetting),
		ingest.ErrUnsupportedFormat.Has(err),
		ingest.ErrEncoding.Has(err),
		ingest.ErrNoHeader.Has(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs the technical error server-side and writes the mapped
// user message. status 0 derives the status from err.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	if status == 0 {
		status = statusFor(err)
	}
	ue := core.NewUserError(err)

	logging.FromContext(r.Context()).Error("request error",
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method),
		slog.Int("status", status),
		slog.String("error", ue.Unwrap().Error()),
		slog.String("code", ue.Code),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   ue.Error(),
		Message: ue.Message,
		Action:  ue.Action,
		Code:    ue.Code,
	})
}

// writeJSON encodes v as JSON with status.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
