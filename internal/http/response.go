// Package http serves the car cost API.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"carcost/internal/core"
	applog "carcost/internal/log"
	"carcost/internal/services"
)

// ResponseBuilder provides a fluent API for building JSON responses.
type ResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *ResponseBuilder) Header(key, value string) *ResponseBuilder {
	b.headers[key] = value
	return b
}

// JSON sets the value encoded as the response body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.body = v
	return b
}

// Write sends the response.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for k, v := range b.headers {
		w.Header().Set(k, v)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if err := json.NewEncoder(w).Encode(b.body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError writes an error response with the request ID of r.
func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	NewResponse().
		Status(code).
		JSON(ErrorBody{Error: msg, RequestID: applog.RequestID(r.Context())}).
		Write(w)
}

// badRequest marks a malformed request parameter.
type badRequest struct{ msg string }

func (e *badRequest) Error() string { return e.msg }

// invalidField marks a request field that parsed but is not acceptable.
type invalidField struct {
	field string
	err   error
}

func (e *invalidField) Error() string { return e.field + ": " + e.err.Error() }
func (e *invalidField) Unwrap() error { return e.err }

// statusOf maps an error to the status code reported to the client.
func statusOf(err error) int {
	var bad *badRequest
	var field *invalidField
	var integrity *core.DataIntegrityError
	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest
	case errors.As(err, &field), services.IsValidation(err):
		return http.StatusUnprocessableEntity
	case errors.As(err, &integrity):
		return http.StatusConflict
	case errors.Is(err, core.ErrNotFound), errors.Is(err, core.ErrUnknownMetric):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// fail logs err and writes the matching error response. Internal errors are
// not echoed to the client.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	logger := applog.FromContext(r.Context())
	msg := err.Error()
	if code == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", applog.FieldError, err)
		msg = "internal error"
	} else {
		logger.DebugContext(r.Context(), "Request rejected", applog.FieldError, err, applog.FieldStatusCode, code)
	}
	writeError(w, r, code, msg)
}
