// Package response writes the JSON envelopes returned by the HTTP API.
package response

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/newthinker/tradesim/internal/core"
)

// Meta contains response metadata.
type Meta struct {
	Timestamp time.Time `json:"timestamp"`
}

// SuccessResponse is the standard success response format.
type SuccessResponse struct {
	Data any  `json:"data"`
	Meta Meta `json:"meta"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   string `json:"cause,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// JSON wraps data in the success envelope.
func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, SuccessResponse{Data: data, Meta: Meta{Timestamp: time.Now().UTC()}})
}

// Error writes the error envelope. Errors that carry no code are reported as
// INTERNAL_ERROR without leaking their text.
func Error(w http.ResponseWriter, status int, err error) {
	write(w, status, ErrorResponse{Error: Detail(err)})
}

// Detail extracts the code, message and cause of err.
func Detail(err error) ErrorDetail {
	var ce *core.Error
	if !errors.As(err, &ce) {
		return ErrorDetail{Code: "INTERNAL_ERROR", Message: "an internal error occurred"}
	}
	d := ErrorDetail{Code: ce.Code, Message: ce.Message}
	if ce.Cause != nil {
		d.Cause = ce.Cause.Error()
	}
	return d
}

func write(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Fail writes err with the status that matches its code.
func Fail(w http.ResponseWriter, err error) {
	Error(w, StatusFor(err), err)
}

// StatusFor maps an error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound), errors.Is(err, core.ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, core.ErrValidation),
		errors.Is(err, core.ErrConfigInvalid),
		errors.Is(err, core.ErrConfigMissing),
		errors.Is(err, core.ErrUnknownStrategy):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrStrategyFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
