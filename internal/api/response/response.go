// Package response renders the JSON envelope shared by all API handlers.
package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/hindsightlab/hindsight/internal/core"
)

// Meta carries response metadata. RequestID echoes the ID assigned by
// the logging middleware so clients can quote it in bug reports.
type Meta struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// SuccessResponse wraps payload data.
type SuccessResponse struct {
	Data any  `json:"data"`
	Meta Meta `json:"meta"`
}

// ErrorDetail carries a machine-readable error code alongside the message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   string `json:"cause,omitempty"`
}

// ErrorResponse wraps an error.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
	Meta  Meta        `json:"meta"`
}

// JSON writes a success envelope.
func JSON(w http.ResponseWriter, status int, data any) {
	resp := SuccessResponse{
		Data: data,
		Meta: meta(w),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// Error writes an error envelope. Domain errors keep their code and
// message; anything else is reported as INTERNAL_ERROR without
// leaking detail.
func Error(w http.ResponseWriter, status int, err error) {
	detail := ErrorDetail{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
	}

	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		detail.Code = coreErr.Code
		detail.Message = coreErr.Message
		if coreErr.Cause != nil {
			detail.Cause = coreErr.Cause.Error()
		}
	}

	resp := ErrorResponse{Error: detail, Meta: meta(w)}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// meta reads the request ID the logging middleware stamped on the
// response headers, if any.
func meta(w http.ResponseWriter) Meta {
	return Meta{
		Timestamp: time.Now().UTC(),
		RequestID: w.Header().Get("X-Request-ID"),
	}
}
