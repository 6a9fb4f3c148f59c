package web

// errors.go turns pipeline errors into HTTP responses. The technical error
// is logged with the request ID; the client sees the mapped message, action,
// and stable code from the convert package.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/bkv/matrix-normalizer/internal/convert"
	"github.com/bkv/matrix-normalizer/internal/job"
	"github.com/bkv/matrix-normalizer/internal/logging"
)

// ErrorResponse is the JSON body for every error the API returns.
type ErrorResponse struct {
	Error  string `json:"error"`
	Action string `json:"action,omitempty"`
	Code   string `json:"code"`
}

// respondError logs the technical error and writes the client-facing
// rendering with a status derived from the error's kind.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := userMessage(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	)

	respondJSON(w, status, ErrorResponse{
		Error:  msg.Message,
		Action: msg.Action,
		Code:   msg.Code,
	})
}

// userMessage renders an error for the client. Job lifecycle errors are
// mapped here because the convert package does not know about jobs.
func userMessage(err error) convert.UserMessage {
	switch {
	case errors.Is(err, job.ErrNotFound):
		return convert.UserMessage{
			Message: "Job not found",
			Action:  "Check the job ID or start a new conversion",
			Code:    "JOB001",
		}
	case errors.Is(err, job.ErrNotReady):
		return convert.UserMessage{
			Message: "Job has not completed",
			Action:  "Poll the status endpoint until the job completes",
			Code:    "JOB002",
		}
	}
	return convert.MapError(err)
}

// statusFor selects the HTTP status for a pipeline error. Job store errors
// are handled here because the convert package does not know about jobs.
func statusFor(err error) int {
	switch {
	case errors.Is(err, job.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, job.ErrNotReady):
		return http.StatusConflict
	}

	switch convert.Classify(err) {
	case convert.KindValidation:
		return http.StatusBadRequest
	case convert.KindNotFound:
		return http.StatusNotFound
	case convert.KindMalformed:
		return http.StatusUnprocessableEntity
	case convert.KindBusy:
		return http.StatusTooManyRequests
	case convert.KindCancelled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondJSON writes v with the given status. Encoding failures are logged
// since the headers are already out.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
