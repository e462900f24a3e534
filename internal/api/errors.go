package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/p-n-ai/pai-learn/internal/learning"
	"github.com/p-n-ai/pai-learn/internal/platform/auth"
	"github.com/p-n-ai/pai-learn/internal/quizgen"
)

// ErrorCode classifies an error response.
type ErrorCode string

const (
	CodeValidation   ErrorCode = "VALIDATION_ERROR"
	CodeNotFound     ErrorCode = "NOT_FOUND"
	CodeConflict     ErrorCode = "CONFLICT"
	CodeBadRequest   ErrorCode = "BAD_REQUEST"
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"
	CodeForbidden    ErrorCode = "FORBIDDEN"
	CodeUnavailable  ErrorCode = "UNAVAILABLE"
	CodeBudget       ErrorCode = "BUDGET_EXCEEDED"
	CodeInternal     ErrorCode = "INTERNAL_ERROR"
)

// ErrorDetail is the payload of every error response.
type ErrorDetail struct {
	Code      ErrorCode      `json:"code"`
	Message   string         `json:"message"`
	Timestamp string         `json:"timestamp"`
	Details   map[string]any `json:"details"`
}

// ErrorResponse wraps ErrorDetail under the "error" key.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// requestError is a client mistake detected before reaching the store.
type requestError struct {
	code    ErrorCode
	message string
	details map[string]any
}

func (e *requestError) Error() string { return e.message }

func badRequest(format string, args ...any) error {
	return &requestError{code: CodeBadRequest, message: fmt.Sprintf(format, args...)}
}

func validationFailed(fields map[string]string) error {
	details := make(map[string]any, len(fields))
	for k, v := range fields {
		details[k] = v
	}
	return &requestError{code: CodeValidation, message: "request validation failed", details: details}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string, details map[string]any) {
	if details == nil {
		details = map[string]any{}
	}
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Details:   details,
	}})
}

// fail maps err to a status code and writes the error response. Unexpected
// errors are logged and answered with a generic message.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	var reqErr *requestError
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &reqErr):
		writeError(w, http.StatusBadRequest, reqErr.code, reqErr.message, reqErr.details)
	case errors.As(err, &verrs):
		writeError(w, http.StatusBadRequest, CodeValidation, "request validation failed", fieldErrors(verrs))
	case errors.Is(err, learning.ErrNotFound):
		writeError(w, http.StatusNotFound, CodeNotFound, err.Error(), nil)
	case errors.Is(err, learning.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, CodeValidation, err.Error(), nil)
	case errors.Is(err, learning.ErrConflict):
		writeError(w, http.StatusConflict, CodeConflict, err.Error(), nil)
	case errors.Is(err, quizgen.ErrBudgetExceeded):
		writeError(w, http.StatusTooManyRequests, CodeBudget, err.Error(), nil)
	case errors.Is(err, quizgen.ErrNotConfigured), errors.Is(err, quizgen.ErrGeneration):
		writeError(w, http.StatusServiceUnavailable, CodeUnavailable, err.Error(), nil)
	case errors.Is(err, auth.ErrAuthNotConfigured):
		writeError(w, http.StatusServiceUnavailable, CodeUnavailable, err.Error(), nil)
	case errors.Is(err, auth.ErrMissingToken), errors.Is(err, auth.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, err.Error(), nil)
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, http.StatusForbidden, CodeForbidden, err.Error(), nil)
	default:
		slog.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", RequestIDFrom(r.Context()),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, CodeInternal, "An unexpected error occurred", nil)
	}
}

func fieldErrors(verrs validator.ValidationErrors) map[string]any {
	out := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		msg := fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		out[fe.Field()] = msg
	}
	return out
}
