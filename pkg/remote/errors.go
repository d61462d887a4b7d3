package remote

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies a failed remote call. Codes are strings so they read
// well in logs and in the run journal.
type ErrorCode string

const (
	CodeNotFound     ErrorCode = "NOT_FOUND"
	CodeConflict     ErrorCode = "CONFLICT"
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"
	CodeForbidden    ErrorCode = "FORBIDDEN"
	CodeInvalidInput ErrorCode = "INVALID_INPUT"
	CodeRateLimit    ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeUnavailable  ErrorCode = "SERVICE_UNAVAILABLE"
	CodeInternal     ErrorCode = "INTERNAL_ERROR"
	CodeUnknown      ErrorCode = "UNKNOWN"
)

var (
	// ErrMissingToken is returned when a client is built without credentials.
	ErrMissingToken = errors.New("remote: missing auth token")
	// ErrMissingProject is returned when a client is built without an organization or project.
	ErrMissingProject = errors.New("remote: organization and project are required")
)

// APIError is a non-2xx response from the remote service.
type APIError struct {
	StatusCode int
	Code       ErrorCode
	Method     string
	URL        string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.StatusCode, e.Code)
	}
	return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.URL, e.StatusCode, e.Code, e.Message)
}

func codeForStatus(status int) ErrorCode {
	switch status {
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict, http.StatusPreconditionFailed:
		return CodeConflict
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return CodeInvalidInput
	case http.StatusTooManyRequests:
		return CodeRateLimit
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return CodeUnavailable
	}
	if status >= 500 {
		return CodeInternal
	}
	return CodeUnknown
}

func hasCode(err error, code ErrorCode) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// IsNotFound reports whether err is a 404 from the remote service.
func IsNotFound(err error) bool { return hasCode(err, CodeNotFound) }

// IsConflict reports whether the service rejected a write because the
// item changed since it was read.
func IsConflict(err error) bool { return hasCode(err, CodeConflict) }

// IsRateLimited reports whether err is an exhausted rate-limit retry.
func IsRateLimited(err error) bool { return hasCode(err, CodeRateLimit) }
