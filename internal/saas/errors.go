package saas

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotConfigured is returned before any network I/O when the token or
	// shop ID is missing.
	ErrNotConfigured = errors.New("lazychat: auth token or shop id not configured")
	// ErrUnauthorized matches 401/403 responses and explicit credential rejections.
	ErrUnauthorized = errors.New("lazychat: unauthorized")
	// ErrUnexpectedShape marks a response body that does not match the
	// endpoint's envelope.
	ErrUnexpectedShape = errors.New("lazychat: unexpected response shape")
)

// TransportError wraps DNS, connection and timeout failures.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("lazychat %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError is an upstream rejection, either by HTTP status or by an explicit
// failure flag in the body.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("lazychat: request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("lazychat: %s (status %d)", e.Message, e.StatusCode)
}

func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized &&
		(e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden)
}

// UserMessage turns an error into text safe to show in the admin UI.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	var transportErr *TransportError

	switch {
	case errors.Is(err, ErrNotConfigured):
		return "Please log in to LazyChat and select a shop first."
	case errors.As(err, &apiErr):
		if apiErr.Message != "" {
			return apiErr.Message
		}
		if errors.Is(err, ErrUnauthorized) {
			return "Your LazyChat session is no longer valid. Please log in again."
		}
		return fmt.Sprintf("LazyChat returned an error (HTTP %d).", apiErr.StatusCode)
	case errors.Is(err, ErrUnauthorized):
		return "Your LazyChat session is no longer valid. Please log in again."
	case errors.As(err, &transportErr):
		return "Could not reach LazyChat. Please check your connection and try again."
	case errors.Is(err, ErrUnexpectedShape):
		return "LazyChat returned an unexpected response."
	default:
		return "Something went wrong. Please try again."
	}
}
