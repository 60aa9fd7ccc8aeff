package aulasdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// ============================================================================
// Sentinel errors
// ============================================================================

var (
	// ErrSessionTerminated matches every *SessionTerminatedError.
	ErrSessionTerminated = errors.New("aulasdk: session terminated")

	// ErrNoRefreshToken is the termination cause when a 401 arrives and the
	// store holds no refresh token.
	ErrNoRefreshToken = errors.New("aulasdk: no refresh token")

	// ErrLoggedOut is the termination cause for an explicit Logout.
	ErrLoggedOut = errors.New("aulasdk: logged out")

	// ErrNoSession is returned by operations that need a signed-in user.
	ErrNoSession = errors.New("aulasdk: no active session")
)

// ============================================================================
// APIError - backend error envelope
// ============================================================================

// APIError is a non-2xx response from the backend. Msg is taken from the
// {"msg": ...} envelope, falling back to "message" and "error".
type APIError struct {
	StatusCode int
	Msg        string
	Body       []byte
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Msg)
}

// IsUnauthorized reports whether err is a 401 from the backend.
func IsUnauthorized(err error) bool {
	return statusOf(err) == http.StatusUnauthorized
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	return statusOf(err) == http.StatusNotFound
}

// IsForbidden reports whether err is a 403 from the backend.
func IsForbidden(err error) bool {
	return statusOf(err) == http.StatusForbidden
}

func statusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// parseErrorResponse builds an *APIError from a response body that has
// already been read.
func parseErrorResponse(resp *http.Response, body []byte) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Body: body}

	var envelope struct {
		Msg     string `json:"msg"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		switch {
		case envelope.Msg != "":
			apiErr.Msg = envelope.Msg
		case envelope.Message != "":
			apiErr.Msg = envelope.Message
		default:
			apiErr.Msg = envelope.Error
		}
	}

	return apiErr
}

// ============================================================================
// SessionTerminatedError
// ============================================================================

// SessionTerminatedError is returned to every request that was waiting on
// (or triggered) a refresh that failed, and to the caller of Logout.
type SessionTerminatedError struct {
	Cause error
}

func (e *SessionTerminatedError) Error() string {
	if e.Cause == nil {
		return ErrSessionTerminated.Error()
	}
	return fmt.Sprintf("%s: %v", ErrSessionTerminated, e.Cause)
}

func (e *SessionTerminatedError) Unwrap() error { return e.Cause }

// Is makes errors.Is(err, ErrSessionTerminated) hold for any cause.
func (e *SessionTerminatedError) Is(target error) bool {
	return target == ErrSessionTerminated
}

// ============================================================================
// ValidationError - client side request validation
// ============================================================================

// ValidationError lists the invalid request fields, keyed by JSON name.
// Nothing is sent when a request fails validation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
