package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport wraps network failures talking to the backend.
	ErrTransport = errors.New("storyteller backend unreachable")
	// ErrMalformed marks a response body that is not the JSON we expect.
	ErrMalformed = errors.New("malformed backend response")
	// ErrSessionMismatch marks a choose response for a different session.
	ErrSessionMismatch = errors.New("backend answered for a different session")
	// ErrSessionBusy is returned while another request for the same session is outstanding.
	ErrSessionBusy = errors.New("a request for this session is already in progress")
	// ErrInvalidRequest marks a call rejected before it reached the backend.
	ErrInvalidRequest = errors.New("invalid request")
)

// StatusError is a non-2xx backend response.
type StatusError struct {
	Op     string
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: backend returned status %d", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: backend returned status %d: %s", e.Op, e.Code, e.Detail)
}

// Temporary reports whether retrying the same request may succeed.
func (e *StatusError) Temporary() bool {
	switch e.Code {
	case 502, 503, 504:
		return true
	}
	return false
}

// SchemaError is a well-formed response that violates the v1 response schema.
type SchemaError struct {
	Op    string
	Field string
	Rule  string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: response violates schema v1: field %q failed %q", e.Op, e.Field, e.Rule)
}

// isRetryable checks whether an error is worth another attempt
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransport) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	return false
}
