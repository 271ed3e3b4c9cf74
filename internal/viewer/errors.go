package viewer

import (
	"fmt"
	"strings"
)

// FetchError is returned by Loader.Load when the configuration could not be
// retrieved: either the server answered outside the 2xx range or the
// request failed at the network level.
type FetchError struct {
	// StatusCode is set for HTTP failures and zero for network failures.
	StatusCode int

	// Message is what the view shows after "Error: ".
	Message string

	// Cause is the underlying network or read error, if any.
	Cause error
}

// Error implements the error interface
func (e *FetchError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error
func (e *FetchError) Unwrap() error {
	return e.Cause
}

func newStatusError(code int) *FetchError {
	return &FetchError{
		StatusCode: code,
		Message:    fmt.Sprintf("Failed to load config: %d", code),
	}
}

func newNetworkError(err error) *FetchError {
	msg := "Failed to load config"
	if err != nil {
		msg = err.Error()
	}
	return &FetchError{Message: msg, Cause: err}
}

// StreamError describes a transport-level failure of the /events
// subscription. It is logged and never surfaced to the user.
type StreamError struct {
	// Op is the phase that failed: "connect" or "read".
	Op string

	// StatusCode for a non-2xx handshake
	StatusCode int

	Cause error
}

// Error implements the error interface
func (e *StreamError) Error() string {
	parts := []string{"stream " + e.Op}
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying error
func (e *StreamError) Unwrap() error {
	return e.Cause
}
