package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNotStarted is returned when a resume action is attempted before
	// Start obtained a continuation token.
	ErrNotStarted = errors.New("session: workflow not started")

	// ErrSuppressed is returned when the gate rejects an automatic call.
	ErrSuppressed = errors.New("session: call suppressed while lesson plan is pending approval")

	// ErrUnknownSong is returned when SelectSong is given an id that is not
	// in the current song catalog.
	ErrUnknownSong = errors.New("session: song not in catalog")

	// ErrNoResumeURL is returned when the start response carries no
	// absolute resumeUrl.
	ErrNoResumeURL = errors.New("session: start response has no absolute resumeUrl")

	// ErrMalformedResponse is returned when a successful response cannot be
	// decoded into the expected payload.
	ErrMalformedResponse = errors.New("session: malformed response")
)

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("session: %s %s", e.Field, e.Reason)
}

// StatusError is a non-2xx answer from the gateway or upstream.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("session: HTTP %d", e.Code)
}

// Retryable reports whether the status may succeed on a later attempt.
// Only 5xx qualifies; 3xx and 4xx are terminal.
func (e *StatusError) Retryable() bool {
	return e.Code >= 500
}

// RetryExhaustedError wraps the last failure after every attempt failed.
type RetryExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("session: %d attempts failed: %v", e.Attempts, e.Last)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.Last
}
