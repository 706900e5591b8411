package core

import "errors"

// Error codes for protocol-level errors.
const (
	ErrCodeBadRequest         = "bad_request"
	ErrCodeValidation         = "validation"
	ErrCodeRateLimited        = "rate_limited"
	ErrCodeUnsupportedVersion = "unsupported_version"
	ErrCodeInternal           = "internal"
)

var (
	// ErrTargetNotFound is returned when a moderation target is unknown.
	ErrTargetNotFound = errors.New("participant not found")
	// ErrNotBanned is returned when unbanning a participant without a ban record.
	ErrNotBanned = errors.New("participant is not banned")
	// ErrHubStopped is returned by Hub.Do after the event loop exited.
	ErrHubStopped = errors.New("hub stopped")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
