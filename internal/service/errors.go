package service

import (
	"errors"
	"strings"
)

var (
	// ErrForbidden is the mediator's deny surfaced to callers. Distinct
	// from authentication failures and never retryable.
	ErrForbidden = errors.New("forbidden: insufficient permissions")

	// ErrInvalidCredentials covers every authentication sub-case (unknown
	// user, wrong password, inactive account) so responses cannot be used
	// to enumerate usernames. The audit log records the real sub-case.
	ErrInvalidCredentials = errors.New("invalid username or password")

	ErrAccountLocked = errors.New("account is temporarily locked due to multiple failed login attempts")

	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("username or email is already taken")
	ErrHardDeleteDenied  = errors.New("hard deletes are disabled; use deactivation")
)

type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

// RequestMeta travels with every mutating service call so the audit entry
// can be built; a mutation cannot be invoked without supplying it.
type RequestMeta struct {
	IPAddress string
	UserAgent string
	RequestID string
}
