package prescription

import "errors"

var (
	ErrPrescriptionNotFound = errors.New("prescription not found")
	ErrNotRefillable        = errors.New("prescription cannot be refilled")
	ErrAlreadyClosed        = errors.New("prescription is already cancelled or expired")
	ErrInvalidRoute         = errors.New("invalid route of administration")
)
