package staff

import "errors"

var (
	ErrStaffNotFound        = errors.New("staff member not found")
	ErrLicenseAlreadyExists = errors.New("license number is already registered")
	ErrStaffAlreadyExists   = errors.New("staff profile already exists for this user")
	ErrInvalidStatus        = errors.New("invalid employment status")
	ErrLicenseRequired      = errors.New("license number is required")
)
