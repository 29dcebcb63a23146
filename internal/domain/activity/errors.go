package activity

import "errors"

var (
	// ErrUserNotFound is returned when the user does not exist
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidAccountStatus is returned for an unknown account status
	ErrInvalidAccountStatus = errors.New("invalid account status")
)
