package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrDuplicateEmail signals that the email is already registered for the role.
	ErrDuplicateEmail = errors.New("repository: duplicate email")
	// ErrDuplicatePhone signals that the phone number is already registered for the role.
	ErrDuplicatePhone = errors.New("repository: duplicate phone")
	// ErrConflict signals a unique or compare-and-set violation not covered above.
	ErrConflict = errors.New("repository: conflict")
)
