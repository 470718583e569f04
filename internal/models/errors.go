package models

import "errors"

// Ledger errors. Callers match them with errors.Is.
var (
	// ErrValidation marks malformed input at the ledger boundary.
	ErrValidation = errors.New("validation error")
	// ErrNotFound means the referenced submission, member or pool does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidStateTransition means a review was attempted on a non-pending submission.
	ErrInvalidStateTransition = errors.New("invalid state transition")
	// ErrStoreUnavailable wraps failures of the underlying store. Retryable.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrAlreadyExists is returned by stores on a unique-key conflict.
	ErrAlreadyExists = errors.New("already exists")
)

// IsDomainError reports whether err is one of the caller-correctable ledger errors.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidStateTransition) ||
		errors.Is(err, ErrAlreadyExists)
}
