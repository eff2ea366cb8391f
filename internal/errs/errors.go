package errs

import "errors"

// Common sentinel errors for cross-layer signaling.
var (
	ErrNotFound  = errors.New("not_found")
	ErrForbidden = errors.New("forbidden")
	ErrConflict  = errors.New("conflict")
	ErrInvalid   = errors.New("invalid")
	// ErrDuplicateName indicates a per-account category name collision.
	ErrDuplicateName = errors.New("duplicate_name")
	// ErrNegativePayment indicates a payment delta below zero.
	ErrNegativePayment = errors.New("negative_payment")
	// ErrBadLink indicates a linked expense category that does not belong to the account.
	ErrBadLink = errors.New("invalid_link")
)

// ValidationError is a field-level rejection. Its message names the failing
// field and is safe to return to the caller, unlike infrastructure errors.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validation wraps a field-level message as a ValidationError.
func Validation(msg string) error {
	return &ValidationError{Msg: msg}
}
