package services

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated is returned by every write attempted without a signed-in user.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrBusy is returned while a create from the same form is still in flight.
	ErrBusy = errors.New("a submission is already in progress")

	ErrTransactionNotFound = errors.New("transaction not found")
	ErrSessionExpired      = errors.New("session expired")
)

// ValidationError is an input problem detected before any write.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func validationErr(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
