package models

import "errors"

var (
	ErrUserExists           = errors.New("user already exists")
	ErrUserNotFound         = errors.New("user not found")
	ErrIncorrectCredentials = errors.New("incorrect credentials")
	ErrSymbolNotFound       = errors.New("symbol not found")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientShares   = errors.New("insufficient shares")
	// ErrConflict is a storage-level serialization failure. Nothing was
	// persisted, so the whole operation is safe to retry.
	ErrConflict = errors.New("conflicting concurrent update")
)

// ValidationError reports malformed user input. Message is safe to show verbatim.
type ValidationError struct {
	Message string
}

func (e ValidationError) Error() string { return e.Message }

func NewValidationError(message string) error {
	return ValidationError{Message: message}
}
