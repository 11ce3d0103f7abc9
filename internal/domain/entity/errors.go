package entity

import "errors"

var (
	// ErrNotFound means no row exists for the given id.
	ErrNotFound = errors.New("not found")

	// ErrConflict means a guarded state change matched no row: the entity
	// is missing or already in a state that forbids the change.
	ErrConflict = errors.New("state conflict")

	// ErrInvalidInput matches every *ValidationError via errors.Is.
	ErrInvalidInput = errors.New("invalid input")
)

// ValidationError reports one rejected field, e.g. "chatId is required".
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + " " + e.Message
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }
