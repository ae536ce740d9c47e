package gamification

import "errors"

var (
	// ErrProfileNotFound indicates no profile exists for the user; nothing was mutated.
	ErrProfileNotFound = errors.New("gamification profile not found")
	// ErrConflict indicates a concurrent writer won the race; retry with fresh state.
	ErrConflict = errors.New("gamification profile update conflict")
	// ErrPersistence wraps storage failures other than conflicts.
	ErrPersistence = errors.New("gamification persistence failure")
	// ErrInvalidActivity indicates an activity type outside the closed set.
	ErrInvalidActivity = errors.New("invalid activity type")
	// ErrInvalidInput indicates the provided data failed validation.
	ErrInvalidInput = errors.New("invalid input")
)
