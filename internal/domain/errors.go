package domain

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation error")
	ErrForbidden  = errors.New("forbidden")
)

// ConflictError carries the slots that collided with a requested range.
type ConflictError struct {
	Msg   string
	Slots []Slot
}

func (e *ConflictError) Error() string { return "conflict: " + e.Msg }

func (e *ConflictError) Unwrap() error { return ErrConflict }
