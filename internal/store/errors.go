package store

import (
	"errors"

	"bookcal/internal/models"
)

var (
	// ErrConflict is returned when a candidate interval overlaps an
	// existing non-cancelled booking in the same apartment.
	ErrConflict = errors.New("apartment is already booked for this period")

	// ErrNotFound is returned when a mutation references an unknown
	// booking id.
	ErrNotFound = errors.New("booking not found")

	// ErrValidation marks malformed input (missing fields, inverted
	// date range, unknown apartment).
	ErrValidation = models.ErrInvalidForm

	// ErrPersistence is returned when the in-memory mutation succeeded
	// but the snapshot write did not. The operation is still logically
	// successful for the session.
	ErrPersistence = errors.New("failed to persist bookings")
)
