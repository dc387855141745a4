package repository

import "errors"

var (
	// ErrNotFound is returned when no timeline exists for the showcase.
	ErrNotFound = errors.New("timeline not found")

	// ErrDuplicateShowcase is returned when a timeline already exists for
	// the showcase.
	ErrDuplicateShowcase = errors.New("timeline already exists for showcase")
)
