package models

import "errors"

// Sentinel errors for the operation outcome taxonomy. Callers classify
// failures with errors.Is; detail is carried by wrapping with fmt.Errorf("%w: ...").
var (
	// ErrInvalidInput covers bad course/file names and empty documents.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict is returned when a file id already exists in a course.
	ErrConflict = errors.New("already exists")
	// ErrNotFound is returned for unknown courses, files, or feedback targets.
	ErrNotFound = errors.New("not found")
	// ErrGeneration is returned when the external generation capability fails.
	ErrGeneration = errors.New("generation failed")
)
