package errors

import "errors"

// Sentinel errors shared across the module. Lookup boundaries (the drug
// table, the tool registry, vector stores) report misses by wrapping
// ErrNotFound so callers can branch with errors.Is instead of matching
// message strings.
var (
	// ErrNotFound indicates a requested resource does not exist
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists indicates a resource is already registered
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput indicates input validation failed
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternal indicates an internal failure
	ErrInternal = errors.New("internal error")
)
