package chroma

import "errors"

// Sentinel errors returned by collaborators.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotFound indicates the named collection does not exist.
	ErrNotFound = errors.New("collection not found")

	// ErrAlreadyExists indicates a collection with the same name already exists.
	ErrAlreadyExists = errors.New("collection already exists")

	// ErrInvalidArgument indicates the backend rejected a malformed request
	// (bad filter, unknown include, mismatched lengths or dimensions).
	ErrInvalidArgument = errors.New("invalid argument")
)
