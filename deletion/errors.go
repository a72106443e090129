package deletion

import "errors"

var (
	// ErrUnauthorized is returned when the caller is not a member of the document's group.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrMissingFilename is returned when a delete request names no document.
	ErrMissingFilename = errors.New("filename is required")

	// ErrStoreRequired is returned when a required store is not provided.
	ErrStoreRequired = errors.New("store required")
)
