package notify

import "errors"

var (
	// ErrMalformedMessage indicates a payload that doesn't decode into the expected type.
	ErrMalformedMessage = errors.New("malformed notification")

	// ErrBusClosed indicates use of a closed bus.
	ErrBusClosed = errors.New("notification bus closed")
)
