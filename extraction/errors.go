package extraction

import "errors"

var (
	// ErrUnknownJob indicates a job id the service never issued.
	ErrUnknownJob = errors.New("unknown extraction job")

	// ErrUnsupportedDocument indicates a document type the service can't read.
	ErrUnsupportedDocument = errors.New("unsupported document type")

	// ErrInvalidCursor indicates a result cursor the service didn't issue.
	ErrInvalidCursor = errors.New("invalid result cursor")
)
