package ingestion

import "errors"

var (
	// ErrMetadataWrite is returned when the DocumentRecord can't be stored.
	// Intake does not retry it; the notification source redelivers.
	ErrMetadataWrite = errors.New("metadata write failed")

	// ErrSplit is returned when a document can't be split into pages.
	ErrSplit = errors.New("page split failed")

	// ErrNoMatchingFiles is returned when a consolidation prefix lists no
	// processed pages. It signals a broken upstream stage.
	ErrNoMatchingFiles = errors.New("no matching files")

	// ErrUnsupportedType is returned for documents no extraction path accepts.
	ErrUnsupportedType = errors.New("unsupported document type")

	// ErrForeignBucket is returned for notifications about another bucket.
	ErrForeignBucket = errors.New("notification for foreign bucket")

	// ErrMissingReference is returned when a step payload doesn't identify its document.
	ErrMissingReference = errors.New("payload does not identify a document")

	// ErrInvalidChunkSize is returned for chunk sizes the chunker can't honor.
	ErrInvalidChunkSize = errors.New("invalid chunk size")

	// ErrObjectStoreRequired is returned when an object store is not provided.
	ErrObjectStoreRequired = errors.New("object store required")

	// ErrDocumentRepositoryRequired is returned when a document repository is not provided.
	ErrDocumentRepositoryRequired = errors.New("document repository required")

	// ErrChunkRepositoryRequired is returned when a granularity has no chunk store.
	ErrChunkRepositoryRequired = errors.New("chunk repository required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")
)
