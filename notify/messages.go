package notify

import (
	"encoding/json"
	"fmt"
)

// Channel names used by the pipeline.
const (
	ChannelDocumentsCreated = "documents.created"
	ChannelJobCompletions   = "extraction.completed"
)

// DocumentCreated announces a new object under raw_docs/.
type DocumentCreated struct {
	EventID string `json:"event_id"`
	Bucket  string `json:"bucket"`
	Key     string `json:"key"`
}

// DocumentLocation names the object an extraction job read.
type DocumentLocation struct {
	Bucket string `json:"S3Bucket"`
	Key    string `json:"S3ObjectName"`
}

// JobCompletion is published by the text-extraction service when a job ends.
type JobCompletion struct {
	JobID    string           `json:"JobId"`
	Status   string           `json:"Status"`
	Token    string           `json:"JobTag,omitempty"`
	Location DocumentLocation `json:"DocumentLocation"`
}

// Decode unmarshals a payload into T.
func Decode[T any](payload []byte) (T, error) {
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	return v, nil
}
