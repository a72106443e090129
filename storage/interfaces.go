package storage

import (
	"context"
	"time"

	"github.com/poiesic/ragline/core"
)

// ObjectStore holds pipeline artifacts addressed by slash-separated keys.
// Reads observe every write that completed before them.
type ObjectStore interface {
	// Bucket names the store. Notifications carry it so handlers can reject foreign buckets.
	Bucket() string

	// Get returns the object's bytes. Returns ErrNotFound if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put writes or replaces an object.
	Put(ctx context.Context, key string, data []byte) error

	// Copy duplicates src to dst. Returns ErrNotFound if src doesn't exist.
	Copy(ctx context.Context, src, dst string) error

	// Size returns the object's length in bytes. Returns ErrNotFound if the key doesn't exist.
	Size(ctx context.Context, key string) (int64, error)

	// List returns every key starting with prefix in lexicographic order.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes an object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every object under prefix and reports how many were removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// DocumentRepository stores one DocumentRecord per (group, filename).
type DocumentRepository interface {
	// PutDocument writes the record, replacing any record with the same key.
	PutDocument(ctx context.Context, doc *core.DocumentRecord) error

	// GetDocument returns ErrNotFound if no record exists.
	GetDocument(ctx context.Context, group, filename string) (*core.DocumentRecord, error)

	// ListDocuments returns every record of a group ordered by filename.
	ListDocuments(ctx context.Context, group string) ([]*core.DocumentRecord, error)

	// DeleteDocument removes the record. Deleting a missing record is not an error.
	DeleteDocument(ctx context.Context, group, filename string) error
}

// ChunkRepository is one granularity store of embedded chunk rows, keyed by
// (id, filename) with a secondary index on group ordered by filename.
type ChunkRepository interface {
	// Name is the table name of the store.
	Name() string

	// PutChunks writes rows, replacing rows with the same (id, filename).
	PutChunks(ctx context.Context, chunks ...*core.ChunkRecord) error

	// QueryGroup returns up to limit rows of group starting after cursor.
	// The returned cursor is empty when there are no more rows.
	QueryGroup(ctx context.Context, group, cursor string, limit int) ([]*core.ChunkRecord, string, error)

	// Scan returns up to limit rows of the whole store starting after cursor.
	Scan(ctx context.Context, cursor string, limit int) ([]*core.ChunkRecord, string, error)

	// DeleteByFilenamePrefix removes every row of group whose filename starts
	// with prefix and reports how many were removed.
	DeleteByFilenamePrefix(ctx context.Context, group, prefix string) (int, error)

	// Count returns the number of rows in the store.
	Count(ctx context.Context) (int, error)
}

// ConversationRepository appends chat turns that expire after their TTL.
type ConversationRepository interface {
	// AppendTurn stores a turn. It disappears at turn.Expiration.
	AppendTurn(ctx context.Context, turn *core.ConversationTurn) error

	// History returns the live turns of a session ordered by timestamp.
	History(ctx context.Context, sessionID string) ([]*core.ConversationTurn, error)
}

// ExecutionRepository persists workflow executions so they can be described and resumed.
type ExecutionRepository interface {
	SaveExecution(ctx context.Context, exec *core.Execution) error

	// GetExecution returns ErrNotFound if the execution doesn't exist.
	GetExecution(ctx context.Context, id string) (*core.Execution, error)

	// ListExecutions returns executions of a workflow, or all when workflow is empty.
	ListExecutions(ctx context.Context, workflow string) ([]*core.Execution, error)
}

// JobRepository persists extraction jobs indexed by job id and correlation token.
type JobRepository interface {
	SaveJob(ctx context.Context, job *core.ExtractionJob) error

	// GetJob returns ErrNotFound if the job doesn't exist.
	GetJob(ctx context.Context, jobID string) (*core.ExtractionJob, error)

	// GetJobByToken returns ErrNotFound if no job carries the token.
	GetJobByToken(ctx context.Context, token string) (*core.ExtractionJob, error)
}

// DedupRepository remembers tokens of handled notifications.
type DedupRepository interface {
	// Remember stores value under (scope, token) unless already present.
	// It returns the stored value and whether the token had been seen.
	Remember(ctx context.Context, scope, token, value string, ttl time.Duration) (string, bool, error)

	// Forget drops a token so the notification can be handled again.
	Forget(ctx context.Context, scope, token string) error
}

// PromptRepository stores named prompt templates.
type PromptRepository interface {
	// GetPrompt returns ErrNotFound if the prompt was never set.
	GetPrompt(ctx context.Context, name string) (string, error)

	SetPrompt(ctx context.Context, name, value string) error
}
