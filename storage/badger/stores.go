package badger

import (
	"github.com/poiesic/ragline/core"
)

// Tables names the stores sharing one backend.
type Tables struct {
	Bucket        string
	Documents     string
	Small         string
	Large         string
	Conversations string
}

// DefaultTables returns the conventional store names. Small chunks live in
// the "textract" table and large chunks in the "llm" table.
func DefaultTables() Tables {
	return Tables{
		Bucket:        "ragline",
		Documents:     "documents",
		Small:         "textract",
		Large:         "llm",
		Conversations: "conversations",
	}
}

// Stores bundles every repository backed by one Backend.
type Stores struct {
	Backend       *Backend
	Objects       *ObjectStore
	Documents     *DocumentRepository
	Small         *ChunkRepository
	Large         *ChunkRepository
	Conversations *ConversationRepository
	Executions    *ExecutionRepository
	Jobs          *JobRepository
	Dedup         *DedupRepository
	Prompts       *PromptRepository
}

// NewStores builds the repositories over backend. Empty table names fall
// back to DefaultTables.
func NewStores(backend *Backend, tables Tables) *Stores {
	def := DefaultTables()
	if tables.Bucket == "" {
		tables.Bucket = def.Bucket
	}
	if tables.Documents == "" {
		tables.Documents = def.Documents
	}
	if tables.Small == "" {
		tables.Small = def.Small
	}
	if tables.Large == "" {
		tables.Large = def.Large
	}
	if tables.Conversations == "" {
		tables.Conversations = def.Conversations
	}
	return &Stores{
		Backend:       backend,
		Objects:       NewObjectStore(backend, tables.Bucket),
		Documents:     NewDocumentRepository(backend, tables.Documents),
		Small:         NewChunkRepository(backend, tables.Small),
		Large:         NewChunkRepository(backend, tables.Large),
		Conversations: NewConversationRepository(backend, tables.Conversations),
		Executions:    NewExecutionRepository(backend),
		Jobs:          NewJobRepository(backend),
		Dedup:         NewDedupRepository(backend),
		Prompts:       NewPromptRepository(backend),
	}
}

// Chunks returns the chunk store of a granularity.
func (s *Stores) Chunks(g core.Granularity) *ChunkRepository {
	if g == core.GranularityLarge {
		return s.Large
	}
	return s.Small
}

// Close closes the shared backend.
func (s *Stores) Close() error {
	return s.Backend.Close()
}
