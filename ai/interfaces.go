package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// PageExtractor turns the bytes of a single document page into text,
// preserving layout (tables, lists and classified figures).
// Implementations must be thread-safe for concurrent use.
type PageExtractor interface {
	// ExtractPage returns the extracted text of one page.
	// mimeType describes page, e.g. "application/pdf" or "image/png".
	ExtractPage(ctx context.Context, page []byte, mimeType string) (string, error)
}

// ChatModel produces a single completion for a conversation.
// Implementations must be thread-safe for concurrent use.
type ChatModel interface {
	// Complete returns the model's reply to messages.
	Complete(ctx context.Context, messages []Message) (string, error)
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
// A provider creates the services from one Config so they share rate limits and credentials.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// PageExtractor returns the generative page extraction service.
	PageExtractor() PageExtractor

	// ChatModel returns the conversational model.
	ChatModel() ChatModel

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
