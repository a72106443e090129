package reembed

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/ragline/ai"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/storage"
)

// BatchProcessor re-embeds batches of chunk rows and writes them back.
type BatchProcessor struct {
	repo           storage.ChunkRepository
	embedder       ai.Embedder
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewBatchProcessor creates a batch processor writing to repo.
// maxRetries: maximum number of attempts per embedding call
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(repo storage.ChunkRepository, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		repo:           repo,
		embedder:       embedder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// Process embeds the text of every row in one call and replaces the rows.
// Rows keep their id, filename, group and text.
func (bp *BatchProcessor) Process(ctx context.Context, rows []*core.ChunkRecord) error {
	if len(rows) == 0 {
		return nil
	}

	texts := make([]string, len(rows))
	for i, row := range rows {
		texts[i] = row.Text
	}

	var vectors [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var err error
		vectors, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return fmt.Errorf("embedding %d rows: %w", len(rows), err)
	}
	if len(vectors) != len(rows) {
		return fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingCount, len(rows), len(vectors))
	}

	updated := make([]*core.ChunkRecord, len(rows))
	for i, row := range rows {
		copied := *row
		copied.Vector = vectors[i]
		updated[i] = &copied
	}
	if err := bp.repo.PutChunks(ctx, updated...); err != nil {
		return fmt.Errorf("writing %d rows to %s: %w", len(rows), bp.repo.Name(), err)
	}
	return nil
}
