package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/storage"
	"github.com/tmc/langchaingo/textsplitter"
)

// ChunkSize is one target chunk size and the store its chunks are indexed into.
type ChunkSize struct {
	Size        int
	Overlap     int
	Granularity core.Granularity
}

// DefaultChunkSizes returns the small (1000/200) and large (2000/200) sizes.
func DefaultChunkSizes() []ChunkSize {
	return []ChunkSize{
		{Size: 1000, Overlap: 200, Granularity: core.GranularitySmall},
		{Size: 2000, Overlap: 200, Granularity: core.GranularityLarge},
	}
}

// Strategy selects how text is cut into chunks.
type Strategy string

const (
	// StrategyWindow slides a fixed window over the text; consecutive chunks
	// share exactly Overlap characters.
	StrategyWindow Strategy = "window"
	// StrategyRecursive prefers paragraph, line and word boundaries.
	StrategyRecursive Strategy = "recursive"
)

var recursiveSeparators = []string{"\n\n", "\n", " ", ""}

// SizedChunks are the chunks produced for one ChunkSize.
type SizedChunks struct {
	ChunkSize
	Chunks []string
}

// Chunker splits raw text artifacts into chunk objects.
type Chunker struct {
	objects  storage.ObjectStore
	sizes    []ChunkSize
	strategy Strategy
	logger   *slog.Logger
}

// NewChunker creates a chunker. Every size must be positive with an overlap
// smaller than the size.
func NewChunker(objects storage.ObjectStore, sizes []ChunkSize, strategy Strategy, logger *slog.Logger) (*Chunker, error) {
	if objects == nil {
		return nil, ErrObjectStoreRequired
	}
	if len(sizes) == 0 {
		sizes = DefaultChunkSizes()
	}
	for _, s := range sizes {
		if s.Size <= 0 || s.Overlap < 0 || s.Overlap >= s.Size {
			return nil, fmt.Errorf("%w: size %d overlap %d", ErrInvalidChunkSize, s.Size, s.Overlap)
		}
		if s.Granularity != core.GranularitySmall && s.Granularity != core.GranularityLarge {
			return nil, fmt.Errorf("%w: size %d has no granularity", ErrInvalidChunkSize, s.Size)
		}
	}
	switch strategy {
	case "":
		strategy = StrategyWindow
	case StrategyWindow, StrategyRecursive:
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", ErrInvalidChunkSize, strategy)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chunker{objects: objects, sizes: sizes, strategy: strategy, logger: logger.With("stage", "chunk")}, nil
}

// Sizes returns the configured chunk sizes.
func (c *Chunker) Sizes() []ChunkSize {
	return c.sizes
}

// Chunk splits text for every configured size.
func (c *Chunker) Chunk(text string) ([]SizedChunks, error) {
	out := make([]SizedChunks, len(c.sizes))
	for i, size := range c.sizes {
		var (
			chunks []string
			err    error
		)
		if c.strategy == StrategyRecursive {
			chunks, err = recursiveChunks(text, size)
		} else {
			chunks = windowChunks(text, size.Size, size.Overlap)
		}
		if err != nil {
			return nil, err
		}
		out[i] = SizedChunks{ChunkSize: size, Chunks: chunks}
	}
	return out, nil
}

// windowChunks cuts text into rune windows of size starting every
// size-overlap runes. The last window ends at the end of the text.
func windowChunks(text string, size, overlap int) []string {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}
	step := size - overlap
	var chunks []string
	for start := 0; ; start += step {
		end := min(start+size, n)
		chunks = append(chunks, string(runes[start:end]))
		if end == n {
			return chunks
		}
	}
}

func recursiveChunks(text string, size ChunkSize) ([]string, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size.Size),
		textsplitter.WithChunkOverlap(size.Overlap),
		textsplitter.WithSeparators(recursiveSeparators),
	)
	parts, err := splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("splitting text: %w", err)
	}
	chunks := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			chunks = append(chunks, p)
		}
	}
	return chunks, nil
}

// sourcePrefix bounds the chunk objects of one extraction source of a document.
func sourcePrefix(ref core.ArtifactRef, source core.ExtractionSource) string {
	return ref.ChunkPrefix() + string(source) + "/"
}

// ChunkArtifact chunks the text stored at rawTextKey and writes every chunk
// to rag/<group>/<filename>/<source>/chunks<size>/chunk<i>. Chunks left by
// an earlier run of the same source are removed first.
func (c *Chunker) ChunkArtifact(ctx context.Context, rawTextKey string, ref core.ArtifactRef, source core.ExtractionSource) ([]ChunkCount, error) {
	data, err := c.objects.Get(ctx, rawTextKey)
	if err != nil {
		return nil, terminalIfMissing("ingestion.ChunkArtifact", rawTextKey, err)
	}
	sized, err := c.Chunk(string(data))
	if err != nil {
		return nil, core.Validation("ingestion.ChunkArtifact", err)
	}

	if _, err := c.objects.DeletePrefix(ctx, sourcePrefix(ref, source)); err != nil {
		return nil, err
	}

	counts := make([]ChunkCount, len(sized))
	for i, s := range sized {
		for j, chunk := range s.Chunks {
			if err := c.objects.Put(ctx, ref.ChunkKey(source, s.Size, j+1), []byte(chunk)); err != nil {
				return nil, err
			}
		}
		counts[i] = ChunkCount{Size: s.Size, Granularity: s.Granularity, Count: len(s.Chunks)}
	}
	c.logger.Info("text chunked", "group", ref.Group, "filename", ref.Filename, "source", source, "counts", formatCounts(counts))
	return counts, nil
}
