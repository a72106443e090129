package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/poiesic/ragline/ai"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/storage"
)

const (
	// DefaultTolerance is the minimum cosine similarity of a match.
	DefaultTolerance = 0.3
	// AnyScore is a Tolerance that keeps every comparable row.
	AnyScore = -1.0
	// DefaultPageSize is how many rows are read from the store per request.
	DefaultPageSize = 20
)

// Query describes one retrieval.
type Query struct {
	Text        string
	Group       string
	Granularity core.Granularity
	// Tolerance is the minimum score of a match. Zero means DefaultTolerance.
	Tolerance float64
	// MaxHits truncates the ranked matches. Zero returns all of them.
	MaxHits int
}

// NewQuery returns a query over the small store with the default tolerance.
func NewQuery(text, group string) Query {
	return Query{Text: text, Group: group, Granularity: core.GranularitySmall, Tolerance: DefaultTolerance}
}

// Match is a retrieved chunk and its cosine similarity to the query.
type Match struct {
	Chunk *core.ChunkRecord
	Score float64
	// Verbatim is set when the chunk contains every non stop word of the query.
	Verbatim bool
}

// Retriever finds the chunks most similar to a query.
type Retriever interface {
	Retrieve(ctx context.Context, q Query) ([]Match, error)
}

// BruteForce compares the query against every candidate row.
type BruteForce struct {
	stores   map[core.Granularity]storage.ChunkRepository
	embedder ai.Embedder
	pageSize int
	logger   *slog.Logger
}

var _ Retriever = (*BruteForce)(nil)

// Option configures a BruteForce retriever.
type Option func(*BruteForce) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *BruteForce) error {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger
		return nil
	}
}

// WithPageSize sets how many rows are read per store request.
// Default is DefaultPageSize.
func WithPageSize(n int) Option {
	return func(b *BruteForce) error {
		if n < 1 {
			return fmt.Errorf("page size must be positive, got %d", n)
		}
		b.pageSize = n
		return nil
	}
}

// NewBruteForce creates a retriever over the small and large stores.
func NewBruteForce(small, large storage.ChunkRepository, embedder ai.Embedder, opts ...Option) (*BruteForce, error) {
	if small == nil || large == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	b := &BruteForce{
		stores: map[core.Granularity]storage.ChunkRepository{
			core.GranularitySmall: small,
			core.GranularityLarge: large,
		},
		embedder: embedder,
		pageSize: DefaultPageSize,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	b.logger = b.logger.With("component", "retriever")
	return b, nil
}

// Retrieve returns the matches of q ranked by similarity.
func (b *BruteForce) Retrieve(ctx context.Context, q Query) ([]Match, error) {
	return b.RetrieveWithMonitor(ctx, q, nil)
}

// RetrieveWithMonitor is Retrieve with callbacks at each stage.
func (b *BruteForce) RetrieveWithMonitor(ctx context.Context, q Query, monitor RetrievalMonitor) ([]Match, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if strings.TrimSpace(q.Text) == "" {
		return nil, core.Validation("search.Retrieve", ErrEmptyQuery)
	}
	if q.Granularity == 0 {
		q.Granularity = core.GranularitySmall
	}
	if q.Tolerance == 0 {
		q.Tolerance = DefaultTolerance
	}
	repo, ok := b.stores[q.Granularity]
	if !ok {
		return nil, core.Validation("search.Retrieve", fmt.Errorf("%w: %s", ErrUnknownGranularity, q.Granularity))
	}
	monitor.Start(q)

	embedding, err := b.embedder.EmbedText(ctx, q.Text)
	if err != nil {
		b.logger.Error("error generating embedding for query", "err", err)
		return nil, core.Transient("search.Retrieve", err)
	}
	monitor.AfterEmbedding(len(embedding))

	read := func(cursor string) ([]*core.ChunkRecord, string, error) {
		if q.Group != "" {
			return repo.QueryGroup(ctx, q.Group, cursor, b.pageSize)
		}
		return repo.Scan(ctx, cursor, b.pageSize)
	}

	var (
		matches []Match
		scanned int
		cursor  string
	)
	for {
		rows, next, err := read(cursor)
		if err != nil {
			b.logger.Error("error reading chunk rows", "store", repo.Name(), "err", err)
			return nil, err
		}
		monitor.PageRead(len(rows))
		scanned += len(rows)

		for _, row := range rows {
			score, err := core.CosineSimilarity(embedding, row.Vector)
			if err != nil {
				// Rows embedded with another model cannot be compared.
				b.logger.Warn("skipping incomparable row", "id", row.ID, "filename", row.Filename, "err", err)
				continue
			}
			if score < q.Tolerance {
				monitor.Rejected(row, score)
				continue
			}
			monitor.Accepted(row, score)
			matches = append(matches, Match{
				Chunk:    row,
				Score:    score,
				Verbatim: containsAllQueryWords(row.Text, q.Text),
			})
		}

		if next == "" {
			break
		}
		cursor = next
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if q.MaxHits > 0 && len(matches) > q.MaxHits {
		matches = matches[:q.MaxHits]
	}
	b.logger.Debug("retrieval finished", "store", repo.Name(), "group", q.Group, "scanned", scanned, "matches", len(matches))
	monitor.Finish(matches)
	return matches, nil
}
