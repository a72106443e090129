package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/poiesic/ragline/ai/mock"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unitAt returns a 2-d unit vector whose cosine with (1, 0) is cos.
func unitAt(cos float64) []float32 {
	return []float32{float32(cos), float32(math.Sqrt(1 - cos*cos))}
}

func newTestRetriever(t *testing.T, opts ...Option) (*BruteForce, *badger.Stores, *mock.MockEmbedder) {
	t.Helper()
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 0}, nil
	}
	r, err := NewBruteForce(stores.Small, stores.Large, embedder, opts...)
	require.NoError(t, err)
	return r, stores, embedder
}

func chunk(group, filename, text string, vector []float32) *core.ChunkRecord {
	return &core.ChunkRecord{
		ID:       core.ChunkID(group, "pid"),
		Filename: filename,
		Group:    group,
		Vector:   vector,
		Text:     text,
	}
}

func TestNewBruteForce(t *testing.T) {
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()
	embedder := mock.NewMockEmbedder()

	t.Run("valid configuration", func(t *testing.T) {
		r, err := NewBruteForce(stores.Small, stores.Large, embedder, WithLogger(nil), WithPageSize(5))
		require.NoError(t, err)
		assert.Equal(t, 5, r.pageSize)
	})

	t.Run("nil store", func(t *testing.T) {
		_, err := NewBruteForce(nil, stores.Large, embedder)
		assert.Equal(t, ErrChunkRepositoryRequired, err)
	})

	t.Run("nil embedder", func(t *testing.T) {
		_, err := NewBruteForce(stores.Small, stores.Large, nil)
		assert.Equal(t, ErrEmbedderRequired, err)
	})

	t.Run("bad page size", func(t *testing.T) {
		_, err := NewBruteForce(stores.Small, stores.Large, embedder, WithPageSize(0))
		assert.Error(t, err)
	})
}

func TestRetrieve_Tolerance(t *testing.T) {
	r, stores, _ := newTestRetriever(t)
	ctx := context.Background()
	require.NoError(t, stores.Small.PutChunks(ctx,
		chunk("sales", "q1.pdf/textract/chunks1000/chunk1", "close", unitAt(0.5)),
		chunk("sales", "q1.pdf/textract/chunks1000/chunk2", "far", unitAt(0.1)),
	))

	matches, err := r.Retrieve(ctx, NewQuery("revenue", "sales"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "close", matches[0].Chunk.Text)
	assert.InDelta(t, 0.5, matches[0].Score, 1e-6)

	t.Run("zero value uses default", func(t *testing.T) {
		matches, err := r.Retrieve(ctx, Query{Text: "revenue", Group: "sales"})
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "close", matches[0].Chunk.Text)
	})

	t.Run("any score", func(t *testing.T) {
		q := NewQuery("revenue", "sales")
		q.Tolerance = AnyScore
		matches, err := r.Retrieve(ctx, q)
		require.NoError(t, err)
		assert.Len(t, matches, 2)
	})
}

func TestRetrieve_RankingAndStableTies(t *testing.T) {
	r, stores, _ := newTestRetriever(t, WithPageSize(2))
	ctx := context.Background()

	scores := []float64{0.4, 0.9, 0.6, 0.9, 0.4, 0.9, 0.35}
	rows := make([]*core.ChunkRecord, len(scores))
	for i, s := range scores {
		rows[i] = chunk("sales", fmt.Sprintf("doc.pdf/textract/chunks1000/chunk%02d", i+1), fmt.Sprintf("c%d", i+1), unitAt(s))
	}
	require.NoError(t, stores.Small.PutChunks(ctx, rows...))

	matches, err := r.Retrieve(ctx, NewQuery("q", "sales"))
	require.NoError(t, err)

	texts := make([]string, len(matches))
	for i, m := range matches {
		texts[i] = m.Chunk.Text
	}
	// Ties keep group index (filename) order.
	assert.Equal(t, []string{"c2", "c4", "c6", "c3", "c1", "c5", "c7"}, texts)

	again, err := r.Retrieve(ctx, NewQuery("q", "sales"))
	require.NoError(t, err)
	assert.Equal(t, matches, again)

	t.Run("max hits", func(t *testing.T) {
		q := NewQuery("q", "sales")
		q.MaxHits = 2
		top, err := r.Retrieve(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, matches[:2], top)
	})
}

func TestRetrieve_GroupScoping(t *testing.T) {
	r, stores, _ := newTestRetriever(t)
	ctx := context.Background()
	require.NoError(t, stores.Small.PutChunks(ctx,
		chunk("sales", "a.pdf/textract/chunks1000/chunk1", "sales row", unitAt(0.8)),
		chunk("legal", "b.pdf/textract/chunks1000/chunk1", "legal row", unitAt(0.8)),
	))

	matches, err := r.Retrieve(ctx, NewQuery("q", "legal"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "legal", matches[0].Chunk.Group)

	all, err := r.Retrieve(ctx, NewQuery("q", ""))
	require.NoError(t, err)
	assert.Len(t, all, 2)

	none, err := r.Retrieve(ctx, NewQuery("q", "hr"))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRetrieve_Granularity(t *testing.T) {
	r, stores, _ := newTestRetriever(t)
	ctx := context.Background()
	require.NoError(t, stores.Large.PutChunks(ctx,
		chunk("sales", "a.pdf/llm/chunks2000/chunk1", "large row", unitAt(0.7)),
	))

	small, err := r.Retrieve(ctx, NewQuery("q", "sales"))
	require.NoError(t, err)
	assert.Empty(t, small)

	q := NewQuery("q", "sales")
	q.Granularity = core.GranularityLarge
	large, err := r.Retrieve(ctx, q)
	require.NoError(t, err)
	require.Len(t, large, 1)
	assert.Equal(t, "large row", large[0].Chunk.Text)

	q.Granularity = core.Granularity(7)
	_, err = r.Retrieve(ctx, q)
	assert.ErrorIs(t, err, ErrUnknownGranularity)
}

func TestRetrieve_SkipsIncomparableRows(t *testing.T) {
	r, stores, _ := newTestRetriever(t)
	ctx := context.Background()
	require.NoError(t, stores.Small.PutChunks(ctx,
		chunk("sales", "a.pdf/text/chunks1000/chunk1", "old model", []float32{1, 0, 0}),
		chunk("sales", "a.pdf/text/chunks1000/chunk2", "current", unitAt(0.9)),
	))

	matches, err := r.Retrieve(ctx, NewQuery("q", "sales"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "current", matches[0].Chunk.Text)
}

func TestRetrieve_Errors(t *testing.T) {
	r, _, embedder := newTestRetriever(t)
	ctx := context.Background()

	_, err := r.Retrieve(ctx, NewQuery("   ", "sales"))
	assert.ErrorIs(t, err, ErrEmptyQuery)
	assert.ErrorIs(t, err, core.ErrValidation)

	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("throttled")
	}
	_, err = r.Retrieve(ctx, NewQuery("q", "sales"))
	assert.ErrorIs(t, err, core.ErrTransient)
}

func TestRetrieve_Verbatim(t *testing.T) {
	r, stores, _ := newTestRetriever(t)
	ctx := context.Background()
	require.NoError(t, stores.Small.PutChunks(ctx,
		chunk("sales", "a.pdf/text/chunks1000/chunk1", "Q1 revenue grew 12%.", unitAt(0.9)),
		chunk("sales", "a.pdf/text/chunks1000/chunk2", "Costs were flat.", unitAt(0.8)),
	))

	matches, err := r.Retrieve(ctx, NewQuery("What was the Q1 revenue?", "sales"))
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.True(t, matches[0].Verbatim)
	assert.False(t, matches[1].Verbatim)
}

type countingMonitor struct {
	noopMonitor
	pages, accepted, rejected int
	finished                  []Match
}

func (m *countingMonitor) PageRead(_ int)                          { m.pages++ }
func (m *countingMonitor) Accepted(_ *core.ChunkRecord, _ float64) { m.accepted++ }
func (m *countingMonitor) Rejected(_ *core.ChunkRecord, _ float64) { m.rejected++ }
func (m *countingMonitor) Finish(matches []Match)                  { m.finished = matches }

func TestRetrieveWithMonitor(t *testing.T) {
	r, stores, _ := newTestRetriever(t, WithPageSize(1))
	ctx := context.Background()
	require.NoError(t, stores.Small.PutChunks(ctx,
		chunk("sales", "a.pdf/text/chunks1000/chunk1", "a", unitAt(0.9)),
		chunk("sales", "a.pdf/text/chunks1000/chunk2", "b", unitAt(0.2)),
		chunk("sales", "a.pdf/text/chunks1000/chunk3", "c", unitAt(0.5)),
	))

	m := &countingMonitor{}
	matches, err := r.RetrieveWithMonitor(ctx, NewQuery("q", "sales"), m)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, m.pages, 3)
	assert.Equal(t, 2, m.accepted)
	assert.Equal(t, 1, m.rejected)
	assert.Equal(t, matches, m.finished)
}

func TestTerms(t *testing.T) {
	assert.Equal(t, []string{"q1", "revenue"}, terms("What was the Q1 revenue?"))
	assert.True(t, containsAllQueryWords("Revenue in Q1 grew.", "the q1 revenue"))
	assert.False(t, containsAllQueryWords("Revenue grew.", "q1 revenue"))
	assert.False(t, containsAllQueryWords("anything", "the and of"))
}
