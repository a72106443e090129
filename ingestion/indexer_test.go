package ingestion

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/poiesic/ragline/ai/mock"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndexer(t *testing.T, stores *badger.Stores, embedder *mock.MockEmbedder) *Indexer {
	t.Helper()
	x, err := NewIndexer(stores.Objects, embedder, stores.Small, stores.Large, 4, nil)
	require.NoError(t, err)
	t.Cleanup(x.Release)
	return x
}

func chunkDocument(t *testing.T, stores *badger.Stores, ref core.ArtifactRef, text string) []ChunkCount {
	t.Helper()
	ctx := context.Background()
	c, err := NewChunker(stores.Objects, nil, StrategyWindow, nil)
	require.NoError(t, err)
	rawKey := ref.RawTextKey(core.SourceTextract)
	require.NoError(t, stores.Objects.Put(ctx, rawKey, []byte(text)))
	counts, err := c.ChunkArtifact(ctx, rawKey, ref, core.SourceTextract)
	require.NoError(t, err)
	return counts
}

func TestIndexer_Index(t *testing.T) {
	stores := newTestStores(t)
	embedder := mock.NewMockEmbedder()
	embedder.Dim = 4
	x := newTestIndexer(t, stores, embedder)
	ctx := context.Background()

	ref := core.ArtifactRef{Group: "sales", ProcessingID: "pid1", Filename: "q1.pdf"}
	key := ref.ChunkKey(core.SourceTextract, 1000, 1)
	require.NoError(t, stores.Objects.Put(ctx, key, []byte("revenue grew")))

	require.NoError(t, x.Index(ctx, key, "sales", "pid1", core.GranularitySmall))

	rows, _, err := stores.Small.QueryGroup(ctx, "sales", "", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "sales-pid1", rows[0].ID)
	assert.Equal(t, "q1.pdf/textract/chunks1000/chunk1", rows[0].Filename)
	assert.Equal(t, "sales", rows[0].Group)
	assert.Equal(t, "revenue grew", rows[0].Text)
	assert.Len(t, rows[0].Vector, 4)

	n, err := stores.Large.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	t.Run("missing chunk object", func(t *testing.T) {
		err := x.Index(ctx, ref.ChunkKey(core.SourceTextract, 1000, 9), "sales", "pid1", core.GranularitySmall)
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("unknown granularity", func(t *testing.T) {
		err := x.Index(ctx, key, "sales", "pid1", core.Granularity(9))
		assert.ErrorIs(t, err, core.ErrValidation)
	})
}

func TestIndexer_IndexAll_RowCountMatchesChunkCounts(t *testing.T) {
	stores := newTestStores(t)
	x := newTestIndexer(t, stores, mock.NewMockEmbedder())
	ctx := context.Background()

	ref := core.ArtifactRef{Group: "sales", ProcessingID: "pid1", Filename: "q1.pdf"}
	counts := chunkDocument(t, stores, ref, strings.Repeat("z", 5000))

	indexed, err := x.IndexAll(ctx, ref, core.SourceTextract, counts)
	require.NoError(t, err)

	want := 0
	for _, c := range counts {
		want += c.Count
		n, err := stores.Chunks(c.Granularity).Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, c.Count, n, "store %s", c.Granularity)
	}
	assert.Equal(t, want, indexed)

	t.Run("reindexing replaces rows", func(t *testing.T) {
		counts := chunkDocument(t, stores, ref, "tiny")
		_, err := x.IndexAll(ctx, ref, core.SourceTextract, counts)
		require.NoError(t, err)
		for _, g := range core.Granularities {
			n, err := stores.Chunks(g).Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		}
	})
}

func TestIndexer_IndexAll_PartialFailure(t *testing.T) {
	stores := newTestStores(t)
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		if strings.HasPrefix(text, "b") {
			return nil, errors.New("rate limited")
		}
		return []float32{1, 0}, nil
	}
	x := newTestIndexer(t, stores, embedder)
	ctx := context.Background()

	ref := core.ArtifactRef{Group: "sales", ProcessingID: "pid1", Filename: "q1.pdf"}
	counts := chunkDocument(t, stores, ref, strings.Repeat("a", 800)+strings.Repeat("b", 1200))

	indexed, err := x.IndexAll(ctx, ref, core.SourceTextract, counts)
	require.ErrorIs(t, err, core.ErrPartialFailure)
	assert.Positive(t, indexed)

	var partial *core.PartialFailures
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, indexed, partial.Succeeded)
	assert.NotEmpty(t, partial.Failed)
}
