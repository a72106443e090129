package reembed

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/ragline/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowIterator_ForEach(t *testing.T) {
	stores := setupTestStores(t)
	seedRows(t, stores.Small, "sales", 7)
	seedRows(t, stores.Small, "legal", 3)

	var sizes []int
	seen := map[string]bool{}
	err := NewRowIterator(stores.Small, 4).ForEach(context.Background(), func(rows []*core.ChunkRecord) error {
		sizes = append(sizes, len(rows))
		for _, r := range rows {
			seen[r.ID+"|"+r.Filename] = true
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 10, len(seen))
	total := 0
	for _, n := range sizes {
		assert.LessOrEqual(t, n, 4)
		total += n
	}
	assert.Equal(t, 10, total)
}

func TestRowIterator_EmptyStore(t *testing.T) {
	stores := setupTestStores(t)
	called := false
	err := NewRowIterator(stores.Small, 0).ForEach(context.Background(), func(rows []*core.ChunkRecord) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestRowIterator_StopsOnError(t *testing.T) {
	stores := setupTestStores(t)
	seedRows(t, stores.Small, "sales", 5)

	boom := errors.New("boom")
	calls := 0
	err := NewRowIterator(stores.Small, 2).ForEach(context.Background(), func(rows []*core.ChunkRecord) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestRowIterator_ContextCanceled(t *testing.T) {
	stores := setupTestStores(t)
	seedRows(t, stores.Small, "sales", 5)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := NewRowIterator(stores.Small, 2).ForEach(ctx, func(rows []*core.ChunkRecord) error {
		calls++
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
