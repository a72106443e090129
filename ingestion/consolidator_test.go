package ingestion

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/extraction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsolidate(t *testing.T) {
	stores := newTestStores(t)
	c := NewConsolidator(stores.Objects, nil)
	ctx := context.Background()
	ref := core.ArtifactRef{Group: "sales", ProcessingID: "pid1", Filename: "q1.pdf"}

	// Written out of order; consolidation restores page order.
	for _, p := range []struct {
		n    int
		text string
	}{{3, "Page3"}, {1, "Page1"}, {2, "Page2"}} {
		key, err := core.ProcessedPageKey(ref.PageKey(p.n))
		require.NoError(t, err)
		require.NoError(t, stores.Objects.Put(ctx, key, []byte(p.text)))
	}
	require.NoError(t, stores.Objects.Put(ctx, ref.ProcessedPagePrefix()+"notes.json", []byte("{}")))

	// A document whose name extends ours must not leak in.
	longer := core.ArtifactRef{Group: "sales", ProcessingID: "pid1", Filename: "q1.pdf.bak"}
	key, err := core.ProcessedPageKey(longer.PageKey(1))
	require.NoError(t, err)
	require.NoError(t, stores.Objects.Put(ctx, key, []byte("other")))

	for name, prefix := range map[string]string{
		"processed prefix":        ref.ProcessedPagePrefix(),
		"page prefix":             ref.PagePrefix(),
		"prefix without trailing": "pages_processed/sales/pid1_q1.pdf",
	} {
		t.Run(name, func(t *testing.T) {
			out, err := c.Consolidate(ctx, prefix)
			require.NoError(t, err)
			assert.Equal(t, "raw_text/sales/pid1_q1.pdf_raw_llm.txt", out)

			data, err := stores.Objects.Get(ctx, out)
			require.NoError(t, err)
			assert.Equal(t, "Page1\n\nPage2\n\nPage3", string(data))
		})
	}
}

func TestConsolidate_NoPages(t *testing.T) {
	stores := newTestStores(t)
	c := NewConsolidator(stores.Objects, nil)

	_, err := c.Consolidate(context.Background(), "pages_processed/sales/pid1_empty.pdf_")
	assert.ErrorIs(t, err, ErrNoMatchingFiles)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.False(t, core.IsRetriable(err))
}

func TestConsolidate_BadPrefix(t *testing.T) {
	stores := newTestStores(t)
	c := NewConsolidator(stores.Objects, nil)

	_, err := c.Consolidate(context.Background(), "raw_text/sales/pid1_q1.pdf_")
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestNormalize(t *testing.T) {
	stores := newTestStores(t)
	n := NewNormalizer(stores.Objects, nil)
	ctx := context.Background()
	ref := core.ArtifactRef{Group: "sales", ProcessingID: "pid1", Filename: "q1.pdf"}

	result := extraction.Result{JobID: "job-1", Status: extraction.StatusSucceeded, Pages: resultPages(
		[]string{"Revenue", "grew"},
		[]string{"by 12%"},
	)}
	data, err := json.Marshal(result)
	require.NoError(t, err)
	require.NoError(t, stores.Objects.Put(ctx, ref.TextractJSONKey(), data))

	out, err := n.Normalize(ctx, ref.TextractJSONKey())
	require.NoError(t, err)
	assert.Equal(t, ref.RawTextKey(core.SourceTextract), out)

	text, err := stores.Objects.Get(ctx, out)
	require.NoError(t, err)
	assert.Equal(t, "Revenue\ngrew\nby 12%\n", string(text))

	t.Run("malformed result", func(t *testing.T) {
		bad := core.ArtifactRef{Group: "sales", ProcessingID: "pid2", Filename: "bad.pdf"}
		require.NoError(t, stores.Objects.Put(ctx, bad.TextractJSONKey(), []byte("{not json")))
		_, err := n.Normalize(ctx, bad.TextractJSONKey())
		assert.ErrorIs(t, err, core.ErrValidation)
	})

	t.Run("missing result", func(t *testing.T) {
		gone := core.ArtifactRef{Group: "sales", ProcessingID: "pid3", Filename: "gone.pdf"}
		_, err := n.Normalize(ctx, gone.TextractJSONKey())
		assert.ErrorIs(t, err, core.ErrNotFound)
	})
}
