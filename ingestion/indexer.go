package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/ragline/ai"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/storage"
)

// Indexer embeds chunk objects and writes them to the granularity stores.
type Indexer struct {
	objects  storage.ObjectStore
	embedder ai.Embedder
	stores   map[core.Granularity]storage.ChunkRepository
	pool     *ants.Pool
	logger   *slog.Logger
}

// NewIndexer creates an indexer that embeds up to poolSize chunks concurrently.
func NewIndexer(objects storage.ObjectStore, embedder ai.Embedder, small, large storage.ChunkRepository, poolSize int, logger *slog.Logger) (*Indexer, error) {
	if objects == nil {
		return nil, ErrObjectStoreRequired
	}
	if embedder == nil {
		return nil, ErrAIProviderRequired
	}
	if small == nil || large == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := newPool(poolSize)
	if err != nil {
		return nil, err
	}
	return &Indexer{
		objects:  objects,
		embedder: embedder,
		stores: map[core.Granularity]storage.ChunkRepository{
			core.GranularitySmall: small,
			core.GranularityLarge: large,
		},
		pool:   pool,
		logger: logger.With("stage", "index"),
	}, nil
}

// Release stops the indexer's worker pool.
func (x *Indexer) Release() {
	x.pool.Release()
}

func (x *Indexer) store(g core.Granularity) (storage.ChunkRepository, error) {
	repo, ok := x.stores[g]
	if !ok {
		return nil, core.Validation("ingestion.Index", fmt.Errorf("no store for granularity %s", g))
	}
	return repo, nil
}

// Index embeds one chunk object and writes its row
// {id: group-processingId, filename: <filename>/<source>/chunks<size>/chunk<i>}
// into the store of granularity g.
func (x *Indexer) Index(ctx context.Context, chunkKey, group, processingID string, g core.Granularity) error {
	repo, err := x.store(g)
	if err != nil {
		return err
	}
	loc, err := core.ParseChunkKey(chunkKey)
	if err != nil {
		return core.Validation("ingestion.Index", err)
	}
	text, err := x.objects.Get(ctx, chunkKey)
	if err != nil {
		return terminalIfMissing("ingestion.Index", chunkKey, err)
	}
	vector, err := x.embedder.EmbedText(ctx, string(text))
	if err != nil {
		return core.Transient("ingestion.Index", fmt.Errorf("embedding %s: %w", chunkKey, err))
	}
	return repo.PutChunks(ctx, &core.ChunkRecord{
		ID:       core.ChunkID(group, processingID),
		Filename: loc.RowFilename(),
		Group:    group,
		Vector:   vector,
		Text:     string(text),
	})
}

// IndexAll indexes every chunk reported by the chunker for one source of a
// document. Rows left by an earlier run of the same source are removed
// first so the store holds exactly the reported chunks.
func (x *Indexer) IndexAll(ctx context.Context, ref core.ArtifactRef, source core.ExtractionSource, counts []ChunkCount) (int, error) {
	rowPrefix := core.ChunkRowPrefix(ref.Filename) + string(source) + "/"
	keys := make([]string, 0)
	granularity := make(map[string]core.Granularity)
	for _, c := range counts {
		repo, err := x.store(c.Granularity)
		if err != nil {
			return 0, err
		}
		if _, err := repo.DeleteByFilenamePrefix(ctx, ref.Group, rowPrefix); err != nil {
			return 0, err
		}
		for i := 1; i <= c.Count; i++ {
			key := ref.ChunkKey(source, c.Size, i)
			keys = append(keys, key)
			granularity[key] = c.Granularity
		}
	}

	failed, ok := fanOut(ctx, x.pool, keys, func(ctx context.Context, key string) error {
		return x.Index(ctx, key, ref.Group, ref.ProcessingID, granularity[key])
	})
	x.logger.Info("chunks indexed", "group", ref.Group, "filename", ref.Filename, "source", source,
		"indexed", ok, "failed", len(failed))
	if len(failed) > 0 {
		return ok, core.Partial("ingestion.IndexAll", failed, ok)
	}
	return ok, nil
}
