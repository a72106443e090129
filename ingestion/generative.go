package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/ragline/ai"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/storage"
)

// GenerativeExtractor reads split pages with a multimodal model.
type GenerativeExtractor struct {
	objects   storage.ObjectStore
	extractor ai.PageExtractor
	pool      *ants.Pool
	logger    *slog.Logger
}

// NewGenerativeExtractor creates an extractor that processes up to poolSize
// pages of a document concurrently.
func NewGenerativeExtractor(objects storage.ObjectStore, extractor ai.PageExtractor, poolSize int, logger *slog.Logger) (*GenerativeExtractor, error) {
	if objects == nil {
		return nil, ErrObjectStoreRequired
	}
	if extractor == nil {
		return nil, ErrAIProviderRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := newPool(poolSize)
	if err != nil {
		return nil, err
	}
	return &GenerativeExtractor{
		objects:   objects,
		extractor: extractor,
		pool:      pool,
		logger:    logger.With("stage", "extract-pages"),
	}, nil
}

// Release stops the extractor's worker pool.
func (g *GenerativeExtractor) Release() {
	g.pool.Release()
}

func mimeTypeOf(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".tif", ".tiff":
		return "image/tiff"
	default:
		return "application/pdf"
	}
}

// ExtractPage extracts one split page and writes its text under
// pages_processed/ with a .txt extension. It returns the output key.
func (g *GenerativeExtractor) ExtractPage(ctx context.Context, pageKey string) (string, error) {
	out, err := core.ProcessedPageKey(pageKey)
	if err != nil {
		return "", core.Validation("ingestion.ExtractPage", err)
	}
	page, err := g.objects.Get(ctx, pageKey)
	if err != nil {
		return "", terminalIfMissing("ingestion.ExtractPage", pageKey, err)
	}
	text, err := g.extractor.ExtractPage(ctx, page, mimeTypeOf(pageKey))
	if err != nil {
		return "", core.Transient("ingestion.ExtractPage", fmt.Errorf("%s: %w", pageKey, err))
	}
	if err := g.objects.Put(ctx, out, []byte(text)); err != nil {
		return "", err
	}
	return out, nil
}

// ExtractPages extracts every page under pagePrefix concurrently and returns
// the matching pages_processed/ prefix. Pages already extracted are skipped,
// so running it again after a partial failure completes the document.
func (g *GenerativeExtractor) ExtractPages(ctx context.Context, pagePrefix string) (string, error) {
	ref, err := core.ParseArtifactKey(pagePrefix)
	if err != nil {
		return "", core.Validation("ingestion.ExtractPages", err)
	}
	pages, err := g.objects.List(ctx, ref.PagePrefix())
	if err != nil {
		return "", err
	}
	if len(pages) == 0 {
		return "", core.NotFound("ingestion.ExtractPages", fmt.Errorf("%w under %s", ErrNoMatchingFiles, ref.PagePrefix()))
	}

	pending := make([]string, 0, len(pages))
	for _, page := range pages {
		out, err := core.ProcessedPageKey(page)
		if err != nil {
			return "", core.Validation("ingestion.ExtractPages", err)
		}
		if _, err := g.objects.Size(ctx, out); err == nil {
			continue
		} else if !errors.Is(err, storage.ErrNotFound) {
			return "", err
		}
		pending = append(pending, page)
	}

	failed, ok := fanOut(ctx, g.pool, pending, func(ctx context.Context, key string) error {
		_, err := g.ExtractPage(ctx, key)
		return err
	})
	g.logger.Info("pages extracted", "group", ref.Group, "filename", ref.Filename,
		"pages", len(pages), "skipped", len(pages)-len(pending), "extracted", ok, "failed", len(failed))
	if len(failed) > 0 {
		return "", core.Partial("ingestion.ExtractPages", failed, ok)
	}
	return ref.ProcessedPagePrefix(), nil
}
