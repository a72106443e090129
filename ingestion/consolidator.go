package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/storage"
)

const pageSeparator = "\n\n"

// Consolidator joins extracted pages into one text artifact.
type Consolidator struct {
	objects storage.ObjectStore
	logger  *slog.Logger
}

// NewConsolidator creates a consolidator.
func NewConsolidator(objects storage.ObjectStore, logger *slog.Logger) *Consolidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consolidator{objects: objects, logger: logger.With("stage", "consolidate")}
}

// processedPrefix maps a pages/ or pages_processed/ prefix to the
// pages_processed/ prefix, ending in "_".
func processedPrefix(prefix string) (string, error) {
	if rest, ok := strings.CutPrefix(prefix, core.PrefixPages+"/"); ok {
		prefix = core.PrefixPagesProcessed + "/" + rest
	}
	if !strings.HasPrefix(prefix, core.PrefixPagesProcessed+"/") {
		return "", core.Validation("ingestion.Consolidate", fmt.Errorf("%w: not a page prefix %q", core.ErrInvalidKey, prefix))
	}
	if !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}
	return prefix, nil
}

// Consolidate concatenates the .txt pages under prefix in lexicographic
// order, separated by a blank line, into raw_text/<group>/<pid>_<filename>_raw_llm.txt.
// It returns the output key. A prefix with no pages is an ErrNoMatchingFiles.
func (c *Consolidator) Consolidate(ctx context.Context, prefix string) (string, error) {
	prefix, err := processedPrefix(prefix)
	if err != nil {
		return "", err
	}
	ref, err := core.ParseArtifactKey(prefix)
	if err != nil {
		return "", core.Validation("ingestion.Consolidate", err)
	}

	keys, err := c.objects.List(ctx, prefix)
	if err != nil {
		return "", err
	}
	keys = slices.DeleteFunc(keys, func(k string) bool { return !strings.HasSuffix(k, ".txt") })
	if len(keys) == 0 {
		return "", core.NotFound("ingestion.Consolidate", fmt.Errorf("%w under %s", ErrNoMatchingFiles, prefix))
	}
	slices.Sort(keys)

	pages := make([]string, len(keys))
	for i, key := range keys {
		data, err := c.objects.Get(ctx, key)
		if err != nil {
			return "", err
		}
		pages[i] = string(data)
	}

	out := ref.RawTextKey(core.SourceGenerative)
	if err := c.objects.Put(ctx, out, []byte(strings.Join(pages, pageSeparator))); err != nil {
		return "", err
	}
	c.logger.Info("pages consolidated", "group", ref.Group, "filename", ref.Filename, "pages", len(keys), "output", out)
	return out, nil
}
