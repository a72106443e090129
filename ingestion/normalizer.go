package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/extraction"
	"github.com/poiesic/ragline/storage"
)

// Normalizer turns a stored extraction result into plain text.
type Normalizer struct {
	objects storage.ObjectStore
	logger  *slog.Logger
}

// NewNormalizer creates a normalizer.
func NewNormalizer(objects storage.ObjectStore, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{objects: objects, logger: logger.With("stage", "normalize")}
}

// Normalize reads raw_json/<group>/<pid>_<filename>_textract.json, keeps its
// LINE blocks in order, one per line, and writes
// raw_text/<group>/<pid>_<filename>_raw.txt. It returns the output key.
func (n *Normalizer) Normalize(ctx context.Context, jsonKey string) (string, error) {
	ref, err := core.ParseArtifactKey(jsonKey)
	if err != nil {
		return "", core.Validation("ingestion.Normalize", err)
	}
	data, err := n.objects.Get(ctx, jsonKey)
	if err != nil {
		return "", terminalIfMissing("ingestion.Normalize", jsonKey, err)
	}
	var result extraction.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return "", core.Validation("ingestion.Normalize", fmt.Errorf("decoding %s: %w", jsonKey, err))
	}

	out := ref.RawTextKey(core.SourceTextract)
	if err := n.objects.Put(ctx, out, []byte(result.Text())); err != nil {
		return "", err
	}
	n.logger.Info("extraction normalized", "group", ref.Group, "filename", ref.Filename, "output", out)
	return out, nil
}
