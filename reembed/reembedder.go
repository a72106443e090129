// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/ragline/ai"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of rows embedded per call
	BatchSize int `yaml:"batch_size"`

	// ReportInterval is how often to report progress (number of rows)
	ReportInterval int `yaml:"report_interval"`

	// MaxRetries is the maximum number of attempts per embedding call
	MaxRetries int `yaml:"max_retries"`

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Reembedder rewrites every row of a granularity store with fresh vectors.
type Reembedder struct {
	stores   map[core.Granularity]storage.ChunkRepository
	embedder ai.Embedder
	config   *Config
	progress io.Writer
	logger   *slog.Logger
}

// NewReembedder creates a reembedder over the small and large stores.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(small, large storage.ChunkRepository, embedder ai.Embedder, config *Config, progress io.Writer) *Reembedder {
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}
	return &Reembedder{
		stores: map[core.Granularity]storage.ChunkRepository{
			core.GranularitySmall: small,
			core.GranularityLarge: large,
		},
		embedder: embedder,
		config:   config,
		progress: progress,
		logger:   slog.Default().With("component", "reembed"),
	}
}

// Run re-embeds every row of the store for granularity g and reports how
// many rows were rewritten.
func (r *Reembedder) Run(ctx context.Context, g core.Granularity) (int, error) {
	repo, ok := r.stores[g]
	if !ok || repo == nil {
		return 0, fmt.Errorf("%w: %s", ErrUnknownGranularity, g)
	}

	total, err := repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting rows of %s: %w", repo.Name(), err)
	}
	if total == 0 {
		fmt.Fprintf(r.progress, "No rows found in %s (0 rows)\n", repo.Name())
		return 0, nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d rows in %s (batch size: %d)\n",
		total, repo.Name(), r.config.BatchSize)
	r.logger.Info("reembedding started", "store", repo.Name(), "rows", total)

	processor := NewBatchProcessor(repo, r.embedder, r.config.MaxRetries, r.config.RetryDelay)
	tracker := NewProgressTracker(r.progress, repo.Name(), total, r.config.ReportInterval)
	tracker.Start()

	err = NewRowIterator(repo, r.config.BatchSize).ForEach(ctx, func(rows []*core.ChunkRecord) error {
		if err := processor.Process(ctx, rows); err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}
		tracker.Add(len(rows))
		return nil
	})
	done := tracker.Done()
	if err != nil {
		r.logger.Error("reembedding stopped", "store", repo.Name(), "rows", done, "err", err)
		return done, err
	}
	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d rows in %v\n", done, elapsed.Round(time.Millisecond))
	r.logger.Info("reembedding complete", "store", repo.Name(), "rows", done, "elapsed", elapsed)
	return done, nil
}
