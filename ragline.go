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


// Package ragline wires the stores, notification bus, workflow engine,
// inference provider and pipeline stages into one System.
package ragline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/ragline/ai"
	"github.com/poiesic/ragline/ai/openai"
	"github.com/poiesic/ragline/chat"
	"github.com/poiesic/ragline/config"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/deletion"
	"github.com/poiesic/ragline/extraction/local"
	"github.com/poiesic/ragline/ingestion"
	notifyredis "github.com/poiesic/ragline/notify/redis"
	"github.com/poiesic/ragline/reembed"
	"github.com/poiesic/ragline/search"
	"github.com/poiesic/ragline/storage"
	"github.com/poiesic/ragline/storage/badger"
	"github.com/poiesic/ragline/workflow"
)

const settlePoll = 50 * time.Millisecond

// System is a fully wired ragline instance.
type System struct {
	cfg        *config.AppConfig
	stores     *badger.Stores
	bus        *notifyredis.Bus
	engine     *workflow.Engine
	extraction *local.Service
	provider   ai.AIProvider
	pipeline   *ingestion.Pipeline
	retriever  *search.BruteForce
	deletion   *deletion.Orchestrator
	chat       *chat.Service
	logger     *slog.Logger
}

// Option configures a System.
type Option func(*options)

type options struct {
	provider ai.AIProvider
	logger   *slog.Logger
}

// WithProvider replaces the OpenAI-compatible provider built from the configuration.
func WithProvider(p ai.AIProvider) Option {
	return func(o *options) {
		o.provider = p
	}
}

// WithLogger sets the logger handed to every component.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Open builds a System from cfg. Close releases everything Open acquired,
// also when Open fails halfway.
func Open(ctx context.Context, cfg *config.AppConfig, opts ...Option) (*System, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	s := &System{cfg: cfg, logger: o.logger.With("component", "system")}
	opened := false
	defer func() {
		if !opened {
			s.Close()
		}
	}()

	backend, err := badger.OpenBackend(cfg.Storage.Path, cfg.Storage.Path == "")
	if err != nil {
		return nil, err
	}
	s.stores = badger.NewStores(backend, badger.Tables{
		Bucket:        cfg.Storage.Bucket,
		Documents:     cfg.Storage.Documents,
		Small:         cfg.Storage.Small,
		Large:         cfg.Storage.Large,
		Conversations: cfg.Storage.Conversations,
	})

	busOpts := []notifyredis.Option{notifyredis.WithPrefix(cfg.Redis.Prefix), notifyredis.WithLogger(o.logger)}
	if cfg.Redis.Addr == "" {
		s.bus, err = notifyredis.RunEmbedded(busOpts...)
	} else {
		s.bus, err = notifyredis.Dial(ctx, notifyredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password(),
			DB:       cfg.Redis.DB,
		}, busOpts...)
	}
	if err != nil {
		return nil, err
	}

	engineOpts := []workflow.Option{
		workflow.WithRetryPolicy(workflow.RetryPolicy{
			MaxAttempts: cfg.Workflow.MaxAttempts,
			BaseDelay:   cfg.Workflow.BaseDelay,
			MaxDelay:    cfg.Workflow.MaxDelay,
		}),
		workflow.WithStepTimeout(cfg.Workflow.StepTimeout),
		workflow.WithLogger(o.logger),
	}
	if cfg.Workflow.PoolSize > 0 {
		engineOpts = append(engineOpts, workflow.WithPoolSize(cfg.Workflow.PoolSize))
	}
	if s.engine, err = workflow.New(s.stores.Executions, engineOpts...); err != nil {
		return nil, err
	}

	extractionOpts := []local.Option{local.WithLogger(o.logger)}
	if cfg.Extraction.BlocksPerPage > 0 {
		extractionOpts = append(extractionOpts, local.WithBlocksPerPage(cfg.Extraction.BlocksPerPage))
	}
	if s.extraction, err = local.New(s.stores.Objects, s.bus, extractionOpts...); err != nil {
		return nil, err
	}

	s.provider = o.provider
	if s.provider == nil {
		if s.provider, err = openai.NewProvider(aiConfig(cfg.AI)); err != nil {
			return nil, err
		}
	}

	sizes, err := chunkSizes(cfg.Chunking.Sizes)
	if err != nil {
		return nil, err
	}
	pipelineOpts := []ingestion.Option{
		ingestion.WithLogger(o.logger),
		ingestion.WithChunking(sizes, ingestion.Strategy(cfg.Chunking.Strategy)),
		ingestion.WithCompletionChannel(cfg.Redis.CompletionChannel),
	}
	if cfg.Workflow.PoolSize > 0 {
		pipelineOpts = append(pipelineOpts, ingestion.WithPoolSize(cfg.Workflow.PoolSize))
	}
	if cfg.Extraction.PollFallback {
		pipelineOpts = append(pipelineOpts, ingestion.WithPollFallback(cfg.Extraction.PollInterval))
	}
	s.pipeline, err = ingestion.NewPipeline(s.engine, ingestion.Repositories{
		Objects:   s.stores.Objects,
		Documents: s.stores.Documents,
		Small:     s.stores.Small,
		Large:     s.stores.Large,
		Jobs:      s.stores.Jobs,
		Dedup:     s.stores.Dedup,
	}, s.extraction, s.provider, pipelineOpts...)
	if err != nil {
		return nil, err
	}

	s.retriever, err = search.NewBruteForce(s.stores.Small, s.stores.Large, s.provider.Embedder(),
		search.WithPageSize(cfg.Retrieval.PageSize),
		search.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}

	s.deletion, err = deletion.New(s.engine, deletion.Stores{
		Objects:   s.stores.Objects,
		Documents: s.stores.Documents,
		Small:     s.stores.Small,
		Large:     s.stores.Large,
	}, deletion.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}

	s.chat, err = chat.New(s.retriever, s.provider.ChatModel(), s.stores.Conversations, s.stores.Prompts,
		chat.WithRetention(cfg.Conversation.Retention),
		chat.WithTolerance(cfg.Retrieval.Tolerance),
		chat.WithMaxHits(cfg.Retrieval.MaxHits),
		chat.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}

	opened = true
	s.logger.Info("system opened", "path", cfg.Storage.Path, "redis", cfg.Redis.Addr, "bucket", cfg.Storage.Bucket)
	return s, nil
}

func aiConfig(c config.AIConfig) *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(c.EmbeddingHost),
		ai.WithGenerativeHost(c.GenerativeHost),
		ai.WithEmbeddingModel(c.EmbeddingModel),
		ai.WithExtractionModel(c.ExtractionModel),
		ai.WithChatModel(c.ChatModel),
		ai.WithAPIKey(c.APIKey()),
		ai.WithRateLimit(c.RequestsPerSecond, c.Burst),
		ai.WithMaxTokens(c.MaxTokens),
	)
}

func chunkSizes(in []config.ChunkSize) ([]ingestion.ChunkSize, error) {
	sizes := make([]ingestion.ChunkSize, len(in))
	for i, c := range in {
		g, err := core.ParseGranularity(c.Granularity)
		if err != nil {
			return nil, err
		}
		sizes[i] = ingestion.ChunkSize{Size: c.Size, Overlap: c.Overlap, Granularity: g}
	}
	return sizes, nil
}

// Serve subscribes the pipeline to the notification bus and, when inbox is
// not empty, watches it for new documents. It blocks until ctx ends.
func (s *System) Serve(ctx context.Context, inbox string) error {
	if err := s.pipeline.Subscribe(ctx, s.bus); err != nil {
		return fmt.Errorf("subscribing pipeline: %w", err)
	}
	s.logger.Info("serving", "inbox", inbox)
	if inbox == "" {
		<-ctx.Done()
		return nil
	}
	watcher := ingestion.NewWatcher(inbox, s.stores.Objects, s.bus, s.cfg.Watch.SettleDelay, s.logger)
	if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Ingest uploads a document and routes it. The result carries the
// processing id of this intake.
func (s *System) Ingest(ctx context.Context, group, filename string, data []byte) (workflow.Result, error) {
	return s.pipeline.Ingest(ctx, group, filename, data)
}

// Settle blocks until the document behind an Ingest result is fully
// processed: its routing execution finished, its extraction job (if any)
// reached a terminal state, and every execution that followed has drained.
func (s *System) Settle(ctx context.Context, result workflow.Result) error {
	if id := ingestion.ExecutionOf(result); id != "" {
		exec, err := s.engine.Wait(ctx, id)
		if err != nil {
			return err
		}
		if exec.Status != core.StatusSucceeded {
			return fmt.Errorf("execution %s %s: %s", id, exec.Status, exec.Error)
		}
	}

	if pid := ingestion.ProcessingIDOf(result); pid != "" {
		ticker := time.NewTicker(settlePoll)
		defer ticker.Stop()
		for {
			job, err := s.stores.Jobs.GetJobByToken(ctx, pid)
			if errors.Is(err, storage.ErrNotFound) || (err == nil && job.Terminal()) {
				break
			}
			if err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	}
	s.engine.Drain()
	return nil
}

// Retrieve runs a similarity query.
func (s *System) Retrieve(ctx context.Context, q search.Query) ([]search.Match, error) {
	return s.retriever.Retrieve(ctx, q)
}

// Ask answers a chat question.
func (s *System) Ask(ctx context.Context, req chat.Request) (*chat.Answer, error) {
	return s.chat.Ask(ctx, req)
}

// NewReembedder returns a reembedder over the chunk stores using the configured embedder.
func (s *System) NewReembedder(progress io.Writer) *reembed.Reembedder {
	rc := s.cfg.Reembed
	return reembed.NewReembedder(s.stores.Small, s.stores.Large, s.provider.Embedder(), &reembed.Config{
		BatchSize:      rc.BatchSize,
		ReportInterval: rc.ReportInterval,
		MaxRetries:     rc.MaxRetries,
		RetryDelay:     rc.RetryDelay,
	}, progress)
}

// Config returns the configuration the system was opened with.
func (s *System) Config() *config.AppConfig { return s.cfg }

// Stores returns the badger repositories.
func (s *System) Stores() *badger.Stores { return s.stores }

// Bus returns the notification bus.
func (s *System) Bus() *notifyredis.Bus { return s.bus }

// Engine returns the workflow engine.
func (s *System) Engine() *workflow.Engine { return s.engine }

// Pipeline returns the ingestion pipeline.
func (s *System) Pipeline() *ingestion.Pipeline { return s.pipeline }

// Retriever returns the similarity retriever.
func (s *System) Retriever() search.Retriever { return s.retriever }

// Deletion returns the deletion orchestrator.
func (s *System) Deletion() *deletion.Orchestrator { return s.deletion }

// Chat returns the chat service.
func (s *System) Chat() *chat.Service { return s.chat }

// Close stops the engine after its running executions finish, then
// releases the remaining components. It returns the first error.
func (s *System) Close() error {
	if s.engine != nil {
		s.engine.Close()
	}
	if s.pipeline != nil {
		s.pipeline.Release()
	}
	if s.extraction != nil {
		s.extraction.Close()
	}
	var errs []error
	if s.provider != nil {
		errs = append(errs, s.provider.Close())
	}
	if s.bus != nil {
		errs = append(errs, s.bus.Close())
	}
	if s.stores != nil {
		errs = append(errs, s.stores.Close())
	}
	for _, err := range errs {
		if err != nil {
			s.logger.Error("error closing system", "err", err)
			return err
		}
	}
	return nil
}
