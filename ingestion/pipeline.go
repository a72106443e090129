package ingestion

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/ragline/ai"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/extraction"
	"github.com/poiesic/ragline/notify"
	"github.com/poiesic/ragline/storage"
	"github.com/poiesic/ragline/workflow"
)

// Workflow names registered by the pipeline.
const (
	// WorkflowIndex chunks and indexes a raw text artifact.
	WorkflowIndex = "index"
	// WorkflowTextract normalizes an extraction result, then chunks and indexes it.
	WorkflowTextract = "textract"
	// WorkflowGenerative splits a PDF, extracts every page with a model,
	// consolidates the pages, then chunks and indexes the text.
	WorkflowGenerative = "generative"
	// WorkflowExtractionCompleted handles one extraction completion notification.
	WorkflowExtractionCompleted = "extraction-completed"
	// WorkflowExtractionPoll waits for an extraction job without notifications.
	WorkflowExtractionPoll = "extraction-poll"
	// WorkflowIntake registers and routes one documents.created notification.
	WorkflowIntake = "intake"
)

// Repositories are the stores the pipeline reads and writes.
type Repositories struct {
	Objects   storage.ObjectStore
	Documents storage.DocumentRepository
	Small     storage.ChunkRepository
	Large     storage.ChunkRepository
	Jobs      storage.JobRepository
	Dedup     storage.DedupRepository
}

// Pipeline wires the ingestion stages into workflows and subscribes them to
// the notification channels.
type Pipeline struct {
	engine       *workflow.Engine
	objects      storage.ObjectStore
	intake       *Intake
	extraction   *ExtractionOrchestrator
	pages        *PageUploader
	generative   *GenerativeExtractor
	consolidator *Consolidator
	normalizer   *Normalizer
	chunker      *Chunker
	indexer      *Indexer
	logger       *slog.Logger
	subs         []io.Closer

	// Settings applied by options before the stages are built.
	poolSize     int
	sizes        []ChunkSize
	strategy     Strategy
	splitter     PageSplitter
	pollInterval time.Duration
	channel      string
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets how many pages are extracted and how many chunks are
// embedded concurrently per document.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		p.poolSize = size
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithChunking sets the chunk sizes and strategy.
func WithChunking(sizes []ChunkSize, strategy Strategy) Option {
	return func(p *Pipeline) error {
		p.sizes = sizes
		p.strategy = strategy
		return nil
	}
}

// WithSplitter replaces the PDF page splitter.
func WithSplitter(s PageSplitter) Option {
	return func(p *Pipeline) error {
		if s == nil {
			return errors.New("splitter required")
		}
		p.splitter = s
		return nil
	}
}

// WithPollFallback makes intake poll extraction jobs every interval instead
// of relying on completion notifications.
func WithPollFallback(interval time.Duration) Option {
	return func(p *Pipeline) error {
		if interval <= 0 {
			interval = 5 * time.Second
		}
		p.pollInterval = interval
		return nil
	}
}

// WithCompletionChannel sets the channel extraction jobs report to.
// Default is notify.ChannelJobCompletions.
func WithCompletionChannel(channel string) Option {
	return func(p *Pipeline) error {
		p.channel = channel
		return nil
	}
}

// NewPipeline builds the ingestion stages and registers their workflows on engine.
func NewPipeline(
	engine *workflow.Engine,
	repos Repositories,
	service extraction.Service,
	provider ai.AIProvider,
	opts ...Option,
) (*Pipeline, error) {
	switch {
	case engine == nil:
		return nil, workflow.ErrRepositoryRequired
	case repos.Objects == nil:
		return nil, ErrObjectStoreRequired
	case repos.Documents == nil:
		return nil, ErrDocumentRepositoryRequired
	case repos.Small == nil || repos.Large == nil:
		return nil, ErrChunkRepositoryRequired
	case provider == nil:
		return nil, ErrAIProviderRequired
	}

	p := &Pipeline{
		engine:   engine,
		objects:  repos.Objects,
		logger:   slog.Default(),
		poolSize: max(runtime.NumCPU()/2, 1),
		channel:  notify.ChannelJobCompletions,
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "ingestion")
	if p.splitter == nil {
		p.splitter = NewPDFSplitter(p.logger)
	}

	chunker, err := NewChunker(repos.Objects, p.sizes, p.strategy, p.logger)
	if err != nil {
		return nil, err
	}
	generative, err := NewGenerativeExtractor(repos.Objects, provider.PageExtractor(), p.poolSize, p.logger)
	if err != nil {
		return nil, err
	}
	indexer, err := NewIndexer(repos.Objects, provider.Embedder(), repos.Small, repos.Large, p.poolSize, p.logger)
	if err != nil {
		generative.Release()
		return nil, err
	}

	p.chunker = chunker
	p.generative = generative
	p.indexer = indexer
	p.pages = NewPageUploader(repos.Objects, p.splitter, p.logger)
	p.consolidator = NewConsolidator(repos.Objects, p.logger)
	p.normalizer = NewNormalizer(repos.Objects, p.logger)
	p.extraction = NewExtractionOrchestrator(service, repos.Jobs, repos.Documents, repos.Objects, repos.Dedup, engine, p.channel, p.logger)
	p.intake = NewIntake(repos.Objects, repos.Documents, repos.Dedup, p.extraction, engine, p.logger)
	p.intake.pollJobs = p.pollInterval > 0

	for _, def := range p.definitions() {
		if err := engine.Register(def); err != nil {
			p.Release()
			return nil, err
		}
	}
	return p, nil
}

// Intake returns the document intake stage.
func (p *Pipeline) Intake() *Intake { return p.intake }

// Extraction returns the extraction orchestrator.
func (p *Pipeline) Extraction() *ExtractionOrchestrator { return p.extraction }

// Chunker returns the chunker.
func (p *Pipeline) Chunker() *Chunker { return p.chunker }

func (p *Pipeline) definitions() []workflow.Definition {
	chunk := workflow.Step{Name: "chunk", Run: workflow.Chain(p.chunkStep)}
	index := workflow.Step{Name: "index", Run: workflow.Chain(p.indexStep)}
	return []workflow.Definition{
		{Name: WorkflowIndex, Steps: []workflow.Step{chunk, index}},
		{Name: WorkflowTextract, Steps: []workflow.Step{
			{Name: "normalize", Run: workflow.Chain(p.normalizeStep)},
			chunk,
			index,
		}},
		{Name: WorkflowGenerative, Steps: []workflow.Step{
			{Name: "split", Run: workflow.Chain(p.splitStep)},
			{Name: "extract-pages", Run: workflow.Chain(p.extractPagesStep)},
			{Name: "consolidate", Run: workflow.Chain(p.consolidateStep)},
			chunk,
			index,
		}},
		{Name: WorkflowExtractionCompleted, Steps: []workflow.Step{p.extraction.completionStep()}},
		{Name: WorkflowExtractionPoll, Steps: []workflow.Step{p.extraction.pollStep(p.pollInterval)}},
		{Name: WorkflowIntake, Steps: []workflow.Step{{Name: "route", Run: workflow.Chain(p.intakeStep)}}},
	}
}

// IntakeInput builds the intake workflow payload for a notification.
func IntakeInput(evt notify.DocumentCreated) workflow.Result {
	return core.OK(evt.Key).
		With(fieldBucket, evt.Bucket).
		With(fieldKey, evt.Key).
		With(fieldEvent, evt.EventID)
}

func (p *Pipeline) intakeStep(ctx context.Context, in workflow.Result) (workflow.Result, error) {
	evt := notify.DocumentCreated{
		EventID: in.Field(fieldEvent),
		Bucket:  in.Field(fieldBucket),
		Key:     in.Field(fieldKey),
	}
	if evt.Key == "" {
		return workflow.Result{}, core.Validation("ingestion.intake", errors.New("payload has no object key"))
	}
	return p.intake.Handle(ctx, evt)
}

func (p *Pipeline) normalizeStep(ctx context.Context, in workflow.Result) (workflow.Result, error) {
	ref, err := refFrom(in)
	if err != nil {
		return workflow.Result{}, err
	}
	out, err := p.normalizer.Normalize(ctx, in.Output)
	if err != nil {
		return workflow.Result{}, err
	}
	return withRef(core.OK(out), ref).With(fieldSource, string(core.SourceTextract)), nil
}

func (p *Pipeline) splitStep(ctx context.Context, in workflow.Result) (workflow.Result, error) {
	ref, err := refFrom(in)
	if err != nil {
		return workflow.Result{}, err
	}
	prefix, err := p.pages.Split(ctx, ref)
	if err != nil {
		return workflow.Result{}, err
	}
	return withRef(core.OK(prefix), ref), nil
}

func (p *Pipeline) extractPagesStep(ctx context.Context, in workflow.Result) (workflow.Result, error) {
	ref, err := refFrom(in)
	if err != nil {
		return workflow.Result{}, err
	}
	prefix, err := p.generative.ExtractPages(ctx, in.Output)
	if err != nil {
		return workflow.Result{}, err
	}
	return withRef(core.OK(prefix), ref), nil
}

func (p *Pipeline) consolidateStep(ctx context.Context, in workflow.Result) (workflow.Result, error) {
	ref, err := refFrom(in)
	if err != nil {
		return workflow.Result{}, err
	}
	out, err := p.consolidator.Consolidate(ctx, in.Output)
	if err != nil {
		return workflow.Result{}, err
	}
	return withRef(core.OK(out), ref).With(fieldSource, string(core.SourceGenerative)), nil
}

func sourceOf(in workflow.Result) (core.ExtractionSource, error) {
	source := core.ExtractionSource(in.Field(fieldSource))
	if !source.Valid() {
		return "", core.Validation("ingestion.source", errors.New("payload has no valid extraction source"))
	}
	return source, nil
}

func (p *Pipeline) chunkStep(ctx context.Context, in workflow.Result) (workflow.Result, error) {
	ref, err := refFrom(in)
	if err != nil {
		return workflow.Result{}, err
	}
	source, err := sourceOf(in)
	if err != nil {
		return workflow.Result{}, err
	}
	counts, err := p.chunker.ChunkArtifact(ctx, in.Output, ref, source)
	if err != nil {
		return workflow.Result{}, err
	}
	return withRef(core.OK(sourcePrefix(ref, source)), ref).
		With(fieldSource, string(source)).
		With(fieldCounts, formatCounts(counts)), nil
}

func (p *Pipeline) indexStep(ctx context.Context, in workflow.Result) (workflow.Result, error) {
	ref, err := refFrom(in)
	if err != nil {
		return workflow.Result{}, err
	}
	source, err := sourceOf(in)
	if err != nil {
		return workflow.Result{}, err
	}
	counts, err := parseCounts(in.Field(fieldCounts))
	if err != nil {
		return workflow.Result{}, err
	}
	if _, err := p.indexer.IndexAll(ctx, ref, source, counts); err != nil {
		return workflow.Result{}, err
	}
	return in, nil
}

// Subscribe routes documents.created notifications to the intake workflow
// and extraction completions to the extraction-completed workflow. The bus
// never redelivers, so both run under the engine's retry policy.
func (p *Pipeline) Subscribe(ctx context.Context, sub notify.Subscriber) error {
	docs, err := sub.Subscribe(ctx, notify.ChannelDocumentsCreated, notify.On(func(ctx context.Context, evt notify.DocumentCreated) error {
		id, err := p.engine.Start(ctx, WorkflowIntake, IntakeInput(evt))
		if err != nil {
			return err
		}
		p.logger.Debug("document dispatched", "key", evt.Key, "execution", id)
		return nil
	}))
	if err != nil {
		return err
	}
	p.subs = append(p.subs, docs)

	jobs, err := sub.Subscribe(ctx, p.channel, notify.On(func(ctx context.Context, msg notify.JobCompletion) error {
		id, err := p.engine.Start(ctx, WorkflowExtractionCompleted, CompletionInput(msg))
		if err != nil {
			return err
		}
		p.logger.Debug("completion dispatched", "job", msg.JobID, "execution", id)
		return nil
	}))
	if err != nil {
		return err
	}
	p.subs = append(p.subs, jobs)
	return nil
}

// Ingest uploads a document to raw_docs/<group>/<filename> and routes it
// without going through the notification channel. The routing result
// carries the processing id in its processing_id field.
func (p *Pipeline) Ingest(ctx context.Context, group, filename string, data []byte) (workflow.Result, error) {
	if err := core.ValidateName("group", group); err != nil {
		return workflow.Result{}, core.Validation("ingestion.Ingest", err)
	}
	if err := core.ValidateName("filename", filename); err != nil {
		return workflow.Result{}, core.Validation("ingestion.Ingest", err)
	}
	key := core.RawDocKey(group, filename)
	if err := p.objects.Put(ctx, key, data); err != nil {
		return workflow.Result{}, err
	}
	return p.intake.Handle(ctx, notify.DocumentCreated{EventID: uuid.NewString(), Bucket: p.objects.Bucket(), Key: key})
}

// Release closes subscriptions and stops the worker pools.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	for _, s := range p.subs {
		if err := s.Close(); err != nil {
			p.logger.Warn("closing subscription", "err", err)
		}
	}
	p.subs = nil
	if p.generative != nil {
		p.generative.Release()
	}
	if p.indexer != nil {
		p.indexer.Release()
	}
}
