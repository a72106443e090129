package deletion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/storage"
	"github.com/poiesic/ragline/workflow"
)

// WorkflowDelete is the name of the deletion workflow.
const WorkflowDelete = "delete-document"

const (
	fieldGroup    = "group"
	fieldFilename = "filename"
)

// Stores are the repositories a deletion touches.
type Stores struct {
	Objects   storage.ObjectStore
	Documents storage.DocumentRepository
	Small     storage.ChunkRepository
	Large     storage.ChunkRepository
}

// Orchestrator authorizes deletions and runs them as workflows.
type Orchestrator struct {
	engine *workflow.Engine
	stores Stores
	logger *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// New creates an orchestrator and registers the delete-document workflow on engine.
func New(engine *workflow.Engine, stores Stores, opts ...Option) (*Orchestrator, error) {
	if engine == nil {
		return nil, workflow.ErrRepositoryRequired
	}
	if stores.Objects == nil || stores.Documents == nil || stores.Small == nil || stores.Large == nil {
		return nil, ErrStoreRequired
	}
	o := &Orchestrator{
		engine: engine,
		stores: stores,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	o.logger = o.logger.With("component", "deletion")
	if err := engine.Register(o.definition()); err != nil {
		return nil, err
	}
	return o, nil
}

// ParseGroups splits a comma separated membership claim into group names.
func ParseGroups(claim string) []string {
	var groups []string
	for _, g := range strings.Split(claim, ",") {
		if g = strings.TrimSpace(g); g != "" {
			groups = append(groups, g)
		}
	}
	return groups
}

// Delete authorizes the request and starts the deletion workflow. It returns
// the execution id; the deletion itself runs asynchronously.
func (o *Orchestrator) Delete(ctx context.Context, callerGroups []string, group, filename string) (string, error) {
	if strings.TrimSpace(filename) == "" {
		return "", core.Validation("deletion.Delete", ErrMissingFilename)
	}
	if group == "" || !slices.Contains(callerGroups, group) {
		o.logger.Warn("delete denied", "group", group, "filename", filename)
		return "", ErrUnauthorized
	}
	if err := core.ValidateName("filename", filename); err != nil {
		return "", core.Validation("deletion.Delete", err)
	}

	input := core.OK(core.RawDocKey(group, filename)).
		With(fieldGroup, group).
		With(fieldFilename, filename)
	id, err := o.engine.Start(ctx, WorkflowDelete, input)
	if err != nil {
		return "", err
	}
	o.logger.Info("deletion started", "group", group, "filename", filename, "execution", id)
	return id, nil
}

// List returns the DocumentRecords of every group the caller belongs to.
func (o *Orchestrator) List(ctx context.Context, callerGroups []string) ([]*core.DocumentRecord, error) {
	var docs []*core.DocumentRecord
	for _, group := range callerGroups {
		found, err := o.stores.Documents.ListDocuments(ctx, group)
		if err != nil {
			return nil, fmt.Errorf("listing documents of %s: %w", group, err)
		}
		docs = append(docs, found...)
	}
	return docs, nil
}

func (o *Orchestrator) definition() workflow.Definition {
	return workflow.Definition{Name: WorkflowDelete, Steps: []workflow.Step{
		{Name: "raw-object", Run: o.step(o.deleteRaw)},
		{Name: "artifacts", Run: o.step(o.deleteArtifacts)},
		{Name: "chunk-objects", Run: o.step(o.deleteChunkObjects)},
		{Name: "small-rows", Run: o.step(o.rowDeleter(o.stores.Small))},
		{Name: "large-rows", Run: o.step(o.rowDeleter(o.stores.Large))},
		{Name: "record", Run: o.step(o.deleteRecord)},
	}}
}

// step adapts a deletion action to a workflow step that passes its payload through.
func (o *Orchestrator) step(fn func(ctx context.Context, group, filename string) error) workflow.StepFunc {
	return workflow.Chain(func(ctx context.Context, in workflow.Result) (workflow.Result, error) {
		group, filename := in.Field(fieldGroup), in.Field(fieldFilename)
		if group == "" || filename == "" {
			return workflow.Result{}, core.Validation("deletion.step", errors.New("payload does not identify a document"))
		}
		if err := fn(ctx, group, filename); err != nil {
			return workflow.Result{}, err
		}
		return in, nil
	})
}

func (o *Orchestrator) deleteRaw(ctx context.Context, group, filename string) error {
	return o.stores.Objects.Delete(ctx, core.RawDocKey(group, filename))
}

// deleteArtifacts removes the intermediate objects of the current processing
// run. Without a DocumentRecord there is no run to clean up.
func (o *Orchestrator) deleteArtifacts(ctx context.Context, group, filename string) error {
	doc, err := o.stores.Documents.GetDocument(ctx, group, filename)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	ref := core.RefFor(doc)
	for _, key := range []string{
		ref.TextractJSONKey(),
		ref.RawTextKey(core.SourceTextract),
		ref.RawTextKey(core.SourceGenerative),
		ref.RawTextKey(core.SourcePlainText),
	} {
		if err := o.stores.Objects.Delete(ctx, key); err != nil {
			return err
		}
	}
	for _, prefix := range []string{ref.PagePrefix(), ref.ProcessedPagePrefix()} {
		if _, err := o.stores.Objects.DeletePrefix(ctx, prefix); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) deleteChunkObjects(ctx context.Context, group, filename string) error {
	n, err := o.stores.Objects.DeletePrefix(ctx, core.ChunkPrefix(group, filename))
	if err != nil {
		return err
	}
	o.logger.Debug("chunk objects deleted", "group", group, "filename", filename, "count", n)
	return nil
}

func (o *Orchestrator) rowDeleter(store storage.ChunkRepository) func(ctx context.Context, group, filename string) error {
	return func(ctx context.Context, group, filename string) error {
		n, err := store.DeleteByFilenamePrefix(ctx, group, core.ChunkRowPrefix(filename))
		if err != nil {
			return err
		}
		o.logger.Debug("chunk rows deleted", "store", store.Name(), "group", group, "filename", filename, "count", n)
		return nil
	}
}

func (o *Orchestrator) deleteRecord(ctx context.Context, group, filename string) error {
	return o.stores.Documents.DeleteDocument(ctx, group, filename)
}
