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


package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/notify"
	"github.com/poiesic/ragline/storage"
	"github.com/poiesic/ragline/workflow"
)

const intakeScope = "intake"

// JobSubmitter starts asynchronous extraction jobs.
type JobSubmitter interface {
	SubmitJob(ctx context.Context, bucket, key, token string) (string, error)
}

// Intake registers uploaded documents and routes them to an extraction path.
type Intake struct {
	objects  storage.ObjectStore
	docs     storage.DocumentRepository
	dedup    storage.DedupRepository
	jobs     JobSubmitter
	starter  Starter
	dedupTTL time.Duration
	pollJobs bool
	logger   *slog.Logger
	newID    func() string
}

// NewIntake creates an Intake.
func NewIntake(objects storage.ObjectStore, docs storage.DocumentRepository, dedup storage.DedupRepository, jobs JobSubmitter, starter Starter, logger *slog.Logger) *Intake {
	if logger == nil {
		logger = slog.Default()
	}
	return &Intake{
		objects:  objects,
		docs:     docs,
		dedup:    dedup,
		jobs:     jobs,
		starter:  starter,
		dedupTTL: 24 * time.Hour,
		logger:   logger.With("stage", "intake"),
		newID:    uuid.NewString,
	}
}

// fingerprint identifies one delivery of a notification.
func fingerprint(evt notify.DocumentCreated) string {
	return core.Fingerprint(evt.Bucket, evt.Key, evt.EventID)
}

// RegisterDocument writes the DocumentRecord for an uploaded object and
// returns its processing id. A redelivered notification returns the id
// registered the first time without writing again; a new notification for
// an existing (group, filename) replaces the record with a fresh id.
func (in *Intake) RegisterDocument(ctx context.Context, evt notify.DocumentCreated) (string, error) {
	doc, _, err := in.register(ctx, evt)
	if err != nil {
		return "", err
	}
	return doc.ProcessingID, nil
}

func (in *Intake) register(ctx context.Context, evt notify.DocumentCreated) (*core.DocumentRecord, bool, error) {
	group, filename, err := core.ParseDocumentKey(evt.Key)
	if err != nil {
		return nil, false, core.Validation("intake.register", err)
	}

	fp := fingerprint(evt)
	pid, seen, err := in.dedup.Remember(ctx, intakeScope, fp, in.newID(), in.dedupTTL)
	if err != nil {
		return nil, false, err
	}
	doc := &core.DocumentRecord{Group: group, Filename: filename, ProcessingID: pid}
	if seen {
		in.logger.Info("duplicate notification", "key", evt.Key, "processing_id", pid)
		return doc, true, nil
	}

	size, err := in.objects.Size(ctx, evt.Key)
	if err != nil {
		in.forget(ctx, fp)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, false, core.NotFound("intake.register", fmt.Errorf("object %s: %w", evt.Key, err))
		}
		return nil, false, err
	}
	doc.SizeKB = float64(size) / 1024

	if err := in.docs.PutDocument(ctx, doc); err != nil {
		in.forget(ctx, fp)
		return nil, false, fmt.Errorf("%w: %s/%s: %w", ErrMetadataWrite, group, filename, err)
	}
	in.logger.Info("document registered", "group", group, "filename", filename, "processing_id", pid, "size_kb", doc.SizeKB)
	return doc, false, nil
}

func (in *Intake) forget(ctx context.Context, fp string) {
	if err := in.dedup.Forget(context.WithoutCancel(ctx), intakeScope, fp); err != nil {
		in.logger.Warn("dropping dedup mark", "err", err)
	}
}

// Route sends a registered document down its extraction path. Plain text is
// copied straight to raw_text/ and indexed. Other extractable types get an
// extraction job; PDFs also take the generative path.
func (in *Intake) Route(ctx context.Context, doc *core.DocumentRecord, evt notify.DocumentCreated) (workflow.Result, error) {
	ref := core.RefFor(doc)
	logger := in.logger.With("group", doc.Group, "filename", doc.Filename, "processing_id", doc.ProcessingID)

	switch {
	case core.IsTextFile(doc.Filename):
		rawText := ref.RawTextKey(core.SourcePlainText)
		if err := in.objects.Copy(ctx, evt.Key, rawText); err != nil {
			return workflow.Result{}, fmt.Errorf("copying %s: %w", evt.Key, err)
		}
		input := withRef(core.OK(rawText), ref).With(fieldSource, string(core.SourcePlainText))
		execID, err := in.starter.Start(ctx, WorkflowIndex, input)
		if err != nil {
			return workflow.Result{}, err
		}
		logger.Info("plain text routed to indexing", "raw_text", rawText, "execution", execID)
		return core.OK(rawText).With(fieldExecution, execID), nil

	case core.IsExtractable(doc.Filename):
		jobID, err := in.jobs.SubmitJob(ctx, evt.Bucket, evt.Key, doc.ProcessingID)
		if err != nil {
			return workflow.Result{}, err
		}
		result := core.OK(jobID).With(fieldJobID, jobID)
		if in.pollJobs {
			execID, err := in.starter.Start(ctx, WorkflowExtractionPoll, core.OK(jobID).With(fieldJobID, jobID))
			if err != nil {
				return workflow.Result{}, err
			}
			logger.Debug("polling extraction job", "job", jobID, "execution", execID)
		}
		if core.IsPageable(doc.Filename) {
			execID, err := in.starter.Start(ctx, WorkflowGenerative, withRef(core.OK(evt.Key), ref))
			if err != nil {
				return workflow.Result{}, err
			}
			result = result.With(fieldExecution, execID)
		}
		logger.Info("extraction submitted", "job", jobID, "generative", core.IsPageable(doc.Filename))
		return result, nil

	default:
		return workflow.Result{}, core.Validation("intake.Route", fmt.Errorf("%w: %s", ErrUnsupportedType, doc.Filename))
	}
}

// Handle registers and routes one documents.created notification.
// Redeliveries are acknowledged without routing again.
func (in *Intake) Handle(ctx context.Context, evt notify.DocumentCreated) (workflow.Result, error) {
	if evt.Bucket != in.objects.Bucket() {
		return workflow.Result{}, core.Validation("intake.Handle", fmt.Errorf("%w: %s", ErrForeignBucket, evt.Bucket))
	}
	doc, duplicate, err := in.register(ctx, evt)
	if err != nil {
		return workflow.Result{}, err
	}
	if duplicate {
		return core.OK(doc.ProcessingID).With(fieldDuplicate, "true"), nil
	}

	result, err := in.Route(ctx, doc, evt)
	if err != nil {
		// Let a redelivery try again.
		in.forget(ctx, fingerprint(evt))
		return workflow.Result{}, err
	}
	return result.With(fieldProcessingID, doc.ProcessingID), nil
}
