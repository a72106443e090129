package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/extraction"
	"github.com/poiesic/ragline/notify"
	"github.com/poiesic/ragline/storage"
	"github.com/poiesic/ragline/workflow"
)

const completionScope = "extraction.completed"

// maxResultPages bounds result pagination against a cursor that never ends.
const maxResultPages = 10000

// ExtractionOrchestrator drives asynchronous extraction jobs through the
// Submitted -> Completed | Failed state machine. Jobs are matched to their
// document by the correlation token, which is the processing id.
type ExtractionOrchestrator struct {
	service extraction.Service
	jobs    storage.JobRepository
	docs    storage.DocumentRepository
	objects storage.ObjectStore
	dedup   storage.DedupRepository
	starter Starter
	channel string
	logger  *slog.Logger
	now     func() time.Time
}

// NewExtractionOrchestrator creates an orchestrator. Completion notifications
// are requested on channel.
func NewExtractionOrchestrator(
	service extraction.Service,
	jobs storage.JobRepository,
	docs storage.DocumentRepository,
	objects storage.ObjectStore,
	dedup storage.DedupRepository,
	starter Starter,
	channel string,
	logger *slog.Logger,
) *ExtractionOrchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractionOrchestrator{
		service: service,
		jobs:    jobs,
		docs:    docs,
		objects: objects,
		dedup:   dedup,
		starter: starter,
		channel: channel,
		logger:  logger.With("stage", "extraction"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SubmitJob starts an extraction job for an object and records it as
// Submitted. Resubmitting a token returns the job already started for it.
func (o *ExtractionOrchestrator) SubmitJob(ctx context.Context, bucket, key, token string) (string, error) {
	existing, err := o.jobs.GetJobByToken(ctx, token)
	if err == nil {
		return existing.JobID, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return "", err
	}

	jobID, err := o.service.StartJob(ctx, extraction.StartRequest{
		Bucket:              bucket,
		Key:                 key,
		ClientRequestToken:  token,
		NotificationChannel: o.channel,
	})
	if err != nil {
		return "", err
	}
	job := &core.ExtractionJob{
		JobID:       jobID,
		Token:       token,
		Bucket:      bucket,
		Key:         key,
		State:       core.JobSubmitted,
		SubmittedAt: o.now(),
	}
	if err := o.jobs.SaveJob(ctx, job); err != nil {
		return "", err
	}
	o.logger.Info("job submitted", "job", jobID, "key", key, "token", token)
	return jobID, nil
}

// CompletionInput converts a completion notification into the input of the
// extraction-completed workflow.
func CompletionInput(msg notify.JobCompletion) workflow.Result {
	return core.OK(msg.JobID).
		With(fieldJobID, msg.JobID).
		With(fieldJobStatus, msg.Status).
		With(fieldToken, msg.Token).
		With(fieldBucket, msg.Location.Bucket).
		With(fieldKey, msg.Location.Key)
}

func completionFrom(r workflow.Result) notify.JobCompletion {
	return notify.JobCompletion{
		JobID:  r.Field(fieldJobID),
		Status: r.Field(fieldJobStatus),
		Token:  r.Field(fieldToken),
		Location: notify.DocumentLocation{
			Bucket: r.Field(fieldBucket),
			Key:    r.Field(fieldKey),
		},
	}
}

// lookupJob finds the job of a notification by id, then by token.
func (o *ExtractionOrchestrator) lookupJob(ctx context.Context, msg notify.JobCompletion) (*core.ExtractionJob, error) {
	job, err := o.jobs.GetJob(ctx, msg.JobID)
	if errors.Is(err, storage.ErrNotFound) && msg.Token != "" {
		job, err = o.jobs.GetJobByToken(ctx, msg.Token)
	}
	if errors.Is(err, storage.ErrNotFound) {
		// The completion can outrun SaveJob; a retry finds the record.
		return nil, core.Transient("extraction.OnJobComplete", fmt.Errorf("job %s not registered yet", msg.JobID))
	}
	return job, err
}

// OnJobComplete consumes a completion notification. On success the result
// pages are concatenated in cursor order into the raw_json/ artifact and the
// textract workflow is started from it. A failed job yields a terminal
// {statusCode: 500} payload. Duplicates of finished jobs are acknowledged
// without side effects.
func (o *ExtractionOrchestrator) OnJobComplete(ctx context.Context, msg notify.JobCompletion) (result workflow.Result, err error) {
	logger := o.logger.With("job", msg.JobID, "status", msg.Status, "key", msg.Location.Key)

	group, filename, err := core.ParseDocumentKey(msg.Location.Key)
	if err != nil {
		return workflow.Result{}, core.Validation("extraction.OnJobComplete", err)
	}
	doc, err := o.docs.GetDocument(ctx, group, filename)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return workflow.Result{}, core.NotFound("extraction.OnJobComplete", fmt.Errorf("document %s/%s: %w", group, filename, err))
		}
		return workflow.Result{}, err
	}

	job, err := o.lookupJob(ctx, msg)
	if err != nil {
		return workflow.Result{}, err
	}
	if job.Token != doc.ProcessingID {
		// The document was re-registered; this job belongs to an older intake.
		logger.Warn("stale job completion", "token", job.Token, "processing_id", doc.ProcessingID)
		return core.Stop(409, "job belongs to a superseded document"), nil
	}
	if job.Terminal() {
		logger.Info("duplicate completion ignored", "state", job.State)
		return o.finished(job), nil
	}

	_, seen, err := o.dedup.Remember(ctx, completionScope, job.JobID, msg.Status, 24*time.Hour)
	if err != nil {
		return workflow.Result{}, err
	}
	if seen {
		logger.Info("completion already in progress")
		return core.OK(job.Output).With(fieldDuplicate, "true"), nil
	}
	defer func() {
		if err != nil {
			if ferr := o.dedup.Forget(context.WithoutCancel(ctx), completionScope, job.JobID); ferr != nil {
				logger.Warn("dropping dedup mark", "err", ferr)
			}
		}
	}()

	ref := core.RefFor(doc)
	if extraction.JobStatus(msg.Status) != extraction.StatusSucceeded {
		if err := job.Transition(core.JobFailed, o.now()); err != nil {
			return workflow.Result{}, err
		}
		job.Error = fmt.Sprintf("extraction job reported %s", msg.Status)
		if err := o.jobs.SaveJob(ctx, job); err != nil {
			return workflow.Result{}, err
		}
		logger.Error("extraction job failed", "err", core.UpstreamFailure("extraction.OnJobComplete", errors.New(job.Error)))
		return withRef(core.Stop(500, job.Error), ref).With(fieldJobID, job.JobID), nil
	}

	full, err := o.collect(ctx, job.JobID)
	if err != nil {
		return workflow.Result{}, err
	}
	data, err := json.Marshal(full)
	if err != nil {
		return workflow.Result{}, fmt.Errorf("encoding extraction result: %w", err)
	}
	jsonKey := ref.TextractJSONKey()
	if err := o.objects.Put(ctx, jsonKey, data); err != nil {
		return workflow.Result{}, err
	}

	// Downstream starts before the job is marked Completed so a retry never skips it.
	next := withRef(core.OK(jsonKey), ref).With(fieldJobID, job.JobID)
	execID, err := o.starter.Start(ctx, WorkflowTextract, next)
	if err != nil {
		return workflow.Result{}, err
	}
	if err := job.Transition(core.JobCompleted, o.now()); err != nil {
		return workflow.Result{}, err
	}
	job.Output = jsonKey
	if err := o.jobs.SaveJob(ctx, job); err != nil {
		return workflow.Result{}, err
	}
	logger.Info("extraction result stored", "output", jsonKey, "result_pages", len(full.Pages), "execution", execID)
	return next.With(fieldExecution, execID), nil
}

func (o *ExtractionOrchestrator) finished(job *core.ExtractionJob) workflow.Result {
	if job.State == core.JobFailed {
		return core.Stop(500, job.Error).With(fieldDuplicate, "true")
	}
	return core.OK(job.Output).With(fieldDuplicate, "true")
}

// collect fetches every result page of a job, following the cursor.
func (o *ExtractionOrchestrator) collect(ctx context.Context, jobID string) (*extraction.Result, error) {
	full := &extraction.Result{JobID: jobID, Status: extraction.StatusSucceeded}
	cursor := ""
	for range maxResultPages {
		page, err := o.service.GetJobResult(ctx, jobID, cursor)
		if err != nil {
			return nil, err
		}
		if page.JobStatus != extraction.StatusSucceeded {
			return nil, core.UpstreamFailure("extraction.collect", fmt.Errorf("job %s result page is %s: %s", jobID, page.JobStatus, page.StatusMessage))
		}
		full.Pages = append(full.Pages, *page)
		if page.NextToken == "" {
			return full, nil
		}
		cursor = page.NextToken
	}
	return nil, core.UpstreamFailure("extraction.collect", fmt.Errorf("job %s returned more than %d result pages", jobID, maxResultPages))
}

// AwaitJob polls a job until it ends and then handles it as if its
// completion notification had arrived. It is the fallback for deployments
// where notifications are unavailable.
func (o *ExtractionOrchestrator) AwaitJob(ctx context.Context, jobID string, interval time.Duration) (workflow.Result, error) {
	job, err := o.jobs.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return workflow.Result{}, core.NotFound("extraction.AwaitJob", fmt.Errorf("job %s: %w", jobID, err))
		}
		return workflow.Result{}, err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		page, err := o.service.GetJobResult(ctx, jobID, "")
		if err != nil {
			return workflow.Result{}, err
		}
		if page.JobStatus.Terminal() {
			return o.OnJobComplete(ctx, notify.JobCompletion{
				JobID:    jobID,
				Status:   string(page.JobStatus),
				Token:    job.Token,
				Location: notify.DocumentLocation{Bucket: job.Bucket, Key: job.Key},
			})
		}
		select {
		case <-ctx.Done():
			return workflow.Result{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (o *ExtractionOrchestrator) completionStep() workflow.Step {
	return workflow.Step{
		Name: "complete",
		Run: func(ctx context.Context, in workflow.Input) (workflow.Result, error) {
			return o.OnJobComplete(ctx, completionFrom(in.Payload))
		},
	}
}

func (o *ExtractionOrchestrator) pollStep(interval time.Duration) workflow.Step {
	return workflow.Step{
		Name: "await",
		// Jobs may take minutes; only the engine-wide timeout bounds a poll.
		Retry: workflow.RetryPolicy{MaxAttempts: 1},
		Run: func(ctx context.Context, in workflow.Input) (workflow.Result, error) {
			return o.AwaitJob(ctx, in.Payload.Field(fieldJobID), interval)
		},
	}
}
