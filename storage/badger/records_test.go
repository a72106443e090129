package badger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/storage"
)

func TestJobRepository(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	job := &core.ExtractionJob{
		JobID: "job-1", Token: "pid-1", Bucket: "ragline", Key: "raw_docs/g/a.pdf",
		State: core.JobSubmitted, SubmittedAt: time.Now().UTC(),
	}
	if err := stores.Jobs.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob() error = %v", err)
	}

	got, err := stores.Jobs.GetJob(ctx, "job-1")
	if err != nil || got.Token != "pid-1" || got.State != core.JobSubmitted {
		t.Fatalf("GetJob() = %+v, %v", got, err)
	}
	got, err = stores.Jobs.GetJobByToken(ctx, "pid-1")
	if err != nil || got.JobID != "job-1" {
		t.Fatalf("GetJobByToken() = %+v, %v", got, err)
	}

	if err := got.Transition(core.JobCompleted, time.Now().UTC()); err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	stores.Jobs.SaveJob(ctx, got)
	got, _ = stores.Jobs.GetJobByToken(ctx, "pid-1")
	if got.State != core.JobCompleted {
		t.Fatalf("state after save = %s", got.State)
	}

	if _, err := stores.Jobs.GetJobByToken(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetJobByToken(missing) = %v", err)
	}
}

func TestExecutionRepository(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()
	base := time.Now().UTC()

	for i, wf := range []string{"index", "delete-document", "index"} {
		exec := &core.Execution{
			ID: string(rune('a' + i)), Workflow: wf, Status: core.StatusRunning,
			Input: core.OK("x"), StartedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := stores.Executions.SaveExecution(ctx, exec); err != nil {
			t.Fatalf("SaveExecution() error = %v", err)
		}
	}

	got, err := stores.Executions.GetExecution(ctx, "b")
	if err != nil || got.Workflow != "delete-document" || got.UpdatedAt.IsZero() {
		t.Fatalf("GetExecution() = %+v, %v", got, err)
	}

	indexed, err := stores.Executions.ListExecutions(ctx, "index")
	if err != nil || len(indexed) != 2 || indexed[0].ID != "a" || indexed[1].ID != "c" {
		t.Fatalf("ListExecutions(index) = %+v, %v", indexed, err)
	}
	all, _ := stores.Executions.ListExecutions(ctx, "")
	if len(all) != 3 {
		t.Fatalf("ListExecutions() = %d executions, want 3", len(all))
	}
}

func TestDedupRepository(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	value, seen, err := stores.Dedup.Remember(ctx, "intake", "fp1", "pid-1", time.Hour)
	if err != nil || seen || value != "pid-1" {
		t.Fatalf("first Remember() = %q, %v, %v", value, seen, err)
	}
	value, seen, err = stores.Dedup.Remember(ctx, "intake", "fp1", "pid-2", time.Hour)
	if err != nil || !seen || value != "pid-1" {
		t.Fatalf("second Remember() = %q, %v, %v", value, seen, err)
	}
	_, seen, _ = stores.Dedup.Remember(ctx, "jobs", "fp1", "x", 0)
	if seen {
		t.Fatal("scopes must not share tokens")
	}

	if err := stores.Dedup.Forget(ctx, "intake", "fp1"); err != nil {
		t.Fatalf("Forget() error = %v", err)
	}
	_, seen, _ = stores.Dedup.Remember(ctx, "intake", "fp1", "pid-3", time.Hour)
	if seen {
		t.Fatal("token still seen after Forget()")
	}
}

func TestPromptRepository(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	if _, err := stores.Prompts.GetPrompt(ctx, "system"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetPrompt(unset) = %v", err)
	}
	stores.Prompts.SetPrompt(ctx, "system", "be terse")
	got, err := stores.Prompts.GetPrompt(ctx, "system")
	if err != nil || got != "be terse" {
		t.Fatalf("GetPrompt() = %q, %v", got, err)
	}
}

func TestStores_Chunks(t *testing.T) {
	stores := newTestStores(t)
	if stores.Chunks(core.GranularitySmall).Name() != "textract" || stores.Chunks(core.GranularityLarge).Name() != "llm" {
		t.Fatalf("granularity mapping = %s/%s", stores.Chunks(core.GranularitySmall).Name(), stores.Chunks(core.GranularityLarge).Name())
	}
}
