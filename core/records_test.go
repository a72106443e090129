package core

import (
	"errors"
	"testing"
	"time"
)

func TestExtractionJob_Transition(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		from    JobState
		to      JobState
		wantErr bool
	}{
		{name: "submitted to completed", from: JobSubmitted, to: JobCompleted},
		{name: "submitted to failed", from: JobSubmitted, to: JobFailed},
		{name: "submitted to submitted", from: JobSubmitted, to: JobSubmitted, wantErr: true},
		{name: "completed to failed", from: JobCompleted, to: JobFailed, wantErr: true},
		{name: "failed to completed", from: JobFailed, to: JobCompleted, wantErr: true},
		{name: "completed to completed", from: JobCompleted, to: JobCompleted, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &ExtractionJob{State: tt.from}
			err := job.Transition(tt.to, now)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Fatalf("Transition() error = %v, want ErrInvalidTransition", err)
				}
				if job.State != tt.from {
					t.Errorf("state changed on invalid transition: %s", job.State)
				}
				return
			}
			if err != nil {
				t.Fatalf("Transition() unexpected error = %v", err)
			}
			if job.State != tt.to || !job.Terminal() || !job.FinishedAt.Equal(now) {
				t.Errorf("job after transition = %+v", job)
			}
		})
	}
}

func TestStepResult(t *testing.T) {
	r := OK("raw_text/g/x")
	if !r.Continue() {
		t.Error("OK result must continue")
	}
	if Stop(500, "boom").Continue() {
		t.Error("500 result must not continue")
	}

	r2 := r.With("group", "g")
	if r.Field("group") != "" {
		t.Error("With() mutated the receiver")
	}
	if r2.Field("group") != "g" || r2.Output != r.Output {
		t.Errorf("With() = %+v", r2)
	}
}

func TestExecution_NextStep(t *testing.T) {
	exec := &Execution{Steps: []StepRecord{
		{Name: "a", Status: StatusSucceeded},
		{Name: "b", Status: StatusFailed},
		{Name: "c"},
	}}
	if got := exec.NextStep(); got != 1 {
		t.Errorf("NextStep() = %d, want 1", got)
	}

	exec.Steps[1].Status = StatusSucceeded
	exec.Steps[2].Status = StatusSucceeded
	if got := exec.NextStep(); got != 3 {
		t.Errorf("NextStep() = %d, want 3", got)
	}
}

func TestExecutionStatus_Terminal(t *testing.T) {
	if StatusRunning.Terminal() {
		t.Error("running is not terminal")
	}
	for _, s := range []ExecutionStatus{StatusSucceeded, StatusStopped, StatusFailed, StatusTimedOut} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}
