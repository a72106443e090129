package core

import (
	"errors"
	"fmt"
	"time"
)

// StatusOK is the status code that lets a workflow continue to its next step.
const StatusOK = 200

// StepResult is the payload a workflow step returns and the next step receives.
// JSON names follow the orchestrator's wire convention.
type StepResult struct {
	StatusCode int               `json:"statusCode"`
	Output     string            `json:"Output,omitempty"`
	Message    string            `json:"message,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
}

// OK builds a successful result pointing at output.
func OK(output string) StepResult {
	return StepResult{StatusCode: StatusOK, Output: output}
}

// Stop builds a result that halts the workflow with the given status.
func Stop(status int, message string) StepResult {
	return StepResult{StatusCode: status, Message: message}
}

// Continue reports whether the next step may run.
func (r StepResult) Continue() bool {
	return r.StatusCode == StatusOK
}

// With returns a copy of r carrying an extra field.
func (r StepResult) With(key, value string) StepResult {
	fields := make(map[string]string, len(r.Fields)+1)
	for k, v := range r.Fields {
		fields[k] = v
	}
	fields[key] = value
	r.Fields = fields
	return r
}

// Field returns a named field or "".
func (r StepResult) Field(key string) string {
	return r.Fields[key]
}

// ExecutionStatus is the lifecycle state of a workflow execution or step.
type ExecutionStatus string

const (
	StatusRunning   ExecutionStatus = "RUNNING"
	StatusSucceeded ExecutionStatus = "SUCCEEDED"
	// StatusStopped means a step returned a non-OK status code.
	StatusStopped  ExecutionStatus = "STOPPED"
	StatusFailed   ExecutionStatus = "FAILED"
	StatusTimedOut ExecutionStatus = "TIMED_OUT"
)

// Terminal reports whether no further steps will run without a resume.
func (s ExecutionStatus) Terminal() bool {
	return s != StatusRunning && s != ""
}

// StepRecord is the persisted outcome of one step of an execution.
type StepRecord struct {
	Name       string          `json:"name"`
	Status     ExecutionStatus `json:"status"`
	Attempts   int             `json:"attempts"`
	Output     *StepResult     `json:"output,omitempty"`
	Error      string          `json:"error,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at,omitzero"`
}

// Execution is a persisted run of a workflow definition.
type Execution struct {
	ID        string          `json:"id"`
	Workflow  string          `json:"workflow"`
	Status    ExecutionStatus `json:"status"`
	Input     StepResult      `json:"input"`
	Output    *StepResult     `json:"output,omitempty"`
	Steps     []StepRecord    `json:"steps"`
	Error     string          `json:"error,omitempty"`
	StartedAt time.Time       `json:"started_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NextStep returns the index of the first step that has not succeeded.
func (e *Execution) NextStep() int {
	for i, s := range e.Steps {
		if s.Status != StatusSucceeded {
			return i
		}
	}
	return len(e.Steps)
}

// JobState is the lifecycle of an asynchronous extraction job.
type JobState string

const (
	JobSubmitted JobState = "SUBMITTED"
	JobCompleted JobState = "COMPLETED"
	JobFailed    JobState = "FAILED"
)

// ErrInvalidTransition indicates a job state change the state machine forbids.
var ErrInvalidTransition = errors.New("invalid job state transition")

// ExtractionJob tracks one asynchronous extraction job, matched to its
// document by the correlation token (the processing id).
type ExtractionJob struct {
	JobID       string    `json:"job_id"`
	Token       string    `json:"token"`
	Bucket      string    `json:"bucket"`
	Key         string    `json:"key"`
	State       JobState  `json:"state"`
	Output      string    `json:"output,omitempty"`
	Error       string    `json:"error,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
	FinishedAt  time.Time `json:"finished_at,omitzero"`
}

// Terminal reports whether the job has finished.
func (j *ExtractionJob) Terminal() bool {
	return j.State == JobCompleted || j.State == JobFailed
}

// Transition moves the job to state to. Only Submitted may move, and only
// to Completed or Failed.
func (j *ExtractionJob) Transition(to JobState, at time.Time) error {
	if j.State != JobSubmitted || (to != JobCompleted && to != JobFailed) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.State, to)
	}
	j.State = to
	j.FinishedAt = at
	return nil
}
