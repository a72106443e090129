package workflow

import "errors"

var (
	// ErrUnknownWorkflow is returned when starting an unregistered workflow.
	ErrUnknownWorkflow = errors.New("unknown workflow")

	// ErrDuplicateWorkflow is returned when a name is registered twice.
	ErrDuplicateWorkflow = errors.New("workflow already registered")

	// ErrInvalidDefinition is returned for definitions without a name or steps.
	ErrInvalidDefinition = errors.New("invalid workflow definition")

	// ErrNotResumable is returned when resuming an execution that didn't fail.
	ErrNotResumable = errors.New("execution is not resumable")

	// ErrStepTimeout marks a step that exceeded its timeout. It is never retried.
	ErrStepTimeout = errors.New("step timed out")

	// ErrEngineClosed is returned after Close.
	ErrEngineClosed = errors.New("workflow engine closed")

	// ErrRepositoryRequired is returned when no execution repository is supplied.
	ErrRepositoryRequired = errors.New("execution repository is required")
)
