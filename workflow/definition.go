package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/ragline/core"
)

// Result is what a step returns and the next step receives.
type Result = core.StepResult

// Input wraps the previous step's result.
type Input struct {
	Payload Result `json:"Payload"`
}

// StepFunc is the body of a step.
type StepFunc func(ctx context.Context, in Input) (Result, error)

// RetryPolicy controls retries of a step's retriable failures.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy retries three times starting at one second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second}
}

// delay returns the wait before the attempt after attempt.
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return d
}

// Step is one named unit of a workflow. Zero Retry and Timeout use the
// engine defaults.
type Step struct {
	Name    string
	Run     StepFunc
	Retry   RetryPolicy
	Timeout time.Duration
}

// Definition is a named chain of steps.
type Definition struct {
	Name  string
	Steps []Step
}

func (d Definition) validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidDefinition)
	}
	if len(d.Steps) == 0 {
		return fmt.Errorf("%w: %s has no steps", ErrInvalidDefinition, d.Name)
	}
	seen := make(map[string]bool, len(d.Steps))
	for i, s := range d.Steps {
		if s.Name == "" || s.Run == nil {
			return fmt.Errorf("%w: %s step %d needs a name and a body", ErrInvalidDefinition, d.Name, i)
		}
		if seen[s.Name] {
			return fmt.Errorf("%w: %s has duplicate step %s", ErrInvalidDefinition, d.Name, s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

// Chain adapts a function that needs a successful payload. It receives the
// payload only when the previous result allows continuing.
func Chain(fn func(ctx context.Context, payload Result) (Result, error)) StepFunc {
	return func(ctx context.Context, in Input) (Result, error) {
		if !in.Payload.Continue() {
			return core.Stop(400, "previous step was not successful"), nil
		}
		return fn(ctx, in.Payload)
	}
}
