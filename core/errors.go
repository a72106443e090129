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


package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every pipeline failure wraps exactly one of these.
var (
	// ErrValidation marks malformed or missing input. Never retried.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a missing prefix match or metadata row. Terminal.
	ErrNotFound = errors.New("not found")

	// ErrUpstreamJobFailure marks an extraction job that reported failure. Terminal.
	ErrUpstreamJobFailure = errors.New("upstream job failure")

	// ErrTransient marks throttling or timeouts in a collaborator. Retried by the workflow engine.
	ErrTransient = errors.New("transient service error")

	// ErrPartialFailure marks a unit of work where some siblings failed and others succeeded.
	ErrPartialFailure = errors.New("partial failure")
)

// Domain validation errors
var (
	// ErrInvalidDocument indicates a DocumentRecord failed validation.
	ErrInvalidDocument = errors.New("invalid document record")

	// ErrInvalidChunk indicates a ChunkRecord failed validation.
	ErrInvalidChunk = errors.New("invalid chunk record")

	// ErrInvalidTurn indicates a ConversationTurn failed validation.
	ErrInvalidTurn = errors.New("invalid conversation turn")

	// ErrInvalidKey indicates an object key does not have the <prefix>/<group>/<filename> shape.
	ErrInvalidKey = errors.New("invalid document key")

	// ErrDimensionMismatch indicates two vectors of different length were compared.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Error attaches an operation name to a classified failure.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.Error()
	}
	return e.Op + ": " + e.Kind.Error() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Validation classifies err as a validation failure.
func Validation(op string, err error) error { return newError(ErrValidation, op, err) }

// NotFound classifies err as a missing resource.
func NotFound(op string, err error) error { return newError(ErrNotFound, op, err) }

// UpstreamFailure classifies err as a failed extraction job.
func UpstreamFailure(op string, err error) error { return newError(ErrUpstreamJobFailure, op, err) }

// Transient classifies err as retriable.
func Transient(op string, err error) error { return newError(ErrTransient, op, err) }

// PartialFailures aggregates the failures of sibling units.
type PartialFailures struct {
	Failed    map[string]error
	Succeeded int
}

func (p *PartialFailures) Error() string {
	keys := make([]string, 0, len(p.Failed))
	for k := range p.Failed {
		keys = append(keys, k)
	}
	return fmt.Sprintf("%d failed, %d succeeded: %s", len(p.Failed), p.Succeeded, strings.Join(keys, ", "))
}

// Partial classifies a set of sibling failures. Returns nil when nothing failed.
func Partial(op string, failed map[string]error, succeeded int) error {
	if len(failed) == 0 {
		return nil
	}
	return newError(ErrPartialFailure, op, &PartialFailures{Failed: failed, Succeeded: succeeded})
}

// IsRetriable reports whether the workflow engine may retry err.
// Unclassified errors are treated as transient.
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrUpstreamJobFailure),
		errors.Is(err, ErrPartialFailure):
		return false
	}
	return true
}
