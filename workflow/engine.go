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


package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/storage"
)

// Engine registers workflow definitions and runs their executions on a
// worker pool. Submissions go through an unbounded queue drained by a
// dispatcher goroutine, so a step may start other executions without
// holding its worker hostage to a full pool.
type Engine struct {
	repo        storage.ExecutionRepository
	pool        *ants.Pool
	retry       RetryPolicy
	stepTimeout time.Duration
	logger      *slog.Logger
	now         func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	defs   map[string]Definition
	active map[string]chan struct{}
	closed bool

	qmu         sync.Mutex
	queueReady  *sync.Cond
	queue       []pending
	queueClosed bool
	dispatched  chan struct{}
}

// pending is an execution waiting for a pool worker.
type pending struct {
	def  Definition
	exec *core.Execution
}

// Option configures an Engine.
type Option func(*Engine) error

// WithPoolSize sets how many executions run concurrently.
// Default is runtime.NumCPU(), with a minimum of 2.
func WithPoolSize(size int) Option {
	return func(e *Engine) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if e.pool != nil {
			e.pool.Release()
		}
		e.pool = pool
		return nil
	}
}

// WithRetryPolicy sets the retry policy of steps that don't declare one.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(e *Engine) error {
		if p.MaxAttempts < 1 {
			return fmt.Errorf("retry policy needs at least one attempt")
		}
		e.retry = p
		return nil
	}
}

// WithStepTimeout sets the timeout of steps that don't declare one.
// Zero disables the default timeout.
func WithStepTimeout(d time.Duration) Option {
	return func(e *Engine) error {
		e.stepTimeout = d
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// New creates an engine persisting executions in repo.
func New(repo storage.ExecutionRepository, opts ...Option) (*Engine, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	poolSize := max(runtime.NumCPU(), 2)
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		repo:        repo,
		pool:        pool,
		retry:       DefaultRetryPolicy(),
		stepTimeout: 15 * time.Minute,
		logger:      slog.Default(),
		now:         func() time.Time { return time.Now().UTC() },
		ctx:         ctx,
		cancel:      cancel,
		defs:        make(map[string]Definition),
		active:      make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			cancel()
			e.pool.Release()
			return nil, err
		}
	}
	e.logger = e.logger.With("component", "workflow")
	e.queueReady = sync.NewCond(&e.qmu)
	e.dispatched = make(chan struct{})
	go e.dispatch()
	return e, nil
}

// Register adds a definition.
func (e *Engine) Register(def Definition) error {
	if err := def.validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.defs[def.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateWorkflow, def.Name)
	}
	e.defs[def.Name] = def
	return nil
}

func (e *Engine) definition(name string) (Definition, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	def, ok := e.defs[name]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrUnknownWorkflow, name)
	}
	return def, nil
}

func (e *Engine) newExecution(def Definition, input Result) *core.Execution {
	now := e.now()
	exec := &core.Execution{
		ID:        uuid.NewString(),
		Workflow:  def.Name,
		Status:    core.StatusRunning,
		Input:     input,
		Steps:     make([]core.StepRecord, len(def.Steps)),
		StartedAt: now,
	}
	for i, s := range def.Steps {
		exec.Steps[i].Name = s.Name
	}
	return exec
}

// Start persists a new execution and runs it in the background. It returns
// the execution id at once.
func (e *Engine) Start(ctx context.Context, name string, input Result) (string, error) {
	def, err := e.definition(name)
	if err != nil {
		return "", err
	}
	exec := e.newExecution(def, input)
	if err := e.repo.SaveExecution(ctx, exec); err != nil {
		return "", err
	}
	if err := e.submit(def, exec); err != nil {
		return "", err
	}
	e.logger.Info("execution started", "workflow", name, "execution", exec.ID)
	return exec.ID, nil
}

// Run executes a workflow in the caller's goroutine and returns the finished
// execution.
func (e *Engine) Run(ctx context.Context, name string, input Result) (*core.Execution, error) {
	def, err := e.definition(name)
	if err != nil {
		return nil, err
	}
	exec := e.newExecution(def, input)
	if err := e.repo.SaveExecution(ctx, exec); err != nil {
		return nil, err
	}
	e.execute(ctx, def, exec)
	return exec, nil
}

// Resume restarts a failed or timed-out execution from its failed step.
func (e *Engine) Resume(ctx context.Context, id string) error {
	exec, err := e.repo.GetExecution(ctx, id)
	if err != nil {
		return err
	}
	if exec.Status != core.StatusFailed && exec.Status != core.StatusTimedOut {
		return fmt.Errorf("%w: %s is %s", ErrNotResumable, id, exec.Status)
	}
	def, err := e.definition(exec.Workflow)
	if err != nil {
		return err
	}
	if len(def.Steps) != len(exec.Steps) {
		return fmt.Errorf("%w: definition of %s changed", ErrNotResumable, exec.Workflow)
	}

	exec.Status = core.StatusRunning
	exec.Error = ""
	if err := e.repo.SaveExecution(ctx, exec); err != nil {
		return err
	}
	e.logger.Info("execution resumed", "workflow", exec.Workflow, "execution", id, "step", exec.Steps[exec.NextStep()].Name)
	return e.submit(def, exec)
}

// Describe returns the persisted state of an execution.
func (e *Engine) Describe(ctx context.Context, id string) (*core.Execution, error) {
	return e.repo.GetExecution(ctx, id)
}

// Wait blocks until an execution started by this engine finishes, then
// returns its final state.
func (e *Engine) Wait(ctx context.Context, id string) (*core.Execution, error) {
	e.mu.RLock()
	done, ok := e.active[id]
	e.mu.RUnlock()
	if ok {
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return e.repo.GetExecution(ctx, id)
}

// Drain blocks until every background execution has finished.
func (e *Engine) Drain() {
	e.wg.Wait()
}

func (e *Engine) submit(def Definition, exec *core.Execution) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	e.active[exec.ID] = make(chan struct{})
	e.wg.Add(1)
	e.mu.Unlock()

	e.qmu.Lock()
	e.queue = append(e.queue, pending{def: def, exec: exec})
	e.qmu.Unlock()
	e.queueReady.Signal()
	return nil
}

// dispatch hands queued executions to the pool one at a time. Only this
// goroutine blocks on a full pool; workers never do.
func (e *Engine) dispatch() {
	defer close(e.dispatched)
	for {
		e.qmu.Lock()
		for len(e.queue) == 0 && !e.queueClosed {
			e.queueReady.Wait()
		}
		if len(e.queue) == 0 {
			e.qmu.Unlock()
			return
		}
		p := e.queue[0]
		e.queue[0] = pending{}
		e.queue = e.queue[1:]
		e.qmu.Unlock()

		err := e.pool.Submit(func() {
			defer e.finish(p.exec.ID)
			e.execute(e.ctx, p.def, p.exec)
		})
		if err != nil {
			p.exec.Status = core.StatusFailed
			p.exec.Error = core.Transient("workflow.dispatch", err).Error()
			e.save(e.ctx, p.exec, e.logger.With("workflow", p.def.Name, "execution", p.exec.ID))
			e.finish(p.exec.ID)
		}
	}
}

func (e *Engine) finish(id string) {
	e.mu.Lock()
	done := e.active[id]
	delete(e.active, id)
	e.mu.Unlock()
	if done != nil {
		close(done)
	}
	e.wg.Done()
}

// execute runs the remaining steps of exec, persisting after every step.
func (e *Engine) execute(ctx context.Context, def Definition, exec *core.Execution) {
	logger := e.logger.With("workflow", def.Name, "execution", exec.ID)

	first := exec.NextStep()
	payload := exec.Input
	if first > 0 && exec.Steps[first-1].Output != nil {
		payload = *exec.Steps[first-1].Output
	}

	for i := first; i < len(def.Steps); i++ {
		step := def.Steps[i]
		rec := &exec.Steps[i]
		rec.Status = core.StatusRunning
		rec.Error = ""
		rec.StartedAt = e.now()
		rec.FinishedAt = time.Time{}
		e.save(ctx, exec, logger)

		result, attempts, err := e.runStep(ctx, step, Input{Payload: payload})
		rec.Attempts += attempts
		rec.FinishedAt = e.now()

		if err != nil {
			status := core.StatusFailed
			if errors.Is(err, ErrStepTimeout) {
				status = core.StatusTimedOut
			}
			rec.Status = status
			rec.Error = err.Error()
			exec.Status = status
			exec.Error = fmt.Sprintf("step %s: %v", step.Name, err)
			logger.Error("step failed", "step", step.Name, "attempts", attempts, "err", err)
			e.save(ctx, exec, logger)
			return
		}

		rec.Status = core.StatusSucceeded
		rec.Output = &result
		if !result.Continue() {
			exec.Status = core.StatusStopped
			exec.Output = &result
			logger.Info("execution stopped", "step", step.Name, "status_code", result.StatusCode, "message", result.Message)
			e.save(ctx, exec, logger)
			return
		}
		logger.Debug("step succeeded", "step", step.Name, "attempts", attempts)
		payload = result
	}

	exec.Status = core.StatusSucceeded
	exec.Output = &payload
	logger.Info("execution succeeded")
	e.save(ctx, exec, logger)
}

func (e *Engine) save(ctx context.Context, exec *core.Execution, logger *slog.Logger) {
	// Persist even if ctx was canceled mid-step so the failure is recorded.
	if err := e.repo.SaveExecution(context.WithoutCancel(ctx), exec); err != nil {
		logger.Error("persisting execution", "err", err)
	}
}

// runStep calls a step until it succeeds, fails terminally, or exhausts its
// attempts. It returns the number of attempts made.
func (e *Engine) runStep(ctx context.Context, step Step, in Input) (Result, int, error) {
	policy := step.Retry
	if policy.MaxAttempts < 1 {
		policy = e.retry
	}
	timeout := step.Timeout
	if timeout == 0 {
		timeout = e.stepTimeout
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{}, attempt - 1, err
		}

		result, err := e.call(ctx, step, in, timeout)
		if err == nil {
			return result, attempt, nil
		}
		lastErr = err
		if errors.Is(err, ErrStepTimeout) || !core.IsRetriable(err) || attempt == policy.MaxAttempts {
			return Result{}, attempt, err
		}

		delay := policy.delay(attempt)
		e.logger.Debug("step failed, will retry", "step", step.Name, "attempt", attempt, "delay", delay, "err", err)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Result{}, attempt, ctx.Err()
		case <-timer.C:
		}
	}
	return Result{}, policy.MaxAttempts, lastErr
}

// call runs one attempt under the step timeout, converting panics to errors.
func (e *Engine) call(ctx context.Context, step Step, in Input, timeout time.Duration) (result Result, err error) {
	stepCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step %s panicked: %v", step.Name, r)
		}
		if err != nil && ctx.Err() == nil && errors.Is(stepCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s: %w", ErrStepTimeout, timeout, err)
		}
	}()
	return step.Run(stepCtx, in)
}

// Close stops accepting executions, waits for queued and running ones, and
// releases the pool.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.wg.Wait()

	e.qmu.Lock()
	e.queueClosed = true
	e.qmu.Unlock()
	e.queueReady.Broadcast()
	<-e.dispatched

	e.cancel()
	if e.pool != nil {
		e.pool.Release()
	}
}
