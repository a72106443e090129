// Package workflow runs named chains of steps and persists every execution.
//
// Each step receives the previous step's result wrapped as
// {"Payload": <result>}; the first step receives the execution input. A
// result whose status code is not 200 stops the chain without error.
//
// Failed steps are retried with exponential backoff when the error is
// retriable (see core.IsRetriable). Validation, not-found, upstream-job and
// partial failures end the execution at once, as do step timeouts. A failed
// or timed-out execution can be resumed from the step that failed.
//
//	engine, _ := workflow.New(repo)
//	engine.Register(workflow.Definition{Name: "index", Steps: steps})
//	id, _ := engine.Start(ctx, "index", core.OK("raw_text/g/x_raw.txt"))
//	exec, _ := engine.Wait(ctx, id)
package workflow
