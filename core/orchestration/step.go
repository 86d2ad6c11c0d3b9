package orchestration

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// runSteps runs a sequence of sibling steps in order, stopping at the
// first step that returns an error (after that step's own onError policy
// has already been applied by runStep).
func (e *Engine) runSteps(ctx *RunContext, steps []Step) error {
	for _, step := range steps {
		if err := e.runStep(ctx, step); err != nil {
			return err
		}
	}
	return nil
}

// runStep executes one step, applying its retry count, timeout, and
// onError policy. Grounded on core/queue.Worker's retry-count bookkeeping,
// generalized here to true exponential backoff per the documented
// "retries with exponential backoff" contract (core/queue's own retry
// delay is linear).
func (e *Engine) runStep(ctx *RunContext, step Step) error {
	started := time.Now()

	stepCtx := ctx.Context
	if step.StepTimeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(stepCtx, step.StepTimeout)
		defer cancel()
	}
	runCtx := *ctx
	runCtx.Context = stepCtx

	var result any
	var err error

	attempts := step.Retries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
			timer := time.NewTimer(backoff)
			select {
			case <-timer.C:
			case <-stepCtx.Done():
				timer.Stop()
				err = stepCtx.Err()
				goto attemptsDone
			}
		}
		result, err = e.execStep(&runCtx, step)
		if err == nil {
			break
		}
		if step.OnError != OnErrorRetry {
			break
		}
	}
attemptsDone:

	ctx.recordStep(StepHistoryEntry{
		StepName:   step.Name,
		Success:    err == nil,
		Result:     result,
		Err:        err,
		StartedAt:  started,
		FinishedAt: time.Now(),
	})

	if err == nil {
		return nil
	}

	switch step.OnError {
	case OnErrorContinue:
		return nil
	case OnErrorSkip:
		return nil
	case OnErrorRetry, OnErrorAbort, "":
		return fmt.Errorf("orchestration: step %q failed: %w", step.Name, err)
	default:
		return fmt.Errorf("orchestration: step %q failed: %w", step.Name, err)
	}
}

func (e *Engine) execStep(ctx *RunContext, step Step) (any, error) {
	switch step.Kind {
	case StepAction:
		return e.execAction(ctx, step)
	case StepCondition:
		return e.execCondition(ctx, step)
	case StepParallel:
		return e.execParallel(ctx, step)
	case StepSequential:
		return nil, e.runSteps(ctx, step.Steps)
	case StepDelay:
		return nil, e.execDelay(ctx, step)
	case StepLoop:
		return nil, e.execLoop(ctx, step)
	default:
		return nil, ErrUnknownStepKind
	}
}

func (e *Engine) execAction(ctx *RunContext, step Step) (any, error) {
	targets := step.Targets
	if step.TargetFn != nil {
		targets = step.TargetFn(ctx)
	}

	var payload any = step.Payload
	if step.PayloadFn != nil {
		payload = step.PayloadFn(ctx)
	}

	if e.caller == nil {
		return nil, fmt.Errorf("orchestration: no caller configured for action step %q", step.Name)
	}

	results := make([]any, 0, len(targets))
	for _, target := range targets {
		resp := e.caller.Call(ctx.Context, target, payload)
		results = append(results, resp)
		if !resp.OK {
			return results, fmt.Errorf("orchestration: action target %q failed: %s", target, resp.Message)
		}
	}
	return results, nil
}

func (e *Engine) execCondition(ctx *RunContext, step Step) (any, error) {
	if step.Predicate == nil {
		return nil, ErrConditionNotMet
	}
	ok, err := step.Predicate(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConditionNotMet
	}
	return nil, e.runSteps(ctx, step.Steps)
}

// execParallel runs nested steps concurrently, taking a snapshot of
// ctx.Context for each goroutine. With onError continue, partial results
// (the errors of whichever steps failed) are collected rather than
// propagated, per the documented "onError: continue preserves partial
// results" contract.
func (e *Engine) execParallel(ctx *RunContext, step Step) (any, error) {
	var g errgroup.Group
	errs := make([]error, len(step.Steps))

	for i, nested := range step.Steps {
		i, nested := i, nested
		g.Go(func() error {
			errs[i] = e.runStep(ctx, nested)
			return nil
		})
	}
	_ = g.Wait()

	var firstErr error
	for _, err := range errs {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil && step.OnError != OnErrorContinue {
		return errs, firstErr
	}
	return errs, nil
}

func (e *Engine) execDelay(ctx *RunContext, step Step) error {
	if e.sched != nil {
		return e.sched.Wait(ctx.Context, step.Timeout)
	}
	select {
	case <-time.After(step.Timeout):
		return nil
	case <-ctx.Context.Done():
		return ctx.Context.Err()
	}
}

func (e *Engine) execLoop(ctx *RunContext, step Step) error {
	iters := 0
	for {
		if step.MaxIters > 0 && iters >= step.MaxIters {
			return nil
		}
		if step.Until != nil {
			done, err := step.Until(ctx)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
		if err := ctx.Context.Err(); err != nil {
			return err
		}
		if err := e.runSteps(ctx, step.Steps); err != nil {
			return err
		}
		iters++
	}
}
