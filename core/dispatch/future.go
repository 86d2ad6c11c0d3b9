package dispatch

import (
	"context"
	"errors"
	"sync"
)

// future carries the result of one handler invocation. It mirrors
// pkg/async.ExecFuture's sync.Once/done-channel shape, generalized to
// carry a return value alongside the error since handler results must be
// aggregated, not just awaited.
type future struct {
	payload any
	err     error
	once    sync.Once
	done    chan struct{}
}

func newFuture() *future {
	return &future{done: make(chan struct{})}
}

func (f *future) resolve(payload any, err error) {
	f.once.Do(func() {
		f.payload = payload
		f.err = err
		close(f.done)
	})
}

func (f *future) await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.payload, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// execAll runs fn for each input concurrently, exactly like pkg/async's
// Exec+ExecAll composition, and returns one future per input at once;
// each future resolves when its fn call completes.
func execAll(ctx context.Context, n int, fn func(ctx context.Context, index int) (any, error)) []*future {
	futures := make([]*future, n)
	for i := 0; i < n; i++ {
		futures[i] = newFuture()
		go func(index int) {
			payload, err := fn(ctx, index)
			futures[index].resolve(payload, err)
		}(i)
	}
	return futures
}

// execAny returns the index and result of whichever future resolves first
// with success, adapted from pkg/async.ExecAny's first-to-finish race into
// Promise.any semantics: a fast failure does not win over a slower success,
// only every future failing does. Each future still only runs once (they're
// shared with execAll's callers), so this just changes which resolution
// execAny waits for.
func execAny(ctx context.Context, futures []*future) (int, any, error) {
	if len(futures) == 0 {
		return -1, nil, ErrNoHandlers
	}

	type resolved struct {
		index   int
		payload any
		err     error
	}
	done := make(chan resolved, len(futures))

	for i, f := range futures {
		go func(index int, fut *future) {
			payload, err := fut.await(ctx)
			done <- resolved{index, payload, err}
		}(i, f)
	}

	var errs []error
	for remaining := len(futures); remaining > 0; remaining-- {
		select {
		case r := <-done:
			if r.err == nil {
				return r.index, r.payload, nil
			}
			errs = append(errs, r.err)
		case <-ctx.Done():
			return -1, nil, ctx.Err()
		}
	}

	return -1, nil, errors.Join(errs...)
}
