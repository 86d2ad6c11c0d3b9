package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/dmitrymomot/cyre/core/channel"
)

// HandlerOutcome is one handler's raw result, used by parallel/sequential
// 'continue' aggregation.
type HandlerOutcome struct {
	OK      bool
	Payload any
	Error   string
}

// Run selects and executes the strategy declared by cfg (or single,
// unconditionally, when there is exactly one handler) against handlers.
func Run(ctx context.Context, handlers []channel.HandlerFunc, cfg channel.Dispatch, payload any) (channel.Response, error) {
	if len(handlers) == 0 {
		return channel.Response{}, ErrNoHandlers
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	strategy := cfg.Strategy
	if len(handlers) == 1 {
		strategy = channel.StrategySingle
	}

	var resp channel.Response
	var err error

	switch strategy {
	case channel.StrategyParallel:
		resp, err = runParallel(ctx, handlers, cfg.ErrorStrategy, payload)
	case channel.StrategySequential:
		resp, err = runSequential(ctx, handlers, cfg.ErrorStrategy, cfg.CollectResults, payload)
	case channel.StrategyRace:
		resp, err = runRace(ctx, handlers, payload)
	case channel.StrategyWaterfall:
		resp, err = runWaterfall(ctx, handlers, payload)
	default:
		resp, err = runSingle(ctx, handlers[0], payload)
	}

	if errors.Is(err, context.DeadlineExceeded) || (cfg.Timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded)) {
		return channel.Fail(fmt.Sprintf("dispatch timeout after %s", cfg.Timeout)), ErrDispatchTimeout
	}

	if resp.Metadata == nil {
		resp.Metadata = &channel.Metadata{}
	}
	resp.Metadata.ExecutionOperator = strategy
	resp.Metadata.HandlerCount = len(handlers)

	return resp, err
}

// safeInvoke recovers a handler panic, matching core/event/utils.go's
// safeHandle pattern but returning a value alongside the error.
func safeInvoke(ctx context.Context, h channel.HandlerFunc, payload any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			err = fmt.Errorf("handler panicked: %v\nstack trace:\n%s", r, stack)
		}
	}()
	return h(ctx, payload)
}

func runSingle(ctx context.Context, h channel.HandlerFunc, payload any) (channel.Response, error) {
	result, err := safeInvoke(ctx, h, payload)
	if err != nil {
		return channel.FailErr(err.Error(), err), nil
	}
	return channel.Ok(result, ""), nil
}

func runParallel(ctx context.Context, handlers []channel.HandlerFunc, errStrategy channel.ErrorStrategy, payload any) (channel.Response, error) {
	futures := execAll(ctx, len(handlers), func(ctx context.Context, i int) (any, error) {
		return safeInvoke(ctx, handlers[i], payload)
	})

	results := make([]HandlerOutcome, len(futures))
	for i, f := range futures {
		payload, err := f.await(ctx)
		if err != nil {
			if errStrategy == channel.ErrorFailFast {
				return channel.Response{}, err
			}
			results[i] = HandlerOutcome{OK: false, Error: err.Error()}
			continue
		}
		results[i] = HandlerOutcome{OK: true, Payload: payload}
	}

	return channel.Ok(results, ""), nil
}

func runSequential(ctx context.Context, handlers []channel.HandlerFunc, errStrategy channel.ErrorStrategy, collect channel.CollectResults, payload any) (channel.Response, error) {
	results := make([]HandlerOutcome, 0, len(handlers))
	var last any

	for _, h := range handlers {
		result, err := safeInvoke(ctx, h, payload)
		if err != nil {
			results = append(results, HandlerOutcome{OK: false, Error: err.Error()})
			if errStrategy != channel.ErrorContinue {
				if collect == channel.CollectLast {
					return channel.FailErr(err.Error(), err), nil
				}
				return channel.Response{OK: false, Payload: results, Message: err.Error(), Err: err}, nil
			}
			continue
		}
		results = append(results, HandlerOutcome{OK: true, Payload: result})
		last = result
	}

	if collect == channel.CollectLast {
		return channel.Ok(last, ""), nil
	}
	return channel.Ok(results, ""), nil
}

func runRace(ctx context.Context, handlers []channel.HandlerFunc, payload any) (channel.Response, error) {
	futures := execAll(ctx, len(handlers), func(ctx context.Context, i int) (any, error) {
		return safeInvoke(ctx, handlers[i], payload)
	})

	_, result, err := execAny(ctx, futures)
	if err != nil {
		return channel.FailErr(err.Error(), err), nil
	}
	return channel.Ok(result, ""), nil
}

func runWaterfall(ctx context.Context, handlers []channel.HandlerFunc, payload any) (channel.Response, error) {
	current := payload
	for _, h := range handlers {
		result, err := safeInvoke(ctx, h, current)
		if err != nil {
			return channel.FailErr(err.Error(), err), nil
		}
		current = result
	}
	return channel.Ok(current, ""), nil
}
