package pipeline

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/cyre/core/channel"
)

// processingChain runs the required -> schema -> selector -> condition ->
// transform operators in order, short-circuiting with a terminal response
// on the first rejection.
type processingChain func(ctx context.Context, payload any) (any, *channel.Response)

// operatorStep is a single processing operator: it returns a rewritten
// payload to continue, or a terminal response to stop the chain. Steps do
// not wrap one another; the chain calls them one after another.
type operatorStep func(ctx context.Context, payload any) (any, *channel.Response)

// buildProcessingChain composes the configured operators into a single
// processingChain. Operators absent from the config are omitted entirely
// rather than compiled as no-ops, so an empty Processing produces a nil
// chain and HasFastPath can detect it.
func buildProcessingChain(cfg channel.Processing) processingChain {
	var steps []operatorStep

	if cfg.Required {
		steps = append(steps, requiredStep)
	}
	if cfg.Schema != nil {
		steps = append(steps, schemaStep(cfg.Schema))
	}
	if cfg.Selector != nil {
		steps = append(steps, selectorStep(cfg.Selector))
	}
	if cfg.Condition != nil {
		steps = append(steps, conditionStep(cfg.Condition))
	}
	if cfg.Transform != nil {
		steps = append(steps, transformStep(cfg.Transform))
	}

	if len(steps) == 0 {
		return nil
	}

	return func(ctx context.Context, payload any) (any, *channel.Response) {
		current := payload
		for _, step := range steps {
			next, reject := step(ctx, current)
			if reject != nil {
				return nil, reject
			}
			current = next
		}
		return current, nil
	}
}

func requiredStep(ctx context.Context, payload any) (any, *channel.Response) {
	if isDeepEmpty(payload) {
		resp := channel.Fail("required: payload is empty")
		return nil, &resp
	}
	return payload, nil
}

func schemaStep(fn channel.SchemaFunc) operatorStep {
	return func(ctx context.Context, payload any) (out any, reject *channel.Response) {
		defer func() {
			if r := recover(); r != nil {
				resp := channel.Fail(fmt.Sprintf("schema execution failed: %v", r))
				reject = &resp
			}
		}()

		result, err := fn(payload)
		if err != nil {
			resp := channel.FailErr(fmt.Sprintf("schema execution failed: %v", err), err)
			return nil, &resp
		}
		if !result.OK {
			msg := "Schema validation failed"
			if len(result.Errors) > 0 {
				msg = fmt.Sprintf("Schema validation failed: %v", result.Errors)
			}
			resp := channel.Fail(msg)
			return nil, &resp
		}
		// A schema that returns no replacement data is treated permissively:
		// the original payload passes through unchanged (see design notes on
		// the source's documented permissive behavior for non-object results).
		if result.Data == nil {
			return payload, nil
		}
		return result.Data, nil
	}
}

func selectorStep(fn channel.SelectorFunc) operatorStep {
	return func(ctx context.Context, payload any) (out any, reject *channel.Response) {
		defer func() {
			if r := recover(); r != nil {
				resp := channel.Fail(fmt.Sprintf("selector execution failed: %v", r))
				reject = &resp
			}
		}()

		next, err := fn(payload)
		if err != nil {
			resp := channel.FailErr(fmt.Sprintf("selector execution failed: %v", err), err)
			return nil, &resp
		}
		return next, nil
	}
}

func conditionStep(fn channel.ConditionFunc) operatorStep {
	return func(ctx context.Context, payload any) (out any, reject *channel.Response) {
		defer func() {
			if r := recover(); r != nil {
				resp := channel.Fail(fmt.Sprintf("condition execution failed: %v", r))
				reject = &resp
			}
		}()

		ok, err := fn(payload)
		if err != nil {
			resp := channel.FailErr(fmt.Sprintf("condition execution failed: %v", err), err)
			return nil, &resp
		}
		if !ok {
			resp := channel.Fail("Condition not met")
			return nil, &resp
		}
		return payload, nil
	}
}

func transformStep(fn channel.TransformFunc) operatorStep {
	return func(ctx context.Context, payload any) (out any, reject *channel.Response) {
		defer func() {
			if r := recover(); r != nil {
				resp := channel.Fail(fmt.Sprintf("transform execution failed: %v", r))
				reject = &resp
			}
		}()

		next, err := fn(payload)
		if err != nil {
			resp := channel.FailErr(fmt.Sprintf("transform execution failed: %v", err), err)
			return nil, &resp
		}
		return next, nil
	}
}

// runMiddleware threads payload through the channel-local middleware chain
// in registration order, the same way core/event/middleware.go's
// chainMiddleware wraps a Handler.
func runMiddleware(ctx context.Context, mw []channel.MiddlewareFunc, payload any) (out any, reject *channel.Response) {
	if len(mw) == 0 {
		return payload, nil
	}

	defer func() {
		if r := recover(); r != nil {
			resp := channel.Fail(fmt.Sprintf("middleware execution failed: %v", r))
			reject = &resp
		}
	}()

	var next func(context.Context, any) (any, error)
	idx := 0
	next = func(ctx context.Context, p any) (any, error) {
		if idx >= len(mw) {
			return p, nil
		}
		m := mw[idx]
		idx++
		return m(ctx, p, next)
	}

	result, err := next(ctx, payload)
	if err != nil {
		resp := channel.FailErr(fmt.Sprintf("middleware execution failed: %v", err), err)
		return nil, &resp
	}
	return result, nil
}
