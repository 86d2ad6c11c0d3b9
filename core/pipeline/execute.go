package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrymomot/cyre/core/channel"
	"github.com/dmitrymomot/cyre/core/timekeeper"
)

// Result is what Execute and RunProcessing hand back to the caller that
// owns timing decisions and dispatch (the bus's Call implementation).
type Result struct {
	// Response is non-nil when the pipeline reached a terminal outcome
	// (rejection, "not executed", or a deferred debounce/maxWait decision)
	// that the caller should return as-is without dispatching.
	Response *channel.Response

	// DispatchPayload is what should be forwarded to the channel's
	// handlers when Response is nil.
	DispatchPayload any

	// ForwardedPayload is what getPrevious and the next call's change
	// detection should remember, recorded once dispatch actually succeeds
	// via State.MarkDispatched.
	ForwardedPayload any
}

func debounceFormationID(channelID string) string {
	return channelID + "::debounce"
}

// Execute runs the compiled pipeline's protection and timing gates in
// order, then the processing chain, for a single call.
func Execute(ctx context.Context, c *Compiled, env *Env, state *State, payload any) Result {
	if c.Priority != channel.PriorityCritical && env.Breathing != nil && !env.Breathing.AllowsPriority(c.Priority) {
		resp := channel.Fail("recuperating: priority below admission threshold")
		return Result{Response: &resp}
	}

	if c.RepeatZero {
		resp := channel.Ok(nil, "not executed")
		return Result{Response: &resp}
	}

	if c.HasThrottle {
		state.mu.Lock()
		elapsed := time.Since(state.lastExecutionTime)
		zero := state.lastExecutionTime.IsZero()
		state.mu.Unlock()

		if !zero && elapsed < c.Throttle {
			remaining := c.Throttle - elapsed
			resp := channel.Fail(fmt.Sprintf("Throttled: retry in %s", remaining))
			return Result{Response: &resp}
		}
	}

	state.mu.Lock()
	state.lastCallTime = time.Now()
	state.mu.Unlock()

	if c.HasDebounce {
		return handleDebounce(ctx, c, env, state, payload)
	}

	return c.RunProcessing(ctx, state, payload)
}

func handleDebounce(ctx context.Context, c *Compiled, env *Env, state *State, payload any) Result {
	state.mu.Lock()
	first := !state.burstPending
	if first {
		state.burstStart = time.Now()
	}
	state.burstPending = true
	state.burstPayload = payload
	burstStart := state.burstStart
	state.mu.Unlock()

	if c.MaxWait > 0 && time.Since(burstStart) >= c.MaxWait {
		if env.Scheduler != nil {
			env.Scheduler.Forget(debounceFormationID(env.ChannelID))
		}
		state.mu.Lock()
		state.burstPending = false
		state.mu.Unlock()
		return c.RunProcessing(ctx, state, payload)
	}

	if env.Scheduler == nil || env.OnDebounceFire == nil {
		resp := channel.Fail("debounce: no scheduler configured")
		return Result{Response: &resp}
	}

	formationID := debounceFormationID(env.ChannelID)
	_, err := env.Scheduler.Keep(formationID, c.Debounce, 0, 1, payload,
		func(fireCtx context.Context, _ string, fired any) error {
			state.mu.Lock()
			state.burstPending = false
			state.mu.Unlock()
			return env.OnDebounceFire(fireCtx, fired)
		},
		timekeeper.AdaptConfig{},
	)
	if err != nil {
		resp := channel.FailErr("debounce scheduling failed", err)
		return Result{Response: &resp}
	}

	resp := channel.Response{
		OK:      true,
		Message: "debounced; execution scheduled",
		Metadata: &channel.Metadata{
			Scheduled: true,
			Delay:     c.Debounce,
		},
	}
	return Result{Response: &resp}
}

// RunProcessing runs the required/schema/selector/condition/transform
// chain, change detection, and the channel-local middleware chain, in that
// order. It is used both for the normal synchronous path and to resume a
// burst once its debounce window fires.
func (c *Compiled) RunProcessing(ctx context.Context, state *State, payload any) Result {
	current := payload

	if c.processing != nil {
		next, reject := c.processing(ctx, current)
		if reject != nil {
			return Result{Response: reject}
		}
		current = next
	}

	if c.HasChangeDetection {
		if prev, ok := state.LastDispatched(); ok && structurallyEqual(prev, current) {
			resp := channel.Fail("No changes detected")
			return Result{Response: &resp}
		}
	}

	forwarded := current
	final := current

	if len(c.middleware) > 0 {
		next, reject := runMiddleware(ctx, c.middleware, current)
		if reject != nil {
			return Result{Response: reject}
		}
		final = next
	}

	return Result{DispatchPayload: final, ForwardedPayload: forwarded}
}
