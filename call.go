package cyre

import (
	"context"
	"time"

	"github.com/dmitrymomot/cyre/core/channel"
	"github.com/dmitrymomot/cyre/core/dispatch"
	"github.com/dmitrymomot/cyre/core/metrics"
	"github.com/dmitrymomot/cyre/core/pipeline"
	"github.com/dmitrymomot/cyre/core/registry"
	"github.com/dmitrymomot/cyre/core/timekeeper"
	"github.com/google/uuid"
)

// Call submits payload to the channel registered under id. It looks the
// channel up, runs its compiled pipeline, and — once the pipeline
// approves — applies the channel's delay/interval/repeat timing decision,
// dispatching to handlers synchronously or deferring via TimeKeeper.
func (b *Bus) Call(ctx context.Context, id string, payload any) channel.Response {
	callID := uuid.NewString()

	ch, ok := b.registry.Get(id)
	if !ok {
		return stampCallID(channel.Fail("not found"), callID)
	}

	counters := b.metrics.Counters(id)
	counters.RecordCall()
	b.breathing.RecordCall(ctx)

	cfg := ch.Config()
	compiled := ch.Compiled()
	state := ch.State()

	env := &pipeline.Env{
		ChannelID: id,
		Breathing: b.breathing,
		Scheduler: b.keeper,
		OnDebounceFire: func(fireCtx context.Context, firedPayload any) error {
			result := compiled.RunProcessing(fireCtx, state, firedPayload)
			if result.Response != nil {
				b.recordHistory(id, firedPayload, *result.Response)
				return nil
			}
			b.applyTiming(fireCtx, id, ch, cfg, uuid.NewString(), result.DispatchPayload, result.ForwardedPayload)
			return nil
		},
	}

	result := pipeline.Execute(ctx, compiled, env, state, payload)
	if result.Response != nil {
		resp := stampCallID(*result.Response, callID)
		b.recordHistory(id, payload, resp)
		return resp
	}

	return b.applyTiming(ctx, id, ch, cfg, callID, result.DispatchPayload, result.ForwardedPayload)
}

// stampCallID sets resp's correlation id, allocating Metadata if needed.
func stampCallID(resp channel.Response, callID string) channel.Response {
	if resp.Metadata == nil {
		resp.Metadata = &channel.Metadata{}
	}
	resp.Metadata.CallID = callID
	return resp
}

// applyTiming implements §4.4's timing decision: synchronous dispatch when
// neither delay nor interval is set (or delay is exactly zero), otherwise
// a TimeKeeper formation. A second call to the same channel while a
// formation exists replaces it, via core/timekeeper.Keeper.Keep's own
// replacement semantics.
func (b *Bus) applyTiming(ctx context.Context, id string, ch *registry.Channel, cfg channel.Config, callID string, dispatchPayload, forwardedPayload any) channel.Response {
	timing := cfg.Timing

	if timing.Delay == nil && timing.Interval == nil {
		return b.finishCall(ctx, id, ch, cfg, callID, dispatchPayload, forwardedPayload)
	}

	repeat := repeatCount(timing.Repeat)

	if timing.Delay != nil && *timing.Delay == 0 {
		resp := b.finishCall(ctx, id, ch, cfg, callID, dispatchPayload, forwardedPayload)

		if timing.Interval != nil && (repeat == timekeeper.RepeatInfinite || repeat > 1) {
			remaining := repeat
			if remaining != timekeeper.RepeatInfinite {
				remaining--
			}
			b.scheduleRecurring(id, ch, cfg, *timing.Interval, *timing.Interval, remaining, dispatchPayload, forwardedPayload)
		}
		return resp
	}

	var firstDelay, interval time.Duration
	switch {
	case timing.Delay != nil:
		firstDelay = *timing.Delay
		if timing.Interval != nil {
			interval = *timing.Interval
		}
	case timing.Interval != nil:
		// No delay, interval set: first fire waits one interval (documented
		// v4 behavior).
		firstDelay = *timing.Interval
		interval = *timing.Interval
	}

	b.scheduleRecurring(id, ch, cfg, firstDelay, interval, repeat, dispatchPayload, forwardedPayload)

	return channel.Response{
		OK:      true,
		Message: "scheduled",
		Metadata: &channel.Metadata{
			CallID:    callID,
			Scheduled: true,
			Delay:     firstDelay,
		},
	}
}

func repeatCount(r *int) int {
	if r == nil {
		return 1
	}
	return *r
}

func (b *Bus) scheduleRecurring(id string, ch *registry.Channel, cfg channel.Config, delay, interval time.Duration, repeat int, dispatchPayload, forwardedPayload any) {
	adapt := timekeeper.AdaptConfig{
		Enabled:          true,
		StressMultiplier: 2.0,
		PauseThreshold:   breathingPauseThreshold,
		ResumeThreshold:  breathingResumeThreshold,
		Critical:         cfg.Priority == channel.PriorityCritical,
	}

	b.keeper.Keep(intervalFormationID(id), delay, interval, repeat, dispatchPayload,
		func(fireCtx context.Context, _ string, firedPayload any) error {
			b.finishCall(fireCtx, id, ch, cfg, uuid.NewString(), firedPayload, forwardedPayload)
			return nil
		}, adapt)
}

const (
	breathingPauseThreshold  = 0.5
	breathingResumeThreshold = 0.3
)

// finishCall runs the dispatch strategies against the channel's current
// handler snapshot, records metrics/history, and resolves any intra-link
// chain.
func (b *Bus) finishCall(ctx context.Context, id string, ch *registry.Channel, cfg channel.Config, callID string, dispatchPayload, forwardedPayload any) channel.Response {
	handlers := ch.Handlers()
	if len(handlers) == 0 {
		resp := stampCallID(channel.Fail("no handlers subscribed"), callID)
		b.recordHistory(id, dispatchPayload, resp)
		return resp
	}

	resp, err := dispatch.Run(ctx, handlers, cfg.Dispatch, dispatchPayload)
	ok := err == nil && resp.OK
	resp = stampCallID(resp, callID)

	b.metrics.Counters(id).RecordExecution(ok)
	if ok {
		ch.State().MarkDispatched(forwardedPayload)
	}

	b.chainIfLink(ctx, &resp)
	b.recordHistory(id, dispatchPayload, resp)
	return resp
}

func (b *Bus) recordHistory(id string, payload any, resp channel.Response) {
	b.metrics.History(id).Record(metrics.Entry{
		ActionID:  id,
		Timestamp: time.Now(),
		Payload:   payload,
		Result:    resp,
	})
}
