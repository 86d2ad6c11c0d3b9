package orchestration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/cyre/core/channel"
	"github.com/dmitrymomot/cyre/core/timekeeper"
)

// Caller invokes a registered channel by id, the same contract the root
// bus's own Call exposes. Declared locally so this package never imports
// the bus or core/registry directly.
type Caller interface {
	Call(ctx context.Context, id string, payload any) channel.Response
}

// Subscriber subscribes a handler to a channel id, matching
// core/registry.Registry.On's signature.
type Subscriber interface {
	On(id string, handler channel.HandlerFunc) (func(), error)
}

// Scheduler is the subset of timekeeper.Keeper time triggers and delay
// steps need.
type Scheduler interface {
	Keep(id string, delay, interval time.Duration, repeat int, payload any, callback timekeeper.Callback, adapt timekeeper.AdaptConfig) (timekeeper.Formation, error)
	Forget(id string)
	Wait(ctx context.Context, d time.Duration) error
}

// MetricsSource reports a channel's call/execution/error tallies for
// Monitoring.Alerts predicates. Declared locally so this package never
// imports core/metrics directly.
type MetricsSource interface {
	Snapshot(channelID string) (calls, executions, errors float64)
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger attaches a structured logger. Default is a discard logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics attaches the metrics source Monitoring.Alerts predicates are
// evaluated against. Without it, alerts are never evaluated; health checks
// still run.
func WithMetrics(m MetricsSource) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// entry is one kept orchestration plus its running subscriptions.
type entry struct {
	cfg     Config
	enabled bool

	unsubs       []func()
	runningRuns  int
	totalRuns    int64
	failedRuns   int64
	lastRun      time.Time
	consecutive  int // consecutive failed runs, for escalation

	lastConditionFire map[int]time.Time // trigger index -> last fire, for debounce
}

// Engine keeps, activates, and runs orchestrations: named workflows that
// call channels in response to a channel call, a time schedule, a polled
// condition, or an external invocation.
type Engine struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	caller   Caller
	subs     Subscriber
	sched    Scheduler
	metrics  MetricsSource
	logger   *slog.Logger
}

// New constructs an Engine. caller/subs/sched are the bus's own
// implementations; sched may be nil, in which case time triggers are not
// scheduled and delay steps wait on a plain timer instead.
func New(caller Caller, subs Subscriber, sched Scheduler, opts ...EngineOption) *Engine {
	e := &Engine{
		entries: make(map[string]*entry),
		caller:  caller,
		subs:    subs,
		sched:   sched,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Keep registers (or replaces) a named orchestration and wires its
// triggers. A replaced orchestration has its prior subscriptions torn
// down first.
func (e *Engine) Keep(cfg Config) error {
	if err := cfg.validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if existing, ok := e.entries[cfg.ID]; ok {
		e.teardownLocked(existing)
	}

	ent := &entry{cfg: cfg, enabled: cfg.Enabled, lastConditionFire: make(map[int]time.Time)}
	e.entries[cfg.ID] = ent

	if ent.enabled {
		e.wireTriggersLocked(ent)
	}
	return nil
}

// Activate enables or disables an orchestration's triggers without
// removing its definition.
func (e *Engine) Activate(id string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.entries[id]
	if !ok {
		return ErrNotFound
	}
	if ent.enabled == enabled {
		return nil
	}
	ent.enabled = enabled
	if enabled {
		e.wireTriggersLocked(ent)
	} else {
		for _, unsub := range ent.unsubs {
			unsub()
		}
		ent.unsubs = nil
	}
	return nil
}

// Forget removes an orchestration and tears down its triggers.
func (e *Engine) Forget(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.entries[id]
	if !ok {
		return false
	}
	e.teardownLocked(ent)
	delete(e.entries, id)
	return true
}

func (e *Engine) teardownLocked(ent *entry) {
	for _, unsub := range ent.unsubs {
		unsub()
	}
	ent.unsubs = nil
}

func (e *Engine) timeFormationID(orchID string, idx int) string {
	return fmt.Sprintf("orchestration::%s::trigger::%d", orchID, idx)
}

// nextDailyDelay returns how long to wait until the next occurrence of
// timeOfDay ("HH:MM", in now's location), rolling over to tomorrow if
// that time has already passed today.
func nextDailyDelay(timeOfDay string, now time.Time) (time.Duration, error) {
	t, err := time.Parse("15:04", timeOfDay)
	if err != nil {
		return 0, fmt.Errorf("orchestration: invalid TimeOfDay %q: %w", timeOfDay, err)
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now), nil
}

// wireTriggersLocked subscribes channel triggers and schedules time
// triggers. Condition triggers are evaluated lazily by Tick; external
// triggers need no wiring, Call already handles them.
func (e *Engine) wireTriggersLocked(ent *entry) {
	for idx, trig := range ent.cfg.Triggers {
		switch trig.Kind {
		case TriggerChannel:
			if e.subs == nil {
				continue
			}
			for _, chID := range trig.Channels {
				chID := chID
				unsub, err := e.subs.On(chID, func(ctx context.Context, payload any) (any, error) {
					e.run(ctx, ent, TriggerChannel, payload)
					return nil, nil
				})
				if err != nil {
					e.logger.ErrorContext(context.Background(), "orchestration: failed to subscribe channel trigger",
						slog.String("orchestration_id", ent.cfg.ID), slog.String("channel_id", chID), slog.String("error", err.Error()))
					continue
				}
				ent.unsubs = append(ent.unsubs, unsub)
			}
		case TriggerTime:
			if e.sched == nil {
				continue
			}
			formationID := e.timeFormationID(ent.cfg.ID, idx)

			delay, interval, repeat := trig.Delay, trig.Interval, trig.Repeat
			if trig.TimeOfDay != "" {
				d, err := nextDailyDelay(trig.TimeOfDay, time.Now())
				if err != nil {
					e.logger.ErrorContext(context.Background(), "orchestration: invalid TimeOfDay trigger",
						slog.String("orchestration_id", ent.cfg.ID), slog.String("time_of_day", trig.TimeOfDay), slog.String("error", err.Error()))
					continue
				}
				delay = d
				interval = 24 * time.Hour
				repeat = timekeeper.RepeatInfinite
			}
			if repeat == 0 {
				repeat = timekeeper.RepeatInfinite
			}

			_, err := e.sched.Keep(formationID, delay, interval, repeat, nil,
				func(ctx context.Context, _ string, payload any) error {
					e.run(ctx, ent, TriggerTime, payload)
					return nil
				}, timekeeper.AdaptConfig{})
			if err != nil {
				e.logger.ErrorContext(context.Background(), "orchestration: failed to schedule time trigger",
					slog.String("orchestration_id", ent.cfg.ID), slog.String("error", err.Error()))
				continue
			}
			sched := e.sched
			ent.unsubs = append(ent.unsubs, func() { sched.Forget(formationID) })
		case TriggerCondition, TriggerExternal:
			// condition triggers are polled by Tick; external triggers need
			// no subscription, Call already serves them.
		}
	}
}

// Tick evaluates every enabled orchestration's condition triggers once.
// The bus calls this on each breathing state transition (pattern change or
// recuperation enter/exit), not on every sample.
func (e *Engine) Tick(ctx context.Context) {
	e.mu.RLock()
	entries := make([]*entry, 0, len(e.entries))
	for _, ent := range e.entries {
		if ent.enabled {
			entries = append(entries, ent)
		}
	}
	e.mu.RUnlock()

	for _, ent := range entries {
		for idx, trig := range ent.cfg.Triggers {
			if trig.Kind != TriggerCondition || trig.Condition == nil {
				continue
			}
			e.mu.Lock()
			last, hasLast := ent.lastConditionFire[idx]
			e.mu.Unlock()
			if trig.Debounce > 0 && hasLast && time.Since(last) < trig.Debounce {
				continue
			}

			probe := newRunContext(ctx, ent.cfg.ID, TriggerCondition, nil)
			ok, err := trig.Condition(probe)
			if err != nil || !ok {
				continue
			}

			e.mu.Lock()
			ent.lastConditionFire[idx] = time.Now()
			e.mu.Unlock()

			e.run(ctx, ent, TriggerCondition, nil)
		}

		e.evaluateMonitoring(ctx, ent)
	}
}

// evaluateMonitoring runs ent's alert predicates and health checks, one
// tick at a time, and calls reportTo/onFailure channels the way the
// documented "these compose by calling channels" contract requires.
// A nil metrics source or caller silently skips alerts/health checks that
// need them, rather than panicking on an unwired collaborator.
func (e *Engine) evaluateMonitoring(ctx context.Context, ent *entry) {
	mon := &ent.cfg.Monitoring

	if len(mon.Alerts) > 0 && e.metrics != nil {
		snapshot := make(map[string]float64, len(mon.TrackMetrics)*3)
		for _, chID := range mon.TrackMetrics {
			calls, executions, errors := e.metrics.Snapshot(chID)
			snapshot[chID+".calls"] = calls
			snapshot[chID+".executions"] = executions
			snapshot[chID+".errors"] = errors
			if executions > 0 {
				snapshot[chID+".errorRate"] = errors / executions
			}
		}

		now := time.Now()
		for i := range mon.Alerts {
			alert := &mon.Alerts[i]
			if alert.Predicate == nil {
				continue
			}
			if alert.Cooldown > 0 && !alert.lastFired.IsZero() && now.Sub(alert.lastFired) < alert.Cooldown {
				continue
			}
			if !alert.Predicate(snapshot) {
				continue
			}
			alert.lastFired = now
			e.logger.WarnContext(ctx, "orchestration alert fired",
				slog.String("orchestration_id", ent.cfg.ID), slog.String("alert", alert.Name), slog.String("severity", alert.Severity))
			if mon.ReportTo != "" && e.caller != nil {
				e.caller.Call(ctx, mon.ReportTo, AlertFired{OrchestrationID: ent.cfg.ID, Alert: alert.Name, Severity: alert.Severity, Metrics: snapshot})
			}
		}
	}

	for i := range mon.HealthChecks {
		hc := &mon.HealthChecks[i]
		if hc.Condition == nil || hc.Interval <= 0 {
			continue
		}
		if !hc.lastChecked.IsZero() && time.Since(hc.lastChecked) < hc.Interval {
			continue
		}
		hc.lastChecked = time.Now()

		checkCtx := ctx
		cancel := func() {}
		if hc.Timeout > 0 {
			checkCtx, cancel = context.WithTimeout(ctx, hc.Timeout)
		}

		healthy, err := hc.Condition(checkCtx)
		cancel()
		if err == nil && healthy {
			continue
		}
		e.logger.WarnContext(ctx, "orchestration health check failed",
			slog.String("orchestration_id", ent.cfg.ID), slog.String("health_check", hc.Name))
		if hc.OnFailure != "" && e.caller != nil {
			e.caller.Call(ctx, hc.OnFailure, HealthCheckFailed{OrchestrationID: ent.cfg.ID, HealthCheck: hc.Name, Err: err})
		}
	}
}

// Call runs an orchestration once, synchronously, as an external trigger.
func (e *Engine) Call(ctx context.Context, id string, payload any) error {
	e.mu.RLock()
	ent, ok := e.entries[id]
	e.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	return e.run(ctx, ent, TriggerExternal, payload)
}

func (e *Engine) run(ctx context.Context, ent *entry, kind TriggerKind, payload any) error {
	if ent.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ent.cfg.Timeout)
		defer cancel()
	}

	runCtx := newRunContext(ctx, ent.cfg.ID, kind, payload)

	e.mu.Lock()
	ent.runningRuns++
	e.mu.Unlock()

	err := e.runSteps(runCtx, ent.cfg.Steps)

	e.mu.Lock()
	ent.runningRuns--
	ent.totalRuns++
	ent.lastRun = time.Now()
	if err != nil {
		ent.failedRuns++
		ent.consecutive++
	} else {
		ent.consecutive = 0
	}
	consecutive := ent.consecutive
	escalation := ent.cfg.ErrorHandling.Escalation
	e.mu.Unlock()

	if err != nil {
		e.logger.ErrorContext(ctx, "orchestration run failed",
			slog.String("orchestration_id", ent.cfg.ID), slog.String("error", err.Error()))

		if fallback := ent.cfg.ErrorHandling.Fallback; fallback != nil {
			fallback(runCtx)
		}
		for _, target := range ent.cfg.ErrorHandling.NotifyTargets {
			if e.caller != nil {
				e.caller.Call(ctx, target, runCtx)
			}
		}
		if escalation != nil && consecutive >= escalation.After && e.caller != nil {
			e.caller.Call(ctx, escalation.Action, runCtx)
		}
	}

	return err
}

// Overview is a point-in-time snapshot of all kept orchestrations,
// matching getSystemOverview's documented contract.
type Overview struct {
	ID          string
	Enabled     bool
	RunningRuns int
	TotalRuns   int64
	FailedRuns  int64
	LastRun     time.Time
}

// GetSystemOverview returns a snapshot of every kept orchestration.
func (e *Engine) GetSystemOverview() []Overview {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Overview, 0, len(e.entries))
	for id, ent := range e.entries {
		out = append(out, Overview{
			ID:          id,
			Enabled:     ent.enabled,
			RunningRuns: ent.runningRuns,
			TotalRuns:   ent.totalRuns,
			FailedRuns:  ent.failedRuns,
			LastRun:     ent.lastRun,
		})
	}
	return out
}
