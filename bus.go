package cyre

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/cyre/core/branch"
	"github.com/dmitrymomot/cyre/core/breathing"
	"github.com/dmitrymomot/cyre/core/channel"
	"github.com/dmitrymomot/cyre/core/dispatch"
	"github.com/dmitrymomot/cyre/core/healthcheck"
	"github.com/dmitrymomot/cyre/core/metrics"
	"github.com/dmitrymomot/cyre/core/orchestration"
	"github.com/dmitrymomot/cyre/core/pipeline"
	"github.com/dmitrymomot/cyre/core/registry"
	"github.com/dmitrymomot/cyre/core/timekeeper"
	"golang.org/x/sync/errgroup"
)

// Bus is one independent instance of the action bus. The package also
// exposes a lazily-initialized default instance through the package-level
// functions (Action, On, Call, ...) for callers who only need one.
type Bus struct {
	settings Settings
	logger   *slog.Logger

	registry  *registry.Registry
	breathing *breathing.Monitor
	keeper    *timekeeper.Keeper
	metrics   *metrics.Store
	branches  *branch.Manager
	orch      *orchestration.Engine

	initOnce sync.Once
	started  atomic.Bool
	stopping atomic.Bool

	group  *errgroup.Group
	cancel context.CancelFunc
}

// New constructs a Bus. Collaborators are wired but not started; call
// Init to start the breathing sampler and TimeKeeper quartz loop.
func New(opts ...Option) *Bus {
	o := &busOptions{settings: defaultSettings(), logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(o)
	}

	b := &Bus{
		settings: o.settings,
		logger:   o.logger,
		branches: branch.NewManager(),
		metrics:  metrics.NewStore(o.settings.HistoryCapacity),
	}

	breathingOpts := append([]breathing.Option{
		breathing.WithRateBounds(o.settings.TimeKeeperRateMin, o.settings.TimeKeeperRateMax),
		breathing.WithSampleInterval(o.settings.BreathingSampleRate),
		breathing.WithLogger(o.logger),
	}, o.breathingOpts...)
	b.breathing = breathing.NewMonitor(breathingOpts...)

	b.keeper = timekeeper.New(
		timekeeper.WithRateFunc(func() time.Duration { return b.breathing.Snapshot().CurrentRate }),
		timekeeper.WithStressFunc(func() float64 { return b.breathing.Snapshot().Stress }),
		timekeeper.WithKeeperLogger(b.logger),
		timekeeper.WithKeeperShutdownTimeout(o.settings.ShutdownTimeout),
	)

	b.registry = registry.New(b.keeper)
	b.orch = orchestration.New(callerFunc(b.Call), b.registry, b.keeper,
		orchestration.WithLogger(b.logger),
		orchestration.WithMetrics(metricsSource{b.metrics}),
	)

	return b
}

// callerFunc adapts Bus.Call to orchestration.Caller.
type callerFunc func(ctx context.Context, id string, payload any) channel.Response

func (f callerFunc) Call(ctx context.Context, id string, payload any) channel.Response {
	return f(ctx, id, payload)
}

// metricsSource adapts metrics.Store to orchestration.MetricsSource, so
// Monitoring.Alerts predicates can read a channel's call/execution/error
// tallies without the orchestration package importing core/metrics.
type metricsSource struct{ store *metrics.Store }

func (m metricsSource) Snapshot(channelID string) (calls, executions, errors float64) {
	s := m.store.Counters(channelID).Snapshot()
	return float64(s.TotalCalls), float64(s.TotalExecutions), float64(s.TotalErrors)
}

// Init starts the breathing sampler, TimeKeeper quartz loop, and the
// condition-trigger pump, coordinating their lifetimes with an
// errgroup.Group the way the teacher's own long-running services compose
// their background loops.
func (b *Bus) Init(ctx context.Context) error {
	b.initOnce.Do(func() {
		runCtx, cancel := context.WithCancel(ctx)
		b.cancel = cancel

		g, runCtx := errgroup.WithContext(runCtx)
		b.group = g

		g.Go(func() error {
			if err := b.breathing.Start(runCtx); err != nil && runCtx.Err() == nil {
				b.logger.ErrorContext(runCtx, "breathing monitor stopped", slog.String("error", err.Error()))
				return err
			}
			return nil
		})
		g.Go(func() error {
			if err := b.keeper.Start(runCtx); err != nil && runCtx.Err() == nil {
				b.logger.ErrorContext(runCtx, "timekeeper stopped", slog.String("error", err.Error()))
				return err
			}
			return nil
		})
		g.Go(func() error {
			b.pumpConditionTicks(runCtx)
			return nil
		})

		b.started.Store(true)
	})
	return nil
}

// Shutdown stops the breathing sampler and TimeKeeper, releasing all
// resources. Safe to call more than once.
func (b *Bus) Shutdown(ctx context.Context) error {
	if !b.stopping.CompareAndSwap(false, true) {
		return nil
	}
	if !b.started.Load() {
		return nil
	}

	var firstErr error
	if err := b.breathing.Stop(); err != nil {
		firstErr = err
	}
	if err := b.keeper.Stop(); err != nil && firstErr == nil {
		firstErr = err
	}
	b.cancel()

	done := make(chan struct{})
	go func() { _ = b.group.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(b.settings.ShutdownTimeout):
	case <-ctx.Done():
	}

	return firstErr
}

// Action registers or re-registers a channel. See core/registry.Registry.Action.
func (b *Bus) Action(cfg channel.Config) channel.Response {
	return b.registry.Action(cfg)
}

// On subscribes handler to id, returning an unsubscribe function.
func (b *Bus) On(id string, handler channel.HandlerFunc) (func(), error) {
	return b.registry.On(id, handler)
}

// Forget removes a channel entirely, including its counters and history.
func (b *Bus) Forget(id string) bool {
	ok := b.registry.Forget(id)
	b.metrics.Forget(id)
	return ok
}

// Get returns a channel's current configuration.
func (b *Bus) Get(id string) (channel.Config, bool) {
	ch, ok := b.registry.Get(id)
	if !ok {
		return channel.Config{}, false
	}
	return ch.Config(), true
}

// GetPrevious returns the last payload forwarded to a channel's handlers.
func (b *Bus) GetPrevious(id string) (any, bool) {
	ch, ok := b.registry.Get(id)
	if !ok {
		return nil, false
	}
	return ch.State().LastDispatched()
}

// Lock blocks further Action registrations. Call/On continue to function.
func (b *Bus) Lock() {
	b.registry.Lock()
}

// Clear removes every channel, handler, and formation, keeping breathing
// state intact, per the documented clear() contract.
func (b *Bus) Clear() {
	b.registry.Clear()
	b.metrics.Clear()
}

// GetBreathingState returns a read-only snapshot of the breathing monitor.
func (b *Bus) GetBreathingState() breathing.State {
	return b.breathing.Snapshot()
}

// InjectTestStress overrides the breathing sampler's output for
// deterministic tests.
func (b *Bus) InjectTestStress(stress float64) {
	b.breathing.InjectTestStress(stress)
}

// ClearTestStress removes a previously injected stress override.
func (b *Bus) ClearTestStress() {
	b.breathing.ClearTestStress()
}

// GetHistory returns recorded call results for one channel, or every
// channel's if id is empty, newest-first.
func (b *Bus) GetHistory(id string) []metrics.Entry {
	return b.metrics.GetHistory(id)
}

// ClearHistory clears one channel's history, or every channel's if id is
// empty.
func (b *Bus) ClearHistory(id string) {
	b.metrics.ClearHistory(id)
}

// Branch returns the top-level (or nested, via BranchHandle.Use) branch
// proxy for id, whose Action/On/Call/Get/Forget prepend the branch's path
// to every channel id.
func (b *Bus) Branch(id string) *BranchHandle {
	return &BranchHandle{bus: b, node: b.branches.Use(nil, id)}
}

// Orchestration exposes the orchestration engine's lifecycle surface.
func (b *Bus) Orchestration() *orchestration.Engine {
	return b.orch
}

// Healthcheck reports whether the bus's background components — the
// breathing sampler and the TimeKeeper quartz loop — are running, via
// core/healthcheck.All aggregating their individual Healthcheck methods.
func (b *Bus) Healthcheck(ctx context.Context) error {
	return healthcheck.All(ctx, b.breathing.Healthcheck, b.keeper.Healthcheck)
}

// Tick drives the breathing-tick-evaluated condition triggers. Callers
// that run their own breathing sampler outside Init should invoke this on
// every sample; Init wires it automatically via the breathing monitor's
// subscription.
func (b *Bus) Tick(ctx context.Context) {
	b.orch.Tick(ctx)
}

// pumpConditionTicks evaluates orchestration condition triggers on every
// breathing state transition, per §4.7's "evaluated on each breathing
// tick" contract.
func (b *Bus) pumpConditionTicks(ctx context.Context) {
	sub := b.breathing.Subscribe(ctx)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-sub.Receive(ctx):
			if !ok {
				return
			}
			b.orch.Tick(ctx)
		}
	}
}

func debounceFormationID(globalID string) string {
	return globalID + "::debounce"
}

func intervalFormationID(globalID string) string {
	return globalID
}
