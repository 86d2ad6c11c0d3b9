package timekeeper

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// RateFunc supplies the current tick cadence, normally the breathing
// monitor's CurrentRate clamped to [RATE_MIN, RATE_MAX].
type RateFunc func() time.Duration

// StressFunc supplies the current combined stress sample in [0,1] for
// breathing-adapted formations.
type StressFunc func() float64

// KeeperOption configures a Keeper.
type KeeperOption func(*keeperOptions)

type keeperOptions struct {
	rate            RateFunc
	stress          StressFunc
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

// WithRateFunc overrides the tick cadence source. Default is a fixed 100ms.
func WithRateFunc(fn RateFunc) KeeperOption {
	return func(o *keeperOptions) {
		if fn != nil {
			o.rate = fn
		}
	}
}

// WithStressFunc overrides the stress source consulted for breathing
// adaptation. Default always reports zero stress.
func WithStressFunc(fn StressFunc) KeeperOption {
	return func(o *keeperOptions) {
		if fn != nil {
			o.stress = fn
		}
	}
}

// WithKeeperLogger attaches a structured logger. Default is a discard logger.
func WithKeeperLogger(logger *slog.Logger) KeeperOption {
	return func(o *keeperOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithKeeperShutdownTimeout bounds how long Stop waits for in-flight ticks.
func WithKeeperShutdownTimeout(d time.Duration) KeeperOption {
	return func(o *keeperOptions) {
		if d > 0 {
			o.shutdownTimeout = d
		}
	}
}

// Keeper is the process-wide formation scheduler.
type Keeper struct {
	mu    sync.Mutex
	h     formationHeap
	index map[string]*Formation
	seq   uint64

	rate            RateFunc
	stress          StressFunc
	logger          *slog.Logger
	shutdownTimeout time.Duration

	ctx     context.Context
	cancel  context.CancelFunc
	running atomic.Bool
	wg      sync.WaitGroup

	formationsKept atomic.Int64
	fires          atomic.Int64
	fireErrors     atomic.Int64
}

// New constructs a Keeper. Call Start or Run to begin the tick loop.
func New(opts ...KeeperOption) *Keeper {
	options := &keeperOptions{
		rate:            func() time.Duration { return 100 * time.Millisecond },
		stress:          func() float64 { return 0 },
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		shutdownTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Keeper{
		index:           make(map[string]*Formation),
		rate:            options.rate,
		stress:          options.stress,
		logger:          options.logger,
		shutdownTimeout: options.shutdownTimeout,
	}
}

// Keep creates or replaces the formation for id. delay is the time until
// the first fire; interval (zero means none) is the cadence for fires
// after that. repeat is the remaining fire count (RepeatInfinite for
// unbounded, 0 yields at most one execution per the documented open
// question in the design notes).
func (k *Keeper) Keep(id string, delay, interval time.Duration, repeat int, payload any, callback Callback, adapt AdaptConfig) (Formation, error) {
	if id == "" {
		return Formation{}, ErrEmptyID
	}
	if callback == nil {
		return Formation{}, ErrNilCallback
	}
	if delay < 0 || interval < 0 {
		return Formation{}, ErrNegativeDuration
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if existing, ok := k.index[id]; ok {
		k.removeLocked(existing)
	}

	k.seq++
	f := &Formation{
		ID:           id,
		NextFire:     time.Now().Add(delay),
		Interval:     interval,
		Remaining:    repeat,
		Payload:      payload,
		Adapt:        adapt,
		callback:     callback,
		baseInterval: interval,
		seq:          k.seq,
	}

	heap.Push(&k.h, f)
	k.index[id] = f
	k.formationsKept.Add(1)

	k.logger.InfoContext(context.Background(), "formation kept",
		slog.String("formation_id", id),
		slog.Duration("delay", delay),
		slog.Duration("interval", interval),
		slog.Int("repeat", repeat))

	return f.Clone(), nil
}

// Forget removes the formation if present. Idempotent; never errors.
func (k *Keeper) Forget(id string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	f, ok := k.index[id]
	if !ok {
		return
	}
	k.removeLocked(f)
}

// removeLocked must be called with mu held.
func (k *Keeper) removeLocked(f *Formation) {
	f.forgotten = true
	delete(k.index, f.ID)
	if f.index >= 0 && f.index < len(k.h) && k.h[f.index] == f {
		heap.Remove(&k.h, f.index)
	}
}

// Get returns the live formation for id, if any.
func (k *Keeper) Get(id string) (Formation, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	f, ok := k.index[id]
	if !ok {
		return Formation{}, false
	}
	return f.Clone(), true
}

// Status is a snapshot of the keeper's current load.
type Status struct {
	Formations       int
	ActiveFormations int
	QuartzRunning    bool
	InRecuperation   bool
}

// Status returns a snapshot of {formations, activeFormations,
// quartzRunning, inRecuperation}.
func (k *Keeper) Status() Status {
	k.mu.Lock()
	n := len(k.index)
	k.mu.Unlock()

	return Status{
		Formations:       n,
		ActiveFormations: n,
		QuartzRunning:    k.running.Load(),
		InRecuperation:   k.stress() >= 0.75,
	}
}

// Reset cancels all formations.
func (k *Keeper) Reset() {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.h = nil
	k.index = make(map[string]*Formation)
}

// Wait is a real-time sleep helper for tests, cancellable via ctx.
func (k *Keeper) Wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start runs the tick loop until ctx is cancelled. Blocking; use Run for
// errgroup-compatible lifecycle management.
func (k *Keeper) Start(ctx context.Context) error {
	k.mu.Lock()
	if k.cancel != nil {
		k.mu.Unlock()
		return fmt.Errorf("timekeeper: %w", ErrKeeperAlreadyStarted)
	}
	k.ctx, k.cancel = context.WithCancel(ctx)
	k.mu.Unlock()

	k.running.Store(true)
	defer k.running.Store(false)

	k.logger.InfoContext(ctx, "timekeeper quartz loop started")

	for {
		rate := k.rate()
		if rate <= 0 {
			rate = 100 * time.Millisecond
		}
		timer := time.NewTimer(rate)

		select {
		case <-k.ctx.Done():
			timer.Stop()
			return k.ctx.Err()
		case <-timer.C:
			k.tickWithWait()
		}
	}
}

// Stop halts the tick loop.
func (k *Keeper) Stop() error {
	k.mu.Lock()
	if k.cancel == nil {
		k.mu.Unlock()
		return fmt.Errorf("timekeeper: %w", ErrKeeperNotStarted)
	}
	cancel := k.cancel
	k.cancel = nil
	k.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		k.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(k.shutdownTimeout):
		return fmt.Errorf("timekeeper: shutdown timeout exceeded after %s", k.shutdownTimeout)
	}
}

// Run provides errgroup compatibility, matching the lifecycle shape carried
// by every other long-running component in this module.
func (k *Keeper) Run(ctx context.Context) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() { errCh <- k.Start(ctx) }()

		select {
		case <-ctx.Done():
			_ = k.Stop()
			<-errCh
			return nil
		case err := <-errCh:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

func (k *Keeper) tickWithWait() {
	k.mu.Lock()
	if k.cancel == nil {
		k.mu.Unlock()
		return
	}
	k.wg.Add(1)
	k.mu.Unlock()
	defer k.wg.Done()

	k.tick()
}

// tick pops every due formation, fires its callback, and reschedules any
// formation that still has fires remaining.
func (k *Keeper) tick() {
	now := time.Now()
	stress := k.stress()

	var due []*Formation

	k.mu.Lock()
	for len(k.h) > 0 && !k.h[0].NextFire.After(now) {
		f := heap.Pop(&k.h).(*Formation)
		if f.forgotten {
			continue
		}
		due = append(due, f)
	}
	k.mu.Unlock()

	for _, f := range due {
		k.fireAndReschedule(f, now, stress)
	}
}

func (k *Keeper) fireAndReschedule(f *Formation, now time.Time, stress float64) {
	k.fires.Add(1)
	if err := k.safeCallback(f); err != nil {
		k.fireErrors.Add(1)
		k.logger.ErrorContext(context.Background(), "formation callback failed",
			slog.String("formation_id", f.ID),
			slog.String("error", err.Error()))
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if f.forgotten {
		return
	}

	if f.Remaining > 0 {
		f.Remaining--
	}
	if f.Remaining == 0 {
		delete(k.index, f.ID)
		return
	}
	if f.Interval <= 0 {
		// one-shot delay-only formation that has now fired
		delete(k.index, f.ID)
		return
	}

	effective := f.baseInterval
	if f.Adapt.Enabled && !f.Adapt.Critical {
		if stress > f.Adapt.PauseThreshold {
			effective = time.Duration(float64(f.baseInterval) * f.Adapt.StressMultiplier)
			f.stretched = true
		} else if stress < f.Adapt.ResumeThreshold {
			effective = f.baseInterval
			f.stretched = false
		} else if f.stretched {
			effective = time.Duration(float64(f.baseInterval) * f.Adapt.StressMultiplier)
		}
	}
	f.Interval = effective
	f.NextFire = now.Add(effective)
	k.seq++
	f.seq = k.seq
	heap.Push(&k.h, f)
}

func (k *Keeper) safeCallback(f *Formation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			err = fmt.Errorf("formation callback panicked: %v\nstack trace:\n%s", r, stack)
		}
	}()
	return f.callback(context.Background(), f.ID, f.Payload)
}

// Stats mirrors the observability shape other long-lived components in
// this module expose.
type Stats struct {
	FormationsKept int64
	Fires          int64
	FireErrors     int64
	IsRunning      bool
}

// Stats returns current keeper statistics.
func (k *Keeper) Stats() Stats {
	return Stats{
		FormationsKept: k.formationsKept.Load(),
		Fires:          k.fires.Load(),
		FireErrors:     k.fireErrors.Load(),
		IsRunning:      k.running.Load(),
	}
}

// Healthcheck reports whether the quartz loop is running.
func (k *Keeper) Healthcheck(ctx context.Context) error {
	if !k.running.Load() {
		return errors.Join(ErrHealthcheckFailed, ErrQuartzNotRunning)
	}
	return nil
}
