package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrymomot/cyre/core/channel"
	"github.com/dmitrymomot/cyre/core/timekeeper"
)

// BreathingGate is the subset of the breathing monitor the recuperation
// gate needs. Defined here, rather than importing core/breathing directly,
// so the pipeline stays a leaf package.
type BreathingGate interface {
	AllowsPriority(p channel.Priority) bool
}

// Scheduler is the subset of timekeeper.Keeper the debounce step needs to
// collapse a burst of calls into one deferred dispatch.
type Scheduler interface {
	Keep(id string, delay, interval time.Duration, repeat int, payload any, callback timekeeper.Callback, adapt timekeeper.AdaptConfig) (timekeeper.Formation, error)
	Forget(id string)
}

// Resume is invoked when a debounced burst fires, after its window (or
// maxWait deadline) elapses. It must run the remaining processing steps,
// the timing decision, and the dispatch — the pipeline package only
// decides *that* a dispatch should happen, not how dispatch itself works.
type Resume func(ctx context.Context, payload any) error

// Env carries the per-call dependencies Execute needs.
type Env struct {
	ChannelID string
	Breathing BreathingGate
	Scheduler Scheduler
	OnDebounceFire Resume
}

// State is the per-channel mutable state the protection steps read and
// write. Registry owns one State per channel and passes a pointer into
// every Execute call for that channel.
type State struct {
	mu sync.Mutex

	lastExecutionTime time.Time
	lastCallTime      time.Time
	lastDispatched     any
	hasLastDispatched  bool

	burstStart   time.Time
	burstPending bool
	burstPayload any
}

// NewState constructs a zero-value per-channel runtime state.
func NewState() *State {
	return &State{}
}

// MarkDispatched records the time of a successful dispatch and the payload
// that was forwarded to it, for throttle and change-detection bookkeeping.
func (s *State) MarkDispatched(payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastExecutionTime = time.Now()
	s.lastDispatched = payload
	s.hasLastDispatched = true
}

// LastDispatched returns the payload forwarded to the most recent
// successful dispatch, matching getPrevious's contract.
func (s *State) LastDispatched() (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastDispatched, s.hasLastDispatched
}

// Reset clears all bookkeeping, used by clear()/forget().
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastExecutionTime = time.Time{}
	s.lastCallTime = time.Time{}
	s.lastDispatched = nil
	s.hasLastDispatched = false
	s.burstStart = time.Time{}
	s.burstPending = false
	s.burstPayload = nil
}

// Compiled is the fixed, ordered pipeline derived from a channel's config.
type Compiled struct {
	Priority channel.Priority

	RepeatZero bool

	HasThrottle bool
	Throttle    time.Duration

	HasDebounce bool
	Debounce    time.Duration
	MaxWait     time.Duration

	HasChangeDetection bool

	processing processingChain
	middleware []channel.MiddlewareFunc
}

// HasFastPath mirrors channel.Config.HasFastPath for a compiled pipeline:
// true when no step does anything.
func (c *Compiled) HasFastPath() bool {
	return !c.RepeatZero && !c.HasThrottle && !c.HasDebounce && !c.HasChangeDetection &&
		c.processing == nil && len(c.middleware) == 0
}
