package orchestration

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrymomot/cyre/core/channel"
)

// TriggerKind selects how an orchestration is started.
type TriggerKind string

const (
	TriggerChannel   TriggerKind = "channel"
	TriggerTime      TriggerKind = "time"
	TriggerCondition TriggerKind = "condition"
	TriggerExternal  TriggerKind = "external"
)

// Trigger configures one way an orchestration can start a run.
type Trigger struct {
	Kind TriggerKind

	// Channel trigger: one or more channel ids to subscribe to.
	Channels []string

	// Time trigger: either Interval+Repeat, or a daily wall-clock fire
	// at TimeOfDay ("HH:MM"), scheduled against the current day (or the
	// next day, if TimeOfDay has already passed today) and then every
	// 24h after. When both are set, TimeOfDay wins and Interval/Repeat
	// are ignored for scheduling purposes.
	Interval   time.Duration
	Repeat     int
	TimeOfDay  string
	Delay      time.Duration

	// Condition trigger: polled once per tick (see Engine.Tick).
	Condition func(ctx *RunContext) (bool, error)

	// Debounce/Throttle reuse the channel package's protection vocabulary.
	// Only condition triggers honour Debounce: Tick skips a condition
	// trigger that fired less than Debounce ago. Throttle is not read, and
	// channel triggers apply neither.
	Debounce time.Duration
	Throttle time.Duration
}

// StepKind selects a workflow step's behavior.
type StepKind string

const (
	StepAction     StepKind = "action"
	StepCondition  StepKind = "condition"
	StepParallel   StepKind = "parallel"
	StepSequential StepKind = "sequential"
	StepDelay      StepKind = "delay"
	StepLoop       StepKind = "loop"
)

// OnErrorPolicy governs what happens when a step fails or a condition
// step's predicate is not met.
type OnErrorPolicy string

const (
	OnErrorAbort    OnErrorPolicy = "abort"
	OnErrorRetry    OnErrorPolicy = "retry"
	OnErrorContinue OnErrorPolicy = "continue"
	OnErrorSkip     OnErrorPolicy = "skip"
)

// TargetFunc selects the channel ids an action step calls, as a function
// of the run context, so targets can vary per run.
type TargetFunc func(ctx *RunContext) []string

// PayloadFunc computes an action step's payload from the run context.
type PayloadFunc func(ctx *RunContext) any

// LoopUntil is the terminating predicate for a loop step.
type LoopUntil func(ctx *RunContext) (bool, error)

// Step is one node of a workflow tree.
type Step struct {
	Name string
	Kind StepKind

	// action
	Targets []string
	TargetFn TargetFunc
	Payload  any
	PayloadFn PayloadFunc

	// condition
	Predicate func(ctx *RunContext) (bool, error)

	// parallel / sequential / condition(nested) / loop
	Steps []Step

	// delay
	Timeout time.Duration

	// loop
	Until    LoopUntil
	MaxIters int

	// error handling
	Retries  int
	OnError  OnErrorPolicy
	StepTimeout time.Duration
}

// ErrorHandling is the orchestration-level failure policy.
type ErrorHandling struct {
	Fallback     func(ctx *RunContext)
	NotifyTargets []string
	Escalation   *Escalation
}

// Escalation names a channel to call after a run has failed repeatedly.
type Escalation struct {
	After  int
	Action string
}

// Monitoring is the observability config attached to an orchestration.
type Monitoring struct {
	TrackMetrics []string
	ReportTo     string
	Alerts       []Alert
	HealthChecks []HealthCheck
}

// Alert fires when Predicate is true, subject to Cooldown between fires.
type Alert struct {
	Name      string
	Predicate func(metrics map[string]float64) bool
	Cooldown  time.Duration
	Severity  string

	lastFired time.Time
}

// AlertFired is the payload reportTo channels receive when an Alert's
// predicate fires.
type AlertFired struct {
	OrchestrationID string
	Alert           string
	Severity        string
	Metrics         map[string]float64
}

// HealthCheckFailed is the payload onFailure channels receive when a
// HealthCheck's condition returns false or an error.
type HealthCheckFailed struct {
	OrchestrationID string
	HealthCheck     string
	Err             error
}

// HealthCheck is polled at Interval; OnFailure names a channel to call.
type HealthCheck struct {
	Name      string
	Interval  time.Duration
	Timeout   time.Duration
	Condition func(ctx context.Context) (bool, error)
	OnFailure string

	lastChecked time.Time
}

// Config is a named orchestration definition.
type Config struct {
	ID       string
	Triggers []Trigger
	Steps    []Step

	ErrorHandling ErrorHandling
	Monitoring    Monitoring

	Priority channel.Priority
	Timeout  time.Duration
	Enabled  bool
}

func (c Config) validate() error {
	if c.ID == "" {
		return ErrEmptyID
	}
	if len(c.Triggers) == 0 {
		return ErrNoTriggers
	}
	if len(c.Steps) == 0 {
		return ErrNoSteps
	}
	return nil
}

// StepHistoryEntry records one executed step within a run.
type StepHistoryEntry struct {
	StepName   string
	Success    bool
	Result     any
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// RunContext is passed to every step and trigger predicate during one run.
type RunContext struct {
	Context         context.Context
	OrchestrationID string
	TriggerKind     TriggerKind
	TriggerPayload  any
	StartTime       time.Time

	mu          sync.Mutex
	stepHistory []StepHistoryEntry
	variables   map[string]any
}

func newRunContext(ctx context.Context, id string, kind TriggerKind, payload any) *RunContext {
	return &RunContext{
		Context:         ctx,
		OrchestrationID: id,
		TriggerKind:     kind,
		TriggerPayload:  payload,
		StartTime:       time.Now(),
		variables:       make(map[string]any),
	}
}

// recordStep appends one entry to this run's step history.
func (r *RunContext) recordStep(e StepHistoryEntry) {
	r.mu.Lock()
	r.stepHistory = append(r.stepHistory, e)
	r.mu.Unlock()
}

// StepHistory returns a copy of the steps executed so far in this run.
func (r *RunContext) StepHistory() []StepHistoryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]StepHistoryEntry, len(r.stepHistory))
	copy(out, r.stepHistory)
	return out
}

// SetVariable stores a value in this run's shared variable bag.
func (r *RunContext) SetVariable(key string, value any) {
	r.mu.Lock()
	r.variables[key] = value
	r.mu.Unlock()
}

// Variable reads a value from this run's shared variable bag.
func (r *RunContext) Variable(key string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.variables[key]
	return v, ok
}
