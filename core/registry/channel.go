package registry

import (
	"sync"

	"github.com/dmitrymomot/cyre/core/channel"
	"github.com/dmitrymomot/cyre/core/pipeline"
)

// subscription pairs a handler with the id used to unsubscribe it later.
// Order in Channel.handlers is insertion order, matching the documented
// "handler order is insertion order" contract.
type subscription struct {
	id      uint64
	handler channel.HandlerFunc
}

// Channel is one registered channel's runtime state: its config, compiled
// pipeline, protection/debounce bookkeeping, and subscribed handlers. The
// registry owns its lifetime; the bus reads it on every call.
type Channel struct {
	mu sync.RWMutex

	cfg      channel.Config
	compiled *pipeline.Compiled
	state    *pipeline.State

	handlers  []subscription
	operator  channel.Strategy
}

func newChannel(cfg channel.Config) *Channel {
	ch := &Channel{
		cfg:      cfg,
		compiled: pipeline.Compile(cfg),
		state:    pipeline.NewState(),
	}
	ch.recomputeOperatorLocked()
	return ch
}

// recomputeOperatorLocked derives the execution-operator selection from
// the current handler count and the channel's declared dispatch strategy,
// per §4.6: a single handler always dispatches via "single"; with two or
// more, the declared strategy applies, defaulting to "parallel" when none
// was declared.
func (c *Channel) recomputeOperatorLocked() {
	switch len(c.handlers) {
	case 0:
		c.operator = ""
	case 1:
		c.operator = channel.StrategySingle
	default:
		if c.cfg.Dispatch.Strategy != "" {
			c.operator = c.cfg.Dispatch.Strategy
		} else {
			c.operator = channel.StrategyParallel
		}
	}
}

// Config returns a copy of the channel's current configuration.
func (c *Channel) Config() channel.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// Compiled returns the currently compiled pipeline. Valid until the next
// re-registration.
func (c *Channel) Compiled() *pipeline.Compiled {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.compiled
}

// State returns the channel's per-call protection/change-detection state.
func (c *Channel) State() *pipeline.State {
	return c.state
}

// GlobalID returns the branch-prefixed id this channel was registered
// under.
func (c *Channel) GlobalID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg.GlobalID()
}

// Handlers returns a snapshot of the currently subscribed handlers in
// insertion order.
func (c *Channel) Handlers() []channel.HandlerFunc {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]channel.HandlerFunc, len(c.handlers))
	for i, s := range c.handlers {
		out[i] = s.handler
	}
	return out
}

// HandlerCount reports how many handlers are currently subscribed.
func (c *Channel) HandlerCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.handlers)
}

// ExecutionOperator returns the dispatch strategy recomputed on the last
// subscribe/unsubscribe.
func (c *Channel) ExecutionOperator() channel.Strategy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.operator
}

func (c *Channel) addHandler(id uint64, handler channel.HandlerFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, subscription{id: id, handler: handler})
	c.recomputeOperatorLocked()
}

func (c *Channel) removeHandler(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, s := range c.handlers {
		if s.id == id {
			c.handlers = append(c.handlers[:i], c.handlers[i+1:]...)
			break
		}
	}
	c.recomputeOperatorLocked()
}

func (c *Channel) reconfigure(cfg channel.Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
	c.compiled = pipeline.Compile(cfg)
	c.recomputeOperatorLocked()
	c.state.Reset()
}
