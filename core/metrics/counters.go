package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Counters holds the call/execution/error tallies for one channel.
type Counters struct {
	totalCalls      atomic.Int64
	totalExecutions atomic.Int64
	totalErrors     atomic.Int64

	mu                sync.RWMutex
	lastExecutionTime time.Time
	lastCallTime      time.Time
}

// Snapshot is a point-in-time copy of Counters safe to hand to callers.
type Snapshot struct {
	TotalCalls        int64
	TotalExecutions   int64
	TotalErrors       int64
	LastExecutionTime time.Time
	LastCallTime      time.Time
}

// RecordCall increments the call tally. Invoked once per accepted call,
// before the pipeline runs.
func (c *Counters) RecordCall() {
	c.totalCalls.Add(1)
	c.mu.Lock()
	c.lastCallTime = time.Now()
	c.mu.Unlock()
}

// RecordExecution increments the execution tally and, on failure, the
// error tally. Invoked once per completed dispatch.
func (c *Counters) RecordExecution(ok bool) {
	c.totalExecutions.Add(1)
	if !ok {
		c.totalErrors.Add(1)
	}
	c.mu.Lock()
	c.lastExecutionTime = time.Now()
	c.mu.Unlock()
}

// Snapshot returns the current counter values.
func (c *Counters) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		TotalCalls:        c.totalCalls.Load(),
		TotalExecutions:   c.totalExecutions.Load(),
		TotalErrors:       c.totalErrors.Load(),
		LastExecutionTime: c.lastExecutionTime,
		LastCallTime:      c.lastCallTime,
	}
}
