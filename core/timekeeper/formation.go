package timekeeper

import (
	"context"
	"time"
)

// Callback is invoked when a formation fires.
type Callback func(ctx context.Context, formationID string, payload any) error

// AdaptConfig lets a formation's effective interval stretch under measured
// system stress instead of firing on a fixed cadence regardless of load.
type AdaptConfig struct {
	Enabled          bool
	StressMultiplier float64
	PauseThreshold   float64
	ResumeThreshold  float64
	// Critical formations are never paused regardless of stress.
	Critical bool
}

// Formation is a scheduled, possibly-repeating dispatch owned by the
// Keeper. At most one formation is live per id; a second Keep for the same
// id replaces it.
type Formation struct {
	ID       string
	NextFire time.Time
	// Interval is the cadence for fires after the first one. Zero means
	// the formation does not repeat.
	Interval time.Duration
	// Remaining is the number of fires left; RepeatInfinite for unbounded.
	Remaining int
	Payload   any
	Adapt     AdaptConfig

	callback Callback
	baseInterval time.Duration
	stretched    bool
	seq          uint64
	index        int // heap index, maintained by container/heap
	forgotten    bool
}

// RepeatInfinite marks a formation with no fire-count limit.
const RepeatInfinite = -1

// Clone returns a value copy suitable for exposing to callers without
// letting them mutate scheduler-owned state.
func (f *Formation) Clone() Formation {
	return Formation{
		ID:        f.ID,
		NextFire:  f.NextFire,
		Interval:  f.Interval,
		Remaining: f.Remaining,
		Payload:   f.Payload,
		Adapt:     f.Adapt,
	}
}
