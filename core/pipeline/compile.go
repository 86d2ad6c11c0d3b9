package pipeline

import "github.com/dmitrymomot/cyre/core/channel"

// Compile builds the fixed, ordered pipeline for a channel's configuration.
// Recompilation only happens on re-registration; the result is stored on
// the channel and reused for every call until then.
func Compile(cfg channel.Config) *Compiled {
	c := &Compiled{
		Priority:           cfg.Priority,
		HasThrottle:        cfg.Protection.Throttle > 0,
		Throttle:           cfg.Protection.Throttle,
		HasDebounce:        cfg.Protection.Debounce > 0,
		Debounce:           cfg.Protection.Debounce,
		MaxWait:            cfg.Protection.MaxWait,
		HasChangeDetection: cfg.Protection.DetectChanges,
		processing:         buildProcessingChain(cfg.Processing),
		middleware:         cfg.Processing.Middleware,
	}

	if cfg.Timing.Repeat != nil && *cfg.Timing.Repeat == 0 {
		c.RepeatZero = true
	}

	return c
}
