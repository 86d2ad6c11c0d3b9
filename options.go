package cyre

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/cyre/core/breathing"
	"github.com/dmitrymomot/cyre/core/config"
)

// Settings are the bus-wide tunables loadable from the environment via
// core/config.Load, following the same type-safe env-struct pattern the
// teacher's own services use for configuration.
type Settings struct {
	HistoryCapacity      int           `env:"CYRE_HISTORY_CAPACITY" envDefault:"100"`
	BreathingSampleRate  time.Duration `env:"CYRE_BREATHING_SAMPLE_INTERVAL" envDefault:"250ms"`
	TimeKeeperRateMin    time.Duration `env:"CYRE_TIMEKEEPER_RATE_MIN" envDefault:"50ms"`
	TimeKeeperRateMax    time.Duration `env:"CYRE_TIMEKEEPER_RATE_MAX" envDefault:"5s"`
	ShutdownTimeout      time.Duration `env:"CYRE_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MaxChainDepth        int           `env:"CYRE_MAX_CHAIN_DEPTH" envDefault:"10"`
}

// Option configures a Bus at construction time.
type Option func(*busOptions)

type busOptions struct {
	settings      Settings
	logger        *slog.Logger
	breathingOpts []breathing.Option
}

// WithSettings overrides the bus-wide tunables. Default is Settings'
// zero-value-expanded defaults (as env:"..." envDefault tags describe).
func WithSettings(s Settings) Option {
	return func(o *busOptions) { o.settings = s }
}

// WithLogger attaches a structured logger shared by every collaborator
// that accepts one. Default is a discard logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *busOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithBreathingOptions passes additional options through to the
// underlying breathing monitor (e.g. WithRecuperationThresholds).
func WithBreathingOptions(opts ...breathing.Option) Option {
	return func(o *busOptions) { o.breathingOpts = append(o.breathingOpts, opts...) }
}

// defaultSettings loads Settings through core/config.Load, so the
// envDefault tags above are the single source of truth for defaults and
// CYRE_* environment variables (plus a process-local .env file) can
// override any of them, the same way the teacher's services configure
// themselves. A malformed environment variable is rare enough, and this
// runs too early for a caller-supplied logger, that the zero/partial
// result is returned rather than panicking construction.
func defaultSettings() Settings {
	var s Settings
	_ = config.Load(&s)
	return s
}
