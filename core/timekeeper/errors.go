package timekeeper

import "errors"

var (
	// ErrNegativeDuration is returned by Keep for a negative delay/interval.
	ErrNegativeDuration = errors.New("timekeeper: duration must not be negative")

	// ErrNilCallback is returned by Keep when callback is nil.
	ErrNilCallback = errors.New("timekeeper: callback must not be nil")

	// ErrEmptyID is returned by Keep when id is empty.
	ErrEmptyID = errors.New("timekeeper: id must not be empty")

	// ErrKeeperAlreadyStarted is returned when Start is called twice.
	ErrKeeperAlreadyStarted = errors.New("timekeeper: already started")

	// ErrKeeperNotStarted is returned when Stop is called before Start.
	ErrKeeperNotStarted = errors.New("timekeeper: not started")

	// ErrHealthcheckFailed wraps a failing Healthcheck condition.
	ErrHealthcheckFailed = errors.New("timekeeper: healthcheck failed")

	// ErrQuartzNotRunning indicates the tick loop is not active.
	ErrQuartzNotRunning = errors.New("timekeeper: quartz loop not running")
)
