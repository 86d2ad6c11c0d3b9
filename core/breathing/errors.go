package breathing

import "errors"

var (
	// ErrMonitorAlreadyStarted is returned when Start is called twice.
	ErrMonitorAlreadyStarted = errors.New("breathing: monitor already started")

	// ErrMonitorNotStarted is returned when Stop is called before Start.
	ErrMonitorNotStarted = errors.New("breathing: monitor not started")

	// ErrHealthcheckFailed wraps a failing Healthcheck condition.
	ErrHealthcheckFailed = errors.New("breathing: healthcheck failed")

	// ErrSamplerNotRunning indicates the sampling loop is not active.
	ErrSamplerNotRunning = errors.New("breathing: sampler not running")
)
