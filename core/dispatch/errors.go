package dispatch

import "errors"

var (
	// ErrNoHandlers is returned when Run is called with an empty handler set.
	ErrNoHandlers = errors.New("dispatch: no handlers registered")

	// ErrDispatchTimeout is returned when a dispatch group exceeds its
	// configured timeout.
	ErrDispatchTimeout = errors.New("dispatch: timeout exceeded")

	// ErrChainDepthExceeded is returned when an intra-link chain exceeds
	// the configured depth bound, preventing infinite handler loops.
	ErrChainDepthExceeded = errors.New("dispatch: intra-link chain depth exceeded")
)
