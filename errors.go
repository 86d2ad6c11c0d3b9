package cyre

import "errors"

var (
	ErrNotFound       = errors.New("cyre: channel not found")
	ErrNotInitialized = errors.New("cyre: bus not initialized, call Init first")
	ErrShuttingDown   = errors.New("cyre: bus is shutting down")
	ErrMaxChainDepth  = errors.New("cyre: intra-link chain depth exceeded")
)
