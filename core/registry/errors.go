package registry

import "errors"

var (
	ErrChannelNotFound = errors.New("registry: channel not found")
	ErrNilHandler      = errors.New("registry: nil handler")
	ErrRegistryLocked  = errors.New("registry: locked, registration rejected")
)
