package cyre

import (
	"context"
	"sync"

	"github.com/dmitrymomot/cyre/core/channel"
	"github.com/dmitrymomot/cyre/core/orchestration"
)

var (
	defaultOnce sync.Once
	defaultBus  *Bus
)

// Default returns the package's lazily-initialized default Bus, constructed
// with New() and started the first time any of this file's package-level
// functions (or Default itself) is called.
func Default() *Bus {
	defaultOnce.Do(func() {
		defaultBus = New()
		_ = defaultBus.Init(context.Background())
	})
	return defaultBus
}

// Action registers or re-registers a channel on the default Bus.
func Action(cfg channel.Config) channel.Response {
	return Default().Action(cfg)
}

// On subscribes handler to id on the default Bus.
func On(id string, handler channel.HandlerFunc) (func(), error) {
	return Default().On(id, handler)
}

// Call submits payload to id on the default Bus.
func Call(ctx context.Context, id string, payload any) channel.Response {
	return Default().Call(ctx, id, payload)
}

// Forget removes a channel entirely from the default Bus.
func Forget(id string) bool {
	return Default().Forget(id)
}

// Get returns a channel's current configuration from the default Bus.
func Get(id string) (channel.Config, bool) {
	return Default().Get(id)
}

// Clear removes every channel, handler, and formation on the default Bus.
func Clear() {
	Default().Clear()
}

// Orchestration exposes the default Bus's orchestration engine.
func Orchestration() *orchestration.Engine {
	return Default().Orchestration()
}

// Shutdown stops the default Bus, if it was ever initialized.
func Shutdown(ctx context.Context) error {
	if defaultBus == nil {
		return nil
	}
	return defaultBus.Shutdown(ctx)
}
