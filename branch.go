package cyre

import (
	"context"

	"github.com/dmitrymomot/cyre/core/branch"
	"github.com/dmitrymomot/cyre/core/channel"
)

// BranchHandle is a namespaced proxy returned by Bus.Branch: its
// Action/On/Call/Get/Forget prepend the branch's path to every channel
// id, per §4.8's useBranch contract.
type BranchHandle struct {
	bus  *Bus
	node *branch.Branch
}

// Use returns the nested branch for id under this branch.
func (h *BranchHandle) Use(id string) *BranchHandle {
	return &BranchHandle{bus: h.bus, node: h.bus.branches.Use(h.node, id)}
}

// ID returns this branch's local id.
func (h *BranchHandle) ID() string { return h.node.ID() }

// Path returns this branch's full, '/'-joined path.
func (h *BranchHandle) Path() string { return h.node.Path() }

// IsActive reports whether the branch has not been destroyed. It reports
// false as soon as Destroy returns; only the channel sweep is asynchronous.
func (h *BranchHandle) IsActive() bool { return h.node.IsActive() }

// Action registers a channel under this branch's path.
func (h *BranchHandle) Action(cfg channel.Config) channel.Response {
	cfg.Path = h.node.Path()
	return h.bus.Action(cfg)
}

// On subscribes a handler to a channel under this branch's path.
func (h *BranchHandle) On(id string, handler channel.HandlerFunc) (func(), error) {
	return h.bus.On(h.node.Prefixed(id), handler)
}

// Call invokes a channel under this branch's path.
func (h *BranchHandle) Call(ctx context.Context, id string, payload any) channel.Response {
	return h.bus.Call(ctx, h.node.Prefixed(id), payload)
}

// Get returns a channel's configuration under this branch's path.
func (h *BranchHandle) Get(id string) (channel.Config, bool) {
	return h.bus.Get(h.node.Prefixed(id))
}

// Forget removes a channel under this branch's path.
func (h *BranchHandle) Forget(id string) bool {
	return h.bus.Forget(h.node.Prefixed(id))
}

// Destroy marks the branch (and its children) inactive and reports whether
// it was active. The channels under its path are swept asynchronously.
func (h *BranchHandle) Destroy() bool {
	prefix, ok := h.node.Destroy()
	if !ok {
		return false
	}
	go h.bus.sweepPrefix(prefix)
	return true
}

// sweepPrefix forgets every channel whose global id falls under prefix,
// the asynchronous half of Destroy.
func (b *Bus) sweepPrefix(prefix string) {
	for _, id := range b.registry.IDs() {
		if ownsPrefix(prefix, id) {
			b.registry.Forget(id)
		}
	}
}

func ownsPrefix(prefix, globalID string) bool {
	return len(globalID) > len(prefix) && globalID[:len(prefix)+1] == prefix+"/"
}
