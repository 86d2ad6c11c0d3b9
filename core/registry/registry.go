package registry

import (
	"sync"
	"sync/atomic"

	"github.com/dmitrymomot/cyre/core/channel"
)

// formationCanceller is the subset of timekeeper.Keeper the registry needs
// to cancel a channel's outstanding formations on re-registration or
// forget. Declared locally so registry stays decoupled from the keeper's
// full surface.
type formationCanceller interface {
	Forget(id string)
}

// Registry is the channel store: registration (Action), subscription
// (On), lookup, and teardown (Forget/Clear). It is grounded on
// core/event.Processor's handlers map[string][]Handler guarded by a
// sync.RWMutex, generalized here to a map of *Channel so each entry also
// carries its compiled pipeline and per-channel state.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]*Channel

	keeper     formationCanceller
	locked     atomic.Bool
	handlerSeq atomic.Uint64
}

// New constructs an empty registry. keeper may be nil (formations are then
// simply not cancelled on forget/re-registration, useful in tests that
// don't exercise timing).
func New(keeper formationCanceller) *Registry {
	return &Registry{
		channels: make(map[string]*Channel),
		keeper:   keeper,
	}
}

func debounceFormationID(globalID string) string {
	return globalID + "::debounce"
}

func (r *Registry) forgetFormations(globalID string) {
	if r.keeper == nil {
		return
	}
	r.keeper.Forget(globalID)
	r.keeper.Forget(debounceFormationID(globalID))
}

// Action registers a new channel or, if one already exists under the same
// global id, replaces its configuration: the compiled pipeline is rebuilt,
// per-call state is reset, and any outstanding formation is cancelled.
// Rejected while the registry is locked or when cfg fails validation.
func (r *Registry) Action(cfg channel.Config) channel.Response {
	if r.locked.Load() {
		return channel.FailErr("registry is locked", ErrRegistryLocked)
	}
	if err := cfg.Validate(); err != nil {
		return channel.FailErr("invalid channel configuration", err)
	}

	globalID := cfg.GlobalID()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.forgetFormations(globalID)

	if existing, ok := r.channels[globalID]; ok {
		existing.reconfigure(cfg)
		return channel.Ok(nil, registrationMessage(cfg, "channel re-registered"))
	}

	r.channels[globalID] = newChannel(cfg)
	return channel.Ok(nil, registrationMessage(cfg, "channel registered"))
}

// registrationMessage appends the "Fast path" token spec.md §"Return message
// tokens" requires fast-path channels to carry on registration, so callers
// (and tests) can tell a fast-path channel apart from one with protections/
// operators compiled in.
func registrationMessage(cfg channel.Config, base string) string {
	if cfg.HasFastPath() {
		return base + " (Fast path)"
	}
	return base
}

// On subscribes handler to id, returning an unsubscribe func. Subscribing
// or unsubscribing recomputes the channel's execution-operator selection.
func (r *Registry) On(id string, handler channel.HandlerFunc) (func(), error) {
	if handler == nil {
		return nil, ErrNilHandler
	}

	r.mu.RLock()
	ch, ok := r.channels[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrChannelNotFound
	}

	subID := r.handlerSeq.Add(1)
	ch.addHandler(subID, handler)

	return func() { ch.removeHandler(subID) }, nil
}

// Get returns the runtime channel for id, if registered.
func (r *Registry) Get(id string) (*Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[id]
	return ch, ok
}

// Forget removes a channel entirely, cancelling any outstanding formation.
// Reports whether a channel was present.
func (r *Registry) Forget(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.channels[id]; !ok {
		return false
	}
	delete(r.channels, id)
	r.forgetFormations(id)
	return true
}

// Lock blocks further Action registrations. On/Get/Call continue to
// function; there is no corresponding Unlock, matching the one-way lock
// contract of the registration API.
func (r *Registry) Lock() {
	r.locked.Store(true)
}

// Locked reports whether the registry currently rejects registrations.
func (r *Registry) Locked() bool {
	return r.locked.Load()
}

// Clear removes every channel, handler, and formation, without affecting
// the lock state.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id := range r.channels {
		r.forgetFormations(id)
	}
	r.channels = make(map[string]*Channel)
}

// IDs returns every currently registered global channel id, for
// getSystemOverview-style introspection.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.channels))
	for id := range r.channels {
		ids = append(ids, id)
	}
	return ids
}
