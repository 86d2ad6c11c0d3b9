// Package registry stores channels, their handlers, and derived execution
// state keyed by global id. It is grounded on core/event's handler-map
// shape (Processor.handlers map[string][]Handler) for the parallel
// handler list and on core/command's single-handler map for the
// single-dispatch fast path. New takes the TimeKeeper the registry uses to
// cancel a channel's formations; it has no options.
//
// Registry owns registration (action) and subscription (on) only; the
// call path that runs a channel's compiled pipeline and dispatches to its
// handlers is assembled one layer up, by the root bus, from the registry
// lookup plus core/pipeline, core/timekeeper, and core/dispatch.
package registry
