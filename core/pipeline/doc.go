// Package pipeline compiles a channel's configuration into a fixed,
// ordered sequence of operator steps and executes that sequence on each
// call.
//
// Protection and timing steps (recuperation, repeat-zero, throttle,
// debounce+maxWait) need direct access to per-channel mutable state and the
// scheduler, so Execute runs them imperatively in the fixed order the
// design mandates. The payload-rewriting processing operators (required,
// schema, selector, condition, transform) are pure and are composed into
// one chain that runs them in order, passing each operator's output to the
// next; a rejection short-circuits the chain. Change detection runs on the result of that chain, and the
// channel-local middleware chain — which the design places after change
// detection, since middleware wraps the dispatch itself rather than
// validating the payload — runs last.
package pipeline
