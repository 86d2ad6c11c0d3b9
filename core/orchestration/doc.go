// Package orchestration composes channels into named workflows triggered
// by a channel call, a time schedule, a polled condition, or an external
// invocation. It is grounded on core/command.Dispatcher's gate-then-
// execute step shape for the workflow step runner and on core/queue's
// retry-count/backoff bookkeeping for error handling, generalized from a
// single task queue into a tree of nested step kinds
// (action/condition/parallel/sequential/delay/loop).
//
// The engine depends only on small locally-defined interfaces for calling
// channels, subscribing to them, and scheduling time-based work, so it
// never imports core/registry directly; the root bus supplies concrete
// implementations (backed by core/registry and core/timekeeper) when it
// constructs an Engine.
package orchestration
