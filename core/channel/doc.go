// Package channel defines the shared data types that describe a registered
// channel: its configuration surface (protection, timing, processing,
// dispatch, system options), priority levels, and the response envelope
// every call returns. It holds no behavior of its own — registry, pipeline,
// dispatch, timekeeper and orchestration all import it so that a channel's
// shape is defined exactly once and cannot drift between packages.
package channel
