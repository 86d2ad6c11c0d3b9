// Package timekeeper is the single cooperative scheduler that owns every
// formation — a scheduled, possibly-repeating dispatch. It replaces the
// original design's single-threaded quartz loop with a mutex-guarded
// container/heap ordered by next-fire time, so forget is O(log n) via
// tombstoning and replacement is a pop-then-push instead of a linear scan.
//
// The tick cadence is supplied by the caller (normally the breathing
// monitor's current rate) through a RateFunc, and a StressFunc lets
// formations that opt into breathing adaptation stretch their effective
// interval under load without the scheduler depending on the breathing
// package directly.
package timekeeper
