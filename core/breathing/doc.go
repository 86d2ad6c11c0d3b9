// Package breathing samples process stress and exposes the adaptive
// back-pressure state ("breathing") that the pipeline's recuperation gate
// and the TimeKeeper's tick rate consult.
//
// Stress is a combined score in [0,1] built from four estimates: CPU-time
// pressure and memory pressure (read from runtime.MemStats and goroutine
// count, since this is a real OS-threaded runtime rather than the
// single-threaded event loop the original design measured), an
// event-loop-lag proxy (scheduler tick drift), and call-rate density
// (borrowed from pkg/ratelimiter's token bucket as a pure estimator, never
// as an admission gate). State transitions are published on a
// pkg/broadcast feed so orchestration condition triggers and metrics
// snapshotting can react without coupling to the sampler.
package breathing
