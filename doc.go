// Package cyre is a single-process reactive action bus: producers submit
// payloads to named channels, a per-channel operator pipeline validates,
// protects, and transforms each payload, and subscribed handlers execute
// under throttle/debounce/change-detection protection, delay/interval/
// repeat timing, and stress-adaptive back-pressure ("breathing").
//
// Bus is the public surface, the same "wire every collaborator together
// behind functional options" facade this module's teacher exposes at its
// own root (NewRouter/gokit.go): a Bus owns a channel registry, a
// breathing monitor, a TimeKeeper, a dispatcher, a metrics store, a
// branch tree, and an orchestration engine, and glues them together on
// every Call.
package cyre
