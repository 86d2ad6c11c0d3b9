// Package dispatch selects and runs the execution strategy across a
// channel's handler set: single, parallel, sequential, race, or waterfall.
//
// parallel and race are grounded on pkg/async's Exec/ExecAll/ExecAny future
// primitives, generalized from error-only futures to futures that also
// carry a handler's return value. sequential and waterfall are grounded on
// core/command.Dispatcher's single-call, panic-recovering shape, chained.
// Handler panics are recovered the same way core/event/utils.go's
// safeHandle does it.
package dispatch
