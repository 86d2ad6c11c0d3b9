// Package metrics holds per-channel call counters and the bounded payload
// history used by getHistory/getPrevious. Counters mirror the
// atomic.Int64 fields core/event.Processor keeps (eventsProcessed,
// eventsFailed, activeEvents); history is backed by core/cache's
// generic LRU, repurposed as a capacity-bounded ring: reads fetch entries
// oldest-first, so the LRU's recency order stays equal to insertion order
// and eviction always removes the oldest entry exactly like a ring buffer
// would.
package metrics
