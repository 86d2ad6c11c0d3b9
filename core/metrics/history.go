package metrics

import (
	"sync"
	"time"

	"github.com/dmitrymomot/cyre/core/cache"
	"github.com/dmitrymomot/cyre/core/channel"
)

// Entry is one recorded call result.
type Entry struct {
	ActionID  string
	Timestamp time.Time
	Payload   any
	Result    channel.Response
}

const defaultHistoryCapacity = 100

// History is a per-channel bounded ring of recent call results, backed by
// core/cache's LRU so capacity enforcement and eviction come for free.
type History struct {
	mu       sync.Mutex
	capacity int
	seq      uint64
	entries  *cache.LRUCache[uint64, Entry]
	order    []uint64
}

// NewHistory constructs a history ring bounded to capacity entries. A
// non-positive capacity falls back to defaultHistoryCapacity.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = defaultHistoryCapacity
	}
	h := &History{capacity: capacity, entries: cache.NewLRUCache[uint64, Entry](capacity)}
	h.entries.SetEvictCallback(func(key uint64, _ Entry) {
		h.removeFromOrder(key)
	})
	return h
}

// Record appends a new entry, evicting the oldest if at capacity.
func (h *History) Record(e Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	key := h.seq
	h.entries.Put(key, e)
	h.order = append(h.order, key)
}

func (h *History) removeFromOrder(key uint64) {
	for i, k := range h.order {
		if k == key {
			h.order = append(h.order[:i], h.order[i+1:]...)
			return
		}
	}
}

// Entries returns recorded entries newest-first.
func (h *History) Entries() []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Fetch oldest-first so the LRU's recency order stays equal to insertion
	// order and eviction keeps removing the oldest entry; then reverse.
	out := make([]Entry, 0, len(h.order))
	for _, key := range h.order {
		if e, ok := h.entries.Get(key); ok {
			out = append(out, e)
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Clear removes every entry.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries.Clear()
	h.order = nil
}
