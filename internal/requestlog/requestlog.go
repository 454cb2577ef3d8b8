// Package requestlog keeps the last few outgoing requests in memory.
//
// Entries are never persisted. The ring holds at most Capacity entries and
// evicts the oldest first.
package requestlog

import (
	"sync"

	"github.com/webmip/postbank/internal/model"
)

// Capacity is the default number of entries a Ring retains.
const Capacity = 3

// Ring is a fixed-capacity FIFO of request log entries.
type Ring struct {
	mu       sync.RWMutex
	entries  []model.RequestLog
	capacity int
}

// New returns a Ring holding at most capacity entries. A non-positive
// capacity uses Capacity.
func New(capacity int) *Ring {
	if capacity <= 0 {
		capacity = Capacity
	}
	return &Ring{
		entries:  make([]model.RequestLog, 0, capacity),
		capacity: capacity,
	}
}

// Add records entry, evicting the oldest one when full.
func (r *Ring) Add(entry model.RequestLog) {
	entry.Headers = cloneHeaders(entry.Headers)

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.entries) >= r.capacity {
		copy(r.entries, r.entries[1:])
		r.entries = r.entries[:len(r.entries)-1]
	}
	r.entries = append(r.entries, entry)
}

// List returns copies of the retained entries, newest first.
func (r *Ring) List() []model.RequestLog {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.RequestLog, 0, len(r.entries))
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		e.Headers = cloneHeaders(e.Headers)
		out = append(out, e)
	}
	return out
}

// Len returns the number of retained entries.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Clear drops every entry.
func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = r.entries[:0]
}

func cloneHeaders(h map[string]string) map[string]string {
	if h == nil {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
