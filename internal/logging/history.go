package logging

import (
	"sync"
	"time"
)

// LogEntry is one record kept in the history.
type LogEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Module     string         `json:"module"`
	StreamID   string         `json:"stream_id,omitempty"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// LogCallback receives every entry added to the history.
type LogCallback func(entry LogEntry)

// History keeps the most recent entries up to a fixed capacity.
type History struct {
	mu      sync.RWMutex
	entries []LogEntry
	// next is the slot the following Append overwrites once full.
	next int
}

// NewHistory creates a history holding at most capacity entries.
func NewHistory(capacity int) *History {
	return &History{entries: make([]LogEntry, 0, max(capacity, 1))}
}

// Append adds an entry, dropping the oldest when full.
func (h *History) Append(e LogEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.entries) < cap(h.entries) {
		h.entries = append(h.entries, e)
		return
	}
	h.entries[h.next] = e
	h.next = (h.next + 1) % len(h.entries)
}

// Entries returns a copy of every entry, oldest first.
func (h *History) Entries() []LogEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]LogEntry, 0, len(h.entries))
	out = append(out, h.entries[h.next:]...)
	return append(out, h.entries[:h.next]...)
}

// Tail returns the newest n entries, oldest first; n <= 0 means all. A
// non-empty streamID keeps only that stream's entries.
func (h *History) Tail(n int, streamID string) []LogEntry {
	entries := h.Entries()
	if streamID != "" {
		kept := entries[:0]
		for _, e := range entries {
			if e.StreamID == streamID {
				kept = append(kept, e)
			}
		}
		entries = kept
	}
	if n > 0 && len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return entries
}

// Len returns the number of entries held.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}
