package logger

import "sync"

// entryRing keeps the most recent log entries, dropping the oldest once full.
type entryRing struct {
	mu      sync.RWMutex
	entries []LogEntry
	next    int
	full    bool
}

func newEntryRing(capacity int) *entryRing {
	return &entryRing{entries: make([]LogEntry, capacity)}
}

func (r *entryRing) push(e LogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[r.next] = e
	r.next++
	if r.next == len(r.entries) {
		r.next = 0
		r.full = true
	}
}

func (r *entryRing) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.full {
		return len(r.entries)
	}
	return r.next
}

// tail returns up to limit of the newest entries, oldest first. A limit of
// zero or less returns everything buffered.
func (r *entryRing) tail(limit int) []LogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := r.next
	if r.full {
		n = len(r.entries)
	}
	if limit > 0 && limit < n {
		n = limit
	}

	out := make([]LogEntry, n)
	start := r.next - n
	if start < 0 {
		start += len(r.entries)
	}
	for i := range out {
		out[i] = r.entries[(start+i)%len(r.entries)]
	}
	return out
}
