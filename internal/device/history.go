package device

import "sync"

const (
	// DefaultMaxHistorySize bounds the ledger when no size is configured.
	DefaultMaxHistorySize = 1000

	// DefaultRecentLimit is used by Recent when limit is not positive.
	DefaultRecentLimit = 50
)

// History is a bounded, newest-first ledger of status change events.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type History struct {
	mu      sync.RWMutex
	events  []*StatusChangeEvent // index 0 is newest
	maxSize int
}

// NewHistory creates a ledger holding at most maxSize events.
// A non-positive maxSize selects DefaultMaxHistorySize.
func NewHistory(maxSize int) *History {
	if maxSize <= 0 {
		maxSize = DefaultMaxHistorySize
	}
	return &History{maxSize: maxSize}
}

// Append inserts event at the head and trims the tail to the maximum size.
// The ledger stores its own copy.
func (h *History) Append(event *StatusChangeEvent) {
	if event == nil {
		return
	}
	cpy := event.DeepCopy()

	h.mu.Lock()
	defer h.mu.Unlock()

	h.events = append(h.events, nil)
	copy(h.events[1:], h.events)
	h.events[0] = cpy
	h.trimLocked()
}

// Recent returns up to limit events, newest first.
// A limit of zero or less means "not given" and selects DefaultRecentLimit.
func (h *History) Recent(limit int) []StatusChangeEvent {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if limit > len(h.events) {
		limit = len(h.events)
	}
	out := make([]StatusChangeEvent, 0, limit)
	for _, e := range h.events[:limit] {
		out = append(out, *e.DeepCopy())
	}
	return out
}

// Len returns the number of retained events.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.events)
}

// MaxSize returns the current bound.
func (h *History) MaxSize() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.maxSize
}

// SetMaxSize changes the bound and trims immediately. Non-positive values
// are ignored.
func (h *History) SetMaxSize(n int) {
	if n <= 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.maxSize = n
	h.trimLocked()
}

func (h *History) trimLocked() {
	if len(h.events) <= h.maxSize {
		return
	}
	clear(h.events[h.maxSize:])
	h.events = h.events[:h.maxSize]
}
