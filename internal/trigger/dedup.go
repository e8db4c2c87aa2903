package trigger

import "sync"

const defaultDedupCap = 1000

// Dedup is a bounded set of recently seen event identities. When the
// bound is exceeded the oldest half is evicted, FIFO by insertion, so a
// redelivered identity is still recognized regardless of other traffic.
type Dedup struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	order []string
	cap   int
}

// NewDedup creates a dedup set holding at most cap identities. A cap of
// zero or less uses the default of 1000.
func NewDedup(cap int) *Dedup {
	if cap <= 0 {
		cap = defaultDedupCap
	}
	return &Dedup{
		seen: make(map[string]struct{}, cap),
		cap:  cap,
	}
}

// Seen atomically records id and reports whether it was already present.
func (d *Dedup) Seen(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}

	if len(d.order) >= d.cap {
		d.evictLocked()
	}

	d.seen[id] = struct{}{}
	d.order = append(d.order, id)
	return false
}

// Len returns the number of tracked identities.
func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.order)
}

// evictLocked drops the oldest half of the set. Callers hold d.mu.
func (d *Dedup) evictLocked() {
	half := len(d.order) / 2
	if half == 0 {
		half = 1
	}
	for _, id := range d.order[:half] {
		delete(d.seen, id)
	}
	d.order = append([]string(nil), d.order[half:]...)
}
