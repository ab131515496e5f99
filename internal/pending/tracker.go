// Package pending tracks in-flight mutation identifiers for diagnostic
// surfacing. It never cancels the underlying remote calls; stale entries are
// only reported.
package pending

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// DefaultTimeout is the age past which an open operation is considered stale.
const DefaultTimeout = 30 * time.Second

type Tracker struct {
	mu  sync.RWMutex
	ops map[string]time.Time // op id -> start time

	now func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		ops: make(map[string]time.Time),
		now: time.Now,
	}
}

// Begin records the start of an operation and returns its id. An empty opID
// gets a generated ULID so callers can correlate logs without inventing ids.
func (t *Tracker) Begin(opID string) string {
	if opID == "" {
		opID = ulid.Make().String()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.ops[opID] = t.now()
	return opID
}

// End removes an operation regardless of its outcome. Ending an unknown id is
// a no-op.
func (t *Tracker) End(opID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.ops, opID)
}

func (t *Tracker) HasPending() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.ops) > 0
}

func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.ops)
}

func (t *Tracker) IDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]string, 0, len(t.ops))
	for id := range t.ops {
		out = append(out, id)
	}
	return out
}

// CheckTimeouts returns the ids of operations older than threshold. Entries
// are not removed; this is purely diagnostic.
func (t *Tracker) CheckTimeouts(threshold time.Duration) []string {
	if threshold <= 0 {
		threshold = DefaultTimeout
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	cutoff := t.now().Add(-threshold)
	var stale []string
	for id, started := range t.ops {
		if started.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	return stale
}
