package state

import (
	"sync"
	"time"

	"avatar-hub/internal/models"
)

// DefaultHistoryMax bounds the snapshot ring when no explicit size is given.
const DefaultHistoryMax = 10

// Snapshot is an immutable point-in-time copy of the three live maps. Restore
// always installs fresh copies, so a snapshot can be restored more than once.
type Snapshot struct {
	Avatars  map[string]models.Avatar
	Active   map[string]string
	Contents map[string]map[string]struct{}
	TakenAt  time.Time
}

// History retains a bounded ring of recent snapshots, oldest first. When the
// bound is exceeded the oldest snapshot is evicted.
type History struct {
	mu    sync.Mutex
	max   int
	snaps []Snapshot

	now func() time.Time
}

func NewHistory(max int) *History {
	if max < 1 {
		max = DefaultHistoryMax
	}
	return &History{max: max, now: time.Now}
}

// Capture deep-copies the live state and pushes the snapshot. It must be
// called before the optimistic local mutation it guards.
func (h *History) Capture(st *State) Snapshot {
	avatars, active := st.export()
	snap := Snapshot{
		Avatars:  avatars,
		Active:   active,
		Contents: st.Contents().Export(),
		TakenAt:  h.now(),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.snaps = append(h.snaps, snap)
	if len(h.snaps) > h.max {
		h.snaps = h.snaps[1:]
	}
	return snap
}

// RestoreLatest pops the most recent snapshot and replaces the live maps with
// its copies. Returns false, leaving live state untouched, when the history
// is empty.
func (h *History) RestoreLatest(st *State) bool {
	h.mu.Lock()
	if len(h.snaps) == 0 {
		h.mu.Unlock()
		return false
	}
	snap := h.snaps[len(h.snaps)-1]
	h.snaps = h.snaps[:len(h.snaps)-1]
	h.mu.Unlock()

	st.restore(snap.Avatars, snap.Active)
	st.Contents().Restore(snap.Contents)
	return true
}

// Clear empties the history without touching live state.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.snaps = nil
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.snaps)
}

// Timestamps returns the snapshot times oldest-first (most recent last).
func (h *History) Timestamps() []time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]time.Time, len(h.snaps))
	for i, s := range h.snaps {
		out[i] = s.TakenAt
	}
	return out
}
