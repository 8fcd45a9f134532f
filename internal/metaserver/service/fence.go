package service

import (
	"sync"
	"time"

	"github.com/anthanhphan/go-slot-coordinator/internal/metaserver/domain"
	"github.com/anthanhphan/go-slot-coordinator/pkg/slotmap"
)

type fence struct {
	slots   []slotmap.Range
	expires time.Time // zero means no expiry
}

func (f fence) live(now time.Time) bool {
	return f.expires.IsZero() || now.Before(f.expires)
}

// fenceTable tracks write fences per migration job. Expired fences are ignored
// and pruned on the next mutation.
type fenceTable struct {
	mu     sync.Mutex
	now    func() time.Time
	fences map[string]fence
}

func newFenceTable(now func() time.Time) *fenceTable {
	return &fenceTable{now: now, fences: make(map[string]fence)}
}

// install fences slots for jobID, replacing the job's previous fence.
func (t *fenceTable) install(jobID string, slots []slotmap.Range, ttl time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.pruneLocked(now)
	slots = slotmap.Normalize(slots)
	for id, f := range t.fences {
		if id == jobID {
			continue
		}
		if overlaps(f.slots, slots) {
			return domain.ErrFenceConflict
		}
	}

	f := fence{slots: slots}
	if ttl > 0 {
		f.expires = now.Add(ttl)
	}
	t.fences[jobID] = f
	return nil
}

// lift removes the job's fence and returns how many slots it covered.
func (t *fenceTable) lift(jobID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, ok := t.fences[jobID]
	if !ok {
		return 0
	}
	delete(t.fences, jobID)
	if !f.live(t.now()) {
		return 0
	}
	return slotmap.Count(f.slots)
}

// holder returns the job fencing slot.
func (t *fenceTable) holder(slot int) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for id, f := range t.fences {
		if !f.live(now) {
			continue
		}
		for _, r := range f.slots {
			if r.Contains(slot) {
				return id, true
			}
		}
	}
	return "", false
}

// covers reports whether jobID holds a live fence over all of slots.
func (t *fenceTable) covers(jobID string, slots []slotmap.Range) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, ok := t.fences[jobID]
	if !ok || !f.live(t.now()) {
		return false
	}
	return len(slotmap.Subtract(slotmap.Normalize(slots), f.slots)) == 0
}

// fencedSlots counts slots under a live fence.
func (t *fenceTable) fencedSlots() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	total := 0
	for _, f := range t.fences {
		if f.live(now) {
			total += slotmap.Count(f.slots)
		}
	}
	return total
}

func (t *fenceTable) pruneLocked(now time.Time) {
	for id, f := range t.fences {
		if !f.live(now) {
			delete(t.fences, id)
		}
	}
}

func overlaps(a, b []slotmap.Range) bool {
	for _, x := range a {
		for _, y := range b {
			if x.Overlaps(y) {
				return true
			}
		}
	}
	return false
}
