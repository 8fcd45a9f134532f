package service

import (
	"context"
	"sort"
	"sync"

	"github.com/anthanhphan/go-slot-coordinator/internal/metaserver/domain"
	"github.com/anthanhphan/go-slot-coordinator/pkg/slotmap"
)

// movedTable tracks slots this server released, keyed by their new owner.
// Ranges are disjoint and sorted by start. Every change is saved before it
// becomes visible.
type movedTable struct {
	mu     sync.RWMutex
	ranges []domain.MovedRange
	save   func(context.Context, []domain.MovedRange) error
}

func newMovedTable(save func(context.Context, []domain.MovedRange) error) *movedTable {
	return &movedTable{save: save}
}

// reset replaces the table with ranges loaded from storage.
func (t *movedTable) reset(ranges []domain.MovedRange) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ranges = sortMoved(append([]domain.MovedRange(nil), ranges...))
}

// owner returns the server slot was released to.
func (t *movedTable) owner(slot int) (domain.Owner, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	i := sort.Search(len(t.ranges), func(i int) bool { return t.ranges[i].Range.End >= slot })
	if i < len(t.ranges) && t.ranges[i].Range.Contains(slot) {
		return t.ranges[i].Owner, true
	}
	return domain.Owner{}, false
}

// mark points slots at owner, replacing older markers.
func (t *movedTable) mark(ctx context.Context, slots []slotmap.Range, owner domain.Owner) error {
	slots = slotmap.Normalize(slots)
	_, err := t.update(ctx, func(cur []domain.MovedRange) []domain.MovedRange {
		next := without(cur, slots)
		for _, r := range slots {
			next = append(next, domain.MovedRange{Range: r, Owner: owner})
		}
		return next
	})
	return err
}

// clear drops markers for slots and returns how many slots were unmarked.
func (t *movedTable) clear(ctx context.Context, slots []slotmap.Range) (int, error) {
	return t.update(ctx, func(cur []domain.MovedRange) []domain.MovedRange {
		return without(cur, slotmap.Normalize(slots))
	})
}

// count returns the number of released slots.
func (t *movedTable) count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return countMoved(t.ranges)
}

// update applies fn, saves the result and returns the drop in marked slots.
func (t *movedTable) update(ctx context.Context, fn func([]domain.MovedRange) []domain.MovedRange) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := sortMoved(fn(t.ranges))
	removed := countMoved(t.ranges) - countMoved(next)
	if removed == 0 && sameMoved(t.ranges, next) {
		return 0, nil
	}
	if err := t.save(ctx, next); err != nil {
		return 0, err
	}
	t.ranges = next
	if removed < 0 {
		removed = 0
	}
	return removed, nil
}

// without cuts slots (normalized) out of every marker.
func without(cur []domain.MovedRange, slots []slotmap.Range) []domain.MovedRange {
	out := make([]domain.MovedRange, 0, len(cur))
	for _, m := range cur {
		for _, r := range slotmap.Subtract([]slotmap.Range{m.Range}, slots) {
			out = append(out, domain.MovedRange{Range: r, Owner: m.Owner})
		}
	}
	return out
}

func sortMoved(ranges []domain.MovedRange) []domain.MovedRange {
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Range.Start < ranges[j].Range.Start })
	return ranges
}

func countMoved(ranges []domain.MovedRange) int {
	total := 0
	for _, m := range ranges {
		total += m.Range.Len()
	}
	return total
}

func sameMoved(a, b []domain.MovedRange) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
