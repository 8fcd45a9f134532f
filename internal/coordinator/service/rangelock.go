package service

import (
	"sync"

	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/domain"
	"github.com/anthanhphan/go-slot-coordinator/pkg/slotmap"
)

// rangeLocker serializes migrations over overlapping slot ranges.
type rangeLocker struct {
	mu   sync.Mutex
	held map[string][]slotmap.Range // jobID -> reserved ranges
}

func newRangeLocker() *rangeLocker {
	return &rangeLocker{held: make(map[string][]slotmap.Range)}
}

// reserve claims ranges for jobID or names the job already holding one of them.
func (l *rangeLocker) reserve(jobID string, ranges []slotmap.Range) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for holder, owned := range l.held {
		if slot, ok := firstOverlap(owned, ranges); ok {
			return &domain.SlotRangeBusyError{JobID: holder, Slot: slot}
		}
	}
	l.held[jobID] = append([]slotmap.Range(nil), ranges...)
	return nil
}

func (l *rangeLocker) release(jobID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, jobID)
}

func firstOverlap(a, b []slotmap.Range) (int, bool) {
	found := false
	first := 0
	for _, x := range a {
		for _, y := range b {
			if !x.Overlaps(y) {
				continue
			}
			start := max(x.Start, y.Start)
			if !found || start < first {
				first = start
				found = true
			}
		}
	}
	return first, found
}
