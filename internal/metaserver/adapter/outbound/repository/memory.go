package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/anthanhphan/go-slot-coordinator/internal/metaserver/domain"
	"github.com/anthanhphan/go-slot-coordinator/internal/metaserver/port"
	"github.com/anthanhphan/go-slot-coordinator/pkg/slotmap"
)

type recordKey struct {
	name string
	seq  uint64
}

// MemoryRepository keeps records in process memory.
type MemoryRepository struct {
	mu    sync.RWMutex
	slots map[int]map[recordKey]domain.Record
	moved []domain.MovedRange
}

var _ port.RecordRepository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{slots: make(map[int]map[recordKey]domain.Record)}
}

func (r *MemoryRepository) Put(_ context.Context, rec domain.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, ok := r.slots[rec.Slot]
	if !ok {
		bucket = make(map[recordKey]domain.Record)
		r.slots[rec.Slot] = bucket
	}
	rec.Locate = append([]string(nil), rec.Locate...)
	bucket[recordKey{rec.Name, rec.Sequence}] = rec
	return nil
}

func (r *MemoryRepository) Versions(_ context.Context, slot int, name string) ([]domain.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Record
	for key, rec := range r.slots[slot] {
		if key.name == name {
			out = append(out, rec)
		}
	}
	sortRecords(out)
	return out, nil
}

func (r *MemoryRepository) List(_ context.Context, slots []slotmap.Range) ([]domain.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Record
	for _, rg := range slotmap.Normalize(slots) {
		for slot, bucket := range r.slots {
			if !rg.Contains(slot) {
				continue
			}
			for _, rec := range bucket {
				out = append(out, rec)
			}
		}
	}
	sortRecords(out)
	return out, nil
}

func (r *MemoryRepository) DeleteSlots(_ context.Context, slots []slotmap.Range) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for _, rg := range slotmap.Normalize(slots) {
		for slot, bucket := range r.slots {
			if rg.Contains(slot) {
				removed += len(bucket)
				delete(r.slots, slot)
			}
		}
	}
	return removed, nil
}

func (r *MemoryRepository) SaveMoved(_ context.Context, moved []domain.MovedRange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.moved = append([]domain.MovedRange(nil), moved...)
	return nil
}

func (r *MemoryRepository) Moved(_ context.Context) ([]domain.MovedRange, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.MovedRange(nil), r.moved...), nil
}

func (r *MemoryRepository) Close() error {
	return nil
}

func sortRecords(recs []domain.Record) {
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.Slot != b.Slot {
			return a.Slot < b.Slot
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Sequence < b.Sequence
	})
}
