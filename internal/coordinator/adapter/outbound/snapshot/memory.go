package snapshot

import (
	"context"
	"sync"

	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/domain"
	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/port"
)

// MemoryStore keeps the encoded snapshot in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data []byte
}

var _ port.SnapshotStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(ctx context.Context, snap *domain.Snapshot) error {
	data, err := encode(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Load(ctx context.Context) (*domain.Snapshot, error) {
	s.mu.RLock()
	data := s.data
	s.mu.RUnlock()
	if data == nil {
		return nil, domain.ErrNoSnapshot
	}
	return decode(data)
}
