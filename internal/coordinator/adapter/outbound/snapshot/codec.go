package snapshot

import (
	"encoding/json"
	"fmt"

	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/domain"
)

func encode(snap *domain.Snapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*domain.Snapshot, error) {
	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version != domain.SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", snap.Version, domain.SnapshotVersion)
	}
	return &snap, nil
}
