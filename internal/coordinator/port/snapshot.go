package port

import (
	"context"

	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/domain"
)

//go:generate mockgen -destination=../service/mocks/snapshot_mock.go -package=mocks -source=snapshot.go

// SnapshotStore persists coordinator state.
type SnapshotStore interface {
	// Save replaces the stored snapshot.
	Save(ctx context.Context, snap *domain.Snapshot) error

	// Load returns the last saved snapshot or domain.ErrNoSnapshot.
	Load(ctx context.Context) (*domain.Snapshot, error)
}
