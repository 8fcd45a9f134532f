package port

import (
	"context"
	"time"

	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/domain"
	"github.com/anthanhphan/go-slot-coordinator/pkg/slotmap"
)

//go:generate mockgen -destination=../service/mocks/dataplane_mock.go -package=mocks -source=dataplane.go

// DataPlane is the set of RPCs the coordinator schedules on metadata servers.
type DataPlane interface {
	// FenceSlots stops the server at addr from accepting writes for slots until unfenced or ttl expires.
	FenceSlots(ctx context.Context, addr string, jobID string, slots []slotmap.Range, ttl time.Duration) error

	// UnfenceSlots lifts the write fence installed for jobID.
	UnfenceSlots(ctx context.Context, addr string, jobID string) error

	// TransferSlots makes the source push every version record of slots to the destination.
	TransferSlots(ctx context.Context, srcAddr string, destAddr string, jobID string, slots []slotmap.Range) (domain.TransferStats, error)

	// SlotRecords lists the version records a server holds for slots.
	SlotRecords(ctx context.Context, addr string, slots []slotmap.Range) ([]domain.VersionRecord, error)

	// DiscardSlots drops partially copied records on a destination after an abort.
	DiscardSlots(ctx context.Context, addr string, jobID string, slots []slotmap.Range) error

	// ReleaseSlots drops records on a source once the destination is authoritative
	// and redirects later client requests for slots to owner.
	ReleaseSlots(ctx context.Context, addr string, jobID string, slots []slotmap.Range, owner domain.SlotOwner) error

	// ClaimSlots tells the server at addr it owns slots, clearing redirects left by an earlier release.
	ClaimSlots(ctx context.Context, addr string, jobID string, slots []slotmap.Range) error
}
