package port

import (
	"context"
	"time"

	"github.com/anthanhphan/go-slot-coordinator/internal/metaserver/domain"
	"github.com/anthanhphan/go-slot-coordinator/pkg/slotmap"
)

// MetadataService is the metadata server's business logic.
type MetadataService interface {
	// PutRecord stores a client write unless its slot is fenced or moved.
	PutRecord(ctx context.Context, rec domain.Record) (*domain.Record, error)
	Versions(ctx context.Context, name string) ([]domain.Record, error)
	SlotOf(name string) int

	FenceSlots(ctx context.Context, jobID string, slots []slotmap.Range, ttl time.Duration) (int, error)
	UnfenceSlots(ctx context.Context, jobID string) (int, error)
	TransferSlots(ctx context.Context, jobID, destAddr string, slots []slotmap.Range) (*domain.TransferResult, error)
	ListSlotRecords(ctx context.Context, slots []slotmap.Range) ([]domain.Record, error)
	IngestRecords(ctx context.Context, jobID string, records []domain.Record) (int, error)
	DiscardSlots(ctx context.Context, jobID string, slots []slotmap.Range) (int, error)
	// ReleaseSlots drops slots given to owner and redirects later client requests for them.
	ReleaseSlots(ctx context.Context, jobID string, slots []slotmap.Range, owner domain.Owner) (int, error)
	// ClaimSlots clears redirects for slots this server serves again.
	ClaimSlots(ctx context.Context, jobID string, slots []slotmap.Range) (int, error)
}
