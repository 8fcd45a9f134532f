package port

import (
	"context"

	"github.com/anthanhphan/go-slot-coordinator/internal/metaserver/domain"
	"github.com/anthanhphan/go-slot-coordinator/pkg/slotmap"
)

// RecordRepository stores version records grouped by slot.
type RecordRepository interface {
	// Put stores rec, replacing any record with the same name and sequence.
	Put(ctx context.Context, rec domain.Record) error

	// Versions returns every stored version of name, oldest first.
	Versions(ctx context.Context, slot int, name string) ([]domain.Record, error)

	// List returns the records of slots ordered by slot, name and sequence.
	List(ctx context.Context, slots []slotmap.Range) ([]domain.Record, error)

	// DeleteSlots drops every record in slots and reports how many were removed.
	DeleteSlots(ctx context.Context, slots []slotmap.Range) (int, error)

	// SaveMoved replaces the stored table of released slots.
	SaveMoved(ctx context.Context, moved []domain.MovedRange) error

	// Moved returns the stored table of released slots.
	Moved(ctx context.Context) ([]domain.MovedRange, error)

	Close() error
}
