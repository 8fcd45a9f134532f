package service

import (
	"context"
	"time"

	"github.com/anthanhphan/go-slot-coordinator/internal/metaserver/domain"
	"github.com/anthanhphan/go-slot-coordinator/internal/metaserver/port"
	"github.com/anthanhphan/go-slot-coordinator/pkg/slotmap"
)

// MetadataServiceImpl is a facade that composes the record and migration use-case services.
type MetadataServiceImpl struct {
	repo      port.RecordRepository
	peer      port.Peer
	slotCount int
	now       func() time.Time

	fences    *fenceTable
	moved     *movedTable
	records   *recordService
	migration *migrationService
}

// Ensure MetadataServiceImpl implements port.MetadataService.
var _ port.MetadataService = (*MetadataServiceImpl)(nil)

type Option func(*MetadataServiceImpl)

// WithClock replaces time.Now, used for fence expiry.
func WithClock(now func() time.Time) Option {
	return func(s *MetadataServiceImpl) { s.now = now }
}

// NewMetadataService builds the metadata facade and its use-case services.
func NewMetadataService(repo port.RecordRepository, peer port.Peer, slotCount int, opts ...Option) *MetadataServiceImpl {
	svc := &MetadataServiceImpl{
		repo:      repo,
		peer:      peer,
		slotCount: slotCount,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}

	svc.fences = newFenceTable(svc.now)
	svc.moved = newMovedTable(repo.SaveMoved)
	svc.records = newRecordService(svc)
	svc.migration = newMigrationService(svc)
	return svc
}

// Restore loads the released-slot table from the repository.
func (s *MetadataServiceImpl) Restore(ctx context.Context) error {
	return s.migration.restore(ctx)
}

// PutRecord stores a client write, assigning the next sequence when none is given.
func (s *MetadataServiceImpl) PutRecord(ctx context.Context, rec domain.Record) (*domain.Record, error) {
	return s.records.put(ctx, rec)
}

// Versions returns every stored version of name.
func (s *MetadataServiceImpl) Versions(ctx context.Context, name string) ([]domain.Record, error) {
	return s.records.versions(ctx, name)
}

// SlotOf maps an object name to its slot.
func (s *MetadataServiceImpl) SlotOf(name string) int {
	return slotmap.KeySlot([]byte(name), s.slotCount)
}

// FenceSlots stops client writes to slots until unfenced or ttl expires.
func (s *MetadataServiceImpl) FenceSlots(ctx context.Context, jobID string, slots []slotmap.Range, ttl time.Duration) (int, error) {
	return s.migration.fence(ctx, jobID, slots, ttl)
}

// UnfenceSlots lifts the job's fence.
func (s *MetadataServiceImpl) UnfenceSlots(ctx context.Context, jobID string) (int, error) {
	return s.migration.unfence(ctx, jobID)
}

// TransferSlots pushes every record of slots to destAddr.
func (s *MetadataServiceImpl) TransferSlots(ctx context.Context, jobID, destAddr string, slots []slotmap.Range) (*domain.TransferResult, error) {
	return s.migration.transfer(ctx, jobID, destAddr, slots)
}

// ListSlotRecords returns the records held for slots.
func (s *MetadataServiceImpl) ListSlotRecords(ctx context.Context, slots []slotmap.Range) ([]domain.Record, error) {
	return s.records.list(ctx, slots)
}

// IngestRecords stores records pushed by a migration source.
func (s *MetadataServiceImpl) IngestRecords(ctx context.Context, jobID string, records []domain.Record) (int, error) {
	return s.migration.ingest(ctx, jobID, records)
}

// DiscardSlots drops partially copied records after an aborted migration.
func (s *MetadataServiceImpl) DiscardSlots(ctx context.Context, jobID string, slots []slotmap.Range) (int, error) {
	return s.migration.drop(ctx, "discard", jobID, slots)
}

// ReleaseSlots drops records that now belong to owner and redirects later requests for slots to it.
func (s *MetadataServiceImpl) ReleaseSlots(ctx context.Context, jobID string, slots []slotmap.Range, owner domain.Owner) (int, error) {
	return s.migration.release(ctx, jobID, slots, owner)
}

// ClaimSlots makes this server serve slots again after it released them earlier.
func (s *MetadataServiceImpl) ClaimSlots(ctx context.Context, jobID string, slots []slotmap.Range) (int, error) {
	return s.migration.claim(ctx, jobID, slots)
}

// Close releases the record repository.
func (s *MetadataServiceImpl) Close() error {
	return s.repo.Close()
}
