package service

import (
	"context"
	"fmt"
	"time"

	"github.com/anthanhphan/go-slot-coordinator/internal/metaserver/domain"
	"github.com/anthanhphan/go-slot-coordinator/internal/metrics"
	"github.com/anthanhphan/go-slot-coordinator/pkg/slotmap"
	"github.com/anthanhphan/gosdk/logger"
)

// migrationService is this server's side of a slot migration: fencing as a
// source, pushing records, accepting them as a destination and cleaning up.
type migrationService struct {
	core *MetadataServiceImpl
}

func newMigrationService(core *MetadataServiceImpl) *migrationService {
	return &migrationService{core: core}
}

func (s *migrationService) fence(_ context.Context, jobID string, slots []slotmap.Range, ttl time.Duration) (int, error) {
	if jobID == "" {
		return 0, fmt.Errorf("%w: job id is required", domain.ErrInvalidRecord)
	}
	if err := s.core.checkSlots(slots); err != nil {
		return 0, err
	}
	if err := s.core.fences.install(jobID, slots, ttl); err != nil {
		logger.Warnw("Fence refused", "job_id", jobID, "slots", slotmap.Format(slots), "error", err.Error())
		return 0, err
	}
	s.reportFenced()

	fenced := slotmap.Count(slotmap.Normalize(slots))
	logger.Infow("Slots fenced", "job_id", jobID, "slots", slotmap.Format(slots), "ttl", ttl.String())
	return fenced, nil
}

func (s *migrationService) unfence(_ context.Context, jobID string) (int, error) {
	lifted := s.core.fences.lift(jobID)
	s.reportFenced()
	if lifted > 0 {
		logger.Infow("Slots unfenced", "job_id", jobID, "slots", lifted)
	}
	return lifted, nil
}

// transfer requires the job's fence so the copy is a stable image of the slots.
func (s *migrationService) transfer(ctx context.Context, jobID, destAddr string, slots []slotmap.Range) (*domain.TransferResult, error) {
	if destAddr == "" {
		return nil, fmt.Errorf("%w: destination address is required", domain.ErrInvalidRecord)
	}
	if err := s.core.checkSlots(slots); err != nil {
		return nil, err
	}
	if !s.core.fences.covers(jobID, slots) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFenced, jobID)
	}

	recs, err := s.core.repo.List(ctx, slots)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	started := s.core.now()
	accepted := 0
	if len(recs) > 0 {
		accepted, err = s.core.peer.Ingest(ctx, destAddr, jobID, recs)
		if err != nil {
			logger.Warnw("Transfer to destination failed",
				"job_id", jobID,
				"dest", destAddr,
				"records", len(recs),
				"error", err.Error(),
			)
			return nil, fmt.Errorf("ingest on %s: %w", destAddr, err)
		}
		if accepted != len(recs) {
			return nil, fmt.Errorf("destination %s accepted %d of %d records", destAddr, accepted, len(recs))
		}
	}

	logger.Infow("Slots transferred",
		"job_id", jobID,
		"dest", destAddr,
		"records", accepted,
		"took", s.core.now().Sub(started).String(),
	)
	return &domain.TransferResult{Records: accepted, Slots: slotmap.Normalize(slots)}, nil
}

func (s *migrationService) ingest(ctx context.Context, jobID string, recs []domain.Record) (int, error) {
	for _, rec := range recs {
		if err := rec.Validate(s.core.slotCount); err != nil {
			return 0, err
		}
	}
	for i, rec := range recs {
		if err := s.core.repo.Put(ctx, rec); err != nil {
			logger.Errorw("Ingest failed", "job_id", jobID, "name", rec.Name, "error", err.Error())
			return i, err
		}
	}
	logger.Debugw("Records ingested", "job_id", jobID, "records", len(recs))
	return len(recs), nil
}

func (s *migrationService) restore(ctx context.Context) error {
	moved, err := s.core.repo.Moved(ctx)
	if err != nil {
		return fmt.Errorf("load moved slots: %w", err)
	}
	s.core.moved.reset(moved)
	s.reportMoved()
	if len(moved) > 0 {
		logger.Infow("Moved slots restored", "slots", s.core.moved.count())
	}
	return nil
}

// release marks slots as moved before dropping them so no write lands in between.
func (s *migrationService) release(ctx context.Context, jobID string, slots []slotmap.Range, owner domain.Owner) (int, error) {
	if err := s.core.checkSlots(slots); err != nil {
		return 0, err
	}
	if owner.ServerID == "" {
		return 0, fmt.Errorf("%w: owner is required", domain.ErrInvalidRecord)
	}
	if err := s.core.moved.mark(ctx, slots, owner); err != nil {
		logger.Errorw("Recording moved slots failed", "job_id", jobID, "owner", owner.ServerID, "error", err.Error())
		return 0, err
	}
	s.reportMoved()
	return s.drop(ctx, "release", jobID, slots)
}

func (s *migrationService) claim(ctx context.Context, jobID string, slots []slotmap.Range) (int, error) {
	if err := s.core.checkSlots(slots); err != nil {
		return 0, err
	}
	cleared, err := s.core.moved.clear(ctx, slots)
	if err != nil {
		logger.Errorw("Clearing moved slots failed", "job_id", jobID, "error", err.Error())
		return 0, err
	}
	s.reportMoved()
	if cleared > 0 {
		logger.Infow("Slots claimed", "job_id", jobID, "slots", slotmap.Format(slotmap.Normalize(slots)), "cleared", cleared)
	}
	return cleared, nil
}

func (s *migrationService) drop(ctx context.Context, op, jobID string, slots []slotmap.Range) (int, error) {
	if err := s.core.checkSlots(slots); err != nil {
		return 0, err
	}
	removed, err := s.core.repo.DeleteSlots(ctx, slots)
	if err != nil {
		logger.Errorw("Dropping slot records failed", "op", op, "job_id", jobID, "error", err.Error())
		return 0, err
	}
	logger.Infow("Slot records dropped",
		"op", op,
		"job_id", jobID,
		"slots", slotmap.Format(slotmap.Normalize(slots)),
		"records", removed,
	)
	return removed, nil
}

func (s *migrationService) reportMoved() {
	metrics.MovedSlots.Set(float64(s.core.moved.count()))
}

func (s *migrationService) reportFenced() {
	metrics.FencedSlots.Set(float64(s.core.fences.fencedSlots()))
}

// checkSlots rejects ranges outside the slot space.
func (s *MetadataServiceImpl) checkSlots(slots []slotmap.Range) error {
	for _, r := range slots {
		if r.Start < 0 || r.End >= s.slotCount || r.Start > r.End {
			return fmt.Errorf("%w: %s", domain.ErrSlotOutOfRange, r)
		}
	}
	return nil
}
