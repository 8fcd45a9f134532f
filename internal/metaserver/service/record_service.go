package service

import (
	"context"
	"fmt"

	"github.com/anthanhphan/go-slot-coordinator/internal/metaserver/domain"
	"github.com/anthanhphan/go-slot-coordinator/pkg/slotmap"
	"github.com/anthanhphan/gosdk/logger"
)

// recordService handles client reads and writes of version records.
type recordService struct {
	core *MetadataServiceImpl
}

func newRecordService(core *MetadataServiceImpl) *recordService {
	return &recordService{core: core}
}

func (s *recordService) put(ctx context.Context, rec domain.Record) (*domain.Record, error) {
	rec.Slot = s.core.SlotOf(rec.Name)
	if err := rec.Validate(s.core.slotCount); err != nil {
		return nil, err
	}
	if err := s.core.checkMoved(rec.Slot); err != nil {
		logger.Debugw("Write redirected", "name", rec.Name, "slot", rec.Slot, "error", err.Error())
		return nil, err
	}
	if jobID, fenced := s.core.fences.holder(rec.Slot); fenced {
		err := &domain.FencedError{Slot: rec.Slot, JobID: jobID}
		logger.Warnw("Write rejected by fence", "name", rec.Name, "slot", rec.Slot, "job_id", jobID)
		return nil, err
	}

	if rec.Sequence == 0 {
		existing, err := s.core.repo.Versions(ctx, rec.Slot, rec.Name)
		if err != nil {
			return nil, fmt.Errorf("load versions: %w", err)
		}
		rec.Sequence = 1
		if n := len(existing); n > 0 {
			rec.Sequence = existing[n-1].Sequence + 1
		}
	}
	if rec.Ts == 0 {
		rec.Ts = s.core.now().UnixMilli()
	}

	if err := s.core.repo.Put(ctx, rec); err != nil {
		logger.Errorw("PutRecord failed", "name", rec.Name, "slot", rec.Slot, "error", err.Error())
		return nil, err
	}
	return &rec, nil
}

func (s *recordService) versions(ctx context.Context, name string) ([]domain.Record, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidRecord)
	}
	slot := s.core.SlotOf(name)
	if err := s.core.checkMoved(slot); err != nil {
		return nil, err
	}
	recs, err := s.core.repo.Versions(ctx, slot, name)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, domain.ErrRecordNotFound
	}
	return recs, nil
}

func (s *recordService) list(ctx context.Context, slots []slotmap.Range) ([]domain.Record, error) {
	if err := s.core.checkSlots(slots); err != nil {
		return nil, err
	}
	return s.core.repo.List(ctx, slots)
}

// checkMoved returns a MovedError when slot was released to another server.
func (s *MetadataServiceImpl) checkMoved(slot int) error {
	if owner, ok := s.moved.owner(slot); ok {
		return &domain.MovedError{Slot: slot, Owner: owner}
	}
	return nil
}
