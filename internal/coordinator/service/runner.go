package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/domain"
	"github.com/anthanhphan/go-slot-coordinator/internal/metrics"
	"github.com/anthanhphan/go-slot-coordinator/pkg/resilience"
	"github.com/anthanhphan/go-slot-coordinator/pkg/slotmap"
	"github.com/anthanhphan/gosdk/logger"
)

// run executes one job on a pool worker.
func (s *migrationService) run(id string) {
	jobCtx, cancel := context.WithCancelCause(s.core.lifeCtx)
	defer cancel(nil)
	defer s.core.ranges.release(id)

	s.mu.Lock()
	run, ok := s.jobs[id]
	if !ok || run.job.State.Terminal() {
		s.mu.Unlock()
		return
	}
	run.started = true
	run.cancel = cancel
	s.dequeuedLocked(run)
	job := run.job.Clone()
	s.mu.Unlock()

	if job.CancelRequested {
		cancel(domain.ErrCanceled)
	}

	src, srcOK := s.core.membership.get(job.SrcServerID)
	dest, destOK := s.core.membership.get(job.DestServerID)

	err := s.execute(jobCtx, job, src, dest, srcOK && destOK)

	s.mu.Lock()
	run.cancel = nil
	s.mu.Unlock()

	if err == nil {
		return
	}

	state, reason := classify(jobCtx, err)
	if domain.IsInvariantViolation(err) {
		logger.Errorw("Slot map invariant violated, manual repair required",
			"job_id", id,
			"src_server_id", job.SrcServerID,
			"dest_server_id", job.DestServerID,
			"slots", slotmap.Format(job.Slots),
			"error", err,
		)
	}
	s.rollback(id, src, dest, job.Slots)
	if err := s.transition(s.core.lifeCtx, id, state, reason); err != nil {
		logger.Errorw("Failed to record migration outcome", "job_id", id, "state", state, "error", err)
	}
}

func (s *migrationService) execute(ctx context.Context, job *domain.MigrationJob, src, dest domain.Server, known bool) error {
	id := job.ID
	if err := s.checkpoint(ctx, id); err != nil {
		return err
	}
	if !known {
		return fmt.Errorf("%w: %s or %s left the registry", domain.ErrUnknownServer, job.SrcServerID, job.DestServerID)
	}
	if !dest.Eligible() {
		return fmt.Errorf("destination %s is %s", dest.ServerID, dest.Status)
	}

	// Source locked: fence writes, then flip the slot map into its transitional form.
	if err := s.transition(ctx, id, domain.StateSourceLocked, ""); err != nil {
		return err
	}
	err := s.step(ctx, domain.StateSourceLocked, func(stepCtx context.Context) error {
		return s.retry(stepCtx, "fence", func(c context.Context) error {
			return s.core.dataplane.FenceSlots(c, src.RPCAddr, id, job.Slots, s.fenceTTL())
		})
	})
	if err != nil {
		return fmt.Errorf("fence source: %w", err)
	}
	if err := s.core.slots.MarkMigrating(src.ServerID, dest.ServerID, id, job.Slots...); err != nil {
		return fmt.Errorf("mark migrating: %w", err)
	}
	s.core.persist(ctx)
	if err := s.checkpoint(ctx, id); err != nil {
		return err
	}

	reason := ""
	for attempt := 1; ; attempt++ {
		if err := s.transition(ctx, id, domain.StateCopying, reason); err != nil {
			return err
		}
		s.update(id, func(j *domain.MigrationJob) { j.Attempts = attempt })

		var stats domain.TransferStats
		err := s.step(ctx, domain.StateCopying, func(stepCtx context.Context) error {
			return s.retry(stepCtx, "transfer", func(c context.Context) error {
				var err error
				stats, err = s.core.dataplane.TransferSlots(c, src.RPCAddr, dest.RPCAddr, id, job.Slots)
				return err
			})
		})
		if err != nil {
			return fmt.Errorf("copy slots: %w", err)
		}
		metrics.RecordsCopied.Add(float64(stats.Records))
		s.update(id, func(j *domain.MigrationJob) { j.Records = stats.Records })
		if err := s.checkpoint(ctx, id); err != nil {
			return err
		}

		if err := s.transition(ctx, id, domain.StateVerifying, ""); err != nil {
			return err
		}
		var result domain.MatchResult
		err = s.step(ctx, domain.StateVerifying, func(stepCtx context.Context) error {
			return s.retry(stepCtx, "verify", func(c context.Context) error {
				var err error
				result, err = s.core.verifier.verify(c, job.Slots, src.RPCAddr, dest.RPCAddr)
				return err
			})
		})
		if err != nil {
			return fmt.Errorf("verify slots: %w", err)
		}
		if result.Match {
			s.update(id, func(j *domain.MigrationJob) { j.Checksum = result.Aggregate })
			break
		}

		metrics.ChecksumMismatches.Inc()
		mismatch := &domain.ChecksumMismatchError{
			Slot:         result.Slot,
			SourceDigest: result.SourceDigest,
			DestDigest:   result.DestDigest,
		}
		logger.Warnw("Migration checksum mismatch",
			"job_id", id,
			"attempt", attempt,
			"slot", result.Slot,
			"source_digest", result.SourceDigest,
			"dest_digest", result.DestDigest,
		)
		if attempt > s.core.cfg.Migration.ChecksumRetries {
			return mismatch
		}
		if err := s.checkpoint(ctx, id); err != nil {
			return err
		}
		s.discard(dest.RPCAddr, id, job.Slots)
		reason = mismatch.Error()
	}

	if err := s.checkpoint(ctx, id); err != nil {
		return err
	}
	if err := s.transition(ctx, id, domain.StateCommitting, ""); err != nil {
		return err
	}
	s.commit(id, src, dest, job.Slots)
	return nil
}

// commit flips ownership to the destination. Past this point the job cannot be undone.
func (s *migrationService) commit(id string, src, dest domain.Server, slots []slotmap.Range) {
	committed, err := s.core.slots.Commit(id)
	if err != nil {
		logger.Errorw("Slot map invariant violated during commit, manual repair required",
			"job_id", id,
			"slots", slotmap.Format(slots),
			"error", err,
		)
		s.rollback(id, src, dest, slots)
		if err := s.transition(s.core.lifeCtx, id, domain.StateFailed, fmt.Sprintf("commit: %v", err)); err != nil {
			logger.Errorw("Failed to record migration outcome", "job_id", id, "error", err)
		}
		return
	}
	s.core.membership.recordDrained(src.ServerID, committed)
	s.core.reportOwnership()

	ctx, cancel := context.WithTimeout(context.Background(), s.cleanupTimeout())
	defer cancel()
	if err := s.core.dataplane.ClaimSlots(ctx, dest.RPCAddr, id, slots); err != nil {
		logger.Warnw("Failed to claim migrated slots on destination", "job_id", id, "server_id", dest.ServerID, "error", err)
	}
	if err := s.core.dataplane.ReleaseSlots(ctx, src.RPCAddr, id, slots, dest.Owner()); err != nil {
		logger.Warnw("Failed to release migrated slots on source", "job_id", id, "server_id", src.ServerID, "error", err)
	}
	if err := s.core.dataplane.UnfenceSlots(ctx, src.RPCAddr, id); err != nil {
		logger.Warnw("Failed to unfence source", "job_id", id, "server_id", src.ServerID, "error", err)
	}

	if err := s.transition(s.core.lifeCtx, id, domain.StateCompleted, ""); err != nil {
		logger.Errorw("Failed to record migration outcome", "job_id", id, "error", err)
	}
}

// rollback returns the slots to the source and clears partial copies. Best effort on the data plane.
func (s *migrationService) rollback(id string, src, dest domain.Server, slots []slotmap.Range) {
	if len(s.core.slots.JobRanges(id)) > 0 {
		if _, err := s.core.slots.Abort(id); err != nil {
			logger.Errorw("Slot map invariant violated during abort, manual repair required", "job_id", id, "error", err)
		}
		s.core.persist(s.core.lifeCtx)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cleanupTimeout())
	defer cancel()
	if src.RPCAddr != "" {
		if err := s.core.dataplane.UnfenceSlots(ctx, src.RPCAddr, id); err != nil {
			logger.Warnw("Failed to unfence source after rollback", "job_id", id, "server_id", src.ServerID, "error", err)
		}
	}
	if dest.RPCAddr != "" {
		s.discardWith(ctx, dest.RPCAddr, id, slots)
	}
}

func (s *migrationService) discard(addr, id string, slots []slotmap.Range) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cleanupTimeout())
	defer cancel()
	s.discardWith(ctx, addr, id, slots)
}

func (s *migrationService) discardWith(ctx context.Context, addr, id string, slots []slotmap.Range) {
	if err := s.core.dataplane.DiscardSlots(ctx, addr, id, slots); err != nil {
		logger.Warnw("Failed to discard partial copy", "job_id", id, "addr", addr, "error", err)
	}
}

func (s *migrationService) cleanupTimeout() time.Duration {
	if d := s.core.cfg.Migration.RPCTimeout(); d > 0 {
		return d
	}
	return 5 * time.Second
}

// step bounds the time a job may dwell in state.
func (s *migrationService) step(ctx context.Context, state domain.MigrationState, fn func(context.Context) error) error {
	timeout := s.core.cfg.Migration.StateTimeout(string(state))
	if timeout <= 0 {
		return fn(ctx)
	}
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(stepCtx)
	if err != nil && ctx.Err() == nil && errors.Is(stepCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s exceeded max dwell time %s: %w", state, timeout, err)
	}
	return err
}

// retry repeats transient data-plane failures with linear backoff.
func (s *migrationService) retry(ctx context.Context, op string, fn func(context.Context) error) error {
	cfg := s.core.cfg.Migration
	policy := resilience.RetryPolicy{
		MaxAttempts:    cfg.MaxRetries,
		AttemptTimeout: cfg.RPCTimeout(),
		BaseBackoff:    cfg.Backoff(),
	}
	return resilience.Retry(ctx, policy, func(c context.Context, attempt int) error {
		err := fn(c)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || errors.Is(err, domain.ErrInvalidRequest) {
			return resilience.Permanent(err)
		}
		logger.Debugw("Data plane call failed",
			"op", op,
			"attempt", attempt+1,
			"error", err,
		)
		return err
	})
}

// classify maps a pre-commit failure to the terminal state and reason recorded on the job.
func classify(ctx context.Context, err error) (domain.MigrationState, string) {
	cause := context.Cause(ctx)
	switch {
	case errors.Is(err, domain.ErrCanceled), errors.Is(cause, domain.ErrCanceled):
		return domain.StateAborted, cancelReason
	case cause != nil && !errors.Is(cause, context.Canceled):
		return domain.StateFailed, cause.Error()
	default:
		return domain.StateFailed, err.Error()
	}
}
