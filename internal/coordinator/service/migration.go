package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/domain"
	"github.com/anthanhphan/go-slot-coordinator/internal/metrics"
	"github.com/anthanhphan/go-slot-coordinator/pkg/slotmap"
	"github.com/anthanhphan/gosdk/logger"
)

const cancelReason = "canceled by operator"

// jobRun is the runtime bookkeeping of one job. Guarded by migrationService.mu.
type jobRun struct {
	job     *domain.MigrationJob
	started bool
	cancel  context.CancelCauseFunc
	// queued fails the job if no worker picks it up within the Requested dwell time.
	queued *time.Timer
}

// migrationService drives migration jobs through the state machine.
type migrationService struct {
	core *CoordinatorImpl

	mu    sync.RWMutex
	jobs  map[string]*jobRun
	order []string
}

func newMigrationService(core *CoordinatorImpl) *migrationService {
	return &migrationService{
		core: core,
		jobs: make(map[string]*jobRun),
	}
}

func (s *migrationService) submit(ctx context.Context, req domain.MigrationRequest) (*domain.MigrationJob, error) {
	slots := slotmap.Normalize(req.Slots)
	if req.SrcServerID == "" || req.DestServerID == "" {
		return nil, domain.Invalid("srcServerId and destServerId are required")
	}
	if req.SrcServerID == req.DestServerID {
		return nil, domain.Invalid("source and destination are both %s", req.SrcServerID)
	}
	if len(slots) == 0 {
		return nil, domain.Invalid("no slots requested")
	}
	size := s.core.slots.Size()
	for _, r := range slots {
		if r.Start < 0 || r.End >= size {
			return nil, domain.Invalid("range %s outside [0, %d)", r, size)
		}
	}

	rawID, err := s.core.ids.Next()
	if err != nil {
		return nil, fmt.Errorf("generate job id: %w", err)
	}
	id := strconv.FormatInt(rawID, 10)

	if err := s.core.ranges.reserve(id, slots); err != nil {
		return nil, err
	}
	if err := s.validate(req.SrcServerID, req.DestServerID, slots); err != nil {
		s.core.ranges.release(id)
		return nil, err
	}

	now := s.core.now()
	job := &domain.MigrationJob{
		ID:           id,
		SrcServerID:  req.SrcServerID,
		DestServerID: req.DestServerID,
		Slots:        slots,
		State:        domain.StateRequested,
		StartedAt:    now,
		UpdatedAt:    now,
		History:      []domain.Transition{{To: domain.StateRequested, At: now}},
	}

	run := &jobRun{job: job}
	if timeout := s.core.cfg.Migration.StateTimeout(string(domain.StateRequested)); timeout > 0 {
		run.queued = time.AfterFunc(timeout, func() {
			s.finishQueued(id, domain.StateFailed, fmt.Sprintf("%s exceeded max dwell time %s", domain.StateRequested, timeout))
		})
	}

	s.mu.Lock()
	s.jobs[id] = run
	s.order = append(s.order, id)
	out := job.Clone()
	s.mu.Unlock()

	metrics.MigrationsInFlight.Inc()
	logger.Infow("Migration requested",
		"job_id", id,
		"src_server_id", req.SrcServerID,
		"dest_server_id", req.DestServerID,
		"slots", slotmap.Format(slots),
	)
	s.core.persist(ctx)

	if err := s.core.pool.Submit(ctx, func() { s.run(id) }); err != nil {
		s.finishQueued(id, domain.StateFailed, fmt.Sprintf("schedule: %v", err))
		return nil, fmt.Errorf("schedule migration %s: %w", id, err)
	}
	s.core.reportPool()
	return out, nil
}

func (s *migrationService) validate(srcID, destID string, slots []slotmap.Range) error {
	src, ok := s.core.membership.get(srcID)
	if !ok {
		return domain.Invalid("unknown source server %s", srcID)
	}
	if src.Status == domain.StatusGone {
		return domain.Invalid("source server %s is gone", srcID)
	}
	dest, ok := s.core.membership.get(destID)
	if !ok {
		return domain.Invalid("unknown destination server %s", destID)
	}
	if !dest.HoldsData() {
		return domain.Invalid("destination server %s has no data plane", destID)
	}
	if !dest.Eligible() {
		return domain.Invalid("destination server %s is %s, not active", destID, dest.Status)
	}

	if err := s.core.slots.OwnsAll(srcID, slots); err != nil {
		var busy *slotmap.BusyError
		if errors.As(err, &busy) {
			return &domain.SlotRangeBusyError{JobID: busy.JobID, Slot: busy.Slot}
		}
		return domain.Invalid("%v", err)
	}
	return nil
}

func (s *migrationService) get(id string) (*domain.MigrationJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownJob, id)
	}
	return run.job.Clone(), nil
}

func (s *migrationService) list() []*domain.MigrationJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.MigrationJob, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.jobs[id].job.Clone())
	}
	return out
}

// involved reports whether a non-terminal job names the server.
func (s *migrationService) involved(serverID string) bool {
	return s.jobInvolving(serverID) != ""
}

func (s *migrationService) jobInvolving(serverID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		job := s.jobs[id].job
		if job.State.Terminal() {
			continue
		}
		if job.SrcServerID == serverID || job.DestServerID == serverID {
			return id
		}
	}
	return ""
}

func (s *migrationService) cancel(ctx context.Context, id string) (*domain.MigrationJob, error) {
	s.mu.Lock()
	run, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownJob, id)
	}
	job := run.job
	if job.State.Terminal() || job.State.Committed() {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: job %s is %s", domain.ErrCancelRefused, id, job.State)
	}

	if !run.started {
		change := s.transitionLocked(run, domain.StateAborted, cancelReason)
		s.mu.Unlock()
		s.core.ranges.release(id)
		s.afterTransition(ctx, change)
		return change.job, nil
	}

	job.CancelRequested = true
	if job.State == domain.StateRequested || job.State == domain.StateSourceLocked {
		if run.cancel != nil {
			run.cancel(domain.ErrCanceled)
		}
	}
	out := job.Clone()
	s.mu.Unlock()

	logger.Infow("Migration cancel requested", "job_id", id, "state", out.State)
	s.core.persist(ctx)
	return out, nil
}

// abandon fails every pre-commit job that names serverID.
func (s *migrationService) abandon(ctx context.Context, serverID string, cause error) {
	var queued []string

	s.mu.Lock()
	for _, id := range s.order {
		run := s.jobs[id]
		job := run.job
		if job.State.Terminal() || job.State.Committed() {
			continue
		}
		if job.SrcServerID != serverID && job.DestServerID != serverID {
			continue
		}
		if !run.started {
			queued = append(queued, id)
			continue
		}
		if run.cancel != nil {
			run.cancel(cause)
		}
	}
	s.mu.Unlock()

	for _, id := range queued {
		s.finishQueued(id, domain.StateFailed, cause.Error())
	}
}

// finishQueued ends a job that never reached a worker.
func (s *migrationService) finishQueued(id string, state domain.MigrationState, reason string) {
	s.mu.Lock()
	run, ok := s.jobs[id]
	if !ok || run.started || run.job.State.Terminal() {
		s.mu.Unlock()
		return
	}
	change := s.transitionLocked(run, state, reason)
	s.mu.Unlock()

	s.core.ranges.release(id)
	s.afterTransition(s.core.lifeCtx, change)
}

// dequeuedLocked stops the Requested dwell timer once a job leaves the queue.
func (s *migrationService) dequeuedLocked(run *jobRun) {
	if run.queued != nil {
		run.queued.Stop()
		run.queued = nil
	}
}

// stateChange is what a transition reports once the lock is released.
type stateChange struct {
	job    *domain.MigrationJob
	from   domain.MigrationState
	reason string
}

// transition moves a job to the next state, logs it and persists a snapshot.
func (s *migrationService) transition(ctx context.Context, id string, to domain.MigrationState, reason string) error {
	s.mu.Lock()
	run, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrUnknownJob, id)
	}
	from := run.job.State
	if !from.CanTransition(to) {
		s.mu.Unlock()
		return fmt.Errorf("illegal transition %s -> %s for job %s", from, to, id)
	}
	if to == domain.StateCommitting && run.job.CancelRequested {
		s.mu.Unlock()
		return domain.ErrCanceled
	}
	change := s.transitionLocked(run, to, reason)
	s.mu.Unlock()

	s.afterTransition(ctx, change)
	return nil
}

func (s *migrationService) transitionLocked(run *jobRun, to domain.MigrationState, reason string) stateChange {
	job := run.job
	now := s.core.now()
	from := job.State

	metrics.MigrationStepDuration.WithLabelValues(string(from)).Observe(now.Sub(job.UpdatedAt).Seconds())
	metrics.MigrationTransitions.WithLabelValues(string(from), string(to)).Inc()

	job.History = append(job.History, domain.Transition{From: from, To: to, At: now, Reason: reason})
	job.State = to
	job.UpdatedAt = now
	if to.Terminal() {
		s.dequeuedLocked(run)
		job.FinishedAt = now
		if to != domain.StateCompleted {
			job.Error = reason
		}
		metrics.MigrationsInFlight.Dec()
		metrics.MigrationsTotal.WithLabelValues(string(to)).Inc()
		s.evictLocked()
	}
	return stateChange{job: job.Clone(), from: from, reason: reason}
}

func (s *migrationService) afterTransition(ctx context.Context, change stateChange) {
	job := change.job
	switch job.State {
	case domain.StateFailed:
		logger.Warnw("Migration failed",
			"job_id", job.ID,
			"from", change.from,
			"reason", change.reason,
		)
	default:
		logger.Infow("Migration transition",
			"job_id", job.ID,
			"from", change.from,
			"to", job.State,
			"reason", change.reason,
		)
	}
	s.core.persist(ctx)
}

// evictLocked drops the oldest terminal jobs beyond the history limit.
func (s *migrationService) evictLocked() {
	limit := s.core.cfg.Migration.JobHistory
	if limit <= 0 {
		return
	}
	terminal := 0
	for _, id := range s.order {
		if s.jobs[id].job.State.Terminal() {
			terminal++
		}
	}
	if terminal <= limit {
		return
	}

	kept := s.order[:0]
	for _, id := range s.order {
		if terminal > limit && s.jobs[id].job.State.Terminal() {
			delete(s.jobs, id)
			terminal--
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
}

func (s *migrationService) update(id string, fn func(job *domain.MigrationJob)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run, ok := s.jobs[id]; ok {
		fn(run.job)
	}
}

// checkpoint stops the job at a safe point when it was canceled or interrupted.
func (s *migrationService) checkpoint(ctx context.Context, id string) error {
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if run, ok := s.jobs[id]; ok && run.job.CancelRequested {
		return domain.ErrCanceled
	}
	return nil
}

// restore loads jobs from a snapshot; callers reconcile non-terminal ones.
func (s *migrationService) restore(jobs []domain.MigrationJob) {
	sort.SliceStable(jobs, func(i, j int) bool {
		return jobs[i].StartedAt.Before(jobs[j].StartedAt)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = make(map[string]*jobRun, len(jobs))
	s.order = s.order[:0]
	for i := range jobs {
		job := jobs[i].Clone()
		s.jobs[job.ID] = &jobRun{job: job, started: true}
		s.order = append(s.order, job.ID)
		if !job.State.Terminal() {
			metrics.MigrationsInFlight.Inc()
		}
	}
}

func (s *migrationService) snapshot() []domain.MigrationJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.MigrationJob, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.jobs[id].job.Clone())
	}
	return out
}

// fenceTTL covers every state a job can spend fenced, including checksum retries.
func (s *migrationService) fenceTTL() time.Duration {
	cfg := s.core.cfg.Migration
	perCopy := cfg.StateTimeout(string(domain.StateCopying)) + cfg.StateTimeout(string(domain.StateVerifying))
	return time.Duration(cfg.ChecksumRetries+1)*perCopy +
		cfg.StateTimeout(string(domain.StateSourceLocked)) +
		cfg.StateTimeout(string(domain.StateCommitting))
}
