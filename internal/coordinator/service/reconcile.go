package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/domain"
	"github.com/anthanhphan/go-slot-coordinator/pkg/slotmap"
	"github.com/anthanhphan/gosdk/logger"
)

const restartReason = "interrupted by coordinator restart"

// Restore loads the last snapshot and settles jobs that were in flight when it was written.
// Without a snapshot the registry and slot map are seeded from the bootstrap configuration.
func (c *CoordinatorImpl) Restore(ctx context.Context) error {
	if c.store == nil {
		return c.bootstrap(ctx)
	}
	snap, err := c.store.Load(ctx)
	if errors.Is(err, domain.ErrNoSnapshot) {
		return c.bootstrap(ctx)
	}
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if snap.SlotCount != c.slots.Size() {
		return fmt.Errorf("snapshot has %d slots, configured %d", snap.SlotCount, c.slots.Size())
	}
	if err := c.slots.Restore(snap.Segments); err != nil {
		return fmt.Errorf("restore slot map: %w", err)
	}

	c.restoreLeader(snap)
	c.restoreMembership(snap)
	c.migrations.restore(snap.Jobs)
	c.reconcileJobs()

	logger.Infow("Coordinator state restored",
		"saved_at", snap.SavedAt,
		"servers", len(snap.Servers),
		"jobs", len(snap.Jobs),
	)
	c.membership.reportStatus()
	c.reportOwnership()
	c.persist(ctx)
	return nil
}

// restoreLeader keeps a leader recorded through SetLeader over the configured one.
func (c *CoordinatorImpl) restoreLeader(snap *domain.Snapshot) {
	if snap.LeaderID == "" {
		return
	}
	c.leaderMu.Lock()
	defer c.leaderMu.Unlock()
	if snap.LeaderID != c.leaderID {
		logger.Infow("Leader restored from snapshot",
			"configured_leader_id", c.leaderID,
			"leader_id", snap.LeaderID,
			"leader_addr", snap.LeaderAddr,
		)
	}
	c.leaderID = snap.LeaderID
	c.leaderAddr = snap.LeaderAddr
}

func (c *CoordinatorImpl) restoreMembership(snap *domain.Snapshot) {
	now := c.now()
	m := c.membership

	m.mu.Lock()
	m.registry = make(map[string]*domain.Server, len(snap.Servers))
	for i := range snap.Servers {
		srv := snap.Servers[i]
		// Servers could not heartbeat while the coordinator was down.
		if srv.Status != domain.StatusGone {
			srv.LastHeartbeat = now
		}
		m.registry[srv.ServerID] = &srv
	}
	m.tombstones = make(map[string]string, len(snap.Tombstones))
	for id, addr := range snap.Tombstones {
		m.tombstones[id] = addr
	}
	m.backlog = make(map[string]domain.BacklogEntry, len(snap.Backlog))
	for _, entry := range snap.Backlog {
		m.backlog[entry.ServerID] = entry
	}
	m.mu.Unlock()

	m.registerLeader()
}

// reconcileJobs commits jobs that reached Committing and fails everything earlier.
func (c *CoordinatorImpl) reconcileJobs() {
	active := make(map[string]bool)
	for _, job := range c.migrations.snapshot() {
		if job.State.Terminal() {
			continue
		}
		active[job.ID] = true

		if job.State.Committed() {
			c.recoverCommit(job)
			continue
		}
		if len(c.slots.JobRanges(job.ID)) > 0 {
			if _, err := c.slots.Abort(job.ID); err != nil {
				logger.Errorw("Failed to revert interrupted migration", "job_id", job.ID, "error", err)
			}
		}
		if err := c.migrations.transition(c.lifeCtx, job.ID, domain.StateFailed, restartReason); err != nil {
			logger.Errorw("Failed to record migration outcome", "job_id", job.ID, "error", err)
		}
		c.cleanupAsync(job, false)
	}

	// Transitions whose job is no longer known go back to their source.
	for _, seg := range c.slots.Segments() {
		if seg.Transition == nil || active[seg.Transition.JobID] {
			continue
		}
		if _, err := c.slots.Abort(seg.Transition.JobID); err != nil && !errors.Is(err, slotmap.ErrUnknownJob) {
			logger.Errorw("Failed to revert orphaned transition", "job_id", seg.Transition.JobID, "error", err)
		}
	}
}

func (c *CoordinatorImpl) recoverCommit(job domain.MigrationJob) {
	if len(c.slots.JobRanges(job.ID)) > 0 {
		committed, err := c.slots.Commit(job.ID)
		if err != nil {
			logger.Errorw("Slot map invariant violated during recovery, manual repair required", "job_id", job.ID, "error", err)
			if err := c.migrations.transition(c.lifeCtx, job.ID, domain.StateFailed, fmt.Sprintf("commit: %v", err)); err != nil {
				logger.Errorw("Failed to record migration outcome", "job_id", job.ID, "error", err)
			}
			return
		}
		c.membership.recordDrained(job.SrcServerID, committed)
	}
	if err := c.migrations.transition(c.lifeCtx, job.ID, domain.StateCompleted, "committed after coordinator restart"); err != nil {
		logger.Errorw("Failed to record migration outcome", "job_id", job.ID, "error", err)
	}
	c.cleanupAsync(job, true)
}

// cleanupAsync tells the data plane what happened to a job settled during restore.
func (c *CoordinatorImpl) cleanupAsync(job domain.MigrationJob, committed bool) {
	src, srcOK := c.membership.get(job.SrcServerID)
	dest, destOK := c.membership.get(job.DestServerID)

	err := c.pool.Submit(c.lifeCtx, func() {
		ctx, cancel := context.WithTimeout(c.lifeCtx, c.migrations.cleanupTimeout())
		defer cancel()
		if committed && destOK {
			if err := c.dataplane.ClaimSlots(ctx, dest.RPCAddr, job.ID, job.Slots); err != nil {
				logger.Warnw("Failed to claim migrated slots on destination", "job_id", job.ID, "error", err)
			}
		}
		if committed && srcOK {
			owner := domain.SlotOwner{ServerID: job.DestServerID}
			if destOK {
				owner = dest.Owner()
			}
			if err := c.dataplane.ReleaseSlots(ctx, src.RPCAddr, job.ID, job.Slots, owner); err != nil {
				logger.Warnw("Failed to release migrated slots on source", "job_id", job.ID, "error", err)
			}
		}
		if srcOK {
			if err := c.dataplane.UnfenceSlots(ctx, src.RPCAddr, job.ID); err != nil {
				logger.Warnw("Failed to unfence source", "job_id", job.ID, "error", err)
			}
		}
		if !committed && destOK {
			c.migrations.discardWith(ctx, dest.RPCAddr, job.ID, job.Slots)
		}
	})
	if err != nil {
		logger.Warnw("Failed to schedule data plane cleanup", "job_id", job.ID, "error", err)
	}
}

// bootstrap seeds the registry and slot map from configuration.
func (c *CoordinatorImpl) bootstrap(ctx context.Context) error {
	now := c.now()
	for _, b := range c.cfg.Cluster.Bootstrap {
		ranges, err := slotmap.ParseRanges(b.Slots, c.slots.Size())
		if err != nil {
			return fmt.Errorf("bootstrap %s: %w", b.ServerID, err)
		}
		for _, r := range ranges {
			if err := c.slots.Assign(r, b.ServerID); err != nil {
				return fmt.Errorf("bootstrap %s: %w", b.ServerID, err)
			}
		}

		c.membership.mu.Lock()
		if _, ok := c.membership.registry[b.ServerID]; !ok {
			c.membership.registry[b.ServerID] = &domain.Server{
				ServerID:      b.ServerID,
				HTTPAddr:      b.HTTPAddr,
				RPCAddr:       b.RPCAddr,
				Status:        domain.StatusActive,
				LastHeartbeat: now,
				JoinedAt:      now,
			}
		}
		c.membership.mu.Unlock()
	}
	c.membership.registerLeader()

	if !c.slots.Complete() {
		logger.Warnw("Slot map does not cover every slot yet",
			"slot_count", c.slots.Size(),
		)
	}
	logger.Infow("Coordinator bootstrapped", "servers", len(c.cfg.Cluster.Bootstrap))
	c.membership.reportStatus()
	c.reportOwnership()
	c.persist(ctx)
	return nil
}
