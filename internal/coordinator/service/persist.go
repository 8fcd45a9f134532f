package service

import (
	"context"
	"sort"

	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/domain"
	"github.com/anthanhphan/go-slot-coordinator/internal/metrics"
	"github.com/anthanhphan/go-slot-coordinator/pkg/slotmap"
	"github.com/anthanhphan/gosdk/logger"
)

// persist writes a snapshot of the slot map, registry and jobs. Failures are logged.
func (c *CoordinatorImpl) persist(ctx context.Context) {
	if c.store == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)

	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	if err := c.store.Save(ctx, c.snapshot()); err != nil {
		metrics.SnapshotSaves.WithLabelValues("error").Inc()
		logger.Errorw("Failed to save coordinator snapshot", "error", err)
		return
	}
	metrics.SnapshotSaves.WithLabelValues("success").Inc()
}

func (c *CoordinatorImpl) snapshot() *domain.Snapshot {
	leaderID, leaderAddr := c.Leader()

	c.membership.mu.RLock()
	servers := make([]domain.Server, 0, len(c.membership.registry))
	for _, srv := range c.membership.registry {
		servers = append(servers, *srv)
	}
	tombstones := make(map[string]string, len(c.membership.tombstones))
	for id, addr := range c.membership.tombstones {
		tombstones[id] = addr
	}
	backlog := make([]domain.BacklogEntry, 0, len(c.membership.backlog))
	for _, entry := range c.membership.backlog {
		backlog = append(backlog, entry)
	}
	c.membership.mu.RUnlock()

	sortServers(servers)
	sortBacklog(backlog)

	return &domain.Snapshot{
		Version:    domain.SnapshotVersion,
		SavedAt:    c.now(),
		LeaderID:   leaderID,
		LeaderAddr: leaderAddr,
		SlotCount:  c.slots.Size(),
		Segments:   c.slots.Segments(),
		Servers:    servers,
		Tombstones: tombstones,
		Jobs:       c.migrations.snapshot(),
		Backlog:    backlog,
	}
}

// reportOwnership refreshes the per-server owned slot gauges.
func (c *CoordinatorImpl) reportOwnership() {
	owned := make(map[string][]slotmap.Range)
	for _, seg := range c.slots.Segments() {
		if seg.Owner != "" {
			owned[seg.Owner] = append(owned[seg.Owner], seg.Range)
		}
	}
	for _, srv := range c.membership.servers() {
		metrics.SlotsOwned.WithLabelValues(srv.ServerID).Set(float64(slotmap.Count(owned[srv.ServerID])))
	}
}

// reportPool refreshes the worker pool gauges.
func (c *CoordinatorImpl) reportPool() {
	metrics.MigrationWorkers.WithLabelValues("running").Set(float64(c.pool.Running()))
	metrics.MigrationWorkers.WithLabelValues("queued").Set(float64(c.pool.Queued()))
}

func sortBacklog(entries []domain.BacklogEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ServerID < entries[j].ServerID
	})
}
