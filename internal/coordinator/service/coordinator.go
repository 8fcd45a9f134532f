package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/config"
	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/domain"
	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/port"
	"github.com/anthanhphan/go-slot-coordinator/pkg/resilience"
	"github.com/anthanhphan/go-slot-coordinator/pkg/slotmap"
	"github.com/anthanhphan/gosdk/logger"
	"github.com/google/uuid"
)

var errShutdown = errors.New("coordinator shutting down")

// CoordinatorImpl is a facade that composes the coordinator use-case services.
type CoordinatorImpl struct {
	cfg       *config.Config
	dataplane port.DataPlane
	store     port.SnapshotStore
	ids       port.IDGenerator
	addrs     port.AddressBook
	now       func() time.Time

	slots  *slotmap.Map
	ranges *rangeLocker
	pool   *resilience.WorkerPool

	leaderMu   sync.RWMutex
	leaderID   string
	leaderAddr string

	saveMu sync.Mutex

	lifeCtx  context.Context
	shutdown context.CancelCauseFunc

	membership *membershipService
	migrations *migrationService
	verifier   *verifier
	sweeper    *sweeper
}

// Ensure CoordinatorImpl implements port.CoordinatorService.
var _ port.CoordinatorService = (*CoordinatorImpl)(nil)

// NewCoordinatorService builds the coordinator facade and all use-case services.
// addrs may be nil when no address discovery is configured.
func NewCoordinatorService(cfg *config.Config, dataplane port.DataPlane, store port.SnapshotStore, ids port.IDGenerator, addrs port.AddressBook) *CoordinatorImpl {
	lifeCtx, shutdown := context.WithCancelCause(context.Background())

	svc := &CoordinatorImpl{
		cfg:        cfg,
		dataplane:  dataplane,
		store:      store,
		ids:        ids,
		addrs:      addrs,
		now:        time.Now,
		slots:      slotmap.New(cfg.Cluster.SlotCount),
		ranges:     newRangeLocker(),
		pool:       resilience.NewWorkerPool(cfg.Migration.Workers, cfg.Migration.QueueSize),
		leaderID:   cfg.LeaderID(),
		leaderAddr: cfg.LeaderAddr(),
		lifeCtx:    lifeCtx,
		shutdown:   shutdown,
	}

	svc.membership = newMembershipService(svc)
	svc.migrations = newMigrationService(svc)
	svc.verifier = newVerifier(dataplane)
	svc.sweeper = newSweeper(svc)

	svc.membership.registerLeader()
	return svc
}

// Join admits a server through the designated leader.
func (c *CoordinatorImpl) Join(ctx context.Context, req domain.JoinRequest) (*domain.Server, error) {
	if err := c.requireLeader(); err != nil {
		return nil, err
	}
	return c.membership.join(ctx, req)
}

// Leave removes a drained server and returns the ranges it gave up.
func (c *CoordinatorImpl) Leave(ctx context.Context, serverID string) (*domain.LeaveResult, error) {
	if err := c.requireLeader(); err != nil {
		return nil, err
	}
	return c.membership.leave(ctx, serverID)
}

// Heartbeat refreshes a server's liveness.
func (c *CoordinatorImpl) Heartbeat(ctx context.Context, serverID string) error {
	if err := c.requireLeader(); err != nil {
		return err
	}
	return c.membership.heartbeat(serverID)
}

// Suspect demotes an active server reported as failed by gossip.
func (c *CoordinatorImpl) Suspect(ctx context.Context, serverID string) error {
	if err := c.requireLeader(); err != nil {
		return err
	}
	return c.membership.suspect(serverID)
}

// Drain marks a server as leaving so it is no longer a migration destination.
func (c *CoordinatorImpl) Drain(ctx context.Context, serverID string) (*domain.Server, error) {
	if err := c.requireLeader(); err != nil {
		return nil, err
	}
	return c.membership.drain(ctx, serverID)
}

// ListPeers returns every known server except the caller, ordered by id.
func (c *CoordinatorImpl) ListPeers(ctx context.Context, serverID string) ([]domain.Server, error) {
	if err := c.requireLeader(); err != nil {
		return nil, err
	}
	return c.membership.listPeers(serverID), nil
}

// Migrate records a migration job and schedules it asynchronously.
func (c *CoordinatorImpl) Migrate(ctx context.Context, req domain.MigrationRequest) (*domain.MigrationJob, error) {
	if err := c.requireLeader(); err != nil {
		return nil, err
	}
	return c.migrations.submit(ctx, req)
}

// Job returns one migration job by id.
func (c *CoordinatorImpl) Job(ctx context.Context, id string) (*domain.MigrationJob, error) {
	if err := c.requireLeader(); err != nil {
		return nil, err
	}
	return c.migrations.get(id)
}

// Jobs returns every retained job, oldest first.
func (c *CoordinatorImpl) Jobs(ctx context.Context) ([]*domain.MigrationJob, error) {
	if err := c.requireLeader(); err != nil {
		return nil, err
	}
	return c.migrations.list(), nil
}

// CancelMigration aborts a job that has not reached Committing.
func (c *CoordinatorImpl) CancelMigration(ctx context.Context, id string) (*domain.MigrationJob, error) {
	if err := c.requireLeader(); err != nil {
		return nil, err
	}
	return c.migrations.cancel(ctx, id)
}

// Backlog lists slots stranded on servers that went away.
func (c *CoordinatorImpl) Backlog(ctx context.Context) ([]domain.BacklogEntry, error) {
	if err := c.requireLeader(); err != nil {
		return nil, err
	}
	return c.membership.backlogEntries(), nil
}

// Reclaim hands every slot of a gone server to destID without copying.
func (c *CoordinatorImpl) Reclaim(ctx context.Context, serverID, destID string) ([]slotmap.Range, error) {
	if err := c.requireLeader(); err != nil {
		return nil, err
	}
	return c.membership.reclaim(ctx, serverID, destID)
}

// SlotsDetail returns a consistent view of ownership keyed by slot-group id.
func (c *CoordinatorImpl) SlotsDetail(ctx context.Context) (map[string]domain.SlotsInfo, error) {
	if err := c.requireLeader(); err != nil {
		return nil, err
	}

	segs := c.slots.Segments()
	owned := make(map[string][]slotmap.Range)
	migrating := make(map[string][]slotmap.Range)
	for _, seg := range segs {
		switch {
		case seg.Transition != nil:
			migrating[seg.Transition.Source] = append(migrating[seg.Transition.Source], seg.Range)
		case seg.Owner != "":
			owned[seg.Owner] = append(owned[seg.Owner], seg.Range)
		}
	}

	servers := c.membership.servers()
	known := make(map[string]domain.Server, len(servers))
	for _, srv := range servers {
		known[srv.ServerID] = srv
	}
	for id := range owned {
		if _, ok := known[id]; !ok {
			known[id] = domain.Server{ServerID: id}
		}
	}

	out := make(map[string]domain.SlotsInfo, len(known))
	for id, srv := range known {
		if srv.IsLeader && len(owned[id]) == 0 && len(migrating[id]) == 0 {
			continue
		}
		ranges := slotmap.Normalize(owned[id])
		info := domain.SlotsInfo{
			ID:        SlotGroupID(id),
			ServerID:  id,
			Location:  srv.HTTPAddr,
			Checksum:  slotmap.Fingerprint(ranges),
			Slots:     slotmap.Format(ranges),
			Migrating: slotmap.Format(slotmap.Normalize(migrating[id])),
		}
		out[info.ID] = info
	}
	return out, nil
}

// SlotCount returns the size of the key space.
func (c *CoordinatorImpl) SlotCount() int {
	return c.slots.Size()
}

// SetLeader records a leader elected outside the coordinator. The current
// leader only accepts a change it announces itself.
func (c *CoordinatorImpl) SetLeader(ctx context.Context, fromID, leaderID, leaderAddr string) error {
	if leaderID == "" {
		return domain.Invalid("leader id is required")
	}
	if c.IsLeader() && fromID != c.cfg.Server.ServerID {
		logger.Warnw("Leader change refused",
			"from_id", fromID,
			"leader_id", leaderID,
		)
		return fmt.Errorf("%w: %s leads and did not announce the change", domain.ErrLeaderChangeRefused, c.cfg.Server.ServerID)
	}

	c.leaderMu.Lock()
	c.leaderID = leaderID
	c.leaderAddr = leaderAddr
	c.leaderMu.Unlock()

	c.membership.markLeader(leaderID, leaderAddr)
	c.persist(ctx)
	logger.Infow("Leader changed", "from_id", fromID, "leader_id", leaderID, "leader_addr", leaderAddr)
	return nil
}

// Leader returns the current leader id and address.
func (c *CoordinatorImpl) Leader() (string, string) {
	c.leaderMu.RLock()
	defer c.leaderMu.RUnlock()
	return c.leaderID, c.leaderAddr
}

// IsLeader reports whether this process is the leader.
func (c *CoordinatorImpl) IsLeader() bool {
	id, _ := c.Leader()
	return id == c.cfg.Server.ServerID
}

// StartSweeper runs the liveness sweep until ctx is canceled.
func (c *CoordinatorImpl) StartSweeper(ctx context.Context, interval time.Duration) {
	c.sweeper.start(ctx, interval)
}

// Sweep runs one liveness pass.
func (c *CoordinatorImpl) Sweep(ctx context.Context) {
	c.sweeper.sweep(ctx)
}

// Close fails in-flight jobs back to their sources and waits for workers.
func (c *CoordinatorImpl) Close() {
	c.shutdown(errShutdown)
	c.pool.Close()
	c.pool.Wait()
}

func (c *CoordinatorImpl) requireLeader() error {
	id, addr := c.Leader()
	if id != c.cfg.Server.ServerID {
		return &domain.NotLeaderError{LeaderID: id, LeaderAddr: addr}
	}
	return nil
}

// SlotGroupID derives the stable slot-group id reported for a server.
func SlotGroupID(serverID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(serverID)).String()
}

func sortServers(servers []domain.Server) {
	sort.Slice(servers, func(i, j int) bool {
		return servers[i].ServerID < servers[j].ServerID
	})
}
