package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/domain"
	"github.com/anthanhphan/go-slot-coordinator/internal/metrics"
	"github.com/anthanhphan/go-slot-coordinator/pkg/slotmap"
	"github.com/anthanhphan/gosdk/logger"
)

// membershipService tracks metadata servers and their liveness.
type membershipService struct {
	core *CoordinatorImpl

	mu         sync.RWMutex
	registry   map[string]*domain.Server
	tombstones map[string]string // serverID -> rpcAddr of a server that left
	backlog    map[string]domain.BacklogEntry
}

func newMembershipService(core *CoordinatorImpl) *membershipService {
	return &membershipService{
		core:       core,
		registry:   make(map[string]*domain.Server),
		tombstones: make(map[string]string),
		backlog:    make(map[string]domain.BacklogEntry),
	}
}

func (s *membershipService) registerLeader() {
	id, addr := s.core.Leader()
	s.markLeader(id, addr)
}

func (s *membershipService) markLeader(leaderID, leaderAddr string) {
	now := s.core.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, srv := range s.registry {
		srv.IsLeader = srv.ServerID == leaderID
	}
	if leaderID == "" {
		return
	}
	if srv, ok := s.registry[leaderID]; ok {
		if leaderAddr != "" {
			srv.HTTPAddr = leaderAddr
		}
		srv.Status = domain.StatusActive
		srv.LastHeartbeat = now
		return
	}
	s.registry[leaderID] = &domain.Server{
		ServerID:      leaderID,
		HTTPAddr:      leaderAddr,
		IsLeader:      true,
		Status:        domain.StatusActive,
		LastHeartbeat: now,
		JoinedAt:      now,
	}
}

func (s *membershipService) join(ctx context.Context, req domain.JoinRequest) (*domain.Server, error) {
	leaderID, leaderAddr := s.core.Leader()
	if req.LeaderID != leaderID {
		return nil, &domain.NotLeaderError{LeaderID: leaderID, LeaderAddr: leaderAddr}
	}
	if req.ServerID == "" {
		return nil, domain.Invalid("serverId is required")
	}
	if req.ServerID == leaderID {
		return nil, fmt.Errorf("%w: %s is the leader", domain.ErrAlreadyMember, req.ServerID)
	}

	if (req.HTTPAddr == "" || req.RPCAddr == "") && s.core.addrs != nil {
		if httpAddr, rpcAddr, ok := s.core.addrs.Lookup(req.ServerID); ok {
			if req.HTTPAddr == "" {
				req.HTTPAddr = httpAddr
			}
			if req.RPCAddr == "" {
				req.RPCAddr = rpcAddr
			}
		}
	}
	if req.RPCAddr == "" {
		return nil, domain.Invalid("rpcAddr is required for %s", req.ServerID)
	}

	now := s.core.now()

	s.mu.Lock()
	if existing, ok := s.registry[req.ServerID]; ok {
		if existing.Status != domain.StatusGone {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", domain.ErrAlreadyMember, req.ServerID)
		}
		if existing.RPCAddr != req.RPCAddr {
			s.mu.Unlock()
			return nil, domain.Invalid("%s was %s and cannot rejoin as %s", req.ServerID, existing.RPCAddr, req.RPCAddr)
		}
	}
	if prev, ok := s.tombstones[req.ServerID]; ok && prev != req.RPCAddr {
		s.mu.Unlock()
		return nil, domain.Invalid("server id %s was used by %s", req.ServerID, prev)
	}

	srv := &domain.Server{
		ServerID:      req.ServerID,
		HTTPAddr:      req.HTTPAddr,
		RPCAddr:       req.RPCAddr,
		Status:        domain.StatusActive,
		LastHeartbeat: now,
		JoinedAt:      now,
	}
	s.registry[req.ServerID] = srv
	delete(s.tombstones, req.ServerID)
	delete(s.backlog, req.ServerID)
	out := *srv
	s.mu.Unlock()

	logger.Infow("Server joined",
		"server_id", out.ServerID,
		"http_addr", out.HTTPAddr,
		"rpc_addr", out.RPCAddr,
	)
	s.reportStatus()
	s.core.persist(ctx)
	return &out, nil
}

func (s *membershipService) leave(ctx context.Context, serverID string) (*domain.LeaveResult, error) {
	leaderID, _ := s.core.Leader()
	if serverID == leaderID {
		return nil, domain.Invalid("the leader %s cannot leave", serverID)
	}

	s.mu.Lock()
	srv, ok := s.registry[serverID]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownServer, serverID)
	}
	if held := s.heldBy(serverID); len(held) > 0 {
		s.mu.Unlock()
		return nil, &domain.HasOwnedSlotsError{ServerID: serverID, Slots: held}
	}
	if s.core.migrations.involved(serverID) {
		s.mu.Unlock()
		return nil, &domain.HasOwnedSlotsError{ServerID: serverID}
	}

	result := &domain.LeaveResult{
		ServerID:    serverID,
		Reclaimable: slotmap.Normalize(srv.Drained),
	}
	s.tombstones[serverID] = srv.RPCAddr
	delete(s.registry, serverID)
	delete(s.backlog, serverID)
	s.mu.Unlock()

	metrics.SlotsOwned.DeleteLabelValues(serverID)
	logger.Infow("Server left",
		"server_id", serverID,
		"reclaimable", slotmap.Format(result.Reclaimable),
	)
	s.reportStatus()
	s.core.persist(ctx)
	return result, nil
}

// heldBy lists every slot the server owns or takes part in migrating.
func (s *membershipService) heldBy(serverID string) []slotmap.Range {
	var held []slotmap.Range
	for _, seg := range s.core.slots.Segments() {
		if seg.Involves(serverID) {
			held = append(held, seg.Range)
		}
	}
	return slotmap.Normalize(held)
}

func (s *membershipService) heartbeat(serverID string) error {
	now := s.core.now()

	s.mu.Lock()
	srv, ok := s.registry[serverID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrUnknownServer, serverID)
	}
	if srv.Status == domain.StatusGone {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s must rejoin", domain.ErrServerGone, serverID)
	}
	srv.LastHeartbeat = now
	recovered := srv.Status == domain.StatusSuspect
	if recovered {
		srv.Status = domain.StatusActive
	}
	s.mu.Unlock()

	if recovered {
		logger.Infow("Server recovered", "server_id", serverID)
		s.reportStatus()
	}
	return nil
}

// suspect demotes an active server on an out-of-band failure signal.
// The sweeper still decides when it is gone.
func (s *membershipService) suspect(serverID string) error {
	leaderID, _ := s.core.Leader()
	if serverID == leaderID {
		return nil
	}

	s.mu.Lock()
	srv, ok := s.registry[serverID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrUnknownServer, serverID)
	}
	demoted := srv.Status == domain.StatusActive
	if demoted {
		srv.Status = domain.StatusSuspect
	}
	s.mu.Unlock()

	if demoted {
		logger.Warnw("Server suspected", "server_id", serverID, "source", "gossip")
		s.reportStatus()
	}
	return nil
}

func (s *membershipService) drain(ctx context.Context, serverID string) (*domain.Server, error) {
	leaderID, _ := s.core.Leader()
	if serverID == leaderID {
		return nil, domain.Invalid("the leader %s cannot be drained", serverID)
	}

	s.mu.Lock()
	srv, ok := s.registry[serverID]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownServer, serverID)
	}
	if srv.Status == domain.StatusGone {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrServerGone, serverID)
	}
	srv.Status = domain.StatusLeaving
	out := *srv
	s.mu.Unlock()

	logger.Infow("Server draining", "server_id", serverID)
	s.reportStatus()
	s.core.persist(ctx)
	return &out, nil
}

func (s *membershipService) listPeers(caller string) []domain.Server {
	s.mu.RLock()
	peers := make([]domain.Server, 0, len(s.registry))
	for id, srv := range s.registry {
		if id == caller {
			continue
		}
		peers = append(peers, *srv)
	}
	s.mu.RUnlock()

	sortServers(peers)
	return peers
}

func (s *membershipService) servers() []domain.Server {
	return s.listPeers("")
}

func (s *membershipService) get(serverID string) (domain.Server, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	srv, ok := s.registry[serverID]
	if !ok {
		return domain.Server{}, false
	}
	return *srv, true
}

// recordDrained remembers ranges a server gave up through completed migrations.
func (s *membershipService) recordDrained(serverID string, ranges []slotmap.Range) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if srv, ok := s.registry[serverID]; ok {
		srv.Drained = slotmap.Normalize(append(srv.Drained, ranges...))
	}
}

// sweepAt demotes servers whose heartbeats are overdue and returns those that became gone.
func (s *membershipService) sweepAt(now time.Time) []string {
	suspectAfter := s.core.cfg.Membership.SuspectAfter()
	goneAfter := s.core.cfg.Membership.GoneAfter()
	leaderID, _ := s.core.Leader()

	var gone []string
	var suspected []string

	s.mu.Lock()
	for id, srv := range s.registry {
		if id == leaderID {
			srv.LastHeartbeat = now
			continue
		}
		silence := now.Sub(srv.LastHeartbeat)
		switch {
		case srv.Status == domain.StatusGone:
		case silence >= goneAfter:
			srv.Status = domain.StatusGone
			gone = append(gone, id)
			s.backlog[id] = domain.BacklogEntry{ServerID: id, DetectedAt: now}
		case silence >= suspectAfter && srv.Status == domain.StatusActive:
			srv.Status = domain.StatusSuspect
			suspected = append(suspected, id)
		}
	}
	s.mu.Unlock()

	for _, id := range suspected {
		logger.Warnw("Server suspected", "server_id", id)
	}
	for _, id := range gone {
		logger.Warnw("Server gone",
			"server_id", id,
			"stranded", slotmap.Format(s.core.slots.RangesOf(id)),
		)
	}
	if len(gone) > 0 || len(suspected) > 0 {
		s.reportStatus()
	}
	return gone
}

func (s *membershipService) backlogEntries() []domain.BacklogEntry {
	s.mu.RLock()
	entries := make([]domain.BacklogEntry, 0, len(s.backlog))
	for _, entry := range s.backlog {
		entries = append(entries, entry)
	}
	s.mu.RUnlock()

	for i := range entries {
		entries[i].Slots = s.core.slots.RangesOf(entries[i].ServerID)
	}
	sortBacklog(entries)
	return entries
}

func (s *membershipService) reclaim(ctx context.Context, serverID, destID string) ([]slotmap.Range, error) {
	gone, ok := s.get(serverID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownServer, serverID)
	}
	if gone.Status != domain.StatusGone {
		return nil, domain.Invalid("%s is %s; only gone servers can be reclaimed", serverID, gone.Status)
	}
	dest, ok := s.get(destID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownServer, destID)
	}
	if !dest.HoldsData() {
		return nil, domain.Invalid("destination %s has no data plane", destID)
	}
	if !dest.Eligible() {
		return nil, domain.Invalid("destination %s is %s, not active", destID, dest.Status)
	}
	if s.core.migrations.involved(serverID) || len(s.core.slots.MigratingFrom(serverID)) > 0 {
		return nil, &domain.SlotRangeBusyError{JobID: s.core.migrations.jobInvolving(serverID)}
	}

	moved, err := s.core.slots.Reassign(serverID, destID)
	if err != nil {
		return nil, fmt.Errorf("reassign %s to %s: %w", serverID, destID, err)
	}

	s.mu.Lock()
	delete(s.backlog, serverID)
	s.mu.Unlock()

	logger.Infow("Reclaimed slots of gone server",
		"server_id", serverID,
		"dest_server_id", destID,
		"slots", slotmap.Format(moved),
	)
	s.core.reportOwnership()
	s.core.persist(ctx)

	claimCtx, cancel := context.WithTimeout(ctx, s.core.migrations.cleanupTimeout())
	defer cancel()
	if err := s.core.dataplane.ClaimSlots(claimCtx, dest.RPCAddr, "reclaim-"+serverID, moved); err != nil {
		logger.Warnw("Failed to claim reclaimed slots on destination", "server_id", destID, "error", err)
	}
	return moved, nil
}

// reportStatus refreshes the per-status server gauges.
func (s *membershipService) reportStatus() {
	counts := map[domain.ServerStatus]int{
		domain.StatusActive:  0,
		domain.StatusSuspect: 0,
		domain.StatusLeaving: 0,
		domain.StatusGone:    0,
	}
	s.mu.RLock()
	for _, srv := range s.registry {
		counts[srv.Status]++
	}
	s.mu.RUnlock()

	for status, n := range counts {
		metrics.Servers.WithLabelValues(string(status)).Set(float64(n))
	}
}
