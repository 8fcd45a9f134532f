package gossip_handler

import (
	"context"
	"errors"
	"time"

	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/domain"
	"github.com/anthanhphan/go-slot-coordinator/pkg/gossip"
	"github.com/anthanhphan/gosdk/logger"
)

// roleCoordinator is advertised by coordinator processes, which hold no slots.
const roleCoordinator = "coordinator"

// Liveness is the part of the coordinator gossip events feed.
type Liveness interface {
	Heartbeat(ctx context.Context, serverID string) error
	Suspect(ctx context.Context, serverID string) error
}

// Listener turns gossip membership events into coordinator liveness updates.
type Listener struct {
	svc     Liveness
	timeout time.Duration
}

var _ gossip.Listener = (*Listener)(nil)

func NewListener(svc Liveness) *Listener {
	return &Listener{svc: svc, timeout: time.Second}
}

// MemberAlive counts as a heartbeat for a registered server.
func (l *Listener) MemberAlive(m gossip.Member) {
	if m.Role == roleCoordinator {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	l.report("heartbeat", m.ServerID, l.svc.Heartbeat(ctx, m.ServerID))
}

// MemberLeft marks a registered server suspect until it heartbeats again.
func (l *Listener) MemberLeft(m gossip.Member) {
	if m.Role == roleCoordinator {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	l.report("suspect", m.ServerID, l.svc.Suspect(ctx, m.ServerID))
}

func (l *Listener) report(op, serverID string, err error) {
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotLeader),
		errors.Is(err, domain.ErrUnknownServer),
		errors.Is(err, domain.ErrServerGone):
		// Followers ignore gossip; unregistered and gone servers must join over REST.
		logger.Debugw("Gossip event ignored", "op", op, "server_id", serverID, "reason", err.Error())
	default:
		logger.Warnw("Failed to apply gossip event", "op", op, "server_id", serverID, "error", err)
	}
}
