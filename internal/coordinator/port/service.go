package port

import (
	"context"

	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/domain"
	"github.com/anthanhphan/go-slot-coordinator/pkg/slotmap"
)

//go:generate mockgen -destination=../service/mocks/service_mock.go -package=mocks -source=service.go

// CoordinatorService is the control surface. Every call except SetLeader,
// Leader and SlotCount is refused with a NotLeaderError on followers.
type CoordinatorService interface {
	Join(ctx context.Context, req domain.JoinRequest) (*domain.Server, error)
	Leave(ctx context.Context, serverID string) (*domain.LeaveResult, error)
	Heartbeat(ctx context.Context, serverID string) error
	Drain(ctx context.Context, serverID string) (*domain.Server, error)
	ListPeers(ctx context.Context, serverID string) ([]domain.Server, error)

	Migrate(ctx context.Context, req domain.MigrationRequest) (*domain.MigrationJob, error)
	Job(ctx context.Context, id string) (*domain.MigrationJob, error)
	Jobs(ctx context.Context) ([]*domain.MigrationJob, error)
	CancelMigration(ctx context.Context, id string) (*domain.MigrationJob, error)

	SlotsDetail(ctx context.Context) (map[string]domain.SlotsInfo, error)
	Backlog(ctx context.Context) ([]domain.BacklogEntry, error)
	Reclaim(ctx context.Context, serverID, destID string) ([]slotmap.Range, error)

	// SetLeader records a leader change announced by fromID. While this node
	// leads it only accepts changes it announces itself.
	SetLeader(ctx context.Context, fromID, leaderID, leaderAddr string) error
	Leader() (leaderID string, leaderAddr string)
	SlotCount() int
}

// AddressBook resolves server addresses discovered out of band, e.g. via gossip.
type AddressBook interface {
	Lookup(serverID string) (httpAddr string, rpcAddr string, ok bool)
}
