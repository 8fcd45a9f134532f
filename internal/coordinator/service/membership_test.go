package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/config"
	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/domain"
	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/service/mocks"
	"github.com/anthanhphan/go-slot-coordinator/pkg/slotmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func peerIDs(peers []domain.Server) []string {
	ids := make([]string, 0, len(peers))
	for _, p := range peers {
		ids = append(ids, p.ServerID)
	}
	return ids
}

func peerStatus(t *testing.T, svc *CoordinatorImpl, id string) domain.ServerStatus {
	t.Helper()
	srv, ok := svc.membership.get(id)
	require.True(t, ok, "server %s not registered", id)
	return srv.Status
}

func TestJoin(t *testing.T) {
	t.Run("new server is active with no slots", func(t *testing.T) {
		h := newHarness(t)
		srv, err := h.svc.Join(context.Background(), domain.JoinRequest{
			LeaderID: "leader",
			ServerID: "C",
			HTTPAddr: "c:8100",
			RPCAddr:  "c:7100",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusActive, srv.Status)
		assert.Equal(t, h.clock.Now(), srv.JoinedAt)
		assert.Empty(t, h.svc.slots.RangesOf("C"))
	})

	t.Run("second join is rejected and changes nothing", func(t *testing.T) {
		h := newHarness(t)
		h.join(t, "C")
		before := h.svc.slots.Segments()

		_, err := h.svc.Join(context.Background(), domain.JoinRequest{LeaderID: "leader", ServerID: "C", RPCAddr: "C:7100"})
		assert.ErrorIs(t, err, domain.ErrAlreadyMember)
		assert.Equal(t, before, h.svc.slots.Segments())
	})

	t.Run("wrong introducer is redirected", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.svc.Join(context.Background(), domain.JoinRequest{LeaderID: "someone", ServerID: "C", RPCAddr: "c:7100"})
		var notLeader *domain.NotLeaderError
		require.True(t, errors.As(err, &notLeader))
		assert.Equal(t, "leader", notLeader.LeaderID)
		assert.Equal(t, "leader:9000", notLeader.LeaderAddr)
	})

	t.Run("missing rpc address", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.svc.Join(context.Background(), domain.JoinRequest{LeaderID: "leader", ServerID: "C"})
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	})

	t.Run("addresses resolved from address book", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		addrs := mocks.NewMockAddressBook(ctrl)
		addrs.EXPECT().Lookup("C").Return("c:8100", "c:7100", true)
		addrs.EXPECT().Lookup("D").Return("", "", false)

		svc := NewCoordinatorService(testConfig(), newFakeDataPlane(), &memStore{}, &seqIDs{}, addrs)
		t.Cleanup(svc.Close)
		require.NoError(t, svc.Restore(context.Background()))

		srv, err := svc.Join(context.Background(), domain.JoinRequest{LeaderID: "leader", ServerID: "C"})
		require.NoError(t, err)
		assert.Equal(t, "c:8100", srv.HTTPAddr)
		assert.Equal(t, "c:7100", srv.RPCAddr)

		_, err = svc.Join(context.Background(), domain.JoinRequest{LeaderID: "leader", ServerID: "D"})
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)

		// Complete requests never consult the address book.
		_, err = svc.Join(context.Background(), domain.JoinRequest{LeaderID: "leader", ServerID: "E", HTTPAddr: "e:8100", RPCAddr: "e:7100"})
		require.NoError(t, err)
	})
}

func TestFollowerRedirectsEveryCall(t *testing.T) {
	cfg := testConfig()
	cfg.Cluster.LeaderID = "other"
	cfg.Cluster.LeaderAddr = "other:9000"
	svc := newTestService(t, cfg, newFakeDataPlane(), &memStore{}, newFakeClock())
	ctx := context.Background()

	calls := map[string]func() error{
		"join": func() error {
			_, err := svc.Join(ctx, domain.JoinRequest{LeaderID: "other", ServerID: "C", RPCAddr: "c:7100"})
			return err
		},
		"migrate": func() error {
			_, err := svc.Migrate(ctx, domain.MigrationRequest{SrcServerID: "A", DestServerID: "B", Slots: []slotmap.Range{{Start: 0, End: 1}}})
			return err
		},
		"slots_detail": func() error {
			_, err := svc.SlotsDetail(ctx)
			return err
		},
		"heartbeat": func() error { return svc.Heartbeat(ctx, "A") },
		"peers": func() error {
			_, err := svc.ListPeers(ctx, "A")
			return err
		},
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			err := call()
			var notLeader *domain.NotLeaderError
			require.True(t, errors.As(err, &notLeader))
			assert.Equal(t, "other:9000", notLeader.LeaderAddr)
		})
	}
}

func TestLeave(t *testing.T) {
	h := newHarness(t)
	h.join(t, "C")
	ctx := context.Background()

	_, err := h.svc.Leave(ctx, "A")
	var owned *domain.HasOwnedSlotsError
	require.True(t, errors.As(err, &owned))
	assert.Equal(t, []string{"0-99"}, slotmap.Format(owned.Slots))

	job := h.migrate(t, "A", "C", "0-99")
	h.waitState(t, job.ID, domain.StateCompleted)

	result, err := h.svc.Leave(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"0-99"}, slotmap.Format(result.Reclaimable))

	peers, err := h.svc.ListPeers(ctx, "")
	require.NoError(t, err)
	assert.NotContains(t, peerIDs(peers), "A")

	_, err = h.svc.Join(ctx, domain.JoinRequest{LeaderID: "leader", ServerID: "A", RPCAddr: "elsewhere:7100"})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = h.svc.Join(ctx, domain.JoinRequest{LeaderID: "leader", ServerID: "A", RPCAddr: "a:7100"})
	assert.NoError(t, err)
}

func TestLeave_Rejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Leave(ctx, "leader")
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = h.svc.Leave(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrUnknownServer)
}

func TestLeave_RefusedWhileMigrationTarget(t *testing.T) {
	h := newHarness(t)
	h.join(t, "C")
	g := newGate()
	h.dp.transferGate = g.wait
	defer g.open()

	job := h.migrate(t, "A", "C", "0-9")
	<-g.entered

	_, err := h.svc.Leave(context.Background(), "C")
	var owned *domain.HasOwnedSlotsError
	require.True(t, errors.As(err, &owned))
	assert.Equal(t, []string{"0-9"}, slotmap.Format(owned.Slots))

	g.open()
	h.waitState(t, job.ID, domain.StateCompleted)
}

func TestHeartbeatAndSweep(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.clock.Advance(1500 * time.Millisecond)
	require.NoError(t, h.svc.Heartbeat(ctx, "B"))
	h.svc.Sweep(ctx)
	assert.Equal(t, domain.StatusSuspect, peerStatus(t, h.svc, "A"))
	assert.Equal(t, domain.StatusActive, peerStatus(t, h.svc, "B"))
	assert.Equal(t, domain.StatusActive, peerStatus(t, h.svc, "leader"))

	require.NoError(t, h.svc.Heartbeat(ctx, "A"))
	assert.Equal(t, domain.StatusActive, peerStatus(t, h.svc, "A"))

	h.clock.Advance(6 * time.Second)
	require.NoError(t, h.svc.Heartbeat(ctx, "B"))
	h.svc.Sweep(ctx)
	assert.Equal(t, domain.StatusGone, peerStatus(t, h.svc, "A"))

	err := h.svc.Heartbeat(ctx, "A")
	assert.ErrorIs(t, err, domain.ErrServerGone)

	err = h.svc.Heartbeat(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrUnknownServer)
}

func TestBacklogAndReclaim(t *testing.T) {
	h := newHarness(t)
	h.join(t, "C")
	ctx := context.Background()

	_, err := h.svc.Reclaim(ctx, "A", "C")
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	h.clock.Advance(6 * time.Second)
	require.NoError(t, h.svc.Heartbeat(ctx, "B"))
	require.NoError(t, h.svc.Heartbeat(ctx, "C"))
	h.svc.Sweep(ctx)

	backlog, err := h.svc.Backlog(ctx)
	require.NoError(t, err)
	require.Len(t, backlog, 1)
	assert.Equal(t, "A", backlog[0].ServerID)
	assert.Equal(t, []string{"0-99"}, slotmap.Format(backlog[0].Slots))
	assert.Equal(t, h.clock.Now(), backlog[0].DetectedAt)

	moved, err := h.svc.Reclaim(ctx, "A", "C")
	require.NoError(t, err)
	assert.Equal(t, []string{"0-99"}, slotmap.Format(moved))
	assert.Equal(t, "C", h.owner(t, 0).Owner)
	assert.Equal(t, moved, h.dp.claimed("C:7100"))
	require.NoError(t, h.svc.slots.Validate())

	backlog, err = h.svc.Backlog(ctx)
	require.NoError(t, err)
	assert.Empty(t, backlog)
}

func TestReclaim_RejectsInactiveDestination(t *testing.T) {
	h := newHarness(t)
	h.join(t, "C")
	ctx := context.Background()
	_, err := h.svc.Drain(ctx, "C")
	require.NoError(t, err)

	h.clock.Advance(6 * time.Second)
	require.NoError(t, h.svc.Heartbeat(ctx, "B"))
	require.NoError(t, h.svc.Heartbeat(ctx, "C"))
	h.svc.Sweep(ctx)

	_, err = h.svc.Reclaim(ctx, "A", "C")
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	assert.Equal(t, "A", h.owner(t, 0).Owner)
}

func TestReclaim_RejectsLeaderAsDestination(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.clock.Advance(6 * time.Second)
	require.NoError(t, h.svc.Heartbeat(ctx, "B"))
	h.svc.Sweep(ctx)

	_, err := h.svc.Reclaim(ctx, "A", "leader")
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	assert.Equal(t, "A", h.owner(t, 0).Owner)
}

func TestListPeers(t *testing.T) {
	h := newHarness(t)
	h.join(t, "D")
	h.join(t, "C")

	peers, err := h.svc.ListPeers(context.Background(), "B")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C", "D", "leader"}, peerIDs(peers))

	for _, p := range peers {
		assert.Equal(t, p.ServerID == "leader", p.IsLeader)
	}
}

func TestDrain(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	srv, err := h.svc.Drain(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusLeaving, srv.Status)

	_, err = h.svc.Drain(ctx, "leader")
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = h.svc.Drain(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrUnknownServer)
}

func TestSetLeader_MovesLeadership(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	err := h.svc.SetLeader(ctx, "rogue", "rogue", "rogue:9000")
	assert.ErrorIs(t, err, domain.ErrLeaderChangeRefused)
	assert.True(t, h.svc.IsLeader())
	assert.ErrorIs(t, h.svc.SetLeader(ctx, "leader", "", ""), domain.ErrInvalidRequest)

	require.NoError(t, h.svc.SetLeader(ctx, "leader", "other", "other:9000"))
	assert.False(t, h.svc.IsLeader())

	_, err = h.svc.SlotsDetail(ctx)
	assert.ErrorIs(t, err, domain.ErrNotLeader)

	require.NoError(t, h.svc.SetLeader(ctx, "other", "leader", "leader:9000"))
	assert.True(t, h.svc.IsLeader())
	_, err = h.svc.SlotsDetail(ctx)
	assert.NoError(t, err)
}

func TestBootstrap_RejectsOverlap(t *testing.T) {
	cfg := testConfig()
	cfg.Cluster.Bootstrap = append(cfg.Cluster.Bootstrap, config.BootstrapServer{
		ServerID: "C", RPCAddr: "c:7100", Slots: []string{"90-110"},
	})
	svc := NewCoordinatorService(cfg, newFakeDataPlane(), &memStore{}, &seqIDs{}, nil)
	t.Cleanup(svc.Close)

	err := svc.Restore(context.Background())
	assert.ErrorIs(t, err, slotmap.ErrOverlap)
}

func TestSuspect(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.join(t, "C")

	require.NoError(t, h.svc.Suspect(ctx, "C"))
	assert.Equal(t, domain.StatusSuspect, peerStatus(t, h.svc, "C"))

	ranges := []slotmap.Range{{Start: 0, End: 9}}
	_, err := h.svc.Migrate(ctx, domain.MigrationRequest{SrcServerID: "A", DestServerID: "C", Slots: ranges})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	require.NoError(t, h.svc.Heartbeat(ctx, "C"))
	assert.Equal(t, domain.StatusActive, peerStatus(t, h.svc, "C"))

	require.NoError(t, h.svc.Suspect(ctx, "leader"))
	assert.Equal(t, domain.StatusActive, peerStatus(t, h.svc, "leader"))
	assert.ErrorIs(t, h.svc.Suspect(ctx, "Z"), domain.ErrUnknownServer)

	require.NoError(t, h.svc.SetLeader(ctx, "leader", "other", "other:9000"))
	assert.ErrorIs(t, h.svc.Suspect(ctx, "C"), domain.ErrNotLeader)
}
