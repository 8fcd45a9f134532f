package coordinator_client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCoordinator mimics the coordinator's membership endpoints.
type fakeCoordinator struct {
	mu         sync.Mutex
	members    map[string]bool
	heartbeats int
	joins      int
	redirectTo string
	gone       bool
}

func newFakeCoordinator(t *testing.T) (*fakeCoordinator, string) {
	t.Helper()
	f := &fakeCoordinator{members: make(map[string]bool)}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, strings.TrimPrefix(srv.URL, "http://")
}

func (f *fakeCoordinator) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if f.redirectTo != "" {
		w.WriteHeader(http.StatusTemporaryRedirect)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "not the leader", "leaderId": "leader", "leaderAddr": f.redirectTo})
		return
	}

	var body map[string]string
	if r.Method == http.MethodPost {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	switch r.URL.Path {
	case "/metadata/join_leader":
		f.joins++
		if f.members[body["serverId"]] {
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "server already a member"})
			return
		}
		f.members[body["serverId"]] = true
		f.gone = false
		_ = json.NewEncoder(w).Encode(map[string]any{"serverId": body["serverId"], "status": "active"})
	case "/metadata/heartbeat":
		if f.gone {
			w.WriteHeader(http.StatusGone)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "server gone"})
			return
		}
		if !f.members[body["serverId"]] {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unknown server"})
			return
		}
		f.heartbeats++
		w.WriteHeader(http.StatusNoContent)
	case "/metadata/peers":
		peers := make([]Peer, 0, len(f.members))
		for id := range f.members {
			peers = append(peers, Peer{ServerID: id, Status: "active"})
		}
		_ = json.NewEncoder(w).Encode(peers)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeCoordinator) markGone(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gone = true
	delete(f.members, id)
}

func (f *fakeCoordinator) counts() (joins, heartbeats int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.joins, f.heartbeats
}

func newTestClient(seeds ...string) *Client {
	self := Identity{ServerID: "meta-1", HTTPAddr: "m1:9101", RPCAddr: "m1:7101"}
	return NewClient(self, "leader", seeds, 50*time.Millisecond, time.Second)
}

func TestClient_JoinThenHeartbeat(t *testing.T) {
	coord, addr := newFakeCoordinator(t)
	client := newTestClient(addr)
	ctx := context.Background()

	client.Tick(ctx)
	assert.True(t, client.Joined())
	assert.Equal(t, addr, client.LeaderAddr())
	require.Len(t, client.Peers(), 1)
	assert.Equal(t, "meta-1", client.Peers()[0].ServerID)

	client.Tick(ctx)
	client.Tick(ctx)
	joins, heartbeats := coord.counts()
	assert.Equal(t, 1, joins)
	assert.Equal(t, 2, heartbeats)
}

func TestClient_JoinToleratesExistingMembership(t *testing.T) {
	coord, addr := newFakeCoordinator(t)
	coord.members["meta-1"] = true
	client := newTestClient(addr)

	require.NoError(t, client.Join())
	assert.True(t, client.Joined())
}

func TestClient_RejoinsWhenDeclaredGone(t *testing.T) {
	coord, addr := newFakeCoordinator(t)
	client := newTestClient(addr)
	ctx := context.Background()

	client.Tick(ctx)
	coord.markGone("meta-1")

	client.Tick(ctx)
	assert.True(t, client.Joined())
	joins, _ := coord.counts()
	assert.Equal(t, 2, joins)

	client.Tick(ctx)
	_, heartbeats := coord.counts()
	assert.Equal(t, 1, heartbeats)
}

func TestClient_FollowsLeaderHint(t *testing.T) {
	leader, leaderAddr := newFakeCoordinator(t)
	follower, followerAddr := newFakeCoordinator(t)
	follower.redirectTo = leaderAddr

	client := newTestClient(followerAddr)
	require.NoError(t, client.Join())
	assert.Equal(t, leaderAddr, client.LeaderAddr())

	require.NoError(t, client.Heartbeat())
	joins, heartbeats := leader.counts()
	assert.Equal(t, 1, joins)
	assert.Equal(t, 1, heartbeats)

	followerJoins, _ := follower.counts()
	assert.Zero(t, followerJoins)
}

func TestClient_SkipsUnreachableSeed(t *testing.T) {
	coord, addr := newFakeCoordinator(t)
	dead := httptest.NewServer(http.NotFoundHandler())
	deadAddr := strings.TrimPrefix(dead.URL, "http://")
	dead.Close()

	client := newTestClient(deadAddr, addr)
	client.interval = time.Second
	require.NoError(t, client.Join())
	assert.Equal(t, addr, client.LeaderAddr())

	client.mu.RLock()
	_, backingOff := client.targetBackoff[deadAddr]
	client.mu.RUnlock()
	assert.True(t, backingOff)
	assert.Equal(t, []string{addr}, client.targets())

	joins, _ := coord.counts()
	assert.Equal(t, 1, joins)
}

func TestClient_NoCoordinator(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadAddr := strings.TrimPrefix(dead.URL, "http://")
	dead.Close()

	client := newTestClient(deadAddr)
	assert.Error(t, client.Join())
	assert.False(t, client.Joined())

	// Every seed backing off still leaves the seeds as a fallback.
	assert.Equal(t, []string{deadAddr}, client.targets())
}

func TestClient_StartStops(t *testing.T) {
	coord, addr := newFakeCoordinator(t)
	client := newTestClient(addr)

	done := make(chan struct{})
	go func() {
		client.Start(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, heartbeats := coord.counts()
		return heartbeats >= 2
	}, 2*time.Second, 10*time.Millisecond)

	client.Stop()
	client.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("client did not stop")
	}
}
