package http_handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/config"
	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/domain"
	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/service/mocks"
	"github.com/anthanhphan/go-slot-coordinator/pkg/slotmap"
)

func newTestServer(t *testing.T) (*Server, *mocks.MockCoordinatorService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockCoordinatorService(ctrl)
	cfg := config.DefaultConfig()
	cfg.Server.ServerID = "leader"
	return NewServer(cfg, svc), svc
}

func do(t *testing.T, s *Server, method, target, body string) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func TestMigrate(t *testing.T) {
	s, svc := newTestServer(t)
	svc.EXPECT().SlotCount().Return(200)
	svc.EXPECT().Migrate(gomock.Any(), domain.MigrationRequest{
		SrcServerID:  "A",
		DestServerID: "B",
		Slots:        []slotmap.Range{{Start: 0, End: 9}, {Start: 20, End: 29}},
	}).Return(&domain.MigrationJob{ID: "42", State: domain.StateRequested}, nil)

	resp, body := do(t, s, http.MethodPost, "/metadata/migration",
		`{"srcServerId":"A","destServerId":"B","slots":["0-4","20-29"],"slotsStr":"5-9"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "42", body["id"])
}

func TestMigrate_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "empty body", body: ""},
		{name: "unknown field", body: `{"srcServerId":"A","destServerId":"B","slots":["1"],"extra":1}`},
		{name: "trailing data", body: `{"srcServerId":"A","destServerId":"B","slots":["1"]} {}`},
		{name: "missing destination", body: `{"srcServerId":"A","slots":["1"]}`},
		{name: "no slots", body: `{"srcServerId":"A","destServerId":"B"}`},
		{name: "reversed range", body: `{"srcServerId":"A","destServerId":"B","slots":["9-1"]}`},
		{name: "beyond slot count", body: `{"srcServerId":"A","destServerId":"B","slots":["190-200"]}`},
		{name: "not a number", body: `{"srcServerId":"A","destServerId":"B","slotsStr":"x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, svc := newTestServer(t)
			svc.EXPECT().SlotCount().Return(200).AnyTimes()

			resp, body := do(t, s, http.MethodPost, "/metadata/migration", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "invalid", err: domain.Invalid("bad"), wantStatus: http.StatusBadRequest},
		{name: "unknown server", err: domain.ErrUnknownServer, wantStatus: http.StatusNotFound},
		{name: "unknown job", err: domain.ErrUnknownJob, wantStatus: http.StatusNotFound},
		{name: "already member", err: domain.ErrAlreadyMember, wantStatus: http.StatusConflict},
		{name: "gone", err: domain.ErrServerGone, wantStatus: http.StatusGone},
		{name: "owned slots", err: &domain.HasOwnedSlotsError{ServerID: "A", Slots: []slotmap.Range{{Start: 0, End: 9}}}, wantStatus: http.StatusPreconditionFailed},
		{name: "internal", err: assert.AnError, wantStatus: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, svc := newTestServer(t)
			svc.EXPECT().Leave(gomock.Any(), "A").Return(nil, tt.err)

			resp, body := do(t, s, http.MethodPost, "/metadata/leave_cluster", `{"serverId":"A"}`)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.err.Error(), body["error"])
		})
	}
}

func TestNotLeaderRedirects(t *testing.T) {
	s, svc := newTestServer(t)
	svc.EXPECT().Heartbeat(gomock.Any(), "A").
		Return(&domain.NotLeaderError{LeaderID: "other", LeaderAddr: "other:9000"})

	resp, body := do(t, s, http.MethodPost, "/metadata/heartbeat", `{"serverId":"A"}`)
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, "http://other:9000/metadata/heartbeat", resp.Header.Get("Location"))
	assert.Equal(t, "other", body["leaderId"])
	assert.Equal(t, "other:9000", body["leaderAddr"])
}

func TestSlotRangeBusySetsRetryAfter(t *testing.T) {
	tests := []struct {
		name       string
		retryAfter time.Duration
		want       string
	}{
		{name: "default", want: "1"},
		{name: "rounded up", retryAfter: 2300 * time.Millisecond, want: "3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, svc := newTestServer(t)
			svc.EXPECT().SlotCount().Return(200)
			svc.EXPECT().Migrate(gomock.Any(), gomock.Any()).
				Return(nil, &domain.SlotRangeBusyError{JobID: "7", Slot: 3, RetryAfter: tt.retryAfter})

			resp, body := do(t, s, http.MethodPost, "/metadata/migration",
				`{"srcServerId":"A","destServerId":"B","slots":["0-9"]}`)
			assert.Equal(t, http.StatusConflict, resp.StatusCode)
			assert.Equal(t, tt.want, resp.Header.Get("Retry-After"))
			assert.Equal(t, "7", body["jobId"])
		})
	}
}

func TestJoin(t *testing.T) {
	s, svc := newTestServer(t)
	svc.EXPECT().Join(gomock.Any(), domain.JoinRequest{
		LeaderID: "leader",
		ServerID: "C",
		RPCAddr:  "c:7100",
	}).Return(&domain.Server{ServerID: "C", RPCAddr: "c:7100", Status: domain.StatusActive}, nil)

	resp, body := do(t, s, http.MethodPost, "/metadata/join_leader",
		`{"masterId":"leader","serverId":"C","rpcAddr":"c:7100"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "C", body["serverId"])
	assert.Equal(t, "active", body["status"])

	resp, _ = do(t, s, http.MethodPost, "/metadata/join_leader", `{"serverId":"C"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHeartbeat(t *testing.T) {
	s, svc := newTestServer(t)
	svc.EXPECT().Heartbeat(gomock.Any(), "A").Return(nil)

	resp, _ := do(t, s, http.MethodPost, "/metadata/heartbeat", `{"serverId":"A"}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestJobLookup(t *testing.T) {
	s, svc := newTestServer(t)
	svc.EXPECT().Job(gomock.Any(), "9").Return(nil, domain.ErrUnknownJob)

	resp, _ := do(t, s, http.MethodGet, "/metadata/migration?id=9", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, s, http.MethodGet, "/metadata/migration", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCancel(t *testing.T) {
	s, svc := newTestServer(t)
	svc.EXPECT().CancelMigration(gomock.Any(), "5").Return(nil, domain.ErrCancelRefused)

	resp, _ := do(t, s, http.MethodPost, "/metadata/migration/cancel", `{"id":"5"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestReclaim(t *testing.T) {
	s, svc := newTestServer(t)
	svc.EXPECT().Reclaim(gomock.Any(), "A", "C").
		Return([]slotmap.Range{{Start: 0, End: 99}, {Start: 150, End: 150}}, nil)

	resp, body := do(t, s, http.MethodPost, "/metadata/reclaim", `{"serverId":"A","destServerId":"C"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{"0-99", "150"}, body["slots"])
}

func TestSetLeader(t *testing.T) {
	s, svc := newTestServer(t)
	gomock.InOrder(
		svc.EXPECT().SetLeader(gomock.Any(), "leader", "other", "other:9000").Return(nil),
		svc.EXPECT().Leader().Return("other", "other:9000"),
	)

	resp, body := do(t, s, http.MethodPost, "/metadata/leader", `{"fromId":"leader","leaderId":"other","leaderAddr":"other:9000"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "other", body["leaderId"])
}

func TestSetLeader_RefusedChange(t *testing.T) {
	s, svc := newTestServer(t)
	svc.EXPECT().SetLeader(gomock.Any(), "rogue", "rogue", "rogue:9000").
		Return(fmt.Errorf("%w: leader leads and did not announce the change", domain.ErrLeaderChangeRefused))

	resp, body := do(t, s, http.MethodPost, "/metadata/leader", `{"fromId":"rogue","leaderId":"rogue","leaderAddr":"rogue:9000"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, body["error"], "leader change refused")
}

func TestHealthAndMetrics(t *testing.T) {
	s, svc := newTestServer(t)
	svc.EXPECT().Leader().Return("leader", "leader:9000")

	resp, body := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "leader", body["serverId"])

	resp, _ = do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
