package http_handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/anthanhphan/go-slot-coordinator/internal/metaserver/adapter/outbound/repository"
	"github.com/anthanhphan/go-slot-coordinator/internal/metaserver/config"
	"github.com/anthanhphan/go-slot-coordinator/internal/metaserver/domain"
	"github.com/anthanhphan/go-slot-coordinator/internal/metaserver/service"
	"github.com/anthanhphan/go-slot-coordinator/internal/metaserver/service/mocks"
	"github.com/anthanhphan/go-slot-coordinator/pkg/slotmap"
)

func newTestServer(t *testing.T) (*Server, *service.MetadataServiceImpl) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Server.ServerID = "meta-1"
	cfg.Store.SlotCount = 128

	svc := service.NewMetadataService(repository.NewMemoryRepository(), mocks.NewMockPeer(gomock.NewController(t)), cfg.Store.SlotCount)
	t.Cleanup(func() { _ = svc.Close() })
	return NewServer(cfg, svc), svc
}

func request(t *testing.T, s *Server, method, target, body string) (*http.Response, []byte) {
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
	return resp, raw
}

func TestPutAndListVersions(t *testing.T) {
	s, svc := newTestServer(t)

	for i := 0; i < 2; i++ {
		resp, raw := request(t, s, http.MethodPut, "/records", `{"name":"bucket/a","hash":"h1","dataShards":2,"locate":["n1","n2"]}`)
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	}

	resp, raw := request(t, s, http.MethodGet, "/records?name=bucket/a", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var versions []domain.Record
	require.NoError(t, json.Unmarshal(raw, &versions))
	require.Len(t, versions, 2)
	assert.Equal(t, uint64(1), versions[0].Sequence)
	assert.Equal(t, uint64(2), versions[1].Sequence)
	assert.Equal(t, svc.SlotOf("bucket/a"), versions[0].Slot)
}

func TestPutRejectedWhileFenced(t *testing.T) {
	s, svc := newTestServer(t)
	slot := svc.SlotOf("bucket/b")
	_, err := svc.FenceSlots(context.Background(), "job-1", []slotmap.Range{slotmap.Single(slot)}, 0)
	require.NoError(t, err)

	resp, raw := request(t, s, http.MethodPost, "/records", `{"name":"bucket/b","hash":"h1"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, fencedRetryAfter, resp.Header.Get("Retry-After"))
	assert.Contains(t, string(raw), "job-1")
}

func TestMovedSlotRedirectsToOwner(t *testing.T) {
	s, svc := newTestServer(t)
	ctx := context.Background()
	slot := svc.SlotOf("bucket/m")
	_, err := svc.ReleaseSlots(ctx, "job-2", []slotmap.Range{slotmap.Single(slot)}, domain.Owner{ServerID: "meta-2", HTTPAddr: "meta-2:8080"})
	require.NoError(t, err)

	resp, raw := request(t, s, http.MethodPut, "/records", `{"name":"bucket/m","hash":"h1"}`)
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, "http://meta-2:8080/records", resp.Header.Get("Location"))
	assert.Contains(t, string(raw), "meta-2")

	resp, _ = request(t, s, http.MethodGet, "/records?name=bucket/m", "")
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, "http://meta-2:8080/records?name=bucket/m", resp.Header.Get("Location"))

	_, err = svc.ReleaseSlots(ctx, "job-3", []slotmap.Range{slotmap.Single(slot)}, domain.Owner{ServerID: "meta-3"})
	require.NoError(t, err)
	resp, _ = request(t, s, http.MethodPut, "/records", `{"name":"bucket/m","hash":"h1"}`)
	assert.Equal(t, http.StatusMisdirectedRequest, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Location"))

	_, err = svc.ClaimSlots(ctx, "job-4", []slotmap.Range{slotmap.Single(slot)})
	require.NoError(t, err)
	resp, raw = request(t, s, http.MethodPut, "/records", `{"name":"bucket/m","hash":"h1"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
}

func TestRequestErrors(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		wantStatus int
	}{
		{name: "malformed body", method: http.MethodPut, target: "/records", body: `{"name":`, wantStatus: http.StatusBadRequest},
		{name: "missing name", method: http.MethodPut, target: "/records", body: `{"hash":"h"}`, wantStatus: http.StatusBadRequest},
		{name: "unknown record", method: http.MethodGet, target: "/records?name=none", wantStatus: http.StatusNotFound},
		{name: "no name query", method: http.MethodGet, target: "/records", wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := request(t, s, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestSlotOfAndHealth(t *testing.T) {
	s, svc := newTestServer(t)

	resp, raw := request(t, s, http.MethodGet, "/records/slot?name=bucket/c", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Slot int `json:"slot"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, svc.SlotOf("bucket/c"), body.Slot)

	resp, raw = request(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "meta-1")
}
