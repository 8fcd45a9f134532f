package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/config"
	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/domain"
	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/port"
	"github.com/anthanhphan/go-slot-coordinator/pkg/slotmap"
	"github.com/stretchr/testify/require"
)

// fakeDataPlane keeps version records per server address in memory.
type fakeDataPlane struct {
	mu      sync.Mutex
	records map[string][]domain.VersionRecord
	fences  map[string]map[string][]slotmap.Range // addr -> job -> slots
	owners  map[string]domain.SlotOwner           // addr -> owner named by its last release
	claims  map[string][]slotmap.Range            // addr -> claimed slots

	// transferGate, when set, is consulted before each transfer.
	transferGate func(ctx context.Context) error
	// corruptCopies damages the first record of the next n transfers.
	corruptCopies int
	transfers     atomic.Int32
	discards      atomic.Int32
	releases      atomic.Int32
}

func newFakeDataPlane() *fakeDataPlane {
	return &fakeDataPlane{
		records: make(map[string][]domain.VersionRecord),
		fences:  make(map[string]map[string][]slotmap.Range),
		owners:  make(map[string]domain.SlotOwner),
		claims:  make(map[string][]slotmap.Range),
	}
}

var _ port.DataPlane = (*fakeDataPlane)(nil)

func (f *fakeDataPlane) seed(addr string, slots ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, slot := range slots {
		f.records[addr] = append(f.records[addr], domain.VersionRecord{
			Name:       fmt.Sprintf("obj-%d", slot),
			Slot:       slot,
			Hash:       fmt.Sprintf("hash-%d", slot),
			Sequence:   1,
			DataShards: 2,
			Locate:     []string{"s1", "s2", "s3"},
		})
	}
}

func (f *fakeDataPlane) fenced(addr string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fences[addr]) > 0
}

func (f *fakeDataPlane) releasedTo(addr string) domain.SlotOwner {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.owners[addr]
}

func (f *fakeDataPlane) claimed(addr string) []slotmap.Range {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.claims[addr]
}

func (f *fakeDataPlane) recordsAt(addr string, slots []slotmap.Range) []domain.VersionRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return filterRecords(f.records[addr], slots)
}

func (f *fakeDataPlane) FenceSlots(ctx context.Context, addr, jobID string, slots []slotmap.Range, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fences[addr] == nil {
		f.fences[addr] = make(map[string][]slotmap.Range)
	}
	f.fences[addr][jobID] = slots
	return nil
}

func (f *fakeDataPlane) UnfenceSlots(ctx context.Context, addr, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.fences[addr], jobID)
	return nil
}

func (f *fakeDataPlane) TransferSlots(ctx context.Context, srcAddr, destAddr, jobID string, slots []slotmap.Range) (domain.TransferStats, error) {
	f.transfers.Add(1)
	if f.transferGate != nil {
		if err := f.transferGate(ctx); err != nil {
			return domain.TransferStats{}, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	copied := filterRecords(f.records[srcAddr], slots)
	kept := dropRecords(f.records[destAddr], slots)
	if f.corruptCopies > 0 && len(copied) > 0 {
		f.corruptCopies--
		copied[0].Hash = "corrupted"
	}
	f.records[destAddr] = append(kept, copied...)
	return domain.TransferStats{Records: len(copied), Slots: slots}, nil
}

func (f *fakeDataPlane) SlotRecords(ctx context.Context, addr string, slots []slotmap.Range) ([]domain.VersionRecord, error) {
	return f.recordsAt(addr, slots), nil
}

func (f *fakeDataPlane) DiscardSlots(ctx context.Context, addr, jobID string, slots []slotmap.Range) error {
	f.discards.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if slots != nil {
		f.records[addr] = dropRecords(f.records[addr], slots)
	}
	return nil
}

func (f *fakeDataPlane) ReleaseSlots(ctx context.Context, addr, jobID string, slots []slotmap.Range, owner domain.SlotOwner) error {
	f.releases.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[addr] = dropRecords(f.records[addr], slots)
	f.owners[addr] = owner
	return nil
}

func (f *fakeDataPlane) ClaimSlots(ctx context.Context, addr, jobID string, slots []slotmap.Range) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claims[addr] = slotmap.Normalize(append(f.claims[addr], slots...))
	return nil
}

func filterRecords(records []domain.VersionRecord, slots []slotmap.Range) []domain.VersionRecord {
	var out []domain.VersionRecord
	for _, rec := range records {
		if inRanges(rec.Slot, slots) {
			out = append(out, rec)
		}
	}
	return out
}

func dropRecords(records []domain.VersionRecord, slots []slotmap.Range) []domain.VersionRecord {
	var out []domain.VersionRecord
	for _, rec := range records {
		if !inRanges(rec.Slot, slots) {
			out = append(out, rec)
		}
	}
	return out
}

func inRanges(slot int, ranges []slotmap.Range) bool {
	for _, r := range ranges {
		if r.Contains(slot) {
			return true
		}
	}
	return false
}

// memStore is a snapshot store kept in memory.
type memStore struct {
	mu    sync.Mutex
	snap  *domain.Snapshot
	saves int
}

func (m *memStore) Save(ctx context.Context, snap *domain.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = snap
	m.saves++
	return nil
}

func (m *memStore) Load(ctx context.Context) (*domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil {
		return nil, domain.ErrNoSnapshot
	}
	return m.snap, nil
}

func (m *memStore) last() *domain.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

type seqIDs struct{ n atomic.Int64 }

func (s *seqIDs) Next() (int64, error) {
	return s.n.Add(1), nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Server.ServerID = "leader"
	cfg.Server.Addr = "leader:9000"
	cfg.Cluster.SlotCount = 200
	cfg.Cluster.Bootstrap = []config.BootstrapServer{
		{ServerID: "A", HTTPAddr: "a:8100", RPCAddr: "a:7100", Slots: []string{"0-99"}},
		{ServerID: "B", HTTPAddr: "b:8100", RPCAddr: "b:7100", Slots: []string{"100-199"}},
	}
	cfg.Membership.SuspectAfterMS = 1000
	cfg.Membership.GoneAfterMS = 5000
	cfg.Migration.Workers = 4
	cfg.Migration.MaxRetries = 2
	cfg.Migration.ChecksumRetries = 1
	cfg.Migration.BackoffMS = 1
	cfg.Migration.RPCTimeoutMS = 2000
	return cfg
}

type harness struct {
	svc   *CoordinatorImpl
	dp    *fakeDataPlane
	store *memStore
	clock *fakeClock
}

func newHarness(t *testing.T, mutate ...func(*config.Config)) *harness {
	t.Helper()
	cfg := testConfig()
	for _, fn := range mutate {
		fn(cfg)
	}

	h := &harness{dp: newFakeDataPlane(), store: &memStore{}, clock: newFakeClock()}
	h.svc = newTestService(t, cfg, h.dp, h.store, h.clock)
	h.dp.seed("a:7100", 0, 10, 49, 50, 99)
	h.dp.seed("b:7100", 100, 150, 199)
	return h
}

func newTestService(t *testing.T, cfg *config.Config, dp port.DataPlane, store port.SnapshotStore, clock *fakeClock) *CoordinatorImpl {
	t.Helper()
	svc := NewCoordinatorService(cfg, dp, store, &seqIDs{}, nil)
	svc.now = clock.Now
	require.NoError(t, svc.Restore(context.Background()))
	t.Cleanup(svc.Close)
	return svc
}

func (h *harness) join(t *testing.T, id string) {
	t.Helper()
	_, err := h.svc.Join(context.Background(), domain.JoinRequest{
		LeaderID: "leader",
		ServerID: id,
		HTTPAddr: id + ":8100",
		RPCAddr:  id + ":7100",
	})
	require.NoError(t, err)
}

func (h *harness) migrate(t *testing.T, src, dest string, slots ...string) *domain.MigrationJob {
	t.Helper()
	ranges, err := slotmap.ParseRanges(slots, h.svc.SlotCount())
	require.NoError(t, err)
	job, err := h.svc.Migrate(context.Background(), domain.MigrationRequest{SrcServerID: src, DestServerID: dest, Slots: ranges})
	require.NoError(t, err)
	return job
}

func (h *harness) waitState(t *testing.T, id string, states ...domain.MigrationState) *domain.MigrationJob {
	t.Helper()
	var job *domain.MigrationJob
	require.Eventually(t, func() bool {
		var err error
		job, err = h.svc.Job(context.Background(), id)
		if err != nil {
			return false
		}
		for _, s := range states {
			if job.State == s {
				return true
			}
		}
		return false
	}, 5*time.Second, 5*time.Millisecond, "job %s never reached %v", id, states)
	return job
}

func (h *harness) owner(t *testing.T, slot int) slotmap.Ownership {
	t.Helper()
	own, err := h.svc.slots.Lookup(slot)
	require.NoError(t, err)
	return own
}

// gate blocks transfers until released.
type gate struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}, 16), release: make(chan struct{})}
}

func (g *gate) wait(ctx context.Context) error {
	g.entered <- struct{}{}
	select {
	case <-g.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *gate) open() {
	g.once.Do(func() { close(g.release) })
}

var errTransport = errors.New("connection refused")
