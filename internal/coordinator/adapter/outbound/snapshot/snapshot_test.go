package snapshot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/domain"
	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/port"
	"github.com/anthanhphan/go-slot-coordinator/pkg/slotmap"
	"github.com/dgraph-io/badger/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis answers Get and Set from a map.
type fakeRedis struct {
	mu     sync.Mutex
	values map[string]string
	err    error
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.values[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

func sampleSnapshot() *domain.Snapshot {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &domain.Snapshot{
		Version:    domain.SnapshotVersion,
		SavedAt:    at,
		LeaderID:   "leader",
		LeaderAddr: "leader:9000",
		SlotCount:  100,
		Segments: []slotmap.Segment{
			{Range: slotmap.Range{Start: 0, End: 49}, Ownership: slotmap.Ownership{Owner: "A"}},
			{Range: slotmap.Range{Start: 50, End: 59}, Ownership: slotmap.Ownership{
				Transition: &slotmap.Transition{Source: "A", Dest: "B", JobID: "9"},
			}},
			{Range: slotmap.Range{Start: 60, End: 99}, Ownership: slotmap.Ownership{Owner: "B"}},
		},
		Servers: []domain.Server{
			{ServerID: "A", RPCAddr: "a:7100", Status: domain.StatusActive, LastHeartbeat: at, JoinedAt: at},
			{ServerID: "B", RPCAddr: "b:7100", Status: domain.StatusSuspect, LastHeartbeat: at, JoinedAt: at},
		},
		Tombstones: map[string]string{"C": "c:7100"},
		Jobs: []domain.MigrationJob{{
			ID:           "9",
			SrcServerID:  "A",
			DestServerID: "B",
			Slots:        []slotmap.Range{{Start: 50, End: 59}},
			State:        domain.StateCopying,
			StartedAt:    at,
			UpdatedAt:    at,
			History:      []domain.Transition{{To: domain.StateRequested, At: at}},
		}},
	}
}

func stores(t *testing.T) map[string]port.SnapshotStore {
	t.Helper()
	bs, err := OpenBadgerStore(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = bs.Close() })

	return map[string]port.SnapshotStore{
		"memory": NewMemoryStore(),
		"redis":  &RedisStore{client: &fakeRedis{values: map[string]string{}}, key: DefaultKey},
		"badger": bs,
	}
}

func TestStores_RoundTrip(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.Load(ctx)
			assert.ErrorIs(t, err, domain.ErrNoSnapshot)

			want := sampleSnapshot()
			require.NoError(t, store.Save(ctx, want))
			got, err := store.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, want, got)

			// Later saves replace earlier ones.
			want.LeaderID = "other"
			require.NoError(t, store.Save(ctx, want))
			got, err = store.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, "other", got.LeaderID)
		})
	}
}

func TestDecode_RejectsOtherVersions(t *testing.T) {
	snap := sampleSnapshot()
	snap.Version = domain.SnapshotVersion + 1
	data, err := encode(snap)
	require.NoError(t, err)

	_, err = decode(data)
	assert.Error(t, err)
}

func TestRedisStore_PropagatesErrors(t *testing.T) {
	boom := errors.New("connection reset")
	store := &RedisStore{client: &fakeRedis{values: map[string]string{}, err: boom}, key: "k"}

	assert.ErrorIs(t, store.Save(context.Background(), sampleSnapshot()), boom)
	_, err := store.Load(context.Background())
	assert.ErrorIs(t, err, boom)
}
