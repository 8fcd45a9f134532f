package slotmap

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTwoOwnerMap(t *testing.T) *Map {
	t.Helper()
	m := New(200)
	require.NoError(t, m.Assign(Range{Start: 0, End: 99}, "A"))
	require.NoError(t, m.Assign(Range{Start: 100, End: 199}, "B"))
	return m
}

func TestMap_AssignAndLookup(t *testing.T) {
	m := newTwoOwnerMap(t)

	tests := []struct {
		slot  int
		owner string
	}{
		{0, "A"},
		{99, "A"},
		{100, "B"},
		{199, "B"},
	}
	for _, tt := range tests {
		own, err := m.Lookup(tt.slot)
		assert.NoError(t, err)
		assert.Equal(t, tt.owner, own.Owner)
		assert.False(t, own.Migrating())
	}

	_, err := m.Lookup(200)
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.True(t, m.Complete())
	assert.Len(t, m.Segments(), 2)
}

func TestMap_AssignOverlap(t *testing.T) {
	m := newTwoOwnerMap(t)

	err := m.Assign(Range{Start: 90, End: 110}, "C")
	var overlap *OverlapError
	require.True(t, errors.As(err, &overlap))
	assert.Equal(t, 90, overlap.Slot)
	assert.Equal(t, "A", overlap.Owner)
	assert.ErrorIs(t, err, ErrOverlap)

	// unchanged
	assert.Equal(t, []Range{{0, 99}}, m.RangesOf("A"))
	assert.Empty(t, m.RangesOf("C"))

	// same owner is a no-op
	assert.NoError(t, m.Assign(Range{Start: 10, End: 20}, "A"))
	assert.Equal(t, []Range{{0, 99}}, m.RangesOf("A"))
}

func TestMap_AssignRejectsTransitional(t *testing.T) {
	m := newTwoOwnerMap(t)
	require.NoError(t, m.MarkMigrating("A", "C", "job-1", Range{Start: 0, End: 9}))

	err := m.Assign(Range{Start: 5, End: 5}, "A")
	assert.ErrorIs(t, err, ErrRangeBusy)
}

func TestMap_MarkMigratingAndCommit(t *testing.T) {
	m := newTwoOwnerMap(t)

	require.NoError(t, m.MarkMigrating("A", "C", "job-1", Range{Start: 0, End: 49}))

	own, err := m.Lookup(10)
	require.NoError(t, err)
	require.True(t, own.Migrating())
	assert.Equal(t, Transition{Source: "A", Dest: "C", JobID: "job-1"}, *own.Transition)
	assert.True(t, m.Involves("C"))
	assert.Equal(t, []Range{{0, 49}}, m.MigratingFrom("A"))
	assert.Equal(t, []Range{{0, 49}}, m.JobRanges("job-1"))

	committed, err := m.Commit("job-1")
	require.NoError(t, err)
	assert.Equal(t, []Range{{0, 49}}, committed)

	assert.Equal(t, []Range{{0, 49}}, m.RangesOf("C"))
	assert.Equal(t, []Range{{50, 99}}, m.RangesOf("A"))
	assert.Equal(t, []Range{{100, 199}}, m.RangesOf("B"))
	assert.False(t, m.Transitional())
	assert.NoError(t, m.Validate())
}

func TestMap_AbortRestoresSource(t *testing.T) {
	m := newTwoOwnerMap(t)
	before := m.Segments()

	require.NoError(t, m.MarkMigrating("A", "C", "job-1", Range{Start: 10, End: 19}, Range{Start: 40, End: 44}))
	reverted, err := m.Abort("job-1")
	require.NoError(t, err)
	assert.Equal(t, []Range{{10, 19}, {40, 44}}, reverted)
	assert.Equal(t, before, m.Segments())
}

func TestMap_MarkMigratingIsAtomic(t *testing.T) {
	m := newTwoOwnerMap(t)
	before := m.Segments()

	// second range belongs to B, so nothing transitions
	err := m.MarkMigrating("A", "C", "job-1", Range{Start: 0, End: 9}, Range{Start: 95, End: 105})
	var notOwned *NotOwnedError
	require.True(t, errors.As(err, &notOwned))
	assert.Equal(t, 100, notOwned.Slot)
	assert.Equal(t, "B", notOwned.Owner)
	assert.Equal(t, before, m.Segments())
}

func TestMap_MarkMigratingBusy(t *testing.T) {
	m := newTwoOwnerMap(t)
	require.NoError(t, m.MarkMigrating("A", "C", "job-1", Range{Start: 0, End: 49}))

	err := m.MarkMigrating("A", "D", "job-2", Range{Start: 40, End: 60})
	assert.ErrorIs(t, err, ErrRangeBusy)
	assert.Equal(t, []Range{{0, 49}}, m.JobRanges("job-1"))
	assert.Empty(t, m.JobRanges("job-2"))
}

func TestMap_UnknownJob(t *testing.T) {
	m := newTwoOwnerMap(t)

	_, err := m.Commit("missing")
	assert.ErrorIs(t, err, ErrUnknownJob)
	_, err = m.Abort("missing")
	assert.ErrorIs(t, err, ErrUnknownJob)
}

func TestMap_Reassign(t *testing.T) {
	m := newTwoOwnerMap(t)
	require.NoError(t, m.MarkMigrating("A", "C", "job-1", Range{Start: 0, End: 9}))

	moved, err := m.Reassign("A", "B")
	require.NoError(t, err)
	assert.Equal(t, []Range{{10, 99}}, moved)
	assert.Equal(t, []Range{{10, 199}}, m.RangesOf("B"))
	assert.Equal(t, []Range{{0, 9}}, m.JobRanges("job-1"))
}

func TestMap_RestoreRejectsGaps(t *testing.T) {
	m := New(10)

	err := m.Restore([]Segment{
		{Range: Range{Start: 0, End: 4}, Ownership: Ownership{Owner: "A"}},
		{Range: Range{Start: 6, End: 9}, Ownership: Ownership{Owner: "B"}},
	})
	assert.ErrorIs(t, err, ErrBrokenCoverage)

	err = m.Restore([]Segment{
		{Range: Range{Start: 0, End: 4}, Ownership: Ownership{Owner: "A"}},
		{Range: Range{Start: 5, End: 9}, Ownership: Ownership{Transition: &Transition{Source: "A", Dest: "B", JobID: "j"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []Range{{5, 9}}, m.JobRanges("j"))
}

// Coverage stays exact under a random sequence of migrations.
func TestMap_CoverageHoldsUnderRandomMigrations(t *testing.T) {
	const size = 512
	servers := []string{"A", "B", "C", "D"}
	m := New(size)
	for i, s := range servers {
		require.NoError(t, m.Assign(Range{Start: i * 128, End: i*128 + 127}, s))
	}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 300; i++ {
		src := servers[rng.Intn(len(servers))]
		dest := servers[rng.Intn(len(servers))]
		owned := m.RangesOf(src)
		if src == dest || len(owned) == 0 {
			continue
		}
		r := owned[rng.Intn(len(owned))]
		end := r.Start + rng.Intn(r.Len())
		job := "job-" + string(rune('a'+i%26)) + string(rune('a'+i/26))

		require.NoError(t, m.MarkMigrating(src, dest, job, Range{Start: r.Start, End: end}))
		require.NoError(t, m.Validate())
		if rng.Intn(2) == 0 {
			_, err := m.Commit(job)
			require.NoError(t, err)
		} else {
			_, err := m.Abort(job)
			require.NoError(t, err)
		}

		total := 0
		for _, s := range servers {
			total += Count(m.RangesOf(s))
		}
		require.Equal(t, size, total)
	}
	assert.True(t, m.Complete())
	assert.False(t, m.Transitional())
}
