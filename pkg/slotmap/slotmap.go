package slotmap

import (
	"fmt"
	"sort"
	"sync"
)

// DefaultSlotCount is the size of the key space when none is configured.
const DefaultSlotCount = 16384

// Transition marks slots that are moving from Source to Dest under JobID.
type Transition struct {
	Source string `json:"source"`
	Dest   string `json:"dest"`
	JobID  string `json:"job_id"`
}

// Ownership is the answer to a slot lookup: a permanent owner or a transition.
type Ownership struct {
	Owner      string      `json:"owner,omitempty"`
	Transition *Transition `json:"transition,omitempty"`
}

// Migrating reports whether the slot is in a transitional state.
func (o Ownership) Migrating() bool {
	return o.Transition != nil
}

// Assigned reports whether any party holds the slot.
func (o Ownership) Assigned() bool {
	return o.Owner != "" || o.Transition != nil
}

// Involves reports whether server holds the slot permanently or on either side of a transition.
func (o Ownership) Involves(server string) bool {
	if o.Transition != nil {
		return o.Transition.Source == server || o.Transition.Dest == server
	}
	return o.Owner == server
}

// Segment is a maximal run of slots with the same ownership.
type Segment struct {
	Range
	Ownership
}

func (s Segment) sameOwnership(o Segment) bool {
	if s.Owner != o.Owner {
		return false
	}
	if s.Transition == nil || o.Transition == nil {
		return s.Transition == nil && o.Transition == nil
	}
	return *s.Transition == *o.Transition
}

func (s Segment) clone() Segment {
	if s.Transition != nil {
		t := *s.Transition
		s.Transition = &t
	}
	return s
}

// Map tracks slot ownership as a sorted, contiguous list of segments covering [0, size).
type Map struct {
	mu   sync.RWMutex
	size int
	segs []Segment
}

// New creates a map with every slot unassigned.
func New(size int) *Map {
	if size <= 0 {
		size = DefaultSlotCount
	}
	return &Map{
		size: size,
		segs: []Segment{{Range: Range{Start: 0, End: size - 1}}},
	}
}

// Size returns the number of slots in the key space.
func (m *Map) Size() int {
	return m.size
}

// Lookup returns the ownership of one slot in O(log n).
func (m *Map) Lookup(slot int) (Ownership, error) {
	if slot < 0 || slot >= m.size {
		return Ownership{}, fmt.Errorf("%w: %d", ErrOutOfRange, slot)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	seg := m.segs[m.indexOf(slot)].clone()
	return seg.Ownership, nil
}

// Assign gives a range to server. Slots already held by server are left as is.
func (m *Map) Assign(r Range, server string) error {
	if server == "" {
		return fmt.Errorf("assign %s: empty server id", r)
	}
	if err := m.checkBounds(r); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.scan(r, func(slot int, seg Segment) error {
		if seg.Transition != nil {
			return &BusyError{Slot: slot, JobID: seg.Transition.JobID}
		}
		if seg.Owner != "" && seg.Owner != server {
			return &OverlapError{Slot: slot, Owner: seg.Owner}
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.rewrite(r, func(Segment) Ownership {
		return Ownership{Owner: server}
	})
	return m.validateLocked()
}

// MarkMigrating moves every range to the transitional state for jobID.
// Either all ranges transition or none do.
func (m *Map) MarkMigrating(src, dest, jobID string, ranges ...Range) error {
	if src == "" || dest == "" || jobID == "" {
		return fmt.Errorf("mark migrating: source, destination and job id are required")
	}
	if src == dest {
		return fmt.Errorf("mark migrating: source and destination are both %s", src)
	}
	ranges = Normalize(ranges)
	if len(ranges) == 0 {
		return fmt.Errorf("mark migrating: no slots")
	}
	for _, r := range ranges {
		if err := m.checkBounds(r); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.hasJobLocked(jobID) {
		return fmt.Errorf("mark migrating: job %s already holds slots", jobID)
	}
	for _, r := range ranges {
		err := m.scan(r, func(slot int, seg Segment) error {
			if seg.Transition != nil {
				return &BusyError{Slot: slot, JobID: seg.Transition.JobID}
			}
			if seg.Owner != src {
				return &NotOwnedError{Slot: slot, Server: src, Owner: seg.Owner}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	t := Transition{Source: src, Dest: dest, JobID: jobID}
	for _, r := range ranges {
		m.rewrite(r, func(Segment) Ownership {
			tt := t
			return Ownership{Transition: &tt}
		})
	}
	return m.validateLocked()
}

// Commit hands every transitional slot of jobID to its destination and
// returns the committed ranges.
func (m *Map) Commit(jobID string) ([]Range, error) {
	return m.resolve(jobID, func(t *Transition) string { return t.Dest })
}

// Abort returns every transitional slot of jobID to its source and
// returns the reverted ranges.
func (m *Map) Abort(jobID string) ([]Range, error) {
	return m.resolve(jobID, func(t *Transition) string { return t.Source })
}

func (m *Map) resolve(jobID string, pick func(*Transition) string) ([]Range, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var touched []Range
	for i := range m.segs {
		seg := &m.segs[i]
		if seg.Transition == nil || seg.Transition.JobID != jobID {
			continue
		}
		touched = append(touched, seg.Range)
		seg.Owner = pick(seg.Transition)
		seg.Transition = nil
	}
	if len(touched) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, jobID)
	}

	m.coalesce()
	return Normalize(touched), m.validateLocked()
}

// Reassign moves every slot permanently owned by from to to. Transitional
// slots are not touched. Returns the moved ranges.
func (m *Map) Reassign(from, to string) ([]Range, error) {
	if from == "" || to == "" || from == to {
		return nil, fmt.Errorf("reassign %q to %q: invalid servers", from, to)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var moved []Range
	for i := range m.segs {
		seg := &m.segs[i]
		if seg.Transition == nil && seg.Owner == from {
			moved = append(moved, seg.Range)
			seg.Owner = to
		}
	}
	m.coalesce()
	return Normalize(moved), m.validateLocked()
}

// RangesOf returns the ranges server owns permanently.
func (m *Map) RangesOf(server string) []Range {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Range
	for _, seg := range m.segs {
		if seg.Transition == nil && seg.Owner == server {
			out = append(out, seg.Range)
		}
	}
	return Normalize(out)
}

// MigratingFrom returns the transitional ranges where server is the source.
func (m *Map) MigratingFrom(server string) []Range {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Range
	for _, seg := range m.segs {
		if seg.Transition != nil && seg.Transition.Source == server {
			out = append(out, seg.Range)
		}
	}
	return Normalize(out)
}

// JobRanges returns the transitional ranges held by jobID.
func (m *Map) JobRanges(jobID string) []Range {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Range
	for _, seg := range m.segs {
		if seg.Transition != nil && seg.Transition.JobID == jobID {
			out = append(out, seg.Range)
		}
	}
	return Normalize(out)
}

// Involves reports whether server holds any slot, permanently or in transition.
func (m *Map) Involves(server string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, seg := range m.segs {
		if seg.Involves(server) {
			return true
		}
	}
	return false
}

// OwnsAll reports whether server permanently owns every slot in ranges.
func (m *Map) OwnsAll(server string, ranges []Range) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range ranges {
		if err := m.checkBounds(r); err != nil {
			return err
		}
		err := m.scan(r, func(slot int, seg Segment) error {
			if seg.Transition != nil {
				return &BusyError{Slot: slot, JobID: seg.Transition.JobID}
			}
			if seg.Owner != server {
				return &NotOwnedError{Slot: slot, Server: server, Owner: seg.Owner}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Transitional reports whether any slot is mid-migration.
func (m *Map) Transitional() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, seg := range m.segs {
		if seg.Transition != nil {
			return true
		}
	}
	return false
}

// Complete reports whether every slot has a permanent or transitional holder.
func (m *Map) Complete() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, seg := range m.segs {
		if !seg.Assigned() {
			return false
		}
	}
	return true
}

// Segments returns a copy of the segment list.
func (m *Map) Segments() []Segment {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Segment, len(m.segs))
	for i, seg := range m.segs {
		out[i] = seg.clone()
	}
	return out
}

// Restore replaces the map contents with segs after validating them.
func (m *Map) Restore(segs []Segment) error {
	restored := make([]Segment, len(segs))
	for i, seg := range segs {
		restored[i] = seg.clone()
	}
	if err := validateSegments(restored, m.size); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.segs = restored
	m.coalesce()
	return nil
}

// Validate checks the coverage invariant.
func (m *Map) Validate() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.validateLocked()
}

func (m *Map) validateLocked() error {
	return validateSegments(m.segs, m.size)
}

func validateSegments(segs []Segment, size int) error {
	if len(segs) == 0 {
		return fmt.Errorf("%w: no segments", ErrBrokenCoverage)
	}
	if segs[0].Start != 0 {
		return fmt.Errorf("%w: first segment starts at %d", ErrBrokenCoverage, segs[0].Start)
	}
	for i, seg := range segs {
		if seg.End < seg.Start {
			return fmt.Errorf("%w: inverted segment %d-%d", ErrBrokenCoverage, seg.Start, seg.End)
		}
		if i > 0 && seg.Start != segs[i-1].End+1 {
			return fmt.Errorf("%w: gap or overlap at slot %d", ErrBrokenCoverage, seg.Start)
		}
		if seg.Transition != nil {
			t := seg.Transition
			if seg.Owner != "" {
				return fmt.Errorf("%w: slot %d has owner %s and job %s", ErrBrokenCoverage, seg.Start, seg.Owner, t.JobID)
			}
			if t.Source == "" || t.Dest == "" || t.JobID == "" || t.Source == t.Dest {
				return fmt.Errorf("%w: malformed transition at slot %d", ErrBrokenCoverage, seg.Start)
			}
		}
	}
	if last := segs[len(segs)-1]; last.End != size-1 {
		return fmt.Errorf("%w: last segment ends at %d, want %d", ErrBrokenCoverage, last.End, size-1)
	}
	return nil
}

func (m *Map) checkBounds(r Range) error {
	if r.Start < 0 || r.End < r.Start || r.End >= m.size {
		return fmt.Errorf("%w: %s not within 0-%d", ErrOutOfRange, r, m.size-1)
	}
	return nil
}

func (m *Map) hasJobLocked(jobID string) bool {
	for _, seg := range m.segs {
		if seg.Transition != nil && seg.Transition.JobID == jobID {
			return true
		}
	}
	return false
}

// indexOf returns the index of the segment holding slot.
func (m *Map) indexOf(slot int) int {
	return sort.Search(len(m.segs), func(i int) bool {
		return m.segs[i].End >= slot
	})
}

// scan calls fn once per segment overlapping r with the first slot of the overlap.
func (m *Map) scan(r Range, fn func(slot int, seg Segment) error) error {
	for i := m.indexOf(r.Start); i < len(m.segs) && m.segs[i].Start <= r.End; i++ {
		slot := m.segs[i].Start
		if slot < r.Start {
			slot = r.Start
		}
		if err := fn(slot, m.segs[i]); err != nil {
			return err
		}
	}
	return nil
}

// split makes sure a segment boundary starts at pos and returns its index.
func (m *Map) split(pos int) int {
	if pos >= m.size {
		return len(m.segs)
	}
	i := m.indexOf(pos)
	seg := m.segs[i]
	if seg.Start == pos {
		return i
	}

	left := seg.clone()
	left.End = pos - 1
	right := seg.clone()
	right.Start = pos

	m.segs = append(m.segs, Segment{})
	copy(m.segs[i+2:], m.segs[i+1:])
	m.segs[i] = left
	m.segs[i+1] = right
	return i + 1
}

func (m *Map) rewrite(r Range, fn func(Segment) Ownership) {
	lo := m.split(r.Start)
	hi := m.split(r.End + 1)
	for i := lo; i < hi; i++ {
		m.segs[i].Ownership = fn(m.segs[i])
	}
	m.coalesce()
}

// coalesce merges neighbours with identical ownership.
func (m *Map) coalesce() {
	out := m.segs[:1]
	for _, seg := range m.segs[1:] {
		last := &out[len(out)-1]
		if last.sameOwnership(seg) {
			last.End = seg.End
			continue
		}
		out = append(out, seg)
	}
	m.segs = out
}
