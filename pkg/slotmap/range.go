package slotmap

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Range is an inclusive span of slots [Start, End]. The text form "a-b"
// includes both ends, so the full space of 16384 slots is "0-16383". The
// half-open "0-16384" used by some cluster tools names one slot too many and
// is rejected by ParseRanges.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// NewRange validates bounds; start must not exceed end.
func NewRange(start, end int) (Range, error) {
	if start < 0 || end < start {
		return Range{}, fmt.Errorf("invalid slot range %d-%d", start, end)
	}
	return Range{Start: start, End: end}, nil
}

// Single returns the range holding one slot.
func Single(slot int) Range {
	return Range{Start: slot, End: slot}
}

func (r Range) Len() int {
	return r.End - r.Start + 1
}

func (r Range) Contains(slot int) bool {
	return slot >= r.Start && slot <= r.End
}

func (r Range) Overlaps(o Range) bool {
	return r.Start <= o.End && o.Start <= r.End
}

// String renders the wire form: "n" for one slot, "start-end" otherwise.
func (r Range) String() string {
	if r.Start == r.End {
		return strconv.Itoa(r.Start)
	}
	return strconv.Itoa(r.Start) + "-" + strconv.Itoa(r.End)
}

// ParseRange parses "start-end" with both ends inclusive, or a single decimal slot.
func ParseRange(s string) (Range, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Range{}, fmt.Errorf("empty slot range")
	}

	startStr, endStr, found := strings.Cut(s, "-")
	start, err := strconv.Atoi(strings.TrimSpace(startStr))
	if err != nil {
		return Range{}, fmt.Errorf("invalid slot %q: %w", startStr, err)
	}
	if !found {
		return NewRange(start, start)
	}

	end, err := strconv.Atoi(strings.TrimSpace(endStr))
	if err != nil {
		return Range{}, fmt.Errorf("invalid slot %q: %w", endStr, err)
	}
	return NewRange(start, end)
}

// ParseRanges parses every item, checks it against the slot space and
// returns the normalized union.
func ParseRanges(items []string, size int) ([]Range, error) {
	ranges := make([]Range, 0, len(items))
	for _, item := range items {
		r, err := ParseRange(item)
		if err != nil {
			return nil, err
		}
		if r.End >= size {
			return nil, fmt.Errorf("slot range %s exceeds slot count %d", r, size)
		}
		ranges = append(ranges, r)
	}
	return Normalize(ranges), nil
}

// SplitList splits a delimited list such as "0-49,60 70-79" into items.
func SplitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n'
	})
}

// Normalize sorts ranges and merges overlapping or adjacent ones.
func Normalize(ranges []Range) []Range {
	if len(ranges) == 0 {
		return nil
	}

	sorted := make([]Range, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	out := []Range{sorted[0]}
	for _, r := range sorted[1:] {
		last := &out[len(out)-1]
		if r.Start <= last.End+1 {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

// Subtract returns the parts of base not covered by cut. Both inputs must be normalized.
func Subtract(base, cut []Range) []Range {
	var out []Range
	j := 0
	for _, r := range base {
		cur := r
		for j < len(cut) && cut[j].End < cur.Start {
			j++
		}
		k := j
		for k < len(cut) && cut[k].Start <= cur.End {
			c := cut[k]
			if c.Start > cur.Start {
				out = append(out, Range{Start: cur.Start, End: c.Start - 1})
			}
			if c.End >= cur.End {
				cur.Start = cur.End + 1
				break
			}
			cur.Start = c.End + 1
			k++
		}
		if cur.Start <= cur.End {
			out = append(out, cur)
		}
	}
	return out
}

// Count returns the number of slots covered by normalized ranges.
func Count(ranges []Range) int {
	total := 0
	for _, r := range ranges {
		total += r.Len()
	}
	return total
}

// Format renders ranges in wire form.
func Format(ranges []Range) []string {
	out := make([]string, 0, len(ranges))
	for _, r := range ranges {
		out = append(out, r.String())
	}
	return out
}

// Slots expands ranges into individual slots in ascending order.
func Slots(ranges []Range) []int {
	out := make([]int, 0, Count(ranges))
	for _, r := range Normalize(ranges) {
		for s := r.Start; s <= r.End; s++ {
			out = append(out, s)
		}
	}
	return out
}
