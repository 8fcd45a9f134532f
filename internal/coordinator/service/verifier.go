package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/domain"
	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/port"
	"github.com/anthanhphan/go-slot-coordinator/pkg/merkle"
	"github.com/anthanhphan/go-slot-coordinator/pkg/slotmap"
)

// verifier compares the version records of migrated slots on both sides.
type verifier struct {
	dataplane port.DataPlane
}

func newVerifier(dataplane port.DataPlane) *verifier {
	return &verifier{dataplane: dataplane}
}

// verify returns a mismatch for the lowest diverging slot, or the aggregate digest on match.
// Only transport failures are returned as errors.
func (v *verifier) verify(ctx context.Context, slots []slotmap.Range, srcAddr, destAddr string) (domain.MatchResult, error) {
	srcRecords, err := v.dataplane.SlotRecords(ctx, srcAddr, slots)
	if err != nil {
		return domain.MatchResult{}, fmt.Errorf("list source records: %w", err)
	}
	destRecords, err := v.dataplane.SlotRecords(ctx, destAddr, slots)
	if err != nil {
		return domain.MatchResult{}, fmt.Errorf("list destination records: %w", err)
	}
	return CompareSlots(slots, srcRecords, destRecords), nil
}

// CompareSlots digests both record sets per slot and locates the lowest diverging
// slot through a Merkle diff. A destination record with fewer shard locations than
// dataShards cannot be rebuilt and is reported as a mismatch.
func CompareSlots(slots []slotmap.Range, src, dest []domain.VersionRecord) domain.MatchResult {
	srcBySlot := groupBySlot(src)
	destBySlot := groupBySlot(dest)

	order := slotmap.Slots(slots)
	srcLeaves := make([]string, len(order))
	destLeaves := make([]string, len(order))
	for i, slot := range order {
		srcLeaves[i] = SlotDigest(srcBySlot[slot])
		destLeaves[i] = SlotDigest(destBySlot[slot])
	}
	srcTree := merkle.Build(srcLeaves)
	destTree := merkle.Build(destLeaves)

	// Both trees have len(order) leaves.
	diverged, _ := merkle.Diff(srcTree, destTree)
	for i, slot := range order {
		if len(diverged) > 0 && diverged[0] == i {
			return domain.MatchResult{Slot: slot, SourceDigest: srcLeaves[i], DestDigest: destLeaves[i], Records: len(dest)}
		}
		if name, ok := unreconstructable(destBySlot[slot]); ok {
			return domain.MatchResult{
				Slot:         slot,
				SourceDigest: srcLeaves[i],
				DestDigest:   "unreconstructable:" + name,
				Records:      len(dest),
			}
		}
	}

	return domain.MatchResult{
		Match:     true,
		Aggregate: srcTree.Root(),
		Records:   len(dest),
	}
}

// SlotDigest hashes the records of one slot in (name, sequence) order.
func SlotDigest(records []domain.VersionRecord) string {
	sorted := append([]domain.VersionRecord(nil), records...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Name != sorted[j].Name {
			return sorted[i].Name < sorted[j].Name
		}
		return sorted[i].Sequence < sorted[j].Sequence
	})

	h := sha256.New()
	for _, rec := range sorted {
		fmt.Fprintf(h, "%s\x00%d\x00%s\n", rec.Name, rec.Sequence, rec.Hash)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func groupBySlot(records []domain.VersionRecord) map[int][]domain.VersionRecord {
	out := make(map[int][]domain.VersionRecord)
	for _, rec := range records {
		out[rec.Slot] = append(out[rec.Slot], rec)
	}
	return out
}

func unreconstructable(records []domain.VersionRecord) (string, bool) {
	for _, rec := range records {
		if !rec.Reconstructable() {
			return rec.Name, true
		}
	}
	return "", false
}
