package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Tree is a fixed-size Merkle tree stored as a flattened heap:
// index 0 is the root, children of i are 2i+1 and 2i+2.
// Empty leaves hold "" and a parent of two empty children stays "".
// A Tree is immutable once built.
type Tree struct {
	nodes      []string
	numLeaves  int
	leafOffset int
}

// Build creates a tree over leaves, padded with empty leaves up to a power of two.
func Build(leaves []string) *Tree {
	numLeaves := 2
	for numLeaves < len(leaves) {
		numLeaves <<= 1
	}
	t := &Tree{
		nodes:      make([]string, 2*numLeaves-1),
		numLeaves:  numLeaves,
		leafOffset: numLeaves - 1,
	}
	copy(t.nodes[t.leafOffset:], leaves)
	for i := t.leafOffset - 1; i >= 0; i-- {
		t.nodes[i] = hashPair(t.nodes[2*i+1], t.nodes[2*i+2])
	}
	return t
}

// RootOf is shorthand for Build(leaves).Root().
func RootOf(leaves []string) string {
	return Build(leaves).Root()
}

func (t *Tree) Root() string {
	return t.nodes[0]
}

// Diff returns the leaves whose hashes differ between two trees of equal size,
// in ascending order, descending only into subtrees whose hashes disagree.
func Diff(a, b *Tree) ([]int, error) {
	if a.numLeaves != b.numLeaves {
		return nil, fmt.Errorf("tree size mismatch: %d vs %d", a.numLeaves, b.numLeaves)
	}

	var out []int
	var walk func(idx int)
	walk = func(idx int) {
		if a.nodes[idx] == b.nodes[idx] {
			return
		}
		if idx >= a.leafOffset {
			out = append(out, idx-a.leafOffset)
			return
		}
		walk(2*idx + 1)
		walk(2*idx + 2)
	}
	walk(0)
	return out, nil
}

func hashPair(left, right string) string {
	if left == "" && right == "" {
		return ""
	}
	h := sha256.New()
	h.Write([]byte(left))
	h.Write([]byte(right))
	return hex.EncodeToString(h.Sum(nil))
}
