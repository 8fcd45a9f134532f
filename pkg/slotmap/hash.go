package slotmap

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/spaolacci/murmur3"
)

// KeySlot maps an object key to its slot.
func KeySlot(key []byte, size int) int {
	if size <= 0 {
		size = DefaultSlotCount
	}
	return int(murmur3.Sum32(key) % uint32(size))
}

// Fingerprint returns a stable digest of an assignment, used to spot drift
// between snapshots of the same server.
func Fingerprint(ranges []Range) string {
	h := murmur3.New128()
	buf := make([]byte, 8)
	for _, r := range Normalize(ranges) {
		binary.BigEndian.PutUint32(buf[:4], uint32(r.Start))
		binary.BigEndian.PutUint32(buf[4:], uint32(r.End))
		_, _ = h.Write(buf)
	}
	return hex.EncodeToString(h.Sum(nil))
}
