package domain

import (
	"errors"
	"time"

	"github.com/anthanhphan/go-slot-coordinator/pkg/slotmap"
)

// ErrNoSnapshot is returned by a store that has never been written.
var ErrNoSnapshot = errors.New("no snapshot stored")

// SnapshotVersion is bumped whenever the snapshot layout changes.
const SnapshotVersion = 1

// Snapshot is the durable image of the slot map and membership registry.
type Snapshot struct {
	Version    int               `json:"version"`
	SavedAt    time.Time         `json:"savedAt"`
	LeaderID   string            `json:"leaderId"`
	LeaderAddr string            `json:"leaderAddr"`
	SlotCount  int               `json:"slotCount"`
	Segments   []slotmap.Segment `json:"segments"`
	Servers    []Server          `json:"servers"`
	Tombstones map[string]string `json:"tombstones,omitempty"`
	Jobs       []MigrationJob    `json:"jobs"`
	Backlog    []BacklogEntry    `json:"backlog,omitempty"`
}
