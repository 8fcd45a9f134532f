package idgen

import (
	"errors"
	"sync"
)

// Layout of a 63-bit id: 41 bits of milliseconds since Epoch,
// 10 bits of node id and 12 bits of per-millisecond sequence.
const (
	nodeBits     = 10
	sequenceBits = 12

	maxNodeID   = 1<<nodeBits - 1
	maxSequence = 1<<sequenceBits - 1

	nodeShift      = sequenceBits
	timestampShift = sequenceBits + nodeBits

	// Epoch is 2024-01-01T00:00:00Z in milliseconds.
	Epoch = 1704067200000
)

var (
	ErrNodeIDTooLarge = errors.New("node ID too large")
	ErrClockMovedBack = errors.New("clock moved backwards")
)

// Snowflake generates time-ordered unique ids.
type Snowflake struct {
	mu       sync.Mutex
	clock    Clock
	nodeID   int64
	lastTime int64
	sequence int64
}

func New(nodeID int64, clock Clock) (*Snowflake, error) {
	if nodeID < 0 || nodeID > maxNodeID {
		return nil, ErrNodeIDTooLarge
	}
	if clock == nil {
		clock = SystemClock{}
	}

	return &Snowflake{
		clock:    clock,
		nodeID:   nodeID,
		lastTime: -1,
	}, nil
}

func (s *Snowflake) Next() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if now < s.lastTime {
		return 0, ErrClockMovedBack
	}

	if now == s.lastTime {
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			for now <= s.lastTime {
				now = s.clock.Now()
			}
		}
	} else {
		s.sequence = 0
	}
	s.lastTime = now

	return (now-Epoch)<<timestampShift | s.nodeID<<nodeShift | s.sequence, nil
}
