package domain

import (
	"errors"
	"fmt"

	"github.com/anthanhphan/go-slot-coordinator/pkg/slotmap"
)

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrSlotOutOfRange = errors.New("slot out of range")
	ErrInvalidRecord  = errors.New("invalid record")

	// ErrFenced rejects client writes to a slot that is being migrated away.
	ErrFenced = errors.New("slot is fenced")
	// ErrFenceConflict is returned when another job already fences an overlapping range.
	ErrFenceConflict = errors.New("slots fenced by another job")
	// ErrNotFenced is returned when a transfer is requested without the job's fence in place.
	ErrNotFenced = errors.New("slots not fenced by job")
	// ErrMoved rejects client requests for a slot this server released to another owner.
	ErrMoved = errors.New("slot moved")
)

// Record is one stored version of an object's metadata.
type Record struct {
	Name          string   `json:"name"`
	Slot          int      `json:"slot"`
	Hash          string   `json:"hash"`
	Size          int64    `json:"size"`
	Sequence      uint64   `json:"sequence"`
	Ts            int64    `json:"ts"`
	StoreStrategy string   `json:"storeStrategy,omitempty"`
	DataShards    int      `json:"dataShards"`
	ParityShards  int      `json:"parityShards"`
	ShardSize     int64    `json:"shardSize"`
	Locate        []string `json:"locate"`
}

// Validate checks the fields every stored record needs.
func (r Record) Validate(slotCount int) error {
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRecord)
	}
	if r.Slot < 0 || r.Slot >= slotCount {
		return fmt.Errorf("%w: %d", ErrSlotOutOfRange, r.Slot)
	}
	if r.DataShards < 0 || r.ParityShards < 0 {
		return fmt.Errorf("%w: negative shard count", ErrInvalidRecord)
	}
	return nil
}

// FencedError names the job holding the fence.
type FencedError struct {
	Slot  int
	JobID string
}

func (e *FencedError) Error() string {
	return fmt.Sprintf("%v: slot %d by job %s", ErrFenced, e.Slot, e.JobID)
}

func (e *FencedError) Is(target error) bool {
	return target == ErrFenced
}

// Owner names the server that now serves a released slot.
type Owner struct {
	ServerID string `json:"serverId"`
	HTTPAddr string `json:"httpAddr,omitempty"`
}

// MovedRange marks slots this server gave away, with the server that took them.
type MovedRange struct {
	Range slotmap.Range `json:"range"`
	Owner Owner         `json:"owner"`
}

// MovedError points a client at the slot's new owner.
type MovedError struct {
	Slot  int
	Owner Owner
}

func (e *MovedError) Error() string {
	return fmt.Sprintf("%v: slot %d now served by %s", ErrMoved, e.Slot, e.Owner.ServerID)
}

func (e *MovedError) Is(target error) bool {
	return target == ErrMoved
}

// TransferResult is what a source reports after pushing slots to a destination.
type TransferResult struct {
	Records int
	Slots   []slotmap.Range
}
