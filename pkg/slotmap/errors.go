package slotmap

import (
	"errors"
	"fmt"
)

var (
	ErrOverlap        = errors.New("slot already owned by another server")
	ErrNotOwned       = errors.New("slot not owned by source")
	ErrUnknownJob     = errors.New("unknown migration job")
	ErrRangeBusy      = errors.New("slot range has an in-flight migration")
	ErrOutOfRange     = errors.New("slot out of range")
	ErrBrokenCoverage = errors.New("slot map coverage broken")
)

// OverlapError reports the first slot held by a different owner.
type OverlapError struct {
	Slot  int
	Owner string
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("%v: slot %d owned by %s", ErrOverlap, e.Slot, e.Owner)
}

func (e *OverlapError) Is(target error) bool {
	return target == ErrOverlap
}

// NotOwnedError reports the first slot the source does not own outright.
type NotOwnedError struct {
	Slot   int
	Server string
	Owner  string
}

func (e *NotOwnedError) Error() string {
	owner := e.Owner
	if owner == "" {
		owner = "nobody"
	}
	return fmt.Sprintf("%v: slot %d belongs to %s, not %s", ErrNotOwned, e.Slot, owner, e.Server)
}

func (e *NotOwnedError) Is(target error) bool {
	return target == ErrNotOwned
}

// BusyError reports a slot already in a transitional state.
type BusyError struct {
	Slot  int
	JobID string
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("%v: slot %d held by job %s", ErrRangeBusy, e.Slot, e.JobID)
}

func (e *BusyError) Is(target error) bool {
	return target == ErrRangeBusy
}
