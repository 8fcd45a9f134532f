package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/anthanhphan/go-slot-coordinator/pkg/slotmap"
)

var (
	ErrNotLeader        = errors.New("not the leader")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrSlotRangeBusy    = errors.New("slot range busy")
	ErrHasOwnedSlots    = errors.New("server still owns slots")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrUnknownServer    = errors.New("unknown server")
	ErrAlreadyMember    = errors.New("server already a member")
	ErrServerGone       = errors.New("server gone")
	ErrCancelRefused    = errors.New("cancel refused")
	ErrCanceled         = errors.New("migration canceled")

	// ErrLeaderChangeRefused rejects a leader change the current leader did not announce.
	ErrLeaderChangeRefused = errors.New("leader change refused")

	// Slot map invariant guards.
	ErrOverlap    = slotmap.ErrOverlap
	ErrNotOwned   = slotmap.ErrNotOwned
	ErrUnknownJob = slotmap.ErrUnknownJob
)

// NotLeaderError tells the caller where the current leader lives.
type NotLeaderError struct {
	LeaderID   string
	LeaderAddr string
}

func (e *NotLeaderError) Error() string {
	if e.LeaderID == "" {
		return fmt.Sprintf("%v: no leader known", ErrNotLeader)
	}
	return fmt.Sprintf("%v: leader is %s at %s", ErrNotLeader, e.LeaderID, e.LeaderAddr)
}

func (e *NotLeaderError) Is(target error) bool {
	return target == ErrNotLeader
}

// SlotRangeBusyError names the in-flight job holding the range.
type SlotRangeBusyError struct {
	JobID      string
	Slot       int
	RetryAfter time.Duration
}

func (e *SlotRangeBusyError) Error() string {
	return fmt.Sprintf("%v: slot %d held by job %s", ErrSlotRangeBusy, e.Slot, e.JobID)
}

func (e *SlotRangeBusyError) Is(target error) bool {
	return target == ErrSlotRangeBusy
}

// HasOwnedSlotsError lists what must be drained before leaving.
type HasOwnedSlotsError struct {
	ServerID string
	Slots    []slotmap.Range
}

func (e *HasOwnedSlotsError) Error() string {
	return fmt.Sprintf("%v: %s holds %v", ErrHasOwnedSlots, e.ServerID, slotmap.Format(e.Slots))
}

func (e *HasOwnedSlotsError) Is(target error) bool {
	return target == ErrHasOwnedSlots
}

// ChecksumMismatchError carries the first diverging slot.
type ChecksumMismatchError struct {
	Slot         int
	SourceDigest string
	DestDigest   string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("%v at slot %d: source %s, destination %s", ErrChecksumMismatch, e.Slot, e.SourceDigest, e.DestDigest)
}

func (e *ChecksumMismatchError) Is(target error) bool {
	return target == ErrChecksumMismatch
}

// Invalid wraps a message as an InvalidRequest error.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// IsInvariantViolation reports errors that mean the slot map disagrees with the coordinator's own bookkeeping.
func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrOverlap) || errors.Is(err, ErrNotOwned) || errors.Is(err, ErrUnknownJob) ||
		errors.Is(err, slotmap.ErrBrokenCoverage)
}
