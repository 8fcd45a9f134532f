package domain

import (
	"time"

	"github.com/anthanhphan/go-slot-coordinator/pkg/slotmap"
)

// MigrationState is a step of the migration state machine.
type MigrationState string

const (
	StateRequested    MigrationState = "requested"
	StateSourceLocked MigrationState = "source_locked"
	StateCopying      MigrationState = "copying"
	StateVerifying    MigrationState = "verifying"
	StateCommitting   MigrationState = "committing"
	StateCompleted    MigrationState = "completed"
	StateFailed       MigrationState = "failed"
	StateAborted      MigrationState = "aborted"
)

var transitions = map[MigrationState][]MigrationState{
	StateRequested:    {StateSourceLocked, StateFailed, StateAborted},
	StateSourceLocked: {StateCopying, StateFailed, StateAborted},
	StateCopying:      {StateVerifying, StateFailed, StateAborted},
	StateVerifying:    {StateCommitting, StateCopying, StateFailed, StateAborted},
	StateCommitting:   {StateCompleted, StateFailed},
}

// Terminal reports whether no further transition is possible.
func (s MigrationState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateAborted
}

// Committed reports whether the slot map has been, or is being, flipped to the destination.
func (s MigrationState) Committed() bool {
	return s == StateCommitting || s == StateCompleted
}

// CanTransition reports whether next is a legal successor of s.
func (s MigrationState) CanTransition(next MigrationState) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition is one audit entry of a job.
type Transition struct {
	From   MigrationState `json:"from"`
	To     MigrationState `json:"to"`
	At     time.Time      `json:"at"`
	Reason string         `json:"reason,omitempty"`
}

// MigrationJob moves a set of slots from one server to another.
type MigrationJob struct {
	ID              string          `json:"id"`
	SrcServerID     string          `json:"srcServerId"`
	DestServerID    string          `json:"destServerId"`
	Slots           []slotmap.Range `json:"slots"`
	State           MigrationState  `json:"state"`
	StartedAt       time.Time       `json:"startedAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	FinishedAt      time.Time       `json:"finishedAt,omitempty"`
	Checksum        string          `json:"checksum,omitempty"`
	Attempts        int             `json:"attempts"`
	Error           string          `json:"error,omitempty"`
	CancelRequested bool            `json:"cancelRequested,omitempty"`
	Records         int             `json:"records"`
	History         []Transition    `json:"history"`
}

// SlotStrings renders the job slots in wire form.
func (j MigrationJob) SlotStrings() []string {
	return slotmap.Format(j.Slots)
}

// Clone returns a deep copy safe to hand to callers.
func (j *MigrationJob) Clone() *MigrationJob {
	out := *j
	out.Slots = append([]slotmap.Range(nil), j.Slots...)
	out.History = append([]Transition(nil), j.History...)
	return &out
}

// MigrationRequest is the operator input for a migration.
type MigrationRequest struct {
	SrcServerID  string
	DestServerID string
	Slots        []slotmap.Range
}
