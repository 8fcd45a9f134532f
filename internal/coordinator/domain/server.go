package domain

import (
	"time"

	"github.com/anthanhphan/go-slot-coordinator/pkg/slotmap"
)

// ServerStatus is the liveness state of a metadata server.
type ServerStatus string

const (
	StatusActive  ServerStatus = "active"
	StatusSuspect ServerStatus = "suspect"
	StatusLeaving ServerStatus = "leaving"
	StatusGone    ServerStatus = "gone"
)

// Server is a metadata server known to the coordinator.
type Server struct {
	ServerID      string          `json:"serverId"`
	HTTPAddr      string          `json:"httpAddr"`
	RPCAddr       string          `json:"rpcAddr"`
	IsLeader      bool            `json:"isMaster"`
	LastHeartbeat time.Time       `json:"lastHeartbeat"`
	Status        ServerStatus    `json:"status"`
	JoinedAt      time.Time       `json:"joinedAt"`
	Drained       []slotmap.Range `json:"drained,omitempty"`
}

// Eligible reports whether the server can receive slots.
func (s Server) Eligible() bool {
	return s.Status == StatusActive && s.HoldsData()
}

// HoldsData reports whether the server serves a data plane. The leader entry does not.
func (s Server) HoldsData() bool {
	return !s.IsLeader && s.RPCAddr != ""
}

// SlotOwner names the server a source redirects released slots to.
type SlotOwner struct {
	ServerID string
	HTTPAddr string
}

// Owner returns the redirect target for slots handed to s.
func (s Server) Owner() SlotOwner {
	return SlotOwner{ServerID: s.ServerID, HTTPAddr: s.HTTPAddr}
}

// JoinRequest admits a server through the designated leader.
type JoinRequest struct {
	LeaderID string
	ServerID string
	HTTPAddr string
	RPCAddr  string
}

// LeaveResult is returned when a drained server leaves.
type LeaveResult struct {
	ServerID    string          `json:"serverId"`
	Reclaimable []slotmap.Range `json:"reclaimable"`
}

// BacklogEntry records slots stranded on a server that went away.
type BacklogEntry struct {
	ServerID   string          `json:"serverId"`
	Slots      []slotmap.Range `json:"slots"`
	DetectedAt time.Time       `json:"detectedAt"`
}

// SlotsInfo summarizes one server's share of the slot map.
type SlotsInfo struct {
	ID        string   `json:"id"`
	ServerID  string   `json:"serverId"`
	Location  string   `json:"location"`
	Checksum  string   `json:"checksum"`
	Slots     []string `json:"slots"`
	Migrating []string `json:"migrating,omitempty"`
}
