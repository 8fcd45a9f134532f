package dataplanev1

import "github.com/anthanhphan/go-slot-coordinator/pkg/slotmap"

// Record is one object version as carried between metadata servers.
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

type FenceSlotsRequest struct {
	JobID    string          `json:"jobId"`
	Slots    []slotmap.Range `json:"slots"`
	TTLMilli int64           `json:"ttlMs"`
}

type FenceSlotsResponse struct {
	Fenced int `json:"fenced"`
}

type UnfenceSlotsRequest struct {
	JobID string `json:"jobId"`
}

type UnfenceSlotsResponse struct {
	Unfenced int `json:"unfenced"`
}

// TransferSlotsRequest asks a source to push slots to DestAddr.
type TransferSlotsRequest struct {
	JobID    string          `json:"jobId"`
	DestAddr string          `json:"destAddr"`
	Slots    []slotmap.Range `json:"slots"`
}

type TransferSlotsResponse struct {
	Records int             `json:"records"`
	Slots   []slotmap.Range `json:"slots"`
}

type ListSlotRecordsRequest struct {
	Slots []slotmap.Range `json:"slots"`
}

type ListSlotRecordsResponse struct {
	Records []Record `json:"records"`
}

type DiscardSlotsRequest struct {
	JobID string          `json:"jobId"`
	Slots []slotmap.Range `json:"slots"`
}

type DiscardSlotsResponse struct {
	Discarded int `json:"discarded"`
}

// SlotOwner names the server that took over released slots.
type SlotOwner struct {
	ServerID string `json:"serverId"`
	HTTPAddr string `json:"httpAddr,omitempty"`
}

// ReleaseSlotsRequest drops slots on a source and redirects later client
// requests for them to Owner.
type ReleaseSlotsRequest struct {
	JobID string          `json:"jobId"`
	Slots []slotmap.Range `json:"slots"`
	Owner SlotOwner       `json:"owner"`
}

type ReleaseSlotsResponse struct {
	Released int `json:"released"`
}

// ClaimSlotsRequest tells a server it owns slots, clearing any redirect left
// by an earlier release.
type ClaimSlotsRequest struct {
	JobID string          `json:"jobId"`
	Slots []slotmap.Range `json:"slots"`
}

type ClaimSlotsResponse struct {
	Cleared int `json:"cleared"`
}

// IngestRecordsRequest is one batch on the ingest stream. Every batch of a
// stream carries the same JobID.
type IngestRecordsRequest struct {
	JobID   string   `json:"jobId"`
	Records []Record `json:"records"`
}

type IngestRecordsResponse struct {
	Accepted int `json:"accepted"`
}
