package domain

import "github.com/anthanhphan/go-slot-coordinator/pkg/slotmap"

// VersionRecord describes one erasure-coded object version and where its shards live.
type VersionRecord struct {
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

// Reconstructable reports whether enough shard locations are known to rebuild the object.
func (v VersionRecord) Reconstructable() bool {
	if v.DataShards <= 0 {
		return len(v.Locate) > 0
	}
	return len(v.Locate) >= v.DataShards
}

// MatchResult is the outcome of comparing source and destination slot content.
type MatchResult struct {
	Match        bool   `json:"match"`
	Slot         int    `json:"slot,omitempty"`
	SourceDigest string `json:"sourceDigest,omitempty"`
	DestDigest   string `json:"destDigest,omitempty"`
	Aggregate    string `json:"aggregate,omitempty"`
	Records      int    `json:"records"`
}

// TransferStats is what a source reports after pushing slots to a destination.
type TransferStats struct {
	Records int             `json:"records"`
	Slots   []slotmap.Range `json:"slots"`
}
