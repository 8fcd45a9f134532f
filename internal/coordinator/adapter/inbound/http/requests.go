package http_handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/domain"
	"github.com/anthanhphan/go-slot-coordinator/pkg/slotmap"
)

type migrateRequest struct {
	SrcServerID  string   `json:"srcServerId"`
	DestServerID string   `json:"destServerId"`
	Slots        []string `json:"slots"`
	SlotsStr     string   `json:"slotsStr"`
}

func (r migrateRequest) toDomain(slotCount int) (domain.MigrationRequest, error) {
	if r.SrcServerID == "" || r.DestServerID == "" {
		return domain.MigrationRequest{}, domain.Invalid("srcServerId and destServerId are required")
	}
	items := append(append([]string(nil), r.Slots...), slotmap.SplitList(r.SlotsStr)...)
	if len(items) == 0 {
		return domain.MigrationRequest{}, domain.Invalid("no slots given")
	}
	slots, err := slotmap.ParseRanges(items, slotCount)
	if err != nil {
		return domain.MigrationRequest{}, domain.Invalid("%v", err)
	}
	return domain.MigrationRequest{
		SrcServerID:  r.SrcServerID,
		DestServerID: r.DestServerID,
		Slots:        slots,
	}, nil
}

type jobRequest struct {
	ID string `json:"id"`
}

type joinRequest struct {
	MasterID string `json:"masterId"`
	ServerID string `json:"serverId"`
	HTTPAddr string `json:"httpAddr"`
	RPCAddr  string `json:"rpcAddr"`
}

type serverRequest struct {
	ServerID string `json:"serverId"`
}

type reclaimRequest struct {
	ServerID     string `json:"serverId"`
	DestServerID string `json:"destServerId"`
}

// leaderRequest announces a new leader. FromID names the announcing node.
type leaderRequest struct {
	FromID     string `json:"fromId"`
	LeaderID   string `json:"leaderId"`
	LeaderAddr string `json:"leaderAddr"`
}

// decodeStrict rejects unknown fields and trailing data.
func decodeStrict(body []byte, v any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return domain.Invalid("request body is empty")
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.Invalid("malformed request body: %v", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return domain.Invalid("unexpected data after request body")
	}
	return nil
}

// required returns an InvalidRequest error naming the first empty field.
func required(fields ...string) error {
	for i := 0; i+1 < len(fields); i += 2 {
		if strings.TrimSpace(fields[i+1]) == "" {
			return domain.Invalid("%s is required", fields[i])
		}
	}
	return nil
}
