package port

import (
	"context"

	"github.com/anthanhphan/go-slot-coordinator/internal/metaserver/domain"
)

//go:generate mockgen -destination=../service/mocks/peer_mock.go -package=mocks -source=peer.go

// Peer pushes records to another metadata server.
type Peer interface {
	// Ingest streams records to the server at addr and returns how many it accepted.
	Ingest(ctx context.Context, addr string, jobID string, records []domain.Record) (int, error)
}
