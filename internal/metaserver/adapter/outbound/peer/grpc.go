package peer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/anthanhphan/go-slot-coordinator/internal/metaserver/domain"
	"github.com/anthanhphan/go-slot-coordinator/internal/metaserver/port"
	"github.com/anthanhphan/go-slot-coordinator/pkg/dataplanev1"
	"github.com/anthanhphan/gosdk/logger"
)

const defaultBatchSize = 256

// GrpcPeer streams records to other metadata servers over the data-plane service.
type GrpcPeer struct {
	clients   map[string]dataplanev1.DataPlaneClient
	conns     map[string]*grpc.ClientConn
	dialOpts  []grpc.DialOption
	batchSize int
	mu        sync.RWMutex
}

// Ensure GrpcPeer implements port.Peer
var _ port.Peer = (*GrpcPeer)(nil)

// NewGrpcPeer creates a peer client. Extra dial options are appended to the defaults.
func NewGrpcPeer(batchSize int, dialOpts ...grpc.DialOption) *GrpcPeer {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &GrpcPeer{
		clients:   make(map[string]dataplanev1.DataPlaneClient),
		conns:     make(map[string]*grpc.ClientConn),
		dialOpts:  dialOpts,
		batchSize: batchSize,
	}
}

func (p *GrpcPeer) Ingest(ctx context.Context, addr string, jobID string, records []domain.Record) (int, error) {
	accepted, err := p.ingest(ctx, addr, jobID, records)
	if err != nil {
		if !errors.Is(err, context.Canceled) && status.Code(err) != codes.Canceled {
			logger.Warnw("Peer ingest failed", "addr", addr, "job_id", jobID, "error", err.Error())
			p.dropClient(addr)
		}
		return 0, err
	}
	return accepted, nil
}

func (p *GrpcPeer) ingest(ctx context.Context, addr string, jobID string, records []domain.Record) (int, error) {
	client, err := p.getClient(addr)
	if err != nil {
		return 0, err
	}

	stream, err := client.IngestRecords(ctx)
	if err != nil {
		return 0, err
	}
	for start := 0; start < len(records); start += p.batchSize {
		end := min(start+p.batchSize, len(records))
		batch := make([]dataplanev1.Record, 0, end-start)
		for _, rec := range records[start:end] {
			batch = append(batch, dataplanev1.Record(rec))
		}
		if err := stream.Send(&dataplanev1.IngestRecordsRequest{JobID: jobID, Records: batch}); err != nil {
			if errors.Is(err, io.EOF) {
				// The server closed the stream; the real status comes from CloseAndRecv.
				break
			}
			return 0, err
		}
	}

	resp, err := stream.CloseAndRecv()
	if err != nil {
		return 0, fmt.Errorf("close ingest stream: %w", err)
	}
	return resp.Accepted, nil
}

func (p *GrpcPeer) getClient(addr string) (dataplanev1.DataPlaneClient, error) {
	p.mu.RLock()
	client, ok := p.clients[addr]
	p.mu.RUnlock()
	if ok {
		return client, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double check
	if client, ok := p.clients[addr]; ok {
		return client, nil
	}

	opts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, p.dialOpts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, err
	}

	client = dataplanev1.NewDataPlaneClient(conn)
	p.clients[addr] = client
	p.conns[addr] = conn
	return client, nil
}

func (p *GrpcPeer) dropClient(addr string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if conn, ok := p.conns[addr]; ok {
		_ = conn.Close()
		delete(p.conns, addr)
	}
	delete(p.clients, addr)
}

func (p *GrpcPeer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for addr, conn := range p.conns {
		_ = conn.Close()
		delete(p.conns, addr)
		delete(p.clients, addr)
	}
	return nil
}
