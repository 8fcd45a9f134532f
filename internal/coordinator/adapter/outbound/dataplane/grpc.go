package dataplane

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/domain"
	"github.com/anthanhphan/go-slot-coordinator/internal/coordinator/port"
	"github.com/anthanhphan/go-slot-coordinator/internal/metrics"
	"github.com/anthanhphan/go-slot-coordinator/pkg/dataplanev1"
	"github.com/anthanhphan/go-slot-coordinator/pkg/resilience"
	"github.com/anthanhphan/go-slot-coordinator/pkg/slotmap"
	"github.com/anthanhphan/gosdk/logger"
)

// Listing a few thousand records per slot range overflows the 4MB default.
const maxMsgSize = 64 * 1024 * 1024

type GrpcAdapter struct {
	clients  map[string]dataplanev1.DataPlaneClient
	conns    map[string]*grpc.ClientConn
	breakers *resilience.BreakerSet
	dialOpts []grpc.DialOption
	mu       sync.RWMutex
}

// NewGrpcAdapter creates a data-plane client. Extra dial options are appended to the defaults.
func NewGrpcAdapter(dialOpts ...grpc.DialOption) *GrpcAdapter {
	return &GrpcAdapter{
		clients: make(map[string]dataplanev1.DataPlaneClient),
		conns:   make(map[string]*grpc.ClientConn),
		breakers: resilience.NewBreakerSet(resilience.BreakerConfig{
			FailureThreshold:  3,
			SuccessThreshold:  2,
			OpenTimeout:       10 * time.Second,
			HalfOpenMaxFlight: 5,
			OnStateChange: func(name string, from, to resilience.BreakerState) {
				metrics.BreakerTransitions.WithLabelValues(name, string(to)).Inc()
				logger.Warnw("Data plane breaker changed state", "addr", name, "from", from, "to", to)
			},
		}),
		dialOpts: dialOpts,
	}
}

// Ensure GrpcAdapter implements port.DataPlane
var _ port.DataPlane = (*GrpcAdapter)(nil)

func (a *GrpcAdapter) FenceSlots(ctx context.Context, addr string, jobID string, slots []slotmap.Range, ttl time.Duration) error {
	return a.call(ctx, addr, "FenceSlots", func(ctx context.Context, client dataplanev1.DataPlaneClient) error {
		_, err := client.FenceSlots(ctx, &dataplanev1.FenceSlotsRequest{
			JobID:    jobID,
			Slots:    slots,
			TTLMilli: ttl.Milliseconds(),
		})
		return err
	})
}

func (a *GrpcAdapter) UnfenceSlots(ctx context.Context, addr string, jobID string) error {
	return a.call(ctx, addr, "UnfenceSlots", func(ctx context.Context, client dataplanev1.DataPlaneClient) error {
		_, err := client.UnfenceSlots(ctx, &dataplanev1.UnfenceSlotsRequest{JobID: jobID})
		return err
	})
}

func (a *GrpcAdapter) TransferSlots(ctx context.Context, srcAddr string, destAddr string, jobID string, slots []slotmap.Range) (domain.TransferStats, error) {
	var stats domain.TransferStats
	err := a.call(ctx, srcAddr, "TransferSlots", func(ctx context.Context, client dataplanev1.DataPlaneClient) error {
		resp, err := client.TransferSlots(ctx, &dataplanev1.TransferSlotsRequest{
			JobID:    jobID,
			DestAddr: destAddr,
			Slots:    slots,
		})
		if err != nil {
			return err
		}
		stats = domain.TransferStats{Records: resp.Records, Slots: resp.Slots}
		return nil
	})
	return stats, err
}

func (a *GrpcAdapter) SlotRecords(ctx context.Context, addr string, slots []slotmap.Range) ([]domain.VersionRecord, error) {
	var records []domain.VersionRecord
	err := a.call(ctx, addr, "ListSlotRecords", func(ctx context.Context, client dataplanev1.DataPlaneClient) error {
		resp, err := client.ListSlotRecords(ctx, &dataplanev1.ListSlotRecordsRequest{Slots: slots})
		if err != nil {
			return err
		}
		records = make([]domain.VersionRecord, 0, len(resp.Records))
		for _, rec := range resp.Records {
			records = append(records, domain.VersionRecord(rec))
		}
		return nil
	})
	return records, err
}

func (a *GrpcAdapter) DiscardSlots(ctx context.Context, addr string, jobID string, slots []slotmap.Range) error {
	return a.call(ctx, addr, "DiscardSlots", func(ctx context.Context, client dataplanev1.DataPlaneClient) error {
		_, err := client.DiscardSlots(ctx, &dataplanev1.DiscardSlotsRequest{JobID: jobID, Slots: slots})
		return err
	})
}

func (a *GrpcAdapter) ReleaseSlots(ctx context.Context, addr string, jobID string, slots []slotmap.Range, owner domain.SlotOwner) error {
	return a.call(ctx, addr, "ReleaseSlots", func(ctx context.Context, client dataplanev1.DataPlaneClient) error {
		_, err := client.ReleaseSlots(ctx, &dataplanev1.ReleaseSlotsRequest{
			JobID: jobID,
			Slots: slots,
			Owner: dataplanev1.SlotOwner{ServerID: owner.ServerID, HTTPAddr: owner.HTTPAddr},
		})
		return err
	})
}

func (a *GrpcAdapter) ClaimSlots(ctx context.Context, addr string, jobID string, slots []slotmap.Range) error {
	return a.call(ctx, addr, "ClaimSlots", func(ctx context.Context, client dataplanev1.DataPlaneClient) error {
		_, err := client.ClaimSlots(ctx, &dataplanev1.ClaimSlotsRequest{JobID: jobID, Slots: slots})
		return err
	})
}

// call runs one RPC through the peer's breaker and records its outcome.
func (a *GrpcAdapter) call(ctx context.Context, addr, op string, fn func(context.Context, dataplanev1.DataPlaneClient) error) error {
	err := a.breakers.Get(addr).Execute(ctx, func(execCtx context.Context) error {
		client, err := a.getClient(addr)
		if err != nil {
			return normalizeRPCErr(execCtx, err)
		}
		return normalizeRPCErr(execCtx, fn(execCtx, client))
	})
	if err != nil {
		metrics.DataPlaneRPCs.WithLabelValues(op, "error").Inc()
		a.handleRPCErr(addr, err, op)
		return fmt.Errorf("%s on %s: %w", op, addr, err)
	}
	metrics.DataPlaneRPCs.WithLabelValues(op, "success").Inc()
	return nil
}

func (a *GrpcAdapter) getClient(addr string) (dataplanev1.DataPlaneClient, error) {
	a.mu.RLock()
	client, ok := a.clients[addr]
	a.mu.RUnlock()
	if ok {
		return client, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// Double check
	if client, ok := a.clients[addr]; ok {
		return client, nil
	}

	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(maxMsgSize),
			grpc.MaxCallSendMsgSize(maxMsgSize),
		),
	}, a.dialOpts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, err
	}

	client = dataplanev1.NewDataPlaneClient(conn)
	a.clients[addr] = client
	a.conns[addr] = conn

	return client, nil
}

func (a *GrpcAdapter) handleRPCErr(addr string, err error, op string) {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		logger.Warnw("Data plane RPC short-circuited", "op", op, "addr", addr, "error", err.Error())
		var openErr *resilience.CircuitOpenError
		if errors.As(err, &openErr) && openErr.RetryAfter <= 0 {
			// Force a reconnect when the breaker lets a trial call through.
			a.dropClient(addr)
		}
		return
	}
	if errors.Is(err, context.Canceled) || resilience.IsPermanent(err) {
		return
	}

	logger.Warnw("Data plane RPC failed", "op", op, "addr", addr, "error", err.Error())
	a.dropClient(addr)
}

func (a *GrpcAdapter) dropClient(addr string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if conn, ok := a.conns[addr]; ok {
		_ = conn.Close()
		delete(a.conns, addr)
	}
	delete(a.clients, addr)
}

// normalizeRPCErr maps cancellation onto context.Canceled and marks answers
// that a retry cannot change as permanent.
func normalizeRPCErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || status.Code(err) == codes.Canceled {
		return context.Canceled
	}
	// gRPC stream operations can surface EOF after caller canceled the context.
	if errors.Is(err, io.EOF) && ctx != nil && errors.Is(ctx.Err(), context.Canceled) {
		return context.Canceled
	}
	switch status.Code(err) {
	case codes.InvalidArgument, codes.OutOfRange:
		return resilience.Permanent(fmt.Errorf("%w: %s", domain.ErrInvalidRequest, status.Convert(err).Message()))
	case codes.FailedPrecondition, codes.Unimplemented, codes.PermissionDenied:
		return resilience.Permanent(err)
	}
	return err
}

func (a *GrpcAdapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, conn := range a.conns {
		_ = conn.Close()
	}
}
