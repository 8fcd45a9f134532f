package grpc_handler

import (
	"context"
	"errors"
	"io"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/anthanhphan/go-slot-coordinator/internal/metaserver/domain"
	"github.com/anthanhphan/go-slot-coordinator/internal/metaserver/port"
	"github.com/anthanhphan/go-slot-coordinator/pkg/dataplanev1"
	"github.com/anthanhphan/gosdk/logger"
)

// Server implements the gRPC DataPlane service.
type Server struct {
	dataplanev1.UnimplementedDataPlaneServer
	service port.MetadataService
}

// NewServer creates a new gRPC server.
func NewServer(service port.MetadataService) *Server {
	return &Server{
		service: service,
	}
}

// FenceSlots installs a write fence for the job.
func (s *Server) FenceSlots(ctx context.Context, req *dataplanev1.FenceSlotsRequest) (*dataplanev1.FenceSlotsResponse, error) {
	ttl := time.Duration(req.TTLMilli) * time.Millisecond
	fenced, err := s.service.FenceSlots(ctx, req.JobID, req.Slots, ttl)
	if err != nil {
		return nil, toStatus(err)
	}
	return &dataplanev1.FenceSlotsResponse{Fenced: fenced}, nil
}

// UnfenceSlots lifts the job's write fence.
func (s *Server) UnfenceSlots(ctx context.Context, req *dataplanev1.UnfenceSlotsRequest) (*dataplanev1.UnfenceSlotsResponse, error) {
	lifted, err := s.service.UnfenceSlots(ctx, req.JobID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &dataplanev1.UnfenceSlotsResponse{Unfenced: lifted}, nil
}

// TransferSlots pushes the requested slots to the destination server.
func (s *Server) TransferSlots(ctx context.Context, req *dataplanev1.TransferSlotsRequest) (*dataplanev1.TransferSlotsResponse, error) {
	result, err := s.service.TransferSlots(ctx, req.JobID, req.DestAddr, req.Slots)
	if err != nil {
		return nil, toStatus(err)
	}
	return &dataplanev1.TransferSlotsResponse{Records: result.Records, Slots: result.Slots}, nil
}

// ListSlotRecords returns the records held for the requested slots.
func (s *Server) ListSlotRecords(ctx context.Context, req *dataplanev1.ListSlotRecordsRequest) (*dataplanev1.ListSlotRecordsResponse, error) {
	recs, err := s.service.ListSlotRecords(ctx, req.Slots)
	if err != nil {
		return nil, toStatus(err)
	}
	out := make([]dataplanev1.Record, 0, len(recs))
	for _, rec := range recs {
		out = append(out, dataplanev1.Record(rec))
	}
	return &dataplanev1.ListSlotRecordsResponse{Records: out}, nil
}

// DiscardSlots drops records copied by an aborted migration.
func (s *Server) DiscardSlots(ctx context.Context, req *dataplanev1.DiscardSlotsRequest) (*dataplanev1.DiscardSlotsResponse, error) {
	removed, err := s.service.DiscardSlots(ctx, req.JobID, req.Slots)
	if err != nil {
		return nil, toStatus(err)
	}
	return &dataplanev1.DiscardSlotsResponse{Discarded: removed}, nil
}

// ReleaseSlots drops records whose slots moved to another server.
func (s *Server) ReleaseSlots(ctx context.Context, req *dataplanev1.ReleaseSlotsRequest) (*dataplanev1.ReleaseSlotsResponse, error) {
	owner := domain.Owner{ServerID: req.Owner.ServerID, HTTPAddr: req.Owner.HTTPAddr}
	removed, err := s.service.ReleaseSlots(ctx, req.JobID, req.Slots, owner)
	if err != nil {
		return nil, toStatus(err)
	}
	return &dataplanev1.ReleaseSlotsResponse{Released: removed}, nil
}

// ClaimSlots clears redirects for slots this server owns again.
func (s *Server) ClaimSlots(ctx context.Context, req *dataplanev1.ClaimSlotsRequest) (*dataplanev1.ClaimSlotsResponse, error) {
	cleared, err := s.service.ClaimSlots(ctx, req.JobID, req.Slots)
	if err != nil {
		return nil, toStatus(err)
	}
	return &dataplanev1.ClaimSlotsResponse{Cleared: cleared}, nil
}

// IngestRecords stores batches pushed by a migration source.
func (s *Server) IngestRecords(stream dataplanev1.DataPlane_IngestRecordsServer) error {
	accepted := 0
	jobID := ""
	for {
		req, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return status.Errorf(codes.Internal, "ingest stream failed: %v", err)
		}
		if jobID == "" {
			jobID = req.JobID
		} else if req.JobID != jobID {
			return status.Errorf(codes.InvalidArgument, "ingest stream mixes jobs %s and %s", jobID, req.JobID)
		}

		recs := make([]domain.Record, 0, len(req.Records))
		for _, rec := range req.Records {
			recs = append(recs, domain.Record(rec))
		}
		n, err := s.service.IngestRecords(stream.Context(), req.JobID, recs)
		accepted += n
		if err != nil {
			logger.Warnw("Ingest rejected", "job_id", req.JobID, "accepted", accepted, "error", err.Error())
			return toStatus(err)
		}
	}
	return stream.SendAndClose(&dataplanev1.IngestRecordsResponse{Accepted: accepted})
}

// toStatus maps service errors onto gRPC codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, domain.ErrSlotOutOfRange), errors.Is(err, domain.ErrInvalidRecord):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrFenceConflict), errors.Is(err, domain.ErrNotFenced), errors.Is(err, domain.ErrFenced),
		errors.Is(err, domain.ErrMoved):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrRecordNotFound):
		return status.Error(codes.NotFound, err.Error())
	default:
		return status.Errorf(codes.Internal, "%v", err)
	}
}
