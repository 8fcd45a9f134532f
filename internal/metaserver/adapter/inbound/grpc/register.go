package grpc_handler

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/anthanhphan/go-slot-coordinator/internal/metaserver/port"
	"github.com/anthanhphan/go-slot-coordinator/pkg/dataplanev1"
)

// Register adds the data-plane and health services to s. The returned health
// server reports SERVING until the caller changes it.
func Register(s *grpc.Server, service port.MetadataService) *health.Server {
	dataplanev1.RegisterDataPlaneServer(s, NewServer(service))

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(dataplanev1.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return hs
}
