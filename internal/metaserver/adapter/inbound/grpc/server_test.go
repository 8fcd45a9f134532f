package grpc_handler

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/anthanhphan/go-slot-coordinator/internal/metaserver/adapter/outbound/peer"
	"github.com/anthanhphan/go-slot-coordinator/internal/metaserver/adapter/outbound/repository"
	"github.com/anthanhphan/go-slot-coordinator/internal/metaserver/domain"
	"github.com/anthanhphan/go-slot-coordinator/internal/metaserver/service"
	"github.com/anthanhphan/go-slot-coordinator/pkg/dataplanev1"
	"github.com/anthanhphan/go-slot-coordinator/pkg/slotmap"
)

const slotCount = 128

// network serves metadata servers over in-memory listeners keyed by name.
type network struct {
	listeners map[string]*bufconn.Listener
}

func (n *network) dialer() grpc.DialOption {
	return grpc.WithContextDialer(func(ctx context.Context, addr string) (net.Conn, error) {
		return n.listeners[addr].DialContext(ctx)
	})
}

func (n *network) start(t *testing.T, name string) *service.MetadataServiceImpl {
	t.Helper()
	p := peer.NewGrpcPeer(2, n.dialer())
	t.Cleanup(func() { _ = p.Close() })
	svc := service.NewMetadataService(repository.NewMemoryRepository(), p, slotCount)

	lis := bufconn.Listen(1 << 20)
	n.listeners[name] = lis
	s := grpc.NewServer()
	Register(s, svc)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)
	return svc
}

func (n *network) conn(t *testing.T, name string) *grpc.ClientConn {
	t.Helper()
	conn, err := grpc.NewClient("passthrough:///"+name, n.dialer(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestDataPlane_MigratesSlotsBetweenServers(t *testing.T) {
	nw := &network{listeners: map[string]*bufconn.Listener{}}
	src := nw.start(t, "src")
	nw.start(t, "dest")
	client := dataplanev1.NewDataPlaneClient(nw.conn(t, "src"))
	destClient := dataplanev1.NewDataPlaneClient(nw.conn(t, "dest"))
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c", "d", "e"} {
		_, err := src.PutRecord(ctx, domain.Record{Name: name, Hash: "h-" + name})
		require.NoError(t, err)
	}
	all := []slotmap.Range{{Start: 0, End: slotCount - 1}}

	fence, err := client.FenceSlots(ctx, &dataplanev1.FenceSlotsRequest{JobID: "9", Slots: all, TTLMilli: time.Minute.Milliseconds()})
	require.NoError(t, err)
	assert.Equal(t, slotCount, fence.Fenced)

	transfer, err := client.TransferSlots(ctx, &dataplanev1.TransferSlotsRequest{JobID: "9", DestAddr: "passthrough:///dest", Slots: all})
	require.NoError(t, err)
	assert.Equal(t, 5, transfer.Records)

	srcList, err := client.ListSlotRecords(ctx, &dataplanev1.ListSlotRecordsRequest{Slots: all})
	require.NoError(t, err)
	destList, err := destClient.ListSlotRecords(ctx, &dataplanev1.ListSlotRecordsRequest{Slots: all})
	require.NoError(t, err)
	assert.Equal(t, srcList.Records, destList.Records)

	released, err := client.ReleaseSlots(ctx, &dataplanev1.ReleaseSlotsRequest{
		JobID: "9",
		Slots: all,
		Owner: dataplanev1.SlotOwner{ServerID: "dest", HTTPAddr: "dest:8080"},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, released.Released)
	_, err = src.PutRecord(ctx, domain.Record{Name: "a", Hash: "h-a2"})
	assert.ErrorIs(t, err, domain.ErrMoved)

	unfenced, err := client.UnfenceSlots(ctx, &dataplanev1.UnfenceSlotsRequest{JobID: "9"})
	require.NoError(t, err)
	assert.Equal(t, slotCount, unfenced.Unfenced)

	discarded, err := destClient.DiscardSlots(ctx, &dataplanev1.DiscardSlotsRequest{JobID: "9", Slots: all})
	require.NoError(t, err)
	assert.Equal(t, 5, discarded.Discarded)

	claimed, err := client.ClaimSlots(ctx, &dataplanev1.ClaimSlotsRequest{JobID: "10", Slots: all})
	require.NoError(t, err)
	assert.Equal(t, slotCount, claimed.Cleared)
	_, err = src.PutRecord(ctx, domain.Record{Name: "a", Hash: "h-a2"})
	assert.NoError(t, err)
}

func TestDataPlane_ErrorCodes(t *testing.T) {
	nw := &network{listeners: map[string]*bufconn.Listener{}}
	nw.start(t, "src")
	client := dataplanev1.NewDataPlaneClient(nw.conn(t, "src"))
	ctx := context.Background()

	_, err := client.FenceSlots(ctx, &dataplanev1.FenceSlotsRequest{JobID: "1", Slots: []slotmap.Range{{Start: 0, End: slotCount}}})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.TransferSlots(ctx, &dataplanev1.TransferSlotsRequest{JobID: "1", DestAddr: "passthrough:///dest", Slots: []slotmap.Range{{Start: 0, End: 9}}})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	_, err = client.ReleaseSlots(ctx, &dataplanev1.ReleaseSlotsRequest{JobID: "1", Slots: []slotmap.Range{{Start: 0, End: 9}}})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.FenceSlots(ctx, &dataplanev1.FenceSlotsRequest{JobID: "1", Slots: []slotmap.Range{{Start: 0, End: 9}}})
	require.NoError(t, err)
	_, err = client.FenceSlots(ctx, &dataplanev1.FenceSlotsRequest{JobID: "2", Slots: []slotmap.Range{{Start: 5, End: 15}}})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestIngest_RejectsMixedJobs(t *testing.T) {
	nw := &network{listeners: map[string]*bufconn.Listener{}}
	nw.start(t, "dest")
	client := dataplanev1.NewDataPlaneClient(nw.conn(t, "dest"))

	stream, err := client.IngestRecords(context.Background())
	require.NoError(t, err)
	require.NoError(t, stream.Send(&dataplanev1.IngestRecordsRequest{JobID: "1", Records: []dataplanev1.Record{{Name: "a", Slot: 1}}}))
	_ = stream.Send(&dataplanev1.IngestRecordsRequest{JobID: "2", Records: []dataplanev1.Record{{Name: "b", Slot: 2}}})
	_, err = stream.CloseAndRecv()
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestHealthIsServing(t *testing.T) {
	nw := &network{listeners: map[string]*bufconn.Listener{}}
	nw.start(t, "src")

	resp, err := healthpb.NewHealthClient(nw.conn(t, "src")).Check(context.Background(), &healthpb.HealthCheckRequest{Service: dataplanev1.ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}
