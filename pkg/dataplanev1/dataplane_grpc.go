package dataplanev1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "dataplane.v1.DataPlane"

const (
	DataPlane_FenceSlots_FullMethodName      = "/" + ServiceName + "/FenceSlots"
	DataPlane_UnfenceSlots_FullMethodName    = "/" + ServiceName + "/UnfenceSlots"
	DataPlane_TransferSlots_FullMethodName   = "/" + ServiceName + "/TransferSlots"
	DataPlane_ListSlotRecords_FullMethodName = "/" + ServiceName + "/ListSlotRecords"
	DataPlane_DiscardSlots_FullMethodName    = "/" + ServiceName + "/DiscardSlots"
	DataPlane_ReleaseSlots_FullMethodName    = "/" + ServiceName + "/ReleaseSlots"
	DataPlane_ClaimSlots_FullMethodName      = "/" + ServiceName + "/ClaimSlots"
	DataPlane_IngestRecords_FullMethodName   = "/" + ServiceName + "/IngestRecords"
)

// DataPlaneClient is the client API for the DataPlane service.
type DataPlaneClient interface {
	FenceSlots(ctx context.Context, in *FenceSlotsRequest, opts ...grpc.CallOption) (*FenceSlotsResponse, error)
	UnfenceSlots(ctx context.Context, in *UnfenceSlotsRequest, opts ...grpc.CallOption) (*UnfenceSlotsResponse, error)
	TransferSlots(ctx context.Context, in *TransferSlotsRequest, opts ...grpc.CallOption) (*TransferSlotsResponse, error)
	ListSlotRecords(ctx context.Context, in *ListSlotRecordsRequest, opts ...grpc.CallOption) (*ListSlotRecordsResponse, error)
	DiscardSlots(ctx context.Context, in *DiscardSlotsRequest, opts ...grpc.CallOption) (*DiscardSlotsResponse, error)
	ReleaseSlots(ctx context.Context, in *ReleaseSlotsRequest, opts ...grpc.CallOption) (*ReleaseSlotsResponse, error)
	ClaimSlots(ctx context.Context, in *ClaimSlotsRequest, opts ...grpc.CallOption) (*ClaimSlotsResponse, error)
	IngestRecords(ctx context.Context, opts ...grpc.CallOption) (DataPlane_IngestRecordsClient, error)
}

type dataPlaneClient struct {
	cc grpc.ClientConnInterface
}

// NewDataPlaneClient returns a client whose calls are always JSON encoded.
func NewDataPlaneClient(cc grpc.ClientConnInterface) DataPlaneClient {
	return &dataPlaneClient{cc}
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	if err := cc.Invoke(ctx, method, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *dataPlaneClient) FenceSlots(ctx context.Context, in *FenceSlotsRequest, opts ...grpc.CallOption) (*FenceSlotsResponse, error) {
	return invoke[FenceSlotsResponse](ctx, c.cc, DataPlane_FenceSlots_FullMethodName, in, opts)
}

func (c *dataPlaneClient) UnfenceSlots(ctx context.Context, in *UnfenceSlotsRequest, opts ...grpc.CallOption) (*UnfenceSlotsResponse, error) {
	return invoke[UnfenceSlotsResponse](ctx, c.cc, DataPlane_UnfenceSlots_FullMethodName, in, opts)
}

func (c *dataPlaneClient) TransferSlots(ctx context.Context, in *TransferSlotsRequest, opts ...grpc.CallOption) (*TransferSlotsResponse, error) {
	return invoke[TransferSlotsResponse](ctx, c.cc, DataPlane_TransferSlots_FullMethodName, in, opts)
}

func (c *dataPlaneClient) ListSlotRecords(ctx context.Context, in *ListSlotRecordsRequest, opts ...grpc.CallOption) (*ListSlotRecordsResponse, error) {
	return invoke[ListSlotRecordsResponse](ctx, c.cc, DataPlane_ListSlotRecords_FullMethodName, in, opts)
}

func (c *dataPlaneClient) DiscardSlots(ctx context.Context, in *DiscardSlotsRequest, opts ...grpc.CallOption) (*DiscardSlotsResponse, error) {
	return invoke[DiscardSlotsResponse](ctx, c.cc, DataPlane_DiscardSlots_FullMethodName, in, opts)
}

func (c *dataPlaneClient) ReleaseSlots(ctx context.Context, in *ReleaseSlotsRequest, opts ...grpc.CallOption) (*ReleaseSlotsResponse, error) {
	return invoke[ReleaseSlotsResponse](ctx, c.cc, DataPlane_ReleaseSlots_FullMethodName, in, opts)
}

func (c *dataPlaneClient) ClaimSlots(ctx context.Context, in *ClaimSlotsRequest, opts ...grpc.CallOption) (*ClaimSlotsResponse, error) {
	return invoke[ClaimSlotsResponse](ctx, c.cc, DataPlane_ClaimSlots_FullMethodName, in, opts)
}

func (c *dataPlaneClient) IngestRecords(ctx context.Context, opts ...grpc.CallOption) (DataPlane_IngestRecordsClient, error) {
	stream, err := c.cc.NewStream(ctx, &DataPlane_ServiceDesc.Streams[0], DataPlane_IngestRecords_FullMethodName, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	return &dataPlaneIngestRecordsClient{stream}, nil
}

type DataPlane_IngestRecordsClient interface {
	Send(*IngestRecordsRequest) error
	CloseAndRecv() (*IngestRecordsResponse, error)
	grpc.ClientStream
}

type dataPlaneIngestRecordsClient struct {
	grpc.ClientStream
}

func (x *dataPlaneIngestRecordsClient) Send(m *IngestRecordsRequest) error {
	return x.ClientStream.SendMsg(m)
}

func (x *dataPlaneIngestRecordsClient) CloseAndRecv() (*IngestRecordsResponse, error) {
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	m := new(IngestRecordsResponse)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// DataPlaneServer is the server API for the DataPlane service.
// Implementations must embed UnimplementedDataPlaneServer.
type DataPlaneServer interface {
	FenceSlots(context.Context, *FenceSlotsRequest) (*FenceSlotsResponse, error)
	UnfenceSlots(context.Context, *UnfenceSlotsRequest) (*UnfenceSlotsResponse, error)
	TransferSlots(context.Context, *TransferSlotsRequest) (*TransferSlotsResponse, error)
	ListSlotRecords(context.Context, *ListSlotRecordsRequest) (*ListSlotRecordsResponse, error)
	DiscardSlots(context.Context, *DiscardSlotsRequest) (*DiscardSlotsResponse, error)
	ReleaseSlots(context.Context, *ReleaseSlotsRequest) (*ReleaseSlotsResponse, error)
	ClaimSlots(context.Context, *ClaimSlotsRequest) (*ClaimSlotsResponse, error)
	IngestRecords(DataPlane_IngestRecordsServer) error
	mustEmbedUnimplementedDataPlaneServer()
}

type UnimplementedDataPlaneServer struct{}

func (UnimplementedDataPlaneServer) FenceSlots(context.Context, *FenceSlotsRequest) (*FenceSlotsResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method FenceSlots not implemented")
}
func (UnimplementedDataPlaneServer) UnfenceSlots(context.Context, *UnfenceSlotsRequest) (*UnfenceSlotsResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method UnfenceSlots not implemented")
}
func (UnimplementedDataPlaneServer) TransferSlots(context.Context, *TransferSlotsRequest) (*TransferSlotsResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method TransferSlots not implemented")
}
func (UnimplementedDataPlaneServer) ListSlotRecords(context.Context, *ListSlotRecordsRequest) (*ListSlotRecordsResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ListSlotRecords not implemented")
}
func (UnimplementedDataPlaneServer) DiscardSlots(context.Context, *DiscardSlotsRequest) (*DiscardSlotsResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method DiscardSlots not implemented")
}
func (UnimplementedDataPlaneServer) ReleaseSlots(context.Context, *ReleaseSlotsRequest) (*ReleaseSlotsResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ReleaseSlots not implemented")
}
func (UnimplementedDataPlaneServer) ClaimSlots(context.Context, *ClaimSlotsRequest) (*ClaimSlotsResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ClaimSlots not implemented")
}
func (UnimplementedDataPlaneServer) IngestRecords(DataPlane_IngestRecordsServer) error {
	return status.Errorf(codes.Unimplemented, "method IngestRecords not implemented")
}
func (UnimplementedDataPlaneServer) mustEmbedUnimplementedDataPlaneServer() {}

func RegisterDataPlaneServer(s grpc.ServiceRegistrar, srv DataPlaneServer) {
	s.RegisterService(&DataPlane_ServiceDesc, srv)
}

type DataPlane_IngestRecordsServer interface {
	SendAndClose(*IngestRecordsResponse) error
	Recv() (*IngestRecordsRequest, error)
	grpc.ServerStream
}

type dataPlaneIngestRecordsServer struct {
	grpc.ServerStream
}

func (x *dataPlaneIngestRecordsServer) SendAndClose(m *IngestRecordsResponse) error {
	return x.ServerStream.SendMsg(m)
}

func (x *dataPlaneIngestRecordsServer) Recv() (*IngestRecordsRequest, error) {
	m := new(IngestRecordsRequest)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func _DataPlane_IngestRecords_Handler(srv any, stream grpc.ServerStream) error {
	return srv.(DataPlaneServer).IngestRecords(&dataPlaneIngestRecordsServer{stream})
}

// unaryMethod builds the MethodDesc for one request/response call.
func unaryMethod[Req any, Resp any](name string, call func(DataPlaneServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(DataPlaneServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(DataPlaneServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// DataPlane_ServiceDesc is the grpc.ServiceDesc for the DataPlane service.
var DataPlane_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DataPlaneServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("FenceSlots", DataPlaneServer.FenceSlots),
		unaryMethod("UnfenceSlots", DataPlaneServer.UnfenceSlots),
		unaryMethod("TransferSlots", DataPlaneServer.TransferSlots),
		unaryMethod("ListSlotRecords", DataPlaneServer.ListSlotRecords),
		unaryMethod("DiscardSlots", DataPlaneServer.DiscardSlots),
		unaryMethod("ReleaseSlots", DataPlaneServer.ReleaseSlots),
		unaryMethod("ClaimSlots", DataPlaneServer.ClaimSlots),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "IngestRecords",
			Handler:       _DataPlane_IngestRecords_Handler,
			ClientStreams: true,
		},
	},
	Metadata: "dataplane/v1/dataplane.proto",
}
