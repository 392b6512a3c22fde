package realtime

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"droneSurveyManagement/internal/room"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "droneSurvey.realtime.v1.Realtime"

// Full method names, one bidirectional stream per namespace.
const (
	MethodDrone   = "/" + ServiceName + "/Drone"
	MethodMission = "/" + ServiceName + "/Mission"
)

// RealtimeServer is implemented by Server.
type RealtimeServer interface {
	Drone(grpc.ServerStream) error
	Mission(grpc.ServerStream) error
}

// ServiceDesc describes the service to grpc. Messages on both streams are
// google.protobuf.Struct frames, so no generated code is needed.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RealtimeServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Drone",
			Handler:       func(srv any, stream grpc.ServerStream) error { return srv.(RealtimeServer).Drone(stream) },
			ServerStreams: true,
			ClientStreams: true,
		},
		{
			StreamName:    "Mission",
			Handler:       func(srv any, stream grpc.ServerStream) error { return srv.(RealtimeServer).Mission(stream) },
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "droneSurvey/realtime/v1/realtime.proto",
}

// RegisterWith registers srv on gs.
func RegisterWith(gs grpc.ServiceRegistrar, srv RealtimeServer) {
	gs.RegisterService(&ServiceDesc, srv)
}

// ClientStream is the client end of a namespace stream.
type ClientStream struct {
	stream grpc.ClientStream
}

// Open starts a stream on namespace ns. Credentials travel in ctx metadata
// or as per-RPC credentials on cc.
func Open(ctx context.Context, cc grpc.ClientConnInterface, ns room.Namespace) (*ClientStream, error) {
	var (
		desc   *grpc.StreamDesc
		method string
	)
	switch ns {
	case room.NamespaceDrone:
		desc, method = &ServiceDesc.Streams[0], MethodDrone
	case room.NamespaceMission:
		desc, method = &ServiceDesc.Streams[1], MethodMission
	default:
		return nil, fmt.Errorf("unknown namespace %q", ns)
	}
	s, err := cc.NewStream(ctx, desc, method)
	if err != nil {
		return nil, err
	}
	return &ClientStream{stream: s}, nil
}

// Send writes one event.
func (c *ClientStream) Send(event string, data any) error {
	f, err := EncodeFrame(event, data)
	if err != nil {
		return err
	}
	return c.stream.SendMsg(f)
}

// Recv blocks for the next event.
func (c *ClientStream) Recv() (string, any, error) {
	f := new(structpb.Struct)
	if err := c.stream.RecvMsg(f); err != nil {
		return "", nil, err
	}
	event, data := DecodeFrame(f)
	return event, data, nil
}

// CloseSend half-closes the stream; the server then ends it.
func (c *ClientStream) CloseSend() error {
	return c.stream.CloseSend()
}
