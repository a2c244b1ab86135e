// Package cloud is the remote container the sync coordinator talks to: the
// wire messages, the gRPC service description shared with the server, and a
// client implementing Backend.
//
// Messages travel as google.protobuf.Struct so both ends share one schema
// without generated code.
package cloud

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "boardkeeper.cloud.v1.Cloud"

// MaxMessageSize bounds one message in either direction. Without an asset
// store payloads travel inline as base64, a third larger than the bytes
// ingested, so a record at the largest ingestion cap still has to fit.
const MaxMessageSize = 96 << 20

// MaxRecordSize is the largest encoded record one message can carry next to
// its envelope.
const MaxRecordSize = MaxMessageSize - 1<<20

// PageBytes is the encoded size push and pull pages stay within. A record
// above it travels in a page of its own.
const PageBytes = 16 << 20

const (
	PingMethod        = "/" + ServiceName + "/Ping"
	PushRecordsMethod = "/" + ServiceName + "/PushRecords"
	PullRecordsMethod = "/" + ServiceName + "/PullRecords"
	CreateShareMethod = "/" + ServiceName + "/CreateShare"
	AcceptShareMethod = "/" + ServiceName + "/AcceptShare"
)

// Server is implemented by the cloud container.
type Server interface {
	Ping(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PushRecords(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PullRecords(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateShare(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AcceptShare(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(Server, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call unaryCall) grpc.MethodDesc {
	full := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(Server), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(Server), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		unary("Ping", Server.Ping),
		unary("PushRecords", Server.PushRecords),
		unary("PullRecords", Server.PullRecords),
		unary("CreateShare", Server.CreateShare),
		unary("AcceptShare", Server.AcceptShare),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "boardkeeper/cloud/v1/cloud.proto",
}

func RegisterServer(r grpc.ServiceRegistrar, srv Server) {
	r.RegisterService(&ServiceDesc, srv)
}
