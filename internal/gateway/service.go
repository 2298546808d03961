package gateway

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "cidrd.Allocation"

const (
	MethodAllocate        = "Allocate"
	MethodRelease         = "Release"
	MethodListAssignments = "ListAssignments"
	MethodPoolStatus      = "PoolStatus"
)

// AllocationServer exchanges google.protobuf.Struct messages whose fields
// mirror the JSON bodies of the REST API.
type AllocationServer interface {
	Allocate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Release(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListAssignments(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	PoolStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(AllocationServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AllocationServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: FullMethod(name),
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AllocationServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AllocationServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: MethodAllocate, Handler: unaryHandler(MethodAllocate, AllocationServer.Allocate)},
		{MethodName: MethodRelease, Handler: unaryHandler(MethodRelease, AllocationServer.Release)},
		{MethodName: MethodListAssignments, Handler: unaryHandler(MethodListAssignments, AllocationServer.ListAssignments)},
		{MethodName: MethodPoolStatus, Handler: unaryHandler(MethodPoolStatus, AllocationServer.PoolStatus)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cidrd/allocation",
}

func RegisterAllocationServer(s grpc.ServiceRegistrar, srv AllocationServer) {
	s.RegisterService(&ServiceDesc, srv)
}
