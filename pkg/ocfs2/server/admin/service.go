package admin

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	ServiceName = "ocfs2.admin.v1.Admin"

	prepareClusterFullMethod = "/" + ServiceName + "/PrepareCluster"
	preparePoolFullMethod    = "/" + ServiceName + "/PreparePool"
	removeHostFullMethod     = "/" + ServiceName + "/RemoveHost"
)

// AdminServer is the administrative surface of the membership manager.
//
// Requests and responses are protobuf well-known types:
//   - PrepareCluster takes the cluster id and returns a verdict struct
//   - PreparePool takes a struct with "pool_id" and "host_ids" and returns a verdict struct
//   - RemoveHost takes the host id
type AdminServer interface {
	PrepareCluster(ctx context.Context, req *wrapperspb.UInt64Value) (*structpb.Struct, error)
	PreparePool(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	RemoveHost(ctx context.Context, req *wrapperspb.UInt64Value) (*emptypb.Empty, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "PrepareCluster",
			Handler:    prepareClusterHandler,
		},
		{
			MethodName: "PreparePool",
			Handler:    preparePoolHandler,
		},
		{
			MethodName: "RemoveHost",
			Handler:    removeHostHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ocfs2/admin/v1/admin.proto",
}

// RegisterAdminServer registers the AdminServer with the gRPC server
func RegisterAdminServer(s grpc.ServiceRegistrar, srv AdminServer) {
	s.RegisterService(&serviceDesc, srv)
}

func prepareClusterHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.UInt64Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServer).PrepareCluster(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: prepareClusterFullMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AdminServer).PrepareCluster(ctx, req.(*wrapperspb.UInt64Value))
	}
	return interceptor(ctx, in, info, handler)
}

func preparePoolHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServer).PreparePool(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: preparePoolFullMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AdminServer).PreparePool(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func removeHostHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.UInt64Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServer).RemoveHost(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: removeHostFullMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AdminServer).RemoveHost(ctx, req.(*wrapperspb.UInt64Value))
	}
	return interceptor(ctx, in, info, handler)
}

// AdminClient is the client API for the admin service
type AdminClient interface {
	PrepareCluster(ctx context.Context, in *wrapperspb.UInt64Value, opts ...grpc.CallOption) (*structpb.Struct, error)
	PreparePool(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	RemoveHost(ctx context.Context, in *wrapperspb.UInt64Value, opts ...grpc.CallOption) (*emptypb.Empty, error)
}

type adminClient struct {
	cc grpc.ClientConnInterface
}

func NewAdminClient(cc grpc.ClientConnInterface) AdminClient {
	return &adminClient{cc}
}

func (c *adminClient) PrepareCluster(ctx context.Context, in *wrapperspb.UInt64Value, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, prepareClusterFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *adminClient) PreparePool(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, preparePoolFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *adminClient) RemoveHost(ctx context.Context, in *wrapperspb.UInt64Value, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, removeHostFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
