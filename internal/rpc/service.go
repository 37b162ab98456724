// Package rpc exposes resolution over gRPC.
//
// Messages are google.protobuf.Struct values, so the service needs no
// generated code:
//
//	request:  {"coordinates": ["g:a:v", ...], "excludeGroups": [...], "maxDepth": n}
//	response: {"artifacts": [{"coordinate": "g:a:v", "path": "..."}], "errors": [...]}
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName   = "depot.v1.Resolver"
	ResolveMethod = "/" + ServiceName + "/Resolve"
)

// ResolverServer is the server API for the depot.v1.Resolver service.
type ResolverServer interface {
	Resolve(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes depot.v1.Resolver for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ResolverServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Resolve", Handler: resolveHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "depot/v1/resolver.proto",
}

// RegisterResolverServer registers srv with s.
func RegisterResolverServer(s grpc.ServiceRegistrar, srv ResolverServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func resolveHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ResolverServer).Resolve(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ResolveMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ResolverServer).Resolve(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Client calls depot.v1.Resolver.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Resolve sends req and decodes the response.
func (c *Client) Resolve(ctx context.Context, req Request, opts ...grpc.CallOption) (*Response, error) {
	in, err := req.Struct()
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ResolveMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return ResponseFromStruct(out), nil
}
