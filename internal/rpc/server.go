package rpc

import (
	"context"

	"github.com/go-logr/logr"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/anvil-platform/depot/internal/coords"
	"github.com/anvil-platform/depot/internal/resolver"
)

// Server implements ResolverServer on top of a shared Fetcher. Each call gets
// an engine built from the base options plus the request's overrides.
type Server struct {
	fetcher resolver.Fetcher
	opts    resolver.Options
	log     logr.Logger
}

var _ ResolverServer = (*Server)(nil)

func NewServer(fetcher resolver.Fetcher, opts resolver.Options, log logr.Logger) *Server {
	return &Server{fetcher: fetcher, opts: opts, log: log.WithName("rpc")}
}

func (s *Server) Resolve(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := RequestFromStruct(in)
	if len(req.Coordinates) == 0 {
		return nil, status.Error(codes.InvalidArgument, "coordinates are required")
	}
	if req.MaxDepth < 0 {
		return nil, status.Error(codes.InvalidArgument, "maxDepth must not be negative")
	}
	roots := make([]coords.Dependency, 0, len(req.Coordinates))
	for _, raw := range req.Coordinates {
		c, err := coords.Parse(raw)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		roots = append(roots, coords.NewDependency(c))
	}

	opts := s.opts
	opts.ExcludeGroups = append(append([]string(nil), s.opts.ExcludeGroups...), req.ExcludeGroups...)
	if req.MaxDepth > 0 {
		opts.MaxDepth = req.MaxDepth
	}
	engine, err := resolver.NewEngine(s.fetcher, opts)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	log := s.log.WithValues("roots", len(roots))
	res, err := engine.Resolve(logr.NewContext(ctx, log), roots)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if ctx.Err() != nil {
		return nil, status.FromContextError(ctx.Err()).Err()
	}

	resp := Response{Errors: res.ErrorMessages()}
	for _, rd := range res.Resolved {
		resp.Artifacts = append(resp.Artifacts, Artifact{Coordinate: rd.Dependency.String(), Path: rd.Path})
	}
	log.Info("resolve served", "artifacts", len(resp.Artifacts), "errors", len(resp.Errors))
	return resp.Struct()
}
