package resolver

import (
	"context"

	"github.com/anvil-platform/depot/internal/coords"
)

// Resolver turns root dependencies into the transitively closed set of local artifacts.
//
// A returned error means the input itself was malformed. Per-dependency
// failures are reported in Result.Errors alongside everything that did resolve.
type Resolver interface {
	Resolve(ctx context.Context, roots []coords.Dependency) (Result, error)
}

// Fetcher places repository files into the local cache and returns their paths.
type Fetcher interface {
	Artifact(ctx context.Context, dep coords.Dependency) (string, error)
	Descriptor(ctx context.Context, dep coords.Dependency) (string, error)
	Metadata(ctx context.Context, dep coords.Dependency) (string, error)
}

// Relocator rewrites a downloaded artifact and returns the path to use instead.
type Relocator interface {
	Relocate(ctx context.Context, c coords.Coordinate, path string) (string, error)
}
