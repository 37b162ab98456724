package resolver

import (
	"fmt"

	"github.com/anvil-platform/depot/internal/coords"
	"github.com/anvil-platform/depot/internal/graph"
)

const (
	DefaultMaxIterations  = 50
	DefaultMaxParentDepth = 10
)

// Options tune a resolution Engine.
type Options struct {
	// MaxDepth limits how many hops from a root are followed. 0 means unlimited;
	// roots are always resolved.
	MaxDepth int
	// MaxIterations bounds the number of discovery batches.
	MaxIterations int
	// MaxParentDepth bounds how many parent descriptors are merged.
	MaxParentDepth int

	IncludeOptional bool
	IncludeTest     bool

	// ExcludeGroups are group ids that are never resolved.
	ExcludeGroups []string
	// ExcludeArtifacts are wildcard patterns matched against "group:artifact",
	// or against the artifact id alone when the pattern has no colon.
	ExcludeArtifacts []string

	// DownloadConcurrency bounds parallel artifact downloads. 1 downloads sequentially.
	DownloadConcurrency int

	// Relocator, when set, is applied to every downloaded binary.
	Relocator Relocator
}

func (o Options) withDefaults() Options {
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.MaxParentDepth <= 0 {
		o.MaxParentDepth = DefaultMaxParentDepth
	}
	if o.DownloadConcurrency <= 0 {
		o.DownloadConcurrency = 1
	}
	return o
}

// ResolvedDependency pairs a dependency with the artifact file it resolved to.
type ResolvedDependency struct {
	Dependency coords.Dependency
	Path       string
}

// Phase names the resolution step a DependencyError happened in.
type Phase string

const (
	PhaseDiscovery  Phase = "discovery"
	PhaseDownload   Phase = "download"
	PhaseRelocation Phase = "relocation"
)

// DependencyError is a failure scoped to one coordinate.
type DependencyError struct {
	Coordinate coords.Coordinate
	Phase      Phase
	Err        error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Phase, e.Coordinate, e.Err)
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}

// Result is a partial-failure container: Errors never invalidate Resolved.
type Result struct {
	Resolved []ResolvedDependency
	Errors   []error
	// Cycles lists each dependency cycle found during discovery.
	Cycles []graph.Cycle
	// Truncated is set when discovery stopped at the iteration limit.
	Truncated bool
	Graph     *graph.DependencyGraph
}

// OK reports whether every dependency resolved.
func (r Result) OK() bool {
	return len(r.Errors) == 0
}

// ErrorMessages renders Errors as strings.
func (r Result) ErrorMessages() []string {
	out := make([]string, 0, len(r.Errors))
	for _, err := range r.Errors {
		out = append(out, err.Error())
	}
	return out
}

// Paths returns the local artifact paths in resolution order.
func (r Result) Paths() []string {
	out := make([]string, 0, len(r.Resolved))
	for _, rd := range r.Resolved {
		out = append(out, rd.Path)
	}
	return out
}
