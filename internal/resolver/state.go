package resolver

import (
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/anvil-platform/depot/internal/coords"
	"github.com/anvil-platform/depot/internal/graph"
	"github.com/anvil-platform/depot/internal/metrics"
	"github.com/anvil-platform/depot/internal/pom"
)

// managementTable maps group-artifact keys to managed versions.
type managementTable map[string]string

// runState is the cache for a single Resolve call. It is created per call and
// passed explicitly, so an Engine holds no mutable state between calls.
type runState struct {
	descriptors     map[string]*pom.Descriptor
	descriptorErrs  map[string]error
	effective       map[string]*pom.Descriptor
	importing       sets.Set[string]
	metadata        map[string]*pom.Metadata
	metadataErrs    map[string]error
	resolved        map[string]string
	processed       sets.Set[string]
	depth           map[string]int
	management      managementTable
	graph           *graph.DependencyGraph
	accumulated     []coords.Dependency
	errors          []error
	reported        sets.Set[string]
	cycles          []graph.Cycle
	iterationsLimit bool
}

func newRunState() *runState {
	return &runState{
		descriptors:    map[string]*pom.Descriptor{},
		descriptorErrs: map[string]error{},
		effective:      map[string]*pom.Descriptor{},
		importing:      sets.New[string](),
		metadata:       map[string]*pom.Metadata{},
		metadataErrs:   map[string]error{},
		resolved:       map[string]string{},
		processed:      sets.New[string](),
		reported:       sets.New[string](),
		depth:          map[string]int{},
		management:     managementTable{},
		graph:          graph.New(),
	}
}

func (st *runState) fail(phase Phase, c coords.Coordinate, err error) {
	metrics.ResolutionErrorsTotal.WithLabelValues(string(phase)).Inc()
	st.errors = append(st.errors, &DependencyError{Coordinate: c, Phase: phase, Err: err})
}

// failOnce records a failure the first time key fails in this run. A child
// declared by several descriptors is reported once.
func (st *runState) failOnce(key string, phase Phase, c coords.Coordinate, err error) {
	if st.reported.Has(key) {
		return
	}
	st.reported.Insert(key)
	st.fail(phase, c, err)
}
