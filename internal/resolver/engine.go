package resolver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/anvil-platform/depot/internal/coords"
	"github.com/anvil-platform/depot/internal/metrics"
	"github.com/anvil-platform/depot/internal/pom"
)

// Engine is the default Resolver.
//
// Each Resolve call works on its own run state, so one Engine may serve
// concurrent calls. The shared local cache is handled by the Fetcher.
type Engine struct {
	fetcher    Fetcher
	opts       Options
	readOpts   pom.ReadOptions
	exclusions *exclusionRules
}

var _ Resolver = (*Engine)(nil)

// NewEngine creates an Engine over fetcher.
func NewEngine(fetcher Fetcher, opts Options) (*Engine, error) {
	opts = opts.withDefaults()
	x, err := newExclusionRules(opts.ExcludeGroups, opts.ExcludeArtifacts)
	if err != nil {
		return nil, err
	}
	return &Engine{
		fetcher:    fetcher,
		opts:       opts,
		readOpts:   pom.ReadOptions{IncludeOptional: opts.IncludeOptional, IncludeTest: opts.IncludeTest},
		exclusions: x,
	}, nil
}

// Resolve discovers the transitive closure of roots and downloads every artifact in it.
func (e *Engine) Resolve(ctx context.Context, roots []coords.Dependency) (Result, error) {
	for _, r := range roots {
		if err := r.Validate(); err != nil {
			return Result{}, err
		}
	}

	start := time.Now()
	defer func() { metrics.ResolutionDuration.Observe(time.Since(start).Seconds()) }()

	log := logr.FromContextOrDiscard(ctx).WithName("resolver")
	ctx = logr.NewContext(ctx, log)
	st := newRunState()

	e.discover(ctx, st, roots)
	resolved := e.download(ctx, st)

	metrics.ResolvedArtifacts.Set(float64(len(resolved)))
	log.Info("resolution finished", "roots", len(roots), "resolved", len(resolved), "errors", len(st.errors), "cycles", len(st.cycles))
	return Result{
		Resolved:  resolved,
		Errors:    st.errors,
		Cycles:    st.cycles,
		Truncated: st.iterationsLimit,
		Graph:     st.graph,
	}, nil
}

// discover runs batch-by-batch graph discovery, filling st.accumulated.
func (e *Engine) discover(ctx context.Context, st *runState, roots []coords.Dependency) {
	log := logr.FromContextOrDiscard(ctx)

	queue := make([]coords.Dependency, 0, len(roots))
	for _, r := range roots {
		if r.Scope == "" {
			r.Scope = coords.ScopeCompile
		}
		if r.Type == "" {
			r.Type = "jar"
		}
		key := r.String()
		st.depth[key] = 0
		if usableVersion(r.Version) {
			st.graph.AddNode(key, 0)
		}
		queue = append(queue, r)
	}

	for iteration := 0; len(queue) > 0; iteration++ {
		if iteration >= e.opts.MaxIterations {
			st.iterationsLimit = true
			err := fmt.Errorf("%w: stopped after %d iterations with %d coordinates pending, likely a dependency cycle", ErrIterationLimit, iteration, len(queue))
			st.errors = append(st.errors, err)
			metrics.ResolutionErrorsTotal.WithLabelValues(string(PhaseDiscovery)).Inc()
			log.Error(err, "aborting discovery", "pending", len(queue))
			return
		}
		batch := queue
		queue = nil
		log.V(1).Info("processing batch", "iteration", iteration, "size", len(batch))
		for _, dep := range batch {
			queue = append(queue, e.process(ctx, st, dep)...)
		}
	}
}

// process expands one coordinate and returns the newly discovered dependencies.
func (e *Engine) process(ctx context.Context, st *runState, dep coords.Dependency) []coords.Dependency {
	key := dep.String()
	if st.processed.Has(key) {
		return nil
	}
	log := logr.FromContextOrDiscard(ctx).WithValues("coordinate", key)

	if e.exclusions.Match(dep.Coordinate) {
		log.V(1).Info("excluded")
		st.processed.Insert(key)
		return nil
	}
	depth := st.depth[key]
	if e.opts.MaxDepth > 0 && depth > e.opts.MaxDepth {
		log.V(1).Info("beyond max depth", "depth", depth)
		return nil
	}

	if !usableVersion(dep.Version) {
		v, err := e.resolveVersion(ctx, st, dep, nil, st.management)
		st.processed.Insert(key)
		if err != nil {
			st.failOnce(dep.Key(), PhaseDiscovery, dep.Coordinate, err)
			return nil
		}
		dep = dep.WithVersion(v)
		if err := dep.Validate(); err != nil {
			st.failOnce(dep.String(), PhaseDiscovery, dep.Coordinate, err)
			return nil
		}
		key = dep.String()
		if st.processed.Has(key) {
			return nil
		}
		if _, ok := st.depth[key]; !ok {
			st.depth[key] = depth
		}
		st.graph.AddNode(key, depth)
		log = log.WithValues("version", v)
	}

	st.processed.Insert(key)
	st.accumulated = append(st.accumulated, dep)

	desc, err := e.effectiveDescriptor(ctx, st, dep, st.management)
	if err != nil {
		log.Info("no usable descriptor, treating as leaf", "error", err.Error())
		return nil
	}

	var next []coords.Dependency
	for _, child := range desc.Dependencies {
		if e.exclusions.Match(child.Coordinate) || !pom.Included(child, e.readOpts) {
			continue
		}
		if err := child.Validate(); err != nil {
			st.failOnce(child.String(), PhaseDiscovery, child.Coordinate, err)
			continue
		}
		if !usableVersion(child.Version) {
			v, err := e.resolveVersion(ctx, st, child, desc.Management, st.management)
			if err != nil {
				st.failOnce(child.Key(), PhaseDiscovery, child.Coordinate, err)
				continue
			}
			child = child.WithVersion(v)
			if err := child.Validate(); err != nil {
				st.failOnce(child.String(), PhaseDiscovery, child.Coordinate, err)
				continue
			}
		}
		if child.Repository == "" {
			child.Repository = dep.Repository
		}

		childKey := child.String()
		st.graph.AddNode(childKey, depth+1)
		if cycle, ok := st.graph.AddEdge(key, childKey); ok {
			log.Info("dependency cycle detected", "cycle", cycle.String())
			st.cycles = append(st.cycles, cycle)
		}
		if st.processed.Has(childKey) {
			continue
		}
		if _, ok := st.depth[childKey]; !ok {
			st.depth[childKey] = depth + 1
		}
		next = append(next, child)
	}
	return next
}

// download fetches every accumulated coordinate. Failures are recorded per
// coordinate and never remove siblings from the result.
func (e *Engine) download(ctx context.Context, st *runState) []ResolvedDependency {
	slots := make([]*ResolvedDependency, len(st.accumulated))
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(e.opts.DownloadConcurrency)

	for i, dep := range st.accumulated {
		if dep.IsBom {
			continue
		}
		g.Go(func() error {
			phase, path, err := e.fetchOne(ctx, dep)
			if err != nil {
				mu.Lock()
				st.fail(phase, dep.Coordinate, err)
				mu.Unlock()
				return nil
			}
			slots[i] = &ResolvedDependency{Dependency: dep, Path: path}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]ResolvedDependency, 0, len(slots))
	for _, s := range slots {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out
}

func (e *Engine) fetchOne(ctx context.Context, dep coords.Dependency) (Phase, string, error) {
	if dep.IsPom() {
		path, err := e.fetcher.Descriptor(ctx, dep)
		return PhaseDownload, path, err
	}
	path, err := e.fetcher.Artifact(ctx, dep)
	if err != nil {
		return PhaseDownload, "", err
	}
	if e.opts.Relocator == nil {
		return PhaseDownload, path, nil
	}
	relocated, err := e.opts.Relocator.Relocate(ctx, dep.Coordinate, path)
	if err != nil {
		return PhaseRelocation, "", err
	}
	return PhaseRelocation, relocated, nil
}
