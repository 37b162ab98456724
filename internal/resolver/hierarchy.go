package resolver

import (
	"context"
	"fmt"
	"os"

	"github.com/go-logr/logr"

	"github.com/anvil-platform/depot/internal/coords"
	"github.com/anvil-platform/depot/internal/pom"
)

// descriptor fetches and parses the descriptor of c, caching both successes and
// failures for the rest of the run.
func (e *Engine) descriptor(ctx context.Context, st *runState, dep coords.Dependency) (*pom.Descriptor, error) {
	key := coords.New(dep.GroupID, dep.ArtifactID, dep.Version, "").String()
	if d, ok := st.descriptors[key]; ok {
		return d, nil
	}
	if err, ok := st.descriptorErrs[key]; ok {
		return nil, err
	}
	d, err := e.loadDescriptor(ctx, dep)
	if err != nil {
		st.descriptorErrs[key] = err
		return nil, err
	}
	st.descriptors[key] = d
	return d, nil
}

func (e *Engine) loadDescriptor(ctx context.Context, dep coords.Dependency) (*pom.Descriptor, error) {
	path, err := e.fetcher.Descriptor(ctx, dep)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read descriptor %s: %w", path, err)
	}
	d, err := pom.Parse(data, e.readOpts)
	if err != nil {
		return nil, fmt.Errorf("parse descriptor %s: %w", dep, err)
	}
	return d, nil
}

// effectiveDescriptor returns dep's descriptor with its parent hierarchy and
// imported bills of materials merged in. The merged management entries are
// added to acc, the run-wide management accumulator.
func (e *Engine) effectiveDescriptor(ctx context.Context, st *runState, dep coords.Dependency, acc managementTable) (*pom.Descriptor, error) {
	key := coords.New(dep.GroupID, dep.ArtifactID, dep.Version, "").String()
	if d, ok := st.effective[key]; ok {
		return d, nil
	}
	log := logr.FromContextOrDiscard(ctx).WithValues("coordinate", key)

	leaf, err := e.descriptor(ctx, st, dep)
	if err != nil {
		return nil, err
	}
	hierarchy := e.parentHierarchy(ctx, st, log, leaf, dep.Repository)
	merged := mergeHierarchy(hierarchy)
	merged.Interpolate(merged.Properties)

	st.importing.Insert(key)
	defer st.importing.Delete(key)
	for _, imp := range importsOf(hierarchy, merged.Properties) {
		if !usableVersion(imp.Version) {
			log.Info("skipping bill of materials without a version", "bom", imp.String())
			continue
		}
		if st.importing.Has(imp.String()) {
			continue
		}
		imp.Repository = dep.Repository
		bom, err := e.effectiveDescriptor(ctx, st, imp, acc)
		if err != nil {
			log.Info("unable to load imported bill of materials", "bom", imp.String(), "error", err.Error())
			continue
		}
		for k, v := range bom.Management {
			if _, ok := merged.Management[k]; !ok {
				merged.Management[k] = v
			}
		}
	}

	accumulate(acc, merged.Management)
	st.effective[key] = merged
	return merged, nil
}

// parentHierarchy returns leaf followed by its ancestors, nearest first. A parent
// that cannot be fetched ends the climb without failing.
func (e *Engine) parentHierarchy(ctx context.Context, st *runState, log logr.Logger, leaf *pom.Descriptor, repo string) []*pom.Descriptor {
	hierarchy := []*pom.Descriptor{leaf}
	for cur := leaf; cur.Parent != nil; {
		if len(hierarchy)-1 >= e.opts.MaxParentDepth {
			log.Info("parent hierarchy limit reached, ignoring further ancestors", "limit", e.opts.MaxParentDepth, "next", cur.Parent.String())
			break
		}
		parentDep := cur.Parent.Dependency()
		parentDep.Repository = repo
		parent, err := e.descriptor(ctx, st, parentDep)
		if err != nil {
			log.Info("unable to load parent descriptor", "parent", cur.Parent.String(), "error", err.Error())
			break
		}
		hierarchy = append(hierarchy, parent)
		cur = parent
	}
	return hierarchy
}

// mergeHierarchy folds a leaf-first hierarchy into a new descriptor.
//
// Levels are visited from the leaf outwards with set-if-absent, so the value
// nearest to the leaf wins for both properties and management entries. The
// leaf's own management entries are always written.
func mergeHierarchy(hierarchy []*pom.Descriptor) *pom.Descriptor {
	leaf := hierarchy[0]
	merged := &pom.Descriptor{
		GroupID:      leaf.GroupID,
		ArtifactID:   leaf.ArtifactID,
		Version:      leaf.Version,
		Packaging:    leaf.Packaging,
		Parent:       leaf.Parent,
		Properties:   map[string]string{},
		Management:   map[string]string{},
		Dependencies: append([]coords.Dependency(nil), leaf.Dependencies...),
	}
	for i, level := range hierarchy {
		for k, v := range level.Properties {
			if _, ok := merged.Properties[k]; !ok && v != "" {
				merged.Properties[k] = v
			}
		}
		for k, v := range level.Management {
			if i == 0 {
				merged.Management[k] = v
				continue
			}
			if _, ok := merged.Management[k]; !ok {
				merged.Management[k] = v
			}
		}
	}
	return merged
}

// importsOf collects bill-of-materials imports from every level, nearest first,
// resolved against props.
func importsOf(hierarchy []*pom.Descriptor, props map[string]string) []coords.Dependency {
	var out []coords.Dependency
	for _, level := range hierarchy {
		for _, imp := range level.Imports {
			out = append(out, coords.Dependency{
				Coordinate: coords.New(
					pom.Interpolate(imp.GroupID, props),
					pom.Interpolate(imp.ArtifactID, props),
					pom.Interpolate(imp.Version, props),
					"",
				).AsBom(),
				Scope: imp.Scope,
				Type:  imp.Type,
			})
		}
	}
	return out
}

// accumulate adds entries to acc without replacing existing ones.
func accumulate(acc managementTable, entries map[string]string) {
	for k, v := range entries {
		if _, ok := acc[k]; !ok && usableVersion(v) {
			acc[k] = v
		}
	}
}
