package resolver

import (
	"context"
	"fmt"
	"os"

	"github.com/anvil-platform/depot/internal/coords"
	"github.com/anvil-platform/depot/internal/pom"
)

// usableVersion reports whether v is a concrete version string.
func usableVersion(v string) bool {
	return v != "" && !pom.IsUnresolved(v)
}

// resolveVersion picks a version for dep, consulting in order the enclosing
// descriptor's management table, the management accumulated across the run,
// versions resolved earlier in the run, and finally repository metadata.
func (e *Engine) resolveVersion(ctx context.Context, st *runState, dep coords.Dependency, local, global managementTable) (string, error) {
	key := dep.Key()
	if v := local[key]; usableVersion(v) {
		return v, nil
	}
	if v := global[key]; usableVersion(v) {
		return v, nil
	}
	if v := st.resolved[key]; v != "" {
		return v, nil
	}

	md, err := e.metadata(ctx, st, dep)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrVersionUnresolved, key, err)
	}
	v, ok := md.PreferredVersion()
	if !ok {
		return "", fmt.Errorf("%w: %s: metadata lists no versions", ErrVersionUnresolved, key)
	}
	st.resolved[key] = v
	return v, nil
}

func (e *Engine) metadata(ctx context.Context, st *runState, dep coords.Dependency) (*pom.Metadata, error) {
	key := dep.Key()
	if md, ok := st.metadata[key]; ok {
		return md, nil
	}
	if err, ok := st.metadataErrs[key]; ok {
		return nil, err
	}
	md, err := e.loadMetadata(ctx, dep)
	if err != nil {
		st.metadataErrs[key] = err
		return nil, err
	}
	st.metadata[key] = md
	return md, nil
}

func (e *Engine) loadMetadata(ctx context.Context, dep coords.Dependency) (*pom.Metadata, error) {
	path, err := e.fetcher.Metadata(ctx, dep)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metadata %s: %w", path, err)
	}
	return pom.ParseMetadata(data)
}
