package relocation

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/anvil-platform/depot/internal/coords"
	"github.com/anvil-platform/depot/internal/repository"
)

// CacheResolver locates relocated artifacts in the local cache and decides
// whether they still match a rule set.
type CacheResolver struct {
	cacheDir string
}

func NewCacheResolver(cacheDir string) *CacheResolver {
	return &CacheResolver{cacheDir: cacheDir}
}

// OutputPath is where the relocated copy of c lives.
func (r *CacheResolver) OutputPath(c coords.Coordinate) string {
	return repository.LocalPath(r.cacheDir, repository.RelocatedArtifactPath(c))
}

// MarkerPath is the file recording the rules c was last relocated with.
func (r *CacheResolver) MarkerPath(c coords.Coordinate) string {
	return repository.LocalPath(r.cacheDir, repository.RelocationMarkerPath(c))
}

// Stale reports whether c must be relocated again for rules. A missing marker,
// a marker recording different rules, or a missing output all count as stale.
func (r *CacheResolver) Stale(c coords.Coordinate, rules []Rule) (bool, error) {
	recorded, err := os.ReadFile(r.MarkerPath(c))
	if errors.Is(err, fs.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("read relocation marker: %w", err)
	}
	if string(recorded) != Serialize(rules) {
		return true, nil
	}
	info, err := os.Stat(r.OutputPath(c))
	if errors.Is(err, fs.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat relocated artifact: %w", err)
	}
	return !info.Mode().IsRegular() || info.Size() == 0, nil
}

// Record persists the serialization of rules as c's marker. The marker is
// written to a temporary file and renamed into place.
func (r *CacheResolver) Record(c coords.Coordinate, rules []Rule) error {
	marker := r.MarkerPath(c)
	tmp := marker + ".part"
	if err := os.WriteFile(tmp, []byte(Serialize(rules)), 0o644); err != nil {
		return fmt.Errorf("write relocation marker: %w", err)
	}
	if err := os.Rename(tmp, marker); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write relocation marker: %w", err)
	}
	return nil
}
