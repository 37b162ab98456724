package resolver

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/anvil-platform/depot/internal/coords"
)

type exclusionRules struct {
	groups   sets.Set[string]
	keys     []glob.Glob
	artifact []glob.Glob
}

func newExclusionRules(groups, patterns []string) (*exclusionRules, error) {
	x := &exclusionRules{groups: sets.New[string]()}
	for _, g := range groups {
		if g = strings.TrimSpace(g); g != "" {
			x.groups.Insert(g)
		}
	}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile exclusion pattern %q: %w", p, err)
		}
		if strings.Contains(p, ":") {
			x.keys = append(x.keys, g)
		} else {
			x.artifact = append(x.artifact, g)
		}
	}
	return x, nil
}

func (x *exclusionRules) Match(c coords.Coordinate) bool {
	if x.groups.Has(c.GroupID) {
		return true
	}
	key := c.Key()
	for _, g := range x.keys {
		if g.Match(key) {
			return true
		}
	}
	for _, g := range x.artifact {
		if g.Match(c.ArtifactID) {
			return true
		}
	}
	return false
}
