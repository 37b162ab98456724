package resolver

import (
	"github.com/anvil-platform/depot/internal/semver"
)

// Collector keeps one resolved artifact per group-artifact key (and classifier),
// preferring the highest version. Discovery itself tracks exact coordinates;
// callers that need a conflict-free set run the result through a Collector.
type Collector struct {
	byKey map[string]ResolvedDependency
	order []string
}

func NewCollector() *Collector {
	return &Collector{byKey: map[string]ResolvedDependency{}}
}

// Add merges items into the collector.
func (c *Collector) Add(items ...ResolvedDependency) {
	for _, item := range items {
		key := item.Dependency.Key()
		if item.Dependency.Classifier != "" {
			key += ":" + item.Dependency.Classifier
		}
		existing, ok := c.byKey[key]
		if !ok {
			c.byKey[key] = item
			c.order = append(c.order, key)
			continue
		}
		if semver.CompareStrings(item.Dependency.Version, existing.Dependency.Version) > 0 {
			c.byKey[key] = item
		}
	}
}

// Items returns the collected artifacts in first-seen order.
func (c *Collector) Items() []ResolvedDependency {
	out := make([]ResolvedDependency, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.byKey[key])
	}
	return out
}
