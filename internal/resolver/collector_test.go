package resolver

import (
	"testing"

	"github.com/anvil-platform/depot/internal/coords"
)

func resolvedAt(raw, path string) ResolvedDependency {
	return ResolvedDependency{Dependency: coords.NewDependency(coords.MustParse(raw)), Path: path}
}

func TestCollector_HighestVersionWins(t *testing.T) {
	c := NewCollector()
	c.Add(
		resolvedAt("g:a:1.2.0", "a-1.2.0"),
		resolvedAt("g:b:1.0", "b-1.0"),
		resolvedAt("g:a:1.10.0", "a-1.10.0"),
		resolvedAt("g:a:1.9.0", "a-1.9.0"),
		resolvedAt("g:a:1.0:sources", "a-sources"),
	)

	items := c.Items()
	if len(items) != 3 {
		t.Fatalf("items = %v", items)
	}
	if items[0].Path != "a-1.10.0" {
		t.Fatalf("g:a resolved to %s, want 1.10.0", items[0].Path)
	}
	if items[1].Path != "b-1.0" || items[2].Path != "a-sources" {
		t.Fatalf("order or classifier handling wrong: %v", items)
	}
}
