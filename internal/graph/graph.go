// Package graph records the dependency edges discovered during resolution.
//
// Nodes are identified by full coordinate strings, so two versions of one
// artifact are distinct nodes.
package graph

import (
	"fmt"
	"io"
	"strings"
)

type Node struct {
	ID    string
	Depth int
}

type Edge struct {
	From string
	To   string
}

// Cycle is a closed path; the first and last entries are the same node.
type Cycle []string

func (c Cycle) String() string {
	return strings.Join(c, " -> ")
}

type DependencyGraph struct {
	nodes    map[string]*Node
	order    []string
	children map[string][]string
	edges    map[Edge]struct{}
}

func New() *DependencyGraph {
	return &DependencyGraph{
		nodes:    map[string]*Node{},
		children: map[string][]string{},
		edges:    map[Edge]struct{}{},
	}
}

// AddNode records id at depth, keeping the shallowest depth seen.
func (g *DependencyGraph) AddNode(id string, depth int) {
	if n, ok := g.nodes[id]; ok {
		if depth < n.Depth {
			n.Depth = depth
		}
		return
	}
	g.nodes[id] = &Node{ID: id, Depth: depth}
	g.order = append(g.order, id)
}

// AddEdge records from -> to. If the edge closes a cycle, the cycle is returned.
func (g *DependencyGraph) AddEdge(from, to string) (Cycle, bool) {
	e := Edge{From: from, To: to}
	if _, ok := g.edges[e]; ok {
		return nil, false
	}
	g.edges[e] = struct{}{}
	g.children[from] = append(g.children[from], to)

	if from == to {
		return Cycle{from, to}, true
	}
	path := g.path(to, from)
	if path == nil {
		return nil, false
	}
	return append(Cycle{from}, path...), true
}

// path returns the shortest path start..end following edges, or nil.
func (g *DependencyGraph) path(start, end string) []string {
	prev := map[string]string{start: ""}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == end {
			var out []string
			for n := end; n != ""; n = prev[n] {
				out = append([]string{n}, out...)
			}
			return out
		}
		for _, next := range g.children[cur] {
			if _, seen := prev[next]; seen {
				continue
			}
			prev[next] = cur
			queue = append(queue, next)
		}
	}
	return nil
}

func (g *DependencyGraph) Children(id string) []string {
	return append([]string(nil), g.children[id]...)
}

func (g *DependencyGraph) Depth(id string) (int, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return 0, false
	}
	return n.Depth, true
}

// Nodes returns nodes in discovery order.
func (g *DependencyGraph) Nodes() []Node {
	out := make([]Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, *g.nodes[id])
	}
	return out
}

func (g *DependencyGraph) Edges() []Edge {
	var out []Edge
	for _, from := range g.order {
		for _, to := range g.children[from] {
			out = append(out, Edge{From: from, To: to})
		}
	}
	return out
}

// Roots returns the depth-0 nodes in discovery order.
func (g *DependencyGraph) Roots() []string {
	var out []string
	for _, id := range g.order {
		if g.nodes[id].Depth == 0 {
			out = append(out, id)
		}
	}
	return out
}

// Render writes an indented tree rooted at the depth-0 nodes. Nodes already
// printed are marked and not expanded again.
func (g *DependencyGraph) Render(w io.Writer) error {
	seen := map[string]bool{}
	var walk func(id string, indent int) error
	walk = func(id string, indent int) error {
		suffix := ""
		if seen[id] {
			suffix = " (*)"
		}
		if _, err := fmt.Fprintf(w, "%s%s%s\n", strings.Repeat("  ", indent), id, suffix); err != nil {
			return err
		}
		if seen[id] {
			return nil
		}
		seen[id] = true
		for _, child := range g.children[id] {
			if err := walk(child, indent+1); err != nil {
				return err
			}
		}
		return nil
	}
	for _, root := range g.Roots() {
		if err := walk(root, 0); err != nil {
			return err
		}
	}
	return nil
}
