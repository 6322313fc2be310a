package domain

import (
	"slices"
	"strings"

	"go.trai.ch/zerr"
)

// Graph is a dependency graph over resolved packages. Nodes are keyed by
// package name in a flat map; edges are build-time dependency relations.
type Graph struct {
	nodes map[string]GraphNode
}

// GraphNode is one resolved (name, version) pair with its build-time edges.
type GraphNode struct {
	Name    string
	Version string
	Deps    []string
}

// NewGraph creates an empty Graph.
func NewGraph() *Graph {
	return &Graph{nodes: make(map[string]GraphNode)}
}

// AddNode adds a resolved package to the graph.
// It returns an error if the name is already present.
func (g *Graph) AddNode(name, version string, deps []string) error {
	if _, exists := g.nodes[name]; exists {
		return zerr.With(ErrDuplicateNode, "package", name)
	}
	g.nodes[name] = GraphNode{Name: name, Version: version, Deps: slices.Clone(deps)}
	return nil
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Node returns the node for a name, if present.
func (g *Graph) Node(name string) (GraphNode, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Dependents returns the names of nodes that directly depend on name,
// in ascending order.
func (g *Graph) Dependents(name string) []string {
	var out []string
	for _, n := range g.nodes {
		if slices.Contains(n.Deps, name) {
			out = append(out, n.Name)
		}
	}
	slices.Sort(out)
	return out
}

const (
	colorWhite = 0 // unvisited
	colorGray  = 1 // on the current DFS path
	colorBlack = 2 // fully explored
)

// Validate checks that every edge points at a known node and that the graph
// is acyclic, using a three-coloring DFS. A gray node reached again closes a
// cycle; the error carries the full cycle path in discovery order.
func (g *Graph) Validate() error {
	color := make(map[string]int, len(g.nodes))
	var path []string

	var visit func(name string) error
	visit = func(name string) error {
		color[name] = colorGray
		path = append(path, name)

		node := g.nodes[name]
		for _, dep := range node.Deps {
			if _, exists := g.nodes[dep]; !exists {
				return zerr.With(zerr.With(ErrUnknownPackage, "package", dep), "required_by", name)
			}
			switch color[dep] {
			case colorGray:
				return cycleError(path, dep)
			case colorWhite:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		color[name] = colorBlack
		path = path[:len(path)-1]
		return nil
	}

	for _, name := range g.sortedNames() {
		if color[name] == colorWhite {
			if err := visit(name); err != nil {
				return err
			}
		}
	}
	return nil
}

// cycleError reports the closed cycle, not just its endpoints.
func cycleError(path []string, dep string) error {
	start := slices.Index(path, dep)
	cycle := append(slices.Clone(path[start:]), dep)
	return zerr.With(ErrCycleDetected, "cycle", strings.Join(cycle, " -> "))
}

// Plan produces the deterministic build order: repeated removal of
// zero-indegree nodes, ties broken by ascending name. Identical graphs always
// yield identical plans; the lock file and cache keys depend on this.
func (g *Graph) Plan() (*BuildPlan, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	indegree := make(map[string]int, len(g.nodes))
	dependents := make(map[string][]string, len(g.nodes))
	for name, node := range g.nodes {
		if _, ok := indegree[name]; !ok {
			indegree[name] = 0
		}
		for _, dep := range node.Deps {
			indegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var ready []string
	for _, name := range g.sortedNames() {
		if indegree[name] == 0 {
			ready = append(ready, name)
		}
	}

	order := make([]PlanNode, 0, len(g.nodes))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]

		node := g.nodes[name]
		order = append(order, PlanNode{Name: node.Name, Version: node.Version, Deps: slices.Clone(node.Deps)})

		for _, dependent := range dependents[name] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				at, _ := slices.BinarySearch(ready, dependent)
				ready = slices.Insert(ready, at, dependent)
			}
		}
	}

	return &BuildPlan{Nodes: order}, nil
}

func (g *Graph) sortedNames() []string {
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
