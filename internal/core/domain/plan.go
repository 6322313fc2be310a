package domain

import "slices"

// PlanNode is one entry of a BuildPlan.
type PlanNode struct {
	Name    string
	Version string
	Deps    []string
}

// BuildPlan is the resolver's output: packages ordered so every build-time
// dependency precedes its dependents. Produced once per resolution and never
// mutated afterwards.
type BuildPlan struct {
	Nodes []PlanNode

	// Runtime lists runtime-only requirements of the planned packages,
	// recorded for image assembly but absent from the build order.
	Runtime []string
}

// Names returns the package names in plan order.
func (p *BuildPlan) Names() []string {
	names := make([]string, len(p.Nodes))
	for i, n := range p.Nodes {
		names[i] = n.Name
	}
	return names
}

// Lookup returns the plan node for a name.
func (p *BuildPlan) Lookup(name string) (PlanNode, bool) {
	for _, n := range p.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return PlanNode{}, false
}

// Position returns the index of a package in the plan, or -1.
func (p *BuildPlan) Position(name string) int {
	return slices.IndexFunc(p.Nodes, func(n PlanNode) bool { return n.Name == name })
}
