// Package resolver turns requested packages into a validated, ordered build plan.
package resolver

import (
	"slices"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/core/ports"
	"go.trai.ch/zerr"
)

// Resolution is the resolver's full output: the deterministic build plan plus
// the selected spec per package, which the orchestrator builds from.
type Resolution struct {
	Plan  *domain.BuildPlan
	Specs map[string]*domain.PackageSpec
}

// Resolver performs constraint solving over a package universe.
// It does no I/O beyond universe lookups and keeps no state between calls.
type Resolver struct {
	universe ports.PackageUniverse
}

// New creates a Resolver over the given universe.
func New(universe ports.PackageUniverse) *Resolver {
	return &Resolver{universe: universe}
}

// constraintRef is one contributing constraint with its source, kept so a
// conflict error can name every contributor.
type constraintRef struct {
	raw    string
	origin string
	c      *semver.Constraints
}

// Resolve expands the requested set transitively, merges version constraints
// per package name, selects the highest satisfying version for each, and
// produces the deterministic build plan. Runtime-only requirements are
// recorded on the plan without participating in ordering.
func (r *Resolver) Resolve(requested []domain.Requirement) (*Resolution, error) {
	constraints := make(map[string][]constraintRef)
	selected := make(map[string]*domain.PackageSpec)

	var queue []string
	push := func(name string) {
		if !slices.Contains(queue, name) {
			queue = append(queue, name)
		}
	}

	for _, req := range requested {
		ref, err := parseConstraint(req.Constraint, req.Origin)
		if err != nil {
			return nil, err
		}
		constraints[req.Name] = addConstraint(constraints[req.Name], ref)
		push(req.Name)
	}

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]

		// A retraction can empty a package's constraint set while it still
		// sits in the queue; nothing requires it anymore.
		if len(constraints[name]) == 0 {
			continue
		}

		spec, err := r.selectVersion(name, constraints[name])
		if err != nil {
			return nil, err
		}
		if prev, ok := selected[name]; ok {
			if prev.Version == spec.Version {
				continue
			}
			// The deselected version's contributed constraints no longer
			// apply; keeping them would report conflicts against a version
			// that left the resolution.
			retract(prev, constraints, selected, push)
		}
		selected[name] = spec

		origin := spec.Name + "@" + spec.Version
		for _, dep := range spec.Depends {
			ref, err := parseConstraint(dep.Constraint, origin)
			if err != nil {
				return nil, err
			}
			merged := addConstraint(constraints[dep.Name], ref)
			grown := len(merged) > len(constraints[dep.Name])
			constraints[dep.Name] = merged

			// A new constraint can invalidate an earlier selection, so the
			// dependency is re-evaluated whenever its constraint set grows.
			if _, ok := selected[dep.Name]; !ok || grown {
				push(dep.Name)
			}
		}
	}

	return buildResolution(selected)
}

// retract removes every constraint the deselected spec contributed and queues
// the packages it constrained for re-evaluation. A package left with no
// constraints at all is no longer required: it leaves the resolution and
// retracts its own contributions in turn.
func retract(prev *domain.PackageSpec, constraints map[string][]constraintRef, selected map[string]*domain.PackageSpec, push func(string)) {
	origin := prev.Name + "@" + prev.Version
	for _, dep := range prev.Depends {
		refs := dropOrigin(constraints[dep.Name], origin)
		constraints[dep.Name] = refs
		if len(refs) == 0 {
			delete(constraints, dep.Name)
			if sel, ok := selected[dep.Name]; ok {
				delete(selected, dep.Name)
				retract(sel, constraints, selected, push)
			}
			continue
		}
		push(dep.Name)
	}
}

func dropOrigin(refs []constraintRef, origin string) []constraintRef {
	out := refs[:0]
	for _, ref := range refs {
		if ref.origin != origin {
			out = append(out, ref)
		}
	}
	return out
}

// selectVersion picks the highest available version satisfying every merged
// constraint for the name.
func (r *Resolver) selectVersion(name string, refs []constraintRef) (*domain.PackageSpec, error) {
	specs, err := r.universe.Versions(name)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "universe lookup failed"), "package", name)
	}
	if len(specs) == 0 {
		return nil, zerr.With(zerr.With(domain.ErrUnknownPackage, "package", name), "required_by", origins(refs))
	}

	var best *domain.PackageSpec
	var bestVer *semver.Version
	for _, spec := range specs {
		v, err := semver.NewVersion(spec.Version)
		if err != nil {
			continue
		}
		if !satisfiesAll(v, refs) {
			continue
		}
		if bestVer == nil || v.GreaterThan(bestVer) {
			best, bestVer = spec, v
		}
	}

	if best == nil {
		err := zerr.With(domain.ErrVersionConflict, "package", name)
		return nil, zerr.With(err, "constraints", describeConstraints(refs))
	}
	return best, nil
}

func buildResolution(selected map[string]*domain.PackageSpec) (*Resolution, error) {
	g := domain.NewGraph()
	runtimeSet := make(map[string]struct{})

	names := make([]string, 0, len(selected))
	for name := range selected {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		spec := selected[name]
		deps := make([]string, 0, len(spec.Depends))
		for _, d := range spec.Depends {
			deps = append(deps, d.Name)
		}
		sort.Strings(deps)
		if err := g.AddNode(spec.Name, spec.Version, deps); err != nil {
			return nil, err
		}
		for _, req := range spec.Requires {
			runtimeSet[req] = struct{}{}
		}
	}

	plan, err := g.Plan()
	if err != nil {
		return nil, err
	}

	for name := range runtimeSet {
		plan.Runtime = append(plan.Runtime, name)
	}
	sort.Strings(plan.Runtime)

	return &Resolution{Plan: plan, Specs: selected}, nil
}

func parseConstraint(raw, origin string) (constraintRef, error) {
	ref := constraintRef{raw: raw, origin: origin}
	if raw == "" {
		return ref, nil
	}
	c, err := semver.NewConstraint(raw)
	if err != nil {
		wrapped := zerr.With(zerr.Wrap(err, "invalid version constraint"), "constraint", raw)
		return constraintRef{}, zerr.With(wrapped, "origin", origin)
	}
	ref.c = c
	return ref, nil
}

func addConstraint(refs []constraintRef, ref constraintRef) []constraintRef {
	for _, existing := range refs {
		if existing.raw == ref.raw && existing.origin == ref.origin {
			return refs
		}
	}
	return append(refs, ref)
}

func satisfiesAll(v *semver.Version, refs []constraintRef) bool {
	for _, ref := range refs {
		if ref.c != nil && !ref.c.Check(v) {
			return false
		}
	}
	return true
}

func describeConstraints(refs []constraintRef) string {
	parts := make([]string, 0, len(refs))
	for _, ref := range refs {
		raw := ref.raw
		if raw == "" {
			raw = "*"
		}
		parts = append(parts, raw+" (from "+ref.origin+")")
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}

func origins(refs []constraintRef) string {
	parts := make([]string, 0, len(refs))
	for _, ref := range refs {
		parts = append(parts, ref.origin)
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}
