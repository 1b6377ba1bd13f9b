package resolved

import (
	"github.com/qobs-build/qgn/internal/label"
	"github.com/qobs-build/qgn/internal/target"
)

// combinedDeps returns t's direct deps followed by its public deps, in
// declaration order. deps and public_deps are separate declared lists, so a
// target present in both is visited twice; p comes from isPublicDepOf, so
// both visits count it as public and the second only re-upserts existing
// entries; see buildInheritedLibraries.
func combinedDeps(t *target.Target) []*target.Target {
	out := make([]*target.Target, 0, len(t.ResolvedDeps)+len(t.ResolvedPublicDeps))
	out = append(out, t.ResolvedDeps...)
	out = append(out, t.ResolvedPublicDeps...)
	return out
}

func isPublicDepOf(t, d *target.Target) bool {
	for _, p := range t.ResolvedPublicDeps {
		if p == d {
			return true
		}
	}
	return false
}

// buildInheritedLibraries computes the ordered, deduplicated list of
// link-time libraries t inherits from its dependency closure. When rust is
// true it instead returns the post-order-DFS variant rustc's linker needs
// (see buildRustOrder); otherwise it's an append-if-new, upgrade-towards-
// public walk over deps∪public_deps.
func (e *Engine) buildInheritedLibraries(t *target.Target, rust bool) []Pair {
	if rust {
		return e.buildRustOrder(t)
	}

	var list []Pair
	index := make(map[*target.Target]int)

	upsert := func(x *target.Target, public bool) {
		if idx, ok := index[x]; ok {
			if !list[idx].IsPublic && public {
				list[idx].IsPublic = true // once public, always public
			}
			return
		}
		index[x] = len(list)
		list = append(list, Pair{Target: x, IsPublic: public})
	}

	for _, d := range combinedDeps(t) {
		p := isPublicDepOf(t, d)

		// A shared_library terminates further walk past it in the
		// static-link sense — its own transitive libraries are not pulled
		// into T's list, though d itself still is (below).
		if !d.OutputType.TerminatesStaticLink() {
			for _, child := range e.InheritedLibraries(d) {
				upsert(child.Target, p && child.IsPublic)
			}
		}

		if d.OutputType.IsLinkable() {
			upsert(d, p)
		}
	}

	return list
}

// buildRustOrder computes the same public/private accounting as
// buildInheritedLibraries, but ordered by a post-order DFS across
// deps∪public_deps so that a target's entry always precedes every one of
// its dependents', matching rustc's left-to-right linkage resolution.
func (e *Engine) buildRustOrder(t *target.Target) []Pair {
	type acc struct {
		public bool
		seen   bool
	}
	order := make([]*target.Target, 0)
	state := make(map[*target.Target]*acc)

	var visit func(node *target.Target, public bool)
	visit = func(node *target.Target, public bool) {
		a, ok := state[node]
		if !ok {
			a = &acc{}
			state[node] = a
		}
		if public && !a.public {
			a.public = true
		}
		if a.seen {
			return // already visited; public flag may still have just upgraded above
		}
		a.seen = true

		for _, child := range combinedDeps(node) {
			childPublic := public && isPublicDepOf(node, child)
			visit(child, childPublic)
		}
		order = append(order, node) // post-order: after all children
	}

	for _, d := range combinedDeps(t) {
		visit(d, isPublicDepOf(t, d))
	}

	// order is already post-order (each node appended only once, after all
	// of its own children): a dependency's entry always precedes every one
	// of its dependents', satisfying rustc's left-to-right linkage
	// resolution. No further reversal needed.
	list := make([]Pair, 0, len(order))
	for _, n := range order {
		if !n.OutputType.IsLinkable() {
			continue
		}
		list = append(list, Pair{Target: n, IsPublic: state[n].public})
	}
	return list
}

// buildLibInfo computes lib dirs/libs: T's own declared lists, followed by
// the order-preserving deduplicated concatenation of every inherited
// target's declared lists. Deduplication is by LibFile's structural key;
// bare "-lname" and full-path references never cross-dedup.
func (e *Engine) buildLibInfo(t *target.Target, inherited []Pair) ([]label.SourceDir, []target.LibFile) {
	dirSeen := make(map[string]bool)
	var dirs []label.SourceDir
	addDirs := func(src []label.SourceDir) {
		for _, d := range src {
			if k := d.String(); !dirSeen[k] {
				dirSeen[k] = true
				dirs = append(dirs, d)
			}
		}
	}

	libSeen := make(map[string]bool)
	var libs []target.LibFile
	addLibs := func(src []target.LibFile) {
		for _, l := range src {
			if k := l.Key(); !libSeen[k] {
				libSeen[k] = true
				libs = append(libs, l)
			}
		}
	}

	addDirs(t.LibDirs)
	addLibs(t.Libs)
	for _, pair := range inherited {
		addDirs(pair.Target.LibDirs)
		addLibs(pair.Target.Libs)
	}
	return dirs, libs
}

// buildFrameworkInfo is the OS X framework counterpart of buildLibInfo.
// Frameworks are collected over the full deps∪public_deps transitive
// closure rather than InheritedLibraries' list, since that list
// intentionally stops at a shared_library boundary for link-time libraries
// but frameworks must still surface past it.
func (e *Engine) buildFrameworkInfo(t *target.Target) ([]label.SourceDir, []string, []string) {
	dirSeen := make(map[string]bool)
	fwSeen := make(map[string]bool)
	weakSeen := make(map[string]bool)
	var dirs []label.SourceDir
	var fws, weak []string

	visited := make(map[*target.Target]bool)
	var walk func(n *target.Target)
	walk = func(n *target.Target) {
		if visited[n] {
			return
		}
		visited[n] = true
		for _, d := range n.FrameworkDirs {
			if k := d.String(); !dirSeen[k] {
				dirSeen[k] = true
				dirs = append(dirs, d)
			}
		}
		for _, f := range n.Frameworks {
			if !fwSeen[f] {
				fwSeen[f] = true
				fws = append(fws, f)
			}
		}
		for _, f := range n.WeakFrameworks {
			if !weakSeen[f] {
				weakSeen[f] = true
				weak = append(weak, f)
			}
		}
		for _, child := range combinedDeps(n) {
			walk(child)
		}
	}
	walk(t)
	return dirs, fws, weak
}

// buildRecursiveHardDeps computes the smallest set closed under the deps
// relation containing every transitive dep for which hard_dep is set or
// whose output type is an implicit hard dependency.
func (e *Engine) buildRecursiveHardDeps(t *target.Target) []*target.Target {
	seen := make(map[*target.Target]bool)
	var out []*target.Target

	var walk func(n *target.Target)
	walk = func(n *target.Target) {
		for _, d := range n.ResolvedDeps {
			if seen[d] {
				continue
			}
			seen[d] = true
			if d.HardDep || d.OutputType.IsImplicitHardDep() {
				out = append(out, d)
			}
			walk(d)
		}
	}
	walk(t)
	return out
}
