// Package graph implements the resolution driver: it walks declared
// targets, resolves labels, binds toolchains, and checks target-resolution
// invariants before a target may freeze into Resolved.
package graph

import (
	"sort"

	"github.com/qobs-build/qgn/internal/errs"
	"github.com/qobs-build/qgn/internal/label"
	"github.com/qobs-build/qgn/internal/target"
)

// Graph is the immutable result of a successful resolve_all pass: every
// target reachable from the roots, fully Resolved.
type Graph struct {
	targets map[label.Label]*target.Target
}

// Lookup returns the resolved target for l, if any.
func (g *Graph) Lookup(l label.Label) (*target.Target, bool) {
	t, ok := g.targets[l]
	return t, ok
}

// Sorted returns every resolved target in label order, the order rule
// emitters iterate targets in.
func (g *Graph) Sorted() []*target.Target {
	out := make([]*target.Target, 0, len(g.targets))
	for _, t := range g.targets {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label.Less(out[j].Label) })
	return out
}

func (g *Graph) Len() int { return len(g.targets) }

// Driver owns the flat Label -> Target arena and performs the depth-first
// resolution walk. Not safe for concurrent resolution (single-threaded);
// read-only queries over the finished Graph belong to internal/resolved
// instead.
type Driver struct {
	loader     Loader
	arena      map[label.Label]*target.Target
	toolchains map[label.Label]*target.Toolchain
	loadedDirs map[string]bool
	outputs    map[string]label.Label
	collector  errs.Collector
}

func NewDriver(loader Loader) *Driver {
	return &Driver{
		loader:     loader,
		arena:      make(map[label.Label]*target.Target),
		toolchains: make(map[label.Label]*target.Toolchain),
		loadedDirs: make(map[string]bool),
		outputs:    make(map[string]label.Label),
	}
}

// ResolveAll walks every root to completion. A DependencyCycle aborts the
// whole run immediately (a terminal failure); any other collected error
// fails the run only once traversal has finished.
func (d *Driver) ResolveAll(roots []label.Label) (*Graph, error) {
	for _, r := range roots {
		if err := d.resolveTarget(r); err != nil {
			return nil, err
		}
	}
	if d.collector.HasErrors() {
		return nil, d.collector.Err()
	}
	return &Graph{targets: d.resolvedSnapshot()}, nil
}

func (d *Driver) resolvedSnapshot() map[label.Label]*target.Target {
	out := make(map[label.Label]*target.Target, len(d.arena))
	for l, t := range d.arena {
		if t.State() == target.Resolved {
			out[l] = t
		}
	}
	return out
}

// resolveTarget performs the depth-first resolution walk, tagging targets
// Resolving on entry to detect cycles.
func (d *Driver) resolveTarget(l label.Label) error {
	t, ok := d.arena[l]
	if !ok {
		if err := d.ensureLoaded(l.Dir, l.ToolchainLabel()); err != nil {
			d.collector.Add(errs.Wrap(errs.LoaderFailure, errs.Location{}, err,
				"loading build file for %s", l.Dir.TrimSlash()))
			return nil
		}
		t, ok = d.arena[l]
		if !ok {
			d.collector.Add(errs.New(errs.ResolveError, errs.Location{},
				"label %s does not exist", l.UserVisible(true)))
			return nil
		}
	}

	switch t.State() {
	case target.Resolved:
		return nil
	case target.Resolving:
		return errs.New(errs.DependencyCycle, errs.Location{},
			"dependency cycle detected at %s", l.UserVisible(true))
	}

	t.BeginResolve()

	tc, err := d.resolveToolchain(l.ToolchainLabel())
	if err != nil {
		d.collector.Add(err.(*errs.Error))
	} else {
		t.Toolchain = tc
	}

	resolveList := func(raw []string) ([]*target.Target, error) {
		var out []*target.Target
		for _, s := range raw {
			depLabel, err := label.Resolve(l.Dir, l.ToolchainLabel(), s)
			if err != nil {
				d.collector.Add(err.(*errs.Error))
				continue
			}
			if cycleErr := d.resolveTarget(depLabel); cycleErr != nil {
				return nil, cycleErr
			}
			if dep, ok := d.arena[depLabel]; ok && dep.State() == target.Resolved {
				out = append(out, dep)
			}
		}
		return out, nil
	}

	var err2 error
	if t.ResolvedDeps, err2 = resolveList(t.DeclaredDeps); err2 != nil {
		return err2
	}
	if t.ResolvedPublicDeps, err2 = resolveList(t.DeclaredPublicDeps); err2 != nil {
		return err2
	}
	if t.ResolvedDataDeps, err2 = resolveList(t.DeclaredDataDeps); err2 != nil {
		return err2
	}

	d.checkVisibility(t)
	d.checkOutputCompatibility(t)
	d.checkDuplicateOutputs(t)

	t.Freeze()
	return nil
}

func (d *Driver) resolveToolchain(tcLabel label.Label) (*target.Toolchain, error) {
	if tcLabel.Null() {
		return nil, errs.New(errs.ToolchainUnbound, errs.Location{}, "no toolchain bound")
	}
	if tc, ok := d.toolchains[tcLabel]; ok {
		return tc, nil
	}
	tc := &target.Toolchain{Label: tcLabel, Resolved: true, Pools: make(map[string]*target.Pool)}
	d.toolchains[tcLabel] = tc
	return tc, nil
}

// checkVisibility checks that for each public_dep, its visibility permits
// this target. A nil VisibilityPatterns means unrestricted.
func (d *Driver) checkVisibility(t *target.Target) {
	for _, dep := range t.ResolvedPublicDeps {
		if dep.VisibilityPatterns == nil {
			continue
		}
		if !visibilityAllows(dep.VisibilityPatterns, t.Label) {
			d.collector.Add(errs.New(errs.VisibilityViolation, errs.Location{},
				"%s is not visible to %s", dep.Label.UserVisible(true), t.Label.UserVisible(true)))
		}
	}
}

func visibilityAllows(patterns []label.Label, candidate label.Label) bool {
	for _, p := range patterns {
		if p.Dir.Equal(candidate.Dir) && (p.Name.String() == "*" || p.Name.SameAs(candidate.Name)) {
			return true
		}
	}
	return false
}

// checkOutputCompatibility checks output-type compatibility across an edge.
// Group is transparent for link semantics and never rejected; the one check
// enforced here by name is that a bundle-producing target may not directly
// link a bare source_set into its bundle.
func (d *Driver) checkOutputCompatibility(t *target.Target) {
	if t.OutputType != target.CreateBundle {
		return
	}
	for _, dep := range t.ResolvedDeps {
		if dep.OutputType == target.SourceSet {
			d.collector.Add(errs.New(errs.ResolveError, errs.Location{},
				"%s (create_bundle) may not directly depend on source_set %s",
				t.Label.UserVisible(true), dep.Label.UserVisible(true)))
		}
	}
}

// checkDuplicateOutputs rejects two resolved targets producing the same
// output path.
func (d *Driver) checkDuplicateOutputs(t *target.Target) {
	for _, out := range t.Outputs {
		if owner, exists := d.outputs[out]; exists {
			d.collector.Add(errs.New(errs.DuplicateOutput, errs.Location{},
				"%q is generated by both %s and %s", out, owner.UserVisible(true), t.Label.UserVisible(true)))
			continue
		}
		d.outputs[out] = t.Label
	}
}

// ensureLoaded invokes the external loader for dir/toolchain, idempotently.
func (d *Driver) ensureLoaded(dir label.SourceDir, toolchain label.Label) error {
	key := dir.String() + "|" + toolchain.String()
	if d.loadedDirs[key] {
		return nil
	}
	d.loadedDirs[key] = true

	declared, err := d.loader.Load(dir, toolchain)
	if err != nil {
		return err
	}
	for _, dt := range declared {
		if _, exists := d.arena[dt.Label]; exists {
			continue
		}
		d.arena[dt.Label] = declaredToTarget(dt)
	}
	return nil
}

func declaredToTarget(dt DeclaredTarget) *target.Target {
	t := target.New(dt.Label, dt.OutputType)
	t.DeclaredDeps = dt.Deps
	t.DeclaredPublicDeps = dt.PublicDeps
	t.DeclaredDataDeps = dt.DataDeps
	t.Libs = dt.Libs
	t.Frameworks = dt.Frameworks
	t.WeakFrameworks = dt.WeakFrameworks
	t.PublicHeaders = dt.PublicHeaders
	t.HardDep = dt.HardDep
	t.Outputs = dt.Outputs

	if dt.Visibility != nil {
		t.VisibilityPatterns = make([]label.Label, 0, len(dt.Visibility))
		for _, raw := range dt.Visibility {
			if pat, err := label.Resolve(dt.CurrentDir, dt.CurrentToolchain, raw); err == nil {
				t.VisibilityPatterns = append(t.VisibilityPatterns, pat)
			}
		}
	}

	for _, raw := range dt.LibDirs {
		if sd, err := label.ResolveSourceDir(dt.CurrentDir, raw); err == nil {
			t.LibDirs = append(t.LibDirs, sd)
		}
	}
	for _, raw := range dt.FrameworkDirs {
		if sd, err := label.ResolveSourceDir(dt.CurrentDir, raw); err == nil {
			t.FrameworkDirs = append(t.FrameworkDirs, sd)
		}
	}
	return t
}
