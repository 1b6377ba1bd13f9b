package resolved_test

import (
	"testing"

	"github.com/qobs-build/qgn/internal/atom"
	"github.com/qobs-build/qgn/internal/label"
	"github.com/qobs-build/qgn/internal/resolved"
	"github.com/qobs-build/qgn/internal/target"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func lbl(t *testing.T, name string) label.Label {
	t.Helper()
	dir, err := label.ResolveSourceDir(label.RootDir, "//pkg/")
	require.NoError(t, err)
	return label.NewNoToolchain(dir, atom.Intern(name))
}

func newTarget(t *testing.T, name string, ot target.OutputType) *target.Target {
	t.Helper()
	tgt := target.New(lbl(t, name), ot)
	tgt.BeginResolve()
	return tgt
}

func freeze(tgts ...*target.Target) {
	for _, t := range tgts {
		t.Freeze()
	}
}

// TestPublicUpgrade: A -> B (private), A -> C (public), C -> B (public).
// InheritedLibraries(A) must contain (B, true) exactly once.
func TestPublicUpgrade(t *testing.T) {
	a := newTarget(t, "a", target.StaticLibrary)
	b := newTarget(t, "b", target.StaticLibrary)
	c := newTarget(t, "c", target.StaticLibrary)

	c.ResolvedPublicDeps = []*target.Target{b}
	a.ResolvedDeps = []*target.Target{b}
	a.ResolvedPublicDeps = []*target.Target{c}
	freeze(a, b, c)

	e := resolved.NewEngine()
	inherited := e.InheritedLibraries(a)

	var found int
	for _, pair := range inherited {
		if pair.Target == b {
			found++
			assert.True(t, pair.IsPublic, "B must be upgraded to public via C's public path")
		}
	}
	assert.Equal(t, 1, found, "B must appear exactly once")
}

// TestRustOrdering: A -> B -> C, A -> D. Every dependency must precede its
// dependents in the Rust link order.
func TestRustOrdering(t *testing.T) {
	c := newTarget(t, "c", target.StaticLibrary)
	b := newTarget(t, "b", target.StaticLibrary)
	d := newTarget(t, "d", target.StaticLibrary)
	a := newTarget(t, "a", target.Executable)

	b.ResolvedDeps = []*target.Target{c}
	a.ResolvedDeps = []*target.Target{b, d}
	freeze(a, b, c, d)

	e := resolved.NewEngine()
	order := e.RustTransitiveInheritedLibs(a)
	require.Len(t, order, 3)

	pos := make(map[*target.Target]int)
	for i, p := range order {
		pos[p.Target] = i
	}
	assert.Less(t, pos[c], pos[b], "C must precede B: B depends on C")
	assert.Contains(t, pos, d)
}

func TestDedupNoTargetTwice(t *testing.T) {
	shared := newTarget(t, "shared", target.StaticLibrary)
	b := newTarget(t, "b", target.StaticLibrary)
	c := newTarget(t, "c", target.StaticLibrary)
	a := newTarget(t, "a", target.Executable)

	b.ResolvedDeps = []*target.Target{shared}
	c.ResolvedDeps = []*target.Target{shared}
	a.ResolvedDeps = []*target.Target{b, c}
	freeze(a, b, c, shared)

	e := resolved.NewEngine()
	inherited := e.InheritedLibraries(a)

	count := 0
	for _, p := range inherited {
		if p.Target == shared {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestDedupNoLibPathTwice(t *testing.T) {
	b := newTarget(t, "b", target.StaticLibrary)
	c := newTarget(t, "c", target.StaticLibrary)
	a := newTarget(t, "a", target.Executable)
	b.Libs = []target.LibFile{{Name: "foo"}}
	c.Libs = []target.LibFile{{Name: "foo"}}
	a.ResolvedDeps = []*target.Target{b, c}
	freeze(a, b, c)

	e := resolved.NewEngine()
	libs := e.AllLibs(a)
	count := 0
	for _, l := range libs {
		if l.Name == "foo" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestSharedLibraryTerminatesStaticWalkButNotFrameworks(t *testing.T) {
	deepStatic := newTarget(t, "deep_static", target.StaticLibrary)
	shared := newTarget(t, "shared", target.SharedLibrary)
	exe := newTarget(t, "exe", target.Executable)

	deepStatic.Frameworks = []string{"CoreFoundation"}
	shared.ResolvedDeps = []*target.Target{deepStatic}
	exe.ResolvedDeps = []*target.Target{shared}
	freeze(exe, shared, deepStatic)

	e := resolved.NewEngine()
	inherited := e.InheritedLibraries(exe)
	for _, p := range inherited {
		assert.NotEqual(t, deepStatic, p.Target, "deep_static must not surface past the shared_library boundary")
	}

	fws := e.AllFrameworks(exe)
	assert.Contains(t, fws, "CoreFoundation", "frameworks still propagate through the shared_library boundary")
}

func TestGroupIsTransparent(t *testing.T) {
	leaf := newTarget(t, "leaf", target.StaticLibrary)
	grp := newTarget(t, "grp", target.Group)
	exe := newTarget(t, "exe", target.Executable)

	grp.ResolvedDeps = []*target.Target{leaf}
	exe.ResolvedDeps = []*target.Target{grp}
	freeze(exe, grp, leaf)

	e := resolved.NewEngine()
	inherited := e.InheritedLibraries(exe)
	require.Len(t, inherited, 1)
	assert.Equal(t, leaf, inherited[0].Target)
}

func TestRecursiveHardDeps(t *testing.T) {
	act := newTarget(t, "act", target.Action)
	lib := newTarget(t, "lib", target.StaticLibrary)
	exe := newTarget(t, "exe", target.Executable)

	lib.ResolvedDeps = []*target.Target{act}
	exe.ResolvedDeps = []*target.Target{lib}
	freeze(exe, lib, act)

	e := resolved.NewEngine()
	hard := e.RecursiveHardDeps(exe)
	require.Len(t, hard, 1)
	assert.Equal(t, act, hard[0])
}

// TestMemoizationIdentity: calling a getter twice on the same engine+target
// yields slices identical by content and identity.
func TestMemoizationIdentity(t *testing.T) {
	b := newTarget(t, "b", target.StaticLibrary)
	a := newTarget(t, "a", target.Executable)
	b.Libs = []target.LibFile{{Name: "m"}}
	a.ResolvedDeps = []*target.Target{b}
	freeze(a, b)

	e := resolved.NewEngine()
	first := e.AllLibs(a)
	second := e.AllLibs(a)

	require.Equal(t, len(first), len(second))
	if len(first) > 0 {
		assert.Same(t, &first[0], &second[0])
	}
}

// TestConcurrentEnginesAreIndependent demonstrates the one-engine-per-goroutine
// concurrency model: multiple Engine instances over the same shared, immutable
// graph may run concurrent queries safely.
func TestConcurrentEnginesAreIndependent(t *testing.T) {
	b := newTarget(t, "b", target.StaticLibrary)
	a := newTarget(t, "a", target.Executable)
	a.ResolvedDeps = []*target.Target{b}
	freeze(a, b)

	var g errgroup.Group
	results := make([][]target.LibFile, 8)
	for i := range results {
		i := i
		g.Go(func() error {
			e := resolved.NewEngine()
			results[i] = e.AllLibs(a)
			return nil
		})
	}
	require.NoError(t, g.Wait())
	for i := 1; i < len(results); i++ {
		assert.Equal(t, results[0], results[i])
	}
}
