package graph_test

import (
	"fmt"
	"testing"

	"github.com/qobs-build/qgn/internal/errs"
	"github.com/qobs-build/qgn/internal/graph"
	"github.com/qobs-build/qgn/internal/label"
	"github.com/qobs-build/qgn/internal/target"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLoader serves a fixed table of declared targets keyed by directory,
// mimicking the external build-file loader.
type fakeLoader struct {
	byDir map[string][]graph.DeclaredTarget
	loads int
}

func (f *fakeLoader) Load(dir label.SourceDir, toolchain label.Label) ([]graph.DeclaredTarget, error) {
	f.loads++
	ts, ok := f.byDir[dir.String()]
	if !ok {
		return nil, fmt.Errorf("no build file for %s", dir)
	}
	return ts, nil
}

func mustDir(t *testing.T, s string) label.SourceDir {
	t.Helper()
	d, err := label.ResolveSourceDir(label.RootDir, s)
	require.NoError(t, err)
	return d
}

func mustLabel(t *testing.T, s string) label.Label {
	t.Helper()
	l, err := label.Resolve(label.RootDir, label.Label{}, s)
	require.NoError(t, err)
	return l
}

var defaultTC = label.Label{} // resolves to the inherited/default toolchain in these tests

func withDefaultToolchain(t *testing.T, s string) label.Label {
	t.Helper()
	tc := mustLabel(t, "//build/toolchain:default")
	l, err := label.Resolve(label.RootDir, tc, s)
	require.NoError(t, err)
	return l
}

func TestResolveAllSimpleGraph(t *testing.T) {
	fooDir := mustDir(t, "//foo/")
	barDir := mustDir(t, "//bar/")
	fooLabel := withDefaultToolchain(t, "//foo:bar")
	barLabel := withDefaultToolchain(t, "//bar:bar")

	loader := &fakeLoader{byDir: map[string][]graph.DeclaredTarget{
		"//foo/": {{
			Label: fooLabel, OutputType: target.Action,
			Outputs: []string{"out1.out", "out2.out"}, CurrentDir: fooDir,
		}},
		"//bar/": {{
			Label: barLabel, OutputType: target.Action,
			Outputs: []string{"out3.out", "out4.out"}, CurrentDir: barDir,
		}},
	}}

	d := graph.NewDriver(loader)
	g, err := d.ResolveAll([]label.Label{fooLabel, barLabel})
	require.NoError(t, err)
	assert.Equal(t, 2, g.Len())

	sorted := g.Sorted()
	require.Len(t, sorted, 2)
	assert.True(t, sorted[0].Label.Less(sorted[1].Label) || sorted[0].Label.Equal(sorted[1].Label))
}

func TestResolveAllDuplicateOutput(t *testing.T) {
	fooDir := mustDir(t, "//foo/")
	barDir := mustDir(t, "//bar/")
	fooLabel := withDefaultToolchain(t, "//foo:bar")
	barLabel := withDefaultToolchain(t, "//bar:bar")

	loader := &fakeLoader{byDir: map[string][]graph.DeclaredTarget{
		"//foo/": {{Label: fooLabel, OutputType: target.Action, Outputs: []string{"out1.out", "out2.out"}, CurrentDir: fooDir}},
		"//bar/": {{Label: barLabel, OutputType: target.Action, Outputs: []string{"out2.out", "out4.out"}, CurrentDir: barDir}},
	}}

	d := graph.NewDriver(loader)
	_, err := d.ResolveAll([]label.Label{fooLabel, barLabel})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out2.out")
	assert.Contains(t, err.Error(), "//foo:bar")
	assert.Contains(t, err.Error(), "//bar:bar")
}

func TestResolveAllDependencyCycle(t *testing.T) {
	aDir := mustDir(t, "//a/")
	aLabel := withDefaultToolchain(t, "//a:a")
	bLabel := withDefaultToolchain(t, "//a:b")

	loader := &fakeLoader{byDir: map[string][]graph.DeclaredTarget{
		"//a/": {
			{Label: aLabel, OutputType: target.StaticLibrary, Deps: []string{":b"}, CurrentDir: aDir},
			{Label: bLabel, OutputType: target.StaticLibrary, Deps: []string{":a"}, CurrentDir: aDir},
		},
	}}

	d := graph.NewDriver(loader)
	_, err := d.ResolveAll([]label.Label{aLabel})
	require.Error(t, err)
	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errs.DependencyCycle, e.Kind)
}

func TestResolveAllMissingDepIsCollected(t *testing.T) {
	aDir := mustDir(t, "//a/")
	aLabel := withDefaultToolchain(t, "//a:a")

	loader := &fakeLoader{byDir: map[string][]graph.DeclaredTarget{
		"//a/": {{Label: aLabel, OutputType: target.StaticLibrary, Deps: []string{"//missing:thing"}, CurrentDir: aDir}},
	}}

	d := graph.NewDriver(loader)
	_, err := d.ResolveAll([]label.Label{aLabel})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestLoaderIsIdempotentPerDir(t *testing.T) {
	fooDir := mustDir(t, "//foo/")
	aLabel := withDefaultToolchain(t, "//foo:a")
	bLabel := withDefaultToolchain(t, "//foo:b")

	loader := &fakeLoader{byDir: map[string][]graph.DeclaredTarget{
		"//foo/": {
			{Label: aLabel, OutputType: target.StaticLibrary, CurrentDir: fooDir},
			{Label: bLabel, OutputType: target.StaticLibrary, Deps: []string{":a"}, CurrentDir: fooDir},
		},
	}}

	d := graph.NewDriver(loader)
	_, err := d.ResolveAll([]label.Label{bLabel})
	require.NoError(t, err)
	assert.Equal(t, 1, loader.loads, "loading //foo/ for :a must reuse the load triggered by :b")
}
