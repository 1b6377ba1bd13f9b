package project_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qobs-build/qgn/internal/loader"
	"github.com/qobs-build/qgn/internal/project"
	"github.com/qobs-build/qgn/internal/target"
)

// writeBuildFile writes a BUILD.qgn.toml into dir, creating dir first.
func writeBuildFile(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, loader.BuildFilename), []byte(content), 0o644))
}

// newFixtureProject builds a tiny three-target project rooted at a temp
// directory: an executable linking a static_library dependency, with an
// extra source_set folded into the library.
func newFixtureProject(t *testing.T) *project.Project {
	t.Helper()
	root := t.TempDir()

	writeBuildFile(t, root, `
[target.app]
type = "executable"
sources = ["main.c"]
deps = [":mylib"]

[target.mylib]
type = "static_library"
sources = ["lib.c"]
public_headers = ["lib.h"]
deps = [":helpers"]

[target.helpers]
type = "source_set"
sources = ["helpers.c"]
`)

	for _, f := range []string{"main.c", "lib.c", "lib.h", "helpers.c"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, f), []byte("// stub\n"), 0o644))
	}

	p, err := project.Open(root)
	require.NoError(t, err)
	return p
}

func TestOpenResolvesAllTopLevelTargets(t *testing.T) {
	p := newFixtureProject(t)
	assert.Equal(t, 3, p.Graph.Len())
}

func TestFindResolvesLabel(t *testing.T) {
	p := newFixtureProject(t)

	tg, err := p.Find(":app")
	require.NoError(t, err)
	assert.Equal(t, target.Executable, tg.OutputType)
	assert.Equal(t, "app", tg.Label.Name.String())
}

func TestFindUnknownTargetErrors(t *testing.T) {
	p := newFixtureProject(t)
	_, err := p.Find(":nope")
	assert.Error(t, err)
}

func TestDescRendersDependencies(t *testing.T) {
	p := newFixtureProject(t)

	out, err := p.Desc(":app")
	require.NoError(t, err)
	assert.Contains(t, out, "target: ")
	assert.Contains(t, out, ":app")
	assert.Contains(t, out, "type: executable")
	assert.Contains(t, out, "mylib")
}

func TestDescUnknownTargetErrors(t *testing.T) {
	p := newFixtureProject(t)
	_, err := p.Desc(":missing")
	assert.Error(t, err)
}

func TestPlanIncludesOnlyLinkableUnits(t *testing.T) {
	p := newFixtureProject(t)
	plan := p.Plan()

	names := make(map[string]bool)
	for _, u := range plan.Units {
		names[u.Name] = true
	}
	assert.True(t, names["app"])
	assert.True(t, names["mylib"])
	assert.False(t, names["helpers"], "source_set must not become its own unit")
	assert.Len(t, plan.Units, 2)
}

func TestPlanFoldsSourceSetIntoDependent(t *testing.T) {
	p := newFixtureProject(t)
	plan := p.Plan()

	for _, u := range plan.Units {
		if u.Name != "mylib" {
			continue
		}
		assert.Contains(t, u.Sources, filepath.ToSlash(filepath.Join(p.Root, "lib.c")))
		assert.Contains(t, u.Sources, filepath.ToSlash(filepath.Join(p.Root, "helpers.c")))
		return
	}
	t.Fatal("mylib unit not found in plan")
}

func TestPlanAppLinksAgainstLib(t *testing.T) {
	p := newFixtureProject(t)
	plan := p.Plan()

	for _, u := range plan.Units {
		if u.Name != "app" {
			continue
		}
		assert.Contains(t, u.Deps, "mylib")
		return
	}
	t.Fatal("app unit not found in plan")
}
