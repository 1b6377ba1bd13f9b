package loader_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qobs-build/qgn/internal/atom"
	"github.com/qobs-build/qgn/internal/label"
	"github.com/qobs-build/qgn/internal/loader"
	"github.com/qobs-build/qgn/internal/target"
)

func writeBuildFile(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, loader.BuildFilename), []byte(content), 0o644))
}

func defaultToolchain(t *testing.T) label.Label {
	t.Helper()
	tcDir, err := label.ResolveSourceDir(label.RootDir, "//build/toolchain/")
	require.NoError(t, err)
	return label.NewNoToolchain(tcDir, atom.Intern("default"))
}

func TestLoadSimpleTarget(t *testing.T) {
	root := t.TempDir()
	writeBuildFile(t, root, `
[target.mylib]
type = "static_library"
sources = ["src/a.cc", "src/b.cc"]
headers = ["include/mylib.h"]
deps = [":helper"]
hard_dep = true
outputs = ["libmylib.a"]

[target.helper]
type = "source_set"
sources = ["src/helper.cc"]
`)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	for _, f := range []string{"a.cc", "b.cc", "helper.cc"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, "src", f), nil, 0o644))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(root, "include"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "include", "mylib.h"), nil, 0o644))

	fl, err := loader.NewFileLoader(root, filepath.Join(root, ".qgn-deps"))
	require.NoError(t, err)

	declared, err := fl.Load(label.RootDir, defaultToolchain(t))
	require.NoError(t, err)
	require.Len(t, declared, 2)

	byName := make(map[string]int)
	for i, dt := range declared {
		byName[dt.Label.Name.String()] = i
	}

	mylib := declared[byName["mylib"]]
	assert.Equal(t, target.StaticLibrary, mylib.OutputType)
	assert.Equal(t, []string{":helper"}, mylib.Deps)
	assert.True(t, mylib.HardDep)
	assert.Equal(t, []string{"libmylib.a"}, mylib.Outputs)

	fd, ok := fl.FullDecl(mylib.Label)
	require.True(t, ok)
	assert.Len(t, fd.Sources, 2)
	assert.Len(t, fd.Headers, 1)
}

func TestLoadConditionalSection(t *testing.T) {
	root := t.TempDir()
	writeBuildFile(t, root, `
[target.plat]
type = "source_set"
sources = ["base.cc"]

[target.plat.'target_os == "impossible_os_xyz"']
sources = ["only_on_impossible_os.cc"]

[target.plat.'target_os != "impossible_os_xyz"']
sources = ["everywhere_else.cc"]
`)
	for _, f := range []string{"base.cc", "only_on_impossible_os.cc", "everywhere_else.cc"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, f), nil, 0o644))
	}

	fl, err := loader.NewFileLoader(root, filepath.Join(root, ".qgn-deps"))
	require.NoError(t, err)

	declared, err := fl.Load(label.RootDir, defaultToolchain(t))
	require.NoError(t, err)
	require.Len(t, declared, 1)

	fd, ok := fl.FullDecl(declared[0].Label)
	require.True(t, ok)
	assert.Len(t, fd.Sources, 2, "base + the matching conditional, not the impossible one")

	var names []string
	for _, s := range fd.Sources {
		names = append(names, filepath.Base(s))
	}
	assert.Contains(t, names, "base.cc")
	assert.Contains(t, names, "everywhere_else.cc")
	assert.NotContains(t, names, "only_on_impossible_os.cc")
}

func TestLoadInterpolation(t *testing.T) {
	root := t.TempDir()
	writeBuildFile(t, root, `
[target.info]
type = "group"
outputs = ["built-for-{{ target_os }}.stamp"]
`)

	fl, err := loader.NewFileLoader(root, filepath.Join(root, ".qgn-deps"))
	require.NoError(t, err)

	declared, err := fl.Load(label.RootDir, defaultToolchain(t))
	require.NoError(t, err)
	require.Len(t, declared, 1)
	assert.Contains(t, declared[0].Outputs[0], "built-for-")
	assert.NotContains(t, declared[0].Outputs[0], "{{")
}

func TestLoadUnknownOutputTypeFails(t *testing.T) {
	root := t.TempDir()
	writeBuildFile(t, root, `
[target.bad]
type = "not_a_real_type"
`)

	fl, err := loader.NewFileLoader(root, filepath.Join(root, ".qgn-deps"))
	require.NoError(t, err)

	_, err = fl.Load(label.RootDir, defaultToolchain(t))
	assert.Error(t, err)
}

func TestLoadMissingFileIsLoaderFailure(t *testing.T) {
	root := t.TempDir()
	fl, err := loader.NewFileLoader(root, filepath.Join(root, ".qgn-deps"))
	require.NoError(t, err)

	_, err = fl.Load(label.RootDir, defaultToolchain(t))
	assert.Error(t, err)
}
