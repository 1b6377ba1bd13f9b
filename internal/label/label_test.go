package label_test

import (
	"testing"

	"github.com/qobs-build/qgn/internal/atom"
	"github.com/qobs-build/qgn/internal/label"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustResolve(t *testing.T, cur label.SourceDir, tc label.Label, in string) label.Label {
	t.Helper()
	l, err := label.Resolve(cur, tc, in)
	require.NoError(t, err)
	return l
}

func TestHashIdentity(t *testing.T) {
	l := mustResolve(t, label.RootDir, label.Label{}, "//foo/bar:baz")
	o := mustResolve(t, label.RootDir, label.Label{}, "//foo/bar:baz")
	assert.True(t, l.Equal(o))
	assert.Equal(t, l.Hash(), o.Hash())

	// Recomputing the hash from the same components must match the cached one.
	recomputed := label.New(l.Dir, l.Name, l.ToolchainDir, l.TCName)
	assert.Equal(t, l.Hash(), recomputed.Hash())
}

func TestHashDiffersOnAnyComponent(t *testing.T) {
	a := mustResolve(t, label.RootDir, label.Label{}, "//foo:bar")
	b := mustResolve(t, label.RootDir, label.Label{}, "//foo:baz")
	assert.False(t, a.Equal(b))
}

func TestNoToolchainIsPartialPanic(t *testing.T) {
	assert.Panics(t, func() {
		label.New(label.RootDir, atom.Intern("x"), label.RootDir, atom.Atom{})
	})
}

func TestNameDerivedFromDir(t *testing.T) {
	l := mustResolve(t, label.RootDir, label.Label{}, "//foo/bar")
	assert.Equal(t, "bar", l.Name.String())
}

func TestRelativeDir(t *testing.T) {
	cur, err := label.ResolveSourceDir(label.RootDir, "foo/")
	require.NoError(t, err)
	l := mustResolve(t, cur, label.Label{}, ":baz")
	assert.Equal(t, "//foo:baz", l.UserVisible(false))
}

func TestEscapeRootRejected(t *testing.T) {
	_, err := label.ResolveSourceDir(label.RootDir, "../outside")
	assert.Error(t, err)
}

func TestNestedToolchainRejected(t *testing.T) {
	_, err := label.Resolve(label.RootDir, label.Label{}, "//foo:bar(//tc:x(//tc:y))")
	assert.Error(t, err)
}

func TestToolchainInherited(t *testing.T) {
	tc := mustResolve(t, label.RootDir, label.Label{}, "//build/toolchain:clang")
	l := mustResolve(t, label.RootDir, tc, "//foo:bar")
	assert.True(t, l.ToolchainsEqual(label.New(label.RootDir, atom.Intern("x"), tc.Dir, tc.Name)))
}

func TestExplicitToolchainOverridesInherited(t *testing.T) {
	inherited := mustResolve(t, label.RootDir, label.Label{}, "//build/toolchain:clang")
	l := mustResolve(t, label.RootDir, inherited, "//foo:bar(//build/toolchain:gcc)")
	assert.Equal(t, "gcc", l.TCName.String())
}

// TestRoundTripRendering checks that resolving the rendering of a label
// against its own default toolchain reproduces it.
func TestRoundTripRendering(t *testing.T) {
	defaultTC := mustResolve(t, label.RootDir, label.Label{}, "//build/toolchain:default")
	original := mustResolve(t, label.RootDir, defaultTC, "//foo/bar:baz(//build/toolchain:other)")

	rendered := original.UserVisible(true)
	roundTripped := mustResolve(t, label.RootDir, defaultTC, rendered)
	assert.True(t, original.Equal(roundTripped))
}

func TestUserVisibleDefaultOmitsDefaultToolchain(t *testing.T) {
	defaultTC := mustResolve(t, label.RootDir, label.Label{}, "//build/toolchain:default")
	l := mustResolve(t, label.RootDir, defaultTC, "//foo:bar")
	assert.Equal(t, "//foo:bar", l.UserVisibleDefault(defaultTC))

	other := mustResolve(t, label.RootDir, label.Label{}, "//foo:bar(//build/toolchain:other)")
	assert.Contains(t, other.UserVisibleDefault(defaultTC), "(//build/toolchain:other)")
}

func TestOrdering(t *testing.T) {
	a := mustResolve(t, label.RootDir, label.Label{}, "//a:a")
	b := mustResolve(t, label.RootDir, label.Label{}, "//b:a")
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
}
