package label

import "github.com/qobs-build/qgn/internal/atom"

// Label is the canonical 4-tuple identity of a target, file, or toolchain:
// (dir, name, toolchain_dir, toolchain_name). A Label is null iff Dir is
// null. If ToolchainDir is null so is TCName, and vice versa — there is no
// partial toolchain.
type Label struct {
	Dir          SourceDir
	Name         atom.Atom
	ToolchainDir SourceDir
	TCName       atom.Atom

	h uint64 // precomputed; recomputing via computeHash must match
}

// New constructs a fully-qualified Label. toolchainDir/tcName may both be
// null (no toolchain bound yet); a partial toolchain is a programming error.
func New(dir SourceDir, name atom.Atom, toolchainDir SourceDir, tcName atom.Atom) Label {
	if toolchainDir.Null() != tcName.Null() {
		panic("label: partial toolchain (dir/name must both be null or both set)")
	}
	l := Label{Dir: dir, Name: name, ToolchainDir: toolchainDir, TCName: tcName}
	l.h = l.computeHash()
	return l
}

// NewNoToolchain constructs a Label with an empty toolchain.
func NewNoToolchain(dir SourceDir, name atom.Atom) Label {
	return New(dir, name, SourceDir{}, atom.Atom{})
}

func (l Label) computeHash() uint64 {
	h := l.Dir.hash()
	h = h*131 + l.Name.Hash()
	h = h*131 + l.ToolchainDir.hash()
	h = h*131 + l.TCName.Hash()
	return h
}

// Hash returns the cached hash. Recomputing it via computeHash must always
// equal Hash for the same components — verified in label_test.go.
func (l Label) Hash() uint64 { return l.h }

// Null reports whether l carries no identity.
func (l Label) Null() bool { return l.Dir.Null() }

// Equal is component-wise equality, consistent with hash equality.
func (l Label) Equal(o Label) bool {
	return l.Dir.Equal(o.Dir) && l.Name.SameAs(o.Name) &&
		l.ToolchainDir.Equal(o.ToolchainDir) && l.TCName.SameAs(o.TCName)
}

// ToolchainsEqual reports whether l and o are bound to the same toolchain.
func (l Label) ToolchainsEqual(o Label) bool {
	return l.ToolchainDir.Equal(o.ToolchainDir) && l.TCName.SameAs(o.TCName)
}

// Less orders Labels lexicographically on (dir, name, toolchain_dir,
// toolchain_name).
func (l Label) Less(o Label) bool {
	if !l.Dir.Equal(o.Dir) {
		return l.Dir.Less(o.Dir)
	}
	if ln, on := l.Name.String(), o.Name.String(); ln != on {
		return ln < on
	}
	if !l.ToolchainDir.Equal(o.ToolchainDir) {
		return l.ToolchainDir.Less(o.ToolchainDir)
	}
	return l.TCName.String() < o.TCName.String()
}

// ToolchainLabel returns this label's toolchain as a Label in its own right
// (dir = toolchain_dir, name = toolchain_name, no further toolchain).
func (l Label) ToolchainLabel() Label {
	if l.ToolchainDir.Null() {
		return Label{}
	}
	return NewNoToolchain(l.ToolchainDir, l.TCName)
}

// WithNoToolchain returns a copy of l with its toolchain stripped.
func (l Label) WithNoToolchain() Label {
	return NewNoToolchain(l.Dir, l.Name)
}

// UserVisible renders "//dir:name" and, if includeToolchain, appends
// "(toolchain_label)".
func (l Label) UserVisible(includeToolchain bool) string {
	s := l.Dir.TrimSlash() + ":" + l.Name.String()
	if includeToolchain && !l.ToolchainDir.Null() {
		s += "(" + l.ToolchainLabel().UserVisible(false) + ")"
	}
	return s
}

// UserVisibleDefault renders like UserVisible, but omits the toolchain iff
// it equals defaultToolchain.
func (l Label) UserVisibleDefault(defaultToolchain Label) string {
	include := !l.ToolchainDir.Null() && !l.ToolchainLabel().Equal(defaultToolchain)
	return l.UserVisible(include)
}

func (l Label) String() string { return l.UserVisible(true) }
