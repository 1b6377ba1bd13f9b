// Package target implements a target's declared configuration and its
// resolution-state transitions.
package target

import (
	"github.com/qobs-build/qgn/internal/label"
)

// OutputType is the closed set of target kinds. Behavior differences
// (linkable vs action vs group) are expressed as a tagged variant with small
// lookup tables below rather than a class hierarchy.
type OutputType int

const (
	Executable OutputType = iota
	SharedLibrary
	StaticLibrary
	SourceSet
	Action
	ActionForeach
	Copy
	Group
	GeneratedFile
	BundleData
	CreateBundle
)

func (t OutputType) String() string {
	switch t {
	case Executable:
		return "executable"
	case SharedLibrary:
		return "shared_library"
	case StaticLibrary:
		return "static_library"
	case SourceSet:
		return "source_set"
	case Action:
		return "action"
	case ActionForeach:
		return "action_foreach"
	case Copy:
		return "copy"
	case Group:
		return "group"
	case GeneratedFile:
		return "generated_file"
	case BundleData:
		return "bundle_data"
	case CreateBundle:
		return "create_bundle"
	default:
		return "unknown"
	}
}

// IsLinkable reports whether the type produces a link-time artifact that
// contributes to a dependent's all_libs/inherited_libraries.
func (t OutputType) IsLinkable() bool {
	switch t {
	case Executable, SharedLibrary, StaticLibrary, SourceSet:
		return true
	default:
		return false
	}
}

// TerminatesStaticLink reports whether walking past this type in the
// static-link sense stops: a shared_library terminates further walk past it
// for link-time libraries, though it still propagates frameworks and public
// inheritance.
func (t OutputType) TerminatesStaticLink() bool {
	return t == SharedLibrary
}

// IsImplicitHardDep reports whether this output type is, on its own, an
// implicit hard dependency regardless of the declared hard_dep flag.
func (t OutputType) IsImplicitHardDep() bool {
	switch t {
	case Action, ActionForeach, Copy, BundleData, CreateBundle:
		return true
	default:
		return false
	}
}

// IsTransparent reports whether the type is transparent for link semantics
// (a group forwards its deps' contributions without adding its own).
func (t OutputType) IsTransparent() bool { return t == Group }

// State is a target's position in the resolution state machine.
type State int

const (
	Declared State = iota
	Resolving
	Resolved
)

func (s State) String() string {
	switch s {
	case Declared:
		return "Declared"
	case Resolving:
		return "Resolving"
	case Resolved:
		return "Resolved"
	default:
		return "Unknown"
	}
}

// LibFile is a link-time library reference: either a bare "-lname" token or
// a full path. The two never cross-dedup.
type LibFile struct {
	// Name is set for a bare "-lname" style reference.
	Name string
	// Path is set for a full-path library file; mutually exclusive with Name.
	Path string
}

// Key returns the structural dedup key used when collapsing inherited lib lists.
func (l LibFile) Key() string {
	if l.Path != "" {
		return "path:" + l.Path
	}
	return "name:" + l.Name
}

// Toolchain is a named container of tools; participates as the identity
// suffix of every Label.
type Toolchain struct {
	Label    label.Label
	Resolved bool
	Pools    map[string]*Pool // pool name -> Pool, keyed by the pool's own label name
}

// Pool is a named concurrency-limit record. The built-in "console" pool
// under the default toolchain is implicit and never emitted — see
// internal/gen/ninja.
type Pool struct {
	Label label.Label
	Depth int
}

// IsConsole reports whether p is the built-in console pool.
func (p *Pool) IsConsole() bool {
	return p.Label.Name.String() == "console"
}

// Target holds a target's declared configuration and its resolution-state
// transition.
type Target struct {
	Label      label.Label
	OutputType OutputType

	// Pre-resolve these are raw label strings; post-resolve they are
	// resolved pointers (ResolvedDeps etc). Only one set is valid at a time,
	// selected by State.
	DeclaredDeps       []string
	DeclaredPublicDeps []string
	DeclaredDataDeps   []string

	ResolvedDeps       []*Target
	ResolvedPublicDeps []*Target
	ResolvedDataDeps   []*Target

	Libs           []LibFile
	LibDirs        []label.SourceDir
	Frameworks     []string
	FrameworkDirs  []label.SourceDir
	WeakFrameworks []string

	// PublicHeaders, when non-nil, restricts which of the target's headers
	// are part of its public interface ("*" meaning "all sources").
	PublicHeaders []string

	HardDep bool

	// Outputs lists the output file paths this target generates, used by
	// the resolution driver's duplicate-output check.
	Outputs []string

	Toolchain *Toolchain

	state State

	// VisibilityPatterns restricts which labels may depend on this target
	// as a public_dep. A nil slice means unrestricted.
	VisibilityPatterns []label.Label
}

// New creates a target in the Declared state.
func New(l label.Label, ot OutputType) *Target {
	return &Target{Label: l, OutputType: ot, state: Declared}
}

// State returns the target's current resolution state.
func (t *Target) State() State { return t.state }

// BeginResolve transitions Declared -> Resolving. Panics (a programming
// error) if t is not Declared.
func (t *Target) BeginResolve() {
	if t.state != Declared {
		panic("target: BeginResolve called on target not in Declared state: " + t.Label.String())
	}
	t.state = Resolving
}

// Freeze transitions Resolving -> Resolved. The caller (the resolution
// driver) must have already verified all invariants before calling this;
// Freeze itself does not re-check them.
func (t *Target) Freeze() {
	if t.state != Resolving {
		panic("target: Freeze called on target not in Resolving state: " + t.Label.String())
	}
	t.state = Resolved
}

// IsFrozen reports whether t is in the Resolved state, after which any
// mutation is a programming error.
func (t *Target) IsFrozen() bool { return t.state == Resolved }

// AssertMutable panics if t is frozen, to catch illegal mutation. Target's
// fields are set directly, so nothing in this package calls it on its own.
func (t *Target) AssertMutable() {
	if t.IsFrozen() {
		panic("target: mutation of frozen target: " + t.Label.String())
	}
}
