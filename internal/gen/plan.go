// Package gen defines the shared build-plan shape the three generators
// (internal/gen/ninja, internal/gen/native, internal/gen/vs2022) consume.
// Planning itself — walking the resolved graph, asking internal/resolved for
// transitive link data, pairing it with internal/loader's per-target source
// lists — happens in internal/project before a Plan ever reaches a
// Generator; Units arrive with their cflags/ldflags already assembled.
package gen

import "github.com/qobs-build/qgn/internal/target"

// Unit is one resolved target, flattened into what a generator needs to
// emit or run a build step for it: no further graph knowledge required.
type Unit struct {
	Name       string // the target's label name; unique within one Plan
	OutputType target.OutputType
	BaseDir    string   // filesystem directory sources are relative to
	Sources    []string // joined onto the project root as passed to Open; absolute only when that root is
	Cflags     []string
	Ldflags    []string
	// Deps names other Units (by Name) this unit must link against, in
	// resolved_target_data's inherited_libraries order.
	Deps []string
	// HardDeps names other Units this unit's build step may not start
	// before, independent of link-time dependency (spec_full's
	// recursive_hard_deps).
	HardDeps []string

	// Pool, when non-empty, is the synthesized concurrency-pool name this
	// unit's build step runs under (e.g. "other_toolchain_other_depth_pool"
	// for a pool //other:depth_pool declared in toolchain other_toolchain).
	// Empty means unpooled. The caller never sets this for the built-in
	// console pool, which is never emitted.
	Pool      string
	PoolDepth int
}

// Plan is every target in a resolved graph a generator should act on, in
// the driver's Sorted() label order.
type Plan struct {
	Units []Unit
}

// Generator is the common interface the three backends implement: turning a
// Plan into either a build-file-plus-invocation (Ninja, VS2022) or into a
// direct incremental build (native).
type Generator interface {
	SetCompiler(cc, cxx string)
	// BuildFile names the file the generator writes under buildDir: the
	// build file Generate produces (Ninja, VS2022), or the native builder's
	// incremental-build state file.
	BuildFile() string
	// Generate returns the build-file contents to write at BuildFile(), or
	// "" if there is nothing to write.
	Generate(plan Plan) (string, error)
	// Invoke runs the actual build (ninja/msbuild subprocess, or the native
	// builder's own compile/link jobs) inside buildDir.
	Invoke(buildDir string, plan Plan) error
}

func isCxxSource(path string) bool {
	for _, ext := range []string{".cc", ".cpp", ".cxx", ".c++", ".mm"} {
		if len(path) > len(ext) && path[len(path)-len(ext):] == ext {
			return true
		}
	}
	return false
}

// IsCxx reports whether path names a C++ (as opposed to C) source file.
func IsCxx(path string) bool { return isCxxSource(path) }
