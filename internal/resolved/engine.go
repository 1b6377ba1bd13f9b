// Package resolved implements the resolved-target data engine: memoized,
// on-demand computation of transitive link-time and indexing data over an
// already-resolved dependency graph.
//
// An Engine is not safe for concurrent queries against the same instance:
// its memoization cache uses no locking. Callers wanting parallelism
// allocate one Engine per goroutine over the same, shared immutable Graph —
// see engine_test.go's TestConcurrentEnginesAreIndependent for the pattern,
// built on golang.org/x/sync/errgroup.
package resolved

import (
	"github.com/qobs-build/qgn/internal/label"
	"github.com/qobs-build/qgn/internal/target"
)

// Pair is an entry in an ordered dedup list of inherited link-time
// libraries, paired with whether it reached the target via a public edge.
type Pair struct {
	Target   *target.Target
	IsPublic bool
}

// LibInfo is the borrowed-slice result shape of a lib-info query.
type LibInfo struct {
	AllLibDirs []label.SourceDir
	AllLibs    []target.LibFile
}

// FrameworkInfo is the OS X counterpart of LibInfo.
type FrameworkInfo struct {
	AllFrameworkDirs  []label.SourceDir
	AllFrameworks     []string
	AllWeakFrameworks []string
}

// targetInfo is the lazily-built, memoized-once-per-target record. Every
// field is populated by ensureBuilt the first time any getter touches the
// target; later calls return the same slices, satisfying memoization
// correctness: identical by content AND identity.
type targetInfo struct {
	built    bool
	building bool // reentrancy guard; the resolved graph is a DAG so this should never trip

	inheritedLibraries []Pair
	rustInheritedLibs  []Pair

	allLibDirs        []label.SourceDir
	allLibs           []target.LibFile
	allFrameworkDirs  []label.SourceDir
	allFrameworks     []string
	allWeakFrameworks []string

	recursiveHardDeps []*target.Target
}

// Engine computes transitive properties of resolved targets, memoizing per
// target. Multiple Engine instances over the same graph are independent.
type Engine struct {
	cache map[*target.Target]*targetInfo
}

// NewEngine creates an empty engine. The graph it will query is not passed
// at construction time; every getter takes the target(s) to query directly.
func NewEngine() *Engine {
	return &Engine{cache: make(map[*target.Target]*targetInfo)}
}

func (e *Engine) infoFor(t *target.Target) *targetInfo {
	if info, ok := e.cache[t]; ok {
		return info
	}
	info := &targetInfo{}
	e.cache[t] = info
	return info
}

func (e *Engine) ensureBuilt(t *target.Target) *targetInfo {
	info := e.infoFor(t)
	if info.built {
		return info
	}
	if info.building {
		// The driver rejects cycles before any target reaches Resolved, so a
		// resolved graph is always a DAG; this should be unreachable.
		panic("resolved: cycle detected in a supposedly-resolved graph at " + t.Label.String())
	}
	info.building = true

	info.inheritedLibraries = e.buildInheritedLibraries(t, false)
	info.rustInheritedLibs = e.buildInheritedLibraries(t, true)
	info.allLibDirs, info.allLibs = e.buildLibInfo(t, info.inheritedLibraries)
	info.allFrameworkDirs, info.allFrameworks, info.allWeakFrameworks = e.buildFrameworkInfo(t)
	info.recursiveHardDeps = e.buildRecursiveHardDeps(t)

	info.building = false
	info.built = true
	return info
}

// InheritedLibraries returns t's ordered, deduplicated list of link-time
// libraries inherited from its dependency closure.
func (e *Engine) InheritedLibraries(t *target.Target) []Pair {
	return e.ensureBuilt(t).inheritedLibraries
}

// RustTransitiveInheritedLibs returns the same set as InheritedLibraries,
// ordered so a dependency always precedes every one of its dependents —
// the order rustc's linker expects.
func (e *Engine) RustTransitiveInheritedLibs(t *target.Target) []Pair {
	return e.ensureBuilt(t).rustInheritedLibs
}

// AllLibDirs returns t's own lib dirs followed by every inherited target's.
func (e *Engine) AllLibDirs(t *target.Target) []label.SourceDir { return e.ensureBuilt(t).allLibDirs }

// AllLibs returns t's own libs followed by every inherited target's.
func (e *Engine) AllLibs(t *target.Target) []target.LibFile { return e.ensureBuilt(t).allLibs }

// AllFrameworkDirs returns t's framework search dirs across its full
// dependency closure.
func (e *Engine) AllFrameworkDirs(t *target.Target) []label.SourceDir {
	return e.ensureBuilt(t).allFrameworkDirs
}

// AllFrameworks returns t's frameworks across its full dependency closure.
func (e *Engine) AllFrameworks(t *target.Target) []string { return e.ensureBuilt(t).allFrameworks }

// AllWeakFrameworks returns t's weak-linked frameworks across its full
// dependency closure.
func (e *Engine) AllWeakFrameworks(t *target.Target) []string {
	return e.ensureBuilt(t).allWeakFrameworks
}

// RecursiveHardDeps returns the transitive closure of t's hard dependencies:
// targets that must finish building before t's own actions can safely run.
func (e *Engine) RecursiveHardDeps(t *target.Target) []*target.Target {
	return e.ensureBuilt(t).recursiveHardDeps
}

// GetLibInfo bundles AllLibDirs/AllLibs into one borrowed-slice result.
func (e *Engine) GetLibInfo(t *target.Target) LibInfo {
	info := e.ensureBuilt(t)
	return LibInfo{AllLibDirs: info.allLibDirs, AllLibs: info.allLibs}
}

// GetFrameworkInfo bundles the framework getters into one borrowed-slice result.
func (e *Engine) GetFrameworkInfo(t *target.Target) FrameworkInfo {
	info := e.ensureBuilt(t)
	return FrameworkInfo{
		AllFrameworkDirs:  info.allFrameworkDirs,
		AllFrameworks:     info.allFrameworks,
		AllWeakFrameworks: info.allWeakFrameworks,
	}
}
