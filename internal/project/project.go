// Package project ties the resolution core (internal/graph, internal/resolved)
// to the declaration loader (internal/loader) and the build-plan consumers
// (internal/gen/*) into a single resolve-then-generate pipeline: Open loads
// and resolves a checkout, Find/Desc answer queries against it, and Plan
// flattens it into what a Generator needs to run a build.
package project

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/qobs-build/qgn/internal/atom"
	"github.com/qobs-build/qgn/internal/gen"
	"github.com/qobs-build/qgn/internal/graph"
	"github.com/qobs-build/qgn/internal/label"
	"github.com/qobs-build/qgn/internal/loader"
	"github.com/qobs-build/qgn/internal/resolved"
	"github.com/qobs-build/qgn/internal/target"
)

// DepsDirName is where fetched dependency checkouts are cached, relative to
// a project's root.
const DepsDirName = ".qgn-deps"

// DefaultToolchain is the implicit toolchain every target resolves under
// when a build file names none: a synthetic, file-less label, matching how
// internal/graph.Driver.resolveToolchain never invokes the loader for a
// toolchain's own identity.
func DefaultToolchain() label.Label {
	tcDir, err := label.ResolveSourceDir(label.RootDir, "//build/toolchain/")
	if err != nil {
		panic("project: default toolchain dir must resolve: " + err.Error())
	}
	return label.NewNoToolchain(tcDir, atom.Intern("default"))
}

// Project is one loaded, resolved checkout: a FileLoader over Root plus the
// Graph its top-level targets resolved into.
type Project struct {
	Root   string
	Loader *loader.FileLoader
	Graph  *graph.Graph
	Engine *resolved.Engine
}

// Open loads and resolves every target BUILD.qgn.toml declares directly at
// root's top level (root itself, not recursively — a target elsewhere is
// only pulled in if something at the top level depends on it, exactly as
// the resolution driver's on-demand loader invocation intends).
func Open(root string) (*Project, error) {
	fl, err := loader.NewFileLoader(root, filepath.Join(root, DepsDirName))
	if err != nil {
		return nil, fmt.Errorf("opening loader: %w", err)
	}

	tc := DefaultToolchain()
	declared, err := fl.Load(label.RootDir, tc)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", root, err)
	}

	roots := make([]label.Label, 0, len(declared))
	for _, dt := range declared {
		roots = append(roots, dt.Label)
	}

	driver := graph.NewDriver(fl)
	g, err := driver.ResolveAll(roots)
	if err != nil {
		return nil, err
	}

	return &Project{Root: root, Loader: fl, Graph: g, Engine: resolved.NewEngine()}, nil
}

// Find resolves a user-typed label string (e.g. "//lib:mylib" or ":mylib"
// from the project root) against the root directory and default toolchain,
// then looks it up in the resolved graph.
func (p *Project) Find(raw string) (*target.Target, error) {
	l, err := label.Resolve(label.RootDir, DefaultToolchain(), raw)
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", raw, err)
	}
	t, ok := p.Graph.Lookup(l)
	if !ok {
		return nil, fmt.Errorf("no such target: %s", l.UserVisible(true))
	}
	return t, nil
}

// Desc renders a target's resolved transitive data as text, the shared
// rendering both the "desc" CLI subcommand and the query server's "desc"
// command use.
func (p *Project) Desc(raw string) (string, error) {
	t, err := p.Find(raw)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "target: %s\n", t.Label.UserVisible(true))
	fmt.Fprintf(&b, "type: %s\n", t.OutputType)

	if libs := p.Engine.AllLibs(t); len(libs) > 0 {
		fmt.Fprintln(&b, "libs:")
		for _, l := range libs {
			fmt.Fprintf(&b, "  %s\n", libFileString(l))
		}
	}
	if dirs := p.Engine.AllLibDirs(t); len(dirs) > 0 {
		fmt.Fprintln(&b, "lib_dirs:")
		for _, d := range dirs {
			fmt.Fprintf(&b, "  %s\n", d.String())
		}
	}
	if inherited := p.Engine.InheritedLibraries(t); len(inherited) > 0 {
		fmt.Fprintln(&b, "inherited_libraries:")
		for _, pair := range inherited {
			vis := "private"
			if pair.IsPublic {
				vis = "public"
			}
			fmt.Fprintf(&b, "  %s [%s]\n", pair.Target.Label.UserVisible(true), vis)
		}
	}
	if hard := p.Engine.RecursiveHardDeps(t); len(hard) > 0 {
		fmt.Fprintln(&b, "hard_deps:")
		for _, d := range hard {
			fmt.Fprintf(&b, "  %s\n", d.Label.UserVisible(true))
		}
	}

	return b.String(), nil
}

func libFileString(l target.LibFile) string {
	if l.Path != "" {
		return l.Path
	}
	return "-l" + l.Name
}

// Plan flattens the resolved graph into a gen.Plan: one gen.Unit per
// independently-linked target (executable, shared_library, static_library),
// with source_set dependencies' sources folded directly into every
// dependent that links them. This is a flat sources-per-target model,
// accepting recompilation of shared source_set sources per dependent
// rather than building a multi-target object-file sharing scheme.
func (p *Project) Plan() gen.Plan {
	var units []gen.Unit
	for _, t := range p.Graph.Sorted() {
		switch t.OutputType {
		case target.Executable, target.SharedLibrary, target.StaticLibrary:
		default:
			continue
		}
		units = append(units, p.unitFor(t))
	}
	return gen.Plan{Units: units}
}

func (p *Project) unitFor(t *target.Target) gen.Unit {
	fd, _ := p.Loader.FullDecl(t.Label)
	sources := append([]string{}, fd.Sources...)
	includeDirs := headerDirsSet(fd.Headers)

	var deps, hardDeps []string
	for _, pair := range p.Engine.InheritedLibraries(t) {
		if pair.Target.OutputType == target.SourceSet {
			depFd, _ := p.Loader.FullDecl(pair.Target.Label)
			sources = append(sources, depFd.Sources...)
			for d := range headerDirsSet(depFd.Headers) {
				includeDirs[d] = true
			}
			continue
		}
		deps = append(deps, pair.Target.Label.Name.String())
	}
	for _, h := range p.Engine.RecursiveHardDeps(t) {
		hardDeps = append(hardDeps, h.Label.Name.String())
	}

	cflags := make([]string, 0, len(includeDirs))
	for d := range includeDirs {
		cflags = append(cflags, "-I"+d)
	}
	sort.Strings(cflags)
	for k, v := range fd.Defines {
		if v == "" {
			cflags = append(cflags, "-D"+k)
		} else {
			cflags = append(cflags, "-D"+k+"="+v)
		}
	}

	var ldflags []string
	for _, d := range p.Engine.AllLibDirs(t) {
		ldflags = append(ldflags, "-L"+d.String())
	}
	for _, l := range p.Engine.AllLibs(t) {
		ldflags = append(ldflags, libFileString(l))
	}
	for _, f := range p.Engine.AllFrameworks(t) {
		ldflags = append(ldflags, "-framework", f)
	}
	for _, f := range p.Engine.AllWeakFrameworks(t) {
		ldflags = append(ldflags, "-weak_framework", f)
	}

	return gen.Unit{
		Name:       t.Label.Name.String(),
		OutputType: t.OutputType,
		BaseDir:    p.fsDirFor(t),
		Sources:    sources,
		Cflags:     cflags,
		Ldflags:    ldflags,
		Deps:       deps,
		HardDeps:   hardDeps,
	}
}

func (p *Project) fsDirFor(t *target.Target) string {
	rel := strings.TrimPrefix(t.Label.Dir.String(), "//")
	return filepath.Join(p.Root, filepath.FromSlash(rel))
}

func headerDirsSet(headers []string) map[string]bool {
	dirs := make(map[string]bool)
	for _, h := range headers {
		dirs[filepath.Dir(h)] = true
	}
	return dirs
}
