package loader

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/qobs-build/qgn/internal/atom"
	"github.com/qobs-build/qgn/internal/graph"
	"github.com/qobs-build/qgn/internal/label"
	"github.com/qobs-build/qgn/internal/target"
)

var outputTypes = map[string]target.OutputType{
	"executable":     target.Executable,
	"shared_library": target.SharedLibrary,
	"static_library": target.StaticLibrary,
	"source_set":     target.SourceSet,
	"action":         target.Action,
	"action_foreach": target.ActionForeach,
	"copy":           target.Copy,
	"group":          target.Group,
	"generated_file": target.GeneratedFile,
	"bundle_data":    target.BundleData,
	"create_bundle":  target.CreateBundle,
}

func parseOutputType(s string) (target.OutputType, error) {
	if ot, ok := outputTypes[s]; ok {
		return ot, nil
	}
	return 0, fmt.Errorf("unrecognized target type %q", s)
}

// expandGlobs resolves a target's sources/headers patterns against fsDir (the
// real filesystem directory backing dir) into concrete file paths, files
// only.
func expandGlobs(fsDir string, patterns []string) ([]string, error) {
	fsys := os.DirFS(fsDir)
	var out []string
	for _, pat := range patterns {
		matches, err := doublestar.Glob(fsys, pat, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("globbing %q: %w", pat, err)
		}
		for _, m := range matches {
			out = append(out, filepath.ToSlash(filepath.Join(fsDir, m)))
		}
	}
	return out, nil
}

// FullDecl is everything a BUILD.qgn.toml target carries beyond what the
// resolution core needs: compile inputs and flags the generators
// (internal/gen/ninja, internal/gen/native, internal/gen/vs2022) consume
// once the core has resolved the dependency graph around it.
type FullDecl struct {
	Label      label.Label
	Sources    []string
	Headers    []string
	Defines    map[string]string
	Visibility []string
}

// convertTarget turns one parsed TargetDecl into a graph.DeclaredTarget plus
// its FullDecl counterpart, resolving its own Label against dir/toolchain
// and glob-expanding its source and header patterns against fsDir.
func convertTarget(name string, decl TargetDecl, dir label.SourceDir, toolchain label.Label, fsDir string) (graph.DeclaredTarget, FullDecl, error) {
	ot, err := parseOutputType(decl.Type)
	if err != nil {
		return graph.DeclaredTarget{}, FullDecl{}, fmt.Errorf("target %q: %w", name, err)
	}

	lbl := label.New(dir, atom.Intern(name), toolchain.Dir, toolchain.Name)

	sources, err := expandGlobs(fsDir, decl.Sources)
	if err != nil {
		return graph.DeclaredTarget{}, FullDecl{}, fmt.Errorf("target %q: %w", name, err)
	}
	headers, err := expandGlobs(fsDir, decl.Headers)
	if err != nil {
		return graph.DeclaredTarget{}, FullDecl{}, fmt.Errorf("target %q: %w", name, err)
	}
	publicHeaders := decl.PublicHeaders
	if publicHeaders == nil && len(headers) > 0 {
		publicHeaders = headers
	}

	libs := make([]target.LibFile, 0, len(decl.Libs))
	for _, l := range decl.Libs {
		libs = append(libs, target.LibFile{Name: l.Name, Path: l.Path})
	}

	dt := graph.DeclaredTarget{
		Label:            lbl,
		OutputType:       ot,
		Deps:             decl.Deps,
		PublicDeps:       decl.PublicDeps,
		DataDeps:         decl.DataDeps,
		Libs:             libs,
		LibDirs:          decl.LibDirs,
		Frameworks:       decl.Frameworks,
		FrameworkDirs:    decl.FrameworkDirs,
		WeakFrameworks:   decl.WeakFrameworks,
		PublicHeaders:    publicHeaders,
		HardDep:          decl.HardDep,
		Outputs:          decl.Outputs,
		Visibility:       decl.Visibility,
		CurrentDir:       dir,
		CurrentToolchain: toolchain,
	}

	fd := FullDecl{
		Label:      lbl,
		Sources:    sources,
		Headers:    headers,
		Defines:    decl.Defines,
		Visibility: decl.Visibility,
	}

	return dt, fd, nil
}
