// Package loader implements graph.Loader against BUILD.qgn.toml declaration
// files: one TOML document per directory, parsed with pelletier/go-toml/v2,
// with expr-lang/expr conditional sections and {{ }} interpolation, and
// doublestar-expanded source/header globs.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/qobs-build/qgn/internal/errs"
	"github.com/qobs-build/qgn/internal/fetch"
	"github.com/qobs-build/qgn/internal/graph"
	"github.com/qobs-build/qgn/internal/label"
)

// BuildFilename is the declaration file loaded once per directory.
const BuildFilename = "BUILD.qgn.toml"

// FileLoader implements graph.Loader by reading BuildFilename out of the
// filesystem directory Root corresponds to "//". Dependencies declared in a
// file's [dependencies] table are fetched (via internal/fetch) into
// DepsCacheDir and mounted at "//third_party/<name>/" for subsequent Load
// calls to resolve into.
type FileLoader struct {
	Root         string
	DepsCacheDir string

	mu       sync.Mutex
	resolver *fetch.Resolver
	mounts   map[string]string // "//third_party/<name>/" -> real fs path
	fullDecl map[label.Label]FullDecl
}

func NewFileLoader(root, depsCacheDir string) (*FileLoader, error) {
	r, err := fetch.OpenResolver(depsCacheDir)
	if err != nil {
		return nil, err
	}
	return &FileLoader{
		Root:         root,
		DepsCacheDir: depsCacheDir,
		resolver:     r,
		mounts:       make(map[string]string),
		fullDecl:     make(map[label.Label]FullDecl),
	}, nil
}

// fsPath maps a canonical SourceDir onto a real filesystem directory,
// checking dependency mounts (longest prefix match) before falling back to
// Root.
func (fl *FileLoader) fsPath(dir label.SourceDir) string {
	canon := dir.String()
	fl.mu.Lock()
	defer fl.mu.Unlock()

	var bestPrefix, bestPath string
	for prefix, real := range fl.mounts {
		if strings.HasPrefix(canon, prefix) && len(prefix) > len(bestPrefix) {
			bestPrefix, bestPath = prefix, real
		}
	}
	if bestPrefix != "" {
		rel := strings.TrimPrefix(canon, bestPrefix)
		return filepath.Join(bestPath, filepath.FromSlash(rel))
	}

	rel := strings.TrimPrefix(canon, "//")
	return filepath.Join(fl.Root, filepath.FromSlash(rel))
}

// Load implements graph.Loader.
func (fl *FileLoader) Load(dir label.SourceDir, toolchain label.Label) ([]graph.DeclaredTarget, error) {
	fsDir := fl.fsPath(dir)
	path := filepath.Join(fsDir, BuildFilename)

	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.LoaderFailure, errs.Location{File: path}, err,
			"opening %s", BuildFilename)
	}
	defer f.Close()

	env := NewEnv(dir.String())
	targets, deps, err := parseFile(f, env)
	if err != nil {
		return nil, errs.Wrap(errs.ParseError, errs.Location{File: path}, err, "parsing %s", path)
	}

	if err := fl.mountDependencies(deps); err != nil {
		return nil, err
	}

	out := make([]graph.DeclaredTarget, 0, len(targets))
	for name, decl := range targets {
		dt, fd, err := convertTarget(name, decl, dir, toolchain, fsDir)
		if err != nil {
			return nil, errs.Wrap(errs.ParseError, errs.Location{File: path}, err,
				"target %q in %s", name, path)
		}
		out = append(out, dt)

		fl.mu.Lock()
		fl.fullDecl[dt.Label] = fd
		fl.mu.Unlock()
	}
	return out, nil
}

// mountDependencies fetches every not-yet-seen dependency and mounts it at
// "//third_party/<name>/" for later Load calls to resolve labels into.
func (fl *FileLoader) mountDependencies(deps map[string]string) error {
	for name, spec := range deps {
		mountKey := "//third_party/" + name + "/"

		fl.mu.Lock()
		_, mounted := fl.mounts[mountKey]
		fl.mu.Unlock()
		if mounted {
			continue
		}

		path, err := fl.resolver.Resolve(name, spec)
		if err != nil {
			return fmt.Errorf("fetching dependency %q: %w", name, err)
		}

		fl.mu.Lock()
		fl.mounts[mountKey] = path
		fl.mu.Unlock()
	}
	return nil
}

// FullDecl returns the compile-time declaration (sources, headers, defines)
// for a target this loader has already loaded, for the generators to
// consume once the core has finished resolving the graph around it.
func (fl *FileLoader) FullDecl(l label.Label) (FullDecl, bool) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	fd, ok := fl.fullDecl[l]
	return fd, ok
}
