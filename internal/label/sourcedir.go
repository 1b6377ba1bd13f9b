// Package label implements the canonical identity scheme used throughout the
// resolution core: SourceDir (a normalized, source-rooted directory path)
// and Label (the 4-tuple naming every target, file, and toolchain).
package label

import (
	"path"
	"strings"

	"github.com/qobs-build/qgn/internal/atom"
	"github.com/qobs-build/qgn/internal/errs"
)

// SourceDir is a normalized absolute-within-source directory path. It
// always ends in "/"; a leading "//" denotes the project source root.
// Backed by an atom so equality is by atom identity.
type SourceDir struct {
	a atom.Atom
}

// RootDir is the source root, "//".
var RootDir = SourceDir{a: atom.Intern("//")}

// Null reports whether d carries no value.
func (d SourceDir) Null() bool { return d.a.Null() }

// String returns the canonical form, e.g. "//foo/bar/".
func (d SourceDir) String() string { return d.a.String() }

// Equal compares two SourceDirs by atom identity.
func (d SourceDir) Equal(o SourceDir) bool { return d.a.SameAs(o.a) }

// Less orders SourceDirs lexicographically on their canonical string.
func (d SourceDir) Less(o SourceDir) bool { return d.String() < o.String() }

func (d SourceDir) hash() uint64 { return d.a.Hash() }

// newSourceDir interns an already-canonical "//..." path (must end in "/").
// Used internally once normalization has already happened.
func newSourceDir(canonical string) SourceDir {
	return SourceDir{a: atom.Intern(canonical)}
}

// ResolveSourceDir normalizes dirPart (absolute "//..." or relative) against
// currentDir into a canonical SourceDir. Rejects ".." escapes that leave the
// source root.
func ResolveSourceDir(currentDir SourceDir, dirPart string) (SourceDir, error) {
	if dirPart == "" {
		return currentDir, nil
	}

	var joined string
	if strings.HasPrefix(dirPart, "//") {
		joined = dirPart
	} else {
		base := currentDir.String()
		if base == "" {
			base = "//"
		}
		joined = base + dirPart
	}

	cleaned := cleanSourcePath(joined)
	if !strings.HasPrefix(cleaned, "//") {
		return SourceDir{}, errs.New(errs.ResolveError, errs.Location{}, "path %q escapes the source root", dirPart)
	}

	return newSourceDir(cleaned), nil
}

// cleanSourcePath runs path.Clean on the portion after "//" and restores the
// "//" prefix and trailing slash, detecting root escapes along the way.
func cleanSourcePath(p string) string {
	rest := strings.TrimPrefix(p, "//")
	// path.Clean collapses "a/../.." style escapes; if the result starts
	// with ".." the caller escaped the root.
	cleaned := path.Clean(rest)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return cleaned // caller detects via missing "//" prefix
	}
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "." || cleaned == "" {
		return "//"
	}
	return "//" + cleaned + "/"
}

// LastComponent returns the final path component of d, e.g. "bar" for
// "//foo/bar/". Used to derive a Label's name when none is given.
func (d SourceDir) LastComponent() string {
	s := strings.TrimSuffix(d.String(), "/")
	s = strings.TrimPrefix(s, "//")
	if s == "" {
		return ""
	}
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// TrimSlash strips the trailing "/" for user-visible rendering, e.g.
// "//foo/bar/" -> "//foo/bar".
func (d SourceDir) TrimSlash() string { return strings.TrimSuffix(d.String(), "/") }
