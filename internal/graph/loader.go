package graph

import (
	"github.com/qobs-build/qgn/internal/label"
	"github.com/qobs-build/qgn/internal/target"
)

// DeclaredTarget is what the external build-file loader hands back for one
// target: unresolved label references as raw strings, plus the directory
// and toolchain context they must be resolved against.
type DeclaredTarget struct {
	Label          label.Label // already resolved: this target's own identity
	OutputType     target.OutputType
	Deps           []string
	PublicDeps     []string
	DataDeps       []string
	Libs           []target.LibFile
	LibDirs        []string
	Frameworks     []string
	FrameworkDirs  []string
	WeakFrameworks []string
	PublicHeaders  []string
	HardDep        bool
	Outputs        []string
	// Visibility restricts which labels may take this target as a
	// public_dep, as raw unresolved label patterns; nil means unrestricted.
	// "*" as a name component matches any name in that directory.
	Visibility       []string
	CurrentDir       label.SourceDir
	CurrentToolchain label.Label
}

// Loader is the external collaborator: parses and declares
// the build file defining a given directory, idempotently per path.
type Loader interface {
	// Load parses the build file governing dir under toolchain and returns
	// every target it declares.
	Load(dir label.SourceDir, toolchain label.Label) ([]DeclaredTarget, error)
}
