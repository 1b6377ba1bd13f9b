// Package native implements gen.Generator as a direct incremental Go build
// step, without an intermediate build-file format: it hashes sources with
// SHA-256 to decide what is dirty, compiles with a bounded errgroup pool
// (reporting fan-out progress through msg.ProgressBar), and links/archives,
// persisting the hash cache as JSON across runs. It builds on a
// topologically-ordered gen.Plan whose Ldflags/Cflags already carry the
// resolved graph's transitive link data, rather than a flat dependency-name
// list a caller would have to resolve itself.
package native

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/qobs-build/qgn/internal/gen"
	"github.com/qobs-build/qgn/internal/msg"
	"github.com/qobs-build/qgn/internal/target"
)

// state is the on-disk incremental-build cache for one unit.
type state struct {
	Sources map[string]string `json:"sources,omitempty"`
	Cflags  []string          `json:"cflags,omitempty"`
	Ldflags []string          `json:"ldflags,omitempty"`
}

// Gen implements gen.Generator by compiling and linking directly, with no
// static build file: BuildFile returns the cache filename purely so callers
// can decide where to keep it, not because Generate writes anything a build
// tool would read.
type Gen struct {
	cc, cxx   string
	jobs      int
	buildDir  string
	stateFile string
	cache     map[string]*state
	hashCache map[string]string
}

func New() *Gen {
	return &Gen{cc: "cc", cxx: "c++", jobs: runtime.NumCPU(), cache: make(map[string]*state), hashCache: make(map[string]string)}
}

func (g *Gen) SetCompiler(cc, cxx string) {
	if cc != "" {
		g.cc = cc
	}
	if cxx != "" {
		g.cxx = cxx
	}
}

func (g *Gen) BuildFile() string { return "qgn_native_state.json" }

// Generate is a no-op: the native generator builds directly in Invoke.
func (g *Gen) Generate(plan gen.Plan) (string, error) { return "", nil }

func (g *Gen) fileHash(path string) (string, error) {
	if h, ok := g.hashCache[path]; ok {
		return h, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	sum := hex.EncodeToString(h.Sum(nil))
	g.hashCache[path] = sum
	return sum, nil
}

func outputPath(buildDir string, u gen.Unit) string {
	switch u.OutputType {
	case target.StaticLibrary:
		return filepath.Join(buildDir, "lib"+u.Name+".a")
	case target.SharedLibrary:
		return filepath.Join(buildDir, "lib"+u.Name+".so")
	default:
		return filepath.Join(buildDir, u.Name)
	}
}

func objPath(buildDir, unitName, src string) string {
	return filepath.Join(buildDir, "qgn_obj", unitName+".dir", filepath.Base(src)+".o")
}

func (g *Gen) needsRebuild(u gen.Unit) (bool, error) {
	st, ok := g.cache[u.Name]
	if !ok {
		return true, nil
	}
	if !slices.Equal(st.Cflags, u.Cflags) || !slices.Equal(st.Ldflags, u.Ldflags) {
		return true, nil
	}
	if _, err := os.Stat(outputPath(g.buildDir, u)); os.IsNotExist(err) {
		return true, nil
	}
	for _, src := range u.Sources {
		hash, err := g.fileHash(src)
		if err != nil {
			return true, nil
		}
		if prev, ok := st.Sources[src]; !ok || prev != hash {
			return true, nil
		}
	}
	return false, nil
}

type compileJob struct {
	src, obj, cc string
	cflags       []string
}

func runCompileJob(j compileJob) error {
	if err := os.MkdirAll(filepath.Dir(j.obj), 0o755); err != nil {
		return err
	}
	args := append(append([]string{}, j.cflags...), "-c", j.src, "-o", j.obj)
	cmd := exec.Command(j.cc, args...)
	cmd.Stdout, cmd.Stderr = os.Stdout, os.Stderr
	return cmd.Run()
}

func (g *Gen) link(u gen.Unit, objs, depOutputs []string) error {
	out := outputPath(g.buildDir, u)
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}
	if u.OutputType == target.StaticLibrary {
		os.Remove(out)
		args := append([]string{"rcs", out}, objs...)
		cmd := exec.Command("ar", args...)
		cmd.Stdout, cmd.Stderr = os.Stdout, os.Stderr
		msg.Info("AR %s", out)
		return cmd.Run()
	}
	cc := g.cc
	if hasCxx(u.Sources) {
		cc = g.cxx
	}
	args := append(append(append([]string{}, objs...), depOutputs...), "-o", out)
	args = append(args, u.Ldflags...)
	cmd := exec.Command(cc, args...)
	cmd.Stdout, cmd.Stderr = os.Stdout, os.Stderr
	msg.Info("LINK %s", out)
	return cmd.Run()
}

func hasCxx(sources []string) bool {
	for _, s := range sources {
		if gen.IsCxx(s) {
			return true
		}
	}
	return false
}

func (g *Gen) buildUnit(ctx context.Context, u gen.Unit) error {
	dirty, err := g.needsRebuild(u)
	if err != nil {
		return err
	}
	if !dirty {
		return nil
	}

	var pb *msg.ProgressBar
	var pbMu sync.Mutex
	if len(u.Sources) > 0 {
		pb = msg.NewProgressBar(int64(len(u.Sources)), 2, os.Stdout)
		fmt.Printf("  CC %s (%d files)\n", u.Name, len(u.Sources))
	}

	eg, _ := errgroup.WithContext(ctx)
	eg.SetLimit(g.jobs)
	objs := make([]string, len(u.Sources))
	for i, src := range u.Sources {
		i, src := i, src
		obj := objPath(g.buildDir, u.Name, src)
		objs[i] = obj
		cc := g.cc
		if gen.IsCxx(src) {
			cc = g.cxx
		}
		eg.Go(func() error {
			if err := runCompileJob(compileJob{src: src, obj: obj, cc: cc, cflags: u.Cflags}); err != nil {
				return err
			}
			pbMu.Lock()
			pb.Write([]byte{0})
			pbMu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	if pb != nil {
		pb.Finish()
	}

	if u.OutputType == target.SourceSet || u.OutputType == target.Group || u.OutputType == target.Action {
		return g.updateState(u)
	}

	var depOutputs []string
	for _, depName := range u.Deps {
		depOutputs = append(depOutputs, filepath.Join(g.buildDir, "lib"+depName+".a"))
	}
	if err := g.link(u, objs, depOutputs); err != nil {
		return err
	}
	return g.updateState(u)
}

func (g *Gen) updateState(u gen.Unit) error {
	st := &state{Sources: make(map[string]string), Cflags: u.Cflags, Ldflags: u.Ldflags}
	for _, src := range u.Sources {
		hash, err := g.fileHash(src)
		if err != nil {
			return fmt.Errorf("hashing %s: %w", src, err)
		}
		st.Sources[src] = hash
	}
	g.cache[u.Name] = st
	return nil
}

func (g *Gen) loadState() {
	f, err := os.Open(g.stateFile)
	if err != nil {
		return
	}
	defer f.Close()
	json.NewDecoder(f).Decode(&g.cache)
}

func (g *Gen) saveState() error {
	data, err := json.MarshalIndent(g.cache, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(g.stateFile, data, 0o644)
}

// Invoke compiles and links every unit in plan, honoring each unit's
// HardDeps/Deps: plan order (label order) is re-ordered depth-first so a
// unit is built only after the units it names.
func (g *Gen) Invoke(buildDir string, plan gen.Plan) error {
	g.buildDir = buildDir
	g.stateFile = filepath.Join(buildDir, g.BuildFile())
	if err := os.MkdirAll(buildDir, 0o755); err != nil {
		return err
	}
	g.loadState()

	byName := make(map[string]gen.Unit, len(plan.Units))
	for _, u := range plan.Units {
		byName[u.Name] = u
	}
	var ordered []gen.Unit
	seen := make(map[string]bool)
	var visit func(u gen.Unit)
	visit = func(u gen.Unit) {
		if seen[u.Name] {
			return
		}
		seen[u.Name] = true
		for _, d := range slices.Concat(u.Deps, u.HardDeps) {
			if du, ok := byName[d]; ok {
				visit(du)
			}
		}
		ordered = append(ordered, u)
	}
	for _, u := range plan.Units {
		visit(u)
	}

	ctx := context.Background()
	for _, u := range ordered {
		if err := g.buildUnit(ctx, u); err != nil {
			return fmt.Errorf("building %s: %w", u.Name, err)
		}
	}
	return g.saveState()
}
