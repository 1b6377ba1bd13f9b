// Package ninja emits a build.ninja file from a gen.Plan and shells out to
// the ninja binary to run it, with per-unit cflags/ldflags carrying the
// resolved graph's transitive link data instead of a single global flag set.
package ninja

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/qobs-build/qgn/internal/gen"
	"github.com/qobs-build/qgn/internal/msg"
	"github.com/qobs-build/qgn/internal/target"
)

// Gen implements gen.Generator by writing a build.ninja.
type Gen struct {
	cc, cxx string
}

func New() *Gen { return &Gen{cc: "cc", cxx: "c++"} }

func (g *Gen) SetCompiler(cc, cxx string) {
	if cc != "" {
		g.cc = cc
	}
	if cxx != "" {
		g.cxx = cxx
	}
}

func (g *Gen) BuildFile() string { return "build.ninja" }

// escape escapes ninja's special characters ($, :, space) in a path.
func escape(s string) string {
	r := strings.NewReplacer("$", "$$", ":", "$:", " ", "$ ")
	return r.Replace(s)
}

func objPath(unitName, src string) string {
	return filepath.ToSlash(filepath.Join("qgn_obj", unitName+".dir", filepath.Base(src)+".o"))
}

func outputName(u gen.Unit) string {
	switch u.OutputType {
	case target.StaticLibrary:
		return "lib" + u.Name + ".a"
	case target.SharedLibrary:
		return "lib" + u.Name + ".so"
	case target.Executable:
		return u.Name
	default:
		return u.Name + ".stamp"
	}
}

func (g *Gen) Generate(plan gen.Plan) (string, error) {
	var b strings.Builder
	fmt.Fprintln(&b, "ninja_required_version = 1.10")
	fmt.Fprintf(&b, "cc = %s\n", g.cc)
	fmt.Fprintf(&b, "cxx = %s\n\n", g.cxx)

	fmt.Fprintln(&b, "rule cc")
	fmt.Fprintln(&b, "  command = $cc $cflags -c $in -o $out")
	fmt.Fprintln(&b, "  description = CC $out")
	fmt.Fprintln(&b, "rule cxx")
	fmt.Fprintln(&b, "  command = $cxx $cflags -c $in -o $out")
	fmt.Fprintln(&b, "  description = CXX $out")
	fmt.Fprintln(&b, "rule link")
	fmt.Fprintln(&b, "  command = $cc $in $ldflags -o $out")
	fmt.Fprintln(&b, "  description = LINK $out")
	fmt.Fprintln(&b, "rule ar")
	fmt.Fprintln(&b, "  command = rm -f $out && ar rcs $out $in")
	fmt.Fprintln(&b, "  description = AR $out")
	fmt.Fprintln(&b)

	// Emit each distinct synthesized pool at most once. The built-in
	// console pool is never assigned a Pool name by the caller, so it never
	// reaches this loop.
	seenPools := make(map[string]bool)
	for _, u := range plan.Units {
		if u.Pool == "" || seenPools[u.Pool] {
			continue
		}
		seenPools[u.Pool] = true
		fmt.Fprintf(&b, "pool %s\n", u.Pool)
		fmt.Fprintf(&b, "  depth = %d\n", u.PoolDepth)
	}
	if len(seenPools) > 0 {
		fmt.Fprintln(&b)
	}

	for _, u := range plan.Units {
		var objs []string
		for _, src := range u.Sources {
			obj := objPath(u.Name, src)
			objs = append(objs, obj)
			rule := "cc"
			if gen.IsCxx(src) {
				rule = "cxx"
			}
			fmt.Fprintf(&b, "build %s: %s %s\n", escape(obj), rule, escape(src))
			if len(u.Cflags) > 0 {
				fmt.Fprintf(&b, "  cflags = %s\n", strings.Join(u.Cflags, " "))
			}
			if u.Pool != "" {
				fmt.Fprintf(&b, "  pool = %s\n", u.Pool)
			}
		}

		if u.OutputType == target.Group || u.OutputType == target.Action || u.OutputType == target.SourceSet {
			// Not independently linked; its objects/effects are pulled in by
			// whatever depends on it, matching resolved_target_data's
			// treatment of source_set as link-time-only.
			continue
		}

		out := outputName(u)
		var depOuts []string
		for _, dep := range u.Deps {
			depOuts = append(depOuts, outputName(unitByName(plan, dep)))
		}

		if u.OutputType == target.StaticLibrary {
			fmt.Fprintf(&b, "build %s: ar %s\n", escape(out), strings.Join(quoteAll(objs), " "))
		} else {
			ins := append(append([]string{}, objs...), depOuts...)
			fmt.Fprintf(&b, "build %s: link %s\n", escape(out), strings.Join(quoteAll(ins), " "))
			if len(u.Ldflags) > 0 {
				fmt.Fprintf(&b, "  ldflags = %s\n", strings.Join(u.Ldflags, " "))
			}
			if u.Pool != "" {
				fmt.Fprintf(&b, "  pool = %s\n", u.Pool)
			}
		}
		fmt.Fprintln(&b)
	}

	fmt.Fprintln(&b, "build all: phony "+strings.Join(allOutputs(plan), " "))
	fmt.Fprintln(&b, "default all")
	return b.String(), nil
}

func quoteAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = escape(s)
	}
	return out
}

func unitByName(plan gen.Plan, name string) gen.Unit {
	for _, u := range plan.Units {
		if u.Name == name {
			return u
		}
	}
	return gen.Unit{Name: name}
}

func allOutputs(plan gen.Plan) []string {
	var out []string
	for _, u := range plan.Units {
		if u.OutputType == target.Group || u.OutputType == target.Action || u.OutputType == target.SourceSet {
			continue
		}
		out = append(out, escape(outputName(u)))
	}
	return out
}

// Invoke writes build.ninja under buildDir and runs ninja against it.
func (g *Gen) Invoke(buildDir string, plan gen.Plan) error {
	content, err := g.Generate(plan)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(buildDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(buildDir, g.BuildFile())
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return err
	}

	cmd := exec.Command("ninja", "-C", buildDir)
	cmd.Stdout = &msg.IndentWriter{Indent: "  ", W: os.Stdout}
	cmd.Stderr = &msg.IndentWriter{Indent: "  ", W: os.Stderr}
	return cmd.Run()
}
