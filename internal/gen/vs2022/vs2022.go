// Package vs2022 emits the minimum Visual Studio 2022 project-file set a
// resolved graph needs to be opened and built: one .vcxproj per linkable
// unit plus a .sln tying them together with google/uuid-generated GUIDs.
// This is a thin consumer of gen.Plan, not a full vcxproj object tree —
// item definition groups, filters and per-configuration property sheets
// are left for a real project to add once it needs them.
package vs2022

import (
	"encoding/xml"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/qobs-build/qgn/internal/gen"
	"github.com/qobs-build/qgn/internal/target"
)

type vcxCompile struct {
	Include string `xml:"Include,attr"`
}

type vcxItemGroup struct {
	ClCompile []vcxCompile `xml:"ClCompile"`
}

type vcxPropertyGroup struct {
	ConfigurationType string `xml:"ConfigurationType"`
}

type vcxProject struct {
	XMLName        xml.Name         `xml:"Project"`
	DefaultTargets string           `xml:"DefaultTargets,attr"`
	ToolsVersion   string           `xml:"ToolsVersion,attr"`
	Xmlns          string           `xml:"xmlns,attr"`
	PropertyGroup  vcxPropertyGroup `xml:"PropertyGroup"`
	ItemGroup      vcxItemGroup     `xml:"ItemGroup"`
}

// Gen implements gen.Generator against Visual Studio 2022.
type Gen struct {
	guids map[string]uuid.UUID
}

func New() *Gen { return &Gen{guids: make(map[string]uuid.UUID)} }

func (g *Gen) SetCompiler(cc, cxx string) {} // MSBuild picks its own toolset

func (g *Gen) BuildFile() string { return "qgn.sln" }

func configurationType(u gen.Unit) string {
	switch u.OutputType {
	case target.StaticLibrary:
		return "StaticLibrary"
	case target.SharedLibrary:
		return "DynamicLibrary"
	default:
		return "Application"
	}
}

func (g *Gen) guidFor(name string) uuid.UUID {
	if id, ok := g.guids[name]; ok {
		return id
	}
	id := uuid.New()
	g.guids[name] = id
	return id
}

func (g *Gen) vcxproj(u gen.Unit) (string, error) {
	proj := vcxProject{
		DefaultTargets: "Build",
		ToolsVersion:   "Current",
		Xmlns:          "http://schemas.microsoft.com/developer/msbuild/2003",
		PropertyGroup:  vcxPropertyGroup{ConfigurationType: configurationType(u)},
	}
	for _, src := range u.Sources {
		proj.ItemGroup.ClCompile = append(proj.ItemGroup.ClCompile, vcxCompile{Include: filepath.ToSlash(src)})
	}
	out, err := xml.MarshalIndent(proj, "", "  ")
	if err != nil {
		return "", err
	}
	return xml.Header + string(out), nil
}

// Generate returns the .sln content tying together one project per linkable
// unit; it writes no files itself (Invoke writes the .sln and each .vcxproj).
func (g *Gen) Generate(plan gen.Plan) (string, error) {
	var sb strings.Builder
	sb.WriteString("Microsoft Visual Studio Solution File, Format Version 12.00\n")
	for _, u := range plan.Units {
		if !u.OutputType.IsLinkable() {
			continue
		}
		guid := g.guidFor(u.Name)
		fmt.Fprintf(&sb, "Project(\"{8BC9CEB8-8B4A-11D0-8D11-00A0C91BC942}\") = \"%s\", \"%s.vcxproj\", \"{%s}\"\n",
			u.Name, u.Name, strings.ToUpper(guid.String()))
		fmt.Fprintln(&sb, "EndProject")
	}
	return sb.String(), nil
}

// Invoke writes the .sln and per-unit .vcxproj files, then shells out to
// msbuild against the solution.
func (g *Gen) Invoke(buildDir string, plan gen.Plan) error {
	if err := os.MkdirAll(buildDir, 0o755); err != nil {
		return err
	}
	sln, err := g.Generate(plan)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(buildDir, g.BuildFile()), []byte(sln), 0o644); err != nil {
		return err
	}
	for _, u := range plan.Units {
		if !u.OutputType.IsLinkable() {
			continue
		}
		content, err := g.vcxproj(u)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(buildDir, u.Name+".vcxproj"), []byte(content), 0o644); err != nil {
			return err
		}
	}

	msbuild, err := exec.LookPath("msbuild")
	if err != nil {
		return fmt.Errorf("vs2022: msbuild not found in PATH: %w", err)
	}
	cmd := exec.Command(msbuild, g.BuildFile())
	cmd.Dir = buildDir
	cmd.Stdout, cmd.Stderr = os.Stdout, os.Stderr
	return cmd.Run()
}
