package cmd

import (
	"github.com/spf13/cobra"

	"github.com/qobs-build/qgn/internal/gen"
	"github.com/qobs-build/qgn/internal/gen/native"
	"github.com/qobs-build/qgn/internal/gen/ninja"
	"github.com/qobs-build/qgn/internal/gen/vs2022"
	"github.com/qobs-build/qgn/internal/msg"
	"github.com/qobs-build/qgn/internal/project"
)

var flagGenerator = NewEnumValue("native", map[string]string{
	"native": "Compile and link directly, incrementally (default)",
	"ninja":  "Generate a build.ninja file and invoke ninja",
	"vs2022": "Generate Visual Studio 2022 project files and invoke msbuild",
})

var flagCC, flagCXX string

var buildCmd = &cobra.Command{
	Use:   "build [path]",
	Short: "Resolve and build the package rooted at path",
	Long:  `Resolve and build the package rooted at path. If no path is given, uses "."`,
	Args:  cobra.MaximumNArgs(1),
	Run:   doBuild,
}

func generatorFor(name string) gen.Generator {
	switch name {
	case "ninja":
		return ninja.New()
	case "vs2022":
		return vs2022.New()
	default:
		return native.New()
	}
}

func doBuild(cmd *cobra.Command, args []string) {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}

	p, err := project.Open(root)
	if err != nil {
		msg.Diagnostic(err)
		msg.Fatal("build failed")
	}

	cc, cxx := flagCC, flagCXX
	if cc == "" {
		cc = gen.DiscoverCompiler(false)
	}
	if cxx == "" {
		cxx = gen.DiscoverCompiler(true)
	}

	g := generatorFor(flagGenerator.Value())
	g.SetCompiler(cc, cxx)

	if err := g.Invoke(root+"/build", p.Plan()); err != nil {
		msg.Fatal("%v", err)
	}
	msg.Info("build finished")
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().VarP(&flagGenerator, "gen", "g", "Generator to build with, one of "+flagGenerator.HelpString())
	buildCmd.RegisterFlagCompletionFunc("gen", flagGenerator.CompletionFunc())
	buildCmd.Flags().StringVar(&flagCC, "cc", "", "C compiler to use (default: $CC, else $CXX, else the first found on PATH)")
	buildCmd.Flags().StringVar(&flagCXX, "cxx", "", "C++ compiler to use (default: $CXX, else $CC, else the first found on PATH)")
}
