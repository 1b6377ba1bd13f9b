package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qobs-build/qgn/internal/msg"
	"github.com/qobs-build/qgn/internal/project"
)

var descCmd = &cobra.Command{
	Use:   "desc [path] <label>",
	Short: "Print a target's resolved transitive data",
	Long:  `Print a target's resolved transitive data: libraries, lib dirs, inherited libraries and hard deps. The textual analogue of the query server's "desc" command.`,
	Args:  cobra.RangeArgs(1, 2),
	Run:   doDesc,
}

func doDesc(cmd *cobra.Command, args []string) {
	root, label := ".", args[0]
	if len(args) == 2 {
		root, label = args[0], args[1]
	}

	p, err := project.Open(root)
	if err != nil {
		msg.Diagnostic(err)
		msg.Fatal("desc failed")
	}

	out, err := p.Desc(label)
	if err != nil {
		msg.Fatal("%v", err)
	}
	fmt.Print(out)
}

func init() {
	rootCmd.AddCommand(descCmd)
}
