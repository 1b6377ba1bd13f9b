package cmd

import (
	"github.com/spf13/cobra"

	"github.com/qobs-build/qgn/internal/msg"
	"github.com/qobs-build/qgn/internal/project"
	"github.com/qobs-build/qgn/internal/server"
)

var flagSocket string

var serveCmd = &cobra.Command{
	Use:   "serve [path]",
	Short: "Start the query server over the package rooted at path",
	Long:  `Resolve the package rooted at path once, then serve "desc" queries against it over a Unix-domain socket until killed.`,
	Args:  cobra.MaximumNArgs(1),
	Run:   doServe,
}

func doServe(cmd *cobra.Command, args []string) {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}

	p, err := project.Open(root)
	if err != nil {
		msg.Diagnostic(err)
		msg.Fatal("serve failed: could not resolve %s", root)
	}

	s := server.New(flagSocket, p.Desc)
	msg.Fatal("%v", s.ListenAndServe())
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&flagSocket, "socket", "qgn.sock", "Unix-domain socket path to listen on")
}
