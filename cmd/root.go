// Package cmd implements the qgn command-line surface: build, desc, serve,
// init and new, as cobra subcommands registered onto a shared root.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "qgn",
	Short: "A meta-build system: resolve declared targets, emit low-level build rules",
	Long:  `qgn reads BUILD.qgn.toml declaration files, resolves them into a dependency graph, and generates or runs a build against it.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
