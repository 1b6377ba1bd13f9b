// qgn init [name], qgn new [path]
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/qobs-build/qgn/internal/loader"
	"github.com/qobs-build/qgn/internal/msg"
)

func writefile(content string, elem ...string) {
	path := filepath.Join(elem...)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err = os.WriteFile(path, []byte(content), 0o644); err != nil {
			msg.Fatal("create file %s: %v", path, err)
		}
		fmt.Printf("%s file: %s\n", color.HiGreenString("Created"), filepath.ToSlash(path))
	}
}

func mkdir(elem ...string) {
	path := filepath.Join(elem...)
	if err := os.MkdirAll(path, 0o755); err != nil {
		msg.Fatal("mkdir %s: %v", path, err)
	}
}

func getProgramName() string {
	if len(os.Args) == 0 {
		return "qgn"
	}
	basename := filepath.Base(os.Args[0])
	return strings.TrimSuffix(basename, filepath.Ext(basename))
}

// initIn scaffolds a new BUILD.qgn.toml package in an existing directory.
func initIn(dir, name string, lib bool) {
	if lib {
		writefile(`[target.`+name+`]
type = "static_library"
sources = ["src/**.c", "src/**.cc"]
public_headers = ["src/**.h"]

[dependencies]
`, dir, loader.BuildFilename)
	} else {
		writefile(`[target.`+name+`]
type = "executable"
sources = ["src/**.c", "src/**.cc"]

[dependencies]
`, dir, loader.BuildFilename)
	}

	mkdir(dir, "src")

	if lib {
		writefile(`#include <stdio.h>
#include "hello_world.h"

void hello_world() {
    puts("Hello, World!");
}
`, dir, "src", "hello_world.c")

		writefile(`#ifndef HELLOWORLD_H
#define HELLOWORLD_H

#ifdef __cplusplus
extern "C" {
#endif

void hello_world();

#ifdef __cplusplus
} // extern "C"
#endif

#endif
`, dir, "src", "hello_world.h")
	} else {
		writefile(`#include <stdio.h>

int main(void) {
    puts("Hello, World!");
    return 0;
}
`, dir, "src", "main.c")
	}

	writefile(`build/
.qgn-deps/
`, dir, ".gitignore")

	programName := getProgramName()
	fmt.Printf("You can now do %s to build.\n", color.HiCyanString(programName+" build "+dir))
}

var library bool

var initCmd = &cobra.Command{
	Use:   "init [name]",
	Short: "Create a new package in the current directory",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		initIn(".", args[0], library)
	},
}

var newCmd = &cobra.Command{
	Use:   "new [path]",
	Short: "Create a new package in a new directory",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		mkdir(args[0])
		initIn(args[0], filepath.Base(args[0]), library)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVarP(&library, "lib", "l", false, "Create a library target")

	rootCmd.AddCommand(newCmd)
	newCmd.Flags().BoolVarP(&library, "lib", "l", false, "Create a library target")
}
