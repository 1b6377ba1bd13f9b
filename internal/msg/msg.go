package msg

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/qobs-build/qgn/internal/errs"
)

func Error(format string, a ...any) {
	fmt.Print(color.HiRedString("error"))
	fmt.Print(": ")
	fmt.Printf(format, a...)
	fmt.Print("\n")
}

func Warn(format string, a ...any) {
	fmt.Print(color.YellowString("warn"))
	fmt.Print(": ")
	fmt.Printf(format, a...)
	fmt.Print("\n")
}

func Fatal(format string, a ...any) {
	fmt.Print(color.RedString("fatal"))
	fmt.Print(": ")
	fmt.Printf(format, a...)
	fmt.Print("\n")
	os.Exit(1)
}

func Info(format string, a ...any) {
	fmt.Print(color.HiGreenString("info"))
	fmt.Print(": ")
	fmt.Printf(format, a...)
	fmt.Print("\n")
}

// Diagnostic renders err the way the CLI reports core failures: one line per
// *errs.Error, prefixed with its source location when it has one, with the
// kind colored the same as Error. Any other error is printed as a single
// uncategorized line.
func Diagnostic(err error) {
	var multi interface{ Unwrap() []error }
	if errors.As(err, &multi) {
		for _, sub := range multi.Unwrap() {
			Diagnostic(sub)
		}
		return
	}

	var e *errs.Error
	if errors.As(err, &e) {
		loc := e.Location.String()
		kind := color.HiRedString(e.Kind.String())
		if loc != "" {
			fmt.Printf("%s: %s: %s\n", loc, kind, e.Message)
		} else {
			fmt.Printf("%s: %s\n", kind, e.Message)
		}
		if e.Wrapped != nil {
			fmt.Printf("  %s %s\n", color.HiBlackString("caused by:"), e.Wrapped)
		}
		return
	}

	Error("%s", err)
}

type IndentWriter struct {
	Indent    string
	W         io.Writer
	didIndent bool
}

func (w *IndentWriter) Write(p []byte) (n int, err error) {
	for _, c := range p {
		if !w.didIndent {
			w.W.Write([]byte(w.Indent))
			w.didIndent = true
		}
		w.W.Write([]byte{c}) // FIXME-perf: buffer this
		if c == '\n' || c == '\r' {
			w.didIndent = false
		}
	}
	return len(p), nil
}
