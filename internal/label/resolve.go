package label

import (
	"strings"

	"github.com/qobs-build/qgn/internal/atom"
	"github.com/qobs-build/qgn/internal/errs"
)

// Resolve parses the label grammar:
//
//	label := [//abs_dir | rel_dir] [ ':' name ] [ '(' toolchain_label ')' ]
//
// currentToolchain is inherited when the input omits a toolchain suffix.
func Resolve(currentDir SourceDir, currentToolchain Label, input string) (Label, error) {
	return resolve(currentDir, currentToolchain, input, true)
}

// resolveToolchain parses a toolchain label with no current toolchain
// context; it must not itself carry a toolchain suffix.
func resolveToolchain(currentDir SourceDir, input string) (Label, error) {
	return resolve(currentDir, Label{}, input, false)
}

func resolve(currentDir SourceDir, currentToolchain Label, input string, allowToolchainSuffix bool) (Label, error) {
	if input == "" {
		return Label{}, errs.New(errs.ParseError, errs.Location{}, "empty label")
	}

	rest, toolchainPart, hasToolchain, err := splitToolchainSuffix(input)
	if err != nil {
		return Label{}, err
	}
	if hasToolchain && !allowToolchainSuffix {
		return Label{}, errs.New(errs.ParseError, errs.Location{}, "nested toolchain in %q", input)
	}

	dirPart, namePart := splitNameSuffix(rest)

	dir, err := ResolveSourceDir(currentDir, dirPart)
	if err != nil {
		return Label{}, err
	}

	if namePart == "" {
		namePart = dir.LastComponent()
		if namePart == "" {
			return Label{}, errs.New(errs.ParseError, errs.Location{}, "cannot derive target name from %q", input)
		}
	}
	name := atom.Intern(namePart)

	if !hasToolchain {
		if currentToolchain.Null() {
			return NewNoToolchain(dir, name), nil
		}
		return New(dir, name, currentToolchain.Dir, currentToolchain.Name), nil
	}

	tc, err := resolveToolchain(currentDir, toolchainPart)
	if err != nil {
		return Label{}, err
	}
	return New(dir, name, tc.Dir, tc.Name), nil
}

// splitToolchainSuffix splits off a "(...)" toolchain suffix at the
// outermost parens.
func splitToolchainSuffix(input string) (rest, toolchain string, has bool, err error) {
	if !strings.HasSuffix(input, ")") {
		return input, "", false, nil
	}
	open := strings.IndexByte(input, '(')
	if open < 0 {
		return "", "", false, errs.New(errs.ParseError, errs.Location{}, "unbalanced parens in %q", input)
	}
	return input[:open], input[open+1 : len(input)-1], true, nil
}

// splitNameSuffix splits rest at its first ':' into a dir part and a name part.
func splitNameSuffix(rest string) (dirPart, namePart string) {
	if i := strings.IndexByte(rest, ':'); i >= 0 {
		return rest[:i], rest[i+1:]
	}
	return rest, ""
}
