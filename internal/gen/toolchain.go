package gen

import (
	"os"
	"os/exec"
)

var (
	commonCCompilers   = []string{"clang", "gcc", "icx", "icc", "tcc", "cl"}
	commonCxxCompilers = []string{"clang++", "g++", "clang", "gcc", "icpx", "icx", "icpc", "icc", "cl"}
)

// DiscoverCompiler finds a suitable C or C++ compiler on the system: $CC or
// $CXX if set, otherwise the first of a short list of common compiler names
// found on PATH. Returns "" if none are found.
func DiscoverCompiler(needCxx bool) string {
	cc := os.Getenv("CC")
	cxx := os.Getenv("CXX")

	if needCxx && cxx != "" {
		return cxx
	}
	if !needCxx && cc != "" {
		return cc
	}
	if cxx != "" {
		return cxx
	}
	if cc != "" {
		return cc
	}

	candidates := commonCCompilers
	if needCxx {
		candidates = commonCxxCompilers
	}
	for _, compiler := range candidates {
		if path, err := exec.LookPath(compiler); err == nil {
			return path
		}
	}
	return ""
}
