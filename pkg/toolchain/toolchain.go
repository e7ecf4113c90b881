// Package toolchain decides how a grammar's generated parser is compiled
// into a shared library on the host platform.
package toolchain

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/grammatic/grammatic/pkg/failure"
	"github.com/grammatic/grammatic/pkg/logger"
)

var toolchainLog = logger.New("toolchain:toolchain")

// Compilers names the native compilers to choose between.
type Compilers struct {
	C   string
	CXX string
}

// DefaultCompilers are used when no configuration overrides them.
var DefaultCompilers = Compilers{C: "gcc", CXX: "g++"}

// Selection is the outcome of Select.
type Selection struct {
	Compiler string
	// Language is "c" or "c++".
	Language string
	// ScannerSource is the absolute path of the external scanner, or empty
	// for a parser-only build.
	ScannerSource string
	LinkFlag      string
}

type platform struct {
	linkFlag string
}

var platforms = map[string]platform{
	"linux":  {linkFlag: "-shared"},
	"darwin": {linkFlag: "-dynamiclib"},
}

// Supported reports whether shared libraries can be built on goos.
func Supported(goos string) bool {
	_, ok := platforms[goos]
	return ok
}

// Select inspects srcDir for an external scanner and picks a compiler and
// link flag for goos. A C++ scanner takes precedence over a C scanner when
// both are present.
func Select(srcDir, goos string, compilers Compilers) (Selection, error) {
	p, ok := platforms[goos]
	if !ok {
		toolchainLog.Printf("Unsupported platform: %s", goos)
		return Selection{}, failure.New(failure.UnsupportedPlatform,
			fmt.Sprintf("building shared libraries is not supported on %s", goos),
			"build on linux or darwin")
	}

	if compilers.C == "" {
		compilers.C = DefaultCompilers.C
	}
	if compilers.CXX == "" {
		compilers.CXX = DefaultCompilers.CXX
	}

	sel := Selection{Compiler: compilers.C, Language: "c", LinkFlag: p.linkFlag}
	switch {
	case fileExists(filepath.Join(srcDir, "scanner.cc")):
		sel.Compiler = compilers.CXX
		sel.Language = "c++"
		sel.ScannerSource = filepath.Join(srcDir, "scanner.cc")
	case fileExists(filepath.Join(srcDir, "scanner.c")):
		sel.ScannerSource = filepath.Join(srcDir, "scanner.c")
	}

	toolchainLog.Printf("Selected %s (%s) scanner=%q flag=%s", sel.Compiler, sel.Language, sel.ScannerSource, sel.LinkFlag)
	return sel, nil
}

// Args returns the compiler arguments producing output from parser and the
// selected scanner, with includeDir on the header search path.
func (s Selection) Args(includeDir, parser, output string) []string {
	args := []string{s.LinkFlag, "-fPIC", "-O2", "-I" + includeDir, parser}
	if s.ScannerSource != "" {
		args = append(args, s.ScannerSource)
	}
	return append(args, "-o", output)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
