// Package workspace maps grammar names to their canonical locations in a
// grammatic repository. It composes paths only; existence is checked by
// package preflight.
package workspace

import (
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/grammatic/grammatic/pkg/failure"
	"github.com/grammatic/grammatic/pkg/logger"
)

var workspaceLog = logger.New("workspace:workspace")

var grammarNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

const (
	GrammarsDir     = "grammars"
	BuildDir        = "build"
	LogsDir         = "logs"
	BuildsStream    = "builds.jsonl"
	ParsesStream    = "parses.jsonl"
	ConfigFile      = "grammatic.yaml"
	GrammarFileName = "grammar.js"
	ParserFileName  = "parser.c"
)

// Layout is the set of repository-level paths.
type Layout struct {
	Root string
}

// NewLayout returns the layout rooted at root, made absolute.
func NewLayout(root string) (Layout, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return Layout{}, fmt.Errorf("failed to resolve repository root %q: %w", root, err)
	}
	return Layout{Root: abs}, nil
}

func (l Layout) GrammarsRoot() string { return filepath.Join(l.Root, GrammarsDir) }
func (l Layout) BuildRoot() string    { return filepath.Join(l.Root, BuildDir) }
func (l Layout) LogsRoot() string     { return filepath.Join(l.Root, LogsDir) }
func (l Layout) BuildsLog() string    { return filepath.Join(l.LogsRoot(), BuildsStream) }
func (l Layout) ParsesLog() string    { return filepath.Join(l.LogsRoot(), ParsesStream) }
func (l Layout) ConfigPath() string   { return filepath.Join(l.Root, ConfigFile) }

// Grammar is the resolved identity of one grammar. It is a value; nothing
// about it is persisted.
type Grammar struct {
	Name                string
	SourceDir           string
	SrcDir              string
	GrammarFile         string
	GeneratedParserPath string
	CorpusDir           string
	BuildDir            string
	BuildArtifactPath   string
}

// ValidateName reports whether name is an acceptable grammar name. It runs
// before any path is built so names like "../x" never reach the filesystem.
func ValidateName(name string) error {
	if !grammarNamePattern.MatchString(name) {
		workspaceLog.Printf("Rejected grammar name: %q", name)
		return failure.New(failure.InvalidName,
			fmt.Sprintf("invalid grammar name %q: only letters, digits, '-' and '_' are allowed", name),
			"use a name such as 'json' or 'my_lang'")
	}
	return nil
}

// SharedLibraryExt returns the shared-library extension for goos. Platforms
// the toolchain cannot build for get "so"; the toolchain selector rejects
// them before anything is compiled.
func SharedLibraryExt(goos string) string {
	if goos == "darwin" {
		return "dylib"
	}
	return "so"
}

// Resolve validates name and derives every path for it under l.
func (l Layout) Resolve(name, goos string) (Grammar, error) {
	if err := ValidateName(name); err != nil {
		return Grammar{}, err
	}

	sourceDir := filepath.Join(l.GrammarsRoot(), name)
	srcDir := filepath.Join(sourceDir, "src")
	buildDir := filepath.Join(l.BuildRoot(), name)

	g := Grammar{
		Name:                name,
		SourceDir:           sourceDir,
		SrcDir:              srcDir,
		GrammarFile:         filepath.Join(sourceDir, GrammarFileName),
		GeneratedParserPath: filepath.Join(srcDir, ParserFileName),
		CorpusDir:           filepath.Join(sourceDir, "test", "corpus"),
		BuildDir:            buildDir,
		BuildArtifactPath:   filepath.Join(buildDir, name+"."+SharedLibraryExt(goos)),
	}
	workspaceLog.Printf("Resolved grammar %s: source=%s artifact=%s", name, g.SourceDir, g.BuildArtifactPath)
	return g, nil
}

// Resolve is a convenience for Layout{Root: repoRoot}.Resolve.
func Resolve(repoRoot, name, goos string) (Grammar, error) {
	return Layout{Root: repoRoot}.Resolve(name, goos)
}
