// Package preflight checks that a grammar is ready for an operation before
// any external tool is spawned.
package preflight

import (
	"fmt"
	"os"

	"github.com/grammatic/grammatic/pkg/failure"
	"github.com/grammatic/grammatic/pkg/logger"
	"github.com/grammatic/grammatic/pkg/workspace"
)

var preflightLog = logger.New("preflight:preflight")

// Operation is one of the lifecycle operations.
type Operation string

const (
	Generate    Operation = "generate"
	Build       Operation = "build"
	TestGrammar Operation = "test"
	Doctor      Operation = "doctor"
	Parse       Operation = "parse"
)

// Options carries operation-specific inputs to the checks.
type Options struct {
	// RequireBuild makes doctor insist on an existing build artifact.
	RequireBuild bool
	// Source is the file to parse.
	Source string
}

// Check is one predicate paired with the failure it produces.
type Check struct {
	Name        string
	Kind        failure.Kind
	Applies     func(op Operation, opts Options) bool
	Pass        func(g workspace.Grammar, opts Options) bool
	Message     func(g workspace.Grammar, opts Options) string
	Remediation func(g workspace.Grammar) string
}

func ops(list ...Operation) func(Operation, Options) bool {
	return func(op Operation, _ Options) bool {
		for _, o := range list {
			if o == op {
				return true
			}
		}
		return false
	}
}

// Checks is the ordered checklist. The first applicable failing check wins.
var Checks = []Check{
	{
		Name:    "source-dir",
		Kind:    failure.GrammarNotFound,
		Applies: ops(Generate, Build, TestGrammar, Doctor, Parse),
		Pass:    func(g workspace.Grammar, _ Options) bool { return isDir(g.SourceDir) },
		Message: func(g workspace.Grammar, _ Options) string {
			return fmt.Sprintf("grammar '%s' not found at %s", g.Name, g.SourceDir)
		},
		Remediation: func(g workspace.Grammar) string {
			return fmt.Sprintf("add the grammar sources under grammars/%s", g.Name)
		},
	},
	{
		Name:    "grammar-file",
		Kind:    failure.GrammarNotFound,
		Applies: ops(Generate),
		Pass:    func(g workspace.Grammar, _ Options) bool { return isFile(g.GrammarFile) },
		Message: func(g workspace.Grammar, _ Options) string {
			return fmt.Sprintf("grammar '%s' has no %s", g.Name, workspace.GrammarFileName)
		},
		Remediation: func(g workspace.Grammar) string {
			return fmt.Sprintf("create grammars/%s/%s", g.Name, workspace.GrammarFileName)
		},
	},
	{
		Name:    "generated-parser",
		Kind:    failure.ParserNotGenerated,
		Applies: ops(Build, TestGrammar, Doctor, Parse),
		Pass:    func(g workspace.Grammar, _ Options) bool { return isFile(g.GeneratedParserPath) },
		Message: func(g workspace.Grammar, _ Options) string {
			return fmt.Sprintf("parser not generated for grammar '%s'", g.Name)
		},
		Remediation: func(g workspace.Grammar) string {
			return fmt.Sprintf("grammatic generate %s", g.Name)
		},
	},
	{
		Name:    "corpus",
		Kind:    failure.CorpusMissing,
		Applies: ops(TestGrammar, Doctor),
		Pass:    func(g workspace.Grammar, _ Options) bool { return isNonEmptyDir(g.CorpusDir) },
		Message: func(g workspace.Grammar, _ Options) string {
			return fmt.Sprintf("no corpus tests for grammar '%s' in %s", g.Name, g.CorpusDir)
		},
		Remediation: func(g workspace.Grammar) string {
			return fmt.Sprintf("add corpus tests under grammars/%s/test/corpus", g.Name)
		},
	},
	{
		Name: "build-artifact",
		Kind: failure.BuildArtifactMissing,
		Applies: func(op Operation, opts Options) bool {
			return op == TestGrammar || op == Parse || (op == Doctor && opts.RequireBuild)
		},
		Pass: func(g workspace.Grammar, _ Options) bool { return isFile(g.BuildArtifactPath) },
		Message: func(g workspace.Grammar, _ Options) string {
			return fmt.Sprintf("build artifact missing for grammar '%s' at %s", g.Name, g.BuildArtifactPath)
		},
		Remediation: func(g workspace.Grammar) string {
			return fmt.Sprintf("grammatic build %s", g.Name)
		},
	},
	{
		Name:    "parse-source",
		Kind:    failure.ValidationError,
		Applies: ops(Parse),
		Pass:    func(_ workspace.Grammar, opts Options) bool { return isFile(opts.Source) },
		Message: func(_ workspace.Grammar, opts Options) string {
			return fmt.Sprintf("source file not found: %s", opts.Source)
		},
		Remediation: func(workspace.Grammar) string {
			return "pass an existing file to parse"
		},
	},
}

// Validate runs Checks for op and returns the first failure, or nil.
func Validate(g workspace.Grammar, op Operation, opts Options) *failure.Outcome {
	for _, c := range Checks {
		if !c.Applies(op, opts) {
			continue
		}
		if c.Pass(g, opts) {
			preflightLog.Printf("%s/%s: %s ok", g.Name, op, c.Name)
			continue
		}
		preflightLog.Printf("%s/%s: %s failed", g.Name, op, c.Name)
		return failure.New(c.Kind, c.Message(g, opts), c.Remediation(g))
	}
	return nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isFile(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func isNonEmptyDir(path string) bool {
	entries, err := os.ReadDir(path)
	return err == nil && len(entries) > 0
}
