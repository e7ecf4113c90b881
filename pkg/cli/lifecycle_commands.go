package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/grammatic/grammatic/pkg/console"
	"github.com/grammatic/grammatic/pkg/logger"
	"github.com/grammatic/grammatic/pkg/preflight"
	"github.com/grammatic/grammatic/pkg/workflow"
	"github.com/spf13/cobra"
)

var lifecycleLog = logger.New("cli:lifecycle")

// NewGenerateCommand creates the generate command
func NewGenerateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "generate <grammar>",
		Short: "Generate the C parser for a grammar",
		Long: `Run the grammar compiler's generate step for grammars/<grammar>/grammar.js,
producing grammars/<grammar>/src/parser.c.

Examples:
  grammatic generate json
  grammatic generate json --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunGenerate(cmd.Context(), globalOptions(cmd), args[0])
		},
	}
}

// NewBuildCommand creates the build command
func NewBuildCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "build <grammar>",
		Short: "Compile a generated grammar into a shared library",
		Long: `Compile grammars/<grammar>/src/parser.c, plus scanner.cc or scanner.c when
present, into build/<grammar>/<grammar>.so (.dylib on macOS).

A C++ scanner selects the C++ compiler; otherwise the C compiler is used.

Examples:
  grammatic build json
  grammatic build ruby --timeout 5m`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunBuild(cmd.Context(), globalOptions(cmd), args[0])
		},
	}
}

// NewTestGrammarCommand creates the test-grammar command
func NewTestGrammarCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "test-grammar <grammar>",
		Short: "Run a grammar's corpus tests",
		Long: `Run the corpus tests under grammars/<grammar>/test/corpus against the built
grammar and report how many cases passed and failed.

Examples:
  grammatic test-grammar json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunTestGrammar(cmd.Context(), globalOptions(cmd), args[0])
		},
	}
}

// NewDoctorCommand creates the doctor command
func NewDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor <grammar>",
		Short: "Diagnose common problems with a grammar",
		Long: `Check a grammar for problems that do not stop a build but usually indicate
a mistake: externals without a scanner, missing corpus files, stale builds,
and an outdated grammar compiler.

Findings are advisory; doctor exits 0 whenever it could run.

Examples:
  grammatic doctor json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunDoctor(cmd.Context(), globalOptions(cmd), args[0])
		},
	}
}

// NewParseCommand creates the parse command
func NewParseCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <grammar> <source>",
		Short: "Parse a source file with a built grammar",
		Long: `Parse a source file with build/<grammar>/<grammar>.so and summarise the
syntax tree. The grammar version recorded is the commit of the latest
successful build.

Examples:
  grammatic parse json example.json
  grammatic parse json example.json --tree`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, _ := cmd.Flags().GetBool("tree")
			return RunParse(cmd.Context(), globalOptions(cmd), args[0], args[1], tree)
		},
	}
	cmd.Flags().Bool("tree", false, "Print the syntax tree as JSON")
	return cmd
}

// RunGenerate generates the parser for grammar.
func RunGenerate(ctx context.Context, opts GlobalOptions, grammar string) error {
	svc, err := opts.serviceFor(preflight.Generate, grammar, "")
	if err != nil {
		return err
	}
	ctx, stop := signalContext(orBackground(ctx))
	defer stop()

	result, err := svc.Generate(ctx, workflow.GenerateRequest{Grammar: grammar})
	return finish(opts, result, result.Result, err, func() {
		fmt.Fprintln(os.Stderr, console.FormatSuccessMessage("Generated parser for "+grammar))
	})
}

// RunBuild builds grammar.
func RunBuild(ctx context.Context, opts GlobalOptions, grammar string) error {
	svc, err := opts.serviceFor(preflight.Build, grammar, "")
	if err != nil {
		return err
	}
	ctx, stop := signalContext(orBackground(ctx))
	defer stop()

	result, err := svc.Build(ctx, workflow.BuildRequest{Grammar: grammar})
	return finish(opts, result, result.Result, err, func() {
		fmt.Fprintln(os.Stderr, console.FormatSuccessMessage(fmt.Sprintf("Built %s in %s", grammar, console.FormatDurationMs(float64(result.DurationMs)))))
		fmt.Fprintln(os.Stderr, console.FormatLocationMessage(console.ToRelativePath(result.ArtifactPath)))
		console.LogVerbose(opts.Verbose, fmt.Sprintf("compiler=%s commit=%s tool_version=%s", result.Compiler, result.Commit, result.ToolVersion))
	})
}

// RunTestGrammar runs grammar's corpus tests.
func RunTestGrammar(ctx context.Context, opts GlobalOptions, grammar string) error {
	svc, err := opts.serviceFor(preflight.TestGrammar, grammar, "")
	if err != nil {
		return err
	}
	ctx, stop := signalContext(orBackground(ctx))
	defer stop()

	result, err := svc.TestGrammar(ctx, workflow.TestGrammarRequest{Grammar: grammar})
	if err != nil && !opts.JSON && (result.Passed > 0 || result.Failed > 0) {
		fmt.Fprintln(os.Stderr, console.FormatWarningMessage(fmt.Sprintf("%d passed, %d failed", result.Passed, result.Failed)))
	}
	return finish(opts, result, result.Result, err, func() {
		fmt.Fprintln(os.Stderr, console.FormatSuccessMessage(fmt.Sprintf("%d corpus tests passed for %s", result.Passed, grammar)))
	})
}

// RunDoctor diagnoses grammar and prints the report to stdout.
func RunDoctor(ctx context.Context, opts GlobalOptions, grammar string) error {
	svc, err := opts.serviceFor(preflight.Doctor, grammar, "")
	if err != nil {
		return err
	}
	ctx, stop := signalContext(orBackground(ctx))
	defer stop()

	result, err := svc.Doctor(ctx, workflow.DoctorRequest{Grammar: grammar})
	return finish(opts, result, result.Result, err, func() {
		fmt.Print(result.Report())
	})
}

// RunParse parses source with grammar. With tree set the syntax tree is
// printed to stdout.
func RunParse(ctx context.Context, opts GlobalOptions, grammar, source string, tree bool) error {
	svc, err := opts.serviceFor(preflight.Parse, grammar, source)
	if err != nil {
		return err
	}
	ctx, stop := signalContext(orBackground(ctx))
	defer stop()

	result, err := svc.Parse(ctx, workflow.ParseRequest{Grammar: grammar, Source: source})
	return finish(opts, result, result.Result, err, func() {
		fmt.Fprintln(os.Stderr, console.FormatSuccessMessage(fmt.Sprintf("Parsed %s: %d nodes, root %s (grammar version %s)",
			source, result.NodeCount, result.RootNodeType, result.GrammarVersion)))
		if tree {
			fmt.Println(string(result.Tree))
		}
	})
}

// finish renders an operation's outcome. In JSON mode payload goes to
// stdout; otherwise diagnostics go to stderr and onSuccess runs when the
// operation succeeded. opErr is returned unchanged so the exit code
// reflects it.
func finish(opts GlobalOptions, payload any, r workflow.Result, opErr error, onSuccess func()) error {
	lifecycleLog.Printf("%s %s finished: status=%s err=%v", r.Operation, r.Grammar, r.Status, opErr)
	if opts.JSON {
		if err := printJSON(payload); err != nil {
			return err
		}
		return opErr
	}

	renderDiagnostics(r, opts.Verbose)
	if opErr == nil && r.OK() {
		onSuccess()
	}
	return opErr
}

// renderDiagnostics prints warnings always and the rest only when verbose.
// The error itself is printed by the caller of Execute.
func renderDiagnostics(r workflow.Result, verbose bool) {
	for i, d := range r.Diagnostics {
		switch d.Level {
		case workflow.LevelWarning:
			fmt.Fprintln(os.Stderr, console.FormatWarningMessage(d.Message))
		case workflow.LevelInfo:
			console.LogVerbose(verbose, d.Message)
		case workflow.LevelError:
			if i == 0 && r.Error != nil {
				continue
			}
			if verbose {
				fmt.Fprintln(os.Stderr, console.FormatErrorMessage(d.Message))
			}
		}
	}
}

func orBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
