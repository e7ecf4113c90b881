package main

import (
	"context"
	"fmt"
	"os"

	"github.com/grammatic/grammatic/pkg/cli"
	"github.com/grammatic/grammatic/pkg/failure"
	"github.com/grammatic/grammatic/pkg/logger"
	"github.com/spf13/cobra"
)

// Build-time variables
var (
	version = "dev"
)

var mainLog = logger.New("main")

var rootCmd = &cobra.Command{
	Use:   "grammatic",
	Short: "Generate, build, test and parse tree-sitter grammars",
	Long: `grammatic drives the grammar lifecycle for a workshop of tree-sitter grammars:

  generate → build → test-grammar → doctor → parse

Grammars live under grammars/<name>/, shared libraries are built into
build/<name>/, and every invocation appends one provenance event to
logs/builds.jsonl or logs/parses.jsonl.

Exit codes identify the failure: 2 validation, 3 invalid name, 4 grammar not
found, 5 parser not generated, 6 corpus missing, 7 build artifact missing,
8 unsupported platform, 9 tool launch failed, 10 tool failed, 11 tool
terminated, 12 tool timed out, 13 log write failed.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	cli.AddGlobalFlags(rootCmd)
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return failure.Wrap(failure.ValidationError, err, "invalid flags", "run '"+cmd.CommandPath()+" --help'")
	})

	rootCmd.AddCommand(
		cli.NewGenerateCommand(),
		cli.NewBuildCommand(),
		cli.NewTestGrammarCommand(),
		cli.NewDoctorCommand(),
		cli.NewParseCommand(),
		cli.NewLogsCommand(),
		cli.NewWatchCommand(),
		cli.NewMCPServerCommand(),
	)
}

func main() {
	cli.SetVersionInfo(version)
	rootCmd.Version = version

	err := rootCmd.ExecuteContext(context.Background())
	code := failure.ExitCode(err)
	mainLog.Printf("Exiting with code %d", code)
	if err != nil {
		fmt.Fprintln(os.Stderr, cli.FormatError(err))
		os.Exit(code)
	}
}
