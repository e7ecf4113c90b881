package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grammatic/grammatic/pkg/config"
	"github.com/grammatic/grammatic/pkg/console"
	"github.com/grammatic/grammatic/pkg/logger"
	"github.com/grammatic/grammatic/pkg/preflight"
	"github.com/grammatic/grammatic/pkg/workflow"
	"github.com/grammatic/grammatic/pkg/workspace"
	"github.com/spf13/cobra"
)

var optionsLog = logger.New("cli:options")

// GlobalOptions are the persistent flags shared by every command.
type GlobalOptions struct {
	RepoRoot string
	Verbose  bool
	Timeout  time.Duration
	JSON     bool
}

// AddGlobalFlags registers the persistent flags on the root command.
func AddGlobalFlags(root *cobra.Command) {
	root.PersistentFlags().String("repo-root", ".", "Repository root containing grammars/, build/ and logs/")
	root.PersistentFlags().BoolP("verbose", "v", false, "Show tool output and extra detail")
	root.PersistentFlags().Duration("timeout", 0, "Kill external tools after this long (e.g. 2m); 0 uses the configured value")
	root.PersistentFlags().Bool("json", false, "Output results in JSON format")
}

func globalOptions(cmd *cobra.Command) GlobalOptions {
	repoRoot, _ := cmd.Flags().GetString("repo-root")
	verbose, _ := cmd.Flags().GetBool("verbose")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	return GlobalOptions{RepoRoot: repoRoot, Verbose: verbose, Timeout: timeout, JSON: jsonOutput}
}

// layout resolves the repository root.
func (o GlobalOptions) layout() (workspace.Layout, error) {
	root := o.RepoRoot
	if root == "" {
		root = "."
	}
	return workspace.NewLayout(root)
}

// loadConfig reads grammatic.yaml and applies flag overrides.
func (o GlobalOptions) loadConfig(layout workspace.Layout) (*config.Config, error) {
	cfg, err := config.Load(layout.ConfigPath())
	if err != nil {
		return nil, err
	}
	if o.Timeout > 0 {
		cfg.SetTimeout(o.Timeout)
	}
	return cfg, nil
}

// service builds the operation service for these options. A spinner is
// shown while tools run unless output is JSON.
func (o GlobalOptions) service() (*workflow.Service, error) {
	layout, err := o.layout()
	if err != nil {
		return nil, err
	}
	cfg, err := o.loadConfig(layout)
	if err != nil {
		return nil, err
	}
	optionsLog.Printf("Using repository %s (timeout=%s)", layout.Root, cfg.TimeoutDuration())
	console.LogVerbose(o.Verbose, "Repository root: "+layout.Root)

	svc := workflow.New(layout, cfg)
	if !o.JSON {
		svc.Progress = func(message string) func() {
			spinner := console.NewSpinner(message)
			spinner.Start()
			return spinner.Stop
		}
	}
	return svc, nil
}

// serviceFor is service for a single operation on grammar. When the
// service cannot be built, the invocation is still logged as a failure.
func (o GlobalOptions) serviceFor(op preflight.Operation, grammar, source string) (*workflow.Service, error) {
	svc, err := o.service()
	if err == nil {
		return svc, nil
	}
	layout, layoutErr := o.layout()
	if layoutErr != nil {
		return nil, err
	}
	optionsLog.Printf("Setup failed for %s %s: %v", op, grammar, err)
	return nil, workflow.RecordSetupFailure(layout, op, grammar, source, err)
}

// signalContext is cancelled on SIGINT or SIGTERM so the running tool is
// killed and the invocation is still logged.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
