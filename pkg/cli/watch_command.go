package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/grammatic/grammatic/pkg/console"
	"github.com/grammatic/grammatic/pkg/failure"
	"github.com/grammatic/grammatic/pkg/logger"
	"github.com/grammatic/grammatic/pkg/workflow"
	"github.com/grammatic/grammatic/pkg/workspace"
	"github.com/spf13/cobra"
)

var watchLog = logger.New("cli:watch")

// watchDebounce coalesces the burst of events an editor save produces.
var watchDebounce = 300 * time.Millisecond

// NewWatchCommand creates the watch command
func NewWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <grammar>",
		Short: "Regenerate and rebuild a grammar whenever it changes",
		Long: `Watch grammars/<grammar>/grammar.js and src/scanner.c / src/scanner.cc, and
run generate followed by build after every change. Runs are sequential; a
change made during a run triggers another run once it finishes.

Press Ctrl-C to stop.

Examples:
  grammatic watch json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := globalOptions(cmd)
			svc, err := opts.service()
			if err != nil {
				return err
			}
			ctx, stop := signalContext(orBackground(cmd.Context()))
			defer stop()
			return watchGrammar(ctx, svc.Layout, args[0], func(ctx context.Context) error {
				return regenerate(ctx, svc, opts, args[0])
			})
		},
	}
}

// regenerate runs generate then build, stopping at the first failure. Each
// step is logged as its own invocation.
func regenerate(ctx context.Context, svc *workflow.Service, opts GlobalOptions, grammar string) error {
	gen, err := svc.Generate(ctx, workflow.GenerateRequest{Grammar: grammar})
	if err != nil {
		renderDiagnostics(gen.Result, opts.Verbose)
		return err
	}
	build, err := svc.Build(ctx, workflow.BuildRequest{Grammar: grammar})
	renderDiagnostics(build.Result, opts.Verbose)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, console.FormatSuccessMessage(fmt.Sprintf("Rebuilt %s in %s", grammar,
		console.FormatDurationMs(float64(gen.DurationMs+build.DurationMs)))))
	return nil
}

// watchGrammar calls rebuild once per burst of changes to the grammar's
// sources until ctx is cancelled. Failures of rebuild are reported and
// watching continues; a log write failure stops the watch.
func watchGrammar(ctx context.Context, layout workspace.Layout, grammar string, rebuild func(context.Context) error) error {
	g, err := layout.Resolve(grammar, runtime.GOOS)
	if err != nil {
		return err
	}
	if info, err := os.Stat(g.SourceDir); err != nil || !info.IsDir() {
		return failure.New(failure.GrammarNotFound,
			fmt.Sprintf("grammar '%s' not found at %s", g.Name, g.SourceDir),
			fmt.Sprintf("add the grammar sources under grammars/%s", g.Name))
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	for _, dir := range []string{g.SourceDir, g.SrcDir} {
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		watchLog.Printf("Watching %s", dir)
	}

	fmt.Fprintln(os.Stderr, console.FormatInfoMessage(fmt.Sprintf("Watching %s for changes (Ctrl-C to stop)", console.ToRelativePath(g.SourceDir))))

	var debounce *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			watchLog.Print("Watch cancelled")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// src/ may appear after the first generate
			if event.Has(fsnotify.Create) && event.Name == g.SrcDir {
				if err := watcher.Add(g.SrcDir); err == nil {
					watchLog.Printf("Watching %s", g.SrcDir)
				}
				continue
			}
			if !isWatchedSource(g, event) {
				continue
			}
			watchLog.Printf("Change detected: %s (%s)", event.Name, event.Op)
			if debounce == nil {
				debounce = time.NewTimer(watchDebounce)
			} else {
				debounce.Reset(watchDebounce)
			}
			fire = debounce.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintln(os.Stderr, console.FormatWarningMessage("watch error: "+err.Error()))

		case <-fire:
			fire = nil
			if err := rebuild(ctx); err != nil {
				if failure.KindOf(err) == failure.LogWriteFailed {
					return err
				}
				fmt.Fprintln(os.Stderr, FormatError(err))
			}
		}
	}
}

// isWatchedSource reports whether event touches grammar.js or an external
// scanner. Generated files are ignored so a rebuild never triggers itself.
func isWatchedSource(g workspace.Grammar, event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	switch filepath.Clean(event.Name) {
	case g.GrammarFile, filepath.Join(g.SrcDir, "scanner.c"), filepath.Join(g.SrcDir, "scanner.cc"):
		return true
	}
	return false
}
