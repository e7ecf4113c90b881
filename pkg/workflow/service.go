// Package workflow implements the grammar lifecycle operations: generate,
// build, test, doctor and parse.
//
// Every operation follows the same sequence. The grammar name is resolved
// to its paths, preflight checks run, the external tool is executed, a
// result is built, and exactly one provenance event is appended, on success
// and on every failure path. Nothing is executed when resolution or
// preflight fails, and such events record a zero duration.
package workflow

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/grammatic/grammatic/pkg/config"
	"github.com/grammatic/grammatic/pkg/failure"
	"github.com/grammatic/grammatic/pkg/logger"
	"github.com/grammatic/grammatic/pkg/preflight"
	"github.com/grammatic/grammatic/pkg/process"
	"github.com/grammatic/grammatic/pkg/provenance"
	"github.com/grammatic/grammatic/pkg/workspace"
)

var serviceLog = logger.New("workflow:service")

// Service runs lifecycle operations against one repository.
type Service struct {
	Layout workspace.Layout
	Config *config.Config
	Exec   process.Executor
	Logger *provenance.Logger
	GOOS   string

	// Progress, when set, is called as each long-running tool starts; the
	// returned func is called when it finishes.
	Progress func(message string) (done func())
}

// New creates a Service with the host platform, a runner built from cfg and
// a file logger under layout's logs directory.
func New(layout workspace.Layout, cfg *config.Config) *Service {
	return &Service{
		Layout: layout,
		Config: cfg,
		Exec:   cfg.Runner(),
		Logger: provenance.NewFileLogger(layout.LogsRoot()),
		GOOS:   runtime.GOOS,
	}
}

// invocation carries the state of one operation from start to log.
type invocation struct {
	s           *Service
	op          preflight.Operation
	name        string
	start       time.Time
	executed    bool
	diagnostics []Diagnostic
}

func (s *Service) begin(op preflight.Operation, name string) *invocation {
	serviceLog.Printf("Starting %s for %q", op, name)
	return &invocation{s: s, op: op, name: name, start: time.Now()}
}

// prepare resolves the grammar and runs preflight. The returned grammar is
// zero only when the name itself was rejected.
func (inv *invocation) prepare(opts preflight.Options) (workspace.Grammar, *failure.Outcome) {
	g, err := inv.s.Layout.Resolve(inv.name, inv.s.GOOS)
	if err != nil {
		outcome, ok := failure.As(err)
		if !ok {
			outcome = failure.Wrap(failure.ValidationError, err, "failed to resolve grammar", "")
		}
		return workspace.Grammar{}, outcome
	}
	if outcome := preflight.Validate(g, inv.op, opts); outcome != nil {
		return g, outcome
	}
	return g, nil
}

func (inv *invocation) info(format string, args ...any) {
	inv.diagnostics = append(inv.diagnostics, Diagnostic{Level: LevelInfo, Message: fmt.Sprintf(format, args...)})
}

func (inv *invocation) warn(format string, args ...any) {
	inv.diagnostics = append(inv.diagnostics, Diagnostic{Level: LevelWarning, Message: fmt.Sprintf(format, args...)})
}

// output records a tool's non-empty output as informational diagnostics.
func (inv *invocation) output(res process.Result) {
	if out := strings.TrimSpace(res.Stdout); out != "" {
		inv.info("%s", out)
	}
	if errOut := strings.TrimSpace(res.Stderr); errOut != "" {
		inv.info("%s", errOut)
	}
	if res.StdoutTruncated || res.StderrTruncated {
		inv.warn("tool output exceeded %d bytes and was truncated", inv.s.Config.OutputCapBytes)
	}
}

// run executes cmd and classifies anything other than a clean zero exit.
// what names the step for messages ("tree-sitter generate").
func (inv *invocation) run(ctx context.Context, cmd process.Command, what, remediation string) (process.Result, *failure.Outcome) {
	inv.executed = true

	if inv.s.Progress != nil {
		done := inv.s.Progress(fmt.Sprintf("Running %s for %s...", what, inv.name))
		defer done()
	}

	res, err := inv.s.Exec.Run(ctx, cmd)
	if err != nil {
		return res, failure.Wrap(failure.ToolLaunchFailed, err,
			fmt.Sprintf("could not launch %s", cmd.Name),
			fmt.Sprintf("install %s or set its path in %s", cmd.Name, workspace.ConfigFile))
	}
	return res, inv.classify(res, cmd, what, remediation)
}

func (inv *invocation) classify(res process.Result, cmd process.Command, what, remediation string) *failure.Outcome {
	excerptSource := res.Stderr
	if strings.TrimSpace(excerptSource) == "" {
		excerptSource = res.Stdout
	}
	excerpt := process.Excerpt(excerptSource, inv.s.Config.StderrExcerptBytes)

	var outcome *failure.Outcome
	switch {
	case res.TimedOut:
		outcome = failure.New(failure.ToolTimedOut,
			fmt.Sprintf("%s timed out after %s", what, inv.s.Config.TimeoutDuration()),
			"raise the timeout with --timeout or in "+workspace.ConfigFile)
	case res.Signaled:
		outcome = failure.New(failure.ToolTerminated,
			fmt.Sprintf("%s was terminated by signal %s", what, res.Signal), remediation)
	case res.ExitCode != 0:
		outcome = failure.New(failure.ToolInvocationFailed,
			fmt.Sprintf("%s failed for grammar '%s' (exit code %d)", what, inv.name, res.ExitCode), remediation)
	default:
		return nil
	}

	inv.diagnostics = append(inv.diagnostics, Diagnostic{Level: LevelError, Message: "command: " + cmd.String()})
	if excerpt != "" {
		inv.diagnostics = append(inv.diagnostics, Diagnostic{Level: LevelError, Message: "output excerpt: " + excerpt})
	}
	return outcome.WithStderr(excerpt)
}

func (inv *invocation) duration() time.Duration {
	if !inv.executed {
		return 0
	}
	return time.Since(inv.start)
}

// result finalises the common part of an operation's result.
func (inv *invocation) result(outcome *failure.Outcome) Result {
	r := Result{
		Operation:   inv.op,
		Grammar:     inv.name,
		Status:      provenance.StatusSuccess,
		DurationMs:  inv.duration().Milliseconds(),
		Diagnostics: inv.diagnostics,
	}
	if outcome != nil {
		r.Status = provenance.StatusFailure
		r.Error = outcome
		r.Diagnostics = append([]Diagnostic{{Level: LevelError, Message: outcome.Error()}}, r.Diagnostics...)
	}
	return r
}

// header builds the event header matching r.
func header(eventType provenance.EventType, r Result) provenance.Header {
	h := provenance.Header{
		EventType:  eventType,
		Grammar:    r.Grammar,
		Status:     r.Status,
		DurationMs: r.DurationMs,
	}
	if r.Error != nil {
		h.ErrorCode = r.Error.Kind.Code()
		h.StderrExcerpt = r.Error.StderrExcerpt
	}
	return h
}

// finish appends ev and returns the error the caller should see: a log
// failure takes precedence over the operation's own outcome.
func (inv *invocation) finish(ev provenance.Event, r Result) error {
	if err := inv.s.Logger.Append(ev); err != nil {
		serviceLog.Printf("Failed to log %s event for %s: %v", inv.op, inv.name, err)
		if r.Error != nil {
			return fmt.Errorf("%w (while recording: %s)", err, r.Error.Message)
		}
		return err
	}
	serviceLog.Printf("Finished %s for %s: %s in %dms", inv.op, inv.name, r.Status, r.DurationMs)
	if r.Error != nil {
		return r.Error
	}
	return nil
}

// expand substitutes {key} placeholders in args.
func expand(args []string, vars map[string]string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		for k, v := range vars {
			a = strings.ReplaceAll(a, "{"+k+"}", v)
		}
		out[i] = a
	}
	return out
}
