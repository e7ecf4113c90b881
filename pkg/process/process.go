// Package process runs one external tool and normalises its outcome.
//
// A tool that starts and exits nonzero is not an error here: the exit code,
// captured output and duration are returned as data and the caller decides
// what they mean. Run returns an error only when the tool cannot be launched.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/grammatic/grammatic/pkg/logger"
)

var processLog = logger.New("process:process")

const (
	// DefaultOutputCap bounds each captured stream.
	DefaultOutputCap = 1 << 20
	// DefaultExcerptBytes bounds stderr excerpts attached to failures.
	DefaultExcerptBytes = 2000
)

// ErrLaunch is wrapped by Run when the command could not be started.
var ErrLaunch = errors.New("failed to launch process")

// Command is one tool invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
	// Env entries are appended to the current environment.
	Env []string
}

// String renders the command line for logs and console output.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Result is the normalised outcome of a launched command. Stdout keeps the
// first OutputCap bytes; Stderr keeps the last, where compilers print the
// error that stopped them.
type Result struct {
	ExitCode        int
	Stdout          string
	Stderr          string
	StdoutTruncated bool
	StderrTruncated bool
	Duration        time.Duration
	Signaled        bool
	Signal          string
	TimedOut        bool
}

// Success reports a clean zero exit.
func (r Result) Success() bool {
	return r.ExitCode == 0 && !r.Signaled && !r.TimedOut
}

// DurationMs is Duration in milliseconds.
func (r Result) DurationMs() float64 {
	return float64(r.Duration) / float64(time.Millisecond)
}

// Executor runs commands. Handlers depend on this so tests can substitute
// scripted outcomes.
type Executor interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// Runner is the os/exec backed Executor.
type Runner struct {
	// OutputCap bounds each of stdout and stderr. Zero means DefaultOutputCap.
	OutputCap int
	// Timeout, when positive, kills the command after this long and marks
	// the result TimedOut. Zero means no timeout.
	Timeout time.Duration
}

// NewRunner creates a Runner with default limits and no timeout.
func NewRunner() *Runner {
	return &Runner{OutputCap: DefaultOutputCap}
}

// Run launches cmd and waits for it. ctx cancellation kills the process,
// which is reported as Signaled.
func (r *Runner) Run(ctx context.Context, cmd Command) (Result, error) {
	limit := r.OutputCap
	if limit <= 0 {
		limit = DefaultOutputCap
	}

	runCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	processLog.Printf("Running: %s (dir=%s)", cmd, cmd.Dir)
	c := exec.CommandContext(runCtx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	// grandchildren holding the pipes open must not stall Wait after a kill
	c.WaitDelay = 2 * time.Second
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}

	stdout := &cappedBuffer{limit: limit}
	stderr := &tailBuffer{limit: limit}
	c.Stdout = stdout
	c.Stderr = stderr

	start := time.Now()
	if err := c.Start(); err != nil {
		processLog.Printf("Launch failed for %s: %v", cmd.Name, err)
		return Result{}, fmt.Errorf("%w %s: %w", ErrLaunch, cmd.Name, err)
	}
	waitErr := c.Wait()
	elapsed := time.Since(start)

	result := Result{
		Stdout:          stdout.String(),
		Stderr:          stderr.String(),
		StdoutTruncated: stdout.truncated,
		StderrTruncated: stderr.truncated,
		Duration:        elapsed,
	}

	if state := c.ProcessState; state != nil {
		result.ExitCode = state.ExitCode()
		if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			result.Signaled = true
			result.Signal = ws.Signal().String()
		}
	} else if waitErr != nil {
		result.ExitCode = -1
	}

	if r.Timeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		result.TimedOut = true
	}

	processLog.Printf("Finished %s: exit=%d signaled=%v timed_out=%v duration=%s",
		cmd.Name, result.ExitCode, result.Signaled, result.TimedOut, elapsed)
	return result, nil
}

// cappedBuffer keeps the first limit bytes written and records whether
// anything was dropped. Writes never fail so the child is never blocked.
type cappedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.limit - b.buf.Len()
	if room <= 0 {
		if len(p) > 0 {
			b.truncated = true
		}
		return len(p), nil
	}
	if len(p) > room {
		b.buf.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	return b.buf.String()
}

// tailBuffer keeps the last limit bytes written. It compacts only once
// twice the limit has accumulated, so copying stays proportional to input.
type tailBuffer struct {
	data      []byte
	limit     int
	truncated bool
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	if len(b.data) > b.limit {
		b.truncated = true
		if len(b.data) >= 2*b.limit {
			n := copy(b.data, b.data[len(b.data)-b.limit:])
			b.data = b.data[:n]
		}
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	tail := b.data
	if len(tail) > b.limit {
		tail = tail[len(tail)-b.limit:]
	}
	if b.truncated {
		for len(tail) > 0 && !utf8.RuneStart(tail[0]) {
			tail = tail[1:]
		}
	}
	return string(tail)
}

// Excerpt returns at most n bytes from the end of s, trimmed to a rune
// boundary and surrounding whitespace.
func Excerpt(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	tail := s[len(s)-n:]
	for len(tail) > 0 && !utf8.RuneStart(tail[0]) {
		tail = tail[1:]
	}
	return strings.TrimSpace(tail)
}
