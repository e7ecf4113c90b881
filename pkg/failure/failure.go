// Package failure defines the closed set of error kinds every grammatic
// operation can fail with, and the single table that maps each kind to a
// process exit code.
package failure

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/grammatic/grammatic/pkg/logger"
)

var failureLog = logger.New("failure:failure")

// Kind identifies a class of failure. The set is closed: adding a failure
// mode means adding a Kind and a row in kinds, never a special case in a
// command.
type Kind int

const (
	ValidationError Kind = iota + 1
	InvalidName
	GrammarNotFound
	ParserNotGenerated
	CorpusMissing
	BuildArtifactMissing
	UnsupportedPlatform
	ToolLaunchFailed
	ToolInvocationFailed
	ToolTerminated
	ToolTimedOut
	LogWriteFailed
)

// ExitUnexpected is the exit code for errors outside the taxonomy.
const ExitUnexpected = 1

type kindInfo struct {
	name     string
	code     string
	exitCode int
}

var kinds = map[Kind]kindInfo{
	ValidationError:      {"ValidationError", "VALIDATION_ERROR", 2},
	InvalidName:          {"InvalidName", "INVALID_NAME", 3},
	GrammarNotFound:      {"GrammarNotFound", "GRAMMAR_NOT_FOUND", 4},
	ParserNotGenerated:   {"ParserNotGenerated", "PARSER_NOT_GENERATED", 5},
	CorpusMissing:        {"CorpusMissing", "CORPUS_MISSING", 6},
	BuildArtifactMissing: {"BuildArtifactMissing", "BUILD_ARTIFACT_MISSING", 7},
	UnsupportedPlatform:  {"UnsupportedPlatform", "UNSUPPORTED_PLATFORM", 8},
	ToolLaunchFailed:     {"ToolLaunchFailed", "TOOL_LAUNCH_FAILED", 9},
	ToolInvocationFailed: {"ToolInvocationFailed", "TOOL_INVOCATION_FAILED", 10},
	ToolTerminated:       {"ToolTerminated", "TOOL_TERMINATED", 11},
	ToolTimedOut:         {"ToolTimedOut", "TOOL_TIMED_OUT", 12},
	LogWriteFailed:       {"LogWriteFailed", "LOG_WRITE_FAILED", 13},
}

// Kinds returns every kind in exit-code order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kinds))
	for k := ValidationError; k <= LogWriteFailed; k++ {
		out = append(out, k)
	}
	return out
}

func (k Kind) String() string {
	if info, ok := kinds[k]; ok {
		return info.name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Code is the stable identifier written to provenance events as error_code.
func (k Kind) Code() string {
	if info, ok := kinds[k]; ok {
		return info.code
	}
	return "UNEXPECTED"
}

// ExitCode is the process exit code for k.
func (k Kind) ExitCode() int {
	if info, ok := kinds[k]; ok {
		return info.exitCode
	}
	return ExitUnexpected
}

// KindFromCode is the inverse of Kind.Code.
func KindFromCode(code string) (Kind, bool) {
	for k, info := range kinds {
		if info.code == code {
			return k, true
		}
	}
	return 0, false
}

// Outcome is a classified failure: what failed, and the next command that
// fixes it.
type Outcome struct {
	Kind          Kind
	Message       string
	Remediation   string
	StderrExcerpt string
	Cause         error
}

// New creates an Outcome.
func New(kind Kind, message, remediation string) *Outcome {
	failureLog.Printf("Creating %s outcome: %s", kind, message)
	return &Outcome{Kind: kind, Message: message, Remediation: remediation}
}

// Newf creates an Outcome with a formatted message and no remediation.
func Newf(kind Kind, format string, args ...any) *Outcome {
	return New(kind, fmt.Sprintf(format, args...), "")
}

// Wrap creates an Outcome caused by err.
func Wrap(kind Kind, err error, message, remediation string) *Outcome {
	o := New(kind, message, remediation)
	o.Cause = err
	return o
}

// WithStderr attaches a bounded excerpt of a tool's stderr.
func (o *Outcome) WithStderr(excerpt string) *Outcome {
	o.StderrExcerpt = excerpt
	return o
}

// Error implements the error interface.
func (o *Outcome) Error() string {
	var b strings.Builder
	b.WriteString(o.Message)
	if o.Cause != nil {
		fmt.Fprintf(&b, ": %v", o.Cause)
	}
	return b.String()
}

func (o *Outcome) Unwrap() error {
	return o.Cause
}

// Suggestions returns the remediation as a list for console rendering.
func (o *Outcome) Suggestions() []string {
	if o.Remediation == "" {
		return nil
	}
	return []string{o.Remediation}
}

type outcomeJSON struct {
	Kind          string `json:"kind"`
	Code          string `json:"error_code"`
	ExitCode      int    `json:"exit_code"`
	Message       string `json:"message"`
	Remediation   string `json:"remediation,omitempty"`
	StderrExcerpt string `json:"stderr_excerpt,omitempty"`
}

// MarshalJSON renders the outcome for --json output and MCP responses.
func (o *Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(outcomeJSON{
		Kind:          o.Kind.String(),
		Code:          o.Kind.Code(),
		ExitCode:      o.Kind.ExitCode(),
		Message:       o.Error(),
		Remediation:   o.Remediation,
		StderrExcerpt: o.StderrExcerpt,
	})
}

// As extracts the Outcome from err's chain.
func As(err error) (*Outcome, bool) {
	var o *Outcome
	if errors.As(err, &o) {
		return o, true
	}
	return nil, false
}

// KindOf returns the kind of err, or 0 when err is not classified.
func KindOf(err error) Kind {
	if o, ok := As(err); ok {
		return o.Kind
	}
	return 0
}

// ExitCode maps err to the process exit code. nil exits 0.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if o, ok := As(err); ok {
		return o.Kind.ExitCode()
	}
	failureLog.Printf("Unclassified error exits %d: %v", ExitUnexpected, err)
	return ExitUnexpected
}
