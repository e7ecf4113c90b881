package workflow

import (
	"github.com/grammatic/grammatic/pkg/failure"
	"github.com/grammatic/grammatic/pkg/gitutil"
	"github.com/grammatic/grammatic/pkg/preflight"
	"github.com/grammatic/grammatic/pkg/provenance"
	"github.com/grammatic/grammatic/pkg/workspace"
)

// RecordSetupFailure logs an invocation of op that could not start because
// no Service could be built, typically over an invalid grammatic.yaml. The
// logger needs only the layout. A rejected grammar name wins over cause,
// since the name is checked before anything is read from disk.
//
// The returned error is what the caller reports: the classified cause, or a
// LogWriteFailed outcome when the event could not be appended.
func RecordSetupFailure(layout workspace.Layout, op preflight.Operation, grammar, source string, cause error) error {
	outcome, ok := failure.As(cause)
	if !ok {
		outcome = failure.Wrap(failure.ValidationError, cause, "invalid configuration", "fix or remove "+layout.ConfigPath())
	}
	if err := workspace.ValidateName(grammar); err != nil {
		outcome, _ = failure.As(err)
	}

	s := &Service{Layout: layout, Logger: provenance.NewFileLogger(layout.LogsRoot())}
	inv := s.begin(op, grammar)
	r := inv.result(outcome)

	var ev provenance.Event
	switch op {
	case preflight.Build:
		ev = &provenance.BuildEvent{
			Header:      header(provenance.EventBuild, r),
			Commit:      gitutil.Unknown,
			RepoURL:     gitutil.Unknown,
			ToolVersion: gitutil.Unknown,
		}
	case preflight.Parse:
		ev = &provenance.ParseEvent{
			Header:         header(provenance.EventParse, r),
			GrammarVersion: gitutil.Unknown,
			SourceFile:     source,
			RootNodeType:   gitutil.Unknown,
		}
	case preflight.TestGrammar:
		ev = &provenance.OperationEvent{Header: header(provenance.EventTest, r)}
	case preflight.Doctor:
		ev = &provenance.OperationEvent{Header: header(provenance.EventDoctor, r)}
	default:
		ev = &provenance.OperationEvent{Header: header(provenance.EventGenerate, r)}
	}
	serviceLog.Printf("Recording setup failure of %s for %q: %v", op, grammar, outcome)
	return inv.finish(ev, r)
}
