package workflow

import (
	"context"
	"strings"

	"github.com/grammatic/grammatic/pkg/logger"
	"github.com/grammatic/grammatic/pkg/preflight"
	"github.com/grammatic/grammatic/pkg/process"
	"github.com/grammatic/grammatic/pkg/provenance"
)

var testGrammarLog = logger.New("workflow:test_grammar")

// TestGrammar runs the corpus tests for a built grammar. Pass and fail
// counts are kept on failure so callers can show how far the run got.
func (s *Service) TestGrammar(ctx context.Context, req TestGrammarRequest) (*TestGrammarResult, error) {
	inv := s.begin(preflight.TestGrammar, req.Grammar)
	out := &TestGrammarResult{}

	g, outcome := inv.prepare(preflight.Options{})
	if outcome == nil {
		cmd := process.Command{
			Name: s.Config.Tools.TestRunner,
			Args: expand(s.Config.Test.Args, map[string]string{
				"grammar":  g.Name,
				"artifact": g.BuildArtifactPath,
			}),
			Dir: g.SourceDir,
		}

		var res process.Result
		res, outcome = inv.run(ctx, cmd, "tree-sitter test", "fix the failing cases in "+g.CorpusDir)
		out.Passed, out.Failed = countTestResults(res.Stdout + "\n" + res.Stderr)
		testGrammarLog.Printf("Corpus results for %s: passed=%d failed=%d", g.Name, out.Passed, out.Failed)
		inv.output(res)
	}

	out.Result = inv.result(outcome)
	ev := &provenance.OperationEvent{Header: header(provenance.EventTest, out.Result)}
	if inv.executed {
		passed, failed := out.Passed, out.Failed
		ev.Passed, ev.Failed = &passed, &failed
	}
	return out, inv.finish(ev, out.Result)
}

// countTestResults counts corpus case lines marked as passing (✓ or ✔) or
// failing (✗ or ✘). Runners number failing cases, as in "  1. ✗ name".
func countTestResults(output string) (passed, failed int) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if dot := strings.Index(line, ". "); dot > 0 && isDigits(line[:dot]) {
			line = strings.TrimSpace(line[dot+2:])
		}
		switch {
		case strings.HasPrefix(line, "✓"), strings.HasPrefix(line, "✔"):
			passed++
		case strings.HasPrefix(line, "✗"), strings.HasPrefix(line, "✘"):
			failed++
		}
	}
	return passed, failed
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}
