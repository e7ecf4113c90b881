package workflow

import (
	"context"

	"github.com/grammatic/grammatic/pkg/logger"
	"github.com/grammatic/grammatic/pkg/preflight"
	"github.com/grammatic/grammatic/pkg/process"
	"github.com/grammatic/grammatic/pkg/provenance"
)

var generateLog = logger.New("workflow:generate")

// Generate runs the grammar compiler's generate step in the grammar
// directory, producing src/parser.c from grammar.js.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	inv := s.begin(preflight.Generate, req.Grammar)
	out := &GenerateResult{}

	g, outcome := inv.prepare(preflight.Options{})
	if outcome == nil {
		out.GrammarDir = g.SourceDir
		cmd := process.Command{
			Name: s.Config.Tools.GrammarCompiler,
			Args: []string{"generate"},
			Dir:  g.SourceDir,
		}
		generateLog.Printf("Generating parser for %s", g.Name)

		var res process.Result
		res, outcome = inv.run(ctx, cmd, "tree-sitter generate", "fix the errors in "+g.GrammarFile+" and run 'grammatic generate "+g.Name+"' again")
		inv.output(res)
		if outcome == nil {
			inv.info("generated %s", g.GeneratedParserPath)
		}
	}

	out.Result = inv.result(outcome)
	ev := &provenance.OperationEvent{Header: header(provenance.EventGenerate, out.Result)}
	return out, inv.finish(ev, out.Result)
}
