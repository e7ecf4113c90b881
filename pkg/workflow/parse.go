package workflow

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/grammatic/grammatic/pkg/failure"
	"github.com/grammatic/grammatic/pkg/gitutil"
	"github.com/grammatic/grammatic/pkg/logger"
	"github.com/grammatic/grammatic/pkg/logquery"
	"github.com/grammatic/grammatic/pkg/preflight"
	"github.com/grammatic/grammatic/pkg/process"
	"github.com/grammatic/grammatic/pkg/provenance"
)

var parseLog = logger.New("workflow:parse")

// Parse parses a source file with a built grammar and summarises the
// resulting syntax tree. The grammar version is the commit of the most
// recent successful build of the same grammar.
func (s *Service) Parse(ctx context.Context, req ParseRequest) (*ParseResult, error) {
	inv := s.begin(preflight.Parse, req.Grammar)
	out := &ParseResult{Source: req.Source, RootNodeType: gitutil.Unknown, GrammarVersion: gitutil.Unknown}

	g, outcome := inv.prepare(preflight.Options{Source: req.Source})
	if outcome == nil {
		out.GrammarVersion = logquery.LatestBuildCommitFromFile(s.Layout.BuildsLog(), g.Name)
		parseLog.Printf("Parsing %s with %s at version %s", req.Source, g.Name, out.GrammarVersion)

		source := req.Source
		if abs, err := filepath.Abs(source); err == nil {
			source = abs
		}
		cmd := process.Command{
			Name: s.Config.Tools.GrammarCompiler,
			Args: expand(s.Config.Parse.Args, map[string]string{
				"source":   source,
				"artifact": g.BuildArtifactPath,
				"grammar":  g.Name,
			}),
			Dir: g.SourceDir,
		}

		var res process.Result
		res, outcome = inv.run(ctx, cmd, "tree-sitter parse", "check that "+req.Source+" is readable and the grammar is built")
		if outcome == nil {
			outcome = inv.summarise(res, out)
		}
	}

	out.Result = inv.result(outcome)
	ev := &provenance.ParseEvent{
		Header:         header(provenance.EventParse, out.Result),
		GrammarVersion: out.GrammarVersion,
		SourceFile:     req.Source,
		NodeCount:      out.NodeCount,
		HasErrors:      out.HasErrors,
		RootNodeType:   out.RootNodeType,
	}
	return out, inv.finish(ev, out.Result)
}

func (inv *invocation) summarise(res process.Result, out *ParseResult) *failure.Outcome {
	if res.StdoutTruncated {
		return failure.New(failure.ValidationError,
			fmt.Sprintf("parser output exceeded %d bytes and was truncated", inv.s.Config.OutputCapBytes),
			"raise output_cap_bytes in grammatic.yaml")
	}
	root, raw, err := decodeTree([]byte(res.Stdout))
	if err != nil {
		return failure.Wrap(failure.ValidationError, err,
			"parser output is not a valid JSON syntax tree",
			"check parse.args in grammatic.yaml produce JSON output").
			WithStderr(process.Excerpt(res.Stdout, inv.s.Config.StderrExcerptBytes))
	}

	out.NodeCount = root.NodeCount()
	out.HasErrors = root.HasErrors()
	out.RootNodeType = root.Type
	out.Tree = raw
	if out.HasErrors {
		inv.warn("syntax tree for %s contains ERROR nodes", out.Source)
	}
	inv.info("parsed %s: %d nodes, root %s", out.Source, out.NodeCount, out.RootNodeType)
	return nil
}
