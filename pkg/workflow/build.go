package workflow

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/grammatic/grammatic/pkg/failure"
	"github.com/grammatic/grammatic/pkg/gitutil"
	"github.com/grammatic/grammatic/pkg/logger"
	"github.com/grammatic/grammatic/pkg/preflight"
	"github.com/grammatic/grammatic/pkg/process"
	"github.com/grammatic/grammatic/pkg/provenance"
	"github.com/grammatic/grammatic/pkg/toolchain"
	"github.com/grammatic/grammatic/pkg/workspace"
)

var buildLog = logger.New("workflow:build")

// Build compiles the generated parser, and the external scanner if there is
// one, into build/<grammar>/<grammar>.<ext>.
func (s *Service) Build(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	inv := s.begin(preflight.Build, req.Grammar)
	out := &BuildResult{Commit: gitutil.Unknown, RepoURL: gitutil.Unknown, ToolVersion: gitutil.Unknown}

	g, outcome := inv.prepare(preflight.Options{})
	if outcome == nil {
		outcome = s.compile(ctx, inv, g, out)
	}

	out.Result = inv.result(outcome)
	ev := &provenance.BuildEvent{
		Header:      header(provenance.EventBuild, out.Result),
		Commit:      out.Commit,
		RepoURL:     out.RepoURL,
		Compiler:    out.Compiler,
		ToolVersion: out.ToolVersion,
	}
	if inv.executed {
		ev.ArtifactPath = g.BuildArtifactPath
	}
	return out, inv.finish(ev, out.Result)
}

func (s *Service) compile(ctx context.Context, inv *invocation, g workspace.Grammar, out *BuildResult) *failure.Outcome {
	sel, err := toolchain.Select(g.SrcDir, s.GOOS, toolchain.Compilers{
		C:   s.Config.Tools.CCompiler,
		CXX: s.Config.Tools.CXXCompiler,
	})
	if err != nil {
		outcome, _ := failure.As(err)
		return outcome
	}
	out.Compiler = sel.Compiler
	out.ScannerSource = sel.ScannerSource

	out.Commit = s.gitCommit(ctx, g)
	out.RepoURL = s.repoURL(ctx, g)
	out.ToolVersion = s.toolVersion(ctx)
	buildLog.Printf("Building %s at commit %s with %s", g.Name, out.Commit, sel.Compiler)

	if err := os.MkdirAll(g.BuildDir, 0o755); err != nil {
		return failure.Wrap(failure.ValidationError, err,
			fmt.Sprintf("cannot create build directory %s", g.BuildDir),
			"check permissions on "+workspace.BuildDir+"/")
	}

	cmd := process.Command{
		Name: sel.Compiler,
		Args: sel.Args(g.SrcDir, g.GeneratedParserPath, g.BuildArtifactPath),
		Dir:  g.SourceDir,
	}
	res, outcome := inv.run(ctx, cmd, sel.Compiler, "fix the compiler errors above and run 'grammatic build "+g.Name+"' again")
	inv.output(res)
	if outcome != nil {
		return outcome
	}

	if info, err := os.Stat(g.BuildArtifactPath); err != nil || info.IsDir() {
		return failure.New(failure.BuildArtifactMissing,
			fmt.Sprintf("compiler exited cleanly but %s was not produced", g.BuildArtifactPath),
			"check the compiler configuration in "+workspace.ConfigFile)
	}
	out.ArtifactPath = g.BuildArtifactPath
	if sel.ScannerSource != "" {
		inv.info("compiled with external scanner %s", sel.ScannerSource)
	}
	inv.info("built %s", g.BuildArtifactPath)
	return nil
}

// probe runs a short metadata command. Any failure yields "".
func (s *Service) probe(ctx context.Context, name string, dir string, args ...string) string {
	if name == "" {
		return ""
	}
	res, err := s.Exec.Run(ctx, process.Command{Name: name, Args: args, Dir: dir})
	if err != nil || !res.Success() {
		buildLog.Printf("Probe %s %v failed: err=%v exit=%d", name, args, err, res.ExitCode)
		return ""
	}
	return res.Stdout
}

func (s *Service) gitCommit(ctx context.Context, g workspace.Grammar) string {
	return gitutil.ParseCommit(s.probe(ctx, s.Config.Tools.Git, g.SourceDir, "rev-parse", "HEAD"))
}

func (s *Service) repoURL(ctx context.Context, g workspace.Grammar) string {
	return gitutil.ParseRemoteURL(s.probe(ctx, s.Config.Tools.Git, g.SourceDir, "config", "--get", "remote.origin.url"))
}

// toolVersion returns the version the grammar compiler reports, or
// "unknown". "tree-sitter 0.22.6 (abc123)" yields "0.22.6".
func (s *Service) toolVersion(ctx context.Context) string {
	return parseToolVersion(s.probe(ctx, s.Config.Tools.GrammarCompiler, "", "--version"))
}

func parseToolVersion(output string) string {
	fields := strings.Fields(output)
	if len(fields) < 2 {
		return gitutil.Unknown
	}
	return fields[1]
}
