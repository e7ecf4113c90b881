package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/grammatic/grammatic/pkg/gitutil"
	"github.com/grammatic/grammatic/pkg/logger"
	"github.com/grammatic/grammatic/pkg/preflight"
	"github.com/grammatic/grammatic/pkg/process"
	"github.com/grammatic/grammatic/pkg/provenance"
	"github.com/grammatic/grammatic/pkg/workspace"
)

var doctorLog = logger.New("workflow:doctor")

type finding struct {
	message        string
	recommendation string
}

// Doctor inspects a grammar for problems that do not stop a build but
// usually indicate a mistake. Findings are advisory: the operation succeeds
// whenever preflight and the tool version probe do.
func (s *Service) Doctor(ctx context.Context, req DoctorRequest) (*DoctorResult, error) {
	inv := s.begin(preflight.Doctor, req.Grammar)
	out := &DoctorResult{Findings: []string{}, Recommendations: []string{}}

	g, outcome := inv.prepare(preflight.Options{RequireBuild: s.Config.DoctorRequiresBuild()})
	if outcome == nil {
		cmd := process.Command{Name: s.Config.Tools.GrammarCompiler, Args: []string{"--version"}}

		var res process.Result
		res, outcome = inv.run(ctx, cmd, s.Config.Tools.GrammarCompiler+" --version",
			"check that "+s.Config.Tools.GrammarCompiler+" is installed correctly")
		if outcome == nil {
			out.ToolVersion = parseToolVersion(res.Stdout)
			found := s.diagnose(g, out.ToolVersion)
			for _, f := range found {
				out.Findings = append(out.Findings, f.message)
				out.Recommendations = append(out.Recommendations, f.recommendation)
				inv.warn("%s", f.message)
			}
			out.Healthy = len(found) == 0
			if out.Healthy {
				inv.info("grammar '%s' looks good", g.Name)
			}
			doctorLog.Printf("Doctor found %d issue(s) for %s", len(found), g.Name)
		}
	}

	out.Result = inv.result(outcome)
	ev := &provenance.OperationEvent{Header: header(provenance.EventDoctor, out.Result), Findings: out.Findings}
	return out, inv.finish(ev, out.Result)
}

// diagnose returns findings sorted by message, so repeated runs over an
// unchanged tree give identical output.
func (s *Service) diagnose(g workspace.Grammar, toolVersion string) []finding {
	var found []finding
	add := func(message, recommendation string) {
		found = append(found, finding{message: message, recommendation: recommendation})
	}

	hasScanner := isFile(filepath.Join(g.SrcDir, "scanner.c")) || isFile(filepath.Join(g.SrcDir, "scanner.cc"))
	if grammarJS, err := os.ReadFile(g.GrammarFile); err == nil && !hasScanner && strings.Contains(string(grammarJS), "externals:") {
		add("grammar uses externals but no scanner.c/scanner.cc found",
			"add an external scanner at src/scanner.c or src/scanner.cc")
	}

	corpus, _ := filepath.Glob(filepath.Join(g.CorpusDir, "*.txt"))
	if len(corpus) == 0 {
		add("no corpus test files (*.txt) in test/corpus",
			"add corpus cases as .txt files under test/corpus")
	}

	if !isFile(g.BuildArtifactPath) {
		add("grammar not built", "run 'grammatic build "+g.Name+"'")
	} else if newer(g.GeneratedParserPath, g.BuildArtifactPath) {
		add("build artifact is older than the generated parser",
			"run 'grammatic build "+g.Name+"'")
	}
	if newer(g.GrammarFile, g.GeneratedParserPath) {
		add("generated parser is older than grammar.js",
			"run 'grammatic generate "+g.Name+"'")
	}

	tool := filepath.Base(s.Config.Tools.GrammarCompiler)
	minimum := s.Config.DoctorMinToolVersion()
	if toolVersion == gitutil.Unknown {
		add(tool+" version could not be determined",
			"check the output of '"+tool+" --version'")
	} else if minimum != "" {
		if older, ok := isOlderThan(toolVersion, minimum); ok && older {
			add(fmt.Sprintf("%s %s is older than the minimum supported version %s", tool, toolVersion, minimum),
				fmt.Sprintf("upgrade %s to %s or newer", tool, minimum))
		}
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].message < found[j].message })
	return found
}

// Report renders the doctor result as plain text.
func (r *DoctorResult) Report() string {
	var b strings.Builder
	if r.Error != nil {
		fmt.Fprintf(&b, "Doctor could not run for grammar '%s': %s\n", r.Grammar, r.Error.Message)
		return b.String()
	}
	if r.Healthy {
		fmt.Fprintf(&b, "Grammar '%s' looks good (tool version %s)\n", r.Grammar, r.ToolVersion)
		return b.String()
	}
	fmt.Fprintf(&b, "Issues found for grammar '%s' (tool version %s):\n", r.Grammar, r.ToolVersion)
	for i, f := range r.Findings {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, f)
		if i < len(r.Recommendations) {
			fmt.Fprintf(&b, "     fix: %s\n", r.Recommendations[i])
		}
	}
	return b.String()
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func modTime(path string) (time.Time, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

// newer reports whether a was modified after b. Missing files are never newer.
func newer(a, b string) bool {
	ta, okA := modTime(a)
	tb, okB := modTime(b)
	return okA && okB && ta.After(tb)
}
