//go:build !integration

package preflight

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/grammatic/grammatic/pkg/failure"
	"github.com/grammatic/grammatic/pkg/testutil"
	"github.com/grammatic/grammatic/pkg/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	grammarFile bool
	parser      bool
	corpus      bool
	emptyCorpus bool
	artifact    bool
}

func setup(t *testing.T, f fixture) workspace.Grammar {
	t.Helper()
	root := testutil.TempDir(t, "preflight-*")
	g, err := workspace.Resolve(root, "json", "linux")
	require.NoError(t, err)

	testutil.WriteFile(t, g.SourceDir, ".keep", "")
	if f.grammarFile {
		testutil.WriteFile(t, g.SourceDir, "grammar.js", "module.exports = grammar({})")
	}
	if f.parser {
		testutil.WriteFile(t, g.SrcDir, "parser.c", "")
	}
	if f.corpus {
		testutil.WriteFile(t, g.CorpusDir, "basic.txt", "===\nobject\n===\n{}\n---\n(document)\n")
	}
	if f.emptyCorpus {
		require.NoError(t, os.MkdirAll(g.CorpusDir, 0o755))
	}
	if f.artifact {
		testutil.WriteFile(t, g.BuildDir, filepath.Base(g.BuildArtifactPath), "ELF")
	}
	return g
}

func TestValidateMissingSourceDir(t *testing.T) {
	root := testutil.TempDir(t, "preflight-*")
	g, err := workspace.Resolve(root, "json", "linux")
	require.NoError(t, err)

	for _, op := range []Operation{Generate, Build, TestGrammar, Doctor, Parse} {
		outcome := Validate(g, op, Options{Source: "x"})
		require.NotNil(t, outcome, op)
		assert.Equal(t, failure.GrammarNotFound, outcome.Kind, op)
	}
}

func TestValidateParserNotGenerated(t *testing.T) {
	g := setup(t, fixture{grammarFile: true, corpus: true, artifact: true})

	for _, op := range []Operation{Build, TestGrammar, Doctor, Parse} {
		outcome := Validate(g, op, Options{RequireBuild: true, Source: g.GrammarFile})
		require.NotNil(t, outcome, op)
		assert.Equal(t, failure.ParserNotGenerated, outcome.Kind, op)
		assert.Equal(t, "grammatic generate json", outcome.Remediation)
	}

	assert.Nil(t, Validate(g, Generate, Options{}), "generate does not need a generated parser")
}

func TestValidateGenerateNeedsGrammarFile(t *testing.T) {
	g := setup(t, fixture{})
	outcome := Validate(g, Generate, Options{})
	require.NotNil(t, outcome)
	assert.Equal(t, failure.GrammarNotFound, outcome.Kind)
}

func TestValidateCorpus(t *testing.T) {
	tests := []struct {
		name string
		f    fixture
	}{
		{name: "missing corpus", f: fixture{parser: true, artifact: true}},
		{name: "empty corpus", f: fixture{parser: true, artifact: true, emptyCorpus: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := setup(t, tt.f)
			for _, op := range []Operation{TestGrammar, Doctor} {
				outcome := Validate(g, op, Options{RequireBuild: true})
				require.NotNil(t, outcome, op)
				assert.Equal(t, failure.CorpusMissing, outcome.Kind, op)
			}
			assert.Nil(t, Validate(g, Build, Options{}), "build does not need a corpus")
		})
	}
}

func TestValidateBuildArtifact(t *testing.T) {
	g := setup(t, fixture{parser: true, corpus: true})

	outcome := Validate(g, TestGrammar, Options{})
	require.NotNil(t, outcome)
	assert.Equal(t, failure.BuildArtifactMissing, outcome.Kind)
	assert.Equal(t, "grammatic build json", outcome.Remediation)

	outcome = Validate(g, Parse, Options{Source: g.SourceDir})
	require.NotNil(t, outcome)
	assert.Equal(t, failure.BuildArtifactMissing, outcome.Kind)

	outcome = Validate(g, Doctor, Options{RequireBuild: true})
	require.NotNil(t, outcome)
	assert.Equal(t, failure.BuildArtifactMissing, outcome.Kind)

	assert.Nil(t, Validate(g, Doctor, Options{RequireBuild: false}))
}

func TestValidateParseSource(t *testing.T) {
	g := setup(t, fixture{parser: true, artifact: true})

	outcome := Validate(g, Parse, Options{Source: filepath.Join(g.SourceDir, "missing.json")})
	require.NotNil(t, outcome)
	assert.Equal(t, failure.ValidationError, outcome.Kind)

	source := testutil.WriteFile(t, g.SourceDir, "example.json", "{}")
	assert.Nil(t, Validate(g, Parse, Options{Source: source}))
}

func TestValidateFirstFailureWins(t *testing.T) {
	// missing parser, corpus and artifact: only the parser is reported
	g := setup(t, fixture{})
	outcome := Validate(g, TestGrammar, Options{})
	require.NotNil(t, outcome)
	assert.Equal(t, failure.ParserNotGenerated, outcome.Kind)
}

func TestValidateReady(t *testing.T) {
	g := setup(t, fixture{grammarFile: true, parser: true, corpus: true, artifact: true})
	for _, op := range []Operation{Generate, Build, TestGrammar, Doctor} {
		assert.Nil(t, Validate(g, op, Options{RequireBuild: true}), op)
	}
}
