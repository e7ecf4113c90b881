//go:build !integration

package workflow

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/grammatic/grammatic/pkg/failure"
	"github.com/grammatic/grammatic/pkg/provenance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	f := newFixture(t)
	g := f.grammar("json", nil)

	result, err := f.svc.Generate(context.Background(), GenerateRequest{Grammar: "json"})

	require.NoError(t, err)
	assert.True(t, result.OK())
	assert.Equal(t, g.SourceDir, result.GrammarDir)
	assert.FileExists(t, g.GeneratedParserPath)

	log := f.events()
	require.Len(t, log.Operations, 1)
	assert.Equal(t, provenance.EventGenerate, log.Operations[0].EventType)
	assert.Equal(t, provenance.StatusSuccess, log.Operations[0].Status)
}

func TestGenerateMissingGrammarFile(t *testing.T) {
	f := newFixture(t)
	f.grammar("json", nil)
	require.NoError(t, os.Remove(filepath.Join(f.layout.GrammarsRoot(), "json", "grammar.js")))

	_, err := f.svc.Generate(context.Background(), GenerateRequest{Grammar: "json"})

	require.Error(t, err)
	assert.Equal(t, failure.GrammarNotFound, failure.KindOf(err))
}

func TestGenerateToolFailureKeepsOutputExcerpt(t *testing.T) {
	f := newFixture(t)
	f.grammar("json", nil)
	f.svc.Config.Tools.GrammarCompiler = f.tool("bad-generate", `echo "Error: unresolved rule 'value'"; exit 1`)

	result, err := f.svc.Generate(context.Background(), GenerateRequest{Grammar: "json"})

	require.Error(t, err)
	assert.Equal(t, failure.ToolInvocationFailed, failure.KindOf(err))
	require.NotNil(t, result.Error)
	assert.Equal(t, "Error: unresolved rule 'value'", result.Error.StderrExcerpt, "stdout is used when stderr is empty")
	assert.Equal(t, "TOOL_INVOCATION_FAILED", f.events().Operations[0].ErrorCode)
}
