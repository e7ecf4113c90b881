//go:build !integration

package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// connectTestServer starts an MCP server for repo on in-memory transports
// and returns a connected client session.
func connectTestServer(t *testing.T, repo string) *mcp.ClientSession {
	t.Helper()
	svc, err := GlobalOptions{RepoRoot: repo, JSON: true}.service()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := newMCPServer(svc).Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) (*mcp.CallToolResult, map[string]any) {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content")

	var payload map[string]any
	if err := json.Unmarshal([]byte(text.Text), &payload); err != nil {
		payload = nil
	}
	return result, payload
}

func TestMCPServerListsTools(t *testing.T) {
	session := connectTestServer(t, newTestRepo(t))

	result, err := session.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)

	var names []string
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description, "tool %s should have a description", tool.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"build", "doctor", "generate", "parse", "query_logs", "test_grammar"}, names)
}

func TestMCPServerBuildAndQueryLogs(t *testing.T) {
	repo := newTestRepo(t)
	session := connectTestServer(t, repo)

	result, payload := callTool(t, session, "build", map[string]any{"grammar": "json"})
	assert.False(t, result.IsError)
	require.NotNil(t, payload)
	assert.Equal(t, "success", payload["status"])
	assert.Equal(t, filepath.Join(repo, "build", "json", "json.so"), payload["artifact_path"])

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "query_logs",
		Arguments: map[string]any{"stream": "builds", "grammar": "json"},
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	text := result.Content[0].(*mcp.TextContent).Text

	var events []map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &events))
	require.Len(t, events, 1)
	assert.Equal(t, testCommit, events[0]["commit"])
}

func TestMCPServerOperationFailureIsToolError(t *testing.T) {
	session := connectTestServer(t, newTestRepo(t))

	result, payload := callTool(t, session, "parse", map[string]any{"grammar": "json", "source": "missing.json"})
	assert.True(t, result.IsError)
	require.NotNil(t, payload)
	assert.Equal(t, "failure", payload["status"])
	errObj, ok := payload["error"].(map[string]any)
	require.True(t, ok, "failure payload should carry the error")
	assert.Equal(t, "BUILD_ARTIFACT_MISSING", errObj["error_code"])
}

func TestMCPServerDoctor(t *testing.T) {
	session := connectTestServer(t, newTestRepo(t))

	// doctor requires a build by default
	result, payload := callTool(t, session, "doctor", map[string]any{"grammar": "json"})
	assert.True(t, result.IsError)
	require.NotNil(t, payload)
	assert.Equal(t, "failure", payload["status"])

	result, _ = callTool(t, session, "build", map[string]any{"grammar": "json"})
	require.False(t, result.IsError)

	result, payload = callTool(t, session, "doctor", map[string]any{"grammar": "json"})
	assert.False(t, result.IsError)
	require.NotNil(t, payload)
	assert.Equal(t, "0.22.6", payload["tool_version"])
	assert.Equal(t, true, payload["healthy"])
	assert.Empty(t, payload["findings"])
}

func TestMCPServerQueryLogsUnknownStream(t *testing.T) {
	session := connectTestServer(t, newTestRepo(t))

	result, payload := callTool(t, session, "query_logs", map[string]any{"stream": "everything"})
	assert.True(t, result.IsError)
	require.NotNil(t, payload)
	errObj, ok := payload["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "VALIDATION_ERROR", errObj["error_code"])
}
