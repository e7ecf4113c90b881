package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/grammatic/grammatic/pkg/console"
	"github.com/grammatic/grammatic/pkg/failure"
	"github.com/grammatic/grammatic/pkg/logger"
	"github.com/grammatic/grammatic/pkg/logquery"
	"github.com/grammatic/grammatic/pkg/workflow"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

var mcpLog = logger.New("cli:mcp_server")

// NewMCPServerCommand creates the mcp-server command
func NewMCPServerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve the grammar lifecycle as MCP tools over stdio",
		Long: `Run a Model Context Protocol server on stdin/stdout so agents can drive the
grammar lifecycle. Every tool call is logged exactly like the matching CLI
command.

Tools:
  generate, build, test_grammar, doctor, parse  - lifecycle operations
  query_logs                                    - recent build or parse events

Examples:
  grammatic mcp-server --repo-root ~/src/grammars`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := globalOptions(cmd).service()
			if err != nil {
				return err
			}
			// stdout carries the protocol
			svc.Progress = nil
			fmt.Fprintln(os.Stderr, console.FormatInfoMessage("Starting MCP server for "+svc.Layout.Root))

			ctx, stop := signalContext(orBackground(cmd.Context()))
			defer stop()
			return newMCPServer(svc).Run(ctx, &mcp.StdioTransport{})
		},
	}
}

// QueryLogsArgs are the arguments of the query_logs tool.
type QueryLogsArgs struct {
	Stream   string `json:"stream" jsonschema:"Which log to read: builds or parses"`
	Grammar  string `json:"grammar,omitempty" jsonschema:"Only return events for this grammar"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Number of most recent events to return (default 20)"`
	Failures bool   `json:"failures,omitempty" jsonschema:"Only return failed invocations"`
}

func newMCPServer(svc *workflow.Service) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "grammatic", Version: GetVersion()}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "generate",
		Description: "Generate the C parser (src/parser.c) for a grammar from its grammar.js.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in workflow.GenerateRequest) (*mcp.CallToolResult, any, error) {
		r, err := svc.Generate(ctx, in)
		return operationResult(r, r.Result, err)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "build",
		Description: "Compile a generated grammar into build/<grammar>/<grammar>.so (or .dylib).",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in workflow.BuildRequest) (*mcp.CallToolResult, any, error) {
		r, err := svc.Build(ctx, in)
		return operationResult(r, r.Result, err)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "test_grammar",
		Description: "Run a built grammar's corpus tests and report passed and failed counts.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in workflow.TestGrammarRequest) (*mcp.CallToolResult, any, error) {
		r, err := svc.TestGrammar(ctx, in)
		return operationResult(r, r.Result, err)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "doctor",
		Description: "Diagnose common grammar problems. Findings come with one recommendation each.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in workflow.DoctorRequest) (*mcp.CallToolResult, any, error) {
		r, err := svc.Doctor(ctx, in)
		return operationResult(r, r.Result, err)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "parse",
		Description: "Parse a source file with a built grammar and return the syntax tree with a summary.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in workflow.ParseRequest) (*mcp.CallToolResult, any, error) {
		r, err := svc.Parse(ctx, in)
		return operationResult(r, r.Result, err)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "query_logs",
		Description: "Return recent events from the builds or parses provenance log.",
	}, func(_ context.Context, _ *mcp.CallToolRequest, in QueryLogsArgs) (*mcp.CallToolResult, any, error) {
		events, err := queryLogs(svc, in)
		if err != nil {
			return errorResult(err)
		}
		return textResult(events, false)
	})

	return server
}

func queryLogs(svc *workflow.Service, in QueryLogsArgs) (any, error) {
	limit := in.Limit
	if limit == 0 {
		limit = defaultLogLimit
	}
	log, err := logquery.Load(svc.Layout)
	if err != nil {
		return nil, err
	}
	mcpLog.Printf("query_logs stream=%s grammar=%s limit=%d failures=%v", in.Stream, in.Grammar, limit, in.Failures)

	switch in.Stream {
	case "builds":
		events := logquery.ForGrammar(log.Builds, in.Grammar)
		if in.Failures {
			events = logquery.Failures(events)
		}
		return nonNil(logquery.Tail(events, limit)), nil
	case "parses":
		events := logquery.ForGrammar(log.Parses, in.Grammar)
		if in.Failures {
			events = logquery.Failures(events)
		}
		return nonNil(logquery.Tail(events, limit)), nil
	default:
		return nil, failure.New(failure.ValidationError,
			fmt.Sprintf("unknown stream %q", in.Stream), "use stream \"builds\" or \"parses\"")
	}
}

// operationResult returns the operation payload as JSON text. Operation
// failures are tool errors carrying the same payload; a log write failure
// fails the call itself.
func operationResult(payload any, r workflow.Result, err error) (*mcp.CallToolResult, any, error) {
	if failure.KindOf(err) == failure.LogWriteFailed {
		mcpLog.Printf("Log write failed during %s: %v", r.Operation, err)
		return nil, nil, err
	}
	return textResult(payload, !r.OK())
}

func errorResult(err error) (*mcp.CallToolResult, any, error) {
	o, ok := failure.As(err)
	if !ok {
		o = failure.Wrap(failure.ValidationError, err, err.Error(), "")
	}
	return textResult(map[string]any{"error": o}, true)
}

func textResult(v any, isError bool) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal tool result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		IsError: isError,
	}, nil, nil
}
