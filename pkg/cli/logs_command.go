package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/grammatic/grammatic/pkg/console"
	"github.com/grammatic/grammatic/pkg/failure"
	"github.com/grammatic/grammatic/pkg/logger"
	"github.com/grammatic/grammatic/pkg/logquery"
	"github.com/spf13/cobra"
)

var logsLog = logger.New("cli:logs")

const defaultLogLimit = 20

// NewLogsCommand creates the logs command and its query subcommands
func NewLogsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Query the build and parse provenance logs",
		Long: `Query logs/builds.jsonl and logs/parses.jsonl.

Every generate, build, test-grammar, doctor and parse invocation appends one
event. These commands read the logs without modifying them.

Examples:
  grammatic logs builds --grammar json --failures
  grammatic logs parses --limit 5 --json
  grammatic logs stats
  grammatic logs top --kind parse
  grammatic logs check`,
	}

	cmd.AddCommand(
		newLogsBuildsCommand(),
		newLogsParsesCommand(),
		newLogsStatsCommand(),
		newLogsTopCommand(),
		newLogsVersionsCommand(),
		newLogsTimelineCommand(),
		newLogsCheckCommand(),
		newLogsSchemaCommand(),
	)
	return cmd
}

// BuildRow is one build event as shown in tables.
type BuildRow struct {
	When     string `console:"header:Time"`
	Grammar  string `console:"header:Grammar"`
	Status   string `console:"header:Status"`
	Duration string `console:"header:Duration"`
	Commit   string `console:"header:Commit"`
	Compiler string `console:"header:Compiler"`
	Error    string `console:"header:Error,omitempty"`
}

// ParseRow is one parse event as shown in tables.
type ParseRow struct {
	When      string `console:"header:Time"`
	Grammar   string `console:"header:Grammar"`
	Status    string `console:"header:Status"`
	Duration  string `console:"header:Duration"`
	Source    string `console:"header:Source"`
	Nodes     int    `console:"header:Nodes"`
	HasErrors bool   `console:"header:Errors"`
	Error     string `console:"header:Error,omitempty"`
}

func newLogsBuildsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "builds",
		Short: "Show recent build events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := globalOptions(cmd)
			grammar, _ := cmd.Flags().GetString("grammar")
			limit, _ := cmd.Flags().GetInt("limit")
			failures, _ := cmd.Flags().GetBool("failures")

			log, err := loadLog(opts)
			if err != nil {
				return err
			}
			events := logquery.ForGrammar(log.Builds, grammar)
			if failures {
				events = logquery.Failures(events)
			}
			events = logquery.Tail(events, limit)
			logsLog.Printf("Showing %d build events", len(events))

			if opts.JSON {
				return printJSON(nonNil(events))
			}
			rows := make([]BuildRow, len(events))
			for i, e := range events {
				rows[i] = BuildRow{
					When:     formatWhen(e.Timestamp),
					Grammar:  e.Grammar,
					Status:   string(e.Status),
					Duration: console.FormatDurationMs(float64(e.DurationMs)),
					Commit:   shortCommit(e.Commit),
					Compiler: filepath.Base(e.Compiler),
					Error:    e.ErrorCode,
				}
			}
			printTable(rows, "No build events found.")
			return nil
		},
	}
	addLogFilterFlags(cmd)
	cmd.Flags().Bool("failures", false, "Only show failed builds")
	return cmd
}

func newLogsParsesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parses",
		Short: "Show recent parse events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := globalOptions(cmd)
			grammar, _ := cmd.Flags().GetString("grammar")
			limit, _ := cmd.Flags().GetInt("limit")
			failures, _ := cmd.Flags().GetBool("failures")
			problems, _ := cmd.Flags().GetBool("problems")

			log, err := loadLog(opts)
			if err != nil {
				return err
			}
			events := logquery.ForGrammar(log.Parses, grammar)
			switch {
			case problems:
				events = logquery.ParseProblems(events)
			case failures:
				events = logquery.Failures(events)
			}
			events = logquery.Tail(events, limit)

			if opts.JSON {
				return printJSON(nonNil(events))
			}
			rows := make([]ParseRow, len(events))
			for i, e := range events {
				rows[i] = ParseRow{
					When:      formatWhen(e.Timestamp),
					Grammar:   e.Grammar,
					Status:    string(e.Status),
					Duration:  console.FormatDurationMs(float64(e.DurationMs)),
					Source:    console.ToRelativePath(e.SourceFile),
					Nodes:     e.NodeCount,
					HasErrors: e.HasErrors,
					Error:     e.ErrorCode,
				}
			}
			printTable(rows, "No parse events found.")
			return nil
		},
	}
	addLogFilterFlags(cmd)
	cmd.Flags().Bool("failures", false, "Only show failed parses")
	cmd.Flags().Bool("problems", false, "Show failed parses and parses whose tree has ERROR nodes")
	return cmd
}

// StreamSummary is one stream's summary as shown by logs stats.
type StreamSummary struct {
	Stream      string  `console:"header:Stream"`
	Total       int     `console:"header:Total"`
	SuccessRate float64 `console:"header:Success %"`
	Mean        string  `console:"header:Mean"`
	P50         string  `console:"header:P50"`
	P95         string  `console:"header:P95"`
	P99         string  `console:"header:P99"`
}

func newLogsStatsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarise success rates and durations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := globalOptions(cmd)
			grammar, _ := cmd.Flags().GetString("grammar")

			log, err := loadLog(opts)
			if err != nil {
				return err
			}
			builds := logquery.Summarize(logquery.ForGrammar(log.Builds, grammar))
			parses := logquery.Summarize(logquery.ForGrammar(log.Parses, grammar))
			perGrammar := logquery.PerGrammar(log)
			if grammar != "" {
				perGrammar = filterStats(perGrammar, grammar)
			}

			if opts.JSON {
				return printJSON(map[string]any{
					"builds":      builds,
					"parses":      parses,
					"per_grammar": nonNil(perGrammar),
				})
			}
			fmt.Print(console.RenderStruct([]StreamSummary{
				streamSummary("builds", builds),
				streamSummary("parses", parses),
			}))
			if len(perGrammar) > 0 {
				fmt.Print(console.RenderStruct(perGrammar))
			}
			return nil
		},
	}
	cmd.Flags().String("grammar", "", "Only include events for this grammar")
	return cmd
}

func streamSummary(stream string, s logquery.Summary) StreamSummary {
	return StreamSummary{
		Stream:      stream,
		Total:       s.Total,
		SuccessRate: s.SuccessRate,
		Mean:        console.FormatDurationMs(s.MeanMs),
		P50:         console.FormatDurationMs(s.P50Ms),
		P95:         console.FormatDurationMs(s.P95Ms),
		P99:         console.FormatDurationMs(s.P99Ms),
	}
}

func filterStats(stats []logquery.GrammarStats, grammar string) []logquery.GrammarStats {
	var out []logquery.GrammarStats
	for _, s := range stats {
		if s.Grammar == grammar {
			out = append(out, s)
		}
	}
	return out
}

// SlowEvent is one row of logs top.
type SlowEvent struct {
	When     string `json:"-" console:"header:Time"`
	Grammar  string `json:"grammar" console:"header:Grammar"`
	Status   string `json:"status" console:"header:Status"`
	Duration int64  `json:"duration_ms" console:"header:Duration (ms)"`
	Detail   string `json:"detail" console:"header:Detail,omitempty"`
}

func newLogsTopCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "top",
		Short: "Show the slowest builds or parses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := globalOptions(cmd)
			limit, _ := cmd.Flags().GetInt("limit")
			kind, _ := cmd.Flags().GetString("kind")

			log, err := loadLog(opts)
			if err != nil {
				return err
			}
			var rows []SlowEvent
			switch kind {
			case "build":
				for _, e := range logquery.TopByDuration(log.Builds, limit) {
					rows = append(rows, SlowEvent{formatWhen(e.Timestamp), e.Grammar, string(e.Status), e.DurationMs, shortCommit(e.Commit)})
				}
			case "parse":
				for _, e := range logquery.TopByDuration(log.Parses, limit) {
					rows = append(rows, SlowEvent{formatWhen(e.Timestamp), e.Grammar, string(e.Status), e.DurationMs, console.ToRelativePath(e.SourceFile)})
				}
			default:
				return failure.New(failure.ValidationError,
					fmt.Sprintf("unknown --kind %q", kind), "use --kind build or --kind parse")
			}

			if opts.JSON {
				return printJSON(nonNil(rows))
			}
			printTable(rows, "No "+kind+" events found.")
			return nil
		},
	}
	cmd.Flags().Int("limit", 10, "Number of events to show")
	cmd.Flags().String("kind", "build", "Event kind: build or parse")
	return cmd
}

func newLogsVersionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "versions",
		Short: "Count parses per grammar version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := globalOptions(cmd)
			grammar, _ := cmd.Flags().GetString("grammar")

			log, err := loadLog(opts)
			if err != nil {
				return err
			}
			histogram := logquery.VersionHistogram(logquery.ForGrammar(log.Parses, grammar))

			if opts.JSON {
				return printJSON(histogram)
			}
			printTable(histogram, "No parse events found.")
			return nil
		},
	}
	cmd.Flags().String("grammar", "", "Only include parses of this grammar")
	return cmd
}

func newLogsTimelineCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Show every recent event in time order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := globalOptions(cmd)
			limit, _ := cmd.Flags().GetInt("limit")

			log, err := loadLog(opts)
			if err != nil {
				return err
			}
			entries := logquery.Timeline(log, limit)

			if opts.JSON {
				return printJSON(nonNil(entries))
			}
			printTable(entries, "No events found.")
			return nil
		},
	}
	cmd.Flags().Int("limit", defaultLogLimit, "Number of events to show")
	return cmd
}

func newLogsCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate every log line against the event schemas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := globalOptions(cmd)
			layout, err := opts.layout()
			if err != nil {
				return err
			}

			var violations []logquery.Violation
			for _, path := range []string{layout.BuildsLog(), layout.ParsesLog()} {
				found, err := logquery.CheckStream(path)
				if err != nil {
					return failure.Wrap(failure.ValidationError, err, "cannot read "+path, "")
				}
				violations = append(violations, found...)
			}
			logsLog.Printf("Schema check found %d violations", len(violations))

			if opts.JSON {
				if err := printJSON(nonNil(violations)); err != nil {
					return err
				}
			} else if len(violations) == 0 {
				fmt.Fprintln(os.Stderr, console.FormatSuccessMessage("All log entries match their schemas"))
			} else {
				for i := range violations {
					violations[i].Path = console.ToRelativePath(violations[i].Path)
				}
				fmt.Print(console.RenderStruct(violations))
			}

			if len(violations) > 0 {
				return failure.New(failure.ValidationError,
					fmt.Sprintf("%d log entries do not match their schema", len(violations)),
					"inspect the listed lines; logs are append-only and are never rewritten")
			}
			return nil
		},
	}
}

func newLogsSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "schema <build|parse|operation>",
		Short:     "Print the JSON Schema of an event type",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"build", "parse", "operation"},
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := logquery.EventSchema(args[0])
			if err != nil {
				return failure.Wrap(failure.ValidationError, err, "cannot generate schema", "")
			}
			return printJSON(schema)
		},
	}
}

func addLogFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("grammar", "", "Only show events for this grammar")
	cmd.Flags().Int("limit", defaultLogLimit, "Number of most recent events to show (0 for all)")
}

func loadLog(opts GlobalOptions) (*logquery.Log, error) {
	layout, err := opts.layout()
	if err != nil {
		return nil, err
	}
	return logquery.Load(layout)
}

func printTable(rows any, empty string) {
	out := console.RenderStruct(rows)
	if out == "" {
		fmt.Fprintln(os.Stderr, console.FormatInfoMessage(empty))
		return
	}
	fmt.Print(out)
}

func formatWhen(t time.Time) string {
	return t.Local().Format(time.DateTime)
}

func shortCommit(commit string) string {
	if len(commit) > 12 {
		return commit[:12]
	}
	return commit
}

// nonNil keeps empty results rendering as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
