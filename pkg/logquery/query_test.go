//go:build !integration

package logquery

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/grammatic/grammatic/pkg/failure"
	"github.com/grammatic/grammatic/pkg/provenance"
	"github.com/grammatic/grammatic/pkg/testutil"
	"github.com/grammatic/grammatic/pkg/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseEvent(grammar string, status provenance.Status, ms int64, version string) *provenance.ParseEvent {
	ev := &provenance.ParseEvent{
		Header:         provenance.NewHeader(provenance.EventParse, grammar, status, time.Duration(ms)*time.Millisecond),
		GrammarVersion: version,
		SourceFile:     "example.txt",
		NodeCount:      3,
		RootNodeType:   "source_file",
	}
	if status == provenance.StatusFailure {
		ev.ErrorCode = failure.ToolInvocationFailed.Code()
	}
	return ev
}

func buildEvent(grammar string, status provenance.Status, ms int64, commit string) *provenance.BuildEvent {
	ev := &provenance.BuildEvent{
		Header:      provenance.NewHeader(provenance.EventBuild, grammar, status, time.Duration(ms)*time.Millisecond),
		Commit:      commit,
		RepoURL:     "unknown",
		Compiler:    "gcc",
		ToolVersion: "0.22.6",
	}
	if status == provenance.StatusFailure {
		ev.ErrorCode = failure.ToolInvocationFailed.Code()
	}
	return ev
}

func TestRoundTrip(t *testing.T) {
	root := testutil.TempDir(t, "logquery-*")
	layout := workspace.Layout{Root: root}
	l := provenance.NewFileLogger(layout.LogsRoot())

	artifact := testutil.WriteFile(t, root, "build/json/json.so", "ELF")
	passed, failed := 4, 1

	build := buildEvent("json", provenance.StatusSuccess, 1200, "abc1234")
	build.ArtifactPath = artifact
	build.StderrExcerpt = "warning: unused variable <x> & \"y\""
	parse := parseEvent("json", provenance.StatusSuccess, 15, "abc1234")
	parse.HasErrors = true
	test := &provenance.OperationEvent{
		Header: provenance.NewHeader(provenance.EventTest, "json", provenance.StatusSuccess, time.Second),
		Passed: &passed,
		Failed: &failed,
	}
	doctor := &provenance.OperationEvent{
		Header:   provenance.NewHeader(provenance.EventDoctor, "json", provenance.StatusSuccess, 0),
		Findings: []string{"build artifact is older than the generated parser"},
	}

	require.NoError(t, l.Append(build))
	require.NoError(t, l.Append(test))
	require.NoError(t, l.Append(parse))
	require.NoError(t, l.Append(doctor))

	log, err := Load(layout)
	require.NoError(t, err)

	require.Len(t, log.Builds, 1)
	require.Len(t, log.Operations, 2)
	require.Len(t, log.Parses, 1)
	assert.Equal(t, build, log.Builds[0])
	assert.Equal(t, test, log.Operations[0])
	assert.Equal(t, doctor, log.Operations[1])
	assert.Equal(t, parse, log.Parses[0])
}

func TestLoadMissingStreamsAreEmpty(t *testing.T) {
	log, err := Load(workspace.Layout{Root: testutil.TempDir(t, "logquery-*")})
	require.NoError(t, err)
	assert.Empty(t, log.Builds)
	assert.Empty(t, log.Parses)
}

func TestLoadReportsMalformedLine(t *testing.T) {
	root := testutil.TempDir(t, "logquery-*")
	layout := workspace.Layout{Root: root}
	testutil.WriteFile(t, root, "logs/parses.jsonl", "\n{\"event_type\":\"parse\"}\n{not json\n")

	_, err := Load(layout)
	require.Error(t, err)
	assert.Contains(t, err.Error(), filepath.Join("logs", "parses.jsonl")+":3")
	assert.Equal(t, failure.ValidationError, failure.KindOf(err))
}

func TestLoadRejectsUnknownEventType(t *testing.T) {
	root := testutil.TempDir(t, "logquery-*")
	testutil.WriteFile(t, root, "logs/builds.jsonl", `{"event_type":"deploy","grammar":"json"}`+"\n")

	_, err := Load(workspace.Layout{Root: root})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "builds.jsonl:1")
}

func TestFailuresScenario(t *testing.T) {
	events := []*provenance.ParseEvent{
		parseEvent("json", provenance.StatusSuccess, 10, "a"),
		parseEvent("json", provenance.StatusFailure, 11, "a"),
		parseEvent("json", provenance.StatusSuccess, 12, "a"),
		parseEvent("toml", provenance.StatusFailure, 13, "b"),
		parseEvent("toml", provenance.StatusSuccess, 14, "b"),
	}

	failures := Failures(events)
	require.Len(t, failures, 2)
	assert.Same(t, events[1], failures[0])
	assert.Same(t, events[3], failures[1])
}

func TestStatusCountsSumToTotal(t *testing.T) {
	var events []*provenance.BuildEvent
	for i := 0; i < 17; i++ {
		status := provenance.StatusSuccess
		if i%3 == 0 {
			status = provenance.StatusFailure
		}
		events = append(events, buildEvent("json", status, int64(i), "c"))
	}

	counts := StatusCounts(events)
	sum := 0
	for _, c := range counts {
		sum += c
	}
	assert.Equal(t, len(events), sum)
	assert.Equal(t, 6, counts[provenance.StatusFailure])
}

func TestMeanDuration(t *testing.T) {
	assert.InDelta(t, 0.0, MeanDuration([]*provenance.ParseEvent{}), 0)
	assert.InDelta(t, 0.0, MeanDuration(ForGrammar([]*provenance.ParseEvent{parseEvent("json", provenance.StatusSuccess, 5, "a")}, "toml")), 0)

	events := []*provenance.ParseEvent{
		parseEvent("json", provenance.StatusSuccess, 10, "a"),
		parseEvent("json", provenance.StatusSuccess, 20, "a"),
	}
	assert.InDelta(t, 15.0, MeanDuration(events), 0)
}

func TestTailAndForGrammar(t *testing.T) {
	var events []*provenance.BuildEvent
	for i := 0; i < 5; i++ {
		events = append(events, buildEvent(fmt.Sprintf("g%d", i%2), provenance.StatusSuccess, int64(i), "c"))
	}

	tail := Tail(events, 2)
	require.Len(t, tail, 2)
	assert.Same(t, events[3], tail[0])
	assert.Same(t, events[4], tail[1])
	assert.Len(t, Tail(events, 0), 5)
	assert.Len(t, Tail(events, 50), 5)

	g0 := ForGrammar(events, "g0")
	assert.Len(t, g0, 3)
	assert.Len(t, ForGrammar(events, ""), 5)
}

func TestTopByDuration(t *testing.T) {
	events := []*provenance.BuildEvent{
		buildEvent("a", provenance.StatusSuccess, 30, "c"),
		buildEvent("b", provenance.StatusSuccess, 90, "c"),
		buildEvent("c", provenance.StatusSuccess, 30, "c"),
		buildEvent("d", provenance.StatusSuccess, 60, "c"),
	}

	top := TopByDuration(events, 3)
	require.Len(t, top, 3)
	assert.Equal(t, "b", top[0].Grammar)
	assert.Equal(t, "d", top[1].Grammar)
	assert.Equal(t, "a", top[2].Grammar, "ties keep file order")
	assert.Equal(t, "a", events[0].Grammar, "input is not reordered")
}

func TestVersionHistogram(t *testing.T) {
	events := []*provenance.ParseEvent{
		parseEvent("json", provenance.StatusSuccess, 1, "abc"),
		parseEvent("json", provenance.StatusSuccess, 1, "def"),
		parseEvent("json", provenance.StatusSuccess, 1, "abc"),
		parseEvent("json", provenance.StatusSuccess, 1, "unknown"),
	}

	assert.Equal(t, []VersionCount{
		{Version: "abc", Count: 2},
		{Version: "def", Count: 1},
		{Version: "unknown", Count: 1},
	}, VersionHistogram(events))
}

func TestPercentile(t *testing.T) {
	tests := []struct {
		name     string
		values   []int64
		p        float64
		expected float64
	}{
		{name: "empty", values: nil, p: 50, expected: 0},
		{name: "single", values: []int64{42}, p: 99, expected: 42},
		{name: "median of even count", values: []int64{10, 20, 30, 40}, p: 50, expected: 25},
		{name: "exact rank", values: []int64{10, 20, 30}, p: 50, expected: 20},
		{name: "p95 interpolates", values: []int64{10, 20, 30, 40, 50}, p: 95, expected: 48},
		{name: "p100 is max", values: []int64{1, 2, 3}, p: 100, expected: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Percentile(tt.values, tt.p), 0.001)
		})
	}
}

func TestSummarize(t *testing.T) {
	events := []*provenance.BuildEvent{
		buildEvent("json", provenance.StatusSuccess, 10, "c"),
		buildEvent("json", provenance.StatusSuccess, 20, "c"),
		buildEvent("json", provenance.StatusFailure, 30, "c"),
	}

	s := Summarize(events)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.SuccessCount)
	assert.Equal(t, 1, s.FailureCount)
	assert.InDelta(t, 66.67, s.SuccessRate, 0.001)
	assert.InDelta(t, 20.0, s.MeanMs, 0.001)
	assert.InDelta(t, 20.0, s.P50Ms, 0.001)

	empty := Summarize([]*provenance.BuildEvent{})
	assert.Equal(t, Summary{}, empty)
}

func TestPerGrammar(t *testing.T) {
	log := &Log{
		Builds: []*provenance.BuildEvent{
			buildEvent("json", provenance.StatusSuccess, 1, "c"),
			buildEvent("json", provenance.StatusFailure, 1, "c"),
		},
		Parses: []*provenance.ParseEvent{
			parseEvent("toml", provenance.StatusSuccess, 1, "c"),
			parseEvent("json", provenance.StatusFailure, 1, "c"),
		},
	}

	stats := PerGrammar(log)
	require.Len(t, stats, 2)
	assert.Equal(t, GrammarStats{Grammar: "json", Builds: 2, BuildSuccessRate: 50, Parses: 1, ParseErrorRate: 100}, stats[0])
	assert.Equal(t, GrammarStats{Grammar: "toml", Parses: 1}, stats[1])
}

func TestTimeline(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := buildEvent("json", provenance.StatusSuccess, 1, "c")
	b.Timestamp = base.Add(2 * time.Second)
	p := parseEvent("json", provenance.StatusSuccess, 1, "c")
	p.Timestamp = base.Add(3 * time.Second)
	g := &provenance.OperationEvent{Header: provenance.NewHeader(provenance.EventGenerate, "json", provenance.StatusSuccess, 0)}
	g.Timestamp = base

	log := &Log{Builds: []*provenance.BuildEvent{b}, Operations: []*provenance.OperationEvent{g}, Parses: []*provenance.ParseEvent{p}}

	all := Timeline(log, 0)
	require.Len(t, all, 3)
	assert.Equal(t, provenance.EventGenerate, all[0].EventType)
	assert.Equal(t, provenance.EventBuild, all[1].EventType)
	assert.Equal(t, provenance.EventParse, all[2].EventType)
	assert.Equal(t, "2026-03-01 12:00:00", all[0].When)

	recent := Timeline(log, 1)
	require.Len(t, recent, 1)
	assert.Equal(t, provenance.EventParse, recent[0].EventType)
}

func TestLatestBuildCommit(t *testing.T) {
	builds := []*provenance.BuildEvent{
		buildEvent("json", provenance.StatusSuccess, 1, "old1111"),
		buildEvent("toml", provenance.StatusSuccess, 1, "toml111"),
		buildEvent("json", provenance.StatusSuccess, 1, "new2222"),
		buildEvent("json", provenance.StatusFailure, 1, "bad3333"),
	}

	assert.Equal(t, "new2222", LatestBuildCommit(builds, "json"))
	assert.Equal(t, "toml111", LatestBuildCommit(builds, "toml"))
	assert.Equal(t, "unknown", LatestBuildCommit(builds, "yaml"))
	assert.Equal(t, "unknown", LatestBuildCommit(nil, "json"))
}

func TestLatestBuildCommitFromFileSkipsDamage(t *testing.T) {
	root := testutil.TempDir(t, "logquery-*")
	path := testutil.WriteFile(t, root, "logs/builds.jsonl",
		`{"event_type":"build","grammar":"json","status":"success","commit":"aaa1111"}`+"\n"+
			"{truncated\n"+
			`{"event_type":"generate","grammar":"json","status":"success"}`+"\n")

	assert.Equal(t, "aaa1111", LatestBuildCommitFromFile(path, "json"))
	assert.Equal(t, "unknown", LatestBuildCommitFromFile(filepath.Join(root, "missing.jsonl"), "json"))
}
