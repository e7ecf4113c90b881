package logquery

import (
	"cmp"
	"math"
	"slices"
	"sort"
	"time"

	"github.com/grammatic/grammatic/pkg/provenance"
)

// Tail returns the last n events, or all of them when n <= 0.
func Tail[E provenance.Event](events []E, n int) []E {
	if n <= 0 || n >= len(events) {
		return slices.Clone(events)
	}
	return slices.Clone(events[len(events)-n:])
}

// ForGrammar keeps events about grammar. An empty grammar keeps everything.
func ForGrammar[E provenance.Event](events []E, grammar string) []E {
	if grammar == "" {
		return slices.Clone(events)
	}
	return filter(events, func(e E) bool { return e.EventHeader().Grammar == grammar })
}

// Failures keeps events with status failure.
func Failures[E provenance.Event](events []E) []E {
	return filter(events, func(e E) bool { return e.EventHeader().Status == provenance.StatusFailure })
}

// ParseProblems keeps parse events that failed or produced a tree with
// ERROR nodes.
func ParseProblems(events []*provenance.ParseEvent) []*provenance.ParseEvent {
	return filter(events, func(e *provenance.ParseEvent) bool {
		return e.Status == provenance.StatusFailure || e.HasErrors
	})
}

// StatusCounts groups events by status. The counts sum to len(events).
func StatusCounts[E provenance.Event](events []E) map[provenance.Status]int {
	counts := make(map[provenance.Status]int)
	for _, e := range events {
		counts[e.EventHeader().Status]++
	}
	return counts
}

// MeanDuration is the mean duration_ms, or 0 for no events.
func MeanDuration[E provenance.Event](events []E) float64 {
	if len(events) == 0 {
		return 0
	}
	var total int64
	for _, e := range events {
		total += e.EventHeader().DurationMs
	}
	return float64(total) / float64(len(events))
}

// TopByDuration returns the n slowest events, slowest first. Ties keep file
// order.
func TopByDuration[E provenance.Event](events []E, n int) []E {
	sorted := slices.Clone(events)
	slices.SortStableFunc(sorted, func(a, b E) int {
		return cmp.Compare(b.EventHeader().DurationMs, a.EventHeader().DurationMs)
	})
	if n > 0 && n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}

// VersionCount is one row of a version histogram.
type VersionCount struct {
	Version string `json:"version" console:"header:Grammar Version"`
	Count   int    `json:"count" console:"header:Count"`
}

// VersionHistogram counts parse events per grammar_version, most frequent
// first, ties by version.
func VersionHistogram(events []*provenance.ParseEvent) []VersionCount {
	counts := make(map[string]int)
	for _, e := range events {
		counts[e.GrammarVersion]++
	}
	out := make([]VersionCount, 0, len(counts))
	for v, c := range counts {
		out = append(out, VersionCount{Version: v, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Version < out[j].Version
	})
	return out
}

// Percentile interpolates linearly between closest ranks of sorted values.
// p is in [0, 100]. An empty input yields 0.
func Percentile(sorted []int64, p float64) float64 {
	switch len(sorted) {
	case 0:
		return 0
	case 1:
		return float64(sorted[0])
	}
	rank := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return float64(sorted[lower])
	}
	weight := rank - float64(lower)
	return round2(float64(sorted[lower])*(1-weight) + float64(sorted[upper])*weight)
}

// Summary aggregates a set of events.
type Summary struct {
	Total        int     `json:"total"`
	SuccessCount int     `json:"success_count"`
	FailureCount int     `json:"failure_count"`
	SuccessRate  float64 `json:"success_rate"`
	MeanMs       float64 `json:"mean_ms"`
	P50Ms        float64 `json:"p50_ms"`
	P95Ms        float64 `json:"p95_ms"`
	P99Ms        float64 `json:"p99_ms"`
}

// Summarize computes counts, success rate (percent) and latency figures.
func Summarize[E provenance.Event](events []E) Summary {
	counts := StatusCounts(events)
	durations := make([]int64, len(events))
	for i, e := range events {
		durations[i] = e.EventHeader().DurationMs
	}
	slices.Sort(durations)

	s := Summary{
		Total:        len(events),
		SuccessCount: counts[provenance.StatusSuccess],
		FailureCount: counts[provenance.StatusFailure],
		MeanMs:       round2(MeanDuration(events)),
		P50Ms:        Percentile(durations, 50),
		P95Ms:        Percentile(durations, 95),
		P99Ms:        Percentile(durations, 99),
	}
	if s.Total > 0 {
		s.SuccessRate = round2(float64(s.SuccessCount) / float64(s.Total) * 100)
	}
	return s
}

// GrammarStats is the per-grammar view of both streams.
type GrammarStats struct {
	Grammar          string  `json:"grammar" console:"header:Grammar"`
	Builds           int     `json:"builds" console:"header:Builds"`
	BuildSuccessRate float64 `json:"build_success_rate" console:"header:Build Success %"`
	Parses           int     `json:"parses" console:"header:Parses"`
	ParseErrorRate   float64 `json:"parse_error_rate" console:"header:Parse Error %"`
}

// PerGrammar returns stats for every grammar that appears in either stream,
// sorted by name.
func PerGrammar(log *Log) []GrammarStats {
	byName := make(map[string]*GrammarStats)
	get := func(name string) *GrammarStats {
		if s, ok := byName[name]; ok {
			return s
		}
		s := &GrammarStats{Grammar: name}
		byName[name] = s
		return s
	}

	buildOK := make(map[string]int)
	for _, b := range log.Builds {
		s := get(b.Grammar)
		s.Builds++
		if b.Status == provenance.StatusSuccess {
			buildOK[b.Grammar]++
		}
	}
	parseBad := make(map[string]int)
	for _, p := range log.Parses {
		s := get(p.Grammar)
		s.Parses++
		if p.Status == provenance.StatusFailure || p.HasErrors {
			parseBad[p.Grammar]++
		}
	}

	out := make([]GrammarStats, 0, len(byName))
	for name, s := range byName {
		if s.Builds > 0 {
			s.BuildSuccessRate = round2(float64(buildOK[name]) / float64(s.Builds) * 100)
		}
		if s.Parses > 0 {
			s.ParseErrorRate = round2(float64(parseBad[name]) / float64(s.Parses) * 100)
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Grammar < out[j].Grammar })
	return out
}

// TimelineEntry is one event in the merged chronological view.
type TimelineEntry struct {
	Timestamp  time.Time            `json:"timestamp" console:"-"`
	When       string               `json:"-" console:"header:Time"`
	EventType  provenance.EventType `json:"event_type" console:"header:Event"`
	Grammar    string               `json:"grammar" console:"header:Grammar"`
	Status     provenance.Status    `json:"status" console:"header:Status"`
	DurationMs int64                `json:"duration_ms" console:"header:Duration (ms)"`
}

// Timeline merges every event from both streams by timestamp and returns
// the most recent n (all when n <= 0), oldest first.
func Timeline(log *Log, n int) []TimelineEntry {
	var entries []TimelineEntry
	add := func(h *provenance.Header) {
		entries = append(entries, TimelineEntry{
			Timestamp:  h.Timestamp,
			When:       h.Timestamp.Format(time.DateTime),
			EventType:  h.EventType,
			Grammar:    h.Grammar,
			Status:     h.Status,
			DurationMs: h.DurationMs,
		})
	}
	for _, e := range log.Builds {
		add(e.EventHeader())
	}
	for _, e := range log.Operations {
		add(e.EventHeader())
	}
	for _, e := range log.Parses {
		add(e.EventHeader())
	}

	slices.SortStableFunc(entries, func(a, b TimelineEntry) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	if n > 0 && n < len(entries) {
		entries = entries[len(entries)-n:]
	}
	return entries
}

// LatestBuildCommit scans builds backwards for the most recent successful
// build of grammar and returns its commit. It is a best-effort association
// with no index behind it; "unknown" when there is none.
func LatestBuildCommit(builds []*provenance.BuildEvent, grammar string) string {
	for i := len(builds) - 1; i >= 0; i-- {
		b := builds[i]
		if b.Grammar == grammar && b.Status == provenance.StatusSuccess {
			if b.Commit == "" {
				return "unknown"
			}
			return b.Commit
		}
	}
	return "unknown"
}

func filter[E any](events []E, keep func(E) bool) []E {
	out := make([]E, 0, len(events))
	for _, e := range events {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
