// Package provenance records one immutable event per grammatic invocation
// in append-only JSON Lines streams.
package provenance

import "time"

// EventType tags the variant of an event on the wire.
type EventType string

const (
	EventBuild    EventType = "build"
	EventParse    EventType = "parse"
	EventGenerate EventType = "generate"
	EventTest     EventType = "test"
	EventDoctor   EventType = "doctor"
)

// Status is the outcome recorded by an event.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Stream identifies the file an event is appended to.
type Stream string

const (
	BuildsStream Stream = "builds"
	ParsesStream Stream = "parses"
)

// Header holds the fields every event carries.
type Header struct {
	EventID       string    `json:"event_id"`
	EventType     EventType `json:"event_type"`
	Timestamp     time.Time `json:"timestamp"`
	Grammar       string    `json:"grammar"`
	Status        Status    `json:"status"`
	DurationMs    int64     `json:"duration_ms"`
	ErrorCode     string    `json:"error_code,omitempty"`
	StderrExcerpt string    `json:"stderr_excerpt,omitempty"`
}

// Event is implemented by *BuildEvent, *ParseEvent and *OperationEvent.
type Event interface {
	EventHeader() *Header
	Stream() Stream
}

func (h *Header) EventHeader() *Header { return h }

// BuildEvent records a build invocation.
type BuildEvent struct {
	Header
	Commit       string `json:"commit"`
	RepoURL      string `json:"repo_url"`
	ArtifactPath string `json:"artifact_path"`
	Compiler     string `json:"compiler"`
	ToolVersion  string `json:"tool_version"`
}

func (*BuildEvent) Stream() Stream { return BuildsStream }

// ParseEvent records a parse invocation.
type ParseEvent struct {
	Header
	GrammarVersion string `json:"grammar_version"`
	SourceFile     string `json:"source_file"`
	NodeCount      int    `json:"node_count"`
	HasErrors      bool   `json:"has_errors"`
	RootNodeType   string `json:"root_node_type"`
}

func (*ParseEvent) Stream() Stream { return ParsesStream }

// OperationEvent records generate, test and doctor invocations. It shares
// the builds stream with BuildEvent.
type OperationEvent struct {
	Header
	Passed   *int     `json:"passed,omitempty"`
	Failed   *int     `json:"failed,omitempty"`
	Findings []string `json:"findings"`
}

func (*OperationEvent) Stream() Stream { return BuildsStream }

// NewHeader starts a header for an event about grammar. ID and timestamp
// are stamped by Logger.Append.
func NewHeader(eventType EventType, grammar string, status Status, duration time.Duration) Header {
	return Header{
		EventType:  eventType,
		Grammar:    grammar,
		Status:     status,
		DurationMs: duration.Milliseconds(),
	}
}
