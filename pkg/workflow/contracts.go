package workflow

import (
	"encoding/json"

	"github.com/grammatic/grammatic/pkg/failure"
	"github.com/grammatic/grammatic/pkg/preflight"
	"github.com/grammatic/grammatic/pkg/provenance"
)

// Diagnostic levels.
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Diagnostic is one human-readable message produced by an operation.
type Diagnostic struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// GenerateRequest asks for a grammar's parser to be generated.
type GenerateRequest struct {
	Grammar string `json:"grammar" jsonschema:"Grammar name under grammars/"`
}

// BuildRequest asks for a grammar to be compiled into a shared library.
type BuildRequest struct {
	Grammar string `json:"grammar" jsonschema:"Grammar name under grammars/"`
}

// TestGrammarRequest asks for a grammar's corpus tests to be run.
type TestGrammarRequest struct {
	Grammar string `json:"grammar" jsonschema:"Grammar name under grammars/"`
}

// DoctorRequest asks for a grammar's health to be diagnosed.
type DoctorRequest struct {
	Grammar string `json:"grammar" jsonschema:"Grammar name under grammars/"`
}

// ParseRequest asks for a source file to be parsed with a built grammar.
type ParseRequest struct {
	Grammar string `json:"grammar" jsonschema:"Grammar name under grammars/"`
	Source  string `json:"source" jsonschema:"Path of the file to parse"`
}

// Result holds the fields shared by every operation result.
type Result struct {
	Operation   preflight.Operation `json:"operation"`
	Grammar     string              `json:"grammar"`
	Status      provenance.Status   `json:"status"`
	DurationMs  int64               `json:"duration_ms"`
	Diagnostics []Diagnostic        `json:"diagnostics,omitempty"`
	Error       *failure.Outcome    `json:"error,omitempty"`
}

// OK reports whether the operation succeeded.
func (r Result) OK() bool {
	return r.Status == provenance.StatusSuccess
}

type GenerateResult struct {
	Result
	GrammarDir string `json:"grammar_dir,omitempty"`
}

type BuildResult struct {
	Result
	ArtifactPath  string `json:"artifact_path,omitempty"`
	Compiler      string `json:"compiler,omitempty"`
	ScannerSource string `json:"scanner_source,omitempty"`
	Commit        string `json:"commit,omitempty"`
	RepoURL       string `json:"repo_url,omitempty"`
	ToolVersion   string `json:"tool_version,omitempty"`
}

type TestGrammarResult struct {
	Result
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

type DoctorResult struct {
	Result
	ToolVersion     string   `json:"tool_version,omitempty"`
	Findings        []string `json:"findings"`
	Recommendations []string `json:"recommendations"`
	Healthy         bool     `json:"healthy"`
}

type ParseResult struct {
	Result
	Source         string          `json:"source,omitempty"`
	NodeCount      int             `json:"node_count"`
	HasErrors      bool            `json:"has_errors"`
	RootNodeType   string          `json:"root_node_type,omitempty"`
	GrammarVersion string          `json:"grammar_version,omitempty"`
	Tree           json.RawMessage `json:"tree,omitempty"`
}
