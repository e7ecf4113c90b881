package provenance

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/grammatic/grammatic/pkg/failure"
)

var grammarPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

var sharedLibraryExts = []string{"so", "dylib"}

// Validate checks an event before it is written. Events recording an
// INVALID_NAME failure may carry any grammar string; every other event must
// name a valid grammar.
func Validate(ev Event) error {
	h := ev.EventHeader()
	var problems []string

	if h.EventID == "" {
		problems = append(problems, "event_id is required")
	}
	if h.Timestamp.IsZero() {
		problems = append(problems, "timestamp is required")
	}
	if !validType(ev, h.EventType) {
		problems = append(problems, fmt.Sprintf("event_type %q does not match %T", h.EventType, ev))
	}
	if h.ErrorCode != failure.InvalidName.Code() && !grammarPattern.MatchString(h.Grammar) {
		problems = append(problems, fmt.Sprintf("grammar %q is not a valid grammar name", h.Grammar))
	}
	switch h.Status {
	case StatusSuccess:
		if h.ErrorCode != "" {
			problems = append(problems, "error_code must be empty on success")
		}
	case StatusFailure:
		if h.ErrorCode == "" {
			problems = append(problems, "error_code is required on failure")
		} else if _, ok := failure.KindFromCode(h.ErrorCode); !ok {
			problems = append(problems, fmt.Sprintf("unknown error_code %q", h.ErrorCode))
		}
	default:
		problems = append(problems, fmt.Sprintf("status %q must be success or failure", h.Status))
	}
	if h.DurationMs < 0 {
		problems = append(problems, "duration_ms must not be negative")
	}

	switch e := ev.(type) {
	case *BuildEvent:
		problems = append(problems, validateArtifact(e)...)
	case *ParseEvent:
		if e.NodeCount < 0 {
			problems = append(problems, "node_count must not be negative")
		}
		if e.Status == StatusSuccess && e.SourceFile == "" {
			problems = append(problems, "source_file is required on success")
		}
	}

	if len(problems) > 0 {
		return failure.New(failure.ValidationError,
			fmt.Sprintf("refusing to log malformed %s event: %s", h.EventType, strings.Join(problems, "; ")), "")
	}
	return nil
}

func validType(ev Event, t EventType) bool {
	switch ev.(type) {
	case *BuildEvent:
		return t == EventBuild
	case *ParseEvent:
		return t == EventParse
	case *OperationEvent:
		return t == EventGenerate || t == EventTest || t == EventDoctor
	}
	return false
}

// validateArtifact enforces build/<grammar>/<grammar>.<ext>, and that a
// successful build's artifact is on disk.
func validateArtifact(e *BuildEvent) []string {
	if e.ArtifactPath == "" {
		if e.Status == StatusSuccess {
			return []string{"artifact_path is required on success"}
		}
		return nil
	}

	var problems []string
	dir := filepath.Base(filepath.Dir(e.ArtifactPath))
	if dir != e.Grammar {
		problems = append(problems, fmt.Sprintf("artifact directory %q does not match grammar %q", dir, e.Grammar))
	}
	base := filepath.Base(e.ArtifactPath)
	validBase := false
	for _, ext := range sharedLibraryExts {
		if base == e.Grammar+"."+ext {
			validBase = true
		}
	}
	if !validBase {
		problems = append(problems, fmt.Sprintf("artifact name %q is not %s.<so|dylib>", base, e.Grammar))
	}
	if e.Status == StatusSuccess {
		if info, err := os.Stat(e.ArtifactPath); err != nil || info.IsDir() {
			problems = append(problems, fmt.Sprintf("artifact %s does not exist", e.ArtifactPath))
		}
	}
	return problems
}
