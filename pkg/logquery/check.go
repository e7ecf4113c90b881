package logquery

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/grammatic/grammatic/pkg/provenance"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBaseURL = "https://grammatic.local/schemas/"

var schemaFiles = map[provenance.EventType]string{
	provenance.EventBuild:    "build-event.json",
	provenance.EventParse:    "parse-event.json",
	provenance.EventGenerate: "operation-event.json",
	provenance.EventTest:     "operation-event.json",
	provenance.EventDoctor:   "operation-event.json",
}

var (
	compileOnce     sync.Once
	compiledSchemas map[string]*jsonschema.Schema
	compileErr      error
)

func compiledSchema(file string) (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiledSchemas = make(map[string]*jsonschema.Schema)
		for _, name := range []string{"build-event.json", "parse-event.json", "operation-event.json"} {
			data, err := schemaFS.ReadFile("schemas/" + name)
			if err != nil {
				compileErr = fmt.Errorf("failed to read embedded schema %s: %w", name, err)
				return
			}
			doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
			if err != nil {
				compileErr = fmt.Errorf("failed to parse embedded schema %s: %w", name, err)
				return
			}
			if err := compiler.AddResource(schemaBaseURL+name, doc); err != nil {
				compileErr = fmt.Errorf("failed to add schema %s: %w", name, err)
				return
			}
		}
		for _, name := range []string{"build-event.json", "parse-event.json", "operation-event.json"} {
			sch, err := compiler.Compile(schemaBaseURL + name)
			if err != nil {
				compileErr = fmt.Errorf("failed to compile schema %s: %w", name, err)
				return
			}
			compiledSchemas[name] = sch
		}
	})
	if compileErr != nil {
		return nil, compileErr
	}
	return compiledSchemas[file], nil
}

// Violation is one line that does not conform to its event schema.
type Violation struct {
	Path    string `json:"path" console:"header:File"`
	Line    int    `json:"line" console:"header:Line"`
	Message string `json:"message" console:"header:Problem"`
}

// CheckStream validates every line of the JSONL file at path against the
// schema for its event_type. A missing file has no violations.
func CheckStream(path string) ([]Violation, error) {
	var violations []Violation
	err := readLines(path, func(lineNo int, line []byte) error {
		if msg := checkLine(line); msg != "" {
			violations = append(violations, Violation{Path: path, Line: lineNo, Message: msg})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return violations, nil
}

func checkLine(line []byte) string {
	var probe struct {
		EventType provenance.EventType `json:"event_type"`
	}
	if err := json.Unmarshal(line, &probe); err != nil {
		return "not a JSON object: " + err.Error()
	}
	file, ok := schemaFiles[probe.EventType]
	if !ok {
		return fmt.Sprintf("unknown event_type %q", probe.EventType)
	}
	sch, err := compiledSchema(file)
	if err != nil {
		return err.Error()
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(line))
	if err != nil {
		return "not valid JSON: " + err.Error()
	}
	if err := sch.Validate(inst); err != nil {
		return flatten(err.Error())
	}
	return ""
}

func flatten(msg string) string {
	lines := strings.Split(msg, "\n")
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			parts = append(parts, l)
		}
	}
	return strings.Join(parts, "; ")
}
