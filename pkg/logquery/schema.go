package logquery

import (
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/grammatic/grammatic/pkg/provenance"
)

// EventSchema derives a JSON Schema from the Go type of the named event
// variant: "build", "parse" or "operation".
func EventSchema(kind string) (*jsonschema.Schema, error) {
	switch kind {
	case "build":
		return jsonschema.For[provenance.BuildEvent](nil)
	case "parse":
		return jsonschema.For[provenance.ParseEvent](nil)
	case "operation":
		return jsonschema.For[provenance.OperationEvent](nil)
	default:
		return nil, fmt.Errorf("unknown event kind %q: expected build, parse or operation", kind)
	}
}
