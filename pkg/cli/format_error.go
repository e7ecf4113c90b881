package cli

import (
	"strings"

	"github.com/grammatic/grammatic/pkg/console"
	"github.com/grammatic/grammatic/pkg/failure"
)

// FormatError renders err for the terminal: the message, the tool output
// excerpt when there is one, and the remediation as a suggestion.
func FormatError(err error) string {
	o, ok := failure.As(err)
	if !ok {
		return console.FormatErrorWithSuggestions(err.Error(), nil)
	}

	message := err.Error()
	if o.StderrExcerpt != "" {
		var b strings.Builder
		b.WriteString(message)
		b.WriteString("\n\nTool output:\n")
		for _, line := range strings.Split(o.StderrExcerpt, "\n") {
			b.WriteString("  ")
			b.WriteString(line)
			b.WriteString("\n")
		}
		message = strings.TrimRight(b.String(), "\n")
	}
	return console.FormatErrorWithSuggestions(message, o.Suggestions())
}
