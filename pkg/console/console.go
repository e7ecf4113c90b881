// Package console formats user-facing terminal output. Messages go to
// stderr; stdout is reserved for machine-readable results such as JSON or
// syntax trees.
package console

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/grammatic/grammatic/pkg/logger"
	"github.com/grammatic/grammatic/pkg/styles"
)

var consoleLog = logger.New("console:console")

// FormatSuccessMessage formats a success message with a check mark.
func FormatSuccessMessage(message string) string {
	return styles.Success.Render("✓ ") + message
}

// FormatInfoMessage formats an informational message.
func FormatInfoMessage(message string) string {
	return styles.Info.Render("ℹ ") + message
}

// FormatWarningMessage formats a warning message.
func FormatWarningMessage(message string) string {
	return styles.Warning.Render("⚠ ") + message
}

// FormatErrorMessage formats an error message.
func FormatErrorMessage(message string) string {
	return styles.Error.Render("✗ ") + message
}

// FormatVerboseMessage formats a message that is only shown with --verbose.
func FormatVerboseMessage(message string) string {
	return styles.Verbose.Render("🔍 " + message)
}

// FormatCommandMessage formats a command line that is about to run.
func FormatCommandMessage(command string) string {
	return styles.Command.Render("⚡ " + command)
}

// FormatLocationMessage formats a message pointing at a file or directory.
func FormatLocationMessage(message string) string {
	return styles.Location.Render("📁 " + message)
}

// FormatListItem formats a bullet list entry.
func FormatListItem(item string) string {
	return "  • " + item
}

// FormatSectionHeader formats a bold section title.
func FormatSectionHeader(title string) string {
	return styles.SectionHeader.Render(title)
}

// FormatErrorWithSuggestions formats an error followed by actionable
// suggestions. The suggestions section is omitted when there are none.
func FormatErrorWithSuggestions(message string, suggestions []string) string {
	var b strings.Builder
	b.WriteString(FormatErrorMessage(message))

	if len(suggestions) > 0 {
		b.WriteString("\n\nSuggestions:\n")
		for _, s := range suggestions {
			b.WriteString(FormatListItem(s))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// ToRelativePath rewrites an absolute path relative to the working
// directory when that is possible and shorter to read. Relative paths are
// returned unchanged.
func ToRelativePath(path string) string {
	if !filepath.IsAbs(path) {
		return path
	}
	wd, err := os.Getwd()
	if err != nil {
		consoleLog.Printf("Could not determine working directory: %v", err)
		return path
	}
	rel, err := filepath.Rel(wd, path)
	if err != nil {
		return path
	}
	return rel
}

// FormatDurationMs renders a millisecond count for tables and summaries.
func FormatDurationMs(ms float64) string {
	switch {
	case ms >= 60_000:
		return fmt.Sprintf("%.1fm", ms/60_000)
	case ms >= 1_000:
		return fmt.Sprintf("%.2fs", ms/1_000)
	default:
		return fmt.Sprintf("%.0fms", ms)
	}
}

// LogVerbose prints a verbose message to stderr when verbose is set.
func LogVerbose(verbose bool, message string) {
	if verbose {
		fmt.Fprintln(os.Stderr, FormatVerboseMessage(message))
	}
}
