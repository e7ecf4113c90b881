//go:build !integration

package console

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatErrorWithSuggestions(t *testing.T) {
	tests := []struct {
		name        string
		message     string
		suggestions []string
		expected    []string
	}{
		{
			name:    "error with remediation",
			message: "parser not generated for grammar 'json'",
			suggestions: []string{
				"Run 'grammatic generate json' first",
			},
			expected: []string{
				"✗",
				"parser not generated for grammar 'json'",
				"Suggestions:",
				"• Run 'grammatic generate json' first",
			},
		},
		{
			name:        "error without suggestions",
			message:     "log write failed",
			suggestions: nil,
			expected: []string{
				"✗",
				"log write failed",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := FormatErrorWithSuggestions(tt.message, tt.suggestions)

			for _, expected := range tt.expected {
				assert.Contains(t, output, expected)
			}
			if len(tt.suggestions) == 0 {
				assert.NotContains(t, output, "Suggestions:")
			}
		})
	}
}

func TestFormatMessages(t *testing.T) {
	tests := []struct {
		name   string
		format func(string) string
		icon   string
	}{
		{name: "success", format: FormatSuccessMessage, icon: "✓"},
		{name: "info", format: FormatInfoMessage, icon: "ℹ"},
		{name: "warning", format: FormatWarningMessage, icon: "⚠"},
		{name: "error", format: FormatErrorMessage, icon: "✗"},
		{name: "location", format: FormatLocationMessage, icon: "📁"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := tt.format("build finished")
			assert.Contains(t, output, "build finished")
			assert.Contains(t, output, tt.icon)
		})
	}
}

func TestRenderTable(t *testing.T) {
	t.Run("headers rows and total", func(t *testing.T) {
		output := RenderTable(TableConfig{
			Title:     "Build Durations",
			Headers:   []string{"Grammar", "Duration"},
			Rows:      [][]string{{"json", "120ms"}, {"toml", "80ms"}},
			ShowTotal: true,
			TotalRow:  []string{"TOTAL", "200ms"},
		})

		for _, expected := range []string{"Build Durations", "Grammar", "Duration", "json", "toml", "TOTAL", "200ms"} {
			assert.Contains(t, output, expected)
		}
	})

	t.Run("empty config renders nothing", func(t *testing.T) {
		assert.Empty(t, RenderTable(TableConfig{}))
	})
}

func TestRenderTableAsJSON(t *testing.T) {
	result, err := RenderTableAsJSON(TableConfig{
		Headers: []string{"Grammar Version", "Count"},
		Rows:    [][]string{{"abc123", "3"}},
	})
	require.NoError(t, err)

	var decoded []map[string]string
	require.NoError(t, json.Unmarshal([]byte(result), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "abc123", decoded[0]["grammar_version"])
	assert.Equal(t, "3", decoded[0]["count"])

	empty, err := RenderTableAsJSON(TableConfig{})
	require.NoError(t, err)
	assert.Equal(t, "[]", empty)
}

func TestRenderStruct(t *testing.T) {
	type row struct {
		Grammar string `console:"header:Grammar"`
		Status  string `console:"header:Status"`
		Error   string `console:"header:Error,omitempty"`
		Secret  string `console:"-"`
		OK      bool   `console:"header:OK"`
	}

	output := RenderStruct([]row{
		{Grammar: "json", Status: "success", Secret: "hidden", OK: true},
		{Grammar: "toml", Status: "failure", Secret: "hidden"},
	})

	assert.Contains(t, output, "Grammar")
	assert.Contains(t, output, "json")
	assert.Contains(t, output, "failure")
	assert.Contains(t, output, "yes")
	assert.NotContains(t, output, "hidden")
	assert.NotContains(t, output, "Error", "all-empty omitempty column should be dropped")

	assert.Empty(t, RenderStruct([]row{}))
	assert.Empty(t, RenderStruct("not a slice"))
}

func TestToRelativePath(t *testing.T) {
	assert.Equal(t, "grammars/json", ToRelativePath("grammars/json"))

	rel := ToRelativePath("/tmp/grammatic/build/json/json.so")
	assert.False(t, strings.HasPrefix(rel, "/"), "expected relative path, got %s", rel)
	assert.True(t, strings.HasSuffix(rel, "json.so"))
}

func TestFormatDurationMs(t *testing.T) {
	assert.Equal(t, "15ms", FormatDurationMs(15))
	assert.Equal(t, "1.50s", FormatDurationMs(1500))
	assert.Equal(t, "2.0m", FormatDurationMs(120_000))
}

func TestSpinnerWithoutTerminalIsNoop(t *testing.T) {
	s := NewSpinner("Building grammar...")
	s.Start()
	s.Stop()
	s.Stop()
}
