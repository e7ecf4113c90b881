// Package styles holds the lipgloss palette shared by console output.
// Colours are adaptive so text stays legible on light and dark terminals.
package styles

import "github.com/charmbracelet/lipgloss"

var (
	ColorError   = lipgloss.AdaptiveColor{Light: "#D73737", Dark: "#FF5555"}
	ColorWarning = lipgloss.AdaptiveColor{Light: "#B36200", Dark: "#FFB86C"}
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#27AE60", Dark: "#50FA7B"}
	ColorInfo    = lipgloss.AdaptiveColor{Light: "#2980B9", Dark: "#8BE9FD"}
	ColorPurple  = lipgloss.AdaptiveColor{Light: "#8E44AD", Dark: "#BD93F9"}
	ColorComment = lipgloss.AdaptiveColor{Light: "#6C7A89", Dark: "#6272A4"}
	ColorBorder  = lipgloss.AdaptiveColor{Light: "#BDC3C7", Dark: "#44475A"}
)

var (
	Error    = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	Warning  = lipgloss.NewStyle().Foreground(ColorWarning)
	Success  = lipgloss.NewStyle().Foreground(ColorSuccess)
	Info     = lipgloss.NewStyle().Foreground(ColorInfo)
	Verbose  = lipgloss.NewStyle().Foreground(ColorComment).Italic(true)
	Command  = lipgloss.NewStyle().Foreground(ColorPurple)
	Location = lipgloss.NewStyle().Foreground(ColorWarning)

	TableHeader = lipgloss.NewStyle().Bold(true).Foreground(ColorInfo).Padding(0, 1)
	TableCell   = lipgloss.NewStyle().Padding(0, 1)
	TableTotal  = lipgloss.NewStyle().Bold(true).Foreground(ColorSuccess).Padding(0, 1)
	TableTitle  = lipgloss.NewStyle().Bold(true).Foreground(ColorPurple)
	TableBorder = lipgloss.NewStyle().Foreground(ColorBorder)

	SectionHeader = lipgloss.NewStyle().Bold(true).Foreground(ColorPurple).MarginTop(1)
)
