package cmd

import "github.com/charmbracelet/lipgloss"

var (
	okColor    = lipgloss.Color("#10B981")
	badColor   = lipgloss.Color("#EF4444")
	mutedColor = lipgloss.Color("#6B7280")
	titleColor = lipgloss.Color("#7C3AED")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(titleColor)

	labelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(16)

	okStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(okColor)

	badStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(badColor)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)
)

// field renders a label and its value on one line.
func field(label string, value any) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), fmtValue(value))
}
