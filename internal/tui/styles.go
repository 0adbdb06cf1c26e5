package tui

import "github.com/charmbracelet/lipgloss"

var (
	Primary   = lipgloss.Color("#7C3AED")
	Success   = lipgloss.Color("#10B981")
	Warning   = lipgloss.Color("#F59E0B")
	Error     = lipgloss.Color("#EF4444")
	Info      = lipgloss.Color("#3B82F6")
	Border    = lipgloss.Color("#4B5563")
	TextMuted = lipgloss.Color("#9CA3AF")
	TextDim   = lipgloss.Color("#6B7280")
)

var (
	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary)

	mutedStyle = lipgloss.NewStyle().
		Foreground(TextMuted)

	dimStyle = lipgloss.NewStyle().
		Foreground(TextDim)

	successStyle = lipgloss.NewStyle().
		Foreground(Success)

	warningStyle = lipgloss.NewStyle().
		Foreground(Warning)

	errorStyle = lipgloss.NewStyle().
		Foreground(Error)

	infoStyle = lipgloss.NewStyle().
		Foreground(Info)

	panelStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Border).
		Padding(0, 1)
)
