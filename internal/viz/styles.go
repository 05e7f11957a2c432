package viz

import "github.com/charmbracelet/lipgloss"

// Shared styles for CLI and TUI output.
var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86"))

	Caption = lipgloss.NewStyle().
		Foreground(lipgloss.Color("242")).
		Italic(true)

	StatusOK = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("82"))

	StatusErr = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	KeyHint = lipgloss.NewStyle().
		Foreground(lipgloss.Color("238"))

	Frame = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("238")).
		Padding(0, 1)
)
