package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/h0rv/prwatch/internal/badge"
)

var (
	// TitleStyle is used for screen titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")) // Purple

	// SelectedItemStyle is used for the highlighted row.
	SelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("205")).
				Bold(true)

	// NormalItemStyle is used for other rows.
	NormalItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")) // Light gray

	// ErrorStyle is used for error messages.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")). // Red
			Bold(true)

	// PromptStyle is used for setup instructions.
	PromptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("99")). // Light blue
			MarginBottom(1)

	// DimStyle is used for secondary text such as timestamps.
	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")) // Dark gray

	repoHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Underline(true)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245"))

	unseenDotStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(badge.ColorAttention))

	approvedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")) // Green
)

// BadgeStyle renders a badge in its own colours.
func BadgeStyle(s badge.State) lipgloss.Style {
	return lipgloss.NewStyle().
		Bold(true).
		Padding(0, 1).
		Background(lipgloss.Color(s.Color)).
		Foreground(lipgloss.Color(s.TextColor))
}
