package tui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"
)

var helpOverlayStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("62")).
	Padding(1, 2).
	MarginTop(1)

// HelpModel renders either the one-line hint bar or the full key overlay.
type HelpModel struct {
	help   help.Model
	keymap KeyMap
}

func NewHelpModel(keymap KeyMap) HelpModel {
	return HelpModel{help: help.New(), keymap: keymap}
}

// Short renders the hint line shown under the list.
func (m HelpModel) Short(width int) string {
	m.help.ShowAll = false
	m.help.Width = width
	return m.help.View(m.keymap)
}

// Overlay renders every binding inside a bordered box.
func (m HelpModel) Overlay(width int) string {
	m.help.ShowAll = true
	m.help.Width = max(width-8, 20) // border and padding
	return helpOverlayStyle.Render(TitleStyle.Render("Keys") + "\n\n" + m.help.View(m.keymap))
}
