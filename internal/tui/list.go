package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/h0rv/prwatch/internal/badge"
	"github.com/h0rv/prwatch/internal/domain"
	"github.com/h0rv/prwatch/internal/store"
	"github.com/muesli/reflow/truncate"
)

// Layout constants
const (
	chromeLines   = 3 // header, tab bar, hint line
	pageJumpSize  = 10
	defaultWidth  = 80
	defaultHeight = 24
)

// Requests the list sends up to the app, which owns all I/O.
type (
	refreshRequestMsg struct{}

	viewRequestMsg struct {
		item domain.Item
		open bool // also open the item in the browser
	}
)

// row is one rendered line: a repository header or an item.
type row struct {
	header string
	item   *domain.Item
}

// ListModel shows the snapshot as repository groups under Mine/Review tabs.
type ListModel struct {
	// Dependencies
	store *store.Store
	now   func() time.Time

	// UI components
	keymap  KeyMap
	help    HelpModel
	spinner spinner.Model

	// List state
	tab      store.Tab
	rows     map[store.Tab][]row
	items    map[store.Tab][]int // Tab -> indexes into rows that hold items
	selected map[store.Tab]int   // Tab -> index into items

	// View state
	width      int
	height     int
	showHelp   bool
	refreshing bool
	badge      badge.State
	toast      string
}

// NewListModel creates a list over s.
func NewListModel(s *store.Store, now func() time.Time) ListModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	if now == nil {
		now = time.Now
	}

	m := ListModel{
		store:    s,
		now:      now,
		keymap:   DefaultKeyMap(),
		help:     NewHelpModel(DefaultKeyMap()),
		spinner:  sp,
		selected: make(map[store.Tab]int),
	}
	(&m).rebuildRows()
	return m
}

// Init starts the spinner.
func (m ListModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages.
func (m ListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	}
	return m, nil
}

// Reload rebuilds rows after the store changed, keeping the selected item
// when it is still present.
func (m *ListModel) Reload() {
	keep := make(map[store.Tab]string, 2)
	for _, tab := range []store.Tab{store.TabMine, store.TabReview} {
		if item := m.selectedItemIn(tab); item != nil {
			keep[tab] = item.ID
		}
	}

	m.rebuildRows()
	m.refreshing = false

	for tab, id := range keep {
		for i, idx := range m.items[tab] {
			if m.rows[tab][idx].item.ID == id {
				m.selected[tab] = i
				break
			}
		}
	}
	m.clampSelection()
}

// SetBadge records the badge shown in the header.
func (m *ListModel) SetBadge(s badge.State) {
	m.badge = s
}

// SetToast shows a transient status message; empty clears it.
func (m *ListModel) SetToast(s string) {
	m.toast = s
}

// SetRefreshing toggles the header spinner.
func (m *ListModel) SetRefreshing(v bool) {
	m.refreshing = v
}

func (m ListModel) Refreshing() bool { return m.refreshing }

func (m ListModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		if key.Matches(msg, m.keymap.Help, m.keymap.Back, m.keymap.Quit) {
			m.showHelp = false
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keymap.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keymap.Help):
		m.showHelp = true
	case key.Matches(msg, m.keymap.Down):
		(&m).moveSelection(1)
	case key.Matches(msg, m.keymap.Up):
		(&m).moveSelection(-1)
	case msg.String() == "ctrl+d":
		(&m).moveSelection(pageJumpSize)
	case msg.String() == "ctrl+u":
		(&m).moveSelection(-pageJumpSize)
	case key.Matches(msg, m.keymap.Top):
		m.selected[m.tab] = 0
	case key.Matches(msg, m.keymap.Bottom):
		m.selected[m.tab] = len(m.items[m.tab]) - 1
		(&m).clampSelection()
	case key.Matches(msg, m.keymap.NextTab), key.Matches(msg, m.keymap.PrevTab):
		if m.tab == store.TabMine {
			m.tab = store.TabReview
		} else {
			m.tab = store.TabMine
		}
	case key.Matches(msg, m.keymap.Refresh):
		m.refreshing = true
		m.toast = ""
		return m, func() tea.Msg { return refreshRequestMsg{} }
	case key.Matches(msg, m.keymap.Open):
		if item := m.SelectedItem(); item != nil {
			it := *item
			return m, func() tea.Msg { return viewRequestMsg{item: it, open: true} }
		}
	case key.Matches(msg, m.keymap.MarkViewed):
		if item := m.SelectedItem(); item != nil {
			it := *item
			return m, func() tea.Msg { return viewRequestMsg{item: it} }
		}
	case key.Matches(msg, m.keymap.Detail):
		if item := m.SelectedItem(); item != nil {
			it := *item
			return m, func() tea.Msg { return openDetailMsg{item: it} }
		}
	}
	return m, nil
}

// SelectedItem returns the highlighted item of the current tab, or nil.
func (m ListModel) SelectedItem() *domain.Item {
	return m.selectedItemIn(m.tab)
}

func (m ListModel) selectedItemIn(tab store.Tab) *domain.Item {
	items := m.items[tab]
	if len(items) == 0 {
		return nil
	}
	sel := m.selected[tab]
	if sel < 0 || sel >= len(items) {
		return nil
	}
	return m.rows[tab][items[sel]].item
}

func (m *ListModel) rebuildRows() {
	m.rows = make(map[store.Tab][]row, 2)
	m.items = make(map[store.Tab][]int, 2)

	for _, tab := range []store.Tab{store.TabMine, store.TabReview} {
		var rows []row
		var items []int
		for _, g := range m.store.Groups(tab) {
			rows = append(rows, row{header: g.Repo})
			for i := range g.Items {
				items = append(items, len(rows))
				rows = append(rows, row{item: &g.Items[i]})
			}
		}
		m.rows[tab] = rows
		m.items[tab] = items
	}
}

func (m *ListModel) moveSelection(delta int) {
	m.selected[m.tab] += delta
	m.clampSelection()
}

func (m *ListModel) clampSelection() {
	for _, tab := range []store.Tab{store.TabMine, store.TabReview} {
		n := len(m.items[tab])
		switch {
		case n == 0 || m.selected[tab] < 0:
			m.selected[tab] = 0
		case m.selected[tab] >= n:
			m.selected[tab] = n - 1
		}
	}
}

// View renders the list filling the terminal.
func (m ListModel) View() string {
	width, height := m.width, m.height
	if width == 0 {
		width = defaultWidth
	}
	if height == 0 {
		height = defaultHeight
	}
	bodyHeight := max(height-chromeLines, 3)

	var body string
	switch {
	case m.showHelp:
		body = m.help.Overlay(width)
	case len(m.rows[m.tab]) == 0:
		empty := "Nothing here. Press r to refresh."
		if m.tab == store.TabReview {
			empty = "No reviews or assignments waiting. Press r to refresh."
		}
		body = lipgloss.Place(width, bodyHeight, lipgloss.Center, lipgloss.Center, DimStyle.Render(empty))
	default:
		body = m.renderRows(width, bodyHeight)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(width),
		m.renderTabs(),
		body,
		DimStyle.Render(m.help.Short(width)),
	)
}

func (m ListModel) renderHeader(width int) string {
	left := TitleStyle.Render("prwatch")
	if !m.badge.Cleared() && m.badge.Text != "" {
		left += " " + BadgeStyle(m.badge).Render(m.badge.Text)
	}

	var right string
	switch {
	case m.toast != "":
		right = ErrorStyle.Render(m.toast)
	case m.refreshing:
		right = m.spinner.View() + DimStyle.Render("refreshing")
	case m.store.GetViewerLogin() != "":
		right = DimStyle.Render("@" + m.store.GetViewerLogin())
	}

	padding := max(width-lipgloss.Width(left)-lipgloss.Width(right)-1, 1)
	return left + strings.Repeat(" ", padding) + right
}

func (m ListModel) renderTabs() string {
	var tabs []string
	for _, tab := range []store.Tab{store.TabMine, store.TabReview} {
		total, unseen := m.store.Counts(tab)
		label := fmt.Sprintf("%s (%d)", tab, total)
		if unseen > 0 {
			label = fmt.Sprintf("%s (%d · %d new)", tab, total, unseen)
		}
		if tab == m.tab {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(label))
		}
	}
	return strings.Join(tabs, "   ")
}

func (m ListModel) renderRows(width, height int) string {
	rows := m.rows[m.tab]
	selectedRow := -1
	if items := m.items[m.tab]; len(items) > 0 {
		selectedRow = items[m.selected[m.tab]]
	}

	// Keep the selection on screen, and its repo header when it fits
	start := 0
	if selectedRow >= height {
		start = selectedRow - height + 1
	}
	end := min(start+height, len(rows))

	lines := make([]string, 0, height)
	for i := start; i < end; i++ {
		r := rows[i]
		if r.item == nil {
			lines = append(lines, repoHeaderStyle.Render(r.header))
			continue
		}
		lines = append(lines, m.renderItem(*r.item, i == selectedRow, width))
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// renderItem formats one row: cursor, unseen dot, number, title, approval mark
// and age.
func (m ListModel) renderItem(item domain.Item, selected bool, width int) string {
	cursor := "  "
	if selected {
		cursor = "> "
	}

	dot := "  "
	if m.store.IsUnseen(item) {
		dot = unseenDotStyle.Render("●") + " "
	}

	number := fmt.Sprintf("#%d ", item.Number)

	mark := ""
	if item.Category == domain.CategoryAuthored && item.Approved {
		mark = " " + approvedStyle.Render("✓")
	}

	age := relTime(item.UpdatedAt, m.now())
	ageCol := ""
	if age != "" {
		ageCol = "  " + age
		if m.store.IsSelfUpdate(item) {
			ageCol += " by you"
		}
	}

	used := lipgloss.Width(cursor) + lipgloss.Width(dot) + len(number) + lipgloss.Width(mark) + len(ageCol)
	titleWidth := max(width-used-1, 8)
	title := truncate.StringWithTail(item.Title, uint(titleWidth), "…")

	style := NormalItemStyle
	if selected {
		style = SelectedItemStyle
	}
	return cursor + dot + style.Render(number+title) + mark + DimStyle.Render(ageCol)
}
