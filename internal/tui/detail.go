package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/h0rv/prwatch/internal/domain"
	"github.com/muesli/reflow/wordwrap"
)

// Detail view styles
var (
	detailTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("205"))

	detailLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("241"))

	eventActorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")).
			Bold(true)

	panelBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240"))
)

// TimelineLoader fetches an item's activity trail for display.
type TimelineLoader func(ctx context.Context, item domain.Item) ([]domain.ActivityEvent, error)

// DetailModel shows one item's metadata and its recent activity.
type DetailModel struct {
	// Dependencies
	ctx      context.Context
	loadFn   TimelineLoader
	now      func() time.Time
	isUnseen bool

	item   domain.Item
	events []domain.ActivityEvent

	// UI components
	keymap   KeyMap
	spinner  spinner.Model
	viewport viewport.Model

	// State
	loading  bool
	eventErr string

	width  int
	height int
}

// NewDetailModel creates a detail view for item. loadFn may be nil, in which
// case no activity is shown.
func NewDetailModel(ctx context.Context, item domain.Item, unseen bool, loadFn TimelineLoader, now func() time.Time) DetailModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	vp := viewport.New(defaultWidth-4, defaultHeight-4) // resized on WindowSizeMsg
	vp.MouseWheelEnabled = true
	vp.MouseWheelDelta = 3

	if now == nil {
		now = time.Now
	}

	m := DetailModel{
		ctx:      ctx,
		loadFn:   loadFn,
		now:      now,
		isUnseen: unseen,
		item:     item,
		keymap:   DefaultKeyMap(),
		spinner:  sp,
		viewport: vp,
		loading:  loadFn != nil,
	}
	m.updateViewportContent()
	return m
}

// Init starts loading the activity trail.
func (m DetailModel) Init() tea.Cmd {
	cmds := []tea.Cmd{tea.WindowSize()}
	if m.loadFn != nil {
		cmds = append(cmds, m.spinner.Tick, m.loadEvents())
	}
	return tea.Batch(cmds...)
}

// Update handles messages.
func (m DetailModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = max(msg.Width-4, 20)   // border and padding
		m.viewport.Height = max(msg.Height-4, 5) // header, footer, border
		m.updateViewportContent()
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventsLoadedMsg:
		if msg.itemID != m.item.ID {
			return m, nil
		}
		m.loading = false
		m.events = msg.events
		if msg.err != nil {
			m.eventErr = msg.err.Error()
		}
		m.updateViewportContent()
		return m, nil

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	}
	return m, nil
}

func (m DetailModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.Back), key.Matches(msg, m.keymap.Quit):
		return m, func() tea.Msg { return closeDetailMsg{} }
	case key.Matches(msg, m.keymap.Open):
		item := m.item
		m.isUnseen = false
		m.updateViewportContent()
		return m, func() tea.Msg { return viewRequestMsg{item: item, open: true} }
	case key.Matches(msg, m.keymap.MarkViewed):
		item := m.item
		m.isUnseen = false
		m.updateViewportContent()
		return m, func() tea.Msg { return viewRequestMsg{item: item} }
	case key.Matches(msg, m.keymap.Down):
		m.viewport.LineDown(1)
	case key.Matches(msg, m.keymap.Up):
		m.viewport.LineUp(1)
	case msg.String() == "ctrl+d":
		m.viewport.HalfViewDown()
	case msg.String() == "ctrl+u":
		m.viewport.HalfViewUp()
	case key.Matches(msg, m.keymap.Top):
		m.viewport.GotoTop()
	case key.Matches(msg, m.keymap.Bottom):
		m.viewport.GotoBottom()
	}
	return m, nil
}

// View renders the detail screen.
func (m DetailModel) View() string {
	width := m.width
	if width == 0 {
		width = defaultWidth
	}

	header := DimStyle.Render("[esc]back [o]open [v]mark viewed [j/k]scroll")

	footer := ""
	switch {
	case m.loading:
		footer = m.spinner.View() + " loading activity"
	case m.eventErr != "":
		footer = ErrorStyle.Render("✗ activity unavailable")
	default:
		footer = DimStyle.Render(fmt.Sprintf("%d%%", int(m.viewport.ScrollPercent()*100)))
	}

	panel := panelBorderStyle.Width(max(width-2, 20)).Render(m.viewport.View())
	return lipgloss.JoinVertical(lipgloss.Left, header, panel, footer)
}

// updateViewportContent formats metadata and activity for the viewport.
func (m *DetailModel) updateViewportContent() {
	wrapWidth := max(m.viewport.Width-2, 10)
	now := m.now()

	var b strings.Builder
	b.WriteString(detailTitleStyle.Render(wordwrap.String(m.item.Title, wrapWidth)))
	b.WriteString("\n\n")

	field := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(detailLabelStyle.Render(fmt.Sprintf("%-12s", label)))
		b.WriteString(value)
		b.WriteString("\n")
	}

	field("Repository", m.item.Repo.String())
	field("Number", fmt.Sprintf("#%d", m.item.Number))
	field("Author", m.item.Author)
	field("Category", string(m.item.Category))
	if !m.item.UpdatedAt.IsZero() {
		field("Updated", fmt.Sprintf("%s (%s)", humanize.RelTime(m.item.UpdatedAt, now, "ago", "from now"),
			m.item.UpdatedAt.Local().Format(time.DateTime)))
	}
	if m.item.Category == domain.CategoryAuthored {
		approved := "no"
		if m.item.Approved {
			approved = approvedStyle.Render("yes")
		}
		field("Approved", approved)
	}
	field("Last actor", m.item.LastActor)
	if m.isUnseen {
		field("Status", unseenDotStyle.Render("● updated since last viewed"))
	} else {
		field("Status", "seen")
	}
	field("URL", m.item.URL)

	if m.loadFn != nil {
		b.WriteString("\n")
		b.WriteString(TitleStyle.Render("Activity"))
		b.WriteString("\n\n")

		switch {
		case m.loading:
			b.WriteString(DimStyle.Render("Loading..."))
		case m.eventErr != "":
			b.WriteString(ErrorStyle.Render(wordwrap.String(m.eventErr, wrapWidth)))
		case len(m.events) == 0:
			b.WriteString(DimStyle.Render("No activity recorded."))
		default:
			// Newest first
			for i := len(m.events) - 1; i >= 0; i-- {
				b.WriteString(formatEvent(m.events[i], now))
				b.WriteString("\n")
			}
		}
	}

	m.viewport.SetContent(b.String())
}

func formatEvent(ev domain.ActivityEvent, now time.Time) string {
	actor := ev.Actor
	if actor == "" {
		actor = "someone"
	}
	what := string(ev.Kind)
	if ev.Kind == domain.ActionReviewSubmitted && ev.ReviewState != "" {
		what = fmt.Sprintf("%s (%s)", what, strings.ReplaceAll(ev.ReviewState, "_", " "))
	}
	return fmt.Sprintf("%s %s %s", eventActorStyle.Render(actor), what, DimStyle.Render(relTime(ev.At, now)))
}

func (m DetailModel) loadEvents() tea.Cmd {
	ctx, load, item := m.ctx, m.loadFn, m.item
	return func() tea.Msg {
		events, err := load(ctx, item)
		return eventsLoadedMsg{itemID: item.ID, events: events, err: err}
	}
}

type eventsLoadedMsg struct {
	itemID string
	events []domain.ActivityEvent
	err    error
}
