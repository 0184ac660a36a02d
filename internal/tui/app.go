package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/h0rv/prwatch/internal/bus"
	"github.com/h0rv/prwatch/internal/domain"
	"github.com/h0rv/prwatch/internal/settings"
	"github.com/h0rv/prwatch/internal/store"
	"github.com/pkg/browser"
)

// AppScreen represents the different screens in the application flow.
type AppScreen int

const (
	ScreenLoading AppScreen = iota
	ScreenSetup
	ScreenList
	ScreenDetail
)

// SnapshotSource reads the persisted snapshot and seen map.
type SnapshotSource interface {
	Load(ctx context.Context) (domain.Snapshot, domain.SeenMap, bool, error)
}

// SettingsSource reads the user settings.
type SettingsSource interface {
	Load(ctx context.Context) (settings.Settings, error)
}

// Publisher delivers requests to the watcher.
type Publisher interface {
	Publish(ctx context.Context, msg bus.Message) error
}

// Deps are the collaborators of AppModel. Timeline, OpenURL and Now are optional.
type Deps struct {
	State    SnapshotSource
	Settings SettingsSource
	Bus      Publisher
	Timeline TimelineLoader
	OpenURL  func(url string) error
	Now      func() time.Time
}

// AppModel is the root Bubble Tea model. It owns all I/O and switches between
// the loading, setup, list and detail screens.
type AppModel struct {
	// Dependencies
	deps  Deps
	store *store.Store
	ctx   context.Context

	// Current state
	currentScreen AppScreen
	list          ListModel
	detail        DetailModel
	spinner       spinner.Model
	loadingMsg    string
	setupReason   string
	err           error
	requested     bool // initial refreshNow already sent

	width  int
	height int
}

// NewAppModel creates the root model.
func NewAppModel(ctx context.Context, s *store.Store, deps Deps) AppModel {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.OpenURL == nil {
		deps.OpenURL = browser.OpenURL
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return AppModel{
		deps:          deps,
		store:         s,
		ctx:           ctx,
		currentScreen: ScreenLoading,
		list:          NewListModel(s, deps.Now),
		spinner:       sp,
		loadingMsg:    "Loading pull requests...",
	}
}

// Screen reports the active screen.
func (m AppModel) Screen() AppScreen {
	return m.currentScreen
}

// Init loads the persisted snapshot.
func (m AppModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.list.Init(), m.loadSnapshot())
}

// Update handles messages and transitions between screens.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Global quit handler
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.currentScreen == ScreenLoading || m.currentScreen == ScreenSetup {
			switch msg.String() {
			case "q", "esc":
				return m, tea.Quit
			case "r":
				m.err = nil
				if m.currentScreen == ScreenLoading {
					// ask the watcher again if there is still nothing to show
					m.requested = false
				}
				return m, m.loadSnapshot()
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		var cmd tea.Cmd
		updated, _ := m.list.Update(msg)
		m.list = updated.(ListModel)
		if m.currentScreen == ScreenDetail {
			updated, cmd = m.detail.Update(msg)
			m.detail = updated.(DetailModel)
		}
		return m, cmd

	case spinner.TickMsg:
		var cmds []tea.Cmd
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
		updated, cmd := m.list.Update(msg)
		m.list = updated.(ListModel)
		cmds = append(cmds, cmd)
		if m.currentScreen == ScreenDetail {
			updated, cmd = m.detail.Update(msg)
			m.detail = updated.(DetailModel)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case ErrorMsg:
		if m.currentScreen == ScreenList || m.currentScreen == ScreenDetail {
			m.list.SetToast(msg.Err.Error())
			return m, nil
		}
		m.err = msg.Err
		return m, nil

	case snapshotLoadedMsg:
		return m.handleSnapshotLoaded(msg)

	case DataUpdatedMsg:
		return m, m.loadSnapshot()

	case AuthInvalidatedMsg:
		m.store.Reset()
		m.list.Reload()
		m.requested = false
		m.currentScreen = ScreenSetup
		m.setupReason = "GitHub rejected the saved token. It has been cleared."
		return m, nil

	case BadgeMsg:
		m.list.SetBadge(msg.State)
		return m, nil

	case CycleFailedMsg:
		return m.handleCycleFailed(msg)

	case refreshRequestMsg:
		m.list.SetRefreshing(true)
		return m, m.publish(bus.Message{Action: bus.ActionRefreshNow}, "")

	case viewRequestMsg:
		return m.handleViewRequest(msg)

	case publishedMsg:
		if msg.err == nil {
			return m, nil
		}
		if msg.viewedID != "" {
			_ = m.store.RollbackSeen()
			m.list.Reload()
		}
		m.list.SetRefreshing(false)
		m.list.SetToast(fmt.Sprintf("watcher unavailable: %v", msg.err))
		return m, nil

	case openDetailMsg:
		item := msg.item
		if latest, err := m.store.GetItem(item.ID); err == nil {
			item = latest
		}
		m.currentScreen = ScreenDetail
		m.detail = NewDetailModel(m.ctx, item, m.store.IsUnseen(item), m.deps.Timeline, m.deps.Now)
		return m, m.detail.Init()

	case closeDetailMsg:
		m.currentScreen = ScreenList
		// Request window size to ensure proper rendering
		return m, tea.WindowSize()
	}

	// Delegate to current screen's model
	switch m.currentScreen {
	case ScreenList:
		updated, cmd := m.list.Update(msg)
		m.list = updated.(ListModel)
		return m, cmd
	case ScreenDetail:
		updated, cmd := m.detail.Update(msg)
		m.detail = updated.(DetailModel)
		return m, cmd
	}
	return m, nil
}

func (m AppModel) handleSnapshotLoaded(msg snapshotLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		if m.currentScreen == ScreenList || m.currentScreen == ScreenDetail {
			m.list.SetToast(fmt.Sprintf("reload failed: %v", msg.err))
			return m, nil
		}
		m.err = msg.err
		return m, nil
	}
	m.err = nil

	if !msg.settings.Configured() {
		m.store.Reset()
		m.list.Reload()
		m.currentScreen = ScreenSetup
		return m, nil
	}
	m.store.SetViewerLogin(msg.settings.Username)

	if !msg.hasSnapshot {
		m.currentScreen = ScreenLoading
		m.loadingMsg = "Fetching pull requests from GitHub..."
		if m.requested {
			return m, nil
		}
		m.requested = true
		return m, m.publish(bus.Message{Action: bus.ActionRefreshNow}, "")
	}

	m.store.SetSnapshot(msg.snapshot, msg.seen)
	m.list.Reload()
	m.list.SetToast("")
	m.setupReason = ""
	if m.currentScreen == ScreenLoading || m.currentScreen == ScreenSetup {
		m.currentScreen = ScreenList
	}
	return m, nil
}

// handleCycleFailed stops the refresh spinner. The error is shown when the
// user is waiting on it: a manual refresh from the list, or the first fetch.
func (m AppModel) handleCycleFailed(msg CycleFailedMsg) (tea.Model, tea.Cmd) {
	switch m.currentScreen {
	case ScreenLoading:
		if m.requested {
			m.err = fmt.Errorf("refresh failed: %s", msg.Err)
		}
	case ScreenList, ScreenDetail:
		if m.list.Refreshing() {
			m.list.SetToast("refresh failed: " + msg.Err)
		}
	}
	m.list.SetRefreshing(false)
	return m, nil
}

// handleViewRequest clears the marker immediately, then tells the watcher.
// A failed publish rolls the marker back.
func (m AppModel) handleViewRequest(msg viewRequestMsg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	if err := m.store.MarkSeen(msg.item.ID, m.deps.Now()); err == nil {
		m.list.Reload()
	}
	if msg.open && msg.item.URL != "" {
		cmds = append(cmds, m.openURL(msg.item.URL))
	}
	cmds = append(cmds, m.publish(bus.Message{Action: bus.ActionItemViewed, ID: msg.item.ID}, msg.item.ID))
	return m, tea.Batch(cmds...)
}

// View renders the current screen.
func (m AppModel) View() string {
	switch m.currentScreen {
	case ScreenList:
		return m.list.View()
	case ScreenDetail:
		return m.detail.View()
	case ScreenSetup:
		return m.setupView()
	}

	if m.err != nil {
		return ErrorStyle.Render(fmt.Sprintf("Error: %v", m.err)) + "\n\n" +
			DimStyle.Render("[r] retry  [q] quit")
	}
	return m.spinner.View() + " " + m.loadingMsg + "\n\n" + DimStyle.Render("Press q to quit")
}

func (m AppModel) setupView() string {
	var s string
	s += TitleStyle.Render("prwatch is not configured") + "\n\n"
	if m.setupReason != "" {
		s += ErrorStyle.Render(m.setupReason) + "\n\n"
	}
	if m.err != nil {
		s += ErrorStyle.Render(fmt.Sprintf("Error: %v", m.err)) + "\n\n"
	}
	s += PromptStyle.Render("Save a token and username with one of:") + "\n\n"
	s += "  prwatch login\n"
	s += "  prwatch config set --token <token> --username <login>\n\n"
	s += DimStyle.Render("[r] reload settings  [q] quit")
	return s
}

// loadSnapshot creates a command that reads settings and persisted state.
func (m AppModel) loadSnapshot() tea.Cmd {
	ctx, deps := m.ctx, m.deps
	return func() tea.Msg {
		st, err := deps.Settings.Load(ctx)
		if err != nil {
			return snapshotLoadedMsg{err: fmt.Errorf("failed to load settings: %w", err)}
		}
		if !st.Configured() {
			return snapshotLoadedMsg{settings: st}
		}
		snap, seen, has, err := deps.State.Load(ctx)
		if err != nil {
			return snapshotLoadedMsg{settings: st, err: fmt.Errorf("failed to load state: %w", err)}
		}
		return snapshotLoadedMsg{settings: st, snapshot: snap, seen: seen, hasSnapshot: has}
	}
}

// publish creates a command that sends msg on the bus. viewedID marks
// itemViewed requests so a failure can be rolled back.
func (m AppModel) publish(msg bus.Message, viewedID string) tea.Cmd {
	ctx, b := m.ctx, m.deps.Bus
	return func() tea.Msg {
		pctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		return publishedMsg{viewedID: viewedID, err: b.Publish(pctx, msg)}
	}
}

func (m AppModel) openURL(url string) tea.Cmd {
	open := m.deps.OpenURL
	return func() tea.Msg {
		if err := open(url); err != nil {
			return ErrorMsg{Err: fmt.Errorf("failed to open browser: %w", err)}
		}
		return nil
	}
}

const publishTimeout = 5 * time.Second
