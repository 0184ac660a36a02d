package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/h0rv/prwatch/internal/badge"
	"github.com/h0rv/prwatch/internal/bus"
)

// Sender is the part of *tea.Program used to inject messages.
type Sender interface {
	Send(msg tea.Msg)
}

// NewProgram wraps the app in a full-screen program.
func NewProgram(m AppModel) *tea.Program {
	return tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
}

// BadgeDisplay shows the badge in the running program's header.
type BadgeDisplay struct {
	Program Sender
}

func (d BadgeDisplay) Show(_ context.Context, s badge.State) error {
	if d.Program != nil {
		d.Program.Send(BadgeMsg{State: s})
	}
	return nil
}

// Forwarder relays watcher notifications into a program. It subscribes on
// creation so nothing published before Run starts is lost.
type Forwarder struct {
	msgs        <-chan bus.Message
	unsubscribe func()
}

func NewForwarder(b *bus.Bus) *Forwarder {
	msgs, unsubscribe := b.Subscribe(16, bus.ActionDataUpdated, bus.ActionAuthInvalidated, bus.ActionCycleFailed)
	return &Forwarder{msgs: msgs, unsubscribe: unsubscribe}
}

// Run sends DataUpdatedMsg, AuthInvalidatedMsg and CycleFailedMsg to p until
// ctx ends, then unsubscribes.
func (f *Forwarder) Run(ctx context.Context, p Sender) {
	defer f.unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-f.msgs:
			switch msg.Action {
			case bus.ActionDataUpdated:
				p.Send(DataUpdatedMsg{})
			case bus.ActionAuthInvalidated:
				p.Send(AuthInvalidatedMsg{})
			case bus.ActionCycleFailed:
				p.Send(CycleFailedMsg{Err: msg.Error})
			}
		}
	}
}
