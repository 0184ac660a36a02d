// Package tui provides the Bubble Tea list UI for watched pull requests.
package tui

import (
	"github.com/h0rv/prwatch/internal/badge"
	"github.com/h0rv/prwatch/internal/domain"
	"github.com/h0rv/prwatch/internal/settings"
)

// DataUpdatedMsg is sent when the watcher persisted a new snapshot.
type DataUpdatedMsg struct{}

// AuthInvalidatedMsg is sent when the watcher dropped rejected credentials.
type AuthInvalidatedMsg struct{}

// CycleFailedMsg is sent when a watcher cycle ended in an error.
type CycleFailedMsg struct {
	Err string
}

// BadgeMsg carries the latest badge computed by the watcher.
type BadgeMsg struct {
	State badge.State
}

// ErrorMsg is emitted when an error occurs.
type ErrorMsg struct {
	Err error
}

// snapshotLoadedMsg carries persisted state read for display.
type snapshotLoadedMsg struct {
	settings    settings.Settings
	snapshot    domain.Snapshot
	seen        domain.SeenMap
	hasSnapshot bool
	err         error
}

// publishedMsg reports the outcome of sending a request to the watcher.
type publishedMsg struct {
	viewedID string // set for itemViewed requests
	err      error
}

type (
	openDetailMsg  struct{ item domain.Item }
	closeDetailMsg struct{}
)
