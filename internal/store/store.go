// Package store holds the list UI's view of the persisted Snapshot and
// SeenMap. It groups items by repository and answers per-item "unseen"
// questions, hiding the ordering rules behind a small interface.
package store

import (
	"errors"
	"sort"
	"time"

	"github.com/h0rv/prwatch/internal/domain"
)

var (
	// ErrNoSnapshot indicates no snapshot has been loaded yet.
	ErrNoSnapshot = errors.New("no snapshot loaded")
	// ErrItemNotFound indicates the requested item is not in the snapshot.
	ErrItemNotFound = errors.New("item not found")
	// ErrNothingToRollback indicates there is no optimistic change to undo.
	ErrNothingToRollback = errors.New("no rollback state available")
)

// Tab selects one partition of the snapshot.
type Tab int

const (
	TabMine   Tab = iota // Authored items
	TabReview            // Assigned and review-requested items
)

func (t Tab) String() string {
	if t == TabReview {
		return "Review"
	}
	return "Mine"
}

// Group is a repository and its items, newest first.
type Group struct {
	Repo  string
	Items []domain.Item
}

// Store manages the in-memory view state.
type Store struct {
	snapshot    domain.Snapshot
	hasSnapshot bool
	seen        domain.SeenMap

	// Current user's login, used to flag self-caused updates
	viewerLogin string

	items map[string]domain.Item // ID -> item

	// Rollback state for optimistic seen updates
	rollbackID   string
	rollbackAt   time.Time
	rollbackHad  bool
	rollbackHeld bool
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		seen:  domain.SeenMap{},
		items: make(map[string]domain.Item),
	}
}

// SetSnapshot replaces the view with a freshly loaded snapshot and seen-map.
func (s *Store) SetSnapshot(snap domain.Snapshot, seen domain.SeenMap) {
	s.snapshot = snap
	s.seen = seen.Clone()
	s.hasSnapshot = true
	s.rollbackHeld = false

	s.items = make(map[string]domain.Item, snap.Total())
	for _, item := range snap.Created {
		s.items[item.ID] = item
	}
	for _, item := range snap.Assigned {
		if _, ok := s.items[item.ID]; !ok {
			s.items[item.ID] = item
		}
	}
}

// HasSnapshot reports whether a snapshot has been loaded.
func (s *Store) HasSnapshot() bool {
	return s.hasSnapshot
}

// SetViewerLogin sets the current user's login.
func (s *Store) SetViewerLogin(login string) {
	s.viewerLogin = login
}

// GetViewerLogin returns the current user's login.
func (s *Store) GetViewerLogin() string {
	return s.viewerLogin
}

// GetItem retrieves an item by ID.
func (s *Store) GetItem(id string) (domain.Item, error) {
	item, ok := s.items[id]
	if !ok {
		return domain.Item{}, ErrItemNotFound
	}
	return item, nil
}

// Items returns the items of a tab in snapshot order.
func (s *Store) Items(tab Tab) []domain.Item {
	src := s.snapshot.Created
	if tab == TabReview {
		src = s.snapshot.Assigned
	}
	out := make([]domain.Item, len(src))
	copy(out, src)
	return out
}

// Groups returns the tab's items grouped by repository. Groups are ordered
// by their most recent update, items within a group newest first.
func (s *Store) Groups(tab Tab) []Group {
	byRepo := make(map[string][]domain.Item)
	for _, item := range s.Items(tab) {
		key := item.Repo.String()
		byRepo[key] = append(byRepo[key], item)
	}

	groups := make([]Group, 0, len(byRepo))
	for repo, items := range byRepo {
		sort.SliceStable(items, func(i, j int) bool {
			if !items[i].UpdatedAt.Equal(items[j].UpdatedAt) {
				return items[i].UpdatedAt.After(items[j].UpdatedAt)
			}
			return items[i].ID < items[j].ID
		})
		groups = append(groups, Group{Repo: repo, Items: items})
	}

	sort.Slice(groups, func(i, j int) bool {
		a, b := groups[i].Items[0].UpdatedAt, groups[j].Items[0].UpdatedAt
		if !a.Equal(b) {
			return a.After(b)
		}
		return groups[i].Repo < groups[j].Repo
	})
	return groups
}

// IsUnseen reports whether the row for item should carry the unseen marker:
// no seen entry, or an update after it.
func (s *Store) IsUnseen(item domain.Item) bool {
	return s.seen.IsUnseen(item)
}

// IsSelfUpdate reports whether the item's most recent activity was the viewer's own.
func (s *Store) IsSelfUpdate(item domain.Item) bool {
	return domain.SameLogin(item.LastActor, s.viewerLogin)
}

// Counts returns the number of items in a tab and how many carry the unseen marker.
func (s *Store) Counts(tab Tab) (total, unseen int) {
	for _, item := range s.Items(tab) {
		total++
		if s.IsUnseen(item) {
			unseen++
		}
	}
	return total, unseen
}

// MarkSeen optimistically records id as seen at the given instant so the
// marker disappears before the watcher confirms. The previous value is kept
// for RollbackSeen.
func (s *Store) MarkSeen(id string, at time.Time) error {
	if !s.hasSnapshot {
		return ErrNoSnapshot
	}
	if _, ok := s.items[id]; !ok {
		return ErrItemNotFound
	}

	prev, had := s.seen[id]
	s.rollbackID, s.rollbackAt, s.rollbackHad, s.rollbackHeld = id, prev, had, true
	s.seen[id] = at
	return nil
}

// RollbackSeen reverts the last MarkSeen. It should be called when the
// watcher could not be told about the view.
func (s *Store) RollbackSeen() error {
	if !s.rollbackHeld {
		return ErrNothingToRollback
	}
	if s.rollbackHad {
		s.seen[s.rollbackID] = s.rollbackAt
	} else {
		delete(s.seen, s.rollbackID)
	}
	s.rollbackHeld = false
	return nil
}

// Clear drops the snapshot, keeping the viewer login.
func (s *Store) Clear() {
	s.snapshot = domain.Snapshot{}
	s.hasSnapshot = false
	s.seen = domain.SeenMap{}
	s.items = make(map[string]domain.Item)
	s.rollbackHeld = false
}

// Reset returns the store to its initial state.
func (s *Store) Reset() {
	s.viewerLogin = ""
	s.Clear()
}
