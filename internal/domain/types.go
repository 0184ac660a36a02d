// Package domain defines the normalized domain types for watched pull requests.
// These types represent the core concepts independent of the GitHub GraphQL API structure.
package domain

import (
	"strings"
	"time"
)

// Category records which search query produced an item.
type Category string

// Category constants. An item matching several queries keeps the first one.
const (
	CategoryAuthored        Category = "authored"
	CategoryAssigned        Category = "assigned"
	CategoryReviewRequested Category = "review_requested"
)

// RepoRef identifies the repository an item belongs to.
type RepoRef struct {
	Owner string `json:"owner"` // Repository owner login
	Name  string `json:"name"`  // Repository name
}

// ParseRepoRef splits an "owner/name" string. Anything else yields a zero RepoRef.
func ParseRepoRef(nameWithOwner string) RepoRef {
	owner, name, ok := strings.Cut(nameWithOwner, "/")
	if !ok || owner == "" || name == "" {
		return RepoRef{}
	}
	return RepoRef{Owner: owner, Name: name}
}

// String returns "owner/name", or "unknown/repo" for an empty reference.
func (r RepoRef) String() string {
	if r.Owner == "" || r.Name == "" {
		return "unknown/repo"
	}
	return r.Owner + "/" + r.Name
}

// Item is a pull request (or issue) in a normalized format.
type Item struct {
	ID        string    `json:"id"`         // GitHub node ID, stable for the item's lifetime
	Number    int       `json:"number"`     // Number within the repository
	Title     string    `json:"title"`      // Item title
	Repo      RepoRef   `json:"repo"`       // Parent repository
	URL       string    `json:"url"`        // Canonical web URL
	UpdatedAt time.Time `json:"updated_at"` // Last remote modification
	Author    string    `json:"author"`     // Creator login
	Category  Category  `json:"category"`   // Query that produced the item

	// Filled by the activity resolver. Approved is only meaningful for authored items.
	Approved  bool   `json:"approved,omitempty"`
	LastActor string `json:"last_actor,omitempty"`
}

// Snapshot is the last successfully reconciled view, persisted wholesale.
type Snapshot struct {
	Created  []Item `json:"created"`
	Assigned []Item `json:"assigned"`
}

// Total returns the number of items across both partitions.
func (s Snapshot) Total() int {
	return len(s.Created) + len(s.Assigned)
}

// SeenMap maps item ID to the instant up to which the user has observed it.
type SeenMap map[string]time.Time

// Clone returns an independent copy. A nil map clones to an empty one.
func (m SeenMap) Clone() SeenMap {
	out := make(SeenMap, len(m))
	for id, at := range m {
		out[id] = at
	}
	return out
}

// IsUnseen reports whether the item changed after it was last observed.
// Items without an entry are unseen. Equal timestamps are not an update.
func (m SeenMap) IsUnseen(item Item) bool {
	seenAt, ok := m[item.ID]
	if !ok {
		return true
	}
	return item.UpdatedAt.After(seenAt)
}

// ActionKind is the normalized kind of an activity-trail event.
type ActionKind string

// ActionKind constants for the events that count as state-changing.
const (
	ActionReviewSubmitted    ActionKind = "reviewed"
	ActionCommitPushed       ActionKind = "committed"
	ActionCommentPosted      ActionKind = "commented"
	ActionBranchSynchronized ActionKind = "synchronized"
)

// ReviewState constants for review-submitted events.
const (
	ReviewApproved         = "approved"
	ReviewChangesRequested = "changes_requested"
	ReviewCommented        = "commented"
	ReviewDismissed        = "dismissed"
)

// ActivityEvent is one entry of an item's activity trail.
type ActivityEvent struct {
	Kind        ActionKind // Normalized event kind
	Actor       string     // Login of whoever performed it, empty if unknown
	ReviewState string     // Only set for ActionReviewSubmitted
	At          time.Time  // When it happened, zero if unknown
}

// Activity is what the resolver derives from an activity trail.
type Activity struct {
	Approved  bool
	LastActor string
}

// SameLogin compares GitHub logins, which are case-insensitive.
func SameLogin(a, b string) bool {
	return a != "" && strings.EqualFold(a, b)
}
