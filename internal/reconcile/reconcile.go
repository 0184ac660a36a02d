// Package reconcile merges freshly fetched items with the persisted seen-map and
// decides whether anything deserves the user's attention.
package reconcile

import (
	"time"

	"github.com/h0rv/prwatch/internal/domain"
)

// DefaultInactivityThreshold is how old an update may be before hideInactive drops the item.
const DefaultInactivityThreshold = 30 * 24 * time.Hour

// Input is everything one reconciliation pass looks at.
type Input struct {
	Created  []domain.Item  // Authored items, activity already resolved
	Assigned []domain.Item  // Assigned and review-requested items, already deduplicated
	Seen     domain.SeenMap // Persisted seen-map from the previous pass
	User     string         // Current user's login

	HideInactive        bool
	InactivityThreshold time.Duration // Zero means DefaultInactivityThreshold
	Now                 time.Time
}

// Output is the result of a pass. Seen is a fresh map; Input.Seen is not modified.
type Output struct {
	Snapshot    domain.Snapshot
	Seen        domain.SeenMap
	Unseen      bool
	UnseenCount int
}

// Dedup merges lists by item ID. The first occurrence wins, so earlier lists take priority.
func Dedup(lists ...[]domain.Item) []domain.Item {
	seen := make(map[string]bool)
	var out []domain.Item
	for _, list := range lists {
		for _, item := range list {
			if seen[item.ID] {
				continue
			}
			seen[item.ID] = true
			out = append(out, item)
		}
	}
	return out
}

// Reconcile runs one pass.
//
// Display filtering (hideInactive) only shapes the Snapshot. Unseen detection and
// seen-map pruning always work on the full, unfiltered union of fresh items.
func Reconcile(in Input) Output {
	threshold := in.InactivityThreshold
	if threshold <= 0 {
		threshold = DefaultInactivityThreshold
	}

	all := Dedup(in.Created, in.Assigned)

	// Created wins category conflicts, so the assigned partition drops its duplicates
	createdIDs := make(map[string]bool, len(in.Created))
	for _, item := range in.Created {
		createdIDs[item.ID] = true
	}
	created := Dedup(in.Created)
	assigned := make([]domain.Item, 0, len(in.Assigned))
	for _, item := range Dedup(in.Assigned) {
		if !createdIDs[item.ID] {
			assigned = append(assigned, item)
		}
	}

	if in.HideInactive {
		cutoff := in.Now.Add(-threshold)
		created = activeSince(created, cutoff)
		assigned = activeSince(assigned, cutoff)
	}

	present := make(map[string]bool, len(all))
	for _, item := range all {
		present[item.ID] = true
	}
	seen := make(domain.SeenMap, len(in.Seen))
	for id, at := range in.Seen {
		if present[id] {
			seen[id] = at
		}
	}

	unseenCount := 0
	for _, item := range all {
		if domain.SameLogin(item.LastActor, in.User) {
			continue
		}
		if seen.IsUnseen(item) {
			unseenCount++
		}
	}

	return Output{
		Snapshot: domain.Snapshot{
			Created:  nonNil(created),
			Assigned: nonNil(assigned),
		},
		Seen:        seen,
		Unseen:      unseenCount > 0,
		UnseenCount: unseenCount,
	}
}

func activeSince(items []domain.Item, cutoff time.Time) []domain.Item {
	out := make([]domain.Item, 0, len(items))
	for _, item := range items {
		if !item.UpdatedAt.Before(cutoff) {
			out = append(out, item)
		}
	}
	return out
}

// nonNil keeps persisted snapshots as [] rather than null.
func nonNil(items []domain.Item) []domain.Item {
	if items == nil {
		return []domain.Item{}
	}
	return items
}
