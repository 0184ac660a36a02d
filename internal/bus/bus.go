// Package bus carries messages between the watcher and its front ends.
package bus

import (
	"context"
	"sync"
)

// Action names a message kind.
type Action string

const (
	// Core to UI.
	ActionDataUpdated     Action = "dataUpdated"
	ActionAuthInvalidated Action = "authInvalidated"
	ActionCycleFailed     Action = "cycleFailed"

	// UI to core.
	ActionRefreshNow Action = "refreshNow"
	ActionItemViewed Action = "itemViewed"
)

// Message is one bus message. ID is set for ActionItemViewed, Error for
// ActionCycleFailed.
type Message struct {
	Action Action
	ID     string
	Error  string
}

type subscriber struct {
	ch      chan Message
	done    chan struct{}
	actions map[Action]bool
}

func (s *subscriber) wants(a Action) bool {
	return len(s.actions) == 0 || s.actions[a]
}

// Bus is an in-process publish/subscribe hub.
type Bus struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

func New() *Bus {
	return &Bus{subs: make(map[*subscriber]struct{})}
}

// Subscribe returns a channel receiving messages whose action is in actions
// (all messages when none are given) and a function that ends the
// subscription. The channel is never closed; receivers select on their own
// context.
func (b *Bus) Subscribe(buffer int, actions ...Action) (<-chan Message, func()) {
	sub := &subscriber{
		ch:      make(chan Message, buffer),
		done:    make(chan struct{}),
		actions: make(map[Action]bool, len(actions)),
	}
	for _, a := range actions {
		sub.actions[a] = true
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, sub)
			b.mu.Unlock()
			close(sub.done)
		})
	}
}

// Publish delivers msg to every interested subscriber, waiting for buffer
// space. It returns ctx.Err() if ctx ends first. A subscriber that
// unsubscribes while Publish waits on it is skipped.
func (b *Bus) Publish(ctx context.Context, msg Message) error {
	b.mu.Lock()
	targets := make([]*subscriber, 0, len(b.subs))
	for sub := range b.subs {
		if sub.wants(msg.Action) {
			targets = append(targets, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range targets {
		select {
		case sub.ch <- msg:
		case <-sub.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Subscribers returns how many subscriptions want action.
func (b *Bus) Subscribers(action Action) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for sub := range b.subs {
		if sub.wants(action) {
			n++
		}
	}
	return n
}
