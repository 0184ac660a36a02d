// Package watcher runs poll cycles: fetch, resolve activity, reconcile against
// the seen-map, persist, update the badge and notify front ends. It also
// records items as viewed. Cycles never overlap.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/h0rv/prwatch/internal/activity"
	"github.com/h0rv/prwatch/internal/badge"
	"github.com/h0rv/prwatch/internal/bus"
	"github.com/h0rv/prwatch/internal/domain"
	"github.com/h0rv/prwatch/internal/gh"
	"github.com/h0rv/prwatch/internal/reconcile"
	"github.com/h0rv/prwatch/internal/settings"
	"golang.org/x/sync/errgroup"
)

// AlarmName is the timer that drives periodic cycles.
const AlarmName = "checkPRs"

// Trigger records why a cycle ran.
type Trigger string

const (
	TriggerStartup Trigger = "startup"
	TriggerTimer   Trigger = "timer"
	TriggerManual  Trigger = "manual"
	TriggerViewed  Trigger = "viewed"
)

// Fetcher is the remote API as seen by a cycle.
type Fetcher interface {
	SearchItems(ctx context.Context, q gh.SearchQuery) ([]domain.Item, error)
	activity.TimelineFetcher
}

// ClientFactory builds a Fetcher for a token. Settings may change between
// cycles, so a client is built per cycle.
type ClientFactory func(token string) (Fetcher, error)

type SettingsStore interface {
	Load(ctx context.Context) (settings.Settings, error)
	ClearCredentials(ctx context.Context) error
}

type StateStore interface {
	// Reconcile reads the seen-map and persists what fn derives from it atomically.
	Reconcile(ctx context.Context, fn func(seen domain.SeenMap) (domain.Snapshot, domain.SeenMap, error)) error
	MarkSeen(ctx context.Context, id string, at time.Time) error
	Clear(ctx context.Context) error
}

// Alarms is the subset of the timer service the watcher drives.
type Alarms interface {
	Schedule(name string, period time.Duration)
	OnFire(name string, cb func(name string))
	Period(name string) time.Duration
}

type Options struct {
	Settings  SettingsStore
	State     StateStore
	NewClient ClientFactory
	Display   badge.Display
	Bus       *bus.Bus
	Alarms    Alarms // optional
	Logger    *slog.Logger

	Concurrency         int           // activity fetches in flight; zero means activity.DefaultConcurrency
	InactivityThreshold time.Duration // zero means reconcile.DefaultInactivityThreshold
	MaxResults          int           // per query; zero means one page
	Now                 func() time.Time
}

// Result summarizes a completed cycle.
type Result struct {
	CycleID     string
	Trigger     Trigger
	Snapshot    domain.Snapshot
	Badge       badge.State
	UnseenCount int
}

type Watcher struct {
	opts Options

	// cycleMu is held for a whole cycle, and by MarkViewed across its write
	// and the cycle that follows.
	cycleMu sync.Mutex

	triggers chan Trigger
}

func New(opts Options) (*Watcher, error) {
	switch {
	case opts.Settings == nil:
		return nil, errors.New("watcher: settings store is required")
	case opts.State == nil:
		return nil, errors.New("watcher: state store is required")
	case opts.NewClient == nil:
		return nil, errors.New("watcher: client factory is required")
	case opts.Display == nil:
		return nil, errors.New("watcher: badge display is required")
	case opts.Bus == nil:
		return nil, errors.New("watcher: bus is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = activity.DefaultConcurrency
	}
	return &Watcher{opts: opts, triggers: make(chan Trigger, 1)}, nil
}

// RunCycle runs one full cycle, waiting for any cycle already in flight.
func (w *Watcher) RunCycle(ctx context.Context, trigger Trigger) (Result, error) {
	w.cycleMu.Lock()
	defer w.cycleMu.Unlock()
	return w.runCycleLocked(ctx, trigger)
}

// MarkViewed records that the user observed item id now, then runs a full
// cycle so the badge reflects it. The id is not checked against the current
// snapshot; the next cycle prunes unknown ids.
func (w *Watcher) MarkViewed(ctx context.Context, id string) (Result, error) {
	w.cycleMu.Lock()
	defer w.cycleMu.Unlock()

	if err := w.opts.State.MarkSeen(ctx, id, w.opts.Now()); err != nil {
		return Result{}, fmt.Errorf("mark %s viewed: %w", id, err)
	}
	w.opts.Logger.DebugContext(ctx, "item marked viewed", "item", id)

	return w.runCycleLocked(ctx, TriggerViewed)
}

func (w *Watcher) runCycleLocked(ctx context.Context, trigger Trigger) (Result, error) {
	res := Result{CycleID: uuid.NewString(), Trigger: trigger}
	log := w.opts.Logger.With("cycle", res.CycleID, "trigger", string(trigger))
	started := w.opts.Now()

	st, err := w.opts.Settings.Load(ctx)
	if err != nil {
		return res, fmt.Errorf("load settings: %w", err)
	}
	if !st.Configured() {
		return res, domain.ErrConfigMissing
	}
	w.reschedule(log, st.CheckIntervalMinutes)

	client, err := w.opts.NewClient(st.Token)
	if err != nil {
		return res, fmt.Errorf("create client: %w", err)
	}

	created, assigned, err := w.fetch(ctx, client, st.Username)
	if err != nil {
		if domain.IsUnauthorized(err) {
			return res, w.invalidate(ctx, log, err)
		}
		return res, fmt.Errorf("fetch items: %w", err)
	}
	log.DebugContext(ctx, "items fetched", "created", len(created), "assigned", len(assigned))

	resolver := activity.NewResolver(client, log, w.opts.Concurrency)
	created, err = resolver.ResolveAll(ctx, created)
	if err != nil {
		return res, fmt.Errorf("resolve activity: %w", err)
	}

	var out reconcile.Output
	err = w.opts.State.Reconcile(ctx, func(seen domain.SeenMap) (domain.Snapshot, domain.SeenMap, error) {
		out = reconcile.Reconcile(reconcile.Input{
			Created:             created,
			Assigned:            assigned,
			Seen:                seen,
			User:                st.Username,
			HideInactive:        st.HideInactivePRs,
			InactivityThreshold: w.opts.InactivityThreshold,
			Now:                 w.opts.Now(),
		})
		return out.Snapshot, out.Seen, nil
	})
	if err != nil {
		return res, fmt.Errorf("save cycle: %w", err)
	}

	res.Snapshot = out.Snapshot
	res.UnseenCount = out.UnseenCount
	res.Badge = badge.Compute(out.Snapshot.Total(), out.Unseen)

	if err := w.opts.Display.Show(ctx, res.Badge); err != nil {
		log.WarnContext(ctx, "badge display failed", "error", err)
	}
	if err := w.opts.Bus.Publish(ctx, bus.Message{Action: bus.ActionDataUpdated}); err != nil {
		log.WarnContext(ctx, "publish data update failed", "error", err)
	}

	log.InfoContext(ctx, "cycle finished",
		"total", out.Snapshot.Total(),
		"unseen", out.UnseenCount,
		"tracked", len(out.Seen),
		"duration", w.opts.Now().Sub(started),
	)
	return res, nil
}

// fetch runs the three searches concurrently. Assigned and review-requested
// results are merged, assigned first.
func (w *Watcher) fetch(ctx context.Context, client Fetcher, user string) (created, assigned []domain.Item, err error) {
	preds := []gh.Predicate{gh.PredicateAuthor, gh.PredicateAssignee, gh.PredicateReviewRequested}
	results := make([][]domain.Item, len(preds))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range preds {
		g.Go(func() error {
			items, err := client.SearchItems(gctx, gh.SearchQuery{
				Predicate: p,
				Login:     user,
				OpenOnly:  true,
				Limit:     w.opts.MaxResults,
			})
			if err != nil {
				return fmt.Errorf("%s search: %w", p, err)
			}
			results[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	return results[0], reconcile.Dedup(results[1], results[2]), nil
}

// invalidate drops credentials and local state after the remote rejected
// the token, then tells front ends to ask for setup.
func (w *Watcher) invalidate(ctx context.Context, log *slog.Logger, cause error) error {
	log.WarnContext(ctx, "credentials rejected, clearing local state", "error", cause)

	var errs []error
	if err := w.opts.Settings.ClearCredentials(ctx); err != nil {
		errs = append(errs, fmt.Errorf("clear credentials: %w", err))
	}
	if err := w.opts.State.Clear(ctx); err != nil {
		errs = append(errs, fmt.Errorf("clear state: %w", err))
	}
	if err := w.opts.Bus.Publish(ctx, bus.Message{Action: bus.ActionAuthInvalidated}); err != nil {
		errs = append(errs, fmt.Errorf("publish auth invalidated: %w", err))
	}
	if len(errs) > 0 {
		log.ErrorContext(ctx, "auth invalidation incomplete", "error", errors.Join(errs...))
	}

	return fmt.Errorf("%w: %w", domain.ErrAuthInvalidated, cause)
}

func (w *Watcher) reschedule(log *slog.Logger, minutes int) {
	if w.opts.Alarms == nil {
		return
	}
	period := time.Duration(minutes) * time.Minute
	if w.opts.Alarms.Period(AlarmName) == period {
		return
	}
	w.opts.Alarms.Schedule(AlarmName, period)
	log.Info("poll interval scheduled", "every", period)
}
