package watcher

import (
	"context"
	"errors"
	"time"

	"github.com/h0rv/prwatch/internal/bus"
	"github.com/h0rv/prwatch/internal/domain"
)

// Trigger queues a cycle for Run. A trigger arriving while one is already
// queued is merged into it.
func (w *Watcher) Trigger(t Trigger) {
	select {
	case w.triggers <- t:
	default:
	}
}

// Run drives cycles until ctx ends: once at startup, on every alarm, and on
// refreshNow and itemViewed messages from the bus.
func (w *Watcher) Run(ctx context.Context) error {
	msgs, unsubscribe := w.opts.Bus.Subscribe(16, bus.ActionRefreshNow, bus.ActionItemViewed)
	defer unsubscribe()

	if w.opts.Alarms != nil {
		w.opts.Alarms.OnFire(AlarmName, func(string) { w.Trigger(TriggerTimer) })
		if st, err := w.opts.Settings.Load(ctx); err == nil {
			w.opts.Alarms.Schedule(AlarmName, time.Duration(st.CheckIntervalMinutes)*time.Minute)
		}
	}

	w.opts.Logger.InfoContext(ctx, "watcher started")
	w.Trigger(TriggerStartup)

	for {
		select {
		case <-ctx.Done():
			w.opts.Logger.InfoContext(ctx, "watcher stopped")
			return nil

		case t := <-w.triggers:
			_, err := w.RunCycle(ctx, t)
			w.logCycleError(ctx, t, err)

		case msg := <-msgs:
			switch msg.Action {
			case bus.ActionRefreshNow:
				w.Trigger(TriggerManual)
			case bus.ActionItemViewed:
				if msg.ID == "" {
					continue
				}
				_, err := w.MarkViewed(ctx, msg.ID)
				w.logCycleError(ctx, TriggerViewed, err)
			}
		}
	}
}

func (w *Watcher) logCycleError(ctx context.Context, t Trigger, err error) {
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrConfigMissing):
		w.opts.Logger.DebugContext(ctx, "cycle skipped, credentials not configured", "trigger", string(t))
	case ctx.Err() != nil:
	case errors.Is(err, domain.ErrAuthInvalidated):
		// front ends already heard authInvalidated
		w.opts.Logger.WarnContext(ctx, "cycle stopped, credentials invalidated", "trigger", string(t))
	default:
		w.opts.Logger.ErrorContext(ctx, "cycle failed", "trigger", string(t), "error", err)
		msg := bus.Message{Action: bus.ActionCycleFailed, Error: err.Error()}
		if perr := w.opts.Bus.Publish(ctx, msg); perr != nil {
			w.opts.Logger.WarnContext(ctx, "publish cycle failure failed", "error", perr)
		}
	}
}
