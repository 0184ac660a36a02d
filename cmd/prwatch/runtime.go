package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/h0rv/prwatch/internal/badge"
	"github.com/h0rv/prwatch/internal/bus"
	"github.com/h0rv/prwatch/internal/config"
	"github.com/h0rv/prwatch/internal/domain"
	"github.com/h0rv/prwatch/internal/gh"
	"github.com/h0rv/prwatch/internal/logging"
	"github.com/h0rv/prwatch/internal/settings"
	"github.com/h0rv/prwatch/internal/state"
	"github.com/h0rv/prwatch/internal/watcher"
)

// runtime bundles what every subcommand needs: config, logger, settings and
// the bus. The state database is opened on demand.
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	settings *settings.Store
	state    *state.Store
	bus      *bus.Bus

	closers []io.Closer
}

func openRuntime(ctx context.Context, isTUI bool) (*runtime, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, err
	}

	logger, logCloser, err := logging.Setup(cfg.Log.File, cfg.Log.Level, isTUI)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}

	rt := &runtime{
		cfg:      cfg,
		logger:   logger,
		settings: settings.NewStore(cfg.SettingsFile),
		bus:      bus.New(),
		closers:  []io.Closer{logCloser},
	}

	wrote, err := rt.settings.EnsureDefaults(ctx)
	if err != nil {
		rt.Close()
		return nil, err
	}
	if wrote {
		logger.Info("wrote default settings", "path", rt.settings.Path())
	}
	logger.Debug("config loaded", "file", cfg.File, "data_dir", cfg.DataDir)
	return rt, nil
}

func (rt *runtime) openState() error {
	if rt.state != nil {
		return nil
	}
	st, err := state.Open(rt.cfg.StateFile)
	if err != nil {
		return fmt.Errorf("failed to open state: %w", err)
	}
	rt.state = st
	rt.closers = append(rt.closers, st)
	return nil
}

// Close releases resources in reverse order of acquisition.
func (rt *runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i].Close())
	}
	return errors.Join(errs...)
}

func (rt *runtime) client(token string) (*gh.Client, error) {
	return gh.New(token, gh.WithEndpoint(rt.cfg.APIURL))
}

func (rt *runtime) newClient(token string) (watcher.Fetcher, error) {
	c, err := rt.client(token)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// display fans the badge out to the badge file, the log, and any extras.
func (rt *runtime) display(extra ...badge.Display) badge.Display {
	d := badge.Multi{
		badge.FileDisplay{Path: rt.cfg.BadgeFile},
		badge.LogDisplay{Logger: rt.logger},
	}
	return append(d, extra...)
}

// newWatcher builds a watcher over the runtime's stores, opening the state
// database if needed. alarms may be nil for single-cycle use.
func (rt *runtime) newWatcher(display badge.Display, alarms watcher.Alarms) (*watcher.Watcher, error) {
	if err := rt.openState(); err != nil {
		return nil, err
	}
	return watcher.New(watcher.Options{
		Settings:            rt.settings,
		State:               rt.state,
		NewClient:           rt.newClient,
		Display:             display,
		Bus:                 rt.bus,
		Alarms:              alarms,
		Logger:              rt.logger,
		Concurrency:         rt.cfg.Activity.Concurrency,
		InactivityThreshold: rt.cfg.InactivityThreshold,
		MaxResults:          rt.cfg.Search.MaxResults,
	})
}

// loadTimeline fetches an item's activity trail for the detail view.
func (rt *runtime) loadTimeline(ctx context.Context, item domain.Item) ([]domain.ActivityEvent, error) {
	st, err := rt.settings.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !st.Configured() {
		return nil, domain.ErrConfigMissing
	}
	c, err := rt.client(st.Token)
	if err != nil {
		return nil, err
	}
	return c.Timeline(ctx, item.Repo, item.Number)
}

// verifyCredentials checks that token is accepted and belongs to username.
func (rt *runtime) verifyCredentials(ctx context.Context, token, username string) error {
	c, err := rt.client(token)
	if err != nil {
		return err
	}
	login, err := c.Viewer(ctx)
	if err != nil {
		if domain.IsUnauthorized(err) {
			return fmt.Errorf("GitHub rejected the token: %w", err)
		}
		return fmt.Errorf("failed to verify token: %w", err)
	}
	if !domain.SameLogin(login, username) {
		return fmt.Errorf("token belongs to %q, not %q", login, username)
	}
	return nil
}
