package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/h0rv/prwatch/internal/store"
	"github.com/h0rv/prwatch/internal/timer"
	"github.com/h0rv/prwatch/internal/tui"
	"github.com/spf13/cobra"
)

var (
	// CLI flags
	configFlag string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "prwatch",
		Short: "Watch your GitHub pull requests from the terminal",
		Long: `prwatch polls GitHub for pull requests you authored, are assigned to,
or were asked to review, and flags the ones with activity you have not seen.

Running prwatch without a subcommand opens the interactive list and polls in
the background. Use 'prwatch daemon' to poll without a UI, for example to feed
the badge file to a status bar.

Authentication:
  1. prwatch login (uses 'gh auth token' or GITHUB_TOKEN)
  2. prwatch config set --token <token> --username <login>`,
		RunE:          runTUI,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Path to config.toml (default: $XDG_CONFIG_HOME/prwatch/config.toml)")

	rootCmd.AddCommand(
		newDaemonCmd(),
		newRefreshCmd(),
		newBadgeCmd(),
		newConfigCmd(),
		newLoginCmd(),
	)
	return rootCmd
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runTUI(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	rt, err := openRuntime(ctx, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.openState(); err != nil {
		return err
	}

	sched := timer.NewScheduler()
	defer sched.Stop()

	app := tui.NewAppModel(ctx, store.New(), tui.Deps{
		State:    rt.state,
		Settings: rt.settings,
		Bus:      rt.bus,
		Timeline: rt.loadTimeline,
	})
	p := tui.NewProgram(app)

	w, err := rt.newWatcher(rt.display(tui.BadgeDisplay{Program: p}), sched)
	if err != nil {
		return err
	}

	fwd := tui.NewForwarder(rt.bus)

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		fwd.Run(ctx, p)
	}()
	go func() {
		defer wg.Done()
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			rt.logger.Error("watcher stopped", "error", err)
		}
	}()

	// Quit the program when a signal arrives
	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	_, runErr := p.Run()
	cancel()
	wg.Wait()

	if runErr != nil {
		return fmt.Errorf("program error: %w", runErr)
	}
	return nil
}
