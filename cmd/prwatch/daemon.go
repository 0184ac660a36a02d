package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/h0rv/prwatch/internal/badge"
	"github.com/h0rv/prwatch/internal/domain"
	"github.com/h0rv/prwatch/internal/timer"
	"github.com/h0rv/prwatch/internal/watcher"
	"github.com/spf13/cobra"
)

func newDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Poll in the background without a UI",
		Long: `Runs the watcher until interrupted. Each cycle rewrites the badge file,
which status bars can read with 'prwatch badge'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			rt, err := openRuntime(ctx, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			sched := timer.NewScheduler()
			defer sched.Stop()

			w, err := rt.newWatcher(rt.display(), sched)
			if err != nil {
				return err
			}
			return w.Run(ctx)
		},
	}
}

func newRefreshCmd() *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Run one poll cycle and print the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			rt, err := openRuntime(ctx, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			w, err := rt.newWatcher(rt.display(), nil)
			if err != nil {
				return err
			}

			res, err := w.RunCycle(ctx, watcher.TriggerManual)
			switch {
			case errors.Is(err, domain.ErrConfigMissing):
				return fmt.Errorf("%w: run 'prwatch login' first", err)
			case errors.Is(err, domain.ErrAuthInvalidated):
				return fmt.Errorf("%w: run 'prwatch login' again", err)
			case err != nil:
				return err
			}

			printResult(cmd.OutOrStdout(), res, list, time.Now())
			return nil
		},
	}

	cmd.Flags().BoolVarP(&list, "list", "l", false, "Also list every pull request")
	return cmd
}

func printResult(out io.Writer, res watcher.Result, list bool, now time.Time) {
	fmt.Fprintf(out, "%d pull requests (%d mine, %d to review), %d unseen\n",
		res.Snapshot.Total(), len(res.Snapshot.Created), len(res.Snapshot.Assigned), res.UnseenCount)
	if !list {
		return
	}

	section := func(title string, items []domain.Item) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(out, "\n%s\n", title)
		for _, it := range items {
			fmt.Fprintf(out, "  %s#%d  %s  (%s)\n", it.Repo, it.Number, it.Title,
				humanize.RelTime(it.UpdatedAt, now, "ago", "from now"))
		}
	}
	section("Mine", res.Snapshot.Created)
	section("Review", res.Snapshot.Assigned)
}

func newBadgeCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "badge",
		Short: "Print the badge from the last cycle",
		Long: `Prints the badge text written by the last cycle, or nothing when the badge
is cleared. Suitable for status bars.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer rt.Close()

			st, updated, err := badge.ReadFile(rt.cfg.BadgeFile)
			if err != nil {
				return err
			}
			printBadge(cmd.OutOrStdout(), st, updated, verbose, time.Now())
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Include colour and age")
	return cmd
}

func printBadge(out io.Writer, st badge.State, updated time.Time, verbose bool, now time.Time) {
	if !verbose {
		if !st.Cleared() {
			fmt.Fprintln(out, st.Text)
		}
		return
	}

	text := st.Text
	if st.Cleared() {
		text = "(cleared)"
	}
	parts := []string{text}
	if st.Color != "" {
		parts = append(parts, st.Color)
	}
	if st.Unseen {
		parts = append(parts, "unseen")
	}
	parts = append(parts, "updated "+humanize.RelTime(updated, now, "ago", "from now"))
	fmt.Fprintln(out, strings.Join(parts, "  "))
}
