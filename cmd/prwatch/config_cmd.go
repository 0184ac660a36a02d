package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/h0rv/prwatch/internal/settings"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change settings",
	}
	cmd.AddCommand(newConfigShowCmd(), newConfigSetCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print settings and file locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer rt.Close()

			st, err := rt.settings.Load(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printSettings(out, st)
			fmt.Fprintln(out)

			configFile := rt.cfg.File
			if configFile == "" {
				configFile = "(none, using defaults)"
			}
			fmt.Fprintf(out, "config file     %s\n", configFile)
			fmt.Fprintf(out, "settings file   %s\n", rt.settings.Path())
			fmt.Fprintf(out, "state file      %s\n", rt.cfg.StateFile)
			fmt.Fprintf(out, "badge file      %s\n", rt.cfg.BadgeFile)
			fmt.Fprintf(out, "log file        %s\n", rt.cfg.Log.File)
			return nil
		},
	}
}

func printSettings(out io.Writer, st settings.Settings) {
	fmt.Fprintf(out, "username        %s\n", orUnset(st.Username))
	fmt.Fprintf(out, "token           %s\n", orUnset(maskToken(st.Token)))
	fmt.Fprintf(out, "check interval  %d minutes\n", st.CheckIntervalMinutes)
	fmt.Fprintf(out, "hide inactive   %t\n", st.HideInactivePRs)
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

// maskToken keeps the last four characters of a token.
func maskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return strings.Repeat("*", 8) + token[len(token)-4:]
}

type configSetFlags struct {
	token        string
	username     string
	interval     int
	hideInactive bool
	skipVerify   bool
}

func newConfigSetCmd() *cobra.Command {
	var f configSetFlags

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change settings",
		Long: `Changes the given settings and saves them. Token and username are verified
against GitHub unless --skip-verify is given. The check interval is clamped to
5..60 minutes.`,
		Example: `  prwatch config set --token ghp_xxx --username octocat
  prwatch config set --interval 30 --hide-inactive=false`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			flags := cmd.Flags()
			if !anyChanged(cmd, "token", "username", "interval", "hide-inactive") {
				return fmt.Errorf("nothing to set; see 'prwatch config set --help'")
			}

			rt, err := openRuntime(ctx, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			cur, err := rt.settings.Load(ctx)
			if err != nil {
				return err
			}

			next := cur
			if flags.Changed("token") {
				next.Token = f.token
			}
			if flags.Changed("username") {
				next.Username = f.username
			}
			if flags.Changed("interval") {
				next.CheckIntervalMinutes = f.interval
			}
			if flags.Changed("hide-inactive") {
				next.HideInactivePRs = f.hideInactive
			}
			next = next.Normalize()

			// Interval and visibility may be set before credentials exist
			if anyChanged(cmd, "token", "username") {
				if err := next.Validate(); err != nil {
					return fmt.Errorf("invalid settings: %w", err)
				}
				if !f.skipVerify {
					if err := rt.verifyCredentials(ctx, next.Token, next.Username); err != nil {
						return err
					}
				}
			}

			if err := rt.settings.Save(ctx, next); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Settings saved.")
			printSettings(out, next)
			return nil
		},
	}

	cmd.Flags().StringVar(&f.token, "token", "", "GitHub token")
	cmd.Flags().StringVar(&f.username, "username", "", "GitHub login the token belongs to")
	cmd.Flags().IntVar(&f.interval, "interval", settings.DefaultCheckInterval, "Minutes between checks (5-60)")
	cmd.Flags().BoolVar(&f.hideInactive, "hide-inactive", true, "Hide pull requests without updates for 30 days")
	cmd.Flags().BoolVar(&f.skipVerify, "skip-verify", false, "Save without checking the token against GitHub")
	return cmd
}

func anyChanged(cmd *cobra.Command, names ...string) bool {
	for _, n := range names {
		if cmd.Flags().Changed(n) {
			return true
		}
	}
	return false
}
