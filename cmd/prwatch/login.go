package main

import (
	"fmt"

	"github.com/h0rv/prwatch/internal/auth"
	"github.com/h0rv/prwatch/internal/domain"
	"github.com/h0rv/prwatch/internal/settings"
	"github.com/spf13/cobra"
)

func newLoginCmd() *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save a GitHub token found on this machine",
		Long: `Looks for a token in $PRWATCH_TOKEN, the GitHub CLI ('gh auth token'),
$GITHUB_TOKEN and $GH_TOKEN, in that order. The username is read from GitHub.
Pass --username to insist on a specific account.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rt, err := openRuntime(ctx, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			token, source, err := auth.Discover(ctx)
			if err != nil {
				return fmt.Errorf("%w\n\nPlease either:\n"+
					"  1. Run 'gh auth login' to authenticate with GitHub CLI, or\n"+
					"  2. Set GITHUB_TOKEN, or\n"+
					"  3. Run 'prwatch config set --token <token> --username <login>'", err)
			}

			client, err := rt.client(token)
			if err != nil {
				return err
			}
			login, err := client.Viewer(ctx)
			if err != nil {
				if domain.IsUnauthorized(err) {
					return fmt.Errorf("GitHub rejected the token from %s: %w", source, err)
				}
				return fmt.Errorf("failed to verify token from %s: %w", source, err)
			}
			if username != "" && !domain.SameLogin(login, username) {
				return fmt.Errorf("token from %s belongs to %q, not %q", source, login, username)
			}

			saved, err := rt.settings.Update(ctx, func(s *settings.Settings) {
				s.Token = token
				s.Username = login
			})
			if err != nil {
				return err
			}

			rt.logger.Info("credentials saved", "username", saved.Username, "source", source)
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (token from %s).\n", saved.Username, source)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Expected GitHub login")
	return cmd
}
