// Package auth discovers a GitHub token already present on the machine so
// `prwatch login` can save it without the user pasting one.
package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ErrNoToken is returned when no provider yields a token.
var ErrNoToken = errors.New("no GitHub token found")

// TokenProvider obtains a GitHub token from one source.
type TokenProvider interface {
	// Name identifies the source in messages, e.g. "gh CLI" or "$GITHUB_TOKEN".
	Name() string
	Token(ctx context.Context) (string, error)
}

// CommandRunner runs an external command and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// GhCliProvider obtains tokens by shelling out to `gh auth token`, respecting
// the user's GitHub CLI login.
type GhCliProvider struct {
	Hostname string        // defaults to github.com
	Run      CommandRunner // defaults to os/exec
}

func (g *GhCliProvider) Name() string { return "gh CLI" }

func (g *GhCliProvider) Token(ctx context.Context) (string, error) {
	host := g.Hostname
	if host == "" {
		host = "github.com"
	}
	run := g.Run
	if run == nil {
		run = execRunner
	}

	output, err := run(ctx, "gh", "auth", "token", "--hostname", host)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", errors.New("gh CLI not found in PATH")
		}
		return "", fmt.Errorf("gh auth token failed: %w", err)
	}

	token := strings.TrimSpace(string(output))
	if token == "" {
		return "", errors.New("gh auth token returned empty token")
	}
	return token, nil
}

// EnvProvider reads a token from an environment variable.
type EnvProvider struct {
	Var    string
	Lookup func(string) (string, bool) // defaults to os.LookupEnv
}

func (e *EnvProvider) Name() string { return "$" + e.Var }

func (e *EnvProvider) Token(context.Context) (string, error) {
	lookup := e.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	v, _ := lookup(e.Var)
	if v = strings.TrimSpace(v); v == "" {
		return "", fmt.Errorf("%s not set or empty", e.Var)
	}
	return v, nil
}

// DefaultProviders returns the lookup order used by `prwatch login`:
// $PRWATCH_TOKEN, the gh CLI, $GITHUB_TOKEN, $GH_TOKEN.
func DefaultProviders() []TokenProvider {
	return []TokenProvider{
		&EnvProvider{Var: "PRWATCH_TOKEN"},
		&GhCliProvider{},
		&EnvProvider{Var: "GITHUB_TOKEN"},
		&EnvProvider{Var: "GH_TOKEN"},
	}
}

// Discover returns the first token any provider yields along with the
// provider's name. When all fail, the error wraps ErrNoToken and every
// provider's reason.
func Discover(ctx context.Context, providers ...TokenProvider) (token, source string, err error) {
	if len(providers) == 0 {
		providers = DefaultProviders()
	}

	errs := []error{ErrNoToken}
	for _, p := range providers {
		if err := ctx.Err(); err != nil {
			return "", "", err
		}
		token, err := p.Token(ctx)
		if err == nil {
			return token, p.Name(), nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}
	return "", "", errors.Join(errs...)
}
