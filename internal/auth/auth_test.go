package auth

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestGhCliProvider_Token(t *testing.T) {
	var gotArgs []string
	provider := &GhCliProvider{
		Hostname: "ghe.example.com",
		Run: func(_ context.Context, name string, args ...string) ([]byte, error) {
			gotArgs = append([]string{name}, args...)
			return []byte("gho_abc123\n"), nil
		},
	}

	token, err := provider.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "gho_abc123", token)
	assert.Equal(t, []string{"gh", "auth", "token", "--hostname", "ghe.example.com"}, gotArgs)
}

func TestGhCliProvider_Errors(t *testing.T) {
	tests := []struct {
		name    string
		out     []byte
		err     error
		wantMsg string
	}{
		{"not installed", nil, &exec.Error{Name: "gh", Err: exec.ErrNotFound}, "not found in PATH"},
		{"not logged in", nil, errors.New("exit status 1"), "gh auth token failed"},
		{"empty output", []byte("  \n"), nil, "empty token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &GhCliProvider{Run: func(context.Context, string, ...string) ([]byte, error) {
				return tt.out, tt.err
			}}
			token, err := provider.Token(context.Background())
			require.Error(t, err)
			assert.Empty(t, token)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestEnvProvider_Token(t *testing.T) {
	provider := &EnvProvider{Var: "GITHUB_TOKEN", Lookup: envOf(map[string]string{"GITHUB_TOKEN": " ghp_test_token_123 "})}
	token, err := provider.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ghp_test_token_123", token)
	assert.Equal(t, "$GITHUB_TOKEN", provider.Name())
}

func TestEnvProvider_Missing(t *testing.T) {
	provider := &EnvProvider{Var: "GITHUB_TOKEN", Lookup: envOf(nil)}
	token, err := provider.Token(context.Background())
	assert.Error(t, err)
	assert.Empty(t, token)
	assert.Contains(t, err.Error(), "GITHUB_TOKEN")
}

func TestEnvProvider_UsesProcessEnv(t *testing.T) {
	t.Setenv("PRWATCH_TEST_TOKEN", "from-env")
	token, err := (&EnvProvider{Var: "PRWATCH_TEST_TOKEN"}).Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "from-env", token)
}

func TestDiscover_FirstProviderWins(t *testing.T) {
	failing := &GhCliProvider{Run: func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("exit status 1")
	}}
	env := &EnvProvider{Var: "GITHUB_TOKEN", Lookup: envOf(map[string]string{"GITHUB_TOKEN": "ghp_fallback"})}
	never := &EnvProvider{Var: "GH_TOKEN", Lookup: func(string) (string, bool) {
		t.Fatal("later providers should not be consulted")
		return "", false
	}}

	token, source, err := Discover(context.Background(), failing, env, never)
	require.NoError(t, err)
	assert.Equal(t, "ghp_fallback", token)
	assert.Equal(t, "$GITHUB_TOKEN", source)
}

func TestDiscover_AllFail(t *testing.T) {
	_, _, err := Discover(context.Background(),
		&EnvProvider{Var: "PRWATCH_TOKEN", Lookup: envOf(nil)},
		&EnvProvider{Var: "GITHUB_TOKEN", Lookup: envOf(nil)},
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoToken)
	assert.Contains(t, err.Error(), "$PRWATCH_TOKEN")
	assert.Contains(t, err.Error(), "$GITHUB_TOKEN")
}

func TestDiscover_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := Discover(ctx, &EnvProvider{Var: "X", Lookup: envOf(map[string]string{"X": "y"})})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTokenProvider_Interface(t *testing.T) {
	var _ TokenProvider = &GhCliProvider{}
	var _ TokenProvider = &EnvProvider{}
	assert.Len(t, DefaultProviders(), 4)
}
