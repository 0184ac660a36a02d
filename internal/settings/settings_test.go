package settings

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/h0rv/prwatch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "prwatch", "settings.toml"))
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	s := newTestStore(t)

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Defaults(), got)
	assert.False(t, got.Configured())
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := Settings{Token: " ghp_abc ", Username: "bob", CheckIntervalMinutes: 30, HideInactivePRs: false}
	require.NoError(t, s.Save(ctx, in))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Settings{Token: "ghp_abc", Username: "bob", CheckIntervalMinutes: 30, HideInactivePRs: false}, got)
	assert.True(t, got.Configured())

	info, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(fileMode), info.Mode().Perm())
}

func TestNormalize_ClampsInterval(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, DefaultCheckInterval},
		{1, MinCheckInterval},
		{-3, MinCheckInterval},
		{5, 5},
		{42, 42},
		{60, 60},
		{600, MaxCheckInterval},
	}
	for _, tt := range tests {
		got := Settings{CheckIntervalMinutes: tt.in}.Normalize()
		assert.Equal(t, tt.want, got.CheckIntervalMinutes, "input %d", tt.in)
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Settings{Token: "t", Username: "u"}.Validate())

	err := Settings{Token: "  "}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token is required")
	assert.Contains(t, err.Error(), "username is required")
}

func TestLoad_HideInactiveDefaultsTrueWhenAbsent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o700))
	require.NoError(t, os.WriteFile(s.Path(), []byte("token = \"t\"\nusername = \"u\"\n"), 0o600))

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, got.HideInactivePRs)
	assert.Equal(t, DefaultCheckInterval, got.CheckIntervalMinutes)
}

func TestLoad_CorruptFile(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o700))
	require.NoError(t, os.WriteFile(s.Path(), []byte("token = [unterminated"), 0o600))

	_, err := s.Load(context.Background())
	var perr *domain.PersistenceError
	assert.ErrorAs(t, err, &perr)
}

func TestClearCredentials_KeepsOtherSettings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, Settings{Token: "t", Username: "u", CheckIntervalMinutes: 20, HideInactivePRs: false}))

	require.NoError(t, s.ClearCredentials(ctx))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Settings{CheckIntervalMinutes: 20, HideInactivePRs: false}, got)
}

func TestEnsureDefaults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.EnsureDefaults(ctx)
	require.NoError(t, err)
	assert.True(t, created)

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "check_interval_minutes = 15")

	require.NoError(t, s.Save(ctx, Settings{Token: "t", Username: "u", CheckIntervalMinutes: 10}))
	created, err = s.EnsureDefaults(ctx)
	require.NoError(t, err)
	assert.False(t, created)

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "t", got.Token, "existing file is left alone")
}

func TestUpdate(t *testing.T) {
	s := newTestStore(t)

	got, err := s.Update(context.Background(), func(st *Settings) {
		st.Username = "carol"
		st.CheckIntervalMinutes = 99
	})
	require.NoError(t, err)
	assert.Equal(t, "carol", got.Username)
	assert.Equal(t, MaxCheckInterval, got.CheckIntervalMinutes)
	assert.True(t, got.HideInactivePRs)
}

func TestLoad_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestStore(t).Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
