// Package settings persists the user-editable settings (credentials, poll
// interval, display filter) in a TOML file.
package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/h0rv/prwatch/internal/domain"
	toml "github.com/pelletier/go-toml/v2"
)

// Interval bounds in minutes.
const (
	DefaultCheckInterval = 15
	MinCheckInterval     = 5
	MaxCheckInterval     = 60
)

const (
	fileMode        = 0o600
	dirMode         = 0o700
	tempFilePattern = ".settings-*.toml.tmp"
)

// Settings are the values the user configures.
type Settings struct {
	Token                string
	Username             string
	CheckIntervalMinutes int
	HideInactivePRs      bool
}

// Defaults returns settings with no credentials.
func Defaults() Settings {
	return Settings{CheckIntervalMinutes: DefaultCheckInterval, HideInactivePRs: true}
}

// Configured reports whether both credentials are present.
func (s Settings) Configured() bool {
	return strings.TrimSpace(s.Token) != "" && strings.TrimSpace(s.Username) != ""
}

// Normalize trims credentials and clamps the interval into range.
// An unset interval becomes the default.
func (s Settings) Normalize() Settings {
	s.Token = strings.TrimSpace(s.Token)
	s.Username = strings.TrimSpace(s.Username)
	switch {
	case s.CheckIntervalMinutes == 0:
		s.CheckIntervalMinutes = DefaultCheckInterval
	case s.CheckIntervalMinutes < MinCheckInterval:
		s.CheckIntervalMinutes = MinCheckInterval
	case s.CheckIntervalMinutes > MaxCheckInterval:
		s.CheckIntervalMinutes = MaxCheckInterval
	}
	return s
}

// Validate checks what a user-initiated save requires.
func (s Settings) Validate() error {
	var errs []error
	if strings.TrimSpace(s.Token) == "" {
		errs = append(errs, errors.New("token is required"))
	}
	if strings.TrimSpace(s.Username) == "" {
		errs = append(errs, errors.New("username is required"))
	}
	return errors.Join(errs...)
}

type fileSchema struct {
	Token                string `toml:"token,omitempty"`
	Username             string `toml:"username,omitempty"`
	CheckIntervalMinutes int    `toml:"check_interval_minutes"`
	HideInactivePRs      *bool  `toml:"hide_inactive_prs"`
}

func (f fileSchema) toSettings() Settings {
	s := Settings{
		Token:                f.Token,
		Username:             f.Username,
		CheckIntervalMinutes: f.CheckIntervalMinutes,
		HideInactivePRs:      true,
	}
	if f.HideInactivePRs != nil {
		s.HideInactivePRs = *f.HideInactivePRs
	}
	return s.Normalize()
}

func toSchema(s Settings) fileSchema {
	hide := s.HideInactivePRs
	return fileSchema{
		Token:                s.Token,
		Username:             s.Username,
		CheckIntervalMinutes: s.CheckIntervalMinutes,
		HideInactivePRs:      &hide,
	}
}

// Store reads and writes the settings file.
type Store struct {
	path string
	mu   sync.RWMutex
}

// NewStore returns a store for the file at path. The file need not exist.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the settings file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the settings. A missing file yields Defaults.
func (s *Store) Load(ctx context.Context) (Settings, error) {
	if err := ctx.Err(); err != nil {
		return Settings{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	file, exists, err := s.read()
	if err != nil {
		return Settings{}, err
	}
	if !exists {
		return Defaults(), nil
	}
	return file.toSettings(), nil
}

// Save normalizes and writes settings.
func (s *Store) Save(ctx context.Context, settings Settings) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.write(toSchema(settings.Normalize()))
}

// Update applies fn to the current settings and saves the result.
func (s *Store) Update(ctx context.Context, fn func(*Settings)) (Settings, error) {
	if err := ctx.Err(); err != nil {
		return Settings{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, exists, err := s.read()
	if err != nil {
		return Settings{}, err
	}
	current := Defaults()
	if exists {
		current = file.toSettings()
	}

	fn(&current)
	current = current.Normalize()
	if err := s.write(toSchema(current)); err != nil {
		return Settings{}, err
	}
	return current, nil
}

// ClearCredentials removes the token and username, keeping the other settings.
func (s *Store) ClearCredentials(ctx context.Context) error {
	_, err := s.Update(ctx, func(st *Settings) {
		st.Token = ""
		st.Username = ""
	})
	return err
}

// EnsureDefaults writes a default settings file when none exists yet.
// It reports whether a file was created.
func (s *Store) EnsureDefaults(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists, err := s.read()
	if err != nil || exists {
		return false, err
	}
	if err := s.write(toSchema(Defaults())); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) read() (fileSchema, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileSchema{}, false, nil
		}
		return fileSchema{}, false, &domain.PersistenceError{Op: "read settings", Err: err}
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, false, &domain.PersistenceError{Op: "read settings", Err: fmt.Errorf("decode settings file: %w", err)}
	}
	return file, true, nil
}

func (s *Store) write(file fileSchema) error {
	if err := s.writeFile(file); err != nil {
		return &domain.PersistenceError{Op: "write settings", Err: err}
	}
	return nil
}

func (s *Store) writeFile(file fileSchema) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode settings file: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp settings file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp settings file: %w", err)
	}
	if err := tempFile.Chmod(fileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp settings file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp settings file: %w", err)
	}
	if err := os.Rename(tempName, s.path); err != nil {
		return fmt.Errorf("replace settings file: %w", err)
	}
	cleanup = false
	return nil
}
