// Package badge turns reconciliation results into a displayable badge and
// writes it to one or more displays.
package badge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Weight is the visual emphasis of the badge.
type Weight string

const (
	WeightCleared   Weight = "cleared"
	WeightNeutral   Weight = "neutral"
	WeightAttention Weight = "attention"
)

// Badge colours.
const (
	ColorNeutral   = "#666666"
	ColorAttention = "#f85149"
	ColorText      = "#ffffff"
)

// State is everything a display needs. Text and Color always come from the
// same Compute call, so a display that writes State in one step never shows a
// stale mix.
type State struct {
	Text      string `json:"text"`
	Color     string `json:"color"`
	TextColor string `json:"text_color"`
	Weight    Weight `json:"weight"`
	Count     int    `json:"count"`
	Unseen    bool   `json:"unseen"`
}

// Cleared reports whether no badge should be shown.
func (s State) Cleared() bool {
	return s.Weight == WeightCleared
}

// Compute maps an item count and the unseen signal to a badge.
func Compute(total int, unseen bool) State {
	if total <= 0 {
		return State{Weight: WeightCleared}
	}

	s := State{
		Text:      strconv.Itoa(total),
		Color:     ColorNeutral,
		TextColor: ColorText,
		Weight:    WeightNeutral,
		Count:     total,
		Unseen:    unseen,
	}
	if unseen {
		s.Color = ColorAttention
		s.Weight = WeightAttention
	}
	return s
}

// Display shows a badge. Show receives the whole State at once.
type Display interface {
	Show(ctx context.Context, s State) error
}

// Multi fans a badge out to several displays. Every display is attempted;
// their errors are joined.
type Multi []Display

func (m Multi) Show(ctx context.Context, s State) error {
	var errs []error
	for _, d := range m {
		if err := d.Show(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogDisplay writes badge changes to a logger.
type LogDisplay struct {
	Logger *slog.Logger
}

func (d LogDisplay) Show(ctx context.Context, s State) error {
	if s.Cleared() {
		d.Logger.InfoContext(ctx, "badge cleared")
		return nil
	}
	d.Logger.InfoContext(ctx, "badge updated", "text", s.Text, "weight", s.Weight, "color", s.Color)
	return nil
}

// fileRecord is the on-disk form of FileDisplay, meant for status bars.
type fileRecord struct {
	State
	UpdatedAt time.Time `json:"updated_at"`
}

// FileDisplay writes the badge as JSON to Path. The file is replaced with a
// rename, so readers see either the old or the new badge.
type FileDisplay struct {
	Path string
	Now  func() time.Time
}

func (d FileDisplay) Show(ctx context.Context, s State) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := time.Now
	if d.Now != nil {
		now = d.Now
	}

	data, err := json.Marshal(fileRecord{State: s, UpdatedAt: now().UTC()})
	if err != nil {
		return fmt.Errorf("encode badge: %w", err)
	}

	dir := filepath.Dir(d.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create badge directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".badge-*.json.tmp")
	if err != nil {
		return fmt.Errorf("create temp badge file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp badge file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp badge file: %w", err)
	}
	if err := os.Rename(tmpName, d.Path); err != nil {
		return fmt.Errorf("replace badge file: %w", err)
	}
	cleanup = false
	return nil
}

// ReadFile loads the badge last written by FileDisplay.
func ReadFile(path string) (State, time.Time, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return State{}, time.Time{}, fmt.Errorf("read badge file: %w", err)
	}
	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return State{}, time.Time{}, fmt.Errorf("decode badge file: %w", err)
	}
	return rec.State, rec.UpdatedAt, nil
}
