package tui

import (
	"math"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	day   = 24 * time.Hour
	month = 30 * day
	year  = 365 * day
)

// compactMagnitudes renders "just now", "5m ago", "3h ago", "2d ago", "4mo ago", "1y ago".
var compactMagnitudes = []humanize.RelTimeMagnitude{
	{D: time.Minute, Format: "just now", DivBy: time.Second},
	{D: time.Hour, Format: "%dm %s", DivBy: time.Minute},
	{D: day, Format: "%dh %s", DivBy: time.Hour},
	{D: month, Format: "%dd %s", DivBy: day},
	{D: year, Format: "%dmo %s", DivBy: month},
	{D: math.MaxInt64, Format: "%dy %s", DivBy: year},
}

// relTime formats then relative to now in the compact form used by list rows.
func relTime(then, now time.Time) string {
	if then.IsZero() {
		return ""
	}
	return humanize.CustomRelTime(then, now, "ago", "from now", compactMagnitudes)
}
