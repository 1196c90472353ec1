package common

import (
	"fmt"
	"time"
)

// LiveLabel replaces the duration of live streams
const LiveLabel = "LIVESTREAM"

// FormatDuration formats a duration into a human-readable string
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}

	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60

	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}

	hours := minutes / 60
	minutes = minutes % 60

	return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
}

// TrackLength returns the display length of a track
func TrackLength(t Track) string {
	if t.Stream {
		return LiveLabel
	}
	return FormatDuration(t.Duration)
}

// TrimText shortens s to at most limit runes, ending with an ellipsis when cut
func TrimText(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}
