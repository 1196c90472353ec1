package common

import (
	"time"

	"github.com/samber/lo"
)

// Track is an immutable reference to one playable item as resolved by an audio node
type Track struct {
	Encoded    string        `json:"encoded"`    // Node-specific playback handle
	Identifier string        `json:"identifier"` // Source identifier (video id, url, ...)
	Title      string        `json:"title"`
	Author     string        `json:"author"`
	URI        string        `json:"uri"`
	Duration   time.Duration `json:"duration"`
	Stream     bool          `json:"stream"` // Live stream, Duration is meaningless
	Source     string        `json:"source"` // Provider tag, e.g. "youtube"
	ArtworkURL string        `json:"artwork_url,omitempty"`
}

// Same reports whether t and other refer to the same playable item
func (t Track) Same(other Track) bool {
	switch {
	case t.Encoded != "" && other.Encoded != "":
		return t.Encoded == other.Encoded
	case t.Identifier != "" && other.Identifier != "":
		return t.Identifier == other.Identifier
	default:
		return t.URI == other.URI
	}
}

// Playlist is an ordered set of tracks resolved from one query
type Playlist struct {
	Name   string  `json:"name"`
	Tracks []Track `json:"tracks"`
}

// TotalDuration sums the duration of every non-stream track
func (p Playlist) TotalDuration() time.Duration {
	return lo.SumBy(p.Tracks, func(t Track) time.Duration {
		if t.Stream {
			return 0
		}
		return t.Duration
	})
}

// LoadType describes what a resolve call produced
type LoadType string

const (
	LoadTypeTrack    LoadType = "track"
	LoadTypePlaylist LoadType = "playlist"
	LoadTypeSearch   LoadType = "search"
	LoadTypeEmpty    LoadType = "empty"
	LoadTypeError    LoadType = "error"
)

// LoadResult is the outcome of resolving a search term or URL
type LoadResult struct {
	Type     LoadType  `json:"type"`
	Track    *Track    `json:"track,omitempty"`
	Playlist *Playlist `json:"playlist,omitempty"`
	Results  []Track   `json:"results,omitempty"`
	Message  string    `json:"message,omitempty"` // Node error message for LoadTypeError
}

// Tracks returns the tracks a resolve result contributes to a queue:
// every playlist track, the single track, or the first search hit.
func (r *LoadResult) Tracks() []Track {
	if r == nil {
		return nil
	}

	switch r.Type {
	case LoadTypeTrack:
		if r.Track != nil {
			return []Track{*r.Track}
		}
	case LoadTypePlaylist:
		if r.Playlist != nil {
			out := make([]Track, len(r.Playlist.Tracks))
			copy(out, r.Playlist.Tracks)
			return out
		}
	case LoadTypeSearch:
		if len(r.Results) > 0 {
			return []Track{r.Results[0]}
		}
	}
	return nil
}

// IsEmpty reports whether the result contributes nothing playable
func (r *LoadResult) IsEmpty() bool {
	return len(r.Tracks()) == 0
}
