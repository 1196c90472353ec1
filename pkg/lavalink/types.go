package lavalink

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/latoulicious/Hokko/pkg/common"
)

// NodeConfig holds the connection settings for one Lavalink node
type NodeConfig struct {
	Label    string `koanf:"label"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Password string `koanf:"password"`
	Secure   bool   `koanf:"secure"`
}

func (c NodeConfig) httpBase() string {
	scheme := "http"
	if c.Secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
}

func (c NodeConfig) wsURL() string {
	scheme := "ws"
	if c.Secure {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%d/v4/websocket", scheme, c.Host, c.Port)
}

// VoiceState is the voice server information a node needs to join a channel
type VoiceState struct {
	Token     string `json:"token"`
	Endpoint  string `json:"endpoint"`
	SessionID string `json:"sessionId"`
}

// Complete reports whether every field required by the node is present
func (v VoiceState) Complete() bool {
	return v.Token != "" && v.Endpoint != "" && v.SessionID != ""
}

type trackInfo struct {
	Identifier string  `json:"identifier"`
	IsSeekable bool    `json:"isSeekable"`
	Author     string  `json:"author"`
	Length     int64   `json:"length"`
	IsStream   bool    `json:"isStream"`
	Position   int64   `json:"position"`
	Title      string  `json:"title"`
	URI        *string `json:"uri"`
	ArtworkURL *string `json:"artworkUrl"`
	SourceName string  `json:"sourceName"`
}

type wireTrack struct {
	Encoded  string       `json:"encoded"`
	Info     trackInfo    `json:"info"`
	UserData playUserData `json:"userData"`
}

// playUserData rides along with a play request and comes back on its events
type playUserData struct {
	PlayID uint64 `json:"playId,omitempty"`
}

func (t wireTrack) toTrack() common.Track {
	track := common.Track{
		Encoded:    t.Encoded,
		Identifier: t.Info.Identifier,
		Title:      t.Info.Title,
		Author:     t.Info.Author,
		Duration:   time.Duration(t.Info.Length) * time.Millisecond,
		Stream:     t.Info.IsStream,
		Source:     t.Info.SourceName,
	}
	if t.Info.URI != nil {
		track.URI = *t.Info.URI
	}
	if t.Info.ArtworkURL != nil {
		track.ArtworkURL = *t.Info.ArtworkURL
	}
	return track
}

func toTracks(in []wireTrack) []common.Track {
	out := make([]common.Track, 0, len(in))
	for _, t := range in {
		out = append(out, t.toTrack())
	}
	return out
}

type exception struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Cause    string `json:"cause"`
}

type playlistData struct {
	Info struct {
		Name          string `json:"name"`
		SelectedTrack int    `json:"selectedTrack"`
	} `json:"info"`
	Tracks []wireTrack `json:"tracks"`
}

type loadResponse struct {
	LoadType string          `json:"loadType"`
	Data     json.RawMessage `json:"data"`
}

func (r loadResponse) toResult() (*common.LoadResult, error) {
	result := &common.LoadResult{Type: common.LoadType(r.LoadType)}

	switch result.Type {
	case common.LoadTypeTrack:
		var t wireTrack
		if err := json.Unmarshal(r.Data, &t); err != nil {
			return nil, fmt.Errorf("failed to decode track: %w", err)
		}
		track := t.toTrack()
		result.Track = &track
	case common.LoadTypePlaylist:
		var p playlistData
		if err := json.Unmarshal(r.Data, &p); err != nil {
			return nil, fmt.Errorf("failed to decode playlist: %w", err)
		}
		result.Playlist = &common.Playlist{Name: p.Info.Name, Tracks: toTracks(p.Tracks)}
	case common.LoadTypeSearch:
		var ts []wireTrack
		if err := json.Unmarshal(r.Data, &ts); err != nil {
			return nil, fmt.Errorf("failed to decode search results: %w", err)
		}
		result.Results = toTracks(ts)
	case common.LoadTypeEmpty:
	case common.LoadTypeError:
		var e exception
		if err := json.Unmarshal(r.Data, &e); err != nil {
			return nil, fmt.Errorf("failed to decode exception: %w", err)
		}
		result.Message = e.Message
	default:
		return nil, fmt.Errorf("unknown load type %q", r.LoadType)
	}

	return result, nil
}

// errorResponse is the body Lavalink returns with non-2xx REST responses
type errorResponse struct {
	Status  int    `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Path    string `json:"path"`
}

// inbound is every op the node sends over the websocket, flattened
type inbound struct {
	Op string `json:"op"`

	// ready
	SessionID string `json:"sessionId"`
	Resumed   bool   `json:"resumed"`

	// event, playerUpdate
	GuildID   string     `json:"guildId"`
	Type      string     `json:"type"`
	Track     *wireTrack `json:"track"`
	Reason    string     `json:"reason"`
	Exception *exception `json:"exception"`
	Threshold int64      `json:"thresholdMs"`
	Code      int        `json:"code"`
	ByRemote  bool       `json:"byRemote"`

	// stats
	Players        int   `json:"players"`
	PlayingPlayers int   `json:"playingPlayers"`
	Uptime         int64 `json:"uptime"`
}

type trackUpdate struct {
	Encoded    string        `json:"encoded,omitempty"`
	Identifier string        `json:"identifier,omitempty"`
	UserData   *playUserData `json:"userData,omitempty"`
}

// stopTrack serializes to {"encoded":null}
type stopTrack struct {
	Encoded *string `json:"encoded"`
}

type playerUpdate struct {
	Track  any         `json:"track,omitempty"`
	Paused *bool       `json:"paused,omitempty"`
	Voice  *VoiceState `json:"voice,omitempty"`
}

type sessionUpdate struct {
	Resuming bool `json:"resuming"`
	Timeout  int  `json:"timeout"`
}
