package common

import "github.com/disgoorg/snowflake/v2"

// EndReason explains why the node stopped playing a track
type EndReason string

const (
	EndFinished   EndReason = "finished"
	EndLoadFailed EndReason = "loadFailed"
	EndStopped    EndReason = "stopped"
	EndReplaced   EndReason = "replaced"
	EndCleanup    EndReason = "cleanup"
)

// ShouldAdvance reports whether the session should move to the next track
func (r EndReason) ShouldAdvance() bool {
	return r == EndFinished || r == EndLoadFailed
}

// PlayerEvent is an asynchronous notification emitted by the audio node pool.
// It is either a TrackEndEvent or a VoiceClosedEvent.
type PlayerEvent interface {
	Guild() snowflake.ID
	playerEvent()
}

// TrackEndEvent is emitted when a track stops playing on a guild's player
type TrackEndEvent struct {
	GuildID snowflake.ID
	Track   Track
	PlayID  uint64 // play request the track was started by, zero if unknown
	Reason  EndReason
}

func (e TrackEndEvent) Guild() snowflake.ID { return e.GuildID }
func (TrackEndEvent) playerEvent()          {}

// VoiceClosedEvent is emitted when the node's voice websocket for a guild closes
type VoiceClosedEvent struct {
	GuildID  snowflake.ID
	Code     int
	Reason   string
	ByRemote bool
}

func (e VoiceClosedEvent) Guild() snowflake.ID { return e.GuildID }
func (VoiceClosedEvent) playerEvent()          {}

// Disconnected reports whether the close code means the bot left the channel
// (kicked, channel deleted, or session invalidated).
func (e VoiceClosedEvent) Disconnected() bool {
	return e.Code == 4014 || e.Code == 4006
}
