package player

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"

	"github.com/latoulicious/Hokko/pkg/common"
)

// Resolver turns a search term or URL into tracks
type Resolver interface {
	Resolve(ctx context.Context, query string) (*common.LoadResult, error)
}

// NodePool is the audio node pool shared by every session
type NodePool interface {
	Resolver
	Play(ctx context.Context, guildID snowflake.ID, track common.Track, playID uint64) error
	Stop(ctx context.Context, guildID snowflake.ID) error
	Pause(ctx context.Context, guildID snowflake.ID, paused bool) error
	Destroy(ctx context.Context, guildID snowflake.ID) error
	Events() <-chan common.PlayerEvent
}

// Connection is an open voice connection owned by one session
type Connection interface {
	ChannelID() snowflake.ID
	Disconnect(ctx context.Context) error
}

// Connector opens voice connections
type Connector interface {
	Connect(ctx context.Context, guildID, channelID snowflake.ID) (Connection, error)
}

// Messenger posts, edits and deletes messages in text channels
type Messenger interface {
	Send(ctx context.Context, channelID snowflake.ID, msg *discordgo.MessageSend) (snowflake.ID, error)
	Edit(ctx context.Context, channelID, messageID snowflake.ID, msg *discordgo.MessageEdit) error
	Delete(ctx context.Context, channelID, messageID snowflake.ID) error
}

// Observer is notified about session lifecycle changes. Calls happen with
// the session lock held and must not call back into the session.
type Observer interface {
	TrackStarted(guildID snowflake.ID, track common.Track)
	PlaybackIdle(guildID snowflake.ID)
	SessionClosed(guildID snowflake.ID)
}

type nopObserver struct{}

func (nopObserver) TrackStarted(snowflake.ID, common.Track) {}
func (nopObserver) PlaybackIdle(snowflake.ID)               {}
func (nopObserver) SessionClosed(snowflake.ID)              {}
