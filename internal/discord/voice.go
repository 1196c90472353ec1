package discord

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	"github.com/latoulicious/Hokko/pkg/lavalink"
	"github.com/latoulicious/Hokko/pkg/player"
)

// VoiceJoiner sends gateway voice state updates (op 4)
type VoiceJoiner interface {
	ChannelVoiceJoinManual(gID, cID string, mute, deaf bool) error
}

// VoiceUpdater forwards voice server credentials to the audio node
type VoiceUpdater interface {
	UpdateVoice(ctx context.Context, guildID snowflake.ID, voice lavalink.VoiceState) error
}

// VoiceBridge joins voice channels on behalf of the audio node. Discord
// answers a join with a voice state and a voice server update; once both
// arrived they are handed to the node, which opens the actual connection.
type VoiceBridge struct {
	joiner  VoiceJoiner
	updater VoiceUpdater
	botID   snowflake.ID
	logger  *zap.Logger

	mu     sync.Mutex
	conns  map[snowflake.ID]*voiceConn
	onLost func(guildID snowflake.ID)
}

type voiceConn struct {
	bridge    *VoiceBridge
	guildID   snowflake.ID
	channelID snowflake.ID

	// guarded by bridge.mu
	sessionID string
	token     string
	endpoint  string
	forwarded bool

	ready     chan struct{}
	readyOnce sync.Once
}

// NewVoiceBridge creates a bridge for the bot user botID
func NewVoiceBridge(joiner VoiceJoiner, updater VoiceUpdater, botID snowflake.ID, logger *zap.Logger) *VoiceBridge {
	return &VoiceBridge{
		joiner:  joiner,
		updater: updater,
		botID:   botID,
		logger:  logger.Named("voice"),
		conns:   make(map[snowflake.ID]*voiceConn),
	}
}

// OnConnectionLost registers the callback for connections that Discord
// closed on its own, such as the bot being kicked from the channel.
func (b *VoiceBridge) OnConnectionLost(fn func(guildID snowflake.ID)) {
	b.mu.Lock()
	b.onLost = fn
	b.mu.Unlock()
}

// Connect implements player.Connector
func (b *VoiceBridge) Connect(ctx context.Context, guildID, channelID snowflake.ID) (player.Connection, error) {
	conn := &voiceConn{
		bridge:    b,
		guildID:   guildID,
		channelID: channelID,
		ready:     make(chan struct{}),
	}

	b.mu.Lock()
	b.conns[guildID] = conn
	b.mu.Unlock()

	if err := b.joiner.ChannelVoiceJoinManual(guildID.String(), channelID.String(), false, true); err != nil {
		b.forget(conn)
		return nil, fmt.Errorf("failed to send voice join: %w", err)
	}

	select {
	case <-conn.ready:
		b.logger.Info("Voice connection ready", zap.Stringer("guild_id", guildID), zap.Stringer("channel_id", channelID))
		return conn, nil
	case <-ctx.Done():
		b.forget(conn)
		if err := b.joiner.ChannelVoiceJoinManual(guildID.String(), "", false, false); err != nil {
			b.logger.Debug("Failed to leave voice channel", zap.Error(err))
		}
		return nil, fmt.Errorf("voice connection timed out: %w", ctx.Err())
	}
}

// VoiceStateUpdate handles the bot's own voice state changes
func (b *VoiceBridge) VoiceStateUpdate(_ *discordgo.Session, e *discordgo.VoiceStateUpdate) {
	if e.VoiceState == nil || e.UserID != b.botID.String() {
		return
	}
	guildID, err := snowflake.Parse(e.GuildID)
	if err != nil {
		return
	}

	b.mu.Lock()
	conn, ok := b.conns[guildID]
	if !ok {
		b.mu.Unlock()
		return
	}

	if e.ChannelID == "" {
		// only a connection that finished joining can be lost
		joined := conn.joined()
		delete(b.conns, guildID)
		onLost := b.onLost
		b.mu.Unlock()

		if joined && onLost != nil {
			b.logger.Warn("Removed from voice channel", zap.Stringer("guild_id", guildID))
			go onLost(guildID)
		}
		return
	}

	if channelID, err := snowflake.Parse(e.ChannelID); err == nil {
		conn.channelID = channelID
	}
	if conn.sessionID != e.SessionID {
		conn.sessionID = e.SessionID
		conn.forwarded = false
	}
	voice, send := conn.pendingLocked()
	b.mu.Unlock()

	if send {
		b.forward(conn, voice)
	}
}

// VoiceServerUpdate handles the voice server assigned to the bot
func (b *VoiceBridge) VoiceServerUpdate(_ *discordgo.Session, e *discordgo.VoiceServerUpdate) {
	guildID, err := snowflake.Parse(e.GuildID)
	if err != nil {
		return
	}

	b.mu.Lock()
	conn, ok := b.conns[guildID]
	if !ok {
		b.mu.Unlock()
		return
	}
	conn.token = e.Token
	conn.endpoint = e.Endpoint
	conn.forwarded = false
	voice, send := conn.pendingLocked()
	b.mu.Unlock()

	if send {
		b.forward(conn, voice)
	}
}

func (b *VoiceBridge) forward(conn *voiceConn, voice lavalink.VoiceState) {
	ctx, cancel := context.WithTimeout(context.Background(), player.DefaultNetworkTimeout)
	defer cancel()

	if err := b.updater.UpdateVoice(ctx, conn.guildID, voice); err != nil {
		b.logger.Warn("Failed to forward voice server", zap.Stringer("guild_id", conn.guildID), zap.Error(err))
		return
	}
	conn.readyOnce.Do(func() { close(conn.ready) })
}

func (b *VoiceBridge) forget(conn *voiceConn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if current, ok := b.conns[conn.guildID]; ok && current == conn {
		delete(b.conns, conn.guildID)
	}
}

// pendingLocked returns the voice state to forward once every part is known
func (c *voiceConn) pendingLocked() (lavalink.VoiceState, bool) {
	voice := lavalink.VoiceState{
		Token:     c.token,
		Endpoint:  c.endpoint,
		SessionID: c.sessionID,
	}
	if c.forwarded || !voice.Complete() {
		return voice, false
	}
	c.forwarded = true
	return voice, true
}

func (c *voiceConn) joined() bool {
	select {
	case <-c.ready:
		return true
	default:
		return false
	}
}

// ChannelID implements player.Connection
func (c *voiceConn) ChannelID() snowflake.ID {
	c.bridge.mu.Lock()
	defer c.bridge.mu.Unlock()
	return c.channelID
}

// Disconnect implements player.Connection
func (c *voiceConn) Disconnect(context.Context) error {
	c.bridge.forget(c)
	if err := c.bridge.joiner.ChannelVoiceJoinManual(c.guildID.String(), "", false, false); err != nil {
		return fmt.Errorf("failed to leave voice channel: %w", err)
	}
	return nil
}
