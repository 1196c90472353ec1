package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	"github.com/latoulicious/Hokko/internal/discord"
	"github.com/latoulicious/Hokko/pkg/common"
	"github.com/latoulicious/Hokko/pkg/player"
)

// Command names
const (
	CommandPlay       = "play"
	CommandSkip       = "skip"
	CommandPrevious   = "previous"
	CommandPause      = "pause"
	CommandResume     = "resume"
	CommandStop       = "stop"
	CommandNowPlaying = "nowplaying"
	CommandQueue      = "queue"
	CommandHelp       = "help"
	CommandAbout      = "about"
)

// Queue subcommands
const (
	QueueShow  = "show"
	QueueClear = "clear"
)

// errNotPlayerMember is returned when the user is not in the bot's voice channel
var errNotPlayerMember = errors.New("you must be in the same voice channel as the bot")

// Player is the playback surface the music commands drive
type Player interface {
	Enqueue(ctx context.Context, req player.EnqueueRequest) (player.EnqueueOutcome, error)
	Skip(ctx context.Context, guildID, channelID snowflake.ID) (bool, error)
	Previous(ctx context.Context, guildID, channelID snowflake.ID) error
	TogglePause(ctx context.Context, guildID, channelID snowflake.ID) (bool, error)
	Resume(ctx context.Context, guildID, channelID snowflake.ID) error
	Stop(ctx context.Context, guildID, channelID snowflake.ID) error
	ClearQueue(ctx context.Context, guildID, channelID snowflake.ID) (int, error)
	NowPlaying(guildID snowflake.ID) (player.Snapshot, error)
	OpenQueueBrowser(guildID snowflake.ID) (*player.Browser, error)
	Control(ctx context.Context, guildID, channelID snowflake.ID, c player.Control) error
	Count() int
}

// VoiceLookup returns the voice channel a user is connected to in a guild
type VoiceLookup func(guildID, userID snowflake.ID) (snowflake.ID, error)

// Request is one invocation of a command or button
type Request struct {
	Name       string
	Subcommand string
	Query      string
	GuildID    snowflake.ID
	ChannelID  snowflake.ID
	UserID     snowflake.ID
}

// cooldownKey names the bucket a request draws from. Subcommands are
// throttled separately.
func (r Request) cooldownKey() string {
	if r.Subcommand == "" {
		return r.Name
	}
	return r.Name + " " + r.Subcommand
}

// Reply is what the interaction layer sends back
type Reply struct {
	Content    string
	Embed      *discordgo.MessageEmbed
	Components []discordgo.MessageComponent
	Ephemeral  bool
	Browser    *player.Browser // bind the sent message to this browser
}

// Music handles the music commands for every guild
type Music struct {
	player    Player
	voice     VoiceLookup
	cooldowns *Cooldowns
	logger    *zap.Logger
}

// NewMusic creates the music command handler. A nil cooldowns never throttles.
func NewMusic(p Player, voice VoiceLookup, cooldowns *Cooldowns, logger *zap.Logger) *Music {
	if cooldowns == nil {
		cooldowns = NewCooldowns(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Music{
		player:    p,
		voice:     voice,
		cooldowns: cooldowns,
		logger:    logger.Named("commands"),
	}
}

// Handle runs a slash command
func (m *Music) Handle(ctx context.Context, req Request) Reply {
	if ok, wait := m.cooldowns.Allow(req.cooldownKey(), req.GuildID); !ok {
		return cooldownReply(wait)
	}

	switch req.Name {
	case CommandPlay:
		return m.play(ctx, req)
	case CommandSkip:
		return m.control(ctx, req, m.skip)
	case CommandPrevious:
		return m.control(ctx, req, func(ctx context.Context, req Request) (Reply, error) {
			if err := m.player.Previous(ctx, req.GuildID, req.ChannelID); err != nil {
				return Reply{}, err
			}
			return embedReply("⏮️ Playing previous track", "", colorSuccess), nil
		})
	case CommandPause:
		return m.control(ctx, req, func(ctx context.Context, req Request) (Reply, error) {
			paused, err := m.player.TogglePause(ctx, req.GuildID, req.ChannelID)
			if err != nil {
				return Reply{}, err
			}
			if paused {
				return embedReply("⏸️ Paused", "", colorSuccess), nil
			}
			return embedReply("▶️ Resumed", "", colorSuccess), nil
		})
	case CommandResume:
		return m.control(ctx, req, func(ctx context.Context, req Request) (Reply, error) {
			if err := m.player.Resume(ctx, req.GuildID, req.ChannelID); err != nil {
				return Reply{}, err
			}
			return embedReply("▶️ Resumed", "", colorSuccess), nil
		})
	case CommandStop:
		return m.control(ctx, req, func(ctx context.Context, req Request) (Reply, error) {
			if err := m.player.Stop(ctx, req.GuildID, req.ChannelID); err != nil {
				return Reply{}, err
			}
			return embedReply("⏹️ Stopped", "Playback stopped and the queue was cleared.", colorSuccess), nil
		})
	case CommandNowPlaying:
		return m.nowPlaying(req)
	case CommandQueue:
		return m.queue(ctx, req)
	case CommandHelp:
		return Reply{Embed: HelpEmbed()}
	case CommandAbout:
		return Reply{Embed: AboutEmbed(m.player.Count())}
	default:
		return errorReply("Unknown command.")
	}
}

// controlCommands maps status display buttons to the command whose cooldown they share
var controlCommands = map[player.Control]string{
	player.ControlPrevious:    CommandPrevious,
	player.ControlPauseToggle: CommandPause,
	player.ControlNext:        CommandSkip,
	player.ControlStop:        CommandStop,
}

// Button runs a status display button. The display refreshes itself, so a
// reply is only returned when the press was rejected.
func (m *Music) Button(ctx context.Context, req Request, c player.Control) *Reply {
	if ok, wait := m.cooldowns.Allow(controlCommands[c], req.GuildID); !ok {
		reply := cooldownReply(wait)
		return &reply
	}

	if err := m.checkMember(req); err != nil {
		reply := m.errorReply(req, err)
		reply.Ephemeral = true
		return &reply
	}

	if err := m.player.Control(ctx, req.GuildID, req.ChannelID, c); err != nil {
		reply := m.errorReply(req, err)
		reply.Ephemeral = true
		return &reply
	}
	return nil
}

func (m *Music) play(ctx context.Context, req Request) Reply {
	if req.Query == "" {
		return errorReply("Please provide a URL or search query.")
	}

	voiceChannel, err := m.voice(req.GuildID, req.UserID)
	if err != nil {
		return m.errorReply(req, err)
	}
	if snap, err := m.player.NowPlaying(req.GuildID); err == nil && snap.VoiceChannel != 0 && snap.VoiceChannel != voiceChannel {
		return m.errorReply(req, errNotPlayerMember)
	}

	outcome, err := m.player.Enqueue(ctx, player.EnqueueRequest{
		GuildID:        req.GuildID,
		VoiceChannelID: voiceChannel,
		TextChannelID:  req.ChannelID,
		Query:          req.Query,
	})
	if err != nil {
		return m.errorReply(req, err)
	}

	if outcome.Kind == player.OutcomeLoadFailed {
		m.logger.Info("Query failed to load",
			zap.Stringer("guild_id", req.GuildID),
			zap.String("query", req.Query),
			zap.Error(outcome.Err),
		)
		return Reply{Embed: LoadFailedEmbed(req.Query, outcome.Err)}
	}
	return Reply{Embed: EnqueueEmbed(outcome)}
}

func (m *Music) skip(ctx context.Context, req Request) (Reply, error) {
	started, err := m.player.Skip(ctx, req.GuildID, req.ChannelID)
	if err != nil {
		return Reply{}, err
	}
	if !started {
		return embedReply("⏭️ Skipped", "That was the last song in the queue.", colorSuccess), nil
	}
	return embedReply("⏭️ Skipped", "", colorSuccess), nil
}

func (m *Music) nowPlaying(req Request) Reply {
	snap, err := m.player.NowPlaying(req.GuildID)
	if err != nil || snap.Current == nil {
		return Reply{Embed: &discordgo.MessageEmbed{
			Title:       "🎵 Now Playing",
			Description: "Nothing is currently playing",
			Color:       colorIdle,
			Footer:      &discordgo.MessageEmbedFooter{Text: "Use /play to start playing music"},
		}}
	}
	return Reply{Embed: player.StatusEmbed(snap)}
}

func (m *Music) queue(ctx context.Context, req Request) Reply {
	switch req.Subcommand {
	case QueueShow:
		b, err := m.player.OpenQueueBrowser(req.GuildID)
		if err != nil {
			reply := m.errorReply(req, err)
			reply.Ephemeral = true
			return reply
		}
		m.logger.Debug("Opened queue browser",
			zap.Stringer("guild_id", req.GuildID),
			zap.Int("tracks", b.Total()),
			zap.Int("pages", b.PageCount()))
		return Reply{
			Embed:      b.Embed(),
			Components: b.Components(),
			Ephemeral:  true,
			Browser:    b,
		}
	case QueueClear:
		return m.control(ctx, req, func(ctx context.Context, req Request) (Reply, error) {
			removed, err := m.player.ClearQueue(ctx, req.GuildID, req.ChannelID)
			if err != nil {
				return Reply{}, err
			}
			return embedReply("✅ Queue cleared", fmt.Sprintf("Removed %d songs from the queue.", removed), colorSuccess), nil
		})
	default:
		return errorReply("Unknown queue action.")
	}
}

// control runs fn after checking the user may control this guild's player
func (m *Music) control(ctx context.Context, req Request, fn func(context.Context, Request) (Reply, error)) Reply {
	if err := m.checkMember(req); err != nil {
		return m.errorReply(req, err)
	}

	reply, err := fn(ctx, req)
	if err != nil {
		return m.errorReply(req, err)
	}
	return reply
}

// checkMember requires the user to share the voice channel of an open session
func (m *Music) checkMember(req Request) error {
	snap, err := m.player.NowPlaying(req.GuildID)
	if err != nil {
		return err
	}

	channel, err := m.voice(req.GuildID, req.UserID)
	if err != nil {
		return err
	}
	if snap.VoiceChannel != 0 && snap.VoiceChannel != channel {
		return errNotPlayerMember
	}
	return nil
}

func (m *Music) errorReply(req Request, err error) Reply {
	switch {
	case errors.Is(err, discord.ErrNotInVoice):
		return errorReply("You must be in a voice channel to use this command.")
	case errors.Is(err, errNotPlayerMember):
		return errorReply("You must be in the same voice channel as the bot.")
	case errors.Is(err, common.ErrNoActiveSession):
		return embedReply("⚠️ Nothing is playing", "", colorWarning)
	case errors.Is(err, common.ErrNoPreviousTrack):
		return embedReply("⚠️ No previously played track", "", colorWarning)
	case errors.Is(err, common.ErrQueueEmpty):
		return embedReply("📭 No songs in queue", "", colorWarning)
	case errors.Is(err, common.ErrTransport):
		return errorReply("The audio node is unavailable, try again later.")
	case errors.Is(err, common.ErrConnectionLost):
		return errorReply("Lost the voice connection.")
	}

	m.logger.Error("Command failed",
		zap.String("command", req.Name),
		zap.Stringer("guild_id", req.GuildID),
		zap.Error(err),
	)
	return errorReply("Something went wrong.")
}
