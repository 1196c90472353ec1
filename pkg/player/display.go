package player

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	"github.com/latoulicious/Hokko/pkg/common"
)

const titleLimit = 32

// Embed colors
const (
	colorPlaying = 0x00ff00
	colorPaused  = 0xffa500
	colorIdle    = 0x808080
)

// StatusDisplay owns the single message mirroring a session's state.
// Every call is best effort: failures are logged and never returned.
type StatusDisplay struct {
	messenger Messenger
	logger    *zap.Logger
	timeout   time.Duration

	channelID snowflake.ID
	messageID snowflake.ID
}

func newStatusDisplay(messenger Messenger, timeout time.Duration, logger *zap.Logger) *StatusDisplay {
	return &StatusDisplay{
		messenger: messenger,
		logger:    logger,
		timeout:   timeout,
	}
}

// Render edits the display in place, or posts a new one when none exists,
// the channel moved, or the edit failed.
func (d *StatusDisplay) Render(ctx context.Context, channelID snowflake.ID, snap Snapshot) {
	if channelID == 0 {
		channelID = d.channelID
	}
	if channelID == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	embed := StatusEmbed(snap)
	components := StatusComponents(snap)

	if d.messageID != 0 {
		if d.channelID == channelID {
			err := d.messenger.Edit(ctx, d.channelID, d.messageID, &discordgo.MessageEdit{
				Embeds:     &[]*discordgo.MessageEmbed{embed},
				Components: &components,
			})
			if err == nil {
				return
			}
			d.logger.Debug("Failed to edit status message, posting a new one", zap.Error(err))
			if !errors.Is(err, common.ErrMessageGone) {
				d.delete(ctx)
			}
		} else {
			d.delete(ctx)
		}
		d.messageID = 0
	}

	id, err := d.messenger.Send(ctx, channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: components,
	})
	if err != nil {
		d.logger.Warn("Failed to post status message", zap.Stringer("channel_id", channelID), zap.Error(err))
		return
	}
	d.channelID, d.messageID = channelID, id
}

// Delete removes the display message. A message that is already gone is fine.
func (d *StatusDisplay) Delete(ctx context.Context) {
	if d.messageID == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	d.delete(ctx)
	d.messageID = 0
}

func (d *StatusDisplay) delete(ctx context.Context) {
	err := d.messenger.Delete(ctx, d.channelID, d.messageID)
	if err != nil && !errors.Is(err, common.ErrMessageGone) {
		d.logger.Debug("Failed to delete status message", zap.Error(err))
	}
}

// StatusEmbed renders the now playing embed for a snapshot
func StatusEmbed(snap Snapshot) *discordgo.MessageEmbed {
	if snap.Current == nil {
		return &discordgo.MessageEmbed{
			Title:       "🎵 Now Playing",
			Description: "Nothing is playing",
			Color:       colorIdle,
			Footer: &discordgo.MessageEmbedFooter{
				Text: "Use /play to start playing music",
			},
		}
	}

	track := snap.Current
	title, color := "🎶 Now Playing", colorPlaying
	if snap.Paused {
		title, color = "⏸️ Paused", colorPaused
	}

	description := fmt.Sprintf("**%s**", common.TrimText(track.Title, titleLimit))
	if track.URI != "" {
		description = fmt.Sprintf("**[%s](%s)**", common.TrimText(track.Title, titleLimit), track.URI)
	}

	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "Source",
				Value:  fallback(track.Source, "unknown"),
				Inline: true,
			},
			{
				Name:   "Author",
				Value:  fallback(track.Author, "unknown"),
				Inline: true,
			},
			{
				Name:   "Duration",
				Value:  common.TrackLength(*track),
				Inline: true,
			},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("%d in queue", len(snap.Upcoming)),
		},
	}

	if len(snap.Upcoming) > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Up Next",
			Value:  common.TrimText(snap.Upcoming[0].Title, titleLimit*2),
			Inline: false,
		})
	}

	if track.ArtworkURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: track.ArtworkURL}
	}

	return embed
}

// StatusComponents renders the playback buttons. The idle display has none.
func StatusComponents(snap Snapshot) []discordgo.MessageComponent {
	if snap.Current == nil {
		return []discordgo.MessageComponent{}
	}

	pauseEmoji := "⏸️"
	if snap.Paused {
		pauseEmoji = "▶️"
	}

	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					CustomID: PreviousButtonID,
					Style:    discordgo.SecondaryButton,
					Emoji:    &discordgo.ComponentEmoji{Name: "⏮️"},
					Disabled: len(snap.History) == 0,
				},
				discordgo.Button{
					CustomID: PauseButtonID,
					Style:    discordgo.PrimaryButton,
					Emoji:    &discordgo.ComponentEmoji{Name: pauseEmoji},
				},
				discordgo.Button{
					CustomID: NextButtonID,
					Style:    discordgo.SecondaryButton,
					Emoji:    &discordgo.ComponentEmoji{Name: "⏭️"},
				},
				discordgo.Button{
					CustomID: StopButtonID,
					Style:    discordgo.DangerButton,
					Emoji:    &discordgo.ComponentEmoji{Name: "⏹️"},
				},
			},
		},
	}
}

func fallback(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
