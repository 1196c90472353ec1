package commands

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/latoulicious/Hokko/pkg/common"
	"github.com/latoulicious/Hokko/pkg/player"
)

// Embed colors
const (
	colorSuccess = 0xFFFFFF
	colorWarning = 0xFFFF00
	colorError   = 0xFF0000
	colorIdle    = 0x808080
)

const enqueueTitleLimit = 32

func embedReply(title, description string, color int) Reply {
	return Reply{Embed: &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
	}}
}

func errorReply(description string) Reply {
	return embedReply("❌ Error", description, colorError)
}

func cooldownReply(wait time.Duration) Reply {
	seconds := int(math.Ceil(wait.Seconds()))
	reply := embedReply("⏳ Slow down", fmt.Sprintf("Try again in %ds.", seconds), colorWarning)
	reply.Ephemeral = true
	return reply
}

// EnqueueEmbed describes what a play command added
func EnqueueEmbed(outcome player.EnqueueOutcome) *discordgo.MessageEmbed {
	track := outcome.Track

	embed := &discordgo.MessageEmbed{
		Color: colorSuccess,
		URL:   track.URI,
	}
	if track.ArtworkURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: track.ArtworkURL}
	}

	if outcome.Playlist != nil {
		embed.Title = common.TrimText("[Playlist] "+track.Title, enqueueTitleLimit)
		embed.Description = fmt.Sprintf("`%s | %d songs | %s`",
			track.Source, outcome.Count, common.FormatDuration(outcome.Playlist.TotalDuration()))
	} else {
		embed.Title = common.TrimText(track.Title, enqueueTitleLimit)
		if track.Stream {
			embed.Description = "`🔴 " + common.LiveLabel + "`"
		} else {
			embed.Description = fmt.Sprintf("`%s | %s | %s`", track.Source, track.Author, common.TrackLength(track))
		}
	}

	switch outcome.Kind {
	case player.OutcomePlayedNow:
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "▶️ Now playing"}
	case player.OutcomeQueued:
		embed.Footer = &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Added to queue at position %d", outcome.Position)}
	}
	return embed
}

// LoadFailedEmbed reports a query that produced nothing playable
func LoadFailedEmbed(query string, err error) *discordgo.MessageEmbed {
	var description string
	switch {
	case errors.Is(err, common.ErrTransport):
		description = "The audio node is unavailable, try again later."
	case errors.Is(err, common.ErrNotFound):
		description = fmt.Sprintf("Nothing found for `%s`.", common.TrimText(query, 100))
	default:
		description = fmt.Sprintf("Could not load `%s`.", common.TrimText(query, 100))
	}
	return &discordgo.MessageEmbed{
		Title:       "❌ Failed to load",
		Description: description,
		Color:       colorError,
	}
}
