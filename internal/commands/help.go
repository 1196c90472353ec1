package commands

import (
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// HelpEmbed lists every command with its description
func HelpEmbed() *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "Hokko",
		Description: "Here are all the available commands for the bot:",
		Color:       0x00ff00,
		Timestamp:   time.Now().Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Hokko | Created by latoulicious",
		},
		Fields: []*discordgo.MessageEmbedField{
			{
				Name: "Music Commands",
				Value: strings.Join([]string{
					"• `/play <query>` - Play a URL or search result, playlists are queued whole",
					"• `/nowplaying` - Show the currently playing track",
					"• `/queue show` - Browse the upcoming songs",
					"• `/queue clear` - Remove every upcoming song",
					"• `/pause` - Pause or resume playback",
					"• `/resume` - Resume paused playback",
					"• `/skip` - Skip the currently playing track",
					"• `/previous` - Replay the previously played track",
					"• `/stop` - Stop playback and disconnect from voice channel",
				}, "\n"),
				Inline: false,
			},
			{
				Name: "ℹInformation Commands",
				Value: strings.Join([]string{
					"• `/about` - Show bot info, uptime, and stats",
					"• `/help` - Show this help message",
				}, "\n"),
				Inline: false,
			},
			{
				Name: "💡 Tips",
				Value: strings.Join([]string{
					"• Join a voice channel **before** using music commands",
					"• The buttons under the player work like the commands",
					"• Only listeners in the bot's voice channel can control playback",
				}, "\n"),
				Inline: false,
			},
		},
	}
}
