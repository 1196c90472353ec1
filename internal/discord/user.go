package discord

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
)

// ErrNotInVoice is returned when the invoking user is not in a voice channel
var ErrNotInVoice = errors.New("you must be in a voice channel to play music")

// UserVoiceChannel finds the voice channel a user is connected to in a guild
func UserVoiceChannel(state *discordgo.State, guildID, userID string) (snowflake.ID, error) {
	guild, err := state.Guild(guildID)
	if err != nil {
		return 0, fmt.Errorf("could not find guild: %w", err)
	}

	var userChannelID string
	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID {
			userChannelID = vs.ChannelID
			break
		}
	}

	if userChannelID == "" {
		return 0, ErrNotInVoice
	}

	id, err := snowflake.Parse(userChannelID)
	if err != nil {
		return 0, fmt.Errorf("invalid channel id %q: %w", userChannelID, err)
	}
	return id, nil
}
