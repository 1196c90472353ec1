package commands

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// CommandAPI manages application commands
type CommandAPI interface {
	ApplicationCommandCreate(appID string, guildID string, cmd *discordgo.ApplicationCommand, options ...discordgo.RequestOption) (*discordgo.ApplicationCommand, error)
	ApplicationCommands(appID, guildID string, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
	ApplicationCommandDelete(appID, guildID, cmdID string, options ...discordgo.RequestOption) error
}

// Definitions returns the slash commands the bot serves
func Definitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        CommandPlay,
			Description: "Add a song or playlist to the queue and play it",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "query",
					Description: "URL or search terms",
					Required:    true,
				},
			},
		},
		{
			Name:        CommandQueue,
			Description: "Manage the music queue",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        QueueShow,
					Description: "Show the upcoming songs",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        QueueClear,
					Description: "Clear the upcoming songs",
				},
			},
		},
		{
			Name:        CommandSkip,
			Description: "Skip the current song",
		},
		{
			Name:        CommandPrevious,
			Description: "Play the previous song",
		},
		{
			Name:        CommandStop,
			Description: "Stop playback and clear the queue",
		},
		{
			Name:        CommandPause,
			Description: "Pause or resume the current playback",
		},
		{
			Name:        CommandResume,
			Description: "Resume paused playback",
		},
		{
			Name:        CommandNowPlaying,
			Description: "Show what's currently playing",
		},
		{
			Name:        CommandHelp,
			Description: "Show help information",
		},
		{
			Name:        CommandAbout,
			Description: "Show bot information",
		},
	}
}

// RegisterSlashCommands registers every command. An empty guildID registers them globally.
func RegisterSlashCommands(api CommandAPI, appID, guildID string, logger *zap.Logger) error {
	logger.Info("Registering slash commands", zap.String("guild_id", guildID))

	for _, cmd := range Definitions() {
		if _, err := api.ApplicationCommandCreate(appID, guildID, cmd); err != nil {
			return fmt.Errorf("failed to create command %s: %w", cmd.Name, err)
		}
		logger.Debug("Registered command", zap.String("command", cmd.Name))
	}

	logger.Info("All slash commands registered successfully")
	return nil
}

// DeleteAllSlashCommands deletes every registered command
func DeleteAllSlashCommands(api CommandAPI, appID, guildID string, logger *zap.Logger) error {
	registered, err := api.ApplicationCommands(appID, guildID)
	if err != nil {
		return fmt.Errorf("failed to fetch commands: %w", err)
	}

	for _, cmd := range registered {
		if err := api.ApplicationCommandDelete(appID, guildID, cmd.ID); err != nil {
			return fmt.Errorf("failed to delete command %s: %w", cmd.Name, err)
		}
		logger.Info("Deleted command", zap.String("command", cmd.Name))
	}
	return nil
}

// DeleteSpecificSlashCommand deletes a command by name. It reports whether the command existed.
func DeleteSpecificSlashCommand(api CommandAPI, appID, guildID, name string, logger *zap.Logger) (bool, error) {
	registered, err := api.ApplicationCommands(appID, guildID)
	if err != nil {
		return false, fmt.Errorf("failed to fetch commands: %w", err)
	}

	for _, cmd := range registered {
		if cmd.Name != name {
			continue
		}
		if err := api.ApplicationCommandDelete(appID, guildID, cmd.ID); err != nil {
			return false, fmt.Errorf("failed to delete command %s: %w", cmd.Name, err)
		}
		logger.Info("Deleted command", zap.String("command", cmd.Name))
		return true, nil
	}

	logger.Warn("Command not found", zap.String("command", name))
	return false, nil
}

// CheckSlashCommands returns the names of registered commands and of
// defined commands that are missing.
func CheckSlashCommands(api CommandAPI, appID, guildID string) (registered, missing []string, err error) {
	cmds, err := api.ApplicationCommands(appID, guildID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch commands: %w", err)
	}

	seen := make(map[string]bool, len(cmds))
	for _, cmd := range cmds {
		registered = append(registered, cmd.Name)
		seen[cmd.Name] = true
	}
	for _, cmd := range Definitions() {
		if !seen[cmd.Name] {
			missing = append(missing, cmd.Name)
		}
	}
	return registered, missing, nil
}
