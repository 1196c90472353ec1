package main

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/latoulicious/Hokko/internal/commands"
)

// CommandsCmd manages the registered slash commands
func CommandsCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commands",
		Short: "Register, delete or check slash commands",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "register",
			Short: "Register every slash command",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withSlashAPI(flags, func(dg *discordgo.Session, guildID string, logger *zap.Logger) error {
					return commands.RegisterSlashCommands(dg, dg.State.User.ID, guildID, logger)
				})
			},
		},
		&cobra.Command{
			Use:   "delete [name]",
			Short: "Delete one slash command, or all of them when no name is given",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withSlashAPI(flags, func(dg *discordgo.Session, guildID string, logger *zap.Logger) error {
					if len(args) == 0 {
						return commands.DeleteAllSlashCommands(dg, dg.State.User.ID, guildID, logger)
					}
					_, err := commands.DeleteSpecificSlashCommand(dg, dg.State.User.ID, guildID, args[0], logger)
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "check",
			Short: "List registered slash commands and report missing ones",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withSlashAPI(flags, func(dg *discordgo.Session, guildID string, _ *zap.Logger) error {
					registered, missing, err := commands.CheckSlashCommands(dg, dg.State.User.ID, guildID)
					if err != nil {
						return err
					}
					out := cmd.OutOrStdout()
					fmt.Fprintf(out, "Registered (%d): %s\n", len(registered), strings.Join(registered, ", "))
					if len(missing) > 0 {
						fmt.Fprintf(out, "Missing (%d): %s\n", len(missing), strings.Join(missing, ", "))
					}
					return nil
				})
			},
		},
	)
	return cmd
}

// withSlashAPI opens a short lived Discord session for command management.
// Commands are scoped to GUILD_ID when it is set, global otherwise.
func withSlashAPI(flags *rootFlags, fn func(dg *discordgo.Session, guildID string, logger *zap.Logger) error) error {
	cfg, logger, err := setup(flags)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return fmt.Errorf("failed to create Discord session: %w", err)
	}
	if err := dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer dg.Close()

	guildID := ""
	if cfg.GuildID != 0 {
		guildID = cfg.GuildID.String()
	}
	return fn(dg, guildID, logger.With(zap.String("scope", scopeName(guildID))))
}

func scopeName(guildID string) string {
	if guildID == "" {
		return "global"
	}
	return "guild"
}

