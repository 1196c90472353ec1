package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/latoulicious/Hokko/internal/config"
	"github.com/latoulicious/Hokko/internal/logging"
)

type rootFlags struct {
	configFile string
	envFile    string
}

func main() {
	if err := RootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// RootCmd builds the hokko command tree. Running it without a subcommand starts the bot.
func RootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "hokko",
		Short:         "Discord music bot backed by Lavalink",
		Version:       appVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBot(cmd.Context(), flags)
		},
	}

	root.PersistentFlags().StringVarP(&flags.configFile, "config", "c", config.DefaultConfigFile, "path to the TOML config file")
	root.PersistentFlags().StringVar(&flags.envFile, "env", config.DefaultEnvFile, "path to the .env file")

	root.AddCommand(RunCmd(flags), CommandsCmd(flags))
	return root
}

// RunCmd starts the bot
func RunCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to Discord and serve music commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBot(cmd.Context(), flags)
		},
	}
}

// setup loads the configuration and builds the logger every subcommand uses
func setup(flags *rootFlags) (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(config.LoadOptions{
		ConfigFile: flags.configFile,
		EnvFile:    flags.envFile,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}

func appVersion() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok || bi.Main.Version == "" {
		return "unknown"
	}
	return bi.Main.Version
}
