package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/latoulicious/Hokko/internal/logging"
	"github.com/latoulicious/Hokko/pkg/common"
	"github.com/latoulicious/Hokko/pkg/database"
	"github.com/latoulicious/Hokko/pkg/lavalink"
	"github.com/latoulicious/Hokko/pkg/player"
)

// Default file locations
const (
	DefaultConfigFile = "config.toml"
	DefaultEnvFile    = ".env"
)

var (
	ErrDiscordTokenNotSet = errors.New("DISCORD_TOKEN is not set")
	ErrInvalidGuildID     = errors.New("GUILD_ID is not a valid snowflake")
	ErrNoNodes            = errors.New("no lavalink nodes configured")
	ErrInvalidNode        = errors.New("invalid lavalink node")
)

type Config struct {
	// From the environment
	DiscordToken string       `koanf:"-"`
	GuildID      snowflake.ID `koanf:"-"` // Register commands to one guild when set

	Nodes    []lavalink.NodeConfig `koanf:"nodes"`
	Player   PlayerConfig          `koanf:"player"`
	Cache    database.Config       `koanf:"cache"`
	Presence PresenceConfig        `koanf:"presence"`
	Logging  logging.Config        `koanf:"logging"`
}

// PlayerConfig holds the playback session settings
type PlayerConfig struct {
	HistorySize     int           `koanf:"history_size"`
	PageSize        int           `koanf:"page_size"`
	BrowserTimeout  time.Duration `koanf:"browser_timeout"`
	NetworkTimeout  time.Duration `koanf:"network_timeout"`
	UITimeout       time.Duration `koanf:"ui_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	IdleSchedule    string        `koanf:"idle_schedule"`
	SearchPrefix    string        `koanf:"search_prefix"`
	YouTubeFallback bool          `koanf:"youtube_fallback"`
}

// Options converts the settings into player options
func (p PlayerConfig) Options() player.Options {
	return player.Options{
		HistorySize:    p.HistorySize,
		PageSize:       p.PageSize,
		BrowserTimeout: p.BrowserTimeout,
		NetworkTimeout: p.NetworkTimeout,
		UITimeout:      p.UITimeout,
	}
}

// PresenceConfig holds the bot status settings
type PresenceConfig struct {
	Schedule string `koanf:"schedule"`
}

// LoadOptions points Load at its input files
type LoadOptions struct {
	ConfigFile string
	EnvFile    string
}

// Default returns the configuration used when no config file sets a value
func Default() *Config {
	return &Config{
		Player: PlayerConfig{
			HistorySize:     common.DefaultHistorySize,
			PageSize:        player.DefaultPageSize,
			BrowserTimeout:  player.DefaultBrowserTimeout,
			NetworkTimeout:  player.DefaultNetworkTimeout,
			UITimeout:       player.DefaultUITimeout,
			IdleTimeout:     5 * time.Minute,
			IdleSchedule:    "@every 1m",
			SearchPrefix:    lavalink.DefaultSearchPrefix,
			YouTubeFallback: true,
		},
		Cache: *database.DefaultConfig(),
		Presence: PresenceConfig{
			Schedule: "@every 5m",
		},
		Logging: logging.DefaultConfig(),
	}
}

func LoadConfig(opts LoadOptions) (*Config, error) {
	if opts.EnvFile == "" {
		opts.EnvFile = DefaultEnvFile
	}
	if opts.ConfigFile == "" {
		opts.ConfigFile = DefaultConfigFile
	}

	// Load environment variables from .env file, the real environment may
	// already carry them
	if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", opts.EnvFile, err)
	}

	cfg := Default()

	k := koanf.New(".")
	if _, err := os.Stat(opts.ConfigFile); err == nil {
		if err := k.Load(file.Provider(opts.ConfigFile), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", opts.ConfigFile, err)
		}
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", opts.ConfigFile, err)
	}

	cfg.DiscordToken = strings.TrimSpace(os.Getenv("DISCORD_TOKEN"))
	if guild := strings.TrimSpace(os.Getenv("GUILD_ID")); guild != "" {
		id, err := snowflake.Parse(guild)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidGuildID, err)
		}
		cfg.GuildID = id
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the loaded configuration
func (c *Config) Validate() error {
	if c.DiscordToken == "" {
		return ErrDiscordTokenNotSet
	}
	if len(c.Nodes) == 0 {
		return ErrNoNodes
	}
	for i, node := range c.Nodes {
		if node.Host == "" || node.Port <= 0 || node.Port > 65535 {
			return fmt.Errorf("%w: nodes[%d] needs a host and a port", ErrInvalidNode, i)
		}
		if node.Label == "" {
			c.Nodes[i].Label = fmt.Sprintf("%s:%d", node.Host, node.Port)
		}
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("invalid cache configuration: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if c.Player.IdleTimeout <= 0 {
		return fmt.Errorf("invalid player idle_timeout %s", c.Player.IdleTimeout)
	}
	return nil
}
