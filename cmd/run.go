package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	"github.com/latoulicious/Hokko/internal/commands"
	"github.com/latoulicious/Hokko/internal/discord"
	"github.com/latoulicious/Hokko/internal/handlers"
	"github.com/latoulicious/Hokko/internal/presence"
	"github.com/latoulicious/Hokko/pkg/cron"
	"github.com/latoulicious/Hokko/pkg/database"
	"github.com/latoulicious/Hokko/pkg/lavalink"
	"github.com/latoulicious/Hokko/pkg/player"
	"github.com/latoulicious/Hokko/pkg/youtube"
)

const (
	cooldownPruneSchedule = "@every 10m"
	shutdownTimeout       = 10 * time.Second
)

func runBot(parent context.Context, flags *rootFlags) error {
	cfg, logger, err := setup(flags)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Create a new Discord session using the provided token
	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return fmt.Errorf("failed to create Discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

	// The bot user id is needed before the node pool can connect
	botUser, err := dg.User("@me")
	if err != nil {
		return fmt.Errorf("failed to fetch bot user: %w", err)
	}
	botID, err := snowflake.Parse(botUser.ID)
	if err != nil {
		return fmt.Errorf("invalid bot user id: %w", err)
	}

	pool := lavalink.NewPool(cfg.Nodes, botID, cfg.Player.SearchPrefix, logger)
	pool.Start(ctx)

	var resolver player.Resolver = pool
	if cfg.Player.YouTubeFallback {
		resolver = youtube.NewFallbackResolver(resolver, nil, logger)
	}

	cache, err := database.NewDatabase(&cfg.Cache, logger)
	if err != nil {
		return fmt.Errorf("failed to open resolve cache: %w", err)
	}
	defer cache.Close()
	resolver = database.NewCachedResolver(resolver, cache, cfg.Cache.TTL, logger)

	voice := discord.NewVoiceBridge(dg, pool, botID, logger)
	presenceManager := presence.NewPresenceManager(dg, presence.StateStats(dg.State), logger)

	manager := player.NewManager(player.Config{
		Pool:      pool,
		Resolver:  resolver,
		Connector: voice,
		Messenger: discord.NewMessenger(dg),
		Observer:  presenceManager,
		Logger:    logger,
		Options:   cfg.Player.Options(),
	})
	voice.OnConnectionLost(func(guildID snowflake.ID) {
		manager.ConnectionLost(context.Background(), guildID)
	})

	cooldowns := commands.NewCooldowns(commands.DefaultLimits)
	music := commands.NewMusic(manager, stateVoiceLookup(dg.State), cooldowns, logger)
	router := handlers.NewRouter(dg, music, manager.Browsers(), logger)

	dg.AddHandler(router.InteractionCreate)
	dg.AddHandler(voice.VoiceStateUpdate)
	dg.AddHandler(voice.VoiceServerUpdate)

	scheduler, err := newScheduler(cfg.Player.IdleSchedule, cfg.Player.IdleTimeout, cfg.Cache.CleanupSchedule, cfg.Presence.Schedule,
		manager, cache, cooldowns, presenceManager, logger)
	if err != nil {
		return err
	}

	// Open a websocket connection to Discord and begin listening.
	if err := dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer dg.Close()

	go manager.Run(ctx)
	go presenceManager.Run(ctx)
	scheduler.Start(ctx)
	// entries may have expired while the bot was offline
	go scheduler.RunNow("cache_cleanup")

	logger.Info("Bot is running. Press CTRL-C to exit.",
		zap.String("user", botUser.Username),
		zap.Int("nodes", len(cfg.Nodes)),
	)
	<-ctx.Done()

	logger.Info("Shutting down")
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	manager.Shutdown(shutdownCtx)
	return nil
}

func newScheduler(
	idleSchedule string,
	idleTimeout time.Duration,
	cleanupSchedule string,
	presenceSchedule string,
	manager *player.Manager,
	cache *database.Database,
	cooldowns *commands.Cooldowns,
	presenceManager *presence.PresenceManager,
	logger *zap.Logger,
) (*cron.Scheduler, error) {
	scheduler := cron.NewScheduler(logger)

	jobs := []struct {
		name     string
		schedule string
		fn       cron.JobFunc
	}{
		{
			name:     "idle_sweep",
			schedule: idleSchedule,
			fn: func(ctx context.Context) error {
				if n := manager.SweepIdle(ctx, idleTimeout); n > 0 {
					logger.Info("Stopped idle sessions", zap.Int("count", n))
				}
				return nil
			},
		},
		{
			name:     "cache_cleanup",
			schedule: cleanupSchedule,
			fn: func(ctx context.Context) error {
				removed, err := cache.CleanExpiredCache(ctx)
				if err != nil {
					return err
				}
				stats, err := cache.GetCacheStats(ctx)
				if err != nil {
					return err
				}
				logger.Debug("Cleaned resolve cache", zap.Int64("removed", removed), zap.Int("live", stats.Live))
				return nil
			},
		},
		{
			name:     "cooldown_prune",
			schedule: cooldownPruneSchedule,
			fn: func(context.Context) error {
				cooldowns.Prune()
				return nil
			},
		},
		{
			name:     "presence_refresh",
			schedule: presenceSchedule,
			fn: func(context.Context) error {
				presenceManager.Refresh()
				return nil
			},
		},
	}

	for _, j := range jobs {
		if err := scheduler.Add(j.name, j.schedule, j.fn); err != nil {
			return nil, fmt.Errorf("failed to schedule %s: %w", j.name, err)
		}
	}
	return scheduler, nil
}

func stateVoiceLookup(state *discordgo.State) commands.VoiceLookup {
	return func(guildID, userID snowflake.ID) (snowflake.ID, error) {
		return discord.UserVoiceChannel(state, guildID.String(), userID.String())
	}
}
