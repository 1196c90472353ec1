package presence

import (
	"context"
	"strconv"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	"github.com/latoulicious/Hokko/pkg/common"
)

// Presence kinds
const (
	KindDefault = "default"
	KindMusic   = "music"
)

// StatusUpdater sends presence updates over the gateway
type StatusUpdater interface {
	UpdateStatusComplex(usd discordgo.UpdateStatusData) (err error)
}

// GuildStats reports how many servers and channels the bot can see
type GuildStats func() (guilds, channels int)

// StateStats counts guilds and channels from the session state cache
func StateStats(state *discordgo.State) GuildStats {
	return func() (int, int) {
		state.RLock()
		defer state.RUnlock()

		channels := 0
		for _, guild := range state.Guilds {
			if guild != nil {
				channels += len(guild.Channels)
			}
		}
		return len(state.Guilds), channels
	}
}

// PresenceManager mirrors playback into the bot's status. It implements
// player.Observer; observer calls only record state and wake the update loop.
type PresenceManager struct {
	updater StatusUpdater
	stats   GuildStats
	logger  *zap.Logger

	mu      sync.Mutex
	playing map[snowflake.ID]string
	current string
	wake    chan struct{}
}

// NewPresenceManager creates a new presence manager
func NewPresenceManager(updater StatusUpdater, stats GuildStats, logger *zap.Logger) *PresenceManager {
	return &PresenceManager{
		updater: updater,
		stats:   stats,
		logger:  logger.Named("presence"),
		playing: make(map[snowflake.ID]string),
		wake:    make(chan struct{}, 1),
	}
}

// TrackStarted implements player.Observer
func (pm *PresenceManager) TrackStarted(guildID snowflake.ID, track common.Track) {
	pm.mu.Lock()
	pm.playing[guildID] = track.Title
	pm.mu.Unlock()
	pm.signal()
}

// PlaybackIdle implements player.Observer
func (pm *PresenceManager) PlaybackIdle(guildID snowflake.ID) {
	pm.forget(guildID)
}

// SessionClosed implements player.Observer
func (pm *PresenceManager) SessionClosed(guildID snowflake.ID) {
	pm.forget(guildID)
}

func (pm *PresenceManager) forget(guildID snowflake.ID) {
	pm.mu.Lock()
	delete(pm.playing, guildID)
	pm.mu.Unlock()
	pm.signal()
}

func (pm *PresenceManager) signal() {
	select {
	case pm.wake <- struct{}{}:
	default:
	}
}

// Run applies presence changes until ctx is cancelled
func (pm *PresenceManager) Run(ctx context.Context) {
	pm.Refresh()
	for {
		select {
		case <-ctx.Done():
			return
		case <-pm.wake:
			pm.Refresh()
		}
	}
}

// Refresh pushes the presence for the current state
func (pm *PresenceManager) Refresh() {
	data, kind := pm.build()

	if err := pm.updater.UpdateStatusComplex(data); err != nil {
		pm.logger.Warn("Failed to update bot presence", zap.Error(err))
		return
	}

	pm.mu.Lock()
	previous := pm.current
	pm.current = kind
	pm.mu.Unlock()

	if previous != kind {
		pm.logger.Debug("Presence switched", zap.String("from", previous), zap.String("to", kind))
	}
}

func (pm *PresenceManager) build() (discordgo.UpdateStatusData, string) {
	pm.mu.Lock()
	var title string
	for _, t := range pm.playing {
		title = t
	}
	active := len(pm.playing)
	pm.mu.Unlock()

	switch {
	case active == 1:
		return musicPresence(common.TrimText(title, 64)), KindMusic
	case active > 1:
		return musicPresence("music in " + strconv.Itoa(active) + " servers"), KindMusic
	}

	guilds, channels := pm.stats()
	return discordgo.UpdateStatusData{
		Status: "online",
		Activities: []*discordgo.Activity{
			{
				Name:  strconv.Itoa(channels) + " channels",
				Type:  discordgo.ActivityTypeWatching,
				State: "in " + strconv.Itoa(guilds) + " servers",
			},
		},
	}, KindDefault
}

func musicPresence(state string) discordgo.UpdateStatusData {
	return discordgo.UpdateStatusData{
		Status: "online",
		Activities: []*discordgo.Activity{
			{
				Name:  "to",
				Type:  discordgo.ActivityTypeListening,
				State: state,
			},
		},
	}
}
