package player

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/latoulicious/Hokko/pkg/common"
)

// Config wires a Manager to its collaborators
type Config struct {
	Pool      NodePool
	Resolver  Resolver // defaults to Pool
	Connector Connector
	Messenger Messenger
	Observer  Observer // optional
	Logger    *zap.Logger
	Options   Options
}

// EnqueueRequest is a play command from the command layer
type EnqueueRequest struct {
	GuildID        snowflake.ID
	VoiceChannelID snowflake.ID
	TextChannelID  snowflake.ID
	Query          string
}

// Manager owns one session per guild. Its lock only guards the session map;
// sessions for different guilds never wait on each other.
type Manager struct {
	pool      NodePool
	resolver  Resolver
	connector Connector
	messenger Messenger
	observer  Observer
	logger    *zap.Logger
	opts      Options
	browsers  *BrowserRegistry

	mu       sync.RWMutex
	sessions map[snowflake.ID]*Session
}

// NewManager creates a manager with no sessions
func NewManager(cfg Config) *Manager {
	m := &Manager{
		pool:      cfg.Pool,
		resolver:  cfg.Resolver,
		connector: cfg.Connector,
		messenger: cfg.Messenger,
		observer:  cfg.Observer,
		logger:    cfg.Logger,
		opts:      cfg.Options.withDefaults(),
		browsers:  NewBrowserRegistry(),
		sessions:  make(map[snowflake.ID]*Session),
	}
	if m.resolver == nil {
		m.resolver = cfg.Pool
	}
	if m.observer == nil {
		m.observer = nopObserver{}
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	m.logger = m.logger.Named("player")
	return m
}

// Browsers returns the registry of open queue browsers
func (m *Manager) Browsers() *BrowserRegistry {
	return m.browsers
}

// Session returns the open session for a guild
func (m *Manager) Session(guildID snowflake.ID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[guildID]
	return s, ok
}

// Count returns the number of open sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Enqueue resolves and queues a query, creating and connecting the guild's
// session on first use.
func (m *Manager) Enqueue(ctx context.Context, req EnqueueRequest) (EnqueueOutcome, error) {
	s, created := m.getOrCreate(req.GuildID)
	if created {
		err := s.connectLocked(ctx, m.connector, req.VoiceChannelID)
		s.mu.Unlock()
		if err != nil {
			return EnqueueOutcome{}, err
		}
	}

	return s.Enqueue(ctx, req.TextChannelID, req.Query)
}

// Skip advances the guild's queue. It returns whether a new track started.
func (m *Manager) Skip(ctx context.Context, guildID, channelID snowflake.ID) (bool, error) {
	s, err := m.session(guildID, channelID)
	if err != nil {
		return false, err
	}
	return s.Advance(ctx)
}

// Previous replays the last played track
func (m *Manager) Previous(ctx context.Context, guildID, channelID snowflake.ID) error {
	s, err := m.session(guildID, channelID)
	if err != nil {
		return err
	}

	ok, err := s.Rewind(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrNoPreviousTrack
	}
	return nil
}

// Pause pauses the guild's playback
func (m *Manager) Pause(ctx context.Context, guildID, channelID snowflake.ID) error {
	s, err := m.session(guildID, channelID)
	if err != nil {
		return err
	}
	return s.Pause(ctx)
}

// Resume resumes the guild's playback
func (m *Manager) Resume(ctx context.Context, guildID, channelID snowflake.ID) error {
	s, err := m.session(guildID, channelID)
	if err != nil {
		return err
	}
	return s.Resume(ctx)
}

// TogglePause flips pause and returns whether playback is now paused
func (m *Manager) TogglePause(ctx context.Context, guildID, channelID snowflake.ID) (bool, error) {
	s, err := m.session(guildID, channelID)
	if err != nil {
		return false, err
	}
	return s.TogglePause(ctx)
}

// Stop closes the guild's session
func (m *Manager) Stop(ctx context.Context, guildID, channelID snowflake.ID) error {
	s, err := m.session(guildID, channelID)
	if err != nil {
		return err
	}
	return s.Stop(ctx)
}

// ClearQueue empties the guild's upcoming tracks
func (m *Manager) ClearQueue(ctx context.Context, guildID, channelID snowflake.ID) (int, error) {
	s, err := m.session(guildID, channelID)
	if err != nil {
		return 0, err
	}
	return s.ClearQueue(ctx)
}

// NowPlaying returns a snapshot of the guild's session
func (m *Manager) NowPlaying(guildID snowflake.ID) (Snapshot, error) {
	s, err := m.session(guildID, 0)
	if err != nil {
		return Snapshot{}, err
	}
	return s.Snapshot(), nil
}

// OpenQueueBrowser snapshots the guild's upcoming tracks into a new browser
func (m *Manager) OpenQueueBrowser(guildID snowflake.ID) (*Browser, error) {
	s, err := m.session(guildID, 0)
	if err != nil {
		return nil, err
	}

	snap := s.Snapshot()
	if len(snap.Upcoming) == 0 {
		return nil, common.ErrQueueEmpty
	}

	b := NewBrowser(guildID, snap.Upcoming, m.opts.PageSize, m.opts.BrowserTimeout)
	m.browsers.Register(b)
	return b, nil
}

type controlHandler func(m *Manager, ctx context.Context, guildID, channelID snowflake.ID) error

var controlHandlers = map[Control]controlHandler{
	ControlPrevious: func(m *Manager, ctx context.Context, guildID, channelID snowflake.ID) error {
		return m.Previous(ctx, guildID, channelID)
	},
	ControlPauseToggle: func(m *Manager, ctx context.Context, guildID, channelID snowflake.ID) error {
		_, err := m.TogglePause(ctx, guildID, channelID)
		return err
	},
	ControlNext: func(m *Manager, ctx context.Context, guildID, channelID snowflake.ID) error {
		_, err := m.Skip(ctx, guildID, channelID)
		return err
	},
	ControlStop: func(m *Manager, ctx context.Context, guildID, channelID snowflake.ID) error {
		return m.Stop(ctx, guildID, channelID)
	},
}

// Control runs a status display button
func (m *Manager) Control(ctx context.Context, guildID, channelID snowflake.ID, c Control) error {
	handler, ok := controlHandlers[c]
	if !ok {
		return fmt.Errorf("unknown control %d", c)
	}
	return handler(m, ctx, guildID, channelID)
}

// Run routes node events to sessions until ctx is cancelled or the event
// stream closes.
func (m *Manager) Run(ctx context.Context) {
	events := m.pool.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			m.dispatch(event)
		}
	}
}

func (m *Manager) dispatch(event common.PlayerEvent) {
	s, ok := m.Session(event.Guild())
	if !ok {
		m.logger.Debug("Dropping event for guild without session", zap.Stringer("guild_id", event.Guild()))
		return
	}
	s.deliver(event)
}

// ConnectionLost closes a guild's session after its voice connection dropped
func (m *Manager) ConnectionLost(ctx context.Context, guildID snowflake.ID) {
	if s, ok := m.Session(guildID); ok {
		s.ConnectionLost(ctx)
	}
}

// SweepIdle stops sessions that have had nothing to play for maxIdle and
// returns how many were stopped.
func (m *Manager) SweepIdle(ctx context.Context, maxIdle time.Duration) int {
	now := time.Now()
	stopped := 0

	for _, s := range m.all() {
		idle := s.IdleFor(now)
		if idle == 0 || idle < maxIdle {
			continue
		}
		if err := s.Stop(ctx); err == nil {
			m.logger.Info("Stopped idle session", zap.Stringer("guild_id", s.GuildID()), zap.Duration("idle", idle))
			stopped++
		}
	}
	return stopped
}

// Shutdown stops every session and closes every browser
func (m *Manager) Shutdown(ctx context.Context) {
	for _, s := range m.all() {
		_ = s.Stop(ctx)
	}
	m.browsers.CloseAll()
}

func (m *Manager) all() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return lo.Values(m.sessions)
}

// session looks up an open session and points its notifications at channelID
func (m *Manager) session(guildID, channelID snowflake.ID) (*Session, error) {
	s, ok := m.Session(guildID)
	if !ok || s.Closed() {
		return nil, common.ErrNoActiveSession
	}
	s.SetNotifyChannel(channelID)
	return s, nil
}

// getOrCreate returns the guild's session. A new session is returned with
// its mutex held so nothing can use it before it is connected.
func (m *Manager) getOrCreate(guildID snowflake.ID) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[guildID]; ok && !s.Closed() {
		return s, false
	}

	s := newSession(guildID, sessionDeps{
		pool:      m.pool,
		resolver:  m.resolver,
		messenger: m.messenger,
		observer:  m.observer,
		logger:    m.logger,
		opts:      m.opts,
	}, m.remove)
	s.mu.Lock()
	m.sessions[guildID] = s
	return s, true
}

func (m *Manager) remove(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.sessions[s.guildID]; ok && current == s {
		delete(m.sessions, s.guildID)
	}
}
