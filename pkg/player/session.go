package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	"github.com/latoulicious/Hokko/pkg/common"
)

const eventBuffer = 64

// playIDs numbers play requests across every session, so an end event from
// an earlier play never matches a later one.
var playIDs atomic.Uint64

// OutcomeKind tells the caller what an enqueue did
type OutcomeKind int

const (
	OutcomeLoadFailed OutcomeKind = iota
	OutcomePlayedNow
	OutcomeQueued
)

// EnqueueOutcome is the result of Session.Enqueue
type EnqueueOutcome struct {
	Kind     OutcomeKind
	Playlist *common.Playlist // set when the query resolved to a playlist
	Track    common.Track     // first track added
	Count    int              // number of tracks added
	Position int              // 1-based position of Track in upcoming when queued
	Err      error            // why loading failed
}

// Snapshot is a read-only copy of a session's state
type Snapshot struct {
	GuildID       snowflake.ID
	State         State
	Current       *common.Track
	Upcoming      []common.Track
	History       []common.Track
	Paused        bool
	NotifyChannel snowflake.ID
	VoiceChannel  snowflake.ID
}

type sessionDeps struct {
	pool      NodePool
	resolver  Resolver
	messenger Messenger
	observer  Observer
	logger    *zap.Logger
	opts      Options
}

// Session is the playback state machine for one guild. Every method
// serializes on the session mutex; track-end events are drained by the
// session's own worker under the same mutex.
type Session struct {
	guildID  snowflake.ID
	pool     NodePool
	resolver Resolver
	observer Observer
	display  *StatusDisplay
	logger   *zap.Logger
	opts     Options

	mu            sync.Mutex
	state         State
	queue         *common.Queue
	paused        bool
	conn          Connection
	notifyChannel snowflake.ID
	idleSince     time.Time
	playID        uint64 // play request of the current track

	closed    atomic.Bool
	events    chan common.PlayerEvent
	done      chan struct{}
	closeOnce sync.Once
	onClosed  func(*Session)
}

func newSession(guildID snowflake.ID, deps sessionDeps, onClosed func(*Session)) *Session {
	logger := deps.logger.With(zap.Stringer("guild_id", guildID))
	s := &Session{
		guildID:  guildID,
		pool:     deps.pool,
		resolver: deps.resolver,
		observer: deps.observer,
		display:  newStatusDisplay(deps.messenger, deps.opts.UITimeout, logger),
		logger:   logger,
		opts:     deps.opts,
		state:    StateIdle,
		queue:    common.NewQueue(deps.opts.HistorySize),
		events:   make(chan common.PlayerEvent, eventBuffer),
		done:     make(chan struct{}),
		onClosed: onClosed,
	}
	go s.run()
	return s
}

// GuildID returns the owning guild
func (s *Session) GuildID() snowflake.ID {
	return s.guildID
}

// Closed reports whether the session reached its terminal state
func (s *Session) Closed() bool {
	return s.closed.Load()
}

// Done is closed when the session closes
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// connectLocked joins the voice channel. On failure the session is closed.
func (s *Session) connectLocked(ctx context.Context, connector Connector, channelID snowflake.ID) error {
	s.state = StateConnecting

	cctx, cancel := context.WithTimeout(ctx, s.opts.NetworkTimeout)
	defer cancel()

	conn, err := connector.Connect(cctx, s.guildID, channelID)
	if err != nil {
		s.logger.Warn("Failed to join voice channel", zap.Stringer("channel_id", channelID), zap.Error(err))
		s.closeLocked(ctx)
		return fmt.Errorf("%w: failed to join voice channel: %v", common.ErrTransport, err)
	}

	s.conn = conn
	s.state = StateActive
	s.idleSince = time.Now()
	s.logger.Info("Joined voice channel", zap.Stringer("channel_id", channelID))
	return nil
}

// SetNotifyChannel points diagnostics and the status display at channelID
func (s *Session) SetNotifyChannel(channelID snowflake.ID) {
	if channelID == 0 {
		return
	}
	s.mu.Lock()
	s.notifyChannel = channelID
	s.mu.Unlock()
}

// Enqueue resolves query and appends the result to the queue, starting
// playback when nothing is loaded. Resolution failures are reported through
// the outcome and leave the session untouched.
func (s *Session) Enqueue(ctx context.Context, channelID snowflake.ID, query string) (EnqueueOutcome, error) {
	if s.Closed() {
		return EnqueueOutcome{}, common.ErrNoActiveSession
	}
	s.SetNotifyChannel(channelID)

	rctx, cancel := context.WithTimeout(ctx, s.opts.NetworkTimeout)
	result, err := s.resolver.Resolve(rctx, query)
	cancel()

	if err == nil && result.IsEmpty() {
		err = common.ErrNotFound
		if result != nil && result.Type == common.LoadTypeError {
			err = fmt.Errorf("%w: %s", common.ErrNotFound, result.Message)
		}
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", common.ErrTransport, err)
		}
		s.logger.Warn("Failed to load query", zap.String("query", query), zap.Error(err))
		return EnqueueOutcome{Kind: OutcomeLoadFailed, Err: err}, nil
	}

	tracks := result.Tracks()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return EnqueueOutcome{}, common.ErrNoActiveSession
	}

	s.queue.Add(tracks...)

	outcome := EnqueueOutcome{
		Kind:     OutcomeQueued,
		Playlist: result.Playlist,
		Track:    tracks[0],
		Count:    len(tracks),
		Position: s.queue.Size() - len(tracks) + 1,
	}

	if _, playing := s.queue.Current(); playing {
		s.refreshLocked(ctx)
		return outcome, nil
	}

	if !s.advanceLocked(ctx) {
		return EnqueueOutcome{Kind: OutcomeLoadFailed, Err: common.ErrTransport}, nil
	}
	outcome.Kind = OutcomePlayedNow
	outcome.Position = 0
	return outcome, nil
}

// Advance moves to the next track. It returns whether a new track started.
func (s *Session) Advance(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return false, common.ErrNoActiveSession
	}
	return s.advanceLocked(ctx), nil
}

// Rewind restarts the most recently played track. It returns false without
// changing anything when history is empty.
func (s *Session) Rewind(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return false, common.ErrNoActiveSession
	}

	track, ok := s.queue.Rewind()
	if !ok {
		return false, nil
	}

	if err := s.playLocked(ctx, track); err != nil {
		s.playFailedLocked(ctx, track, err)
		s.queue.DropCurrent()
		s.advanceLocked(ctx)
		return true, nil
	}

	s.refreshLocked(ctx)
	return true, nil
}

// Pause pauses playback. Pausing an already paused session only refreshes the display.
func (s *Session) Pause(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return common.ErrNoActiveSession
	}
	return s.setPausedLocked(ctx, true)
}

// Resume resumes playback. Resuming a playing session only refreshes the display.
func (s *Session) Resume(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return common.ErrNoActiveSession
	}
	return s.setPausedLocked(ctx, false)
}

// TogglePause flips the paused flag and returns the new value
func (s *Session) TogglePause(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return false, common.ErrNoActiveSession
	}
	err := s.setPausedLocked(ctx, !s.paused)
	return s.paused, err
}

// Stop tears the session down: audio, node player, voice connection,
// status display and queue.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return common.ErrNoActiveSession
	}

	s.logger.Info("Stopping playback session")
	s.closeLocked(ctx)
	return nil
}

// ClearQueue drops every upcoming track and returns how many were removed
func (s *Session) ClearQueue(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return 0, common.ErrNoActiveSession
	}

	removed := s.queue.ClearUpcoming()
	s.refreshLocked(ctx)
	return removed, nil
}

// ConnectionLost closes the session after the voice connection went away
func (s *Session) ConnectionLost(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return
	}
	s.connectionLostLocked(ctx)
}

func (s *Session) connectionLostLocked(ctx context.Context) {
	s.logger.Warn("Voice connection lost, closing session")
	s.notifyLocked(ctx, "👋 Disconnected from the voice channel, playback stopped.")
	s.closeLocked(ctx)
}

// Snapshot returns a copy of the session state
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// IdleFor reports how long the session has had nothing loaded
func (s *Session) IdleFor(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed || s.idleSince.IsZero() {
		return 0
	}
	if _, playing := s.queue.Current(); playing {
		return 0
	}
	return now.Sub(s.idleSince)
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		GuildID:       s.guildID,
		State:         s.state,
		Upcoming:      s.queue.Upcoming(),
		History:       s.queue.History(),
		Paused:        s.paused,
		NotifyChannel: s.notifyChannel,
	}
	if cur, ok := s.queue.Current(); ok {
		snap.Current = &cur
	}
	if s.conn != nil {
		snap.VoiceChannel = s.conn.ChannelID()
	}
	return snap
}

// advanceLocked promotes the next playable track. Tracks the node refuses
// are reported and dropped; they never reach history.
func (s *Session) advanceLocked(ctx context.Context) bool {
	for {
		track, ok := s.queue.Advance()
		if !ok {
			break
		}

		err := s.playLocked(ctx, track)
		if err == nil {
			s.refreshLocked(ctx)
			return true
		}
		s.playFailedLocked(ctx, track, err)
		s.queue.DropCurrent()
	}

	nctx, cancel := context.WithTimeout(ctx, s.opts.NetworkTimeout)
	defer cancel()
	if err := s.pool.Stop(nctx, s.guildID); err != nil {
		s.logger.Debug("Failed to stop audio", zap.Error(err))
	}

	s.paused = false
	if s.state == StatePaused {
		s.state = StateActive
	}
	s.idleSince = time.Now()
	s.playID = 0
	s.observer.PlaybackIdle(s.guildID)
	s.refreshLocked(ctx)
	return false
}

func (s *Session) playLocked(ctx context.Context, track common.Track) error {
	nctx, cancel := context.WithTimeout(ctx, s.opts.NetworkTimeout)
	defer cancel()

	id := playIDs.Add(1)
	if err := s.pool.Play(nctx, s.guildID, track, id); err != nil {
		s.playID = 0
		return err
	}

	s.playID = id
	s.paused = false
	s.state = StateActive
	s.idleSince = time.Time{}
	s.logger.Info("Now playing", zap.String("track", track.Title), zap.String("source", track.Source))
	s.observer.TrackStarted(s.guildID, track)
	return nil
}

func (s *Session) playFailedLocked(ctx context.Context, track common.Track, err error) {
	s.logger.Warn("Failed to start track", zap.String("track", track.Title), zap.Error(err))
	s.notifyLocked(ctx, fmt.Sprintf("❌ Failed to play **%s**, skipping.", common.TrimText(track.Title, titleLimit)))
}

func (s *Session) setPausedLocked(ctx context.Context, paused bool) error {
	var err error
	if _, playing := s.queue.Current(); playing && s.paused != paused {
		nctx, cancel := context.WithTimeout(ctx, s.opts.NetworkTimeout)
		if perr := s.pool.Pause(nctx, s.guildID, paused); perr != nil {
			err = fmt.Errorf("%w: %v", common.ErrTransport, perr)
		}
		cancel()
	}

	if err == nil {
		s.paused = paused
		if paused {
			s.state = StatePaused
		} else {
			s.state = StateActive
		}
	}

	s.refreshLocked(ctx)
	return err
}

// closeLocked moves the session through Draining to Closed. Every cleanup
// step is best effort.
func (s *Session) closeLocked(ctx context.Context) {
	s.state = StateDraining

	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.NetworkTimeout)
	defer cancel()

	if _, playing := s.queue.Current(); playing {
		if err := s.pool.Stop(nctx, s.guildID); err != nil {
			s.logger.Debug("Failed to stop audio", zap.Error(err))
		}
	}
	if err := s.pool.Destroy(nctx, s.guildID); err != nil {
		s.logger.Debug("Failed to destroy node player", zap.Error(err))
	}
	if s.conn != nil {
		if err := s.conn.Disconnect(nctx); err != nil {
			s.logger.Debug("Failed to leave voice channel", zap.Error(err))
		}
		s.conn = nil
	}

	s.display.Delete(ctx)
	s.queue.Reset()
	s.paused = false
	s.playID = 0
	s.state = StateClosed
	s.closed.Store(true)

	s.closeOnce.Do(func() {
		close(s.done)
	})
	s.observer.SessionClosed(s.guildID)
	if s.onClosed != nil {
		s.onClosed(s)
	}
}

func (s *Session) refreshLocked(ctx context.Context) {
	s.display.Render(ctx, s.notifyChannel, s.snapshotLocked())
}

// notifyLocked posts a one-line diagnostic to the notification channel
func (s *Session) notifyLocked(ctx context.Context, text string) {
	if s.notifyChannel == 0 {
		return
	}

	uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.UITimeout)
	defer cancel()

	if _, err := s.display.messenger.Send(uctx, s.notifyChannel, &discordgo.MessageSend{Content: text}); err != nil {
		s.logger.Debug("Failed to post notification", zap.Error(err))
	}
}
