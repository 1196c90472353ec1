package player

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	"github.com/latoulicious/Hokko/pkg/common"
)

const (
	testGuild   = snowflake.ID(1001)
	testVoice   = snowflake.ID(2001)
	testChannel = snowflake.ID(3001)
)

func track(name string) common.Track {
	return common.Track{
		Encoded: "enc-" + name,
		Title:   name,
		Author:  "artist",
		URI:     "https://example.com/" + name,
		Source:  "youtube",
	}
}

func titles(tracks []common.Track) []string {
	out := make([]string, len(tracks))
	for i, t := range tracks {
		out[i] = t.Title
	}
	return out
}

type fakePool struct {
	mu         sync.Mutex
	results    map[string]*common.LoadResult
	resolveErr error
	blockLoads bool
	playErr    map[string]error
	played     []string
	playIDs    []uint64
	pauses     []bool
	stops      int
	destroys   int
	events     chan common.PlayerEvent
}

func newFakePool() *fakePool {
	return &fakePool{
		results: make(map[string]*common.LoadResult),
		playErr: make(map[string]error),
		events:  make(chan common.PlayerEvent, 16),
	}
}

func (p *fakePool) addPlaylist(query string, tracks ...common.Track) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results[query] = &common.LoadResult{
		Type:     common.LoadTypePlaylist,
		Playlist: &common.Playlist{Name: query, Tracks: tracks},
	}
}

func (p *fakePool) addTrack(query string, t common.Track) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results[query] = &common.LoadResult{Type: common.LoadTypeTrack, Track: &t}
}

func (p *fakePool) Resolve(ctx context.Context, query string) (*common.LoadResult, error) {
	p.mu.Lock()
	block := p.blockLoads
	p.mu.Unlock()
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.resolveErr != nil {
		return nil, p.resolveErr
	}
	if r, ok := p.results[query]; ok {
		return r, nil
	}
	return &common.LoadResult{Type: common.LoadTypeEmpty}, nil
}

func (p *fakePool) Play(_ context.Context, _ snowflake.ID, t common.Track, playID uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.playErr[t.Title]; err != nil {
		return err
	}
	p.played = append(p.played, t.Title)
	p.playIDs = append(p.playIDs, playID)
	return nil
}

func (p *fakePool) lastPlayID() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.playIDs) == 0 {
		return 0
	}
	return p.playIDs[len(p.playIDs)-1]
}

func (p *fakePool) destroyed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.destroys
}

func (p *fakePool) Stop(context.Context, snowflake.ID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops++
	return nil
}

func (p *fakePool) Pause(_ context.Context, _ snowflake.ID, paused bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pauses = append(p.pauses, paused)
	return nil
}

func (p *fakePool) Destroy(context.Context, snowflake.ID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.destroys++
	return nil
}

func (p *fakePool) Events() <-chan common.PlayerEvent {
	return p.events
}

func (p *fakePool) playedTitles() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.played...)
}

type sentMessage struct {
	channelID snowflake.ID
	msg       *discordgo.MessageSend
}

type fakeMessenger struct {
	mu      sync.Mutex
	nextID  snowflake.ID
	sends   []sentMessage
	edits   int
	deletes []snowflake.ID
	editErr error
}

func (m *fakeMessenger) Send(_ context.Context, channelID snowflake.ID, msg *discordgo.MessageSend) (snowflake.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.sends = append(m.sends, sentMessage{channelID: channelID, msg: msg})
	return 9000 + m.nextID, nil
}

func (m *fakeMessenger) Edit(context.Context, snowflake.ID, snowflake.ID, *discordgo.MessageEdit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.editErr != nil {
		return m.editErr
	}
	m.edits++
	return nil
}

func (m *fakeMessenger) Delete(_ context.Context, _ snowflake.ID, messageID snowflake.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, messageID)
	return nil
}

// diagnostics returns the plain text notifications posted
func (m *fakeMessenger) diagnostics() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, s := range m.sends {
		if s.msg.Content != "" {
			out = append(out, s.msg.Content)
		}
	}
	return out
}

// displayWrites counts status display sends and edits
func (m *fakeMessenger) displayWrites() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.edits
	for _, s := range m.sends {
		if len(s.msg.Embeds) > 0 {
			n++
		}
	}
	return n
}

func (m *fakeMessenger) deleted() []snowflake.ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]snowflake.ID(nil), m.deletes...)
}

type fakeConn struct {
	channelID    snowflake.ID
	mu           sync.Mutex
	disconnected int
}

func (c *fakeConn) ChannelID() snowflake.ID { return c.channelID }

func (c *fakeConn) Disconnect(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected++
	return nil
}

func (c *fakeConn) disconnects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnected
}

type fakeConnector struct {
	mu    sync.Mutex
	err   error
	conns []*fakeConn
}

func (c *fakeConnector) Connect(_ context.Context, _ snowflake.ID, channelID snowflake.ID) (Connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	conn := &fakeConn{channelID: channelID}
	c.conns = append(c.conns, conn)
	return conn, nil
}

func (c *fakeConnector) last() *fakeConn {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.conns) == 0 {
		return nil
	}
	return c.conns[len(c.conns)-1]
}

type fakeObserver struct {
	mu      sync.Mutex
	started []string
	idle    int
	closed  int
}

func (o *fakeObserver) TrackStarted(_ snowflake.ID, t common.Track) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, t.Title)
}

func (o *fakeObserver) PlaybackIdle(snowflake.ID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.idle++
}

func (o *fakeObserver) closedCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

func (o *fakeObserver) SessionClosed(snowflake.ID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed++
}

type harness struct {
	manager   *Manager
	pool      *fakePool
	messenger *fakeMessenger
	connector *fakeConnector
	observer  *fakeObserver
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		pool:      newFakePool(),
		messenger: &fakeMessenger{},
		connector: &fakeConnector{},
		observer:  &fakeObserver{},
	}
	h.manager = NewManager(Config{
		Pool:      h.pool,
		Connector: h.connector,
		Messenger: h.messenger,
		Observer:  h.observer,
		// session workers outlive individual tests
		Logger: zap.NewNop(),
		Options: Options{
			HistorySize:    3,
			PageSize:       2,
			BrowserTimeout: time.Minute,
			NetworkTimeout: time.Second,
			UITimeout:      time.Second,
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	go h.manager.Run(ctx)
	t.Cleanup(func() {
		h.manager.Shutdown(context.Background())
		cancel()
	})
	return h
}

func (h *harness) enqueue(t *testing.T, query string) EnqueueOutcome {
	t.Helper()
	out, err := h.manager.Enqueue(context.Background(), EnqueueRequest{
		GuildID:        testGuild,
		VoiceChannelID: testVoice,
		TextChannelID:  testChannel,
		Query:          query,
	})
	if err != nil {
		t.Fatalf("enqueue %q: %v", query, err)
	}
	return out
}

func (h *harness) snapshot(t *testing.T) Snapshot {
	t.Helper()
	snap, err := h.manager.NowPlaying(testGuild)
	if err != nil {
		t.Fatalf("now playing: %v", err)
	}
	return snap
}

var errNodeRejected = errors.New("node rejected track")
