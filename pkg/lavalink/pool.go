package lavalink

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	"github.com/latoulicious/Hokko/pkg/common"
)

// DefaultSearchPrefix is prepended to plain search terms
const DefaultSearchPrefix = "ytsearch"

const (
	eventBuffer    = 256
	restoreTimeout = 10 * time.Second
)

// ErrNoNodes is returned when no configured node is connected
var ErrNoNodes = fmt.Errorf("%w: no connected Lavalink nodes", common.ErrTransport)

type binding struct {
	node      *Node
	voice     VoiceState
	voiceSent bool
	playing   *playRequest
	paused    bool
}

// playRequest is the last track started on a guild's player
type playRequest struct {
	track  common.Track
	playID uint64
}

func (r playRequest) update() trackUpdate {
	update := trackUpdate{Encoded: r.track.Encoded}
	if r.track.Encoded == "" {
		update = trackUpdate{Identifier: playIdentifier(r.track)}
	}
	if r.playID != 0 {
		update.UserData = &playUserData{PlayID: r.playID}
	}
	return update
}

// Pool spreads guild players over a set of Lavalink nodes
type Pool struct {
	nodes        []*Node
	searchPrefix string
	logger       *zap.Logger
	events       chan common.PlayerEvent

	mu       sync.Mutex
	bindings map[snowflake.ID]*binding
}

// NewPool creates a pool for the given nodes. Nothing connects until Start.
func NewPool(configs []NodeConfig, userID snowflake.ID, searchPrefix string, logger *zap.Logger) *Pool {
	if searchPrefix == "" {
		searchPrefix = DefaultSearchPrefix
	}

	p := &Pool{
		searchPrefix: searchPrefix,
		logger:       logger.Named("lavalink"),
		events:       make(chan common.PlayerEvent, eventBuffer),
		bindings:     make(map[snowflake.ID]*binding),
	}
	for _, cfg := range configs {
		n := newNode(cfg, userID, p.events, p.logger)
		n.onReset = p.resetNode
		p.nodes = append(p.nodes, n)
	}
	return p
}

// Start connects every node in the background. A node that cannot connect
// keeps retrying and does not block the others.
func (p *Pool) Start(ctx context.Context) {
	for _, n := range p.nodes {
		p.logger.Info("Starting Lavalink node", zap.String("node", n.Label()), zap.String("url", n.config.wsURL()))
		go n.Run(ctx)
	}
}

// Events returns the stream of player events from every node
func (p *Pool) Events() <-chan common.PlayerEvent {
	return p.events
}

// Nodes returns the configured nodes
func (p *Pool) Nodes() []*Node {
	return p.nodes
}

// Identifier turns user input into a node load identifier: URLs and already
// prefixed searches pass through, anything else becomes a search.
func (p *Pool) Identifier(query string) string {
	query = strings.TrimSpace(query)
	if isURL(query) || hasSearchPrefix(query) {
		return query
	}
	return p.searchPrefix + ":" + query
}

// Resolve loads a query on the first connected node that answers
func (p *Pool) Resolve(ctx context.Context, query string) (*common.LoadResult, error) {
	identifier := p.Identifier(query)

	var lastErr error
	tried := 0
	for _, n := range p.nodes {
		if !n.Connected() {
			continue
		}
		tried++

		result, err := n.LoadTracks(ctx, identifier)
		if err == nil {
			return result, nil
		}
		lastErr = err
		p.logger.Warn("Node failed to resolve query", zap.String("node", n.Label()), zap.String("query", query), zap.Error(err))

		if ctx.Err() != nil {
			break
		}
	}

	if tried == 0 {
		return nil, ErrNoNodes
	}
	return nil, lastErr
}

// Play starts track on the guild's player, replacing whatever is playing.
// playID is echoed back on the track's end event.
func (p *Pool) Play(ctx context.Context, guildID snowflake.ID, track common.Track, playID uint64) error {
	req := playRequest{track: track, playID: playID}
	paused := false

	if err := p.update(ctx, guildID, playerUpdate{Track: req.update(), Paused: &paused}); err != nil {
		return err
	}

	p.mu.Lock()
	if b, ok := p.bindings[guildID]; ok {
		b.playing = &req
		b.paused = false
	}
	p.mu.Unlock()
	return nil
}

// Stop clears the guild's current track without destroying the player
func (p *Pool) Stop(ctx context.Context, guildID snowflake.ID) error {
	if err := p.update(ctx, guildID, playerUpdate{Track: stopTrack{}}); err != nil {
		return err
	}

	p.mu.Lock()
	if b, ok := p.bindings[guildID]; ok {
		b.playing = nil
	}
	p.mu.Unlock()
	return nil
}

// Pause sets the guild player's paused flag
func (p *Pool) Pause(ctx context.Context, guildID snowflake.ID, paused bool) error {
	if err := p.update(ctx, guildID, playerUpdate{Paused: &paused}); err != nil {
		return err
	}

	p.mu.Lock()
	if b, ok := p.bindings[guildID]; ok {
		b.paused = paused
	}
	p.mu.Unlock()
	return nil
}

// UpdateVoice hands the guild's voice server credentials to its node
func (p *Pool) UpdateVoice(ctx context.Context, guildID snowflake.ID, voice VoiceState) error {
	b, err := p.bind(guildID)
	if err != nil {
		return err
	}

	p.mu.Lock()
	b.voice = voice
	b.voiceSent = false
	p.mu.Unlock()

	return p.update(ctx, guildID, playerUpdate{})
}

// Destroy removes the guild's player from its node and forgets the binding
func (p *Pool) Destroy(ctx context.Context, guildID snowflake.ID) error {
	p.mu.Lock()
	b, ok := p.bindings[guildID]
	delete(p.bindings, guildID)
	p.mu.Unlock()

	if !ok {
		return nil
	}
	return b.node.DestroyPlayer(ctx, guildID)
}

// update sends a player patch to the guild's node, piggybacking voice state
// the node has not seen yet.
func (p *Pool) update(ctx context.Context, guildID snowflake.ID, update playerUpdate) error {
	b, err := p.bind(guildID)
	if err != nil {
		return err
	}

	p.mu.Lock()
	pending := !b.voiceSent && b.voice.Complete()
	if pending {
		voice := b.voice
		update.Voice = &voice
	}
	node := b.node
	p.mu.Unlock()

	if update.Track == nil && update.Paused == nil && update.Voice == nil {
		return nil
	}

	if err := node.UpdatePlayer(ctx, guildID, update); err != nil {
		return err
	}

	if pending {
		p.mu.Lock()
		b.voiceSent = true
		p.mu.Unlock()
	}
	return nil
}

// bind returns the guild's binding, moving it to the least loaded connected
// node when it has none or its node went away.
func (p *Pool) bind(guildID snowflake.ID) (*binding, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	b, ok := p.bindings[guildID]
	if ok && b.node.Connected() {
		return b, nil
	}

	node := p.leastLoaded()
	if node == nil {
		return nil, ErrNoNodes
	}

	if !ok {
		b = &binding{}
		p.bindings[guildID] = b
	} else {
		p.logger.Info("Moving guild player to another node",
			zap.Stringer("guild_id", guildID),
			zap.String("from", b.node.Label()),
			zap.String("to", node.Label()))
	}
	b.node = node
	b.voiceSent = false
	return b, nil
}

// leastLoaded must be called with p.mu held
func (p *Pool) leastLoaded() *Node {
	counts := make(map[*Node]int, len(p.nodes))
	for _, b := range p.bindings {
		counts[b.node]++
	}

	var best *Node
	bestLoad := 0
	for _, n := range p.nodes {
		if !n.Connected() {
			continue
		}
		load := max(counts[n], n.Players())
		if best == nil || load < bestLoad {
			best, bestLoad = n, load
		}
	}
	return best
}

// resetNode runs when n opens a fresh session. Players living on the old
// session are gone: voice state has to be sent again and interrupted tracks
// are started over.
func (p *Pool) resetNode(ctx context.Context, n *Node) {
	p.mu.Lock()
	var guilds []snowflake.ID
	for guildID, b := range p.bindings {
		if b.node != n {
			continue
		}
		b.voiceSent = false
		guilds = append(guilds, guildID)
	}
	p.mu.Unlock()

	if len(guilds) == 0 {
		return
	}
	p.logger.Warn("Lavalink node lost its players, restoring",
		zap.String("node", n.Label()),
		zap.Int("players", len(guilds)))

	for _, guildID := range guilds {
		go p.restore(ctx, guildID)
	}
}

// restore recreates the guild's player. When the interrupted track cannot
// be restarted its end is reported as a load failure so the session moves on.
func (p *Pool) restore(ctx context.Context, guildID snowflake.ID) {
	p.mu.Lock()
	b, ok := p.bindings[guildID]
	var playing *playRequest
	paused := false
	if ok {
		playing = b.playing
		paused = b.paused
	}
	p.mu.Unlock()
	if !ok {
		return
	}

	update := playerUpdate{}
	if playing != nil {
		update.Track = playing.update()
		update.Paused = &paused
	}

	// the session may have moved on while we waited
	p.mu.Lock()
	stale := p.bindings[guildID] != b || b.playing != playing
	p.mu.Unlock()
	if stale {
		return
	}

	rctx, cancel := context.WithTimeout(ctx, restoreTimeout)
	defer cancel()

	err := p.update(rctx, guildID, update)
	if err == nil {
		return
	}

	log := p.logger.With(zap.Stringer("guild_id", guildID))
	if playing == nil {
		log.Warn("Failed to restore player", zap.Error(err))
		return
	}
	log.Warn("Failed to restart interrupted track", zap.String("track", playing.track.Title), zap.Error(err))

	select {
	case p.events <- common.TrackEndEvent{
		GuildID: guildID,
		Track:   playing.track,
		PlayID:  playing.playID,
		Reason:  common.EndLoadFailed,
	}:
	case <-ctx.Done():
	}
}

func playIdentifier(track common.Track) string {
	if track.URI != "" {
		return track.URI
	}
	return track.Identifier
}

func isURL(s string) bool {
	u, err := url.ParseRequestURI(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

var searchPrefixes = []string{"ytsearch:", "ytmsearch:", "scsearch:", "spsearch:", "amsearch:", "dzsearch:"}

func hasSearchPrefix(s string) bool {
	for _, prefix := range searchPrefixes {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}
