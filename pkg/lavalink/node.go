package lavalink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/latoulicious/Hokko/pkg/common"
)

const (
	clientName       = "Hokko/1.0"
	handshakeTimeout = 10 * time.Second
	minReconnect     = 5 * time.Second
	maxReconnect     = time.Minute
	resumeTimeout    = 60
)

// Node is a single Lavalink server: one websocket for events plus its REST API
type Node struct {
	config     NodeConfig
	userID     snowflake.ID
	httpClient *http.Client
	logger     *zap.Logger
	events     chan<- common.PlayerEvent
	onReset    func(ctx context.Context, n *Node)
	minBackoff time.Duration

	mu        sync.RWMutex
	conn      *websocket.Conn
	sessionID string
	connected bool
	players   int
}

func newNode(config NodeConfig, userID snowflake.ID, events chan<- common.PlayerEvent, logger *zap.Logger) *Node {
	return &Node{
		config:     config,
		userID:     userID,
		httpClient: &http.Client{},
		logger:     logger.With(zap.String("node", config.Label)),
		events:     events,
		minBackoff: minReconnect,
	}
}

// Label returns the configured node name
func (n *Node) Label() string {
	return n.config.Label
}

// Connected reports whether the websocket is up and a session id was received
func (n *Node) Connected() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.connected && n.sessionID != ""
}

// Players returns the player count from the node's last stats op
func (n *Node) Players() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.players
}

// SessionID returns the node session id of the current connection
func (n *Node) SessionID() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.sessionID
}

// Run keeps the websocket connected until ctx is cancelled, reconnecting
// with exponential backoff.
func (n *Node) Run(ctx context.Context) {
	backoff := n.minBackoff
	for {
		err := n.connectAndRead(ctx)
		if ctx.Err() != nil {
			return
		}

		if err != nil {
			n.logger.Warn("Lavalink connection lost", zap.Error(err), zap.Duration("retry_in", backoff))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxReconnect {
			backoff = maxReconnect
		}
	}
}

func (n *Node) connectAndRead(ctx context.Context) error {
	headers := http.Header{}
	headers.Set("Authorization", n.config.Password)
	headers.Set("User-Id", n.userID.String())
	headers.Set("Client-Name", clientName)
	if sid := n.SessionID(); sid != "" {
		headers.Set("Session-Id", sid)
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, n.config.wsURL(), headers)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", n.config.wsURL(), err)
	}

	n.mu.Lock()
	n.conn = conn
	n.connected = true
	n.mu.Unlock()

	n.logger.Info("Connected to Lavalink node", zap.String("url", n.config.wsURL()))

	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	defer func() {
		n.mu.Lock()
		n.connected = false
		n.conn = nil
		n.mu.Unlock()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			n.logger.Debug("Dropping malformed node message", zap.Error(err))
			continue
		}
		n.handle(ctx, msg)
	}
}

func (n *Node) handle(ctx context.Context, msg inbound) {
	switch msg.Op {
	case "ready":
		n.mu.Lock()
		n.sessionID = msg.SessionID
		n.mu.Unlock()
		n.logger.Info("Lavalink session ready", zap.String("session_id", msg.SessionID), zap.Bool("resumed", msg.Resumed))

		// a fresh session starts without any of the players we created
		if !msg.Resumed && n.onReset != nil {
			n.onReset(ctx, n)
		}

		go func() {
			rctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
			defer cancel()
			if err := n.enableResume(rctx); err != nil {
				n.logger.Warn("Failed to enable session resuming", zap.Error(err))
			}
		}()
	case "stats":
		n.mu.Lock()
		n.players = msg.Players
		n.mu.Unlock()
	case "playerUpdate":
	case "event":
		n.handleEvent(ctx, msg)
	default:
		n.logger.Debug("Unknown node op", zap.String("op", msg.Op))
	}
}

func (n *Node) handleEvent(ctx context.Context, msg inbound) {
	guildID, err := snowflake.Parse(msg.GuildID)
	if err != nil {
		n.logger.Debug("Event with invalid guild id", zap.String("guild_id", msg.GuildID))
		return
	}
	log := n.logger.With(zap.Stringer("guild_id", guildID))

	switch msg.Type {
	case "TrackStartEvent":
		if msg.Track != nil {
			log.Debug("Track started", zap.String("track", msg.Track.Info.Title))
		}
	case "TrackEndEvent":
		if msg.Track == nil {
			return
		}
		n.publish(ctx, common.TrackEndEvent{
			GuildID: guildID,
			Track:   msg.Track.toTrack(),
			PlayID:  msg.Track.UserData.PlayID,
			Reason:  common.EndReason(msg.Reason),
		})
	case "TrackExceptionEvent":
		fields := []zap.Field{}
		if msg.Track != nil {
			fields = append(fields, zap.String("track", msg.Track.Info.Title))
		}
		if msg.Exception != nil {
			fields = append(fields, zap.String("message", msg.Exception.Message), zap.String("severity", msg.Exception.Severity))
		}
		log.Warn("Track exception", fields...)
	case "TrackStuckEvent":
		log.Warn("Track stuck", zap.Int64("threshold_ms", msg.Threshold))
	case "WebSocketClosedEvent":
		log.Info("Voice websocket closed", zap.Int("code", msg.Code), zap.String("reason", msg.Reason), zap.Bool("by_remote", msg.ByRemote))
		n.publish(ctx, common.VoiceClosedEvent{
			GuildID:  guildID,
			Code:     msg.Code,
			Reason:   msg.Reason,
			ByRemote: msg.ByRemote,
		})
	}
}

func (n *Node) publish(ctx context.Context, event common.PlayerEvent) {
	select {
	case n.events <- event:
	case <-ctx.Done():
	}
}

func (n *Node) enableResume(ctx context.Context) error {
	sid := n.SessionID()
	return n.do(ctx, http.MethodPatch, "/v4/sessions/"+sid, sessionUpdate{Resuming: true, Timeout: resumeTimeout}, nil)
}

// LoadTracks resolves an identifier (URL or prefixed search term)
func (n *Node) LoadTracks(ctx context.Context, identifier string) (*common.LoadResult, error) {
	var resp loadResponse
	path := "/v4/loadtracks?identifier=" + url.QueryEscape(identifier)
	if err := n.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	result, err := resp.toResult()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrTransport, err)
	}
	return result, nil
}

// UpdatePlayer patches the guild's player on this node
func (n *Node) UpdatePlayer(ctx context.Context, guildID snowflake.ID, update playerUpdate) error {
	sid := n.SessionID()
	if sid == "" {
		return fmt.Errorf("%w: node %s has no session", common.ErrTransport, n.config.Label)
	}
	return n.do(ctx, http.MethodPatch, fmt.Sprintf("/v4/sessions/%s/players/%s", sid, guildID), update, nil)
}

// DestroyPlayer removes the guild's player from this node
func (n *Node) DestroyPlayer(ctx context.Context, guildID snowflake.ID) error {
	sid := n.SessionID()
	if sid == "" {
		return nil
	}
	return n.do(ctx, http.MethodDelete, fmt.Sprintf("/v4/sessions/%s/players/%s", sid, guildID), nil, nil)
}

func (n *Node) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, n.config.httpBase()+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", n.config.Password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", common.ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Message == "" {
			e.Message = resp.Status
		}
		return fmt.Errorf("%w: %s %s: %s", common.ErrTransport, method, path, e.Message)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: failed to decode response: %v", common.ErrTransport, err)
	}
	return nil
}
