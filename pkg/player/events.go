package player

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/latoulicious/Hokko/pkg/common"
)

// deliver hands an event to the session worker without blocking the caller
// for longer than it takes to enqueue it.
func (s *Session) deliver(event common.PlayerEvent) {
	select {
	case s.events <- event:
		return
	case <-s.done:
		return
	default:
	}

	s.logger.Warn("Session event buffer full, delivering asynchronously")
	go func() {
		select {
		case s.events <- event:
		case <-s.done:
		}
	}()
}

func (s *Session) run() {
	for {
		select {
		case event := <-s.events:
			s.handleEvent(context.Background(), event)
		case <-s.done:
			return
		}
	}
}

func (s *Session) handleEvent(ctx context.Context, event common.PlayerEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return
	}

	switch e := event.(type) {
	case common.TrackEndEvent:
		s.handleTrackEndLocked(ctx, e)
	case common.VoiceClosedEvent:
		if e.Disconnected() {
			s.connectionLostLocked(ctx)
		}
	}
}

func (s *Session) handleTrackEndLocked(ctx context.Context, e common.TrackEndEvent) {
	current, ok := s.queue.Current()
	if !ok || !s.isCurrentPlayLocked(current, e) {
		s.logger.Debug("Ignoring end of stale track", zap.String("track", e.Track.Title), zap.String("reason", string(e.Reason)))
		return
	}
	if !e.Reason.ShouldAdvance() {
		return
	}

	if e.Reason == common.EndLoadFailed {
		s.logger.Warn("Track failed to load", zap.String("track", current.Title), zap.String("uri", current.URI))
		s.notifyLocked(ctx, fmt.Sprintf("❌ Failed to load **%s**, skipping.", common.TrimText(current.Title, titleLimit)))
	}
	s.advanceLocked(ctx)
}

// isCurrentPlayLocked matches an end event to the current track. Events
// carrying a play id must match it exactly; a repeated track queued twice
// has a different play id each time.
func (s *Session) isCurrentPlayLocked(current common.Track, e common.TrackEndEvent) bool {
	if e.PlayID != 0 {
		return e.PlayID == s.playID
	}
	return current.Same(e.Track)
}
