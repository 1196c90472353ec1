package common

import "errors"

// Playback errors surfaced to the command layer
var (
	ErrNotFound        = errors.New("no tracks found")
	ErrTransport       = errors.New("audio node unavailable")
	ErrNoActiveSession = errors.New("nothing is playing")
	ErrNoPreviousTrack = errors.New("no previous track")
	ErrConnectionLost  = errors.New("voice connection lost")
	ErrQueueEmpty      = errors.New("queue is empty")
)

// Messaging errors
var (
	ErrMessageGone = errors.New("message no longer exists")
)
