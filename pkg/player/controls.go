package player

// Control is a playback button on the status display
type Control int

const (
	ControlPrevious Control = iota + 1
	ControlPauseToggle
	ControlNext
	ControlStop
)

// Button custom ids
const (
	PreviousButtonID = "music_previous"
	PauseButtonID    = "music_pause"
	NextButtonID     = "music_next"
	StopButtonID     = "music_stop"
)

var controlsByID = map[string]Control{
	PreviousButtonID: ControlPrevious,
	PauseButtonID:    ControlPauseToggle,
	NextButtonID:     ControlNext,
	StopButtonID:     ControlStop,
}

// ParseControl maps a button custom id to its control
func ParseControl(customID string) (Control, bool) {
	c, ok := controlsByID[customID]
	return c, ok
}

func (c Control) String() string {
	switch c {
	case ControlPrevious:
		return "previous"
	case ControlPauseToggle:
		return "pause"
	case ControlNext:
		return "next"
	case ControlStop:
		return "stop"
	default:
		return "unknown"
	}
}
