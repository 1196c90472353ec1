package common

// DefaultHistorySize is used when a queue is created with a non-positive capacity
const DefaultHistorySize = 50

// Queue holds the pending tracks, the current track and a bounded history of
// played tracks for one guild. It is not safe for concurrent use; the owning
// session serializes every call.
type Queue struct {
	upcoming    []Track
	history     []Track
	current     *Track
	historySize int
}

// NewQueue creates an empty queue keeping at most historySize played tracks
func NewQueue(historySize int) *Queue {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &Queue{
		upcoming:    make([]Track, 0),
		history:     make([]Track, 0, historySize),
		historySize: historySize,
	}
}

// Add appends tracks to the end of the upcoming list in the given order
func (q *Queue) Add(tracks ...Track) {
	q.upcoming = append(q.upcoming, tracks...)
}

// Current returns the currently loaded track
func (q *Queue) Current() (Track, bool) {
	if q.current == nil {
		return Track{}, false
	}
	return *q.current, true
}

// Advance moves the current track into history and promotes the head of the
// upcoming list. It returns false and leaves no current track when nothing is
// left to play.
func (q *Queue) Advance() (Track, bool) {
	if q.current != nil {
		q.pushHistory(*q.current)
		q.current = nil
	}

	if len(q.upcoming) == 0 {
		return Track{}, false
	}

	next := q.upcoming[0]
	q.upcoming = q.upcoming[1:]
	q.current = &next
	return next, true
}

// DropCurrent forgets the current track without recording it in history
func (q *Queue) DropCurrent() {
	q.current = nil
}

// Rewind puts the current track back at the front of the upcoming list and
// makes the most recently played track current again. It returns false
// without changing anything when history is empty.
func (q *Queue) Rewind() (Track, bool) {
	if len(q.history) == 0 {
		return Track{}, false
	}

	if q.current != nil {
		q.upcoming = append([]Track{*q.current}, q.upcoming...)
	}

	last := len(q.history) - 1
	prev := q.history[last]
	q.history = q.history[:last]
	q.current = &prev
	return prev, true
}

// Upcoming returns a copy of the pending tracks
func (q *Queue) Upcoming() []Track {
	result := make([]Track, len(q.upcoming))
	copy(result, q.upcoming)
	return result
}

// History returns a copy of the played tracks, oldest first
func (q *Queue) History() []Track {
	result := make([]Track, len(q.history))
	copy(result, q.history)
	return result
}

// Size returns the number of pending tracks
func (q *Queue) Size() int {
	return len(q.upcoming)
}

// HistorySize returns the configured history capacity
func (q *Queue) HistorySize() int {
	return q.historySize
}

// ClearUpcoming empties the pending list and returns how many tracks were removed.
// Current track and history are untouched.
func (q *Queue) ClearUpcoming() int {
	removed := len(q.upcoming)
	q.upcoming = make([]Track, 0)
	return removed
}

// Reset drops every track the queue holds
func (q *Queue) Reset() {
	q.upcoming = make([]Track, 0)
	q.history = q.history[:0]
	q.current = nil
}

func (q *Queue) pushHistory(t Track) {
	if len(q.history) >= q.historySize {
		excess := len(q.history) - q.historySize + 1
		q.history = append(q.history[:0], q.history[excess:]...)
	}
	q.history = append(q.history, t)
}
