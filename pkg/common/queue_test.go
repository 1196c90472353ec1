package common

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func track(name string) Track {
	return Track{Encoded: "enc-" + name, Title: name, Duration: 3 * time.Minute, Source: "youtube"}
}

func titles(tracks []Track) []string {
	out := make([]string, len(tracks))
	for i, t := range tracks {
		out[i] = t.Title
	}
	return out
}

func TestQueue_AddPreservesInsertionOrder(t *testing.T) {
	q := NewQueue(5)

	q.Add(track("a"), track("b"))
	q.Add(track("c"))
	q.Add(track("d"), track("e"), track("f"))

	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, titles(q.Upcoming()))
	assert.Equal(t, 6, q.Size())

	_, ok := q.Current()
	assert.False(t, ok, "Add must not promote a current track")
}

func TestQueue_AdvanceAndRewindScenario(t *testing.T) {
	q := NewQueue(5)
	q.Add(track("A"), track("B"))

	cur, ok := q.Advance()
	require.True(t, ok)
	assert.Equal(t, "A", cur.Title)
	assert.Equal(t, []string{"B"}, titles(q.Upcoming()))
	assert.Empty(t, q.History())

	cur, ok = q.Advance()
	require.True(t, ok)
	assert.Equal(t, "B", cur.Title)
	assert.Empty(t, q.Upcoming())
	assert.Equal(t, []string{"A"}, titles(q.History()))

	cur, ok = q.Rewind()
	require.True(t, ok)
	assert.Equal(t, "A", cur.Title)
	assert.Equal(t, []string{"B"}, titles(q.Upcoming()))
	assert.Empty(t, q.History())
}

func TestQueue_AdvanceOnEmptyClearsCurrent(t *testing.T) {
	q := NewQueue(5)
	q.Add(track("A"))
	q.Advance()

	_, ok := q.Advance()
	assert.False(t, ok)

	_, ok = q.Current()
	assert.False(t, ok)
	assert.Equal(t, []string{"A"}, titles(q.History()))
}

func TestQueue_DropCurrentSkipsHistory(t *testing.T) {
	q := NewQueue(5)
	q.Add(track("A"), track("B"), track("C"))

	q.Advance()
	q.Advance()
	q.DropCurrent()

	_, ok := q.Current()
	assert.False(t, ok)

	cur, ok := q.Advance()
	require.True(t, ok)
	assert.Equal(t, "C", cur.Title)
	assert.Equal(t, []string{"A"}, titles(q.History()))
}

func TestQueue_RewindWithEmptyHistoryIsNoop(t *testing.T) {
	q := NewQueue(5)
	q.Add(track("A"), track("B"))
	q.Advance()

	_, ok := q.Rewind()
	assert.False(t, ok)

	cur, _ := q.Current()
	assert.Equal(t, "A", cur.Title)
	assert.Equal(t, []string{"B"}, titles(q.Upcoming()))
}

func TestQueue_RewindThenAdvanceRoundTrip(t *testing.T) {
	q := NewQueue(5)
	q.Add(track("A"), track("B"), track("C"), track("D"))
	q.Advance()
	q.Advance()

	before := titles(q.Upcoming())
	cur, _ := q.Current()

	_, ok := q.Rewind()
	require.True(t, ok)
	_, ok = q.Advance()
	require.True(t, ok)

	after, _ := q.Current()
	assert.Equal(t, before, titles(q.Upcoming()))
	assert.True(t, cur.Same(after))
}

func TestQueue_HistoryEvictsOldest(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		played   int
		want     []string
	}{
		{name: "below capacity", capacity: 3, played: 2, want: []string{"t0", "t1"}},
		{name: "exactly full", capacity: 3, played: 3, want: []string{"t0", "t1", "t2"}},
		{name: "overflow evicts oldest", capacity: 3, played: 6, want: []string{"t3", "t4", "t5"}},
		{name: "capacity one", capacity: 1, played: 4, want: []string{"t3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQueue(tt.capacity)
			for i := 0; i <= tt.played; i++ {
				q.Add(track(fmt.Sprintf("t%d", i)))
			}
			for i := 0; i <= tt.played; i++ {
				q.Advance()
			}

			history := q.History()
			assert.LessOrEqual(t, len(history), tt.capacity)
			assert.Equal(t, tt.want, titles(history))
		})
	}
}

func TestQueue_ClearUpcomingKeepsCurrentAndHistory(t *testing.T) {
	q := NewQueue(5)
	q.Add(track("A"), track("B"), track("C"), track("D"))
	q.Advance()
	q.Advance()

	removed := q.ClearUpcoming()

	assert.Equal(t, 2, removed)
	assert.Empty(t, q.Upcoming())
	cur, ok := q.Current()
	require.True(t, ok)
	assert.Equal(t, "B", cur.Title)
	assert.Equal(t, []string{"A"}, titles(q.History()))
}

func TestQueue_TrackInAtMostOnePlace(t *testing.T) {
	q := NewQueue(2)
	q.Add(track("A"), track("B"), track("C"))
	q.Advance()
	q.Advance()
	q.Rewind()
	q.Advance()
	q.Advance()

	seen := map[string]int{}
	for _, tr := range q.Upcoming() {
		seen[tr.Title]++
	}
	for _, tr := range q.History() {
		seen[tr.Title]++
	}
	if cur, ok := q.Current(); ok {
		seen[cur.Title]++
	}

	for title, count := range seen {
		assert.Equal(t, 1, count, "track %s appears %d times", title, count)
	}
}

func TestQueue_NonPositiveCapacityUsesDefault(t *testing.T) {
	q := NewQueue(0)
	assert.Equal(t, DefaultHistorySize, q.HistorySize())
}

func TestQueue_Reset(t *testing.T) {
	q := NewQueue(5)
	q.Add(track("A"), track("B"))
	q.Advance()
	q.Advance()

	q.Reset()

	assert.Empty(t, q.Upcoming())
	assert.Empty(t, q.History())
	_, ok := q.Current()
	assert.False(t, ok)
}

func TestQueue_UpcomingIsACopy(t *testing.T) {
	q := NewQueue(5)
	q.Add(track("A"))

	snapshot := q.Upcoming()
	snapshot[0].Title = "mutated"

	assert.Equal(t, "A", q.Upcoming()[0].Title)
}
