package player

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/latoulicious/Hokko/pkg/common"
)

func TestStatusEmbed(t *testing.T) {
	long := track("An extremely long title that keeps going and going")
	long.ArtworkURL = "https://img/1.jpg"
	long.Duration = 3*time.Minute + 5*time.Second

	live := track("Radio")
	live.Stream = true

	tests := []struct {
		name  string
		snap  Snapshot
		check func(t *testing.T, e *discordgo.MessageEmbed, c []discordgo.MessageComponent)
	}{
		{
			name: "idle",
			snap: Snapshot{},
			check: func(t *testing.T, e *discordgo.MessageEmbed, c []discordgo.MessageComponent) {
				assert.Equal(t, "Nothing is playing", e.Description)
				assert.Empty(t, c)
			},
		},
		{
			name: "playing trims title",
			snap: Snapshot{Current: &long, Upcoming: []common.Track{track("Next")}},
			check: func(t *testing.T, e *discordgo.MessageEmbed, c []discordgo.MessageComponent) {
				assert.Equal(t, "🎶 Now Playing", e.Title)
				assert.Contains(t, e.Description, common.TrimText(long.Title, 32))
				assert.NotContains(t, e.Description, "going and going")
				assert.Equal(t, "https://img/1.jpg", e.Thumbnail.URL)
				assert.Equal(t, "3m 5s", e.Fields[2].Value)
				assert.Equal(t, "1 in queue", e.Footer.Text)
				require.Len(t, c, 1)
			},
		},
		{
			name: "paused livestream",
			snap: Snapshot{Current: &live, Paused: true},
			check: func(t *testing.T, e *discordgo.MessageEmbed, c []discordgo.MessageComponent) {
				assert.Equal(t, "⏸️ Paused", e.Title)
				assert.Equal(t, common.LiveLabel, e.Fields[2].Value)

				row := c[0].(discordgo.ActionsRow)
				prev := row.Components[0].(discordgo.Button)
				pause := row.Components[1].(discordgo.Button)
				assert.True(t, prev.Disabled, "previous disabled without history")
				assert.Equal(t, "▶️", pause.Emoji.Name)
				assert.Equal(t, PauseButtonID, pause.CustomID)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, StatusEmbed(tt.snap), StatusComponents(tt.snap))
		})
	}
}

func TestStatusDisplay_EditFailureSendsNew(t *testing.T) {
	m := &fakeMessenger{}
	d := newStatusDisplay(m, time.Second, zaptest.NewLogger(t))
	ctx := context.Background()
	cur := track("A")

	d.Render(ctx, testChannel, Snapshot{Current: &cur})
	first := d.messageID
	require.NotZero(t, first)

	d.Render(ctx, testChannel, Snapshot{Current: &cur})
	same := d.messageID
	assert.Equal(t, first, same)
	assert.Equal(t, 1, m.edits)

	m.editErr = common.ErrMessageGone
	d.Render(ctx, testChannel, Snapshot{Current: &cur})
	replaced := d.messageID
	assert.NotEqual(t, first, replaced)
	assert.Empty(t, m.deleted(), "a vanished message is not deleted again")

	m.editErr = errors.New("discord hiccup")
	d.Render(ctx, testChannel, Snapshot{Current: &cur})
	assert.Equal(t, []snowflake.ID{replaced}, m.deleted())
}

func TestStatusDisplay_DeleteIsBestEffort(t *testing.T) {
	m := &fakeMessenger{}
	d := newStatusDisplay(m, time.Second, zaptest.NewLogger(t))
	ctx := context.Background()

	d.Delete(ctx)
	assert.Empty(t, m.deleted())

	d.Render(ctx, 0, Snapshot{})
	assert.Equal(t, 0, m.displayWrites(), "no channel, nothing rendered")

	d.Render(ctx, testChannel, Snapshot{})
	d.Delete(ctx)
	d.Delete(ctx)
	assert.Len(t, m.deleted(), 1)
}
