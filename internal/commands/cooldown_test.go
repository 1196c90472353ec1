package commands

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCooldowns() (*Cooldowns, *clock) {
	clk := &clock{t: time.Unix(1700000000, 0)}
	c := NewCooldowns(DefaultLimits)
	c.now = clk.now
	return c, clk
}

func TestCooldowns_SingleUse(t *testing.T) {
	c, clk := newTestCooldowns()

	ok, _ := c.Allow("play", 1)
	assert.True(t, ok)

	ok, wait := c.Allow("play", 1)
	assert.False(t, ok)
	assert.Equal(t, 5*time.Second, wait)

	// other guilds and commands have their own buckets
	ok, _ = c.Allow("play", 2)
	assert.True(t, ok)
	ok, _ = c.Allow("stop", 1)
	assert.True(t, ok)

	clk.advance(5 * time.Second)
	ok, _ = c.Allow("play", 1)
	assert.True(t, ok)
}

func TestCooldowns_Burst(t *testing.T) {
	c, clk := newTestCooldowns()

	for i := 0; i < 3; i++ {
		ok, _ := c.Allow("skip", 1)
		assert.True(t, ok, "use %d", i+1)
	}

	ok, wait := c.Allow("skip", 1)
	assert.False(t, ok)
	assert.Greater(t, wait, time.Duration(0))

	clk.advance(wait)
	ok, _ = c.Allow("skip", 1)
	assert.True(t, ok)
}

func TestCooldowns_UnlimitedCommands(t *testing.T) {
	c, _ := newTestCooldowns()
	for i := 0; i < 10; i++ {
		ok, _ := c.Allow("nowplaying", 1)
		assert.True(t, ok)
	}
	assert.Equal(t, 0, c.Len())
}

func TestCooldowns_Prune(t *testing.T) {
	c, clk := newTestCooldowns()
	c.Allow("play", 1)
	c.Allow("queue show", 1)
	assert.Equal(t, 2, c.Len())

	clk.advance(6 * time.Second)
	assert.Equal(t, 1, c.Prune())

	clk.advance(20 * time.Second)
	assert.Equal(t, 1, c.Prune())
	assert.Equal(t, 0, c.Len())
}
