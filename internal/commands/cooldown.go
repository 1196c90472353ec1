package commands

import (
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"golang.org/x/time/rate"
)

// Limit allows Uses invocations per guild every Per
type Limit struct {
	Uses int
	Per  time.Duration
}

// DefaultLimits are the per guild command cooldowns
var DefaultLimits = map[string]Limit{
	"play":     {Uses: 1, Per: 5 * time.Second},
	"stop":     {Uses: 1, Per: 10 * time.Second},
	"pause":    {Uses: 3, Per: 10 * time.Second},
	"resume":   {Uses: 3, Per: 10 * time.Second},
	"skip":     {Uses: 3, Per: 10 * time.Second},
	"previous": {Uses: 3, Per: 10 * time.Second},

	"queue show":  {Uses: 1, Per: 20 * time.Second},
	"queue clear": {Uses: 1, Per: 20 * time.Second},
}

type bucketKey struct {
	command string
	guildID snowflake.ID
}

// Cooldowns rate limits commands per guild with a token bucket per command
type Cooldowns struct {
	limits map[string]Limit
	now    func() time.Time

	mu      sync.Mutex
	buckets map[bucketKey]*rate.Limiter
}

// NewCooldowns creates cooldowns for limits. Commands without a limit are never throttled.
func NewCooldowns(limits map[string]Limit) *Cooldowns {
	return &Cooldowns{
		limits:  limits,
		now:     time.Now,
		buckets: make(map[bucketKey]*rate.Limiter),
	}
}

// Allow consumes one use of command in a guild. When the bucket is empty it
// returns false and how long until the next use is available.
func (c *Cooldowns) Allow(command string, guildID snowflake.ID) (bool, time.Duration) {
	limit, ok := c.limits[command]
	if !ok || limit.Uses <= 0 {
		return true, 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := bucketKey{command: command, guildID: guildID}
	limiter, ok := c.buckets[key]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(limit.Per/time.Duration(limit.Uses)), limit.Uses)
		c.buckets[key] = limiter
	}

	now := c.now()
	reservation := limiter.ReserveN(now, 1)
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Prune drops buckets that have refilled completely and returns how many were removed
func (c *Cooldowns) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, limiter := range c.buckets {
		if limiter.TokensAt(now) >= float64(limiter.Burst()) {
			delete(c.buckets, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked buckets
func (c *Cooldowns) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buckets)
}
