package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/latoulicious/Hokko/pkg/common"
)

func setupTestDatabase(t *testing.T) *Database {
	t.Helper()

	config := DefaultConfig()
	config.DatabasePath = filepath.Join(t.TempDir(), "test.db")

	db, err := NewDatabase(config, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testResult(titles ...string) *common.LoadResult {
	tracks := make([]common.Track, len(titles))
	for i, title := range titles {
		tracks[i] = common.Track{
			Encoded:  "enc-" + title,
			Title:    title,
			URI:      "https://example.com/" + title,
			Duration: 3 * time.Minute,
			Source:   "youtube",
		}
	}
	if len(tracks) == 1 {
		return &common.LoadResult{Type: common.LoadTypeTrack, Track: &tracks[0]}
	}
	return &common.LoadResult{
		Type:     common.LoadTypePlaylist,
		Playlist: &common.Playlist{Name: "mix", Tracks: tracks},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
		want   error
	}{
		{name: "defaults", modify: func(*Config) {}},
		{name: "empty path", modify: func(c *Config) { c.DatabasePath = "" }, want: ErrInvalidDatabasePath},
		{name: "zero connections", modify: func(c *Config) { c.MaxConnections = 0 }, want: ErrInvalidMaxConnections},
		{name: "zero timeout", modify: func(c *Config) { c.ConnectionTimeout = 0 }, want: ErrInvalidConnectionTimeout},
		{name: "zero ttl", modify: func(c *Config) { c.TTL = 0 }, want: ErrInvalidCacheTTL},
		{name: "bad sync mode", modify: func(c *Config) { c.SynchronousMode = "FAST" }, want: ErrInvalidSynchronousMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.modify(c)

			err := c.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewDatabase_InvalidConfig(t *testing.T) {
	db, err := NewDatabase(&Config{}, nil)
	assert.ErrorIs(t, err, ErrInvalidDatabasePath)
	assert.Nil(t, db)
}

func TestDatabase_ResolveCache(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	result := testResult("a", "b")
	require.NoError(t, db.CacheResolve(ctx, "my mix", result, time.Hour))

	cached, err := db.GetCachedResolve(ctx, "  my mix ")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, result, cached)

	// Test non-existent query
	cached, err = db.GetCachedResolve(ctx, "unknown")
	assert.NoError(t, err)
	assert.Nil(t, cached)

	// Replacing keeps a single row
	require.NoError(t, db.CacheResolve(ctx, "my mix", testResult("c"), time.Hour))
	cached, err = db.GetCachedResolve(ctx, "my mix")
	require.NoError(t, err)
	assert.Equal(t, common.LoadTypeTrack, cached.Type)
	assert.Equal(t, "c", cached.Track.Title)
}

func TestDatabase_CleanExpiredCache(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	require.NoError(t, db.CacheResolve(ctx, "old", testResult("a"), -time.Minute))
	require.NoError(t, db.CacheResolve(ctx, "fresh", testResult("b"), time.Hour))

	cached, err := db.GetCachedResolve(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, cached, "expired entries are never served")

	stats, err := db.GetCacheStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &CacheStats{Live: 1, Expired: 1}, stats)

	removed, err := db.CleanExpiredCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	stats, err = db.GetCacheStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &CacheStats{Live: 1}, stats)
}

type countingResolver struct {
	calls  int
	result *common.LoadResult
	err    error
}

func (r *countingResolver) Resolve(context.Context, string) (*common.LoadResult, error) {
	r.calls++
	return r.result, r.err
}

func TestCachedResolver(t *testing.T) {
	ctx := context.Background()

	t.Run("serves repeated queries from cache", func(t *testing.T) {
		next := &countingResolver{result: testResult("a")}
		r := NewCachedResolver(next, setupTestDatabase(t), time.Hour, zaptest.NewLogger(t))

		for i := 0; i < 3; i++ {
			got, err := r.Resolve(ctx, "song a")
			require.NoError(t, err)
			assert.Equal(t, "a", got.Track.Title)
		}
		assert.Equal(t, 1, next.calls)
	})

	t.Run("empty results are not cached", func(t *testing.T) {
		next := &countingResolver{result: &common.LoadResult{Type: common.LoadTypeEmpty}}
		r := NewCachedResolver(next, setupTestDatabase(t), time.Hour, zaptest.NewLogger(t))

		for i := 0; i < 2; i++ {
			got, err := r.Resolve(ctx, "nothing")
			require.NoError(t, err)
			assert.True(t, got.IsEmpty())
		}
		assert.Equal(t, 2, next.calls)
	})

	t.Run("errors pass through", func(t *testing.T) {
		boom := errors.New("node down")
		next := &countingResolver{err: boom}
		r := NewCachedResolver(next, setupTestDatabase(t), time.Hour, zaptest.NewLogger(t))

		_, err := r.Resolve(ctx, "anything")
		assert.ErrorIs(t, err, boom)
	})
}
