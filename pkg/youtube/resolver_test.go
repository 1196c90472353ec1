package youtube

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kkdai/youtube/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/latoulicious/Hokko/pkg/common"
)

type stubResolver struct {
	result *common.LoadResult
	err    error
}

func (s stubResolver) Resolve(context.Context, string) (*common.LoadResult, error) {
	return s.result, s.err
}

type stubClient struct {
	video    *youtube.Video
	playlist *youtube.Playlist
	err      error
	calls    int
}

func (c *stubClient) GetVideoContext(context.Context, string) (*youtube.Video, error) {
	c.calls++
	return c.video, c.err
}

func (c *stubClient) GetPlaylistContext(context.Context, string) (*youtube.Playlist, error) {
	c.calls++
	return c.playlist, c.err
}

var errNodeDown = errors.New("node down")

func TestFallbackResolver_NodeResultWins(t *testing.T) {
	found := &common.LoadResult{Type: common.LoadTypeTrack, Track: &common.Track{Encoded: "x", Title: "node"}}
	client := &stubClient{}
	r := NewFallbackResolver(stubResolver{result: found}, client, zaptest.NewLogger(t))

	got, err := r.Resolve(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Same(t, found, got)
	assert.Zero(t, client.calls)
}

func TestFallbackResolver_SearchesAreNotRetried(t *testing.T) {
	client := &stubClient{}
	r := NewFallbackResolver(stubResolver{err: errNodeDown}, client, zaptest.NewLogger(t))

	_, err := r.Resolve(context.Background(), "never gonna give you up")
	assert.ErrorIs(t, err, errNodeDown)
	assert.Zero(t, client.calls)
}

func TestFallbackResolver_Video(t *testing.T) {
	client := &stubClient{video: &youtube.Video{
		ID:       "dQw4w9WgXcQ",
		Title:    "Never Gonna Give You Up",
		Author:   "Rick Astley",
		Duration: 213 * time.Second,
		Thumbnails: youtube.Thumbnails{
			{URL: "https://i.ytimg.com/small.jpg"},
			{URL: "https://i.ytimg.com/large.jpg"},
		},
	}}
	r := NewFallbackResolver(stubResolver{result: &common.LoadResult{Type: common.LoadTypeEmpty}}, client, zaptest.NewLogger(t))

	got, err := r.Resolve(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	require.NoError(t, err)
	require.Equal(t, common.LoadTypeTrack, got.Type)

	track := got.Track
	assert.Empty(t, track.Encoded)
	assert.Equal(t, "dQw4w9WgXcQ", track.Identifier)
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", track.URI)
	assert.Equal(t, 213*time.Second, track.Duration)
	assert.Equal(t, "https://i.ytimg.com/large.jpg", track.ArtworkURL)
	assert.False(t, track.Stream)
}

func TestFallbackResolver_Playlist(t *testing.T) {
	client := &stubClient{playlist: &youtube.Playlist{
		Title: "Mix",
		Videos: []*youtube.PlaylistEntry{
			{ID: "aaaaaaaaaaa", Title: "One", Duration: time.Minute},
			{ID: "bbbbbbbbbbb", Title: "Two", Duration: 2 * time.Minute},
		},
	}}
	r := NewFallbackResolver(stubResolver{err: errNodeDown}, client, zaptest.NewLogger(t))

	got, err := r.Resolve(context.Background(), "https://www.youtube.com/playlist?list=PL123")
	require.NoError(t, err)
	require.Equal(t, common.LoadTypePlaylist, got.Type)
	assert.Equal(t, "Mix", got.Playlist.Name)
	assert.Equal(t, 3*time.Minute, got.Playlist.TotalDuration())
	assert.Equal(t, "https://img.youtube.com/vi/bbbbbbbbbbb/hqdefault.jpg", got.Playlist.Tracks[1].ArtworkURL)
}

func TestFallbackResolver_FallbackFailureKeepsOriginalOutcome(t *testing.T) {
	client := &stubClient{err: errors.New("video unavailable")}

	r := NewFallbackResolver(stubResolver{err: errNodeDown}, client, zaptest.NewLogger(t))
	_, err := r.Resolve(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	assert.ErrorIs(t, err, errNodeDown)

	empty := &common.LoadResult{Type: common.LoadTypeEmpty}
	r = NewFallbackResolver(stubResolver{result: empty}, client, zaptest.NewLogger(t))
	got, err := r.Resolve(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
}

func TestURLHelpers(t *testing.T) {
	tests := []struct {
		url      string
		id       string
		playlist bool
	}{
		{url: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", id: "dQw4w9WgXcQ"},
		{url: "https://youtu.be/dQw4w9WgXcQ?t=10", id: "dQw4w9WgXcQ"},
		{url: "https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PL1", id: "dQw4w9WgXcQ"},
		{url: "https://www.youtube.com/playlist?list=PL1", playlist: true},
		{url: "https://soundcloud.com/artist/track"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.playlist, IsPlaylistURL(tt.url))
			if tt.id != "" {
				assert.Equal(t, tt.id, ExtractVideoID(tt.url))
			}
		})
	}

	assert.Empty(t, ThumbnailURL(""))
	assert.Equal(t, "", ExtractVideoID("https://soundcloud.com/artist/track"))
}
