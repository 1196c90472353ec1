package youtube

import (
	"context"
	"fmt"

	"github.com/kkdai/youtube/v2"
	"go.uber.org/zap"

	"github.com/latoulicious/Hokko/pkg/common"
)

const sourceName = "youtube"

// Resolver turns a query into tracks
type Resolver interface {
	Resolve(ctx context.Context, query string) (*common.LoadResult, error)
}

// MetadataClient is the subset of the YouTube client the fallback needs
type MetadataClient interface {
	GetVideoContext(ctx context.Context, url string) (*youtube.Video, error)
	GetPlaylistContext(ctx context.Context, url string) (*youtube.Playlist, error)
}

// FallbackResolver asks the wrapped resolver first. When it fails or finds
// nothing for a YouTube URL, the track metadata is fetched directly from
// YouTube. Such tracks carry no node handle and are played by identifier.
type FallbackResolver struct {
	next   Resolver
	client MetadataClient
	logger *zap.Logger
}

// NewFallbackResolver wraps next. A nil client uses the default YouTube client.
func NewFallbackResolver(next Resolver, client MetadataClient, logger *zap.Logger) *FallbackResolver {
	if client == nil {
		client = &youtube.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackResolver{
		next:   next,
		client: client,
		logger: logger.Named("youtube"),
	}
}

// Resolve implements Resolver
func (r *FallbackResolver) Resolve(ctx context.Context, query string) (*common.LoadResult, error) {
	result, err := r.next.Resolve(ctx, query)
	if err == nil && !result.IsEmpty() {
		return result, nil
	}
	if !IsYouTubeURL(query) {
		return result, err
	}

	r.logger.Info("Falling back to YouTube metadata", zap.String("query", query), zap.Error(err))

	fallback, ferr := r.fetch(ctx, query)
	if ferr != nil {
		r.logger.Warn("YouTube metadata fallback failed", zap.String("query", query), zap.Error(ferr))
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return fallback, nil
}

func (r *FallbackResolver) fetch(ctx context.Context, query string) (*common.LoadResult, error) {
	if IsPlaylistURL(query) {
		playlist, err := r.client.GetPlaylistContext(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch playlist: %w", err)
		}

		tracks := make([]common.Track, 0, len(playlist.Videos))
		for _, entry := range playlist.Videos {
			tracks = append(tracks, common.Track{
				Identifier: entry.ID,
				Title:      entry.Title,
				Author:     entry.Author,
				URI:        WatchURL(entry.ID),
				Duration:   entry.Duration,
				Source:     sourceName,
				ArtworkURL: ThumbnailURL(entry.ID),
			})
		}
		if len(tracks) == 0 {
			return &common.LoadResult{Type: common.LoadTypeEmpty}, nil
		}
		return &common.LoadResult{
			Type:     common.LoadTypePlaylist,
			Playlist: &common.Playlist{Name: playlist.Title, Tracks: tracks},
		}, nil
	}

	video, err := r.client.GetVideoContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch video: %w", err)
	}

	track := common.Track{
		Identifier: video.ID,
		Title:      video.Title,
		Author:     video.Author,
		URI:        WatchURL(video.ID),
		Duration:   video.Duration,
		Stream:     video.HLSManifestURL != "" && video.Duration == 0,
		Source:     sourceName,
		ArtworkURL: ThumbnailURL(video.ID),
	}
	if len(video.Thumbnails) > 0 {
		track.ArtworkURL = video.Thumbnails[len(video.Thumbnails)-1].URL
	}
	return &common.LoadResult{Type: common.LoadTypeTrack, Track: &track}, nil
}
