package youtube

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/kkdai/youtube/v2"
)

// IsYouTubeURL checks if a URL appears to be from YouTube
func IsYouTubeURL(urlStr string) bool {
	return strings.Contains(urlStr, "youtube.com") || strings.Contains(urlStr, "youtu.be")
}

// IsPlaylistURL reports whether a YouTube URL points at a playlist page
func IsPlaylistURL(urlStr string) bool {
	if !IsYouTubeURL(urlStr) {
		return false
	}
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return false
	}
	// watch?v=...&list=... plays the video, not the list
	return parsedURL.Query().Get("list") != "" && parsedURL.Query().Get("v") == ""
}

// ExtractVideoID extracts the video ID from a YouTube URL
func ExtractVideoID(youtubeURL string) string {
	if !IsYouTubeURL(youtubeURL) {
		return ""
	}

	// Handle youtu.be short links first, the library does not strip their query
	if strings.Contains(youtubeURL, "youtu.be") {
		parsedURL, err := url.Parse(youtubeURL)
		if err != nil {
			return ""
		}
		return strings.TrimPrefix(parsedURL.Path, "/")
	}

	id, err := youtube.ExtractVideoID(youtubeURL)
	if err != nil {
		return ""
	}
	return id
}

// WatchURL returns the canonical watch page for a video ID
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

// ThumbnailURL generates a thumbnail URL from a video ID
func ThumbnailURL(videoID string) string {
	if videoID == "" {
		return ""
	}
	return fmt.Sprintf("https://img.youtube.com/vi/%s/hqdefault.jpg", videoID)
}
