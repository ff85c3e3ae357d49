package config

import (
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSourceKey(t *testing.T) {
	now := time.Unix(1700000000, 0)
	key := SourceKey("clip.mp4", now)
	require.Regexp(t, `^videos/clip_1700000000_[a-z0-9]{7}\.mp4$`, key)
}

func TestBaseFromSourceKey(t *testing.T) {
	tests := map[string]string{
		"videos/clip_1700000000_ab3kx9z.mp4":       "clip",
		"videos/my_movie_1700000000_zzzzzzz.webm":  "my_movie",
		"videos/plain.mp4":                         "plain",
		"videos/trailing_12_abc.mov":               "trailing_12_abc", // trailer too short to match
		"videos/clip_1700000000_ab3kx9z":           "clip",
	}
	for key, want := range tests {
		require.Equal(t, want, BaseFromSourceKey(key), "key %s", key)
	}
}

func TestDerivedKeys(t *testing.T) {
	require.Equal(t, "thumbnails/clip.jpg", ThumbnailKey("clip"))
	require.Equal(t, "hls/clip/", HLSPrefix("clip"))
	require.Equal(t, "hls/clip/clip_master.m3u8", MasterPlaylistKey("clip"))
	require.Equal(t, "clip_720p.m3u8", VariantPlaylistName("clip", 720))
	require.Equal(t, "clip_720p_%03d.ts", SegmentFilenamePattern("clip", 720))
	require.Equal(t, "hls/clip/", HLSPrefixFromMasterKey("hls/clip/clip_master.m3u8"))
}

func TestExportKey(t *testing.T) {
	now := time.Date(2026, 8, 24, 13, 5, 7, 0, time.UTC)
	key := ExportKey("UserWatchHistory", now)
	require.Regexp(t, regexp.MustCompile(`^exports/userwatchhistory_2026-08-24_13-05-07_[a-zA-Z0-9]{8}\.json$`), key)
}

func TestExportKeyConcurrent(t *testing.T) {
	now := time.Date(2026, 8, 24, 13, 5, 7, 0, time.UTC)
	keys := make(chan string, 64)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 8; j++ {
				keys <- ExportKey("video", now)
			}
		}()
	}
	wg.Wait()
	close(keys)

	pattern := regexp.MustCompile(`^exports/video_2026-08-24_13-05-07_[a-zA-Z0-9]{8}\.json$`)
	for key := range keys {
		require.Regexp(t, pattern, key)
	}
}

func TestRandomTrailer(t *testing.T) {
	a, b := RandomTrailer(7), RandomTrailer(7)
	require.Len(t, a, 7)
	require.NotEqual(t, a, b)
}
