package clients

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContentTypeForKey(t *testing.T) {
	tests := map[string]string{
		"videos/clip_1700000000_ab3kx9z.mp4": "video/mp4",
		"videos/clip.WEBM":                   "video/webm",
		"videos/clip.ogg":                    "video/ogg",
		"videos/clip.mov":                    "video/quicktime",
		"videos/clip.avi":                    "video/x-msvideo",
		"thumbnails/clip.jpg":                "image/jpeg",
		"thumbnails/clip.JPEG":               "image/jpeg",
		"thumbnails/clip.png":                "image/png",
		"hls/clip/clip_master.m3u8":          "application/vnd.apple.mpegurl",
		"hls/clip/clip_720p_000.ts":          "video/mp2t",
		"exports/report.json":                "application/octet-stream",
		"noextension":                        "application/octet-stream",
	}
	for key, want := range tests {
		require.Equal(t, want, ContentTypeForKey(key), "key %s", key)
	}
}
