package clients

import (
	"path"
	"strings"
)

var contentTypes = map[string]string{
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".ogg":  "video/ogg",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".m3u8": "application/vnd.apple.mpegurl",
	".ts":   "video/mp2t",
}

// ContentTypeForKey infers a MIME type from the key's extension,
// case-insensitively, defaulting to application/octet-stream.
func ContentTypeForKey(key string) string {
	ext := strings.ToLower(path.Ext(key))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}
