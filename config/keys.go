package config

import (
	"fmt"
	"math/rand"
	"path"
	"regexp"
	"strings"
	"time"
)

// Asset keys are storage-relative paths. All derived artifacts for a
// source upload share the filename stem ("base") as their namespace:
//
//	videos/{base}_{ts}_{rand7}.{ext}   source upload
//	thumbnails/{base}.jpg              poster
//	hls/{base}/...                     playlists and segments
const (
	sourcePrefix    = "videos/"
	thumbnailPrefix = "thumbnails/"
	hlsPrefix       = "hls/"
	exportPrefix    = "exports/"
)

const lowerAlnum = "abcdefghijklmnopqrstuvwxyz0123456789"
const mixedAlnum = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Uses the locked top-level source: key derivation is called from
// concurrent export workers.
func randomTrailer(charset string, length int) string {
	res := make([]byte, length)
	for i := 0; i < length; i++ {
		res[i] = charset[rand.Intn(len(charset))]
	}
	return string(res)
}

// RandomTrailer returns a lowercase alphanumeric string, used for
// source-key uniqueness and job IDs.
func RandomTrailer(length int) string {
	return randomTrailer(lowerAlnum, length)
}

// SourceKey derives the upload key for an original filename, e.g.
// "clip.mp4" -> "videos/clip_1700000000_ab3kx9z.mp4".
func SourceKey(filename string, now time.Time) string {
	ext := path.Ext(filename)
	base := strings.TrimSuffix(path.Base(filename), ext)
	return fmt.Sprintf("%s%s_%d_%s%s", sourcePrefix, base, now.Unix(), RandomTrailer(7), ext)
}

var sourceStemPattern = regexp.MustCompile(`^(.+)_\d+_[a-z0-9]{7}$`)

// BaseFromSourceKey recovers the filename stem from a source key by
// stripping the upload timestamp and random trailer. Keys that don't
// match the upload pattern fall back to their plain stem.
func BaseFromSourceKey(sourceKey string) string {
	stem := strings.TrimSuffix(path.Base(sourceKey), path.Ext(sourceKey))
	if m := sourceStemPattern.FindStringSubmatch(stem); m != nil {
		return m[1]
	}
	return stem
}

func ThumbnailKey(base string) string {
	return thumbnailPrefix + base + ".jpg"
}

func HLSPrefix(base string) string {
	return hlsPrefix + base + "/"
}

func MasterPlaylistKey(base string) string {
	return fmt.Sprintf("%s%s/%s_master.m3u8", hlsPrefix, base, base)
}

func VariantPlaylistName(base string, height int) string {
	return fmt.Sprintf("%s_%dp.m3u8", base, height)
}

// SegmentFilenamePattern is handed to the encoder; %03d is expanded to
// the segment index.
func SegmentFilenamePattern(base string, height int) string {
	return fmt.Sprintf("%s_%dp_%%03d.ts", base, height)
}

// HLSPrefixFromMasterKey trims the playlist filename off a master key,
// yielding the prefix under which the whole rendition set lives.
func HLSPrefixFromMasterKey(masterKey string) string {
	idx := strings.LastIndex(masterKey, "/")
	if idx < 0 {
		return masterKey + "/"
	}
	return masterKey[:idx+1]
}

// ExportKey names one analytics export object, e.g.
// "exports/userwatchhistory_2026-08-24_13-05-07_x1Yz9QkA.json".
func ExportKey(entity string, now time.Time) string {
	stamp := now.Format("2006-01-02_15-04-05")
	return fmt.Sprintf("%s%s_%s_%s.json", exportPrefix, strings.ToLower(entity), stamp, randomTrailer(mixedAlnum, 8))
}
