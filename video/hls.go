package video

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/grafov/m3u8"
	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/videoflix/videoflix-api/config"
	xerrors "github.com/videoflix/videoflix-api/errors"
)

// URLSigner issues a time-limited read URL for a storage key. The
// renditioning engine uses it to rewrite playlists before upload.
type URLSigner func(key string) (string, error)

// TranscodeToHLS produces the variant playlist and segment files for
// one rendition height in outDir. Segment filenames follow the
// {base}_{H}p_NNN.ts pattern so that re-running a stage overwrites the
// same keys.
func TranscodeToHLS(ctx context.Context, inputPath, outDir, base string, height int) error {
	profile := ProfileForHeight(height)
	outPath := filepath.Join(outDir, config.VariantPlaylistName(base, height))
	segmentPattern := filepath.Join(outDir, config.SegmentFilenamePattern(base, height))

	var ffmpegErr bytes.Buffer
	cmd := ffmpeg.Input(inputPath).
		Output(outPath, ffmpeg.KwArgs{
			"vf":                   fmt.Sprintf("scale=-2:%d", height),
			"c:a":                  "aac",
			"ar":                   "48000",
			"b:a":                  "128k",
			"c:v":                  "h264",
			"profile:v":            "main",
			"crf":                  "20",
			"sc_threshold":         "0",
			"g":                    "48",
			"keyint_min":           "48",
			"hls_time":             "10",
			"hls_playlist_type":    "vod",
			"b:v":                  fmt.Sprintf("%dk", profile.Bitrate),
			"maxrate":              fmt.Sprintf("%dk", profile.Maxrate),
			"bufsize":              fmt.Sprintf("%dk", profile.Bufsize),
			"hls_segment_filename": segmentPattern,
		}).
		OverWriteOutput().
		WithErrorOutput(&ffmpegErr).
		Compile()

	if err := runWithContext(ctx, cmd); err != nil {
		return classifyEncoderError(fmt.Errorf("ffmpeg hls failed for height %d [%s]: %w", height, lastLines(ffmpegErr.String(), 10), err), ctx)
	}
	return nil
}

// TranscodeAllHeights runs the full ladder sequentially. The encoder
// saturates the machine on its own, so renditions are not parallelised.
func TranscodeAllHeights(ctx context.Context, inputPath, outDir, base string) error {
	for _, height := range RenditionHeights {
		if err := TranscodeToHLS(ctx, inputPath, outDir, base, height); err != nil {
			return err
		}
	}
	return nil
}

// ExtractThumbnail writes a single poster frame, taken one second in.
func ExtractThumbnail(ctx context.Context, inputPath, outPath string) error {
	var ffmpegErr bytes.Buffer
	cmd := ffmpeg.Input(inputPath, ffmpeg.KwArgs{"ss": "00:00:01"}).
		Output(outPath, ffmpeg.KwArgs{"vframes": "1"}).
		OverWriteOutput().
		WithErrorOutput(&ffmpegErr).
		Compile()

	if err := runWithContext(ctx, cmd); err != nil {
		return classifyEncoderError(fmt.Errorf("ffmpeg thumbnail failed [%s]: %w", lastLines(ffmpegErr.String(), 10), err), ctx)
	}
	return nil
}

// RewriteVariantPlaylist replaces every .ts segment line in the
// playlist at path with a presigned URL for the uploaded segment key
// hls/{base}/{segment}. All other lines pass through untouched.
func RewriteVariantPlaylist(path, base string, sign URLSigner) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read variant playlist %q: %w", path, err)
	}

	lines := strings.Split(string(content), "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasSuffix(trimmed, ".ts") {
			continue
		}
		signed, err := sign(config.HLSPrefix(base) + trimmed)
		if err != nil {
			return fmt.Errorf("failed to sign segment %q: %w", trimmed, err)
		}
		lines[i] = signed
	}

	return os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0644)
}

// BuildMasterPlaylist renders the master playlist, heights ascending,
// each variant entry presigned. The RESOLUTION width is the literal
// 1920 regardless of source aspect; legacy players depend on the exact
// bytes, so the text is built by hand rather than through a serializer.
func BuildMasterPlaylist(base string, heights []int, sign URLSigner) (string, error) {
	var sb strings.Builder
	sb.WriteString("#EXTM3U\n")
	for _, h := range heights {
		signed, err := sign(config.HLSPrefix(base) + config.VariantPlaylistName(base, h))
		if err != nil {
			return "", fmt.Errorf("failed to sign variant playlist for height %d: %w", h, err)
		}
		fmt.Fprintf(&sb, "#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=1920x%d\n", ProfileForHeight(h).DeclaredBandwidth(), h)
		sb.WriteString(signed + "\n")
	}
	return sb.String(), nil
}

// ParseMediaPlaylist decodes a variant playlist and returns its segment
// URIs in order.
func ParseMediaPlaylist(r io.Reader) ([]string, error) {
	playlist, playlistType, err := m3u8.DecodeFrom(r, true)
	if err != nil {
		return nil, fmt.Errorf("error decoding playlist: %w", err)
	}
	if playlistType != m3u8.MEDIA {
		return nil, fmt.Errorf("expected a media playlist")
	}
	mediaPlaylist, ok := playlist.(*m3u8.MediaPlaylist)
	if !ok || mediaPlaylist == nil {
		return nil, fmt.Errorf("failed to parse playlist as MediaPlaylist")
	}

	var uris []string
	for _, segment := range mediaPlaylist.Segments {
		// the segments list is a ring buffer; a nil element marks the end
		if segment == nil {
			break
		}
		uris = append(uris, segment.URI)
	}
	return uris, nil
}

// ParseMasterVariants decodes a master playlist and returns the variant
// URIs in order.
func ParseMasterVariants(r io.Reader) ([]string, error) {
	playlist, playlistType, err := m3u8.DecodeFrom(r, true)
	if err != nil {
		return nil, fmt.Errorf("error decoding playlist: %w", err)
	}
	if playlistType != m3u8.MASTER {
		return nil, fmt.Errorf("expected a master playlist")
	}
	masterPlaylist, ok := playlist.(*m3u8.MasterPlaylist)
	if !ok || masterPlaylist == nil {
		return nil, fmt.Errorf("failed to parse playlist as MasterPlaylist")
	}

	var uris []string
	for _, variant := range masterPlaylist.Variants {
		if variant == nil {
			continue
		}
		uris = append(uris, variant.URI)
	}
	return uris, nil
}

// classifyEncoderError maps an encoder exit onto the taxonomy. Only
// cancellation of the run itself is Cancelled; an expired stage
// deadline is a timeout and stays retriable, as does any other exit
// (the encoder is restartable and its inputs are still on disk).
func classifyEncoderError(err error, ctx context.Context) error {
	if ctx.Err() == context.Canceled {
		return xerrors.Cancelled(err)
	}
	return xerrors.Transient(err)
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// SegmentIndex parses the NNN ordinal out of a {base}_{H}p_NNN.ts name.
func SegmentIndex(segmentName string) (int, error) {
	stem := strings.TrimSuffix(segmentName, ".ts")
	idx := strings.LastIndex(stem, "_")
	if idx < 0 {
		return 0, fmt.Errorf("segment name %q has no index", segmentName)
	}
	i, err := strconv.Atoi(stem[idx+1:])
	if err != nil {
		return 0, fmt.Errorf("segment name %q has no index: %w", segmentName, err)
	}
	return i, nil
}
