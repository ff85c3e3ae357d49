package pipeline

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/videoflix/videoflix-api/clients"
	"github.com/videoflix/videoflix-api/config"
	"github.com/videoflix/videoflix-api/log"
	"github.com/videoflix/videoflix-api/metrics"
	"github.com/videoflix/videoflix-api/queue"
	"github.com/videoflix/videoflix-api/video"
)

// handleTranscodeHLS produces the full rendition ladder for one source
// and uploads it under hls/{base}/. Variant playlists are rewritten to
// presigned segment URLs before upload, and the master playlist is
// written strictly last: its presence marks the rendition set complete,
// so a crash mid-upload never leaves a readable-but-partial set.
func (c *Coordinator) handleTranscodeHLS(ctx context.Context, job queue.Job) error {
	p := job.TranscodeHLS

	v, err := c.DB.GetVideo(ctx, p.VideoID)
	if err != nil {
		return err
	}
	if v.HLSMasterKey != "" {
		if exists, err := c.ObjectStore.Exists(ctx, v.HLSMasterKey); err == nil && exists {
			log.Log(job.ID, "rendition set already present, skipping", "video_id", p.VideoID, "key", v.HLSMasterKey)
			return nil
		}
	}

	scope := clients.NewTempScope()
	defer scope.Release()

	sourcePath, err := scope.File(path.Ext(p.SourceKey))
	if err != nil {
		return err
	}
	if err := c.ObjectStore.Get(ctx, p.SourceKey, sourcePath); err != nil {
		return err
	}

	outDir, err := scope.Dir()
	if err != nil {
		return err
	}

	base := config.BaseFromSourceKey(p.SourceKey)
	encodeStart := time.Now()
	if err := video.TranscodeAllHeights(ctx, sourcePath, outDir, base); err != nil {
		return err
	}
	metrics.Metrics.TranscodeRenditionDuration.Observe(time.Since(encodeStart).Seconds() / float64(len(video.RenditionHeights)))

	sign := c.signer()
	for _, height := range video.RenditionHeights {
		playlistPath := filepath.Join(outDir, config.VariantPlaylistName(base, height))
		if err := video.RewriteVariantPlaylist(playlistPath, base, sign); err != nil {
			return err
		}
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return fmt.Errorf("failed to list rendition output: %w", err)
	}
	prefix := config.HLSPrefix(base)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := c.ObjectStore.Put(ctx, filepath.Join(outDir, entry.Name()), prefix+entry.Name()); err != nil {
			return err
		}
	}

	masterText, err := video.BuildMasterPlaylist(base, video.RenditionHeights, sign)
	if err != nil {
		return err
	}
	masterPath := filepath.Join(outDir, path.Base(config.MasterPlaylistKey(base)))
	if err := os.WriteFile(masterPath, []byte(masterText), 0644); err != nil {
		return fmt.Errorf("failed to write master playlist: %w", err)
	}
	masterKey := config.MasterPlaylistKey(base)
	if err := c.ObjectStore.Put(ctx, masterPath, masterKey); err != nil {
		return err
	}

	if err := c.DB.SetHLSMasterKey(ctx, p.VideoID, masterKey); err != nil {
		return err
	}
	log.Log(job.ID, "rendition set uploaded", "video_id", p.VideoID, "key", masterKey, "heights", fmt.Sprint(video.RenditionHeights))
	return c.DB.PromoteReady(ctx, p.VideoID)
}
