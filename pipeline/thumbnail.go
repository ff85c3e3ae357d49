package pipeline

import (
	"context"
	"path"

	"github.com/videoflix/videoflix-api/clients"
	"github.com/videoflix/videoflix-api/config"
	"github.com/videoflix/videoflix-api/log"
	"github.com/videoflix/videoflix-api/queue"
	"github.com/videoflix/videoflix-api/video"
)

// handleThumbnail extracts the poster frame and uploads it. Re-delivery
// is cheap: when the record already points at an existing object the
// handler returns without touching the encoder.
func (c *Coordinator) handleThumbnail(ctx context.Context, job queue.Job) error {
	p := job.Thumbnail

	v, err := c.DB.GetVideo(ctx, p.VideoID)
	if err != nil {
		return err
	}
	if v.ThumbnailKey != "" {
		if exists, err := c.ObjectStore.Exists(ctx, v.ThumbnailKey); err == nil && exists {
			log.Log(job.ID, "thumbnail already present, skipping", "video_id", p.VideoID, "key", v.ThumbnailKey)
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

	thumbPath, err := scope.File(".jpg")
	if err != nil {
		return err
	}
	if err := video.ExtractThumbnail(ctx, sourcePath, thumbPath); err != nil {
		return err
	}

	key := config.ThumbnailKey(config.BaseFromSourceKey(p.SourceKey))
	if err := c.ObjectStore.Put(ctx, thumbPath, key); err != nil {
		return err
	}
	if err := c.DB.SetThumbnailKey(ctx, p.VideoID, key); err != nil {
		return err
	}
	log.Log(job.ID, "thumbnail uploaded", "video_id", p.VideoID, "key", key)
	return c.DB.PromoteReady(ctx, p.VideoID)
}
