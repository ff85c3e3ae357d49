package pipeline

import (
	"context"

	"github.com/videoflix/videoflix-api/config"
	"github.com/videoflix/videoflix-api/log"
	"github.com/videoflix/videoflix-api/metrics"
	"github.com/videoflix/videoflix-api/queue"
)

// handleDeleteAssets sweeps a deleted video's objects out of storage:
// the whole rendition prefix, the thumbnail, then the source. The
// record itself is already gone; the payload carries the keys it held.
func (c *Coordinator) handleDeleteAssets(ctx context.Context, job queue.Job) error {
	p := job.DeleteAssets
	removed := 0

	if p.HLSMasterKey != "" {
		n, err := c.ObjectStore.DeletePrefix(ctx, config.HLSPrefixFromMasterKey(p.HLSMasterKey))
		if err != nil {
			return err
		}
		removed += n
	}
	if p.ThumbnailKey != "" {
		if err := c.ObjectStore.DeleteObject(ctx, p.ThumbnailKey); err != nil {
			return err
		}
		removed++
	}
	if err := c.ObjectStore.DeleteObject(ctx, p.SourceKey); err != nil {
		return err
	}
	removed++

	metrics.Metrics.StorageObjectsDeleted.Add(float64(removed))
	log.Log(job.ID, "asset sweep complete", "video_id", p.VideoID, "objects", removed)

	c.requestVideoExport(ctx, job.ID)
	return nil
}
