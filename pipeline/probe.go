package pipeline

import (
	"context"

	xerrors "github.com/videoflix/videoflix-api/errors"
	"github.com/videoflix/videoflix-api/log"
	"github.com/videoflix/videoflix-api/queue"
)

// probeSource reads the source duration off a presigned URL and records
// it. The probe works off the URL directly, so the source never touches
// local disk. Returns 0 when the source itself failed probing; the
// record is already FAILED in that case.
//
// An unreadable or zero-length source is a property of the upload, not
// of this run: it is terminal without retrying. Cancellations and
// machinery failures keep their own classification and propagate.
func (c *Coordinator) probeSource(ctx context.Context, jobID string, videoID int64, sourceKey string) (int64, error) {
	sourceURL, err := c.ObjectStore.Presign(sourceKey, c.PresignTTL)
	if err != nil {
		return 0, err
	}

	duration, err := c.Prober.Duration(ctx, sourceURL)
	if err != nil {
		if xerrors.KindOf(err) == xerrors.KindInputInvalid {
			log.LogError(jobID, "source failed probing, marking video failed", err, "video_id", videoID)
			return 0, c.DB.MarkFailed(ctx, videoID)
		}
		return 0, err
	}

	if err := c.DB.SetDuration(ctx, videoID, duration); err != nil {
		return 0, err
	}
	log.Log(jobID, "probed video", "video_id", videoID, "duration_seconds", duration)
	return duration, nil
}

// handleProbe re-probes a source on demand. Fresh uploads are probed
// inline by handleProcessVideo instead.
func (c *Coordinator) handleProbe(ctx context.Context, job queue.Job) error {
	p := job.Probe
	duration, err := c.probeSource(ctx, job.ID, p.VideoID, p.SourceKey)
	if err != nil || duration == 0 {
		return err
	}
	return c.DB.PromoteReady(ctx, p.VideoID)
}
