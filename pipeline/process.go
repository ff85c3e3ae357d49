package pipeline

import (
	"context"

	"github.com/videoflix/videoflix-api/log"
	"github.com/videoflix/videoflix-api/queue"
)

// handleProcessVideo probes a fresh upload and fans it out into its
// thumbnail and renditioning stages. The probe runs inline because the
// stages enqueued below depend on the duration being on record: the
// encoder budget scales with it, and renditioning is the finalization
// step. A failed probe marks the record FAILED but the fan-out still
// proceeds, so the artifacts exist if the record is ever re-probed.
func (c *Coordinator) handleProcessVideo(ctx context.Context, job queue.Job) error {
	p := job.ProcessVideo
	if _, err := c.DB.GetVideo(ctx, p.VideoID); err != nil {
		// Deleted before the pipeline got to it. Nothing to do.
		return err
	}

	duration, err := c.probeSource(ctx, job.ID, p.VideoID, p.SourceKey)
	if err != nil {
		return err
	}

	stages := []queue.Job{
		queue.NewThumbnailJob(queue.ThumbnailPayload{VideoID: p.VideoID, SourceKey: p.SourceKey}),
		queue.NewTranscodeHLSJob(queue.TranscodeHLSPayload{VideoID: p.VideoID, SourceKey: p.SourceKey, DurationSeconds: duration}),
	}
	for _, stage := range stages {
		if err := c.Queue.Publish(ctx, stage); err != nil {
			return err
		}
		log.Log(job.ID, "enqueued pipeline stage", "stage", string(stage.Kind), "stage_job_id", stage.ID, "video_id", p.VideoID)
	}

	c.requestVideoExport(ctx, job.ID)
	return nil
}
