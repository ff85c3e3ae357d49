package pipeline

import (
	"context"
	"strconv"

	"github.com/videoflix/videoflix-api/log"
	"github.com/videoflix/videoflix-api/metrics"
	"github.com/videoflix/videoflix-api/queue"
)

// handleExportSnapshot runs one analytics export to the object store.
func (c *Coordinator) handleExportSnapshot(ctx context.Context, job queue.Job) error {
	name := job.ExportSnapshot.Name
	key, err := c.Exporter.Export(ctx, name)
	metrics.Metrics.ExportRunCount.WithLabelValues(name, strconv.FormatBool(err == nil)).Inc()
	if err != nil {
		return err
	}
	log.Log(job.ID, "export complete", "entity", name, "key", key)
	return nil
}
