package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/videoflix/videoflix-api/clients"
	xerrors "github.com/videoflix/videoflix-api/errors"
	"github.com/videoflix/videoflix-api/exporter"
	"github.com/videoflix/videoflix-api/log"
	"github.com/videoflix/videoflix-api/metrics"
	"github.com/videoflix/videoflix-api/queue"
	"github.com/videoflix/videoflix-api/store"
	"github.com/videoflix/videoflix-api/video"
)

// maxStageRetries bounds the retry loop for retriable failures. The
// backoff between deliveries is 1s, 4s, 16s.
const maxStageRetries = 3

// Coordinator consumes jobs from the queue and dispatches them to the
// stage handlers. ProcessVideo probes the source inline and then fans
// out thumbnail and renditioning jobs, which run as siblings and each
// record their own result field.
type Coordinator struct {
	Queue        queue.Queue
	DB           *store.DB
	ObjectStore  clients.ObjectStore
	Exporter     *exporter.Exporter
	ExportGate   *exporter.RateGate
	Prober       video.Prober
	Concurrency  int
	StageTimeout time.Duration
	PresignTTL   time.Duration

	// retryInterval is the first pause of the retry schedule; it grows
	// 4x per attempt.
	retryInterval time.Duration

	wg sync.WaitGroup
}

func NewCoordinator(q queue.Queue, db *store.DB, objectStore clients.ObjectStore, exp *exporter.Exporter, gate *exporter.RateGate, concurrency int, stageTimeout, presignTTL time.Duration) *Coordinator {
	return &Coordinator{
		Queue:        q,
		DB:           db,
		ObjectStore:  objectStore,
		Exporter:     exp,
		ExportGate:   gate,
		Prober:       video.Probe{},
		Concurrency:  concurrency,
		StageTimeout: stageTimeout,
		PresignTTL:   presignTTL,
	}
}

// Start launches the worker pool. Workers run until ctx ends; Wait
// blocks until they have drained.
func (c *Coordinator) Start(ctx context.Context) {
	for i := 0; i < c.Concurrency; i++ {
		c.wg.Add(1)
		worker := strconv.Itoa(i)
		go func() {
			defer c.wg.Done()
			c.runWorker(ctx, worker)
		}()
	}
	log.LogNoJobID("pipeline workers started", "concurrency", c.Concurrency)
}

func (c *Coordinator) Wait() {
	c.wg.Wait()
}

func (c *Coordinator) runWorker(ctx context.Context, worker string) {
	for {
		job, err := c.Queue.Consume(ctx)
		if err != nil {
			if xerrors.KindOf(err) == xerrors.KindCancelled {
				return
			}
			metrics.Metrics.QueueConsumeFailures.Inc()
			log.LogNoJobID("error consuming job", "worker", worker, "err", err)
			continue
		}
		_, _ = recovered(func() (bool, error) {
			c.dispatch(ctx, job)
			return true, nil
		})
	}
}

func (c *Coordinator) dispatch(ctx context.Context, job queue.Job) {
	log.AddContext(job.ID, "kind", string(job.Kind))
	log.Log(job.ID, "job started", "attempt", job.Attempt)

	start := time.Now()
	err := c.runWithRetries(ctx, job)
	success := strconv.FormatBool(err == nil)
	metrics.Metrics.PipelineJobDurationSec.WithLabelValues(string(job.Kind), success).Observe(time.Since(start).Seconds())

	if err == nil {
		log.Log(job.ID, "job completed", "duration", time.Since(start).String())
		return
	}

	if xerrors.KindOf(err) == xerrors.KindCancelled {
		// Shutdown took the job from under us. Hand it back so another
		// worker picks it up; delivery is at-least-once, not exactly-once.
		c.republish(job)
		return
	}

	log.LogError(job.ID, "job failed", err)
	if xerrors.KindOf(err) == xerrors.KindNotFound {
		// The record was deleted while the job was in flight.
		return
	}
	if id, ok := jobVideoID(job); ok {
		if markErr := c.DB.MarkFailed(context.Background(), id); markErr != nil {
			log.LogError(job.ID, "error marking video failed", markErr, "video_id", id)
		}
	}
}

// runWithRetries retries retriable failures with 1s, 4s, 16s pauses.
// Internal errors get a single retry; everything else in the taxonomy
// fails immediately.
func (c *Coordinator) runWithRetries(ctx context.Context, job queue.Job) error {
	interval := c.retryInterval
	if interval == 0 {
		interval = 1 * time.Second
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = interval
	bo.Multiplier = 4
	bo.RandomizationFactor = 0
	bo.MaxInterval = 16 * interval
	bo.MaxElapsedTime = 0

	attempt := 0
	operation := func() error {
		attempt++
		err := c.runStage(ctx, job)
		if err == nil {
			return nil
		}
		if !xerrors.IsRetriable(err) {
			return backoff.Permanent(err)
		}
		if xerrors.KindOf(err) == xerrors.KindInternal && attempt > 1 {
			return backoff.Permanent(err)
		}
		metrics.Metrics.PipelineJobRetries.WithLabelValues(string(job.Kind)).Inc()
		log.LogError(job.ID, "retrying job", err, "attempt", attempt)
		return err
	}
	return backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, maxStageRetries), ctx))
}

// runStage runs one handler attempt under the stage deadline.
func (c *Coordinator) runStage(ctx context.Context, job queue.Job) error {
	budget := c.stageBudget(ctx, job)
	stageCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	var err error
	switch job.Kind {
	case queue.KindProcessVideo:
		err = c.handleProcessVideo(stageCtx, job)
	case queue.KindProbe:
		err = c.handleProbe(stageCtx, job)
	case queue.KindThumbnail:
		err = c.handleThumbnail(stageCtx, job)
	case queue.KindTranscodeHLS:
		err = c.handleTranscodeHLS(stageCtx, job)
	case queue.KindDeleteAssets:
		err = c.handleDeleteAssets(stageCtx, job)
	case queue.KindExportSnapshot:
		err = c.handleExportSnapshot(stageCtx, job)
	default:
		return fmt.Errorf("no handler for job kind %q", job.Kind)
	}

	if err != nil && ctx.Err() == nil && stageCtx.Err() == context.DeadlineExceeded {
		// The stage deadline expired while the worker itself is healthy:
		// a timeout, not a shutdown. Timeouts burn the retry budget and
		// eventually fail the record; only shutdown interruptions hand
		// the job back to the queue.
		err = xerrors.Transient(fmt.Errorf("stage %s exceeded its %s budget: %w", job.Kind, budget, err))
	}
	return err
}

// stageBudget is the per-attempt deadline. Renditioning scales with the
// source length so long uploads are not cut off by the flat default.
func (c *Coordinator) stageBudget(ctx context.Context, job queue.Job) time.Duration {
	budget := c.StageTimeout
	if job.Kind != queue.KindTranscodeHLS {
		return budget
	}

	duration := job.TranscodeHLS.DurationSeconds
	if duration == 0 {
		if v, err := c.DB.GetVideo(ctx, job.TranscodeHLS.VideoID); err == nil && v.Duration.Valid {
			duration = v.Duration.Int64
		}
	}
	if scaled := time.Duration(3*duration) * time.Second; scaled > budget {
		budget = scaled
	}
	return budget
}

// republish hands a job back to the queue with a bumped attempt count.
// Uses a fresh context because the worker's own context is already dead.
func (c *Coordinator) republish(job queue.Job) {
	job.Attempt++
	pubCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Queue.Publish(pubCtx, job); err != nil {
		log.LogError(job.ID, "error republishing interrupted job", err)
		return
	}
	log.Log(job.ID, "republished interrupted job", "attempt", job.Attempt)
}

// requestVideoExport enqueues an analytics export of the videos table,
// rate limited so bursts of pipeline activity collapse into one export
// per interval.
func (c *Coordinator) requestVideoExport(ctx context.Context, jobID string) {
	if !c.ExportGate.Allow("video") {
		return
	}
	exportJob := queue.NewExportSnapshotJob(queue.ExportSnapshotPayload{Name: "video"})
	if err := c.Queue.Publish(ctx, exportJob); err != nil {
		log.LogError(jobID, "error enqueueing video export", err)
	}
}

func (c *Coordinator) signer() video.URLSigner {
	return func(key string) (string, error) {
		return c.ObjectStore.Presign(key, c.PresignTTL)
	}
}

func jobVideoID(job queue.Job) (int64, bool) {
	switch {
	case job.ProcessVideo != nil:
		return job.ProcessVideo.VideoID, true
	case job.Probe != nil:
		return job.Probe.VideoID, true
	case job.Thumbnail != nil:
		return job.Thumbnail.VideoID, true
	case job.TranscodeHLS != nil:
		return job.TranscodeHLS.VideoID, true
	}
	return 0, false
}

// recovered turns a panic in f into a normal error so one bad job
// cannot take a worker down.
func recovered[T any](f func() (T, error)) (t T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.LogNoJobID("panic in pipeline handler", "panic", rec, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return f()
}
