package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type VideoflixMetrics struct {
	CreateVideoRequestCount    prometheus.Counter
	APIRequestDurationSec      *prometheus.SummaryVec
	PipelineJobDurationSec     *prometheus.SummaryVec
	PipelineJobRetries         *prometheus.CounterVec
	TranscodeRenditionDuration prometheus.Histogram
	ExportRunCount             *prometheus.CounterVec
	StorageObjectsDeleted      prometheus.Counter
	QueueConsumeFailures       prometheus.Counter
}

func NewMetrics() *VideoflixMetrics {
	m := &VideoflixMetrics{
		CreateVideoRequestCount: promauto.NewCounter(prometheus.CounterOpts{
			Name: "create_video_request_count",
			Help: "The total number of requests to POST /api/videos",
		}),
		APIRequestDurationSec: promauto.NewSummaryVec(prometheus.SummaryOpts{
			Name: "api_request_duration_seconds",
			Help: "The latency of API requests in seconds broken up by success and status code",
		}, []string{"success", "status_code"}),
		PipelineJobDurationSec: promauto.NewSummaryVec(prometheus.SummaryOpts{
			Name: "pipeline_job_duration_seconds",
			Help: "The time pipeline jobs take to run, broken up by kind and success",
		}, []string{"kind", "success"}),
		PipelineJobRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_job_retry_count",
			Help: "The total number of pipeline job retries, broken up by kind",
		}, []string{"kind"}),
		TranscodeRenditionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "transcode_rendition_duration_seconds",
			Help:    "Time taken to transcode a single rendition",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 900},
		}),
		ExportRunCount: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "analytics_export_run_count",
			Help: "The total number of analytics export runs, broken up by entity and success",
		}, []string{"entity", "success"}),
		StorageObjectsDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "storage_objects_deleted_count",
			Help: "The total number of objects removed by asset deletion sweeps",
		}),
		QueueConsumeFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "queue_consume_failure_count",
			Help: "The total number of failed queue consume calls",
		}),
	}

	return m
}

var Metrics = NewMetrics()
