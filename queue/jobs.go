package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind names the handler a job is dispatched to.
type Kind string

const (
	KindProcessVideo   Kind = "process-video"
	KindProbe          Kind = "probe"
	KindThumbnail      Kind = "thumbnail"
	KindTranscodeHLS   Kind = "transcode-hls"
	KindDeleteAssets   Kind = "delete-assets"
	KindExportSnapshot Kind = "export-snapshot"
)

// Job is the wire envelope for one unit of pipeline work. Exactly one
// payload field is set, matching Kind. Attempt counts deliveries of
// this job and starts at 1 on first publish.
type Job struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueued_at"`

	ProcessVideo   *ProcessVideoPayload   `json:"process_video,omitempty"`
	Probe          *ProbePayload          `json:"probe,omitempty"`
	Thumbnail      *ThumbnailPayload      `json:"thumbnail,omitempty"`
	TranscodeHLS   *TranscodeHLSPayload   `json:"transcode_hls,omitempty"`
	DeleteAssets   *DeleteAssetsPayload   `json:"delete_assets,omitempty"`
	ExportSnapshot *ExportSnapshotPayload `json:"export_snapshot,omitempty"`
}

type ProcessVideoPayload struct {
	VideoID   int64  `json:"video_id"`
	SourceKey string `json:"source_key"`
}

type ProbePayload struct {
	VideoID   int64  `json:"video_id"`
	SourceKey string `json:"source_key"`
}

type ThumbnailPayload struct {
	VideoID   int64  `json:"video_id"`
	SourceKey string `json:"source_key"`
}

type TranscodeHLSPayload struct {
	VideoID         int64  `json:"video_id"`
	SourceKey       string `json:"source_key"`
	DurationSeconds int64  `json:"duration_seconds"`
}

type DeleteAssetsPayload struct {
	VideoID      int64  `json:"video_id"`
	SourceKey    string `json:"source_key"`
	ThumbnailKey string `json:"thumbnail_key"`
	HLSMasterKey string `json:"hls_master_key"`
}

type ExportSnapshotPayload struct {
	// Name selects the registered snapshotter ("video", "user",
	// "userwatchhistory").
	Name string `json:"name"`
}

func newJob(kind Kind) Job {
	return Job{
		ID:         uuid.New().String(),
		Kind:       kind,
		Attempt:    1,
		EnqueuedAt: time.Now().UTC(),
	}
}

func NewProcessVideoJob(p ProcessVideoPayload) Job {
	j := newJob(KindProcessVideo)
	j.ProcessVideo = &p
	return j
}

func NewProbeJob(p ProbePayload) Job {
	j := newJob(KindProbe)
	j.Probe = &p
	return j
}

func NewThumbnailJob(p ThumbnailPayload) Job {
	j := newJob(KindThumbnail)
	j.Thumbnail = &p
	return j
}

func NewTranscodeHLSJob(p TranscodeHLSPayload) Job {
	j := newJob(KindTranscodeHLS)
	j.TranscodeHLS = &p
	return j
}

func NewDeleteAssetsJob(p DeleteAssetsPayload) Job {
	j := newJob(KindDeleteAssets)
	j.DeleteAssets = &p
	return j
}

func NewExportSnapshotJob(p ExportSnapshotPayload) Job {
	j := newJob(KindExportSnapshot)
	j.ExportSnapshot = &p
	return j
}

// Validate checks that the envelope is well-formed: a known kind with
// its matching payload present.
func (j Job) Validate() error {
	var present bool
	switch j.Kind {
	case KindProcessVideo:
		present = j.ProcessVideo != nil
	case KindProbe:
		present = j.Probe != nil
	case KindThumbnail:
		present = j.Thumbnail != nil
	case KindTranscodeHLS:
		present = j.TranscodeHLS != nil
	case KindDeleteAssets:
		present = j.DeleteAssets != nil
	case KindExportSnapshot:
		present = j.ExportSnapshot != nil
	default:
		return fmt.Errorf("unknown job kind %q", j.Kind)
	}
	if !present {
		return fmt.Errorf("job %s has kind %s but no matching payload", j.ID, j.Kind)
	}
	return nil
}

func (j Job) marshal() ([]byte, error) {
	if err := j.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(j)
}

func unmarshalJob(raw []byte) (Job, error) {
	var j Job
	if err := json.Unmarshal(raw, &j); err != nil {
		return Job{}, fmt.Errorf("error unmarshalling job envelope: %w", err)
	}
	if err := j.Validate(); err != nil {
		return Job{}, err
	}
	return j, nil
}
