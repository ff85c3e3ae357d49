package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	"github.com/xeipuuv/gojsonschema"

	"github.com/videoflix/videoflix-api/errors"
	"github.com/videoflix/videoflix-api/log"
	"github.com/videoflix/videoflix-api/metrics"
	"github.com/videoflix/videoflix-api/queue"
	"github.com/videoflix/videoflix-api/store"
)

var CreateVideoRequestSchemaDefinition string = `{
	"type": "object",
	"properties": {
		"title":       {"type": "string", "minLength": 1, "maxLength": 255},
		"description": {"type": "string"},
		"genre":       {"type": "string", "maxLength": 80},
		"source_key":  {"type": "string", "pattern": "^videos/.+"}
	},
	"required": ["title", "source_key"],
	"additionalProperties": false
}`

type CreateVideoRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Genre       string `json:"genre"`
	SourceKey   string `json:"source_key"`
}

type VideoResponse struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	Genre           string `json:"genre"`
	SourceKey       string `json:"source_key"`
	DurationSeconds *int64 `json:"duration_seconds"`
	Status          string `json:"status"`
}

func toVideoResponse(v *store.Video) VideoResponse {
	resp := VideoResponse{
		ID:          v.ID,
		Title:       v.Title,
		Description: v.Description,
		Genre:       v.Genre,
		SourceKey:   v.SourceKey,
		Status:      string(v.Status),
	}
	if v.Duration.Valid {
		resp.DurationSeconds = &v.Duration.Int64
	}
	return resp
}

// CreateVideo registers an already-uploaded source object and starts
// the ingestion pipeline for it.
func (d *VideoflixHandlersCollection) CreateVideo() httprouter.Handle {
	schema := inputSchemasCompiled["CreateVideo"]

	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		metrics.Metrics.CreateVideoRequestCount.Inc()

		var createRequest CreateVideoRequest

		if !HasContentType(req, "application/json") {
			errors.WriteHTTPUnsupportedMediaType(w, "Requires application/json content type", nil)
			return
		} else if payload, err := io.ReadAll(req.Body); err != nil {
			errors.WriteHTTPInternalServerError(w, "Cannot read payload", err)
			return
		} else if result, err := schema.Validate(gojsonschema.NewBytesLoader(payload)); err != nil {
			errors.WriteHTTPInternalServerError(w, "Cannot validate payload", err)
			return
		} else if !result.Valid() {
			errors.WriteHTTPBadRequest(w, "Invalid request payload", fmt.Errorf("%s", result.Errors()))
			return
		} else if err := json.Unmarshal(payload, &createRequest); err != nil {
			errors.WriteHTTPBadRequest(w, "Invalid request payload", err)
			return
		}

		exists, err := d.ObjectStore.Exists(req.Context(), createRequest.SourceKey)
		if err != nil {
			errors.WriteHTTPInternalServerError(w, "Cannot check source object", err)
			return
		}
		if !exists {
			errors.WriteHTTPBadRequest(w, "Source object not found in storage", fmt.Errorf("no object at %q", createRequest.SourceKey))
			return
		}

		video, err := d.DB.CreateVideo(req.Context(), createRequest.Title, createRequest.Description, createRequest.Genre, createRequest.SourceKey)
		if err != nil {
			errors.WriteHTTPInternalServerError(w, "Cannot create video", err)
			return
		}

		job := queue.NewProcessVideoJob(queue.ProcessVideoPayload{VideoID: video.ID, SourceKey: video.SourceKey})
		if err := d.Queue.Publish(req.Context(), job); err != nil {
			errors.WriteHTTPInternalServerError(w, "Cannot enqueue pipeline job", err)
			return
		}
		log.AddContext(job.ID, "video_id", video.ID, "source", video.SourceKey)
		log.Log(job.ID, "video registered")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(toVideoResponse(video))
	}
}

func (d *VideoflixHandlersCollection) GetVideo() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, params httprouter.Params) {
		id, err := strconv.ParseInt(params.ByName("id"), 10, 64)
		if err != nil {
			errors.WriteHTTPBadRequest(w, "Invalid video id", err)
			return
		}

		video, err := d.DB.GetVideo(req.Context(), id)
		if err != nil {
			errors.WriteHTTPError(w, "Cannot fetch video", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(toVideoResponse(video))
	}
}

func (d *VideoflixHandlersCollection) ListVideos() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		videos, err := d.DB.ListVideos(req.Context())
		if err != nil {
			errors.WriteHTTPInternalServerError(w, "Cannot list videos", err)
			return
		}

		resp := make([]VideoResponse, 0, len(videos))
		for i := range videos {
			resp = append(resp, toVideoResponse(&videos[i]))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// DeleteVideo removes the record and enqueues the storage sweep for the
// keys it held.
func (d *VideoflixHandlersCollection) DeleteVideo() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, params httprouter.Params) {
		id, err := strconv.ParseInt(params.ByName("id"), 10, 64)
		if err != nil {
			errors.WriteHTTPBadRequest(w, "Invalid video id", err)
			return
		}

		video, err := d.DB.DeleteVideo(req.Context(), id)
		if err != nil {
			errors.WriteHTTPError(w, "Cannot delete video", err)
			return
		}

		job := queue.NewDeleteAssetsJob(queue.DeleteAssetsPayload{
			VideoID:      video.ID,
			SourceKey:    video.SourceKey,
			ThumbnailKey: video.ThumbnailKey,
			HLSMasterKey: video.HLSMasterKey,
		})
		if err := d.Queue.Publish(req.Context(), job); err != nil {
			errors.WriteHTTPInternalServerError(w, "Cannot enqueue asset sweep", err)
			return
		}
		log.AddContext(job.ID, "video_id", video.ID)
		log.Log(job.ID, "video deleted, asset sweep enqueued")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]int64{"video_id": video.ID})
	}
}

type PlaybackResponse struct {
	VideoID           int64  `json:"video_id"`
	Status            string `json:"status"`
	DurationSeconds   *int64 `json:"duration_seconds"`
	ThumbnailURL      string `json:"thumbnail_url,omitempty"`
	MasterPlaylistURL string `json:"master_playlist_url,omitempty"`
}

// Playback returns presigned URLs for a video's playable artifacts.
// Videos still in the pipeline are a 404: nothing is playable yet.
func (d *VideoflixHandlersCollection) Playback() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, params httprouter.Params) {
		id, err := strconv.ParseInt(params.ByName("id"), 10, 64)
		if err != nil {
			errors.WriteHTTPBadRequest(w, "Invalid video id", err)
			return
		}

		video, err := d.DB.GetVideo(req.Context(), id)
		if err != nil {
			errors.WriteHTTPError(w, "Cannot fetch video", err)
			return
		}
		if video.HLSMasterKey == "" {
			errors.WriteHTTPNotFound(w, "Video is not playable yet", fmt.Errorf("video %d has no rendition set", id))
			return
		}

		resp := PlaybackResponse{VideoID: video.ID, Status: string(video.Status)}
		if video.Duration.Valid {
			resp.DurationSeconds = &video.Duration.Int64
		}
		resp.MasterPlaylistURL, err = d.ObjectStore.Presign(video.HLSMasterKey, d.PresignTTL)
		if err != nil {
			errors.WriteHTTPInternalServerError(w, "Cannot sign playback URL", err)
			return
		}
		if video.ThumbnailKey != "" {
			resp.ThumbnailURL, err = d.ObjectStore.Presign(video.ThumbnailKey, d.PresignTTL)
			if err != nil {
				errors.WriteHTTPInternalServerError(w, "Cannot sign thumbnail URL", err)
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
