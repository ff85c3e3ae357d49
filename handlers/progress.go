package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/xeipuuv/gojsonschema"

	"github.com/videoflix/videoflix-api/errors"
	"github.com/videoflix/videoflix-api/log"
	"github.com/videoflix/videoflix-api/queue"
	"github.com/videoflix/videoflix-api/store"
)

var RecordProgressRequestSchemaDefinition string = `{
	"type": "object",
	"properties": {
		"user_id":          {"type": "integer", "minimum": 1},
		"video_id":         {"type": "integer", "minimum": 1},
		"progress_seconds": {"type": "integer", "minimum": 0}
	},
	"required": ["user_id", "video_id", "progress_seconds"],
	"additionalProperties": false
}`

type RecordProgressRequest struct {
	UserID          int64 `json:"user_id"`
	VideoID         int64 `json:"video_id"`
	ProgressSeconds int64 `json:"progress_seconds"`
}

type ProgressResponse struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	VideoID         int64     `json:"video_id"`
	ProgressSeconds int64     `json:"progress_seconds"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toProgressResponse(wh *store.WatchHistory) ProgressResponse {
	return ProgressResponse{
		ID:              wh.ID,
		UserID:          wh.UserID,
		VideoID:         wh.VideoID,
		ProgressSeconds: wh.ProgressSeconds,
		UpdatedAt:       wh.UpdatedAt,
	}
}

// RecordProgress upserts a user's resume point. A fresh row responds
// 201, an update responds 200.
func (d *VideoflixHandlersCollection) RecordProgress() httprouter.Handle {
	schema := inputSchemasCompiled["RecordProgress"]

	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		var progressRequest RecordProgressRequest

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
		} else if err := json.Unmarshal(payload, &progressRequest); err != nil {
			errors.WriteHTTPBadRequest(w, "Invalid request payload", err)
			return
		}

		wh, created, err := d.DB.Upsert(req.Context(), progressRequest.UserID, progressRequest.VideoID, progressRequest.ProgressSeconds)
		if err != nil {
			errors.WriteHTTPError(w, "Cannot record progress", err)
			return
		}

		d.requestWatchHistoryExport(req.Context())

		w.Header().Set("Content-Type", "application/json")
		if created {
			w.WriteHeader(http.StatusCreated)
		}
		_ = json.NewEncoder(w).Encode(toProgressResponse(wh))
	}
}

// requestWatchHistoryExport enqueues an analytics export of the watch
// history table, rate limited so bursts of progress writes collapse
// into one export per interval. The scheduled hourly export publishes
// directly and bypasses the gate.
func (d *VideoflixHandlersCollection) requestWatchHistoryExport(ctx context.Context) {
	if !d.ExportGate.Allow("userwatchhistory") {
		return
	}
	job := queue.NewExportSnapshotJob(queue.ExportSnapshotPayload{Name: "userwatchhistory"})
	if err := d.Queue.Publish(ctx, job); err != nil {
		log.LogError(job.ID, "error enqueueing watch history export", err)
	}
}

// ListProgress returns a user's watch history, optionally narrowed to
// one video via the video_id query parameter.
func (d *VideoflixHandlersCollection) ListProgress() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		userID, err := strconv.ParseInt(req.URL.Query().Get("user_id"), 10, 64)
		if err != nil {
			errors.WriteHTTPBadRequest(w, "Invalid or missing user_id", err)
			return
		}

		var videoID *int64
		if raw := req.URL.Query().Get("video_id"); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				errors.WriteHTTPBadRequest(w, "Invalid video_id", err)
				return
			}
			videoID = &id
		}

		rows, err := d.DB.ListForUser(req.Context(), userID, videoID)
		if err != nil {
			errors.WriteHTTPInternalServerError(w, "Cannot list progress", err)
			return
		}

		resp := make([]ProgressResponse, 0, len(rows))
		for i := range rows {
			resp = append(resp, toProgressResponse(&rows[i]))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// DeleteProgress removes a watch history row. The route is gated by the
// admin token, so the actor carries administrative privilege.
func (d *VideoflixHandlersCollection) DeleteProgress() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, params httprouter.Params) {
		id, err := strconv.ParseInt(params.ByName("id"), 10, 64)
		if err != nil {
			errors.WriteHTTPBadRequest(w, "Invalid progress id", err)
			return
		}

		if err := d.DB.DeleteWatchHistory(req.Context(), id, store.IdentityContext{IsAdmin: true}); err != nil {
			errors.WriteHTTPError(w, "Cannot delete progress", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
