package store

import (
	"context"
	"fmt"
)

// Snapshotter is the capability set the analytics exporter is
// polymorphic over: a stable entity name and a full-table snapshot as
// a record array.
type Snapshotter interface {
	SnapshotName() string
	Snapshot(ctx context.Context) ([]map[string]any, error)
}

type VideoSnapshots struct{ DB *DB }

func (s VideoSnapshots) SnapshotName() string { return "video" }

func (s VideoSnapshots) Snapshot(ctx context.Context) ([]map[string]any, error) {
	videos, err := s.DB.ListVideos(ctx)
	if err != nil {
		return nil, fmt.Errorf("error snapshotting videos: %w", err)
	}
	records := make([]map[string]any, 0, len(videos))
	for _, v := range videos {
		var duration any
		if v.Duration.Valid {
			duration = v.Duration.Int64
		}
		records = append(records, map[string]any{
			"id":             v.ID,
			"title":          v.Title,
			"description":    v.Description,
			"genre":          v.Genre,
			"source_key":     v.SourceKey,
			"duration":       duration,
			"thumbnail_key":  v.ThumbnailKey,
			"hls_master_key": v.HLSMasterKey,
			"status":         string(v.Status),
			"created_at":     v.CreatedAt,
			"updated_at":     v.UpdatedAt,
		})
	}
	return records, nil
}

type WatchHistorySnapshots struct{ DB *DB }

func (s WatchHistorySnapshots) SnapshotName() string { return "userwatchhistory" }

func (s WatchHistorySnapshots) Snapshot(ctx context.Context) ([]map[string]any, error) {
	rows, err := s.DB.sql.QueryContext(ctx,
		`SELECT id, user_id, video_id, progress_seconds, updated_at FROM user_watch_history ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("error snapshotting watch history: %w", err)
	}
	defer rows.Close()

	var records []map[string]any
	for rows.Next() {
		var wh WatchHistory
		if err := rows.Scan(&wh.ID, &wh.UserID, &wh.VideoID, &wh.ProgressSeconds, &wh.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning watch history snapshot: %w", err)
		}
		records = append(records, map[string]any{
			"id":               wh.ID,
			"user_id":          wh.UserID,
			"video_id":         wh.VideoID,
			"progress_seconds": wh.ProgressSeconds,
			"updated_at":       wh.UpdatedAt,
		})
	}
	return records, rows.Err()
}

type UserSnapshots struct{ DB *DB }

func (s UserSnapshots) SnapshotName() string { return "user" }

func (s UserSnapshots) Snapshot(ctx context.Context) ([]map[string]any, error) {
	rows, err := s.DB.sql.QueryContext(ctx,
		`SELECT id, username, email, is_admin, created_at FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("error snapshotting users: %w", err)
	}
	defer rows.Close()

	var records []map[string]any
	for rows.Next() {
		var (
			id        int64
			username  string
			email     string
			isAdmin   bool
			createdAt any
		)
		if err := rows.Scan(&id, &username, &email, &isAdmin, &createdAt); err != nil {
			return nil, fmt.Errorf("error scanning user snapshot: %w", err)
		}
		records = append(records, map[string]any{
			"id":         id,
			"username":   username,
			"email":      email,
			"is_admin":   isAdmin,
			"created_at": createdAt,
		})
	}
	return records, rows.Err()
}
