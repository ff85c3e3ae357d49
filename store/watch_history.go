package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	xerrors "github.com/videoflix/videoflix-api/errors"
)

// WatchHistory is one user's resume point on one video. The storage
// layer enforces at most one row per (UserID, VideoID).
type WatchHistory struct {
	ID              int64
	UserID          int64
	VideoID         int64
	ProgressSeconds int64
	UpdatedAt       time.Time
}

// Upsert records progress, inserting or updating the row for
// (userID, videoID). The returned bool is true when a new row was
// created. Progress above a known video duration is a contract error.
func (d *DB) Upsert(ctx context.Context, userID, videoID, progress int64) (*WatchHistory, bool, error) {
	if progress < 0 {
		return nil, false, xerrors.Contract(fmt.Errorf("progress must be non-negative, got %d", progress))
	}

	var duration sql.NullInt64
	err := d.sql.QueryRowContext(ctx, `SELECT duration FROM videos WHERE id = $1`, videoID).Scan(&duration)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, xerrors.NotFound(fmt.Errorf("video %d not found", videoID))
	}
	if err != nil {
		return nil, false, fmt.Errorf("error reading video duration: %w", err)
	}
	if duration.Valid && progress > duration.Int64 {
		return nil, false, xerrors.Contract(fmt.Errorf("progress %d exceeds video duration %d", progress, duration.Int64))
	}

	// xmax = 0 only holds for freshly inserted tuples, which tells an
	// insert apart from a conflict-update in a single statement.
	row := d.sql.QueryRowContext(ctx,
		`INSERT INTO user_watch_history (user_id, video_id, progress_seconds, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (user_id, video_id)
		 DO UPDATE SET progress_seconds = EXCLUDED.progress_seconds, updated_at = now()
		 RETURNING id, user_id, video_id, progress_seconds, updated_at, (xmax = 0) AS created`,
		userID, videoID, progress)

	var wh WatchHistory
	var created bool
	if err := row.Scan(&wh.ID, &wh.UserID, &wh.VideoID, &wh.ProgressSeconds, &wh.UpdatedAt, &created); err != nil {
		return nil, false, fmt.Errorf("error upserting watch history: %w", err)
	}
	return &wh, created, nil
}

// ListForUser returns the user's rows, most recently updated first,
// optionally narrowed to one video.
func (d *DB) ListForUser(ctx context.Context, userID int64, videoID *int64) ([]WatchHistory, error) {
	query := `SELECT id, user_id, video_id, progress_seconds, updated_at FROM user_watch_history WHERE user_id = $1`
	args := []any{userID}
	if videoID != nil {
		query += ` AND video_id = $2`
		args = append(args, *videoID)
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := d.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing watch history: %w", err)
	}
	defer rows.Close()

	var result []WatchHistory
	for rows.Next() {
		var wh WatchHistory
		if err := rows.Scan(&wh.ID, &wh.UserID, &wh.VideoID, &wh.ProgressSeconds, &wh.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning watch history: %w", err)
		}
		result = append(result, wh)
	}
	return result, rows.Err()
}

// DeleteWatchHistory removes a row. Restricted to administrators.
func (d *DB) DeleteWatchHistory(ctx context.Context, id int64, actor IdentityContext) error {
	if !actor.IsAdmin {
		return xerrors.Forbidden(fmt.Errorf("watch history delete requires administrative privilege"))
	}

	res, err := d.sql.ExecContext(ctx, `DELETE FROM user_watch_history WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting watch history: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return xerrors.NotFound(fmt.Errorf("watch history %d not found", id))
	}
	return nil
}
