package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	xerrors "github.com/videoflix/videoflix-api/errors"
)

type VideoStatus string

const (
	VideoPending VideoStatus = "PENDING"
	VideoProbed  VideoStatus = "PROBED"
	VideoReady   VideoStatus = "READY"
	VideoFailed  VideoStatus = "FAILED"
)

// Video is the persistent record for one upload. SourceKey is set at
// creation and read-only thereafter; the derived fields are written
// independently by the pipeline stage that owns them.
type Video struct {
	ID           int64
	Title        string
	Description  string
	Genre        string
	SourceKey    string
	Duration     sql.NullInt64
	ThumbnailKey string
	HLSMasterKey string
	Status       VideoStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const videoColumns = "id, title, description, genre, source_key, duration, thumbnail_key, hls_master_key, status, created_at, updated_at"

func scanVideo(row interface{ Scan(...any) error }) (*Video, error) {
	var v Video
	err := row.Scan(&v.ID, &v.Title, &v.Description, &v.Genre, &v.SourceKey, &v.Duration,
		&v.ThumbnailKey, &v.HLSMasterKey, &v.Status, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, xerrors.NotFound(fmt.Errorf("video not found"))
	}
	if err != nil {
		return nil, fmt.Errorf("error scanning video: %w", err)
	}
	return &v, nil
}

func (d *DB) CreateVideo(ctx context.Context, title, description, genre, sourceKey string) (*Video, error) {
	row := d.sql.QueryRowContext(ctx,
		`INSERT INTO videos (title, description, genre, source_key) VALUES ($1, $2, $3, $4) RETURNING `+videoColumns,
		title, description, genre, sourceKey)
	return scanVideo(row)
}

func (d *DB) GetVideo(ctx context.Context, id int64) (*Video, error) {
	row := d.sql.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id)
	return scanVideo(row)
}

func (d *DB) ListVideos(ctx context.Context) ([]Video, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT `+videoColumns+` FROM videos ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("error listing videos: %w", err)
	}
	defer rows.Close()

	var videos []Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, *v)
	}
	return videos, rows.Err()
}

// DeleteVideo removes the record and returns it, so the caller can
// enqueue the storage sweep for its asset keys.
func (d *DB) DeleteVideo(ctx context.Context, id int64) (*Video, error) {
	row := d.sql.QueryRowContext(ctx, `DELETE FROM videos WHERE id = $1 RETURNING `+videoColumns, id)
	return scanVideo(row)
}

// The Set* writers are field-scoped on purpose: sibling pipeline stages
// complete concurrently and their updates must commute.

func (d *DB) SetDuration(ctx context.Context, id int64, duration int64) error {
	return d.updateVideo(ctx,
		`UPDATE videos SET duration = $1, status = CASE WHEN status = 'PENDING' THEN 'PROBED' ELSE status END, updated_at = now() WHERE id = $2`,
		duration, id)
}

func (d *DB) SetThumbnailKey(ctx context.Context, id int64, key string) error {
	return d.updateVideo(ctx, `UPDATE videos SET thumbnail_key = $1, updated_at = now() WHERE id = $2`, key, id)
}

func (d *DB) SetHLSMasterKey(ctx context.Context, id int64, key string) error {
	return d.updateVideo(ctx, `UPDATE videos SET hls_master_key = $1, updated_at = now() WHERE id = $2`, key, id)
}

func (d *DB) MarkFailed(ctx context.Context, id int64) error {
	return d.updateVideo(ctx, `UPDATE videos SET status = 'FAILED', updated_at = now() WHERE id = $1`, id)
}

// PromoteReady flips the record to READY once all three derived fields
// are populated. Safe to call after every stage completion; it is a
// no-op until the last sibling lands, and never resurrects a FAILED
// record.
func (d *DB) PromoteReady(ctx context.Context, id int64) error {
	_, err := d.sql.ExecContext(ctx,
		`UPDATE videos SET status = 'READY', updated_at = now()
		 WHERE id = $1 AND duration IS NOT NULL AND thumbnail_key <> '' AND hls_master_key <> '' AND status <> 'FAILED'`,
		id)
	if err != nil {
		return fmt.Errorf("error promoting video %d: %w", id, err)
	}
	return nil
}

func (d *DB) updateVideo(ctx context.Context, query string, args ...any) error {
	res, err := d.sql.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("error updating video: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return xerrors.NotFound(fmt.Errorf("video not found"))
	}
	return nil
}
