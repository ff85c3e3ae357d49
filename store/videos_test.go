package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	xerrors "github.com/videoflix/videoflix-api/errors"
)

func videoRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "title", "description", "genre", "source_key", "duration",
		"thumbnail_key", "hls_master_key", "status", "created_at", "updated_at",
	})
}

func TestCreateVideo(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO videos (title, description, genre, source_key)`)).
		WithArgs("Clip", "A clip", "drama", "videos/clip_1700000000_ab3kx9z.mp4").
		WillReturnRows(videoRows().AddRow(
			1, "Clip", "A clip", "drama", "videos/clip_1700000000_ab3kx9z.mp4", nil,
			"", "", "PENDING", now, now))

	v, err := NewWithDB(db).CreateVideo(context.Background(), "Clip", "A clip", "drama", "videos/clip_1700000000_ab3kx9z.mp4")
	require.NoError(t, err)
	require.Equal(t, int64(1), v.ID)
	require.Equal(t, VideoPending, v.Status)
	require.False(t, v.Duration.Valid)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetVideoNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT .+ FROM videos WHERE id`).
		WithArgs(int64(42)).
		WillReturnRows(videoRows())

	_, err = NewWithDB(db).GetVideo(context.Background(), 42)
	require.Error(t, err)
	require.Equal(t, xerrors.KindNotFound, xerrors.KindOf(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetDurationPromotesPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE videos SET duration = $1, status = CASE WHEN status = 'PENDING' THEN 'PROBED' ELSE status END`)).
		WithArgs(int64(10), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewWithDB(db).SetDuration(context.Background(), 1, 10))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFieldScopedWriters(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE videos SET thumbnail_key = $1`)).
		WithArgs("thumbnails/clip.jpg", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE videos SET hls_master_key = $1`)).
		WithArgs("hls/clip/clip_master.m3u8", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	d := NewWithDB(db)
	require.NoError(t, d.SetThumbnailKey(context.Background(), 1, "thumbnails/clip.jpg"))
	require.NoError(t, d.SetHLSMasterKey(context.Background(), 1, "hls/clip/clip_master.m3u8"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetThumbnailKeyMissingVideo(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE videos SET thumbnail_key = $1`)).
		WithArgs("thumbnails/clip.jpg", int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewWithDB(db).SetThumbnailKey(context.Background(), 99, "thumbnails/clip.jpg")
	require.Equal(t, xerrors.KindNotFound, xerrors.KindOf(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPromoteReadyGuardsOnAllFields(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`duration IS NOT NULL AND thumbnail_key <> '' AND hls_master_key <> '' AND status <> 'FAILED'`)).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0)) // not all fields populated yet: no-op, no error

	require.NoError(t, NewWithDB(db).PromoteReady(context.Background(), 1))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteVideoReturnsAssetKeys(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`DELETE FROM videos WHERE id = $1 RETURNING`)).
		WithArgs(int64(1)).
		WillReturnRows(videoRows().AddRow(
			1, "Clip", "", "", "videos/clip_1700000000_ab3kx9z.mp4", 10,
			"thumbnails/clip.jpg", "hls/clip/clip_master.m3u8", "READY", now, now))

	v, err := NewWithDB(db).DeleteVideo(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "thumbnails/clip.jpg", v.ThumbnailKey)
	require.Equal(t, "hls/clip/clip_master.m3u8", v.HLSMasterKey)
	require.NoError(t, mock.ExpectationsWereMet())
}
