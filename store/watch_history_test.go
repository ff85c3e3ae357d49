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

func expectDuration(mock sqlmock.Sqlmock, videoID int64, duration any) {
	rows := sqlmock.NewRows([]string{"duration"}).AddRow(duration)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT duration FROM videos WHERE id = $1`)).
		WithArgs(videoID).
		WillReturnRows(rows)
}

func TestUpsertInsertsNewRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectDuration(mock, 1, int64(10))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO user_watch_history`)).
		WithArgs(int64(7), int64(1), int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "video_id", "progress_seconds", "updated_at", "created"}).
			AddRow(1, 7, 1, 3, time.Now(), true))

	wh, created, err := NewWithDB(db).Upsert(context.Background(), 7, 1, 3)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, int64(3), wh.ProgressSeconds)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertUpdatesExistingRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectDuration(mock, 1, int64(10))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO user_watch_history`)).
		WithArgs(int64(7), int64(1), int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "video_id", "progress_seconds", "updated_at", "created"}).
			AddRow(1, 7, 1, 5, time.Now(), false))

	wh, created, err := NewWithDB(db).Upsert(context.Background(), 7, 1, 5)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, int64(5), wh.ProgressSeconds)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertProgressAtDurationIsAccepted(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectDuration(mock, 1, int64(10))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO user_watch_history`)).
		WithArgs(int64(7), int64(1), int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "video_id", "progress_seconds", "updated_at", "created"}).
			AddRow(1, 7, 1, 10, time.Now(), false))

	_, _, err = NewWithDB(db).Upsert(context.Background(), 7, 1, 10)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertProgressExceedsDuration(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectDuration(mock, 1, int64(10))

	_, _, err = NewWithDB(db).Upsert(context.Background(), 7, 1, 11)
	require.Error(t, err)
	require.Equal(t, xerrors.KindContract, xerrors.KindOf(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertUnknownDurationSkipsBound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectDuration(mock, 1, nil)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO user_watch_history`)).
		WithArgs(int64(7), int64(1), int64(9999)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "video_id", "progress_seconds", "updated_at", "created"}).
			AddRow(1, 7, 1, 9999, time.Now(), true))

	_, _, err = NewWithDB(db).Upsert(context.Background(), 7, 1, 9999)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertNegativeProgress(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, _, err = NewWithDB(db).Upsert(context.Background(), 7, 1, -1)
	require.Equal(t, xerrors.KindContract, xerrors.KindOf(err))
}

func TestUpsertMissingVideo(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT duration FROM videos WHERE id = $1`)).
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"duration"}))

	_, _, err = NewWithDB(db).Upsert(context.Background(), 7, 404, 0)
	require.Equal(t, xerrors.KindNotFound, xerrors.KindOf(err))
}

func TestListForUserFiltersByVideo(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	videoID := int64(1)
	mock.ExpectQuery(`SELECT .+ FROM user_watch_history WHERE user_id = \$1 AND video_id = \$2 ORDER BY updated_at DESC`).
		WithArgs(int64(7), videoID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "video_id", "progress_seconds", "updated_at"}).
			AddRow(1, 7, 1, 5, time.Now()))

	rows, err := NewWithDB(db).ListForUser(context.Background(), 7, &videoID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteWatchHistoryRequiresAdmin(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	err = NewWithDB(db).DeleteWatchHistory(context.Background(), 1, IdentityContext{UserID: 7})
	require.Equal(t, xerrors.KindForbidden, xerrors.KindOf(err))
}

func TestDeleteWatchHistoryAsAdmin(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM user_watch_history WHERE id = $1`)).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = NewWithDB(db).DeleteWatchHistory(context.Background(), 1, IdentityContext{UserID: 2, IsAdmin: true})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
