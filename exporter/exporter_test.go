package exporter

import (
	"context"
	"encoding/json"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	xerrors "github.com/videoflix/videoflix-api/errors"
)

type fakeObjectStore struct {
	objects map[string][]byte
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string][]byte{}}
}

func (f *fakeObjectStore) Put(_ context.Context, localPath, key string) error {
	raw, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	f.objects[key] = raw
	return nil
}

func (f *fakeObjectStore) Get(context.Context, string, string) error { return nil }
func (f *fakeObjectStore) Presign(key string, _ time.Duration) (string, error) {
	return "https://storage.example.com/" + key, nil
}
func (f *fakeObjectStore) DeleteObject(context.Context, string) error        { return nil }
func (f *fakeObjectStore) DeletePrefix(context.Context, string) (int, error) { return 0, nil }
func (f *fakeObjectStore) Exists(context.Context, string) (bool, error)      { return false, nil }

type fakeSnapshotter struct {
	name    string
	records []map[string]any
	err     error
}

func (s fakeSnapshotter) SnapshotName() string { return s.name }
func (s fakeSnapshotter) Snapshot(context.Context) ([]map[string]any, error) {
	return s.records, s.err
}

var exportKeyPattern = regexp.MustCompile(`^exports/video_\d{4}-\d{2}-\d{2}_\d{2}-\d{2}-\d{2}_[A-Za-z0-9]{8}\.json$`)

func TestExportWritesJSONRecordArray(t *testing.T) {
	objectStore := newFakeObjectStore()
	e := New(objectStore, fakeSnapshotter{
		name: "video",
		records: []map[string]any{
			{"id": 1, "title": "Clip", "status": "READY"},
		},
	})

	key, err := e.Export(context.Background(), "video")
	require.NoError(t, err)
	require.Regexp(t, exportKeyPattern, key)

	var got []map[string]any
	require.NoError(t, json.Unmarshal(objectStore.objects[key], &got))
	require.Len(t, got, 1)
	require.Equal(t, "Clip", got[0]["title"])
}

func TestExportEmptyTableIsEmptyArray(t *testing.T) {
	objectStore := newFakeObjectStore()
	e := New(objectStore, fakeSnapshotter{name: "video"})

	key, err := e.Export(context.Background(), "video")
	require.NoError(t, err)
	require.Equal(t, "[]", string(objectStore.objects[key]))
}

func TestExportUnknownEntity(t *testing.T) {
	e := New(newFakeObjectStore())

	_, err := e.Export(context.Background(), "mystery")
	require.Equal(t, xerrors.KindNotFound, xerrors.KindOf(err))
}

func TestExportKeysNeverCollide(t *testing.T) {
	objectStore := newFakeObjectStore()
	e := New(objectStore, fakeSnapshotter{name: "video"})

	k1, err := e.Export(context.Background(), "video")
	require.NoError(t, err)
	k2, err := e.Export(context.Background(), "video")
	require.NoError(t, err)
	require.NotEqual(t, k1, k2)
	require.Len(t, objectStore.objects, 2)
}

func TestRateGateAdmitsOncePerInterval(t *testing.T) {
	gate := NewRateGate(time.Hour)

	require.True(t, gate.Allow("video"))
	require.False(t, gate.Allow("video"))
	// Other keys hold their own slot.
	require.True(t, gate.Allow("userwatchhistory"))
}

func TestRateGateReopensAfterInterval(t *testing.T) {
	gate := NewRateGate(20 * time.Millisecond)

	require.True(t, gate.Allow("video"))
	require.False(t, gate.Allow("video"))
	require.Eventually(t, func() bool { return gate.Allow("video") }, 5*time.Second, 5*time.Millisecond)
}
