package exporter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	xerrors "github.com/videoflix/videoflix-api/errors"

	"github.com/videoflix/videoflix-api/clients"
	"github.com/videoflix/videoflix-api/config"
	"github.com/videoflix/videoflix-api/log"
	"github.com/videoflix/videoflix-api/store"
)

// Exporter serializes entity snapshots to JSON and uploads them to the
// object store under exports/. One object per run, never overwritten:
// the key carries a timestamp and a random trailer.
type Exporter struct {
	ObjectStore  clients.ObjectStore
	snapshotters map[string]store.Snapshotter
}

func New(objectStore clients.ObjectStore, snapshotters ...store.Snapshotter) *Exporter {
	byName := make(map[string]store.Snapshotter, len(snapshotters))
	for _, s := range snapshotters {
		byName[s.SnapshotName()] = s
	}
	return &Exporter{ObjectStore: objectStore, snapshotters: byName}
}

// Export snapshots the named entity and uploads it, returning the
// storage key of the written object. Unknown names are NotFound.
func (e *Exporter) Export(ctx context.Context, name string) (string, error) {
	snapshotter, ok := e.snapshotters[name]
	if !ok {
		return "", xerrors.NotFound(fmt.Errorf("no snapshotter registered for %q", name))
	}

	records, err := snapshotter.Snapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("error snapshotting %s: %w", name, err)
	}
	if records == nil {
		// An empty table still exports, as an empty array.
		records = []map[string]any{}
	}

	raw, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("error marshalling %s snapshot: %w", name, err)
	}

	scope := clients.NewTempScope()
	defer scope.Release()
	localPath, err := scope.File(".json")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(localPath, raw, 0644); err != nil {
		return "", fmt.Errorf("error writing snapshot file: %w", err)
	}

	key := config.ExportKey(name, time.Now())
	if err := e.ObjectStore.Put(ctx, localPath, key); err != nil {
		return "", err
	}
	log.LogNoJobID("wrote analytics export", "entity", name, "key", key, "records", len(records))
	return key, nil
}
