package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/golang/glog"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"github.com/videoflix/videoflix-api/api"
	"github.com/videoflix/videoflix-api/clients"
	"github.com/videoflix/videoflix-api/config"
	"github.com/videoflix/videoflix-api/exporter"
	"github.com/videoflix/videoflix-api/pipeline"
	"github.com/videoflix/videoflix-api/queue"
	"github.com/videoflix/videoflix-api/store"
)

// watchHistoryExportInterval is the cadence of the scheduled watch
// history export. Event-triggered video exports run through the rate
// gate instead.
const watchHistoryExportInterval = time.Hour

func main() {
	if err := flag.Set("logtostderr", "true"); err != nil {
		glog.Fatal(err)
	}

	cli := config.Cli{}
	if err := config.Parse(&cli, os.Args[1:]); err != nil {
		glog.Fatalf("error parsing cli: %s", err)
	}
	if cli.DatabaseURL == "" {
		glog.Fatal("-database-url (DATABASE_URL) is required")
	}
	if cli.APIAdminToken == "" {
		// Without this check, an empty Bearer token would match and the
		// admin routes would be open.
		glog.Fatal("-api-admin-token (API_ADMIN_TOKEN) is required")
	}

	// Scratch space from jobs interrupted by a previous shutdown.
	if err := clients.CleanUpStaleTempFiles(os.TempDir(), 24*time.Hour); err != nil {
		glog.Warningf("error cleaning up stale temp files: %v", err)
	}

	db, err := store.Open(cli.DatabaseURL)
	if err != nil {
		glog.Fatalf("error connecting to database: %v", err)
	}
	if err := db.EnsureSchema(context.Background()); err != nil {
		glog.Fatalf("error ensuring database schema: %v", err)
	}

	objectStore, err := clients.NewS3Client(clients.S3Config{
		Endpoint:  cli.StorageEndpoint,
		Bucket:    cli.StorageBucket,
		AccessKey: cli.StorageAccessKey,
		SecretKey: cli.StorageSecretKey,
		Region:    cli.StorageRegion,
		UseTLS:    cli.StorageUseTLS,
		VerifyTLS: cli.StorageVerifyTLS,
	})
	if err != nil {
		glog.Fatalf("error creating object store client: %v", err)
	}

	jobQueue, err := queue.NewRedisQueue(context.Background(), cli.QueueURL)
	if err != nil {
		glog.Fatalf("error connecting to job queue: %v", err)
	}
	defer jobQueue.Close()

	snapshotExporter := exporter.New(objectStore,
		store.VideoSnapshots{DB: db},
		store.WatchHistorySnapshots{DB: db},
		store.UserSnapshots{DB: db},
	)
	exportGate := exporter.NewRateGate(exporter.DefaultExportInterval)

	coordinator := pipeline.NewCoordinator(
		jobQueue, db, objectStore, snapshotExporter, exportGate,
		cli.WorkerConcurrency, cli.StageTimeout(), cli.PresignTTL(),
	)

	scheduler := queue.NewScheduler(jobQueue)
	scheduler.RegisterPeriodic("watch-history-export", watchHistoryExportInterval, func() queue.Job {
		return queue.NewExportSnapshotJob(queue.ExportSnapshotPayload{Name: "userwatchhistory"})
	})
	defer scheduler.Stop()

	logger := kitlog.With(kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stderr)), "ts", kitlog.DefaultTimestampUTC)

	// Root context; cancelling this prompts all components to shut down
	// cleanly.
	group, ctx := errgroup.WithContext(context.Background())

	group.Go(func() error {
		return handleSignals(ctx)
	})

	group.Go(func() error {
		return api.ListenAndServe(ctx, cli.HTTPAddr, cli.APIAdminToken, db, jobQueue, objectStore, exportGate, cli.PresignTTL(), logger)
	})

	group.Go(func() error {
		coordinator.Start(ctx)
		coordinator.Wait()
		return nil
	})

	err = group.Wait()
	glog.Infof("Shutdown complete. Reason for shutdown: %s", err)
}

func handleSignals(ctx context.Context) error {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT)
	for {
		select {
		case s := <-c:
			glog.Errorf("caught signal=%v, attempting clean shutdown", s)
			return fmt.Errorf("caught signal=%v", s)
		case <-ctx.Done():
			return nil
		}
	}
}
