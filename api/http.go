package api

import (
	"context"
	"net/http"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/videoflix/videoflix-api/clients"
	"github.com/videoflix/videoflix-api/exporter"
	"github.com/videoflix/videoflix-api/handlers"
	"github.com/videoflix/videoflix-api/log"
	"github.com/videoflix/videoflix-api/middleware"
	"github.com/videoflix/videoflix-api/queue"
	"github.com/videoflix/videoflix-api/store"
)

func ListenAndServe(ctx context.Context, addr, apiToken string, db *store.DB, q queue.Publisher, objectStore clients.ObjectStore, exportGate *exporter.RateGate, presignTTL time.Duration, logger kitlog.Logger) error {
	router := NewVideoflixAPIRouter(apiToken, db, q, objectStore, exportGate, presignTTL, logger)
	server := http.Server{Addr: addr, Handler: router}
	ctx, cancel := context.WithCancel(ctx)

	log.LogNoJobID(
		"Starting Videoflix API!",
		"host", addr,
	)

	var err error
	go func() {
		err = server.ListenAndServe()
		cancel()
	}()

	<-ctx.Done()
	if err != nil {
		return err
	}

	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

func NewVideoflixAPIRouter(apiToken string, db *store.DB, q queue.Publisher, objectStore clients.ObjectStore, exportGate *exporter.RateGate, presignTTL time.Duration, logger kitlog.Logger) *httprouter.Router {
	router := httprouter.New()
	withLogging := middleware.LogRequest(logger)
	withAuth := middleware.IsAuthorized

	videoflixHandlers := &handlers.VideoflixHandlersCollection{
		DB:          db,
		Queue:       q,
		ObjectStore: objectStore,
		ExportGate:  exportGate,
		PresignTTL:  presignTTL,
	}

	// Simple endpoint for healthchecks
	router.GET("/ok", withLogging(videoflixHandlers.Ok()))
	router.Handler("GET", "/metrics", promhttp.Handler())

	// Catalog
	router.GET("/api/videos", withLogging(videoflixHandlers.ListVideos()))
	router.GET("/api/videos/:id", withLogging(videoflixHandlers.GetVideo()))
	router.GET("/api/videos/:id/playback", withLogging(videoflixHandlers.Playback()))

	// Ingestion, gated by the admin token
	router.POST("/api/videos", withLogging(withAuth(apiToken, videoflixHandlers.CreateVideo())))
	router.DELETE("/api/videos/:id", withLogging(withAuth(apiToken, videoflixHandlers.DeleteVideo())))

	// Watch progress
	router.POST("/api/progress", withLogging(videoflixHandlers.RecordProgress()))
	router.GET("/api/progress", withLogging(videoflixHandlers.ListProgress()))
	router.DELETE("/api/progress/:id", withLogging(withAuth(apiToken, videoflixHandlers.DeleteProgress())))

	return router
}
