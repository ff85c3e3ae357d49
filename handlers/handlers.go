package handlers

import (
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/videoflix/videoflix-api/clients"
	"github.com/videoflix/videoflix-api/exporter"
	"github.com/videoflix/videoflix-api/queue"
	"github.com/videoflix/videoflix-api/store"
)

type VideoflixHandlersCollection struct {
	DB          *store.DB
	Queue       queue.Publisher
	ObjectStore clients.ObjectStore
	ExportGate  *exporter.RateGate
	PresignTTL  time.Duration
}

func HasContentType(r *http.Request, mimetype string) bool {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return mimetype == "application/octet-stream"
	}

	for _, v := range strings.Split(contentType, ",") {
		t, _, err := mime.ParseMediaType(v)
		if err != nil {
			break
		}
		if t == mimetype {
			return true
		}
	}

	return false
}

// Simple endpoint for healthchecks
func (d *VideoflixHandlersCollection) Ok() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		_, _ = w.Write([]byte("OK"))
	}
}
