package guruhealserver

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/sandeepstele/guruheal-agent/pkg/chat"
)

const correlationHeader = "x-correlation-id"

// correlationMiddleware makes a correlation id available to downstream
// handlers, taking the caller's value when present and minting one
// otherwise. The id is echoed back in the response headers.
func correlationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		correlationID := req.Header.Get(correlationHeader)
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		w.Header().Set(correlationHeader, correlationID)
		ctx := chat.WithCorrelationID(req.Context(), correlationID)
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

// statusRecorder captures the response status for access logging while
// passing Flush through so streaming responses keep working.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, req)

		log.WithFields(log.Fields{
			"method":   req.Method,
			"path":     req.URL.Path,
			"status":   recorder.status,
			"duration": time.Since(start),
		}).Debug("request complete")
	})
}
