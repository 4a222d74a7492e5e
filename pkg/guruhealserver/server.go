package guruhealserver

import (
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	metricsprom "github.com/slok/go-http-metrics/metrics/prometheus"
	httpmetrics "github.com/slok/go-http-metrics/middleware"
	"github.com/slok/go-http-metrics/middleware/std"

	"github.com/sandeepstele/guruheal-agent/pkg/chat"
	"github.com/sandeepstele/guruheal-agent/pkg/db"
)

func NewServer(
	listenAddr string,
	dbClient *db.DB,
	store *chat.Store,
	orchestrator *chat.Orchestrator,
) *Server {
	return &Server{
		listenAddr:   listenAddr,
		db:           dbClient,
		store:        store,
		orchestrator: orchestrator,
	}
}

type Server struct {
	listenAddr   string
	db           *db.DB
	store        *chat.Store
	orchestrator *chat.Orchestrator
	httpServer   *http.Server
}

var (
	metricsOnce sync.Once
	metricsMdlw httpmetrics.Middleware
)

// metricsMiddleware is shared across servers; the prometheus recorder
// registers its collectors globally and can only do so once.
func metricsMiddleware() httpmetrics.Middleware {
	metricsOnce.Do(func() {
		metricsMdlw = httpmetrics.New(httpmetrics.Config{
			Recorder: metricsprom.NewRecorder(metricsprom.Config{}),
		})
	})
	return metricsMdlw
}

// Handler builds the full route table. Exposed separately from Serve so
// tests can drive the server through httptest.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/api/health", s.jsonHealth).Methods(http.MethodGet)

	router.HandleFunc("/api/chat", s.streamChat).Methods(http.MethodPost)
	router.HandleFunc("/api/chat/conversations", s.jsonCreateConversation).Methods(http.MethodPost)
	router.HandleFunc("/api/chat/conversations/{id}", s.jsonGetConversation).Methods(http.MethodGet)
	router.HandleFunc("/api/chat/conversations/{id}", s.jsonDeleteConversation).Methods(http.MethodDelete)
	router.HandleFunc("/api/chat/users/{user}/conversations", s.jsonListConversations).Methods(http.MethodGet)

	var handler http.Handler = router
	handler = correlationMiddleware(handler)
	handler = loggingMiddleware(handler)
	handler = std.Handler("", metricsMiddleware(), handler)
	return handler
}

func (s *Server) Serve() {
	s.httpServer = &http.Server{
		Addr:    s.listenAddr,
		Handler: s.Handler(),
	}

	log.Infof("Serving chat API on %s", s.listenAddr)

	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		log.WithError(err).Fatal("server exited")
	}
}

func (s *Server) GetHTTPServer() *http.Server {
	return s.httpServer
}
