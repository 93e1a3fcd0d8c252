package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/shotpipe/shotpipe/pkg/observability"
	"github.com/shotpipe/shotpipe/pkg/registry"
)

// Server is the registry HTTP server.
type Server struct {
	service *registry.Service
	router  *mux.Router
	handler http.Handler
	log     *observability.Logger
	metrics *observability.Metrics
}

// NewServer creates a new API server over the registry service.
func NewServer(service *registry.Service, log *observability.Logger, metrics *observability.Metrics) *Server {
	s := &Server{
		service: service,
		router:  mux.NewRouter(),
		log:     log,
		metrics: metrics,
	}
	s.setupRoutes()
	s.handler = otelhttp.NewHandler(s.router, "shotpipe-api")
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/publishes", s.registerPublish).Methods("POST")
	s.router.HandleFunc("/publishes", s.listPublishes).Methods("GET")
	s.router.HandleFunc("/publishes/{id}", s.getPublish).Methods("GET")
	s.router.HandleFunc("/publishes/{id}/dependencies", s.getDependencies).Methods("GET")
	s.router.HandleFunc("/publishes/{id}/dependents", s.getDependents).Methods("GET")
	s.router.HandleFunc("/versions", s.listVersions).Methods("GET")

	s.router.HandleFunc("/health", s.healthCheck).Methods("GET")
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
		s.router.Use(s.metrics.HTTPMiddleware)
	}
	s.router.Use(s.loggingMiddleware)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// loggingMiddleware logs each request at debug level.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.log.WithFields(map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Debug("handling request")
		next.ServeHTTP(w, r)
	})
}
