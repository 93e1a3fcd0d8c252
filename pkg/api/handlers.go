package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/shotpipe/shotpipe/pkg/registry"
)

// errorResponse is the JSON body returned on failure.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.WithError(err).Error("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

// registerPublish handles POST /publishes.
func (s *Server) registerPublish(w http.ResponseWriter, r *http.Request) {
	var req registry.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	pf, err := s.service.RegisterPublish(r.Context(), &req)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, pf)
}

// listPublishes handles GET /publishes?entity=<entity>.
func (s *Server) listPublishes(w http.ResponseWriter, r *http.Request) {
	entity := r.URL.Query().Get("entity")
	if entity == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("entity query parameter is required"))
		return
	}

	publishes, err := s.service.ListPublishes(r.Context(), entity)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if publishes == nil {
		publishes = []*registry.PublishedFile{}
	}

	s.writeJSON(w, http.StatusOK, publishes)
}

// getPublish handles GET /publishes/{id}.
func (s *Server) getPublish(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	pf, err := s.service.GetPublish(r.Context(), id)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, err)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, pf)
}

// getDependencies handles GET /publishes/{id}/dependencies.
func (s *Server) getDependencies(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	deps, err := s.service.Dependencies(r.Context(), id)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, err)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if deps == nil {
		deps = []*registry.PublishedFile{}
	}

	s.writeJSON(w, http.StatusOK, deps)
}

// getDependents handles GET /publishes/{id}/dependents.
func (s *Server) getDependents(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	ids := s.service.Dependents(id)
	if ids == nil {
		ids = []string{}
	}

	s.writeJSON(w, http.StatusOK, ids)
}

// listVersions handles GET /versions?name=<name>&entity=<entity>.
func (s *Server) listVersions(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	entity := r.URL.Query().Get("entity")
	if name == "" || entity == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("name and entity query parameters are required"))
		return
	}

	versions, err := s.service.ListVersions(r.Context(), name, entity)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if versions == nil {
		versions = []*registry.PublishedFile{}
	}

	s.writeJSON(w, http.StatusOK, versions)
}

// healthCheck handles GET /health.
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.service.HealthCheck(r.Context()); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
