package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shotpipe/shotpipe/pkg/async"
	"github.com/shotpipe/shotpipe/pkg/observability"
)

// Archiver is an optional sink for cold-storage copies of publish payloads.
type Archiver interface {
	Archive(ctx context.Context, pf *PublishedFile) error
}

// Service is the published-file registry: it allocates version numbers,
// assigns IDs, persists records through a Store, and tracks dependency
// links between publishes.
type Service struct {
	store    Store
	graph    *Graph
	archiver Archiver
	log      *observability.Logger
	metrics  *observability.Metrics
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithArchiver wires an archive sink into the service.
func WithArchiver(a Archiver) ServiceOption {
	return func(s *Service) { s.archiver = a }
}

// WithServiceMetrics wires metrics into the service.
func WithServiceMetrics(m *observability.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a registry service over the given store.
func NewService(store Store, log *observability.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		store: store,
		graph: NewGraph(),
		log:   log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterPublish records a publish and returns the stored record. A zero
// version number in the request is replaced with latest+1 for the request's
// (name, entity) pair.
func (s *Service) RegisterPublish(ctx context.Context, req *RegisterRequest) (*PublishedFile, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid register request: %w", err)
	}

	version := req.VersionNumber
	if version == 0 {
		latest, err := s.store.LatestVersion(ctx, req.Name, req.Entity)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve latest version: %w", err)
		}
		version = latest + 1
	}

	pf := &PublishedFile{
		ID:            uuid.NewString(),
		Name:          req.Name,
		Path:          req.Path,
		VersionNumber: version,
		Type:          req.Type,
		Comment:       req.Comment,
		Thumbnail:     req.Thumbnail,
		Project:       req.Project,
		Entity:        req.Entity,
		Task:          req.Task,
		DependencyIDs: req.DependencyIDs,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.store.CreatePublish(ctx, pf); err != nil {
		return nil, fmt.Errorf("failed to create publish record: %w", err)
	}

	s.graph.AddPublish(pf)

	if s.metrics != nil {
		s.metrics.PublishedFilesTotal.Inc()
	}

	s.log.WithFields(map[string]interface{}{
		"publish_id": pf.ID,
		"name":       pf.Name,
		"version":    pf.VersionNumber,
		"type":       pf.Type,
	}).Info("registered publish")

	if s.archiver != nil {
		// The archive outlives the registration request: an HTTP caller's
		// context is cancelled as soon as the handler returns, which would
		// abort the upload mid-retry.
		async.SafeGo(context.WithoutCancel(ctx), 5*time.Minute, "publish archive", func(actx context.Context) error {
			return s.archiver.Archive(actx, pf)
		})
	}

	return pf, nil
}

// GetPublish returns a publish record by ID.
func (s *Service) GetPublish(ctx context.Context, id string) (*PublishedFile, error) {
	return s.store.GetPublish(ctx, id)
}

// ListPublishes returns all publishes for an entity.
func (s *Service) ListPublishes(ctx context.Context, entity string) ([]*PublishedFile, error) {
	return s.store.ListPublishes(ctx, entity)
}

// ListVersions returns all versions of a named publish for an entity.
func (s *Service) ListVersions(ctx context.Context, name, entity string) ([]*PublishedFile, error) {
	return s.store.ListVersions(ctx, name, entity)
}

// Dependencies returns the publishes the given publish depends on.
func (s *Service) Dependencies(ctx context.Context, id string) ([]*PublishedFile, error) {
	pf, err := s.store.GetPublish(ctx, id)
	if err != nil {
		return nil, err
	}

	deps := make([]*PublishedFile, 0, len(pf.DependencyIDs))
	for _, depID := range pf.DependencyIDs {
		dep, err := s.store.GetPublish(ctx, depID)
		if err != nil {
			return nil, fmt.Errorf("failed to load dependency %s: %w", depID, err)
		}
		deps = append(deps, dep)
	}
	return deps, nil
}

// Dependents returns the IDs of publishes that depend on the given publish,
// from the in-memory dependency graph.
func (s *Service) Dependents(id string) []string {
	return s.graph.Dependents(id)
}

// RebuildGraph reloads the dependency graph from the store for an entity.
func (s *Service) RebuildGraph(ctx context.Context, entity string) error {
	publishes, err := s.store.ListPublishes(ctx, entity)
	if err != nil {
		return fmt.Errorf("failed to list publishes: %w", err)
	}
	for _, pf := range publishes {
		s.graph.AddPublish(pf)
	}
	return nil
}

// HealthCheck verifies the underlying store.
func (s *Service) HealthCheck(ctx context.Context) error {
	return s.store.HealthCheck(ctx)
}
