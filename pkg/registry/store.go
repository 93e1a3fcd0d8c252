package registry

import "context"

// Store is the persistence contract for published-file records. Backends:
// filesystem (JSON documents), sqlite, and postgres.
type Store interface {
	// CreatePublish persists a new published-file record.
	CreatePublish(ctx context.Context, pf *PublishedFile) error

	// GetPublish returns a record by ID, or ErrNotFound.
	GetPublish(ctx context.Context, id string) (*PublishedFile, error)

	// ListPublishes returns all records for an entity, newest first.
	ListPublishes(ctx context.Context, entity string) ([]*PublishedFile, error)

	// ListVersions returns all versions of a named publish for an entity,
	// ascending by version number.
	ListVersions(ctx context.Context, name, entity string) ([]*PublishedFile, error)

	// LatestVersion returns the highest registered version number for
	// (name, entity); 0 when none exist.
	LatestVersion(ctx context.Context, name, entity string) (int, error)

	// DeletePublish removes a record by ID.
	DeletePublish(ctx context.Context, id string) error

	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error
}
