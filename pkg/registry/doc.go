// Package registry records published files and the dependency links between
// them.
//
// # Overview
//
// The Service sits on a Store (filesystem, SQLite, or Postgres) and maintains
// an in-memory dependency graph so dependents can be answered without a
// reverse index in the store. Optional layers wrap or hang off the service:
//
//   - CachedStore: LRU + Redis read-through cache over any Store
//   - S3Archiver: background copy of each published payload to S3
//   - Retention: cron-driven sweep of old versions
//
// # Registering
//
//	pf, err := svc.RegisterPublish(ctx, &registry.RegisterRequest{
//		Name:          "char_hero.abc",
//		Path:          "/publish/cache/alembic/char_hero.abc",
//		VersionNumber: 3,
//		Type:          "Alembic Cache",
//		Entity:        "shot_010",
//		DependencyIDs: []string{parent.ID},
//	})
//
// A zero VersionNumber asks the service to allocate the next version for the
// (entity, name) pair.
//
// # Stores
//
//	store, err := registry.NewFileSystemStore("/var/shotpipe/registry")
//	store, err := registry.NewSQLiteStore("/var/shotpipe/registry.db")
//	store, err := registry.NewPostgresStore(cfg.Storage.PostgresURL)
//
// # Related Packages
//
//   - pkg/api: HTTP surface over the service
//   - pkg/plugins/alembic: registers publishes through the service
package registry
