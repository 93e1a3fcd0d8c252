package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	// Database drivers registered for the two supported SQL backends.
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SQLStore implements the Store interface over database/sql. It supports
// sqlite for single-host deployments and postgres for shared ones.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

type dialect string

const (
	dialectSQLite   dialect = "sqlite"
	dialectPostgres dialect = "postgres"
)

// NewSQLiteStore opens (creating if necessary) a sqlite-backed store.
func NewSQLiteStore(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	return newSQLStore(db, dialectSQLite)
}

// NewPostgresStore opens a postgres-backed store.
func NewPostgresStore(url string) (*SQLStore, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres database: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)
	return newSQLStore(db, dialectPostgres)
}

// NewSQLStoreWithDB wraps an existing database handle. Used by tests.
func NewSQLStoreWithDB(db *sql.DB, postgres bool) (*SQLStore, error) {
	d := dialectSQLite
	if postgres {
		d = dialectPostgres
	}
	return newSQLStore(db, d)
}

func newSQLStore(db *sql.DB, d dialect) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: d}
	if err := s.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure published_files table: %w", err)
	}
	return s, nil
}

// ensureTable creates the published_files table if it does not exist.
func (s *SQLStore) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS published_files (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		path TEXT NOT NULL,
		version_number INTEGER NOT NULL,
		type TEXT NOT NULL,
		comment TEXT,
		thumbnail TEXT,
		project TEXT,
		entity TEXT NOT NULL,
		task TEXT,
		dependency_ids TEXT,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_published_files_entity ON published_files(entity);
	CREATE INDEX IF NOT EXISTS idx_published_files_name_entity ON published_files(name, entity);
	`
	_, err := s.db.Exec(query)
	return err
}

// rebind converts ?-style placeholders to $N for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	out := make([]byte, 0, len(query)+8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			out = append(out, fmt.Sprintf("$%d", n)...)
			continue
		}
		out = append(out, query[i])
	}
	return string(out)
}

// CreatePublish implements Store.CreatePublish.
func (s *SQLStore) CreatePublish(ctx context.Context, pf *PublishedFile) error {
	deps, err := json.Marshal(pf.DependencyIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal dependency ids: %w", err)
	}

	query := s.rebind(`
		INSERT INTO published_files
			(id, name, path, version_number, type, comment, thumbnail, project, entity, task, dependency_ids, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err = s.db.ExecContext(ctx, query,
		pf.ID, pf.Name, pf.Path, pf.VersionNumber, pf.Type, pf.Comment,
		pf.Thumbnail, pf.Project, pf.Entity, pf.Task, string(deps), pf.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert publish record: %w", err)
	}
	return nil
}

// GetPublish implements Store.GetPublish.
func (s *SQLStore) GetPublish(ctx context.Context, id string) (*PublishedFile, error) {
	query := s.rebind(`
		SELECT id, name, path, version_number, type, comment, thumbnail, project, entity, task, dependency_ids, created_at
		FROM published_files WHERE id = ?`)

	return scanPublish(s.db.QueryRowContext(ctx, query, id))
}

// ListPublishes implements Store.ListPublishes.
func (s *SQLStore) ListPublishes(ctx context.Context, entity string) ([]*PublishedFile, error) {
	query := s.rebind(`
		SELECT id, name, path, version_number, type, comment, thumbnail, project, entity, task, dependency_ids, created_at
		FROM published_files WHERE entity = ? ORDER BY created_at DESC`)

	return s.queryPublishes(ctx, query, entity)
}

// ListVersions implements Store.ListVersions.
func (s *SQLStore) ListVersions(ctx context.Context, name, entity string) ([]*PublishedFile, error) {
	query := s.rebind(`
		SELECT id, name, path, version_number, type, comment, thumbnail, project, entity, task, dependency_ids, created_at
		FROM published_files WHERE name = ? AND entity = ? ORDER BY version_number ASC`)

	return s.queryPublishes(ctx, query, name, entity)
}

// LatestVersion implements Store.LatestVersion.
func (s *SQLStore) LatestVersion(ctx context.Context, name, entity string) (int, error) {
	query := s.rebind(`
		SELECT COALESCE(MAX(version_number), 0) FROM published_files WHERE name = ? AND entity = ?`)

	var latest int
	if err := s.db.QueryRowContext(ctx, query, name, entity).Scan(&latest); err != nil {
		return 0, fmt.Errorf("failed to query latest version: %w", err)
	}
	return latest, nil
}

// DeletePublish implements Store.DeletePublish.
func (s *SQLStore) DeletePublish(ctx context.Context, id string) error {
	query := s.rebind(`DELETE FROM published_files WHERE id = ?`)

	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete publish record: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListEntities implements EntityLister.
func (s *SQLStore) ListEntities(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT entity FROM published_files ORDER BY entity`)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	var entities []string
	for rows.Next() {
		var entity string
		if err := rows.Scan(&entity); err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		entities = append(entities, entity)
	}
	return entities, rows.Err()
}

// HealthCheck implements Store.HealthCheck.
func (s *SQLStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) queryPublishes(ctx context.Context, query string, args ...interface{}) ([]*PublishedFile, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query publish records: %w", err)
	}
	defer rows.Close()

	var publishes []*PublishedFile
	for rows.Next() {
		pf, err := scanPublish(rows)
		if err != nil {
			return nil, err
		}
		publishes = append(publishes, pf)
	}
	return publishes, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPublish(row rowScanner) (*PublishedFile, error) {
	var pf PublishedFile
	var comment, thumbnail, project, task, deps sql.NullString

	err := row.Scan(&pf.ID, &pf.Name, &pf.Path, &pf.VersionNumber, &pf.Type,
		&comment, &thumbnail, &project, &pf.Entity, &task, &deps, &pf.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan publish record: %w", err)
	}

	pf.Comment = comment.String
	pf.Thumbnail = thumbnail.String
	pf.Project = project.String
	pf.Task = task.String
	if deps.Valid && deps.String != "" {
		if err := json.Unmarshal([]byte(deps.String), &pf.DependencyIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal dependency ids: %w", err)
		}
	}
	return &pf, nil
}
