package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileSystemStore implements the Store interface using the local filesystem.
// Each record is one JSON document under <root>/<entity>/<id>.json.
type FileSystemStore struct {
	rootDir string
}

// NewFileSystemStore creates a new filesystem-based store.
func NewFileSystemStore(rootDir string) (*FileSystemStore, error) {
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root directory: %w", err)
	}
	return &FileSystemStore{rootDir: rootDir}, nil
}

// CreatePublish implements Store.CreatePublish.
func (s *FileSystemStore) CreatePublish(ctx context.Context, pf *PublishedFile) error {
	entityDir := filepath.Join(s.rootDir, entityDirName(pf.Entity))
	if err := os.MkdirAll(entityDir, 0755); err != nil {
		return fmt.Errorf("failed to create entity directory: %w", err)
	}

	data, err := json.Marshal(pf)
	if err != nil {
		return fmt.Errorf("failed to marshal publish record: %w", err)
	}

	recordFile := filepath.Join(entityDir, pf.ID+".json")
	if err := os.WriteFile(recordFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write publish record: %w", err)
	}

	return nil
}

// GetPublish implements Store.GetPublish. Records are keyed by ID but laid
// out by entity, so lookup scans entity directories.
func (s *FileSystemStore) GetPublish(ctx context.Context, id string) (*PublishedFile, error) {
	entries, err := os.ReadDir(s.rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read root directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		recordFile := filepath.Join(s.rootDir, entry.Name(), id+".json")
		if _, err := os.Stat(recordFile); err != nil {
			continue
		}
		return s.readRecord(recordFile)
	}

	return nil, ErrNotFound
}

// ListPublishes implements Store.ListPublishes.
func (s *FileSystemStore) ListPublishes(ctx context.Context, entity string) ([]*PublishedFile, error) {
	entityDir := filepath.Join(s.rootDir, entityDirName(entity))
	entries, err := os.ReadDir(entityDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read entity directory: %w", err)
	}

	var publishes []*PublishedFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		pf, err := s.readRecord(filepath.Join(entityDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read record %s: %w", entry.Name(), err)
		}
		publishes = append(publishes, pf)
	}

	sort.Slice(publishes, func(i, j int) bool {
		return publishes[i].CreatedAt.After(publishes[j].CreatedAt)
	})
	return publishes, nil
}

// ListVersions implements Store.ListVersions.
func (s *FileSystemStore) ListVersions(ctx context.Context, name, entity string) ([]*PublishedFile, error) {
	publishes, err := s.ListPublishes(ctx, entity)
	if err != nil {
		return nil, err
	}

	var versions []*PublishedFile
	for _, pf := range publishes {
		if pf.Name == name {
			versions = append(versions, pf)
		}
	}

	sort.Slice(versions, func(i, j int) bool {
		return versions[i].VersionNumber < versions[j].VersionNumber
	})
	return versions, nil
}

// LatestVersion implements Store.LatestVersion.
func (s *FileSystemStore) LatestVersion(ctx context.Context, name, entity string) (int, error) {
	versions, err := s.ListVersions(ctx, name, entity)
	if err != nil {
		return 0, err
	}
	if len(versions) == 0 {
		return 0, nil
	}
	return versions[len(versions)-1].VersionNumber, nil
}

// DeletePublish implements Store.DeletePublish.
func (s *FileSystemStore) DeletePublish(ctx context.Context, id string) error {
	entries, err := os.ReadDir(s.rootDir)
	if err != nil {
		return fmt.Errorf("failed to read root directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		recordFile := filepath.Join(s.rootDir, entry.Name(), id+".json")
		if _, err := os.Stat(recordFile); err != nil {
			continue
		}
		if err := os.Remove(recordFile); err != nil {
			return fmt.Errorf("failed to remove publish record: %w", err)
		}
		return nil
	}

	return ErrNotFound
}

// ListEntities implements EntityLister.
func (s *FileSystemStore) ListEntities(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read root directory: %w", err)
	}

	var entities []string
	for _, entry := range entries {
		if entry.IsDir() {
			entities = append(entities, entry.Name())
		}
	}
	return entities, nil
}

// HealthCheck implements Store.HealthCheck.
func (s *FileSystemStore) HealthCheck(ctx context.Context) error {
	if _, err := os.Stat(s.rootDir); err != nil {
		return fmt.Errorf("store root not accessible: %w", err)
	}
	return nil
}

func (s *FileSystemStore) readRecord(path string) (*PublishedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read publish record: %w", err)
	}

	var pf PublishedFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal publish record: %w", err)
	}
	return &pf, nil
}

// entityDirName flattens an entity name into a single path segment.
func entityDirName(entity string) string {
	if entity == "" {
		return "_unscoped"
	}
	return strings.ReplaceAll(entity, string(os.PathSeparator), "_")
}
