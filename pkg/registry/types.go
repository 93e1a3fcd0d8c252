package registry

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a published file does not exist.
var ErrNotFound = errors.New("published file not found")

// PublishedFile is the registry record for one versioned, tracked publish.
type PublishedFile struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Path          string    `json:"path"`
	VersionNumber int       `json:"version_number"`
	Type          string    `json:"type"` // published-file type, e.g. "Alembic Cache"
	Comment       string    `json:"comment,omitempty"`
	Thumbnail     string    `json:"thumbnail,omitempty"`
	Project       string    `json:"project"`
	Entity        string    `json:"entity"`
	Task          string    `json:"task,omitempty"`
	DependencyIDs []string  `json:"dependency_ids,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// RegisterRequest describes a publish to be recorded. A zero VersionNumber
// asks the service to allocate the next version for (Name, Entity).
type RegisterRequest struct {
	Name          string   `json:"name"`
	Path          string   `json:"path"`
	VersionNumber int      `json:"version_number"`
	Type          string   `json:"type"`
	Comment       string   `json:"comment,omitempty"`
	Thumbnail     string   `json:"thumbnail,omitempty"`
	Project       string   `json:"project"`
	Entity        string   `json:"entity"`
	Task          string   `json:"task,omitempty"`
	DependencyIDs []string `json:"dependency_ids,omitempty"`
}

// Validate checks the request for required fields.
func (r *RegisterRequest) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("publish name is required")
	}
	if r.Path == "" {
		return fmt.Errorf("publish path is required")
	}
	if r.Type == "" {
		return fmt.Errorf("published file type is required")
	}
	if r.VersionNumber < 0 {
		return fmt.Errorf("version number must not be negative")
	}
	return nil
}
