package plugins

import (
	"time"

	"github.com/shotpipe/shotpipe/pkg/publish"
)

// Plugin is the base interface all plugins must implement
type Plugin interface {
	Manifest() *Manifest
	Load() error
	Unload() error
}

// Manifest describes plugin metadata
type Manifest struct {
	ID          string            `yaml:"id"`          // Unique ID (e.g., "alembic-cache")
	Name        string            `yaml:"name"`        // Display name
	Version     string            `yaml:"version"`     // Semver
	APIVersion  string            `yaml:"api_version"` // SDK API version
	Description string            `yaml:"description"` // Short description
	Author      string            `yaml:"author"`      // Author name
	Type        PluginType        `yaml:"type"`        // Plugin type
	Metadata    map[string]string `yaml:"metadata"`    // Additional metadata
}

// PluginType defines the category of plugin
type PluginType string

const (
	PluginTypePublish   PluginType = "publish"
	PluginTypeCollector PluginType = "collector"
)

// PublishPlugin is the contract for plugins that publish items: the base
// plugin lifecycle plus the accept/validate/publish/finalize callbacks the
// pipeline runner drives.
type PublishPlugin interface {
	Plugin
	publish.Plugin
}

// PluginInfo contains runtime information about a loaded plugin
type PluginInfo struct {
	Manifest  *Manifest
	LoadedAt  time.Time
	IsEnabled bool
	Source    string // builtin, filesystem
}

// ValidationError represents a manifest validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
