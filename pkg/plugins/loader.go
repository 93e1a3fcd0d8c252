package plugins

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

// CurrentSDKAPIVersion is the plugin API version this SDK implements.
// Plugins declare the API they were built against in their manifest and are
// rejected on a major-version mismatch.
const CurrentSDKAPIVersion = "1.0.0"

// Factory constructs a plugin instance from its manifest. Factories carry
// whatever wiring the plugin needs (a registry service, settings), so a
// manifest on disk becomes a live plugin only when a matching factory was
// registered first.
type Factory func(*Manifest) (Plugin, error)

// Loader discovers directory-shaped plugins and instantiates them through
// registered factories. The manifest's `impl` metadata key selects the
// factory; when absent the manifest ID is used.
type Loader struct {
	pluginDirs    []string
	factories     map[string]Factory
	loadedPlugins map[string]Plugin
	mu            sync.RWMutex
	log           *logrus.Logger
}

// NewLoader creates a loader that searches the given directories.
func NewLoader(dirs []string, log *logrus.Logger) *Loader {
	if log == nil {
		log = logrus.New()
	}
	return &Loader{
		pluginDirs:    dirs,
		factories:     make(map[string]Factory),
		loadedPlugins: make(map[string]Plugin),
		log:           log,
	}
}

// RegisterFactory makes a factory available under the given implementation
// name. Registering the same name again replaces the previous factory.
func (l *Loader) RegisterFactory(name string, factory Factory) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.factories[name] = factory
}

// DiscoverPlugins scans every configured directory and loads each plugin
// subdirectory it finds. Directories without a manifest, loose files and
// missing search paths are skipped with a log line rather than failing the
// whole scan.
func (l *Loader) DiscoverPlugins(ctx context.Context) ([]Plugin, error) {
	var found []Plugin

	for _, dir := range l.pluginDirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				l.log.Debugf("Plugin directory does not exist: %s", dir)
			} else {
				l.log.Warnf("Failed to read plugin directory %s: %v", dir, err)
			}
			continue
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			pluginDir := filepath.Join(dir, entry.Name())
			plugin, err := l.LoadPlugin(ctx, pluginDir)
			if err != nil {
				l.log.Warnf("Failed to load plugin from %s: %v", pluginDir, err)
				continue
			}
			found = append(found, plugin)
		}
	}

	return found, nil
}

// LoadPlugin loads one plugin directory: manifest, validation, API
// compatibility, factory construction, then the plugin's own Load hook.
func (l *Loader) LoadPlugin(ctx context.Context, pluginDir string) (Plugin, error) {
	manifest, err := LoadManifestFromDir(pluginDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}

	if errs := ValidateManifest(manifest); len(errs) > 0 {
		return nil, fmt.Errorf("manifest validation failed: %v", errs)
	}

	if !IsCompatibleAPIVersion(manifest.APIVersion, CurrentSDKAPIVersion) {
		return nil, fmt.Errorf("incompatible API version: plugin requires %s, SDK is %s",
			manifest.APIVersion, CurrentSDKAPIVersion)
	}

	factory, name, err := l.factoryFor(manifest)
	if err != nil {
		return nil, err
	}

	plugin, err := factory(manifest)
	if err != nil {
		return nil, fmt.Errorf("failed to construct plugin %s: %w", name, err)
	}

	if err := plugin.Load(); err != nil {
		return nil, fmt.Errorf("plugin load failed: %w", err)
	}

	l.mu.Lock()
	l.loadedPlugins[manifest.ID] = plugin
	l.mu.Unlock()

	l.log.Infof("Loaded plugin: %s v%s (type: %s)", manifest.Name, manifest.Version, manifest.Type)
	return plugin, nil
}

// factoryFor resolves the factory a manifest asks for.
func (l *Loader) factoryFor(manifest *Manifest) (Factory, string, error) {
	name := manifest.Metadata["impl"]
	if name == "" {
		name = manifest.ID
	}

	l.mu.RLock()
	factory, ok := l.factories[name]
	l.mu.RUnlock()
	if !ok {
		return nil, "", fmt.Errorf("no factory registered for plugin implementation %q", name)
	}
	return factory, name, nil
}

// UnloadPlugin runs a plugin's Unload hook and forgets it.
func (l *Loader) UnloadPlugin(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	plugin, ok := l.loadedPlugins[id]
	if !ok {
		return fmt.Errorf("plugin not loaded: %s", id)
	}
	if err := plugin.Unload(); err != nil {
		return fmt.Errorf("failed to unload plugin: %w", err)
	}
	delete(l.loadedPlugins, id)
	return nil
}

// GetLoadedPlugin returns a loaded plugin by ID.
func (l *Loader) GetLoadedPlugin(id string) (Plugin, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	plugin, ok := l.loadedPlugins[id]
	return plugin, ok
}

// ListLoadedPlugins returns every plugin this loader has loaded.
func (l *Loader) ListLoadedPlugins() []Plugin {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]Plugin, 0, len(l.loadedPlugins))
	for _, plugin := range l.loadedPlugins {
		result = append(result, plugin)
	}
	return result
}

// GetDefaultPluginDirectories returns the standard plugin search paths.
func GetDefaultPluginDirectories() []string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "/tmp"
	}
	return []string{
		filepath.Join(homeDir, ".shotpipe", "plugins"),
		"/etc/shotpipe/plugins",
		"./plugins",
	}
}
