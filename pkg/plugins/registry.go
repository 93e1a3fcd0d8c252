package plugins

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrPluginNotFound is returned when a plugin ID is not registered.
var ErrPluginNotFound = errors.New("plugin not found")

// registered holds every plugin keyed by manifest ID. Plugins are registered
// once at startup (builtin factories or the loader) and looked up by the
// pipeline afterwards, so reads dominate.
var (
	registryMu sync.RWMutex
	registered = map[string]Plugin{}
)

// Register adds a plugin under its manifest ID. Registering the same ID
// twice is an error; unregister the old plugin first.
func Register(plugin Plugin) error {
	if plugin == nil {
		return errors.New("cannot register nil plugin")
	}
	manifest := plugin.Manifest()
	if manifest == nil {
		return errors.New("plugin has nil manifest")
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, dup := registered[manifest.ID]; dup {
		return fmt.Errorf("plugin already registered: %s", manifest.ID)
	}
	registered[manifest.ID] = plugin
	return nil
}

// Unregister removes a plugin by ID.
func Unregister(id string) error {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, ok := registered[id]; !ok {
		return fmt.Errorf("%w: %s", ErrPluginNotFound, id)
	}
	delete(registered, id)
	return nil
}

// Get looks up a plugin by ID.
func Get(id string) (Plugin, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	plugin, ok := registered[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, id)
	}
	return plugin, nil
}

// Has reports whether a plugin ID is registered.
func Has(id string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registered[id]
	return ok
}

// List returns all registered plugins ordered by ID.
func List() []Plugin {
	registryMu.RLock()
	defer registryMu.RUnlock()

	ids := make([]string, 0, len(registered))
	for id := range registered {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	result := make([]Plugin, 0, len(ids))
	for _, id := range ids {
		result = append(result, registered[id])
	}
	return result
}

// ListByType returns the registered plugins whose manifest declares the
// given type, ordered by ID.
func ListByType(t PluginType) []Plugin {
	var result []Plugin
	for _, plugin := range List() {
		if plugin.Manifest().Type == t {
			result = append(result, plugin)
		}
	}
	return result
}

// GetPublishPlugins returns every registered plugin that implements the
// publish lifecycle, ordered by ID. Plugins that only implement the base
// interface are skipped.
func GetPublishPlugins() []PublishPlugin {
	var result []PublishPlugin
	for _, plugin := range List() {
		if pub, ok := plugin.(PublishPlugin); ok {
			result = append(result, pub)
		}
	}
	return result
}

// Count returns the number of registered plugins.
func Count() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registered)
}

// Clear removes every plugin. Intended for tests.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registered = map[string]Plugin{}
}
