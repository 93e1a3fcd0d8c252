package plugins

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoader(t *testing.T) {
	dirs := []string{"/tmp/plugins"}
	loader := NewLoader(dirs, nil)

	assert.NotNil(t, loader)
	assert.Equal(t, dirs, loader.pluginDirs)
	assert.NotNil(t, loader.log)
	assert.NotNil(t, loader.loadedPlugins)
}

func TestNewLoader_WithCustomLogger(t *testing.T) {
	customLogger := logrus.New()
	customLogger.SetLevel(logrus.DebugLevel)

	loader := NewLoader([]string{"/tmp/plugins"}, customLogger)
	assert.Equal(t, customLogger, loader.log)
}

func TestGetDefaultPluginDirectories(t *testing.T) {
	dirs := GetDefaultPluginDirectories()

	assert.NotEmpty(t, dirs)
	assert.Contains(t, dirs[0], ".shotpipe/plugins")
}

func writePluginDir(t *testing.T, parent, name string, manifest *Manifest) string {
	t.Helper()
	pluginDir := filepath.Join(parent, name)
	require.NoError(t, os.MkdirAll(pluginDir, 0755))
	require.NoError(t, SaveManifest(manifest, filepath.Join(pluginDir, "plugin.yaml")))
	return pluginDir
}

func TestLoadPlugin(t *testing.T) {
	loader := NewLoader(nil, logrus.New())

	constructed := false
	loader.RegisterFactory("alembic", func(m *Manifest) (Plugin, error) {
		constructed = true
		return newStubPlugin(m.ID, m.Type), nil
	})

	manifest := validManifest()
	manifest.Metadata = map[string]string{"impl": "alembic"}
	pluginDir := writePluginDir(t, t.TempDir(), "alembic-cache", manifest)

	plugin, err := loader.LoadPlugin(context.Background(), pluginDir)
	require.NoError(t, err)

	assert.True(t, constructed)
	assert.True(t, plugin.(*stubPlugin).loaded, "Load() must be called")

	got, ok := loader.GetLoadedPlugin("alembic-cache")
	assert.True(t, ok)
	assert.Equal(t, plugin, got)
}

func TestLoadPlugin_FactoryFallsBackToID(t *testing.T) {
	loader := NewLoader(nil, logrus.New())
	loader.RegisterFactory("alembic-cache", func(m *Manifest) (Plugin, error) {
		return newStubPlugin(m.ID, m.Type), nil
	})

	// No impl metadata: the manifest ID selects the factory.
	pluginDir := writePluginDir(t, t.TempDir(), "alembic-cache", validManifest())

	_, err := loader.LoadPlugin(context.Background(), pluginDir)
	require.NoError(t, err)
}

func TestLoadPlugin_NoFactory(t *testing.T) {
	loader := NewLoader(nil, logrus.New())

	pluginDir := writePluginDir(t, t.TempDir(), "alembic-cache", validManifest())

	_, err := loader.LoadPlugin(context.Background(), pluginDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no factory registered")
}

func TestLoadPlugin_IncompatibleAPIVersion(t *testing.T) {
	loader := NewLoader(nil, logrus.New())
	loader.RegisterFactory("alembic-cache", func(m *Manifest) (Plugin, error) {
		return newStubPlugin(m.ID, m.Type), nil
	})

	manifest := validManifest()
	manifest.APIVersion = "2.0.0"
	pluginDir := writePluginDir(t, t.TempDir(), "alembic-cache", manifest)

	_, err := loader.LoadPlugin(context.Background(), pluginDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incompatible API version")
}

func TestLoadPlugin_InvalidManifest(t *testing.T) {
	loader := NewLoader(nil, logrus.New())

	manifest := validManifest()
	manifest.Version = "not-semver"
	pluginDir := writePluginDir(t, t.TempDir(), "bad", manifest)

	_, err := loader.LoadPlugin(context.Background(), pluginDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "manifest validation failed")
}

func TestLoadPlugin_FactoryError(t *testing.T) {
	loader := NewLoader(nil, logrus.New())
	loader.RegisterFactory("alembic-cache", func(m *Manifest) (Plugin, error) {
		return nil, errors.New("missing service")
	})

	pluginDir := writePluginDir(t, t.TempDir(), "alembic-cache", validManifest())

	_, err := loader.LoadPlugin(context.Background(), pluginDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to construct plugin")
}

func TestDiscoverPlugins(t *testing.T) {
	root := t.TempDir()

	good := validManifest()
	good.Metadata = map[string]string{"impl": "stub"}
	writePluginDir(t, root, "good", good)

	// A directory without a manifest is skipped, not fatal.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "not-a-plugin"), 0755))

	// Loose files in the plugin root are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(root, "README"), []byte("x"), 0644))

	loader := NewLoader([]string{root, "/does/not/exist"}, logrus.New())
	loader.RegisterFactory("stub", func(m *Manifest) (Plugin, error) {
		return newStubPlugin(m.ID, m.Type), nil
	})

	discovered, err := loader.DiscoverPlugins(context.Background())
	require.NoError(t, err)
	require.Len(t, discovered, 1)
	assert.Equal(t, "alembic-cache", discovered[0].Manifest().ID)
	assert.Len(t, loader.ListLoadedPlugins(), 1)
}

func TestUnloadPlugin(t *testing.T) {
	loader := NewLoader(nil, logrus.New())
	loader.RegisterFactory("alembic-cache", func(m *Manifest) (Plugin, error) {
		return newStubPlugin(m.ID, m.Type), nil
	})

	pluginDir := writePluginDir(t, t.TempDir(), "alembic-cache", validManifest())
	plugin, err := loader.LoadPlugin(context.Background(), pluginDir)
	require.NoError(t, err)

	require.NoError(t, loader.UnloadPlugin(context.Background(), "alembic-cache"))
	assert.False(t, plugin.(*stubPlugin).loaded, "Unload() must be called")

	_, ok := loader.GetLoadedPlugin("alembic-cache")
	assert.False(t, ok)

	assert.Error(t, loader.UnloadPlugin(context.Background(), "alembic-cache"))
}
