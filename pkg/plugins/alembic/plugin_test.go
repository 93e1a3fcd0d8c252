package alembic

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shotpipe/shotpipe/pkg/fileutil"
	"github.com/shotpipe/shotpipe/pkg/observability"
	"github.com/shotpipe/shotpipe/pkg/publish"
	"github.com/shotpipe/shotpipe/pkg/registry"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func testService(t *testing.T) *registry.Service {
	t.Helper()
	store, err := registry.NewFileSystemStore(t.TempDir())
	require.NoError(t, err)
	return registry.NewService(store, testLogger())
}

func writeCache(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("alembic data"), 0644))
	return path
}

// cacheItem builds a parented cache item the way the collector does.
func cacheItem(session *publish.Item, path string) *publish.Item {
	item := session.CreateItem("cache.alembic", filepath.Base(path))
	item.SetProperty(PropPath, path)
	return item
}

func emptySettings(t *testing.T, p *Plugin) publish.Settings {
	t.Helper()
	settings, err := publish.ResolveSettings(p.SettingsSchema(), nil)
	require.NoError(t, err)
	return settings
}

func TestAccept(t *testing.T) {
	p := New(testService(t))
	settings := emptySettings(t, p)
	session := publish.NewItem("maya.session", "scene.ma")

	t.Run("with path", func(t *testing.T) {
		item := cacheItem(session, "/work/char.abc")
		acc, err := p.Accept(context.Background(), testLogger(), settings, item)
		require.NoError(t, err)
		assert.True(t, acc.Accepted)
		assert.True(t, acc.Enabled)
		assert.True(t, acc.Visible)
		assert.False(t, acc.Required)
	})

	t.Run("without path is not applicable", func(t *testing.T) {
		item := session.CreateItem("cache.alembic", "mystery.abc")
		acc, err := p.Accept(context.Background(), testLogger(), settings, item)
		require.NoError(t, err, "missing path must not be an error")
		assert.False(t, acc.Accepted)
	})
}

func TestValidate(t *testing.T) {
	p := New(testService(t))
	item := publish.NewItem("cache.alembic", "char.abc")

	ok, err := p.Validate(context.Background(), testLogger(), emptySettings(t, p), item)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPublish_CopiesIntoParentPublishFolder(t *testing.T) {
	svc := testService(t)
	p := New(svc)
	settings := emptySettings(t, p)

	workDir := t.TempDir()
	publishFolder := t.TempDir()
	src := writeCache(t, workDir, "char.v003.abc")

	session := publish.NewItem("maya.session", "scene.ma")
	session.Context = &publish.Context{Project: "demo", Entity: "shot_010", Task: "anim"}
	session.SetProperty(PropPublishFolder, publishFolder)
	item := cacheItem(session, src)

	require.NoError(t, p.Publish(context.Background(), testLogger(), settings, item))

	wantPath := filepath.Join(publishFolder, "cache", "alembic", "char.v003.abc")
	assert.True(t, fileutil.FileExists(wantPath), "cache must be copied to <publish_folder>/cache/alembic")
	assert.Equal(t, wantPath, item.StringProperty(PropPublishPath))
	assert.Equal(t, filepath.Join(publishFolder, "cache", "alembic"), item.StringProperty(PropPublishFolder))

	// The source is untouched until finalize.
	assert.True(t, fileutil.FileExists(src))
}

func TestPublish_InPlaceWithoutPublishFolder(t *testing.T) {
	svc := testService(t)
	p := New(svc)
	settings := emptySettings(t, p)

	workDir := t.TempDir()
	src := writeCache(t, workDir, "char.v002.abc")

	session := publish.NewItem("maya.session", "scene.ma")
	item := cacheItem(session, src)

	require.NoError(t, p.Publish(context.Background(), testLogger(), settings, item))

	assert.Equal(t, src, item.StringProperty(PropPublishPath))
	assert.Equal(t, workDir, item.StringProperty(PropPublishFolder))
}

func TestPublish_VersionPrefersParentPublishVersion(t *testing.T) {
	svc := testService(t)
	p := New(svc)
	settings := emptySettings(t, p)

	src := writeCache(t, t.TempDir(), "char.v003.abc")

	session := publish.NewItem("maya.session", "scene.ma")
	session.SetProperty(PropPublishVersion, 9)
	item := cacheItem(session, src)

	require.NoError(t, p.Publish(context.Background(), testLogger(), settings, item))

	assert.Equal(t, 9, item.IntProperty(PropPublishVersion),
		"parent publish_version wins over the filename version")
}

func TestPublish_VersionFallsBackToFilename(t *testing.T) {
	svc := testService(t)
	p := New(svc)
	settings := emptySettings(t, p)

	src := writeCache(t, t.TempDir(), "char.v007.abc")

	session := publish.NewItem("maya.session", "scene.ma")
	item := cacheItem(session, src)

	require.NoError(t, p.Publish(context.Background(), testLogger(), settings, item))

	assert.Equal(t, 7, item.IntProperty(PropPublishVersion))
}

func TestPublish_UnversionedFileGetsAllocatedVersion(t *testing.T) {
	svc := testService(t)
	p := New(svc)
	settings := emptySettings(t, p)

	session := publish.NewItem("maya.session", "scene.ma")
	session.Context = &publish.Context{Entity: "shot_010"}

	// No parent version and no version token in the filename: the
	// registry allocates sequential versions per run.
	for want := 1; want <= 2; want++ {
		src := writeCache(t, t.TempDir(), "hero.abc")
		item := cacheItem(session, src)
		require.NoError(t, p.Publish(context.Background(), testLogger(), settings, item))
		assert.Equal(t, want, item.IntProperty(PropPublishVersion))
	}
}

func TestPublish_RegistersDependencyOnParentPublish(t *testing.T) {
	svc := testService(t)
	p := New(svc)
	settings := emptySettings(t, p)
	ctx := context.Background()

	parentPF, err := svc.RegisterPublish(ctx, &registry.RegisterRequest{
		Name: "scene.ma", Path: "/p/scene.ma", Type: "Maya Scene", Entity: "shot_010",
	})
	require.NoError(t, err)

	session := publish.NewItem("maya.session", "scene.ma")
	session.Context = &publish.Context{Entity: "shot_010"}
	session.SetProperty(PropPublishData, parentPF)

	src := writeCache(t, t.TempDir(), "char.v001.abc")
	item := cacheItem(session, src)

	require.NoError(t, p.Publish(ctx, testLogger(), settings, item))

	pf, ok := item.Property(PropPublishData)
	require.True(t, ok)
	cachePF := pf.(*registry.PublishedFile)
	assert.Equal(t, []string{parentPF.ID}, cachePF.DependencyIDs)

	// The dependency is traversable through the registry.
	deps, err := svc.Dependencies(ctx, cachePF.ID)
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, parentPF.ID, deps[0].ID)
}

func TestPublish_RecordFields(t *testing.T) {
	svc := testService(t)
	p := New(svc)

	settings, err := publish.ResolveSettings(p.SettingsSchema(), map[string]interface{}{
		SettingPublishType: "Geometry Cache",
	})
	require.NoError(t, err)

	src := writeCache(t, t.TempDir(), "char.v001.abc")

	session := publish.NewItem("maya.session", "scene.ma")
	session.Context = &publish.Context{Project: "demo", Entity: "shot_010", Task: "anim"}
	session.Thumbnail = "/tmp/thumb.png"
	item := cacheItem(session, src)
	item.Description = "first pass"

	require.NoError(t, p.Publish(context.Background(), testLogger(), settings, item))

	pf := item.Properties[PropPublishData].(*registry.PublishedFile)
	assert.Equal(t, "char.v001.abc", pf.Name)
	assert.Equal(t, "Geometry Cache", pf.Type)
	assert.Equal(t, "first pass", pf.Comment)
	assert.Equal(t, "/tmp/thumb.png", pf.Thumbnail, "thumbnail falls back to the parent item")
	assert.Equal(t, "demo", pf.Project)
	assert.Equal(t, "shot_010", pf.Entity)
	assert.Equal(t, "anim", pf.Task)
}

func TestFinalize_DeletesSourceNotPublishPath(t *testing.T) {
	svc := testService(t)
	p := New(svc)
	settings := emptySettings(t, p)

	src := writeCache(t, t.TempDir(), "char.v001.abc")
	publishFolder := t.TempDir()

	session := publish.NewItem("maya.session", "scene.ma")
	session.SetProperty(PropPublishFolder, publishFolder)
	item := cacheItem(session, src)

	require.NoError(t, p.Publish(context.Background(), testLogger(), settings, item))
	require.NoError(t, p.Finalize(context.Background(), testLogger(), settings, item))

	assert.False(t, fileutil.FileExists(src), "source must be deleted on finalize")
	publishPath := item.StringProperty(PropPublishPath)
	assert.True(t, fileutil.FileExists(publishPath), "published copy must survive finalize")
}

func TestFinalize_MissingSourceIsFine(t *testing.T) {
	p := New(testService(t))
	settings := emptySettings(t, p)

	session := publish.NewItem("maya.session", "scene.ma")
	item := cacheItem(session, filepath.Join(t.TempDir(), "already-gone.abc"))

	assert.NoError(t, p.Finalize(context.Background(), testLogger(), settings, item))
}

func TestLoad_RequiresRegistrar(t *testing.T) {
	assert.Error(t, New(nil).Load())
	assert.NoError(t, New(testService(t)).Load())
}

func TestItemFilters(t *testing.T) {
	p := New(testService(t))
	assert.Equal(t, []string{"cache.alembic"}, p.ItemFilters())
	assert.True(t, publish.MatchesFilters(p.ItemFilters(), "cache.alembic"))
	assert.False(t, publish.MatchesFilters(p.ItemFilters(), "cache.vdb"))
}

func TestFactory(t *testing.T) {
	svc := testService(t)
	factory := Factory(svc)

	plugin, err := factory(nil)
	require.NoError(t, err)
	assert.Equal(t, "alembic-cache", plugin.Manifest().ID)
}
