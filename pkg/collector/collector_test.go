package collector

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shotpipe/shotpipe/pkg/publish"
)

func TestItemTypeForPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/work/char.abc", "cache.alembic"},
		{"/work/CHAR.ABC", "cache.alembic"},
		{"/work/smoke.vdb", "cache.vdb"},
		{"/work/sim.bgeo", "cache.bgeo"},
		{"/work/scene.ma", "file.maya"},
		{"/work/scene.mb", "file.maya"},
		{"/work/asset.usd", "file.usd"},
		{"/work/notes.txt", ""},
		{"/work/noext", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ItemTypeForPath(tt.path), tt.path)
	}
}

func TestCollect(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "caches"), 0755))
	for _, name := range []string{"char.abc", "caches/env.abc", "caches/smoke.vdb", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("x"), 0644))
	}

	ctx := &publish.Context{Project: "demo", Entity: "shot_010"}
	session, err := Collect(Session{
		Root:          root,
		Context:       ctx,
		PublishFolder: "/publish/shot_010",
	})
	require.NoError(t, err)

	assert.Equal(t, "session", session.Type)
	assert.Equal(t, filepath.Base(root), session.Name)
	assert.Equal(t, ctx, session.Context)
	assert.Equal(t, "/publish/shot_010", session.StringProperty("publish_folder"))

	children := session.Children()
	require.Len(t, children, 3, "notes.txt must be skipped")

	byName := make(map[string]*publish.Item)
	for _, c := range children {
		byName[c.Name] = c
		assert.Equal(t, ctx, c.Context, "children inherit the session context")
		assert.NotEmpty(t, c.StringProperty("path"))
	}
	assert.Equal(t, "cache.alembic", byName["char.abc"].Type)
	assert.Equal(t, "cache.alembic", byName["env.abc"].Type)
	assert.Equal(t, "cache.vdb", byName["smoke.vdb"].Type)
}

func TestCollect_PublishVersionPinned(t *testing.T) {
	root := t.TempDir()

	session, err := Collect(Session{Root: root, PublishVersion: 5})
	require.NoError(t, err)
	assert.Equal(t, 5, session.IntProperty("publish_version"))

	unpinned, err := Collect(Session{Root: root})
	require.NoError(t, err)
	assert.False(t, unpinned.HasProperty("publish_version"))
}

func TestCollect_EmptyRoot(t *testing.T) {
	session, err := Collect(Session{Root: t.TempDir()})
	require.NoError(t, err)
	assert.Empty(t, session.Children())
}

func TestCollect_BadRoot(t *testing.T) {
	_, err := Collect(Session{Root: filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "file.abc")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
	_, err = Collect(Session{Root: file})
	assert.Error(t, err)
}
