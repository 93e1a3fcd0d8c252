// Package alembic publishes alembic geometry caches that exist on disk.
//
// The plugin copies an accepted cache into the parent item's publish folder
// under cache/alembic, registers a published-file record whose version
// follows the parent's publish version, and deletes the source file on
// finalize so it is not picked up again on the next run.
package alembic

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/shotpipe/shotpipe/pkg/fileutil"
	"github.com/shotpipe/shotpipe/pkg/observability"
	"github.com/shotpipe/shotpipe/pkg/plugins"
	"github.com/shotpipe/shotpipe/pkg/publish"
	"github.com/shotpipe/shotpipe/pkg/registry"
)

// Item property keys used to pass derived values between plugins in a run.
const (
	PropPath           = "path"
	PropPublishFolder  = "publish_folder"
	PropPublishVersion = "publish_version"
	PropPublishData    = "publish_data"
	PropPublishPath    = "publish_path"
)

// SettingPublishType is the display name of the plugin's one setting.
const SettingPublishType = "Publish Type"

// Registrar records published files. Satisfied by *registry.Service.
type Registrar interface {
	RegisterPublish(ctx context.Context, req *registry.RegisterRequest) (*registry.PublishedFile, error)
}

// Plugin publishes alembic cache files.
type Plugin struct {
	manifest  *plugins.Manifest
	registrar Registrar
}

// New creates the alembic publish plugin.
func New(registrar Registrar) *Plugin {
	return &Plugin{
		manifest: &plugins.Manifest{
			ID:          "alembic-cache",
			Name:        "Publish Alembic",
			Version:     "1.0.0",
			APIVersion:  plugins.CurrentSDKAPIVersion,
			Description: "Publishes an alembic cache as a versioned snapshot tied to the parent item's publish version.",
			Type:        plugins.PluginTypePublish,
		},
		registrar: registrar,
	}
}

// Factory returns a plugin factory for loader registration.
func Factory(registrar Registrar) plugins.Factory {
	return func(manifest *plugins.Manifest) (plugins.Plugin, error) {
		p := New(registrar)
		if manifest != nil {
			p.manifest = manifest
		}
		return p, nil
	}
}

// Manifest implements plugins.Plugin.
func (p *Plugin) Manifest() *plugins.Manifest {
	return p.manifest
}

// Load implements plugins.Plugin.
func (p *Plugin) Load() error {
	if p.registrar == nil {
		return fmt.Errorf("alembic plugin requires a registrar")
	}
	return nil
}

// Unload implements plugins.Plugin.
func (p *Plugin) Unload() error {
	return nil
}

// Name implements publish.Plugin.
func (p *Plugin) Name() string {
	return p.manifest.Name
}

// ItemFilters implements publish.Plugin. Only alembic cache items are
// presented to Accept.
func (p *Plugin) ItemFilters() []string {
	return []string{"cache.alembic"}
}

// SettingsSchema implements publish.Plugin.
func (p *Plugin) SettingsSchema() map[string]publish.SettingSpec {
	return map[string]publish.SettingSpec{
		SettingPublishType: {
			Type:        "string",
			Default:     "Alembic Cache",
			Description: "Published file type to associate publishes with.",
		},
	}
}

// Accept determines whether the item can be published. An item without a
// path property is not applicable rather than failed.
func (p *Plugin) Accept(ctx context.Context, log *observability.Logger, settings publish.Settings, item *publish.Item) (*publish.Acceptance, error) {
	if !item.HasProperty(PropPath) {
		log.Error("unknown file path for alembic cache")
		return &publish.Acceptance{Accepted: false}, nil
	}

	return &publish.Acceptance{
		Accepted: true,
		Required: false,
		Enabled:  true,
		Visible:  true,
	}, nil
}

// Validate checks that the item is ok to publish. The cache itself carries
// no further constraints.
func (p *Plugin) Validate(ctx context.Context, log *observability.Logger, settings publish.Settings, item *publish.Item) (bool, error) {
	return true, nil
}

// Publish copies the cache into the parent's publish folder when one is set,
// registers the published file, and writes the publish version and folder
// back into the item so descendant items can align with them.
func (p *Plugin) Publish(ctx context.Context, log *observability.Logger, settings publish.Settings, item *publish.Item) error {
	path := item.StringProperty(PropPath)
	fileInfo := fileutil.SplitPath(path)

	var publishPath string
	publishFolder := parentStringProperty(item, PropPublishFolder)
	if publishFolder != "" {
		// Mirror the project structure in the publish location.
		alembicFolder := filepath.Join(publishFolder, "cache", "alembic")
		if err := fileutil.EnsureFolderExists(alembicFolder); err != nil {
			return err
		}

		publishPath = filepath.Join(alembicFolder, fileInfo.Filename)

		log.Infof("copying to publish folder: %s", alembicFolder)
		if err := fileutil.CopyFile(path, publishPath); err != nil {
			return fmt.Errorf("failed to copy cache to publish folder: %w", err)
		}

		fileInfo = fileutil.SplitPath(publishPath)
	} else {
		// No parent publish folder: publish in place.
		publishPath = path
	}

	// Prefer the parent's publish version to keep a simple association on
	// disk with files published together; fall back to any version in the
	// file name itself.
	version := parentIntProperty(item, PropPublishVersion)
	if version == 0 {
		version = fileInfo.Version
	}

	var dependencyIDs []string
	if parentData := parentPublishData(item); parentData != nil {
		dependencyIDs = append(dependencyIDs, parentData.ID)
	}

	req := &registry.RegisterRequest{
		Name:          fileutil.PublishName(publishPath),
		Path:          publishPath,
		VersionNumber: version,
		Type:          settings.Get(SettingPublishType).String(),
		Comment:       item.Description,
		Thumbnail:     item.ThumbnailPath(),
		DependencyIDs: dependencyIDs,
	}
	if item.Context != nil {
		req.Project = item.Context.Project
		req.Entity = item.Context.Entity
		req.Task = item.Context.Task
	}

	log.WithFields(map[string]interface{}{
		"name":    req.Name,
		"path":    req.Path,
		"version": req.VersionNumber,
		"type":    req.Type,
	}).Debug("registering publish")

	pf, err := p.registrar.RegisterPublish(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to register publish: %w", err)
	}

	item.SetProperty(PropPublishData, pf)
	item.SetProperty(PropPublishPath, publishPath)
	item.SetProperty(PropPublishVersion, pf.VersionNumber)
	item.SetProperty(PropPublishFolder, fileInfo.Folder)

	return nil
}

// Finalize deletes the original source path so the cache is not published
// again on a subsequent run. The copied publish path is never touched.
func (p *Plugin) Finalize(ctx context.Context, log *observability.Logger, settings publish.Settings, item *publish.Item) error {
	path := item.StringProperty(PropPath)
	log.Infof("deleting %s", path)
	return fileutil.SafeDeleteFile(path)
}

func parentStringProperty(item *publish.Item, key string) string {
	if item.Parent == nil {
		return ""
	}
	return item.Parent.StringProperty(key)
}

func parentIntProperty(item *publish.Item, key string) int {
	if item.Parent == nil {
		return 0
	}
	return item.Parent.IntProperty(key)
}

func parentPublishData(item *publish.Item) *registry.PublishedFile {
	if item.Parent == nil {
		return nil
	}
	if v, ok := item.Parent.Property(PropPublishData); ok {
		if pf, ok := v.(*registry.PublishedFile); ok {
			return pf
		}
	}
	return nil
}
