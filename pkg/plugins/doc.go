// Package plugins provides the plugin framework: manifests, a process-wide
// registry, and a loader that discovers plugins from the filesystem.
//
// # Overview
//
// A plugin ships as a directory containing a plugin.yaml manifest. The
// manifest names the plugin, pins its version and the SDK API version it was
// built against, and carries metadata the loader uses to pick a registered
// factory. Because Go links plugins at build time, the binary registers a
// Factory per implementation key and the loader matches manifests to
// factories at discovery time.
//
// # Loading
//
//	loader := plugins.NewLoader(plugins.GetDefaultPluginDirectories(), log)
//	loader.RegisterFactory("alembic", alembic.Factory(service))
//	loaded, err := loader.DiscoverPlugins(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Plugins added to the package-level registry with Register can be listed by
// capability:
//
//	for _, p := range plugins.GetPublishPlugins() {
//		fmt.Println(p.Manifest().ID)
//	}
//
// # Compatibility
//
// A manifest is accepted when its api_version shares a major version with the
// running SDK. Minor and patch drift is tolerated.
//
// # Related Packages
//
//   - pkg/publish: the lifecycle contract publish plugins implement
//   - pkg/plugins/alembic: the built-in alembic cache publisher
package plugins
