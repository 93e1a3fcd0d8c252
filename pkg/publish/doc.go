// Package publish implements the publish pipeline: items, settings, and the
// runner that drives plugins through the accept/validate/publish/finalize
// lifecycle.
//
// # Overview
//
// A publish run starts from a tree of items. Each item describes one thing to
// publish (a cache file, a scene, a session) with a type, a display name, and
// a free-form property bag. Plugins declare which item types they handle via
// glob-style filters; the runner pairs every item with every plugin whose
// filters match it and then drives the lifecycle in phases:
//
//  1. Accept: the plugin inspects the item and says whether it applies.
//  2. Validate: the plugin checks the item is fit to publish.
//  3. Publish: the plugin performs the actual publish work.
//  4. Finalize: cleanup, run only after every publish in the run completed.
//
// Rejection during accept is not an error. It just means the plugin does not
// apply to that item.
//
// # Items
//
//	session := publish.NewItem("maya.session", "scene.ma")
//	cache := session.CreateItem("cache.alembic", "char_v003.abc")
//	cache.SetProperty("path", "/work/caches/char_v003.abc")
//
// Properties written by a plugin on a parent item are visible to plugins
// running on its children, because items within a subtree are processed
// parent before child.
//
// # Running
//
//	runner := publish.NewRunner(plugins, log, publish.WithWorkers(8))
//	report, err := runner.Run(ctx, []*publish.Item{session})
//
// # Related Packages
//
//   - pkg/plugins: plugin discovery and registration
//   - pkg/collector: builds item trees from the filesystem
package publish
