package collector

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shotpipe/shotpipe/pkg/publish"
)

// typeForExtension maps file extensions to item types.
var typeForExtension = map[string]string{
	".abc":  "cache.alembic",
	".vdb":  "cache.vdb",
	".bgeo": "cache.bgeo",
	".ma":   "file.maya",
	".mb":   "file.maya",
	".usd":  "file.usd",
}

// ItemTypeForPath returns the item type for a file path, or "" when the
// file is not a known publishable type.
func ItemTypeForPath(path string) string {
	return typeForExtension[strings.ToLower(filepath.Ext(path))]
}

// Session describes one collection pass over a work area.
type Session struct {
	// Root is the work area directory to scan.
	Root string
	// Context is attached to every collected item.
	Context *publish.Context
	// PublishFolder, when set, is written onto the session item so file
	// plugins copy their payloads there.
	PublishFolder string
	// PublishVersion, when non-zero, pins the version descendant publishes
	// align to.
	PublishVersion int
}

// Collect walks the session root and builds an item tree: a session item at
// the root with one child item per publishable file found.
func Collect(s Session) (*publish.Item, error) {
	info, err := os.Stat(s.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat session root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("session root is not a directory: %s", s.Root)
	}

	session := publish.NewItem("session", filepath.Base(s.Root))
	session.Context = s.Context
	if s.PublishFolder != "" {
		session.SetProperty("publish_folder", s.PublishFolder)
	}
	if s.PublishVersion > 0 {
		session.SetProperty("publish_version", s.PublishVersion)
	}

	err = filepath.WalkDir(s.Root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		itemType := ItemTypeForPath(path)
		if itemType == "" {
			return nil
		}

		item := session.CreateItem(itemType, filepath.Base(path))
		item.SetProperty("path", path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk session root: %w", err)
	}

	return session, nil
}
