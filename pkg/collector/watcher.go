package collector

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/shotpipe/shotpipe/pkg/observability"
	"github.com/shotpipe/shotpipe/pkg/publish"
)

// Watcher emits items for publishable files that appear in a set of drop
// directories. Writes are debounced so half-copied caches are not published
// mid-transfer: an item is emitted only after a file has been quiet for the
// settle interval.
type Watcher struct {
	dirs    []string
	session Session
	settle  time.Duration
	log     *observability.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool

	items chan *publish.Item
}

// NewWatcher creates a drop-directory watcher. Items inherit the session's
// context and publish folder the same way Collect's session item does.
func NewWatcher(dirs []string, session Session, settle time.Duration, log *observability.Logger) *Watcher {
	if settle <= 0 {
		settle = 2 * time.Second
	}
	return &Watcher{
		dirs:    dirs,
		session: session,
		settle:  settle,
		log:     log,
		pending: make(map[string]*time.Timer),
		items:   make(chan *publish.Item, 64),
	}
}

// Items returns the channel of collected items.
func (w *Watcher) Items() <-chan *publish.Item {
	return w.items
}

// Run watches the drop directories until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	for _, dir := range w.dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		w.log.Infof("watching drop directory: %s", dir)
	}

	defer w.shutdown()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if ItemTypeForPath(event.Name) == "" {
				continue
			}
			w.schedule(event.Name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("watcher error")
		}
	}
}

// schedule (re)starts the settle timer for a path. Each new write pushes the
// emission out until the file goes quiet.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.settle)
		return
	}

	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.closed {
			return
		}
		delete(w.pending, path)
		w.emit(path)
	})
}

// shutdown stops every pending settle timer before closing the item channel.
// A timer firing during teardown sees the closed flag under w.mu and bails
// instead of sending on the closed channel.
func (w *Watcher) shutdown() {
	w.mu.Lock()
	w.closed = true
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()
	close(w.items)
}

// emit is called with w.mu held.
func (w *Watcher) emit(path string) {
	session := publish.NewItem("session", filepath.Base(filepath.Dir(path)))
	session.Context = w.session.Context
	if w.session.PublishFolder != "" {
		session.SetProperty("publish_folder", w.session.PublishFolder)
	}
	if w.session.PublishVersion > 0 {
		session.SetProperty("publish_version", w.session.PublishVersion)
	}

	item := session.CreateItem(ItemTypeForPath(path), filepath.Base(path))
	item.SetProperty("path", path)

	select {
	case w.items <- session:
	default:
		w.log.WithField("path", path).Warn("item channel full, dropping collected item")
	}
}
