package history

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/dmitrijs2005/boardkeeper/internal/logging"
	"github.com/dmitrijs2005/boardkeeper/internal/models"
	"github.com/fsnotify/fsnotify"
)

// Watcher turns writes to store files by other processes into tracker
// notifications. SQLite in WAL mode touches the -wal file on every commit,
// so both the database and its log are watched.
type Watcher struct {
	watcher *fsnotify.Watcher
	notify  func(storeID string)
	logger  logging.Logger

	mu      sync.Mutex
	files   map[string]string
	dirs    map[string]bool
	running bool
	done    chan struct{}
	wg      sync.WaitGroup
}

func NewWatcher(notify func(storeID string), logger logging.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Watcher{
		watcher: w,
		notify:  notify,
		logger:  logger.With("module", "history-watcher"),
		files:   make(map[string]string),
		dirs:    make(map[string]bool),
		done:    make(chan struct{}),
	}, nil
}

// Watch starts reporting changes to the store described by d. The directory
// is watched rather than the file, since SQLite recreates the -wal file.
func (w *Watcher) Watch(d models.Descriptor) error {
	path, err := filepath.Abs(d.Path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.dirs[dir] {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		w.dirs[dir] = true
	}
	w.files[path] = d.StoreID
	w.files[path+"-wal"] = d.StoreID
	return nil
}

func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	w.wg.Add(1)
	go w.processEvents(ctx)
}

// Stop closes the fsnotify watcher and waits for the event loop to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	running := w.running
	w.running = false
	w.mu.Unlock()

	if running {
		close(w.done)
	}
	err := w.watcher.Close()
	w.wg.Wait()
	if err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			w.mu.Lock()
			id, tracked := w.files[filepath.Clean(ev.Name)]
			w.mu.Unlock()
			if tracked {
				w.notify(id)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn(ctx, "store watcher error", "error", err)
		}
	}
}
