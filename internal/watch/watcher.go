package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDefault collapses editor save bursts into one trigger.
const debounceDefault = 200 * time.Millisecond

// Watcher fires a callback when any watched file or directory changes.
// Watching a file reacts to that file only; watching a directory reacts to
// anything created or written inside it.
type Watcher struct {
	files    map[string]struct{}
	dirs     map[string]struct{}
	watched  []string // directories registered with fsnotify
	debounce time.Duration
}

// New builds a watcher over the given paths. Files are watched through
// their parent directory, which keeps events flowing across the
// delete-and-rename save strategy most editors use.
func New(paths ...string) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no paths to watch")
	}

	w := &Watcher{
		files:    make(map[string]struct{}),
		dirs:     make(map[string]struct{}),
		debounce: debounceDefault,
	}

	seen := make(map[string]struct{})
	addDir := func(dir string) {
		if _, ok := seen[dir]; !ok {
			seen[dir] = struct{}{}
			w.watched = append(w.watched, dir)
		}
	}

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("watch %s: %w", p, err)
		}
		if info.IsDir() {
			w.dirs[abs] = struct{}{}
			addDir(abs)
		} else {
			w.files[abs] = struct{}{}
			addDir(filepath.Dir(abs))
		}
	}

	return w, nil
}

// Run blocks, invoking onChange (debounced) for relevant events, until ctx
// is cancelled or the underlying watcher fails.
func (w *Watcher) Run(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	for _, dir := range w.watched {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch dir %s: %w", dir, err)
		}
	}

	slog.Info("watching for changes", "dirs", len(w.watched))

	var mu sync.Mutex
	var pending *time.Timer
	defer func() {
		mu.Lock()
		if pending != nil {
			pending.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !w.relevant(event.Name) {
				continue
			}
			slog.Debug("change detected", "path", event.Name, "op", event.Op.String())

			mu.Lock()
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(w.debounce, onChange)
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

// relevant reports whether an event path maps to a watched file or lies
// inside a watched directory.
func (w *Watcher) relevant(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	if _, ok := w.files[abs]; ok {
		return true
	}
	if _, ok := w.dirs[filepath.Dir(abs)]; ok {
		return true
	}
	return false
}
