package editor

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ///////////////////////////////////////////////
// Watcher
// ///////////////////////////////////////////////

// Watcher signals changes to one file. It watches the parent directory so
// atomic rename-over writes are seen, and falls back to polling when
// fsnotify is unavailable.
type Watcher struct {
	// path is the watched file.
	path string
	// events is buffered to 1 so back-to-back writes coalesce.
	events chan struct{}
	// done is closed by [Watcher.Close].
	done chan struct{}
	// fsw is nil when polling.
	fsw  *fsnotify.Watcher
	once sync.Once
	// polling is true once the watcher has fallen back to stat polling.
	polling      atomic.Bool
	pollInterval time.Duration
}

// NewWatcher watches path. The parent directory must exist.
func NewWatcher(path string) (*Watcher, error) {
	return newWatcher(path, 2*time.Second)
}

func newWatcher(path string, pollInterval time.Duration) (*Watcher, error) {
	w := &Watcher{
		path:         path,
		events:       make(chan struct{}, 1),
		done:         make(chan struct{}),
		pollInterval: pollInterval,
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Info("fsnotify unavailable, falling back to polling", "error", err)
		w.startPolling()
		return w, nil
	}

	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		slog.Info("cannot watch directory, falling back to polling", "path", dir, "error", err)
		fsw.Close()
		w.startPolling()
		return w, nil
	}

	w.fsw = fsw
	go w.watch()
	return w, nil
}

// Polling reports whether the watcher is using polling instead of fsnotify.
func (w *Watcher) Polling() bool {
	return w.polling.Load()
}

// Events returns a channel that receives a signal when the file changes.
func (w *Watcher) Events() <-chan struct{} {
	return w.events
}

// Close stops the watcher. It is idempotent.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		if w.fsw != nil {
			if closeErr := w.fsw.Close(); closeErr != nil {
				err = fmt.Errorf("closing fsnotify watcher: %w", closeErr)
			}
		}
	})
	return err
}

func (w *Watcher) startPolling() {
	w.polling.Store(true)
	go w.poll()
}

// watch forwards write, create and rename-into events for the file. On an
// fsnotify error it switches to polling.
func (w *Watcher) watch() {
	base := filepath.Base(w.path)
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.notify()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Info("fsnotify error, switching to polling", "error", err)
			w.startPolling()
			return
		}
	}
}

// poll stats the file and signals when its modification time or size
// changes, including when it first appears.
func (w *Watcher) poll() {
	type stamp struct {
		mod  time.Time
		size int64
	}
	read := func() (stamp, bool) {
		info, err := os.Stat(w.path)
		if err != nil {
			return stamp{}, false
		}
		return stamp{info.ModTime(), info.Size()}, true
	}
	last, _ := read()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			cur, ok := read()
			if !ok {
				continue
			}
			if cur != last {
				last = cur
				w.notify()
			}
		}
	}
}

// notify sends one signal, dropping it if one is already pending.
func (w *Watcher) notify() {
	select {
	case w.events <- struct{}{}:
	default:
	}
}
