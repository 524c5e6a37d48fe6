package editor

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"reflect"
	"slices"
	"sync"
	"time"

	"tools.zach/dev/editorcord/internal/config"
	"tools.zach/dev/editorcord/internal/host"
	"tools.zach/dev/editorcord/internal/logger"
	"tools.zach/dev/editorcord/internal/paths"
)

// Checkpointer persists integer checkpoints. *checkpoint.Store implements it.
type Checkpointer interface {
	Put(ctx context.Context, key string, value int64) error
	Get(ctx context.Context, key string) (int64, bool, error)
}

// checkpointTimeout bounds one checkpoint read or write.
const checkpointTimeout = 2 * time.Second

// Host serves editor and configuration snapshots from the data directory.
type Host struct {
	dir   paths.DataDir
	store Checkpointer
	log   *slog.Logger

	mu      sync.RWMutex
	state   State
	context host.EditorContext
	cfg     *config.Config

	active  host.Emitter[struct{}]
	folders host.Emitter[struct{}]
	configs host.Emitter[host.ConfigChange]

	// Checkpoint writes are coalesced per key and persisted off the
	// caller's goroutine.
	ckMu    sync.Mutex
	pending map[string]int64
	wake    chan struct{}

	editorW *Watcher
	configW *Watcher
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

var _ host.Host = (*Host)(nil)

// Open starts serving dir with cfg as the initial configuration. A missing
// editor.json yields an empty context until the integration writes one.
func Open(dir paths.DataDir, cfg *config.Config, store Checkpointer) (*Host, error) {
	return open(dir, cfg, store, true)
}

// open builds the host; without watch, reloads happen only through
// ReloadEditor and ReloadConfig.
func open(dir paths.DataDir, cfg *config.Config, store Checkpointer, watch bool) (*Host, error) {
	if err := os.MkdirAll(dir.Root, 0o755); err != nil {
		return nil, err
	}

	h := &Host{
		dir:   dir,
		store: store,
		log:   logger.Component("editor"),
		cfg:   cfg,
		done:  make(chan struct{}),
		wake:  make(chan struct{}, 1),
	}
	h.loadEditor()
	if store != nil {
		h.wg.Add(1)
		go h.writeCheckpoints()
	}
	if !watch {
		return h, nil
	}

	var err error
	if h.editorW, err = NewWatcher(dir.Editor()); err != nil {
		h.Close()
		return nil, err
	}
	if h.configW, err = NewWatcher(dir.Config()); err != nil {
		h.editorW.Close()
		h.editorW = nil
		h.Close()
		return nil, err
	}

	h.wg.Add(1)
	go h.run()
	return h, nil
}

// Close stops watching. It is idempotent.
func (h *Host) Close() error {
	var err error
	h.once.Do(func() {
		close(h.done)
		if h.editorW != nil {
			err = errors.Join(h.editorW.Close(), h.configW.Close())
		}
		h.wg.Wait()
	})
	return err
}

func (h *Host) run() {
	defer h.wg.Done()
	for {
		select {
		case <-h.done:
			return
		case <-h.editorW.Events():
			h.ReloadEditor()
		case <-h.configW.Events():
			h.ReloadConfig()
		}
	}
}

// ///////////////////////////////////////////////
// host.Host
// ///////////////////////////////////////////////

func (h *Host) EditorContext() host.EditorContext {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.context
}

func (h *Host) Configuration() *config.Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg
}

func (h *Host) OnActiveEditorChanged(fn func()) host.Subscription {
	return h.active.Subscribe(func(struct{}) { fn() })
}

func (h *Host) OnWorkspaceFoldersChanged(fn func()) host.Subscription {
	return h.folders.Subscribe(func(struct{}) { fn() })
}

func (h *Host) OnConfigurationChanged(fn func(prev, next *config.Config)) host.Subscription {
	return h.configs.Subscribe(func(c host.ConfigChange) { fn(c.Prev, c.Next) })
}

// PersistCheckpoint queues value for key and returns at once. Only the latest
// value per key is written.
func (h *Host) PersistCheckpoint(key string, value int64) {
	if h.store == nil {
		return
	}
	h.ckMu.Lock()
	if h.pending == nil {
		h.pending = make(map[string]int64)
	}
	h.pending[key] = value
	h.ckMu.Unlock()

	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// Checkpoint returns a queued value before consulting the store.
func (h *Host) Checkpoint(key string) (int64, bool) {
	if h.store == nil {
		return 0, false
	}
	h.ckMu.Lock()
	v, queued := h.pending[key]
	h.ckMu.Unlock()
	if queued {
		return v, true
	}

	ctx, cancel := context.WithTimeout(context.Background(), checkpointTimeout)
	defer cancel()
	v, ok, err := h.store.Get(ctx, key)
	if err != nil {
		h.log.Warn("checkpoint read failed", "key", key, "error", err)
		return 0, false
	}
	return v, ok
}

// writeCheckpoints persists queued values until Close, then flushes once more.
func (h *Host) writeCheckpoints() {
	defer h.wg.Done()
	for {
		select {
		case <-h.wake:
			h.flushCheckpoints()
		case <-h.done:
			h.flushCheckpoints()
			return
		}
	}
}

// flushCheckpoints writes a snapshot of the queue. Entries stay visible to
// Checkpoint until written and are dropped only if no newer value arrived.
func (h *Host) flushCheckpoints() {
	h.ckMu.Lock()
	batch := maps.Clone(h.pending)
	h.ckMu.Unlock()

	for key, value := range batch {
		ctx, cancel := context.WithTimeout(context.Background(), checkpointTimeout)
		if err := h.store.Put(ctx, key, value); err != nil {
			h.log.Warn("checkpoint write failed", "key", key, "error", err)
		}
		cancel()
	}

	h.ckMu.Lock()
	for key, value := range batch {
		if h.pending[key] == value {
			delete(h.pending, key)
		}
	}
	h.ckMu.Unlock()
}

// ///////////////////////////////////////////////
// Reloads
// ///////////////////////////////////////////////

// loadEditor installs editor.json without firing events. It reports whether
// the state was replaced.
func (h *Host) loadEditor() (prev State, ok bool) {
	s, err := ReadState(h.dir.Editor())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Trace(h.log, "no editor state yet")
		} else {
			h.log.Warn("ignoring unreadable editor state", "error", err)
		}
		return State{}, false
	}

	h.mu.Lock()
	prev = h.state
	h.state = *s
	h.context = s.Context()
	h.mu.Unlock()
	return prev, true
}

// ReloadEditor re-reads editor.json. Every successful read fires
// active-editor-changed, since the integration rewrites the file on each
// focus event; workspace-folders-changed fires only when the list differs.
func (h *Host) ReloadEditor() {
	prev, ok := h.loadEditor()
	if !ok {
		return
	}
	h.mu.RLock()
	foldersChanged := !slices.Equal(prev.WorkspaceFolders, h.state.WorkspaceFolders)
	h.mu.RUnlock()

	h.active.Emit(struct{}{})
	if foldersChanged {
		h.log.Debug("workspace folders changed")
		h.folders.Emit(struct{}{})
	}
}

// ReloadConfig re-reads config.toml. An invalid file is logged and the
// current snapshot kept; an unchanged file fires nothing.
func (h *Host) ReloadConfig() {
	next, err := config.LoadFile(h.dir.Config())
	if err != nil {
		h.log.Warn("keeping previous config", "error", err)
		return
	}

	h.mu.Lock()
	prev := h.cfg
	if reflect.DeepEqual(prev, next) {
		h.mu.Unlock()
		return
	}
	h.cfg = next
	h.mu.Unlock()

	h.log.Info("config reloaded")
	h.configs.Emit(host.ConfigChange{Prev: prev, Next: next})
}
