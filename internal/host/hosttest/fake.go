// Package hosttest provides an in-memory [host.Host] for tests.
package hosttest

import (
	"sync"

	"tools.zach/dev/editorcord/internal/config"
	"tools.zach/dev/editorcord/internal/host"
)

// Fake is a scriptable host. Tests drive it with SetContext, SetConfig and
// the Fire methods; callbacks run synchronously on the caller's goroutine.
type Fake struct {
	mu          sync.Mutex
	ctx         host.EditorContext
	cfg         *config.Config
	checkpoints map[string]int64
	persisted   []int64

	active  host.Emitter[struct{}]
	folders host.Emitter[struct{}]
	configs host.Emitter[host.ConfigChange]
}

var _ host.Host = (*Fake)(nil)

// New returns a fake host serving cfg, or the defaults when cfg is nil.
func New(cfg *config.Config) *Fake {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Fake{cfg: cfg, checkpoints: make(map[string]int64)}
}

func (f *Fake) EditorContext() host.EditorContext {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ctx
}

func (f *Fake) Configuration() *config.Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg
}

func (f *Fake) OnActiveEditorChanged(fn func()) host.Subscription {
	return f.active.Subscribe(func(struct{}) { fn() })
}

func (f *Fake) OnWorkspaceFoldersChanged(fn func()) host.Subscription {
	return f.folders.Subscribe(func(struct{}) { fn() })
}

func (f *Fake) OnConfigurationChanged(fn func(prev, next *config.Config)) host.Subscription {
	return f.configs.Subscribe(func(c host.ConfigChange) { fn(c.Prev, c.Next) })
}

func (f *Fake) PersistCheckpoint(key string, value int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkpoints[key] = value
	f.persisted = append(f.persisted, value)
}

func (f *Fake) Checkpoint(key string) (int64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.checkpoints[key]
	return v, ok
}

// SetContext replaces the editor snapshot without firing events.
func (f *Fake) SetContext(ctx host.EditorContext) {
	f.mu.Lock()
	f.ctx = ctx
	f.mu.Unlock()
}

// SetConfig installs next and fires a configuration change.
func (f *Fake) SetConfig(next *config.Config) {
	f.mu.Lock()
	prev := f.cfg
	f.cfg = next
	f.mu.Unlock()
	f.configs.Emit(host.ConfigChange{Prev: prev, Next: next})
}

// FocusFile sets the active file and fires active-editor-changed.
func (f *Fake) FocusFile(path, name, ext string) {
	f.mu.Lock()
	f.ctx.ActiveFilePath = path
	f.ctx.ActiveFileName = name
	f.ctx.ActiveFileExtension = ext
	f.mu.Unlock()
	f.active.Emit(struct{}{})
}

// FireActiveEditor fires active-editor-changed without changing the context.
func (f *Fake) FireActiveEditor() { f.active.Emit(struct{}{}) }

// FireFolders fires workspace-folders-changed.
func (f *Fake) FireFolders() { f.folders.Emit(struct{}{}) }

// Persisted returns every checkpoint value written, in order.
func (f *Fake) Persisted() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.persisted...)
}

// Listeners reports the number of live subscriptions per event.
func (f *Fake) Listeners() (active, folders, configs int) {
	return f.active.Len(), f.folders.Len(), f.configs.Len()
}
