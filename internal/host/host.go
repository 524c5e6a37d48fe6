// Package host defines the capabilities the presence engine consumes from
// the editor it runs against: snapshots of the editor context and
// configuration, change subscriptions, and a checkpoint sink.
package host

import (
	"sync"

	"tools.zach/dev/editorcord/internal/config"
)

// ///////////////////////////////////////////////
// Data Types
// ///////////////////////////////////////////////

// EditorContext is a snapshot of what the user is editing. An empty string
// means the value is absent, e.g. no file is focused.
type EditorContext struct {
	ActiveFilePath      string
	ActiveFileName      string
	ActiveFileExtension string // without the dot
	WorkspaceFolderName string
	WorkspaceFolderPath string
	EditorVersion       string
}

// ConfigChange carries the snapshots on either side of a configuration
// reload.
type ConfigChange struct {
	Prev *config.Config
	Next *config.Config
}

// ///////////////////////////////////////////////
// Host
// ///////////////////////////////////////////////

// Host is the editor-side collaborator. Callbacks may be invoked from any
// goroutine; the engine re-posts them onto its own loop.
type Host interface {
	// EditorContext returns the current editor snapshot.
	EditorContext() EditorContext
	// Configuration returns the current configuration snapshot. Callers must
	// not mutate it.
	Configuration() *config.Config

	OnActiveEditorChanged(fn func()) Subscription
	OnWorkspaceFoldersChanged(fn func()) Subscription
	OnConfigurationChanged(fn func(prev, next *config.Config)) Subscription

	// PersistCheckpoint stores value under key. It is best-effort and never
	// reports failure to the caller.
	PersistCheckpoint(key string, value int64)
	// Checkpoint returns the last value persisted under key.
	Checkpoint(key string) (int64, bool)
}

// ///////////////////////////////////////////////
// Subscriptions
// ///////////////////////////////////////////////

// Subscription is a handle to a registered callback. Dispose is synchronous
// and idempotent: once it returns, no new invocation of the callback starts.
type Subscription interface {
	Dispose()
}

type onceSubscription struct {
	once sync.Once
	fn   func()
}

func (s *onceSubscription) Dispose() { s.once.Do(s.fn) }

// NewSubscription wraps fn so that it runs at most once however often
// Dispose is called.
func NewSubscription(fn func()) Subscription {
	return &onceSubscription{fn: fn}
}

// Set collects subscriptions that are torn down together.
type Set struct {
	subs []Subscription
}

// Add records sub in the set.
func (s *Set) Add(sub Subscription) {
	s.subs = append(s.subs, sub)
}

// Len returns the number of live subscriptions in the set.
func (s *Set) Len() int {
	return len(s.subs)
}

// Dispose disposes every subscription in reverse order and empties the set.
func (s *Set) Dispose() {
	for i := len(s.subs) - 1; i >= 0; i-- {
		s.subs[i].Dispose()
	}
	s.subs = nil
}
