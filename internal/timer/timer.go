// Package timer owns the presence start timestamp and decides when it
// resets, according to the configured [config.TimerMode].
//
// A Controller is not safe for concurrent use. The engine calls it only from
// its event loop and supplies a Post function that moves host callbacks onto
// that loop.
package timer

import (
	"log/slog"
	"time"

	"tools.zach/dev/editorcord/internal/config"
	"tools.zach/dev/editorcord/internal/host"
	"tools.zach/dev/editorcord/internal/logger"
)

// CheckpointKey is the key the start timestamp is persisted under.
const CheckpointKey = "startTime"

// Options configures a Controller. Zero fields get working defaults.
type Options struct {
	// Now returns the current time.
	Now func() time.Time
	// Refresh requests an out-of-band presence send.
	Refresh func()
	// Post schedules fn on the caller's event loop. Nil runs fn inline.
	Post func(fn func())
}

// Controller is the timer state machine: Disabled, WithinFiles or
// WithinFolder.
type Controller struct {
	host    host.Host
	now     func() time.Time
	refresh func()
	post    func(func())
	log     *slog.Logger

	mode     config.TimerMode
	start    int64
	baseline string
	// seeded makes the next WithinFolder entry keep a resumed start.
	seeded bool

	subs   host.Set
	epoch  uint64
	closed bool
}

// New returns a controller whose start timestamp is the current time. It
// holds no subscriptions until Enter is called.
func New(h host.Host, opts Options) *Controller {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Refresh == nil {
		opts.Refresh = func() {}
	}
	if opts.Post == nil {
		opts.Post = func(fn func()) { fn() }
	}
	return &Controller{
		host:    h,
		now:     opts.Now,
		refresh: opts.Refresh,
		post:    opts.Post,
		log:     logger.Component("timer"),
		start:   opts.Now().UnixMilli(),
	}
}

// Start returns the current start timestamp in epoch milliseconds.
func (c *Controller) Start() int64 { return c.start }

// Mode returns the active mode, or "" before the first Enter.
func (c *Controller) Mode() config.TimerMode { return c.mode }

// Subscriptions returns the number of live host subscriptions.
func (c *Controller) Subscriptions() int { return c.subs.Len() }

// Seed replaces the start timestamp with a resumed value. The next entry
// into WithinFolder keeps it instead of resetting.
func (c *Controller) Seed(startMS int64) {
	c.start = startMS
	c.seeded = true
}

// Enter tears down every subscription of the previous mode and enters mode.
// Callbacks of the previous mode that are already queued on the loop are
// discarded when they run.
func (c *Controller) Enter(mode config.TimerMode) {
	if c.closed {
		return
	}
	c.subs.Dispose()
	c.epoch++
	c.mode = mode
	c.log.Debug("entering timer mode", "mode", string(mode))

	switch mode {
	case config.TimerWithinFiles:
		c.seeded = false
		c.baseline = fileKey(c.host.EditorContext())
		c.subs.Add(c.host.OnActiveEditorChanged(c.guard(c.onActiveEditor)))
		c.refresh()
	case config.TimerWithinFolder:
		if c.seeded {
			c.seeded = false
		} else {
			c.reset()
		}
		c.refresh()
		c.subs.Add(c.host.OnWorkspaceFoldersChanged(c.guard(c.onFoldersChanged)))
	default:
		c.seeded = false
	}
}

// Close disposes all subscriptions. Later Enter calls are ignored.
func (c *Controller) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.subs.Dispose()
	c.epoch++
}

// guard binds fn to the current epoch and routes it through Post.
func (c *Controller) guard(fn func()) func() {
	epoch := c.epoch
	return func() {
		c.post(func() {
			if c.closed || c.epoch != epoch {
				return
			}
			fn()
		})
	}
}

// onActiveEditor resets only when the focused file differs from the
// baseline. Focus changes within one file still refresh.
func (c *Controller) onActiveEditor() {
	current := fileKey(c.host.EditorContext())
	if current != c.baseline {
		c.reset()
	}
	c.baseline = current
	c.refresh()
}

func (c *Controller) onFoldersChanged() {
	c.reset()
	c.refresh()
}

func (c *Controller) reset() {
	c.start = c.now().UnixMilli()
	c.host.PersistCheckpoint(CheckpointKey, c.start)
	logger.Trace(c.log, "timer reset", "start", c.start)
}

// fileKey identifies the focused document. Two editors on the same file
// share a path.
func fileKey(ctx host.EditorContext) string {
	if ctx.ActiveFilePath != "" {
		return ctx.ActiveFilePath
	}
	return ctx.ActiveFileName
}
