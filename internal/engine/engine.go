// Package engine wires the timer, connection and scheduler together around a
// single event loop. All mutable state is owned by the loop goroutine; host
// callbacks, login results and retry timers are posted onto it as closures.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tools.zach/dev/editorcord/internal/config"
	"tools.zach/dev/editorcord/internal/connection"
	"tools.zach/dev/editorcord/internal/host"
	"tools.zach/dev/editorcord/internal/logger"
	"tools.zach/dev/editorcord/internal/scheduler"
	"tools.zach/dev/editorcord/internal/timer"
)

// inboxSize bounds closures waiting for the loop.
const inboxSize = 64

// Options tunes an Engine. The zero value is production behavior.
type Options struct {
	// Now returns the current time.
	Now func() time.Time
	// AfterFunc arms reconnect timers.
	AfterFunc func(d time.Duration, fn func()) connection.Timer
}

// Status is a point-in-time view of the engine's state.
type Status struct {
	Connection    connection.State
	Attempts      int
	TimerMode     config.TimerMode
	Start         int64
	Subscriptions int
	Scheduling    bool
}

// Engine is a running presence sync. Create it with Start and end it with
// Stop or by cancelling the context passed to Start.
type Engine struct {
	host  host.Host
	log   *slog.Logger
	now   func() time.Time
	inbox chan func()

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	timer *timer.Controller
	conn  *connection.Manager
	sched *scheduler.Scheduler
	subs  host.Set
}

// Start enters the configured timer mode, begins logging in and runs the
// loop until ctx is cancelled or Stop is called.
func Start(ctx context.Context, h host.Host, t connection.Transport, opts Options) (*Engine, error) {
	if h == nil {
		return nil, errors.New("engine: nil host")
	}
	if t == nil {
		return nil, errors.New("engine: nil transport")
	}
	cfg := h.Configuration()
	if cfg == nil {
		return nil, errors.New("engine: host has no configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	loopCtx, cancel := context.WithCancel(ctx)
	e := &Engine{
		host:   h,
		log:    logger.Component("engine"),
		now:    opts.Now,
		inbox:  make(chan func(), inboxSize),
		ctx:    loopCtx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	e.timer = timer.New(h, timer.Options{
		Now:     opts.Now,
		Refresh: func() { e.sched.Refresh() },
		Post:    e.post,
	})
	e.conn = connection.New(t, connection.Options{
		ClientID:       func() string { return e.host.Configuration().ResolveClientID() },
		Post:           e.post,
		OnConnected:    func() { e.sched.Start() },
		OnDisconnected: func() { e.sched.Stop() },
		AfterFunc:      opts.AfterFunc,
	})
	e.sched = scheduler.New(h, e.timer.Start, e.conn)

	// Nothing else touches the components until the loop starts.
	e.resume(cfg)
	e.timer.Enter(cfg.Timer.Mode)
	e.subs.Add(h.OnConfigurationChanged(func(prev, next *config.Config) {
		e.post(func() { e.onConfigChanged(prev, next) })
	}))
	e.conn.Connect()

	e.log.Info("engine started", "timer_mode", string(cfg.Timer.Mode))
	go e.run()
	return e, nil
}

// Stop tears everything down and waits for the loop to exit. It is
// idempotent and safe to call after the context was cancelled.
func (e *Engine) Stop() {
	e.cancel()
	<-e.done
}

// Done is closed once the loop has exited.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Status reads the engine's state on the loop. After the loop exits it
// returns the final state.
func (e *Engine) Status() Status {
	result := make(chan Status, 1)
	select {
	case e.inbox <- func() { result <- e.status() }:
	case <-e.done:
		return e.status()
	}
	select {
	case s := <-result:
		return s
	case <-e.done:
		return e.status()
	}
}

func (e *Engine) status() Status {
	return Status{
		Connection:    e.conn.State(),
		Attempts:      e.conn.Attempts(),
		TimerMode:     e.timer.Mode(),
		Start:         e.timer.Start(),
		Subscriptions: e.timer.Subscriptions() + e.subs.Len(),
		Scheduling:    e.sched.Running(),
	}
}

// post queues fn for the loop. Once the engine is stopping, fn is dropped.
func (e *Engine) post(fn func()) {
	select {
	case e.inbox <- fn:
	case <-e.ctx.Done():
	}
}

func (e *Engine) run() {
	defer close(e.done)
	for {
		select {
		case <-e.ctx.Done():
			e.shutdown()
			return
		case fn := <-e.inbox:
			fn()
		case ev := <-e.conn.Events():
			e.conn.HandleEvent(ev)
		case <-e.sched.C():
			e.sched.Tick()
		}
	}
}

func (e *Engine) shutdown() {
	e.subs.Dispose()
	e.timer.Close()
	e.sched.Stop()
	e.conn.Close()
	e.log.Info("engine stopped")
}

// onConfigChanged re-enters the timer only when its mode changed, then
// pushes the new layout out immediately.
func (e *Engine) onConfigChanged(prev, next *config.Config) {
	if next == nil {
		return
	}
	if prev == nil || prev.Timer.Mode != next.Timer.Mode {
		e.timer.Enter(next.Timer.Mode)
	}
	if prev != nil && prev.ResolveClientID() != next.ResolveClientID() {
		e.log.Info("client ID changed, applies from the next login")
	}
	e.sched.Reschedule()
	e.sched.Refresh()
}

// resume seeds the timer from the stored checkpoint when enabled and fresh.
func (e *Engine) resume(cfg *config.Config) {
	if !cfg.Timer.Resume {
		return
	}
	start, ok := e.host.Checkpoint(timer.CheckpointKey)
	if !ok {
		return
	}
	age := e.now().Sub(time.UnixMilli(start))
	if age < 0 {
		e.log.Debug("checkpoint is in the future, not resuming", "start", start)
		return
	}
	if limit := time.Duration(cfg.Timer.ResumeMaxAgeMinutes) * time.Minute; limit > 0 && age > limit {
		e.log.Debug("checkpoint too old, not resuming", "age", age.Round(time.Second))
		return
	}
	e.timer.Seed(start)
	e.log.Info("resumed timer from checkpoint", "age", age.Round(time.Second))
}
