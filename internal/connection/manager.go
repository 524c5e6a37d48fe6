// Package connection runs the login and reconnect state machine against the
// Discord transport.
//
// A Manager is driven from a single event loop: every method must be called
// on it. Login and send run on their own goroutines; login results and retry
// timers come back through the Post function supplied in [Options].
package connection

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"tools.zach/dev/editorcord/internal/discord"
	"tools.zach/dev/editorcord/internal/logger"
)

// ///////////////////////////////////////////////
// Backoff
// ///////////////////////////////////////////////

const (
	// BaseDelay is the retry delay before growth is applied.
	BaseDelay = 1000 * time.Millisecond
	// GrowthFactor multiplies the delay for each consecutive failure.
	GrowthFactor = 1.5
	// MaxDelay caps the retry delay.
	MaxDelay = 30000 * time.Millisecond
)

// Backoff returns min(MaxDelay, BaseDelay × GrowthFactor^attempt).
func Backoff(attempt int) time.Duration {
	d := float64(BaseDelay) * math.Pow(GrowthFactor, float64(attempt))
	if d >= float64(MaxDelay) {
		return MaxDelay
	}
	return time.Duration(d)
}

// errSessionLost fails a login whose session dropped before the result was
// handled.
var errSessionLost = errors.New("session lost during login")

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// State is the connection state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// Transport is the presence transport. *discord.Client implements it.
type Transport interface {
	Login(ctx context.Context, clientID string) error
	SetActivity(activity *discord.Activity) error
	ClearActivity() error
	Events() <-chan discord.Event
	Close() error
}

// Timer is a pending retry. *time.Timer implements it.
type Timer interface {
	Stop() bool
}

// Options configures a Manager.
type Options struct {
	// ClientID is called at every attempt so config reloads take effect.
	ClientID func() string
	// Post schedules fn on the event loop.
	Post func(fn func())
	// OnConnected runs on the loop after a successful login.
	OnConnected func()
	// OnDisconnected runs on the loop when an established session is lost.
	OnDisconnected func()
	// AfterFunc arms a retry timer. Defaults to time.AfterFunc.
	AfterFunc func(d time.Duration, fn func()) Timer
	// Go runs an asynchronous login or send. Defaults to a new goroutine.
	Go func(fn func())
}

// Manager owns the transport and the connection state.
type Manager struct {
	transport Transport
	opts      Options
	log       *slog.Logger

	state    State
	attempts int
	// gen identifies the current login attempt; stale results are dropped.
	gen uint64
	// lostGen is the attempt whose fresh session dropped before its result
	// reached the loop.
	lostGen uint64
	cancel  context.CancelFunc
	retry  Timer
	closed bool

	sends sync.WaitGroup
}

// New returns a disconnected manager for t.
func New(t Transport, opts Options) *Manager {
	if opts.ClientID == nil {
		opts.ClientID = func() string { return "" }
	}
	if opts.Post == nil {
		opts.Post = func(fn func()) { fn() }
	}
	if opts.OnConnected == nil {
		opts.OnConnected = func() {}
	}
	if opts.OnDisconnected == nil {
		opts.OnDisconnected = func() {}
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = func(d time.Duration, fn func()) Timer { return time.AfterFunc(d, fn) }
	}
	if opts.Go == nil {
		opts.Go = func(fn func()) { go fn() }
	}
	return &Manager{
		transport: t,
		opts:      opts,
		log:       logger.Component("connection"),
	}
}

// State returns the current state.
func (m *Manager) State() State { return m.state }

// Attempts returns the number of consecutive failed logins.
func (m *Manager) Attempts() int { return m.attempts }

// Events returns the transport's lifecycle events for the loop to select on.
func (m *Manager) Events() <-chan discord.Event { return m.transport.Events() }

// ///////////////////////////////////////////////
// Lifecycle
// ///////////////////////////////////////////////

// Connect starts logging in. It is a no-op unless disconnected.
func (m *Manager) Connect() {
	if m.closed || m.state != Disconnected {
		return
	}
	m.login()
}

func (m *Manager) login() {
	m.state = Connecting
	m.gen++
	gen := m.gen

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	clientID := m.opts.ClientID()
	logger.Trace(m.log, "logging in", "attempt", m.attempts+1)

	m.opts.Go(func() {
		err := m.transport.Login(ctx, clientID)
		m.opts.Post(func() { m.loginResult(gen, err) })
	})
}

func (m *Manager) loginResult(gen uint64, err error) {
	if m.closed || gen != m.gen {
		return
	}
	m.cancel()
	m.cancel = nil

	if err == nil && m.lostGen == gen {
		err = errSessionLost
	}
	if err == nil {
		m.state = Connected
		m.attempts = 0
		m.log.Info("connected to discord")
		m.opts.OnConnected()
		return
	}

	m.attempts++
	delay := Backoff(m.attempts)
	var authErr *discord.AuthError
	if errors.As(err, &authErr) {
		m.log.Warn("discord rejected login", "error", err, "attempt", m.attempts, "retry_in", delay)
	} else {
		m.log.Info("discord login failed", "error", err, "attempt", m.attempts, "retry_in", delay)
	}

	m.retry = m.opts.AfterFunc(delay, func() {
		m.opts.Post(func() {
			if m.closed || gen != m.gen || m.state != Connecting {
				return
			}
			m.retry = nil
			m.login()
		})
	})
}

// HandleEvent applies a transport lifecycle event. Loss of an established
// session resets the attempt counter and logs in again immediately. Loss
// while a login is in flight fails that attempt once its result arrives.
func (m *Manager) HandleEvent(ev discord.Event) {
	if m.closed {
		return
	}
	switch ev.Kind {
	case discord.EventReady:
		logger.Trace(m.log, "transport ready")
	case discord.EventDisconnected, discord.EventError:
		if m.state == Connecting && m.cancel != nil {
			// The in-flight login's session died before its result arrived.
			logger.Trace(m.log, "session lost during login", "kind", ev.Kind.String())
			m.lostGen = m.gen
			return
		}
		if m.state != Connected {
			return
		}
		switch {
		case ev.Kind == discord.EventError:
			m.log.Warn("discord connection error", "error", ev.Err)
		case ev.Err != nil:
			m.log.Info("discord disconnected", "reason", ev.Err)
		default:
			m.log.Info("discord disconnected")
		}
		m.state = Disconnected
		m.opts.OnDisconnected()
		m.attempts = 0
		m.login()
	}
}

// Send pushes activity to Discord without blocking the loop. A nil activity
// clears the card. It is a no-op unless connected, and failures are logged
// only.
func (m *Manager) Send(activity *discord.Activity) {
	if m.closed || m.state != Connected {
		return
	}
	m.sends.Add(1)
	m.opts.Go(func() {
		defer m.sends.Done()
		var err error
		if activity == nil {
			err = m.transport.ClearActivity()
		} else {
			err = m.transport.SetActivity(activity)
		}
		if err != nil {
			m.log.Warn("presence send failed", "error", err)
		}
	})
}

// Close cancels any pending retry or login, destroys the transport and waits
// for in-flight sends. It is idempotent.
func (m *Manager) Close() {
	if m.closed {
		return
	}
	m.closed = true
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if err := m.transport.Close(); err != nil {
		m.log.Debug("closing transport", "error", err)
	}
	m.sends.Wait()
	m.state = Disconnected
}
