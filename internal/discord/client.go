// Package discord provides a client for Discord's local IPC socket,
// enabling Rich Presence updates via the SET_ACTIVITY command.
//
// [Client.Login] dials the socket and completes the handshake. Once logged
// in, a read loop answers pings and reports the end of the session on
// [Client.Events]. Platform-specific socket discovery lives in the conn_*
// files.
package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"tools.zach/dev/editorcord/internal/logger"
)

// ///////////////////////////////////////////////
// Errors
// ///////////////////////////////////////////////

// ErrNotConnected is returned when an operation requires an active session.
var ErrNotConnected = errors.New("not connected")

// AuthError reports that Discord refused the handshake, usually because the
// client ID is unknown.
type AuthError struct {
	Code    int
	Message string
}

func (e *AuthError) Error() string {
	if e.Code == 0 {
		return "login rejected: " + e.Message
	}
	return fmt.Sprintf("login rejected: %s (code %d)", e.Message, e.Code)
}

// TransportError reports a failed command write on an established session.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// ///////////////////////////////////////////////
// Events
// ///////////////////////////////////////////////

// EventKind is the kind of a session lifecycle event.
type EventKind int

const (
	// EventReady is emitted after a successful handshake.
	EventReady EventKind = iota
	// EventDisconnected is emitted when Discord closes the session.
	EventDisconnected
	// EventError is emitted when the session dies with a read error.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventReady:
		return "ready"
	case EventDisconnected:
		return "disconnected"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a session lifecycle notification. Err is set for EventError and,
// when Discord sent a reason, for EventDisconnected.
type Event struct {
	Kind EventKind
	Err  error
}

// ///////////////////////////////////////////////
// Data Types
// ///////////////////////////////////////////////

// Timestamps holds the start timestamp for an activity, in epoch milliseconds.
type Timestamps struct {
	Start int64 `json:"start,omitempty"`
}

// Assets holds image keys and tooltip text for an activity.
type Assets struct {
	LargeImage string `json:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty"`
	SmallImage string `json:"small_image,omitempty"`
	SmallText  string `json:"small_text,omitempty"`
}

// Activity represents a Discord Rich Presence activity.
type Activity struct {
	Details    string      `json:"details,omitempty"`
	State      string      `json:"state,omitempty"`
	Timestamps *Timestamps `json:"timestamps,omitempty"`
	Assets     *Assets     `json:"assets,omitempty"`
	Instance   bool        `json:"instance"`
}

// message is the envelope of every JSON frame Discord sends.
type message struct {
	Cmd   string          `json:"cmd"`
	Evt   string          `json:"evt"`
	Nonce string          `json:"nonce"`
	Data  json.RawMessage `json:"data"`
}

// errorData is the payload of ERROR dispatches and close frames.
type errorData struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func parseErrorData(raw []byte) errorData {
	var d errorData
	_ = json.Unmarshal(raw, &d)
	return d
}

// ///////////////////////////////////////////////
// Client
// ///////////////////////////////////////////////

const (
	// eventBuffer is the capacity of the lifecycle event channel.
	eventBuffer = 8
	// writeTimeout bounds a single command write.
	writeTimeout = 5 * time.Second
)

// Client manages one IPC session at a time. Login may be called again after
// the session ends; Close is final.
type Client struct {
	dial   func(ctx context.Context) (net.Conn, error)
	log    *slog.Logger
	events chan Event

	// mu guards conn, nonce and closed, and serializes frame writes.
	mu     sync.Mutex
	conn   net.Conn
	nonce  uint64
	closed bool
}

// NewClient creates a client that discovers the local Discord socket.
func NewClient() *Client {
	return &Client{
		dial:   connectToDiscord,
		log:    logger.Component("discord"),
		events: make(chan Event, eventBuffer),
	}
}

// Events returns the lifecycle event channel. It is never closed.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Login dials Discord and performs the handshake for clientID. Any previous
// session is dropped without emitting events. A refused handshake returns
// *AuthError. Cancelling ctx aborts the dial and handshake.
func (c *Client) Login(ctx context.Context, clientID string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return net.ErrClosed
	}
	if old := c.conn; old != nil {
		c.conn = nil
		old.Close()
	}
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	if err := handshake(ctx, conn, clientID); err != nil {
		conn.Close()
		return err
	}

	c.mu.Lock()
	if c.closed || ctx.Err() != nil {
		c.mu.Unlock()
		conn.Close()
		if err := ctx.Err(); err != nil {
			return err
		}
		return net.ErrClosed
	}
	c.conn = conn
	c.mu.Unlock()

	go c.readLoop(conn)
	c.emit(Event{Kind: EventReady})
	return nil
}

// SetActivity sends a SET_ACTIVITY command carrying activity.
func (c *Client) SetActivity(activity *Activity) error {
	return c.setActivity(activity)
}

// ClearActivity sends a SET_ACTIVITY command with a null activity, which
// removes the presence card.
func (c *Client) ClearActivity() error {
	return c.setActivity(nil)
}

func (c *Client) setActivity(activity *Activity) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return &TransportError{Op: "SET_ACTIVITY", Err: ErrNotConnected}
	}
	if err := c.writeCommand(c.conn, "SET_ACTIVITY", activityArgs(activity)); err != nil {
		return &TransportError{Op: "SET_ACTIVITY", Err: err}
	}
	return nil
}

// Close clears the activity on a best-effort basis and ends the session
// without emitting lifecycle events. Further logins fail.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	conn := c.conn
	if conn == nil {
		return nil
	}
	c.conn = nil

	_ = c.writeCommand(conn, "SET_ACTIVITY", activityArgs(nil))
	return conn.Close()
}

// connected reports whether a session is established.
func (c *Client) connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// ///////////////////////////////////////////////
// Internals
// ///////////////////////////////////////////////

// handshake sends the version and client ID, then waits for the READY
// dispatch. Discord answers an unknown client ID with either an ERROR
// dispatch or a close frame.
func handshake(ctx context.Context, conn net.Conn, clientID string) error {
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	payload, err := json.Marshal(map[string]any{
		"v":         1,
		"client_id": clientID,
	})
	if err != nil {
		return fmt.Errorf("marshaling handshake: %w", err)
	}
	if err := WriteFrame(conn, OpHandshake, payload); err != nil {
		return ctxOr(ctx, err)
	}

	opcode, data, err := DecodeFrame(conn)
	if err != nil {
		return ctxOr(ctx, fmt.Errorf("reading handshake response: %w", err))
	}

	switch opcode {
	case OpFrame:
	case OpClose:
		d := parseErrorData(data)
		return &AuthError{Code: d.Code, Message: d.Message}
	default:
		return fmt.Errorf("unexpected handshake response opcode: %s", opcode)
	}

	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("parsing handshake response: %w", err)
	}
	switch msg.Evt {
	case "READY":
	case "ERROR":
		d := parseErrorData(msg.Data)
		return &AuthError{Code: d.Code, Message: d.Message}
	default:
		return fmt.Errorf("unexpected handshake event %q", msg.Evt)
	}

	return conn.SetDeadline(time.Time{})
}

// ctxOr prefers the context's error when it caused err.
func ctxOr(ctx context.Context, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	return err
}

func activityArgs(activity *Activity) map[string]any {
	return map[string]any{
		"pid":      os.Getpid(),
		"activity": activity,
	}
}

// writeCommand writes a command frame to conn. The caller must hold c.mu.
func (c *Client) writeCommand(conn net.Conn, cmd string, args map[string]any) error {
	c.nonce++
	payload, err := json.Marshal(map[string]any{
		"cmd":   cmd,
		"args":  args,
		"nonce": strconv.FormatUint(c.nonce, 10),
	})
	if err != nil {
		return fmt.Errorf("marshaling command: %w", err)
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return WriteFrame(conn, OpFrame, payload)
}

// readLoop consumes frames until the session ends. It only reports the end
// if conn is still the client's current session.
func (c *Client) readLoop(conn net.Conn) {
	for {
		opcode, data, err := DecodeFrame(conn)
		if err != nil {
			if errors.Is(err, io.EOF) {
				c.lost(conn, Event{Kind: EventDisconnected})
			} else {
				c.lost(conn, Event{Kind: EventError, Err: err})
			}
			return
		}

		switch opcode {
		case OpPing:
			c.mu.Lock()
			if c.conn == conn {
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				_ = WriteFrame(conn, OpPong, data)
			}
			c.mu.Unlock()
		case OpClose:
			d := parseErrorData(data)
			ev := Event{Kind: EventDisconnected}
			if d.Message != "" {
				ev.Err = fmt.Errorf("closed by discord: %s (code %d)", d.Message, d.Code)
			}
			c.lost(conn, ev)
			return
		case OpFrame:
			c.handleFrame(data)
		}
	}
}

// handleFrame logs command responses. Only ERROR responses are of interest.
func (c *Client) handleFrame(data []byte) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.log.Debug("unparseable frame", "error", err)
		return
	}
	if msg.Evt == "ERROR" {
		d := parseErrorData(msg.Data)
		c.log.Warn("command rejected", "cmd", msg.Cmd, "nonce", msg.Nonce, "code", d.Code, "message", d.Message)
		return
	}
	logger.Trace(c.log, "frame", "cmd", msg.Cmd, "evt", msg.Evt, "nonce", msg.Nonce)
}

func (c *Client) lost(conn net.Conn, ev Event) {
	c.mu.Lock()
	current := c.conn == conn
	if current {
		c.conn = nil
	}
	c.mu.Unlock()

	conn.Close()
	if current {
		c.emit(ev)
	}
}

func (c *Client) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		c.log.Warn("event channel full, dropping", "event", ev.Kind.String())
	}
}
