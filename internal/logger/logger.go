// Package logger writes the daemon's line-oriented log:
//
//	2006-01-02T15:04:05.000Z [LEVEL] message | key=value, key2="two words"
//
// LevelTrace (-8) sits below slog's DEBUG for IPC frames and timer epochs.
// Error values are reduced to their message so wrapped transport errors stay
// on one line.
package logger

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// ///////////////////////////////////////////////
// Levels
// ///////////////////////////////////////////////

// LevelTrace is more verbose than slog.LevelDebug.
const LevelTrace slog.Level = -8

var levelNames = []struct {
	max  slog.Level
	name string
}{
	{LevelTrace, "TRACE"},
	{slog.LevelDebug, "DEBUG"},
	{slog.LevelInfo, "INFO"},
	{slog.LevelWarn, "WARN"},
}

func levelName(l slog.Level) string {
	for _, n := range levelNames {
		if l <= n.max {
			return n.name
		}
	}
	return "ERROR"
}

// ParseLevel maps a config level name to a slog.Level, case-insensitively.
// Unknown names yield slog.LevelInfo.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// ///////////////////////////////////////////////
// Handler
// ///////////////////////////////////////////////

var newline = "\n"

func init() {
	if runtime.GOOS == "windows" {
		newline = "\r\n"
	}
}

// Handler formats records in the package's line format. Handlers derived via
// WithAttrs and WithGroup share one write lock.
type Handler struct {
	w      io.Writer
	mu     *sync.Mutex
	level  slog.Leveler
	prefix string
	attrs  []slog.Attr
}

// NewHandler returns a Handler writing to w. A *slog.LevelVar lets the
// threshold move at runtime.
func NewHandler(w io.Writer, level slog.Leveler) *Handler {
	return &Handler{w: w, mu: &sync.Mutex{}, level: level}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Time.UTC().Format("2006-01-02T15:04:05.000Z"))
	fmt.Fprintf(&b, " [%s] %s", levelName(r.Level), r.Message)

	sep := " | "
	write := func(key string, v slog.Value) {
		b.WriteString(sep)
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(formatValue(v))
		sep = ", "
	}
	for _, a := range h.attrs {
		write(a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		write(h.prefix+a.Key, a.Value)
		return true
	})
	b.WriteString(newline)

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

// formatValue collapses errors to their message and quotes anything holding a
// separator.
func formatValue(v slog.Value) string {
	v = v.Resolve()
	s := v.String()
	if err, ok := v.Any().(error); ok && v.Kind() == slog.KindAny {
		s = err.Error()
	}
	if s == "" || strings.ContainsAny(s, " ,=|\"\n") {
		return strconv.Quote(s)
	}
	return s
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next.attrs = append(next.attrs, h.attrs...)
	for _, a := range attrs {
		next.attrs = append(next.attrs, slog.Attr{Key: h.prefix + a.Key, Value: a.Value})
	}
	return &next
}

// WithGroup prefixes later attribute keys with "name.".
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

// ///////////////////////////////////////////////
// Logger
// ///////////////////////////////////////////////

// Options configures [NewLogger].
type Options struct {
	Path string
	// Level may be adjusted after construction; nil means INFO.
	Level     *slog.LevelVar
	MaxSizeMB int
	// Console mirrors output to stderr for foreground runs.
	Console bool
}

const (
	maxBackups = 3
	maxAgeDays = 28
)

// NewLogger returns a logger writing to a rotating file at opts.Path. Close
// the returned io.Closer on shutdown.
func NewLogger(opts Options) (*slog.Logger, io.Closer, error) {
	if opts.Path == "" {
		return nil, nil, fmt.Errorf("log path is required")
	}
	level := opts.Level
	if level == nil {
		level = new(slog.LevelVar)
	}
	file := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
	}

	var w io.Writer = file
	if opts.Console {
		w = io.MultiWriter(file, os.Stderr)
	}
	return slog.New(NewHandler(w, level)), file, nil
}

// Trace logs msg at LevelTrace.
func Trace(l *slog.Logger, msg string, args ...any) {
	l.Log(context.Background(), LevelTrace, msg, args...)
}

// Component returns the default logger tagged with component=name.
func Component(name string) *slog.Logger {
	return slog.Default().With("component", name)
}

// ///////////////////////////////////////////////
// ReadTail
// ///////////////////////////////////////////////

// ReadTail returns the last n lines of the file at path, oldest first.
func ReadTail(path string, n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var tail []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if len(tail) == n {
			tail = tail[1:]
		}
		tail = append(tail, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("reading log file: %w", err)
	}
	return strings.Join(tail, "\n"), nil
}
