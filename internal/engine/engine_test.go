package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tools.zach/dev/editorcord/internal/config"
	"tools.zach/dev/editorcord/internal/connection"
	"tools.zach/dev/editorcord/internal/discord"
	"tools.zach/dev/editorcord/internal/host"
	"tools.zach/dev/editorcord/internal/host/hosttest"
	"tools.zach/dev/editorcord/internal/timer"
)

// ///////////////////////////////////////////////
// Test Helpers
// ///////////////////////////////////////////////

type fakeTransport struct {
	mu        sync.Mutex
	loginErrs []error
	logins    int
	sent      []*discord.Activity
	closed    bool
	events    chan discord.Event
}

func newFakeTransport(loginErrs ...error) *fakeTransport {
	return &fakeTransport{loginErrs: loginErrs, events: make(chan discord.Event, 4)}
}

func (f *fakeTransport) Login(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins++
	if len(f.loginErrs) > 0 {
		err := f.loginErrs[0]
		f.loginErrs = f.loginErrs[1:]
		return err
	}
	return nil
}

func (f *fakeTransport) SetActivity(a *discord.Activity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, a)
	return nil
}

func (f *fakeTransport) ClearActivity() error { return f.SetActivity(nil) }

func (f *fakeTransport) Events() <-chan discord.Event { return f.events }

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) snapshot() (logins int, sent []*discord.Activity, closed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logins, append([]*discord.Activity(nil), f.sent...), f.closed
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func editorHost(cfg *config.Config) *hosttest.Fake {
	h := hosttest.New(cfg)
	h.SetContext(host.EditorContext{
		ActiveFilePath: "/src/proj/main.go", ActiveFileName: "main.go", ActiveFileExtension: "go",
		WorkspaceFolderName: "proj", WorkspaceFolderPath: "/src/proj", EditorVersion: "1.90.0",
	})
	return h
}

func startEngine(t *testing.T, h host.Host, tr connection.Transport, opts Options) *Engine {
	t.Helper()
	e, err := Start(context.Background(), h, tr, opts)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(e.Stop)
	return e
}

// ///////////////////////////////////////////////
// Start
// ///////////////////////////////////////////////

func TestStart_ConnectsAndSendsImmediately(t *testing.T) {
	h := editorHost(nil)
	tr := newFakeTransport()
	e := startEngine(t, h, tr, Options{})

	eventually(t, "connected", func() bool { return e.Status().Connection == connection.Connected })
	eventually(t, "first send", func() bool {
		_, sent, _ := tr.snapshot()
		return len(sent) > 0
	})

	_, sent, _ := tr.snapshot()
	if sent[0].Details != "Folder proj" || sent[0].State != "File main.go" {
		t.Errorf("first send = %q / %q", sent[0].Details, sent[0].State)
	}
	st := e.Status()
	if !st.Scheduling || st.TimerMode != config.TimerWithinFolder {
		t.Errorf("status = %+v", st)
	}
}

func TestStart_Validation(t *testing.T) {
	bad := config.DefaultConfig()
	bad.Timer.Mode = "sometimes"

	tests := []struct {
		name string
		host host.Host
		tr   connection.Transport
	}{
		{"nil host", nil, newFakeTransport()},
		{"nil transport", editorHost(nil), nil},
		{"invalid config", hosttest.New(bad), newFakeTransport()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Start(context.Background(), tt.host, tt.tr, Options{}); err == nil {
				t.Fatal("Start succeeded, want error")
			}
		})
	}
}

func TestStart_RetriesWithBackoff(t *testing.T) {
	var mu sync.Mutex
	var delays []time.Duration
	after := func(d time.Duration, fn func()) connection.Timer {
		mu.Lock()
		delays = append(delays, d)
		mu.Unlock()
		return time.AfterFunc(time.Millisecond, fn)
	}
	fail := &discord.AuthError{Code: 4000, Message: "Invalid Client ID"}
	tr := newFakeTransport(fail, fail, fail)
	e := startEngine(t, editorHost(nil), tr, Options{AfterFunc: after})

	eventually(t, "connected", func() bool { return e.Status().Connection == connection.Connected })

	mu.Lock()
	defer mu.Unlock()
	want := []time.Duration{1500 * time.Millisecond, 2250 * time.Millisecond, 3375 * time.Millisecond}
	if len(delays) != len(want) {
		t.Fatalf("delays = %v, want %v", delays, want)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Errorf("delay %d = %v, want %v", i+1, delays[i], want[i])
		}
	}
}

// ///////////////////////////////////////////////
// Lifecycle Events
// ///////////////////////////////////////////////

func TestDisconnect_RelogsAndResumesSending(t *testing.T) {
	tr := newFakeTransport()
	e := startEngine(t, editorHost(nil), tr, Options{})
	eventually(t, "connected", func() bool { return e.Status().Connection == connection.Connected })

	tr.events <- discord.Event{Kind: discord.EventDisconnected}

	eventually(t, "second login", func() bool {
		logins, _, _ := tr.snapshot()
		return logins == 2
	})
	eventually(t, "reconnected", func() bool {
		st := e.Status()
		return st.Connection == connection.Connected && st.Scheduling && st.Attempts == 0
	})
}

// ///////////////////////////////////////////////
// Configuration
// ///////////////////////////////////////////////

func TestConfigChange_ReentersTimerOnModeChange(t *testing.T) {
	h := editorHost(nil)
	e := startEngine(t, h, newFakeTransport(), Options{})

	next := config.DefaultConfig()
	next.Timer.Mode = config.TimerWithinFiles
	h.SetConfig(next)

	eventually(t, "mode switch", func() bool { return e.Status().TimerMode == config.TimerWithinFiles })
	active, folders, configs := h.Listeners()
	if active != 1 || folders != 0 || configs != 1 {
		t.Errorf("listeners = %d/%d/%d, want 1/0/1", active, folders, configs)
	}
}

func TestConfigChange_SameModeKeepsTimer(t *testing.T) {
	h := editorHost(nil)
	e := startEngine(t, h, newFakeTransport(), Options{})
	start := e.Status().Start

	next := config.DefaultConfig()
	next.Display.TopLine = config.LineEditorVersion
	h.SetConfig(next)

	// Status runs after the queued config callback.
	if got := e.Status().Start; got != start {
		t.Errorf("start changed from %d to %d on a display-only change", start, got)
	}
	_, folders, _ := h.Listeners()
	if folders != 1 {
		t.Errorf("folder listeners = %d, want 1", folders)
	}
}

func TestConfigChange_RepeatedSwitchesLeaveOneSet(t *testing.T) {
	h := editorHost(nil)
	e := startEngine(t, h, newFakeTransport(), Options{})

	modes := []config.TimerMode{
		config.TimerWithinFiles, config.TimerDisabled, config.TimerWithinFolder,
		config.TimerWithinFiles, config.TimerWithinFolder,
	}
	for _, m := range modes {
		next := config.DefaultConfig()
		next.Timer.Mode = m
		h.SetConfig(next)
	}

	st := e.Status()
	if st.TimerMode != config.TimerWithinFolder {
		t.Fatalf("mode = %s", st.TimerMode)
	}
	active, folders, _ := h.Listeners()
	if active != 0 || folders != 1 {
		t.Errorf("listeners = %d/%d, want 0/1", active, folders)
	}
}

// ///////////////////////////////////////////////
// Resume
// ///////////////////////////////////////////////

func TestResume(t *testing.T) {
	now := time.UnixMilli(10_000_000_000)
	tests := []struct {
		name       string
		resume     bool
		checkpoint int64
		want       bool
	}{
		{"disabled", false, now.Add(-time.Minute).UnixMilli(), false},
		{"fresh", true, now.Add(-time.Minute).UnixMilli(), true},
		{"stale", true, now.Add(-3 * time.Hour).UnixMilli(), false},
		{"future", true, now.Add(time.Hour).UnixMilli(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Timer.Resume = tt.resume
			h := editorHost(cfg)
			h.PersistCheckpoint(timer.CheckpointKey, tt.checkpoint)

			e := startEngine(t, h, newFakeTransport(), Options{Now: func() time.Time { return now }})

			got := e.Status().Start == tt.checkpoint
			if got != tt.want {
				t.Errorf("resumed = %v, want %v (start %d)", got, tt.want, e.Status().Start)
			}
		})
	}
}

// ///////////////////////////////////////////////
// Stop
// ///////////////////////////////////////////////

func TestStop_TearsDown(t *testing.T) {
	h := editorHost(nil)
	tr := newFakeTransport()
	e, err := Start(context.Background(), h, tr, Options{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	eventually(t, "connected", func() bool { return e.Status().Connection == connection.Connected })

	e.Stop()
	e.Stop()

	active, folders, configs := h.Listeners()
	if active+folders+configs != 0 {
		t.Errorf("listeners after Stop = %d/%d/%d", active, folders, configs)
	}
	if _, _, closed := tr.snapshot(); !closed {
		t.Error("transport not destroyed")
	}
	st := e.Status()
	if st.Connection != connection.Disconnected || st.Scheduling {
		t.Errorf("status after Stop = %+v", st)
	}

	// Host events after Stop must not block or panic.
	h.FireFolders()
	h.SetConfig(config.DefaultConfig())
}

func TestStop_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e, err := Start(ctx, editorHost(nil), newFakeTransport(errors.New("down")), Options{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	cancel()
	select {
	case <-e.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop on context cancel")
	}
	e.Stop()
}
