package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ///////////////////////////////////////////////
// PID Lock
// ///////////////////////////////////////////////

// runningError reports that another daemon holds the PID lock.
type runningError struct {
	PID int
}

func (e *runningError) Error() string {
	if e.PID == 0 {
		return "another instance is running"
	}
	return fmt.Sprintf("another instance is running (pid %d)", e.PID)
}

// pidLock is the held PID file. The file content is "PID:TOKEN"; Release only
// removes the file while it still carries this instance's token.
type pidLock struct {
	path  string
	token string
	f     *os.File
}

// acquirePID opens path, takes the advisory lock and writes this process's
// PID. A lock held elsewhere yields a *runningError. An unlocked leftover file
// from a crashed instance is simply overwritten.
func acquirePID(path string) (*pidLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open PID file: %w", err)
	}
	if err := lockFile(f); err != nil {
		f.Close()
		pid, _, _ := readPID(path)
		return nil, &runningError{PID: pid}
	}

	l := &pidLock{path: path, token: uuid.NewString(), f: f}
	if err := f.Truncate(0); err != nil {
		l.unlock()
		return nil, fmt.Errorf("truncate PID file: %w", err)
	}
	if _, err := f.WriteAt([]byte(fmt.Sprintf("%d:%s", os.Getpid(), l.token)), 0); err != nil {
		l.unlock()
		return nil, fmt.Errorf("write PID file: %w", err)
	}
	return l, nil
}

func (l *pidLock) unlock() {
	_ = unlockFile(l.f)
	l.f.Close()
}

// Release unlocks and removes the PID file if it still carries our token.
func (l *pidLock) Release() {
	if l == nil {
		return
	}
	if l.f != nil {
		l.unlock()
		l.f = nil
	}
	if l.token == "" {
		return
	}
	if _, token, ok := readPID(l.path); ok && token == l.token {
		os.Remove(l.path)
	}
}

// readPID parses a "PID:TOKEN" file.
func readPID(path string) (pid int, token string, ok bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, "", false
	}
	head, token, found := strings.Cut(strings.TrimSpace(string(data)), ":")
	if !found {
		return 0, "", false
	}
	pid, err = strconv.Atoi(head)
	if err != nil {
		return 0, "", false
	}
	return pid, token, true
}
