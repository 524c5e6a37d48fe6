// conn_unix.go discovers the Discord IPC socket on Unix-like systems.

//go:build !windows

package discord

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

// ///////////////////////////////////////////////
// Connection
// ///////////////////////////////////////////////

// socketPaths lists candidate socket paths in the order they are tried.
func socketPaths() []string {
	var paths []string
	variants := []string{"discord-ipc", "discordcanary-ipc", "discordptb-ipc"}
	slots := func(dir, variant string) {
		for i := range maxIPCSlots {
			paths = append(paths, fmt.Sprintf("%s/%s-%d", dir, variant, i))
		}
	}

	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		for _, v := range variants {
			slots(dir, v)
		}
	}
	// macOS places the socket under the per-user TMPDIR.
	tmpDirs := []string{"/tmp"}
	if tmp := strings.TrimSuffix(os.Getenv("TMPDIR"), "/"); tmp != "" && tmp != "/tmp" {
		tmpDirs = append([]string{tmp}, tmpDirs...)
	}
	for _, dir := range tmpDirs {
		for _, v := range variants {
			slots(dir, v)
		}
	}

	uid := strconv.Itoa(os.Getuid())
	for _, snap := range []string{"snap.discord", "snap.discord-canary", "snap.discord-ptb"} {
		slots("/run/user/"+uid+"/"+snap, "discord-ipc")
	}
	for _, app := range []string{"com.discordapp.Discord", "com.discordapp.DiscordCanary", "com.discordapp.DiscordPTB"} {
		slots("/run/user/"+uid+"/app/"+app, "discord-ipc")
	}

	return append(paths, wslSocketPaths()...)
}

// connectToDiscord dials each candidate socket and returns the first that
// accepts. It stops early when ctx is done.
func connectToDiscord(ctx context.Context) (net.Conn, error) {
	var d net.Dialer
	for _, path := range socketPaths() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		conn, err := d.DialContext(ctx, "unix", path)
		if err == nil {
			return conn, nil
		}
	}

	if isWSL() {
		return nil, fmt.Errorf("%w: under WSL a socat + npiperelay.exe relay is required", ErrIPCNotAvailable)
	}
	return nil, ErrIPCNotAvailable
}
