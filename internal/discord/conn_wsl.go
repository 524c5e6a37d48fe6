//go:build linux

package discord

import (
	"fmt"
	"os"
	"strings"
)

// wslgRuntimeDir is where WSLg exposes its user runtime directory when
// XDG_RUNTIME_DIR is not exported to the shell.
const wslgRuntimeDir = "/mnt/wslg/runtime-dir"

// isWSL reports whether the process runs under the Windows Subsystem for
// Linux. The interop variables are set by the WSL init; the kernel release
// check covers services started without them.
func isWSL() bool {
	if os.Getenv("WSL_DISTRO_NAME") != "" || os.Getenv("WSL_INTEROP") != "" {
		return true
	}
	release, err := os.ReadFile("/proc/sys/kernel/osrelease")
	return err == nil && strings.Contains(strings.ToLower(string(release)), "microsoft")
}

// wslSocketPaths returns extra locations where a socat/npiperelay.exe relay
// for the Windows named pipe is commonly bound. Nil outside WSL.
func wslSocketPaths() []string {
	if !isWSL() {
		return nil
	}
	paths := make([]string, 0, maxIPCSlots)
	for i := range maxIPCSlots {
		paths = append(paths, fmt.Sprintf("%s/discord-ipc-%d", wslgRuntimeDir, i))
	}
	return paths
}
