//go:build !linux && !windows

package discord

// WSL only exists on linux builds.
func isWSL() bool { return false }

func wslSocketPaths() []string { return nil }
