// Package main implements the editorcord daemon, which mirrors the editor's
// focus state into Discord Rich Presence.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"

	rootpkg "tools.zach/dev/editorcord"
	"tools.zach/dev/editorcord/internal/checkpoint"
	"tools.zach/dev/editorcord/internal/config"
	"tools.zach/dev/editorcord/internal/discord"
	"tools.zach/dev/editorcord/internal/editor"
	"tools.zach/dev/editorcord/internal/engine"
	"tools.zach/dev/editorcord/internal/logger"
	"tools.zach/dev/editorcord/internal/paths"
	"tools.zach/dev/editorcord/internal/update"
)

// ///////////////////////////////////////////////
// Version
// ///////////////////////////////////////////////

// version is set at build time via -X main.version=... When unset, the VCS
// revision embedded by the toolchain is used.
var version = "dev"

func resolveVersion() string {
	if version != "dev" {
		return version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version
	}
	var revision string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if revision == "" {
		return version
	}
	tag := "dev+" + revision[:min(7, len(revision))]
	if dirty {
		tag += ".dirty"
	}
	return tag
}

// defaultDataDir returns ~/.editorcord, or ./.editorcord when the home
// directory is unknown.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", paths.DataDirRel)
	}
	return filepath.Join(home, paths.DataDirRel)
}

// ///////////////////////////////////////////////
// Main
// ///////////////////////////////////////////////

func main() {
	if len(os.Args) > 1 && os.Args[1] == "report" {
		os.Exit(runReport(os.Args[2:], os.Stderr))
	}

	dataDir := flag.String("data-dir", defaultDataDir(), "Data directory for config, editor state, and logs")
	showVersion := flag.Bool("version", false, "Print the version and exit")
	tail := flag.Int("logs", 0, "Print the last `N` lines of the daemon log and exit")
	foreground := flag.Bool("foreground", false, "Mirror log output to stderr")
	flag.Parse()

	dir := paths.DataDir{Root: *dataDir}

	switch {
	case *showVersion:
		fmt.Println(paths.BinaryName, resolveVersion())
		return
	case *tail > 0:
		out, err := logger.ReadTail(dir.Log(), *tail)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read log: %v\n", err)
			os.Exit(1)
		}
		fmt.Print(out)
		return
	}

	os.Exit(runDaemon(dir, *foreground))
}

// ///////////////////////////////////////////////
// Daemon
// ///////////////////////////////////////////////

// runDaemon runs until a shutdown signal arrives and returns the exit status.
func runDaemon(dir paths.DataDir, foreground bool) int {
	if err := os.MkdirAll(dir.Root, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: create data dir: %v\n", err)
		return 1
	}

	if err := writeDefaultConfig(dir); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to write default config: %v\n", err)
	}

	cfg, err := config.Load(dir.Root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: load config: %v\n", err)
		return 1
	}

	level := new(slog.LevelVar)
	level.Set(logger.ParseLevel(cfg.Log.Level))
	log, logCloser, err := logger.NewLogger(logger.Options{
		Path:      dir.Log(),
		Level:     level,
		MaxSizeMB: cfg.Log.MaxSizeMB,
		Console:   foreground,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: init logger: %v\n", err)
		return 1
	}
	defer logCloser.Close()
	slog.SetDefault(log)

	lock, err := acquirePID(dir.PID())
	if err != nil {
		var running *runningError
		if errors.As(err, &running) {
			fmt.Fprintf(os.Stderr, "daemon already running (pid %d)\n", running.PID)
		} else {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		}
		return 1
	}
	defer lock.Release()

	ver := resolveVersion()
	slog.Info("editorcord starting", "version", ver, "data_dir", dir.Root)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case sig := <-signalChannel():
			slog.Info("received shutdown signal", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	if cfg.Behavior.CheckUpdates {
		go func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("update check panic", "error", r)
				}
			}()
			update.Run(ctx, ver)
		}()
	}

	// Resume needs the checkpoint store; without it the daemon still runs.
	var store editor.Checkpointer
	if s, err := checkpoint.Open(dir.Checkpoint()); err != nil {
		slog.Warn("checkpoint store unavailable, timer resume disabled", "error", err)
	} else {
		defer s.Close()
		store = s
	}

	h, err := editor.Open(dir, cfg, store)
	if err != nil {
		slog.Error("failed to open editor state", "error", err)
		return 1
	}
	defer h.Close()

	levels := h.OnConfigurationChanged(func(prev, next *config.Config) {
		if prev.Log.Level != next.Log.Level {
			level.Set(logger.ParseLevel(next.Log.Level))
			slog.Info("log level changed", "level", next.Log.Level)
		}
	})
	defer levels.Dispose()

	eng, err := engine.Start(ctx, h, discord.NewClient(), engine.Options{})
	if err != nil {
		slog.Error("failed to start presence engine", "error", err)
		return 1
	}
	<-eng.Done()
	eng.Stop()

	slog.Info("editorcord stopped")
	return 0
}

// writeDefaultConfig writes the commented default config on first run.
func writeDefaultConfig(dir paths.DataDir) error {
	if _, err := os.Stat(dir.Config()); !os.IsNotExist(err) {
		return nil
	}
	return os.WriteFile(dir.Config(), rootpkg.DefaultConfigTOML, 0o644)
}
