// Package paths centralizes file and directory names used across the project.
// All data directory file names are defined here as the single source of truth.
package paths

import "path/filepath"

// ///////////////////////////////////////////////
// Constants
// ///////////////////////////////////////////////

// Data directory file names.
const (
	PIDFile        = "daemon.pid"
	EditorFile     = "editor.json"
	ConfigFile     = "config.toml"
	LogFile        = "daemon.log"
	CheckpointFile = "checkpoint.db"
)

// Process and install constants.
const (
	BinaryName = "editorcord"
	DataDirRel = ".editorcord" // relative to $HOME
)

// Remote-fetched file paths (relative to repo root).
const (
	ReleaseManifest = ".release-manifest.json"
)

// ///////////////////////////////////////////////
// DataDir
// ///////////////////////////////////////////////

// DataDir provides path construction methods rooted at a data directory.
type DataDir struct {
	Root string
}

// PID returns the full path to the PID file.
func (d DataDir) PID() string { return filepath.Join(d.Root, PIDFile) }

// Editor returns the full path to the editor snapshot written by the editor integration.
func (d DataDir) Editor() string { return filepath.Join(d.Root, EditorFile) }

// Config returns the full path to the config file.
func (d DataDir) Config() string { return filepath.Join(d.Root, ConfigFile) }

// Log returns the full path to the log file.
func (d DataDir) Log() string { return filepath.Join(d.Root, LogFile) }

// Checkpoint returns the full path to the checkpoint database.
func (d DataDir) Checkpoint() string { return filepath.Join(d.Root, CheckpointFile) }
