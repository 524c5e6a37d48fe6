// Package config provides configuration loading and defaults for the editorcord
// daemon.
//
// Configuration is loaded from a TOML file in the user's data directory. The
// package covers the presence card layout (icons and text lines), the elapsed
// timer policy, the Discord client identifier, privacy and logging. A loaded
// [Config] is treated as an immutable snapshot; reloads produce a new value.
package config

//go:generate go run ../../cmd/genconfig

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	"tools.zach/dev/editorcord/internal/atomicfile"
	"tools.zach/dev/editorcord/internal/paths"
)

// DefaultClientID is the public editorcord Discord application ID. It is not a
// secret; users override it only for custom branding or their own assets.
const DefaultClientID = "1375810382735740978"

// ///////////////////////////////////////////////
// Option Enums
// ///////////////////////////////////////////////

// IconOption selects what an image slot on the presence card shows.
type IconOption string

const (
	IconNone          IconOption = "none"
	IconEditorVersion IconOption = "editor_version"
	IconFileExtension IconOption = "file_extension"
)

// LineOption selects the source of a text line on the presence card.
type LineOption string

const (
	LineEmpty         LineOption = "empty"
	LineFileName      LineOption = "file_name"
	LineFolderName    LineOption = "folder_name"
	LineEditorVersion LineOption = "editor_version"
)

// TimerMode is the policy governing when the elapsed-time timestamp resets.
type TimerMode string

const (
	TimerDisabled     TimerMode = "disabled"
	TimerWithinFiles  TimerMode = "within_files"
	TimerWithinFolder TimerMode = "within_folder"
)

// ///////////////////////////////////////////////
// Configuration Types
// ///////////////////////////////////////////////

// Config represents the top-level application configuration.
type Config struct {
	// Version is the config schema version used for migrations.
	Version int `toml:"version"`
	// Discord holds Discord connection settings.
	Discord DiscordConfig `toml:"discord"`
	// Display holds presence card layout settings.
	Display DisplayConfig `toml:"display"`
	// Timer holds elapsed-time settings.
	Timer TimerConfig `toml:"timer"`
	// Behavior holds daemon cadence settings.
	Behavior BehaviorConfig `toml:"behavior"`
	// Privacy holds presence suppression settings.
	Privacy PrivacyConfig `toml:"privacy"`
	// Log holds logging settings.
	Log LogConfig `toml:"log"`
}

// DiscordConfig holds Discord connection settings.
type DiscordConfig struct {
	// ClientID is the Discord application ID. Blank means [DefaultClientID].
	ClientID string `toml:"client_id"`
}

// DisplayConfig holds presence card layout settings.
type DisplayConfig struct {
	// LargeIcon selects the large image.
	LargeIcon IconOption `toml:"large_icon"`
	// SmallIcon selects the small overlay image.
	SmallIcon IconOption `toml:"small_icon"`
	// TopLine selects the source of the details line.
	TopLine LineOption `toml:"top_line"`
	// BottomLine selects the source of the state line.
	BottomLine LineOption `toml:"bottom_line"`
}

// TimerConfig holds elapsed-time settings.
type TimerConfig struct {
	// Mode controls when the elapsed timer resets.
	Mode TimerMode `toml:"mode"`
	// Resume seeds the timer from the last checkpoint on startup.
	Resume bool `toml:"resume"`
	// ResumeMaxAgeMinutes bounds how old a checkpoint may be to be resumed.
	ResumeMaxAgeMinutes int `toml:"resume_max_age_minutes"`
}

// BehaviorConfig holds daemon cadence settings.
type BehaviorConfig struct {
	// UpdateIntervalSeconds is the periodic resend interval while connected.
	UpdateIntervalSeconds int `toml:"update_interval_seconds"`
	// CheckUpdates enables the background release check at startup.
	CheckUpdates bool `toml:"check_updates"`
}

// PrivacyConfig holds presence suppression settings.
type PrivacyConfig struct {
	// Ignore lists glob patterns matched against the workspace folder path.
	// Presence is cleared while a matching folder is open.
	Ignore []string `toml:"ignore"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string `toml:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation.
	MaxSizeMB int `toml:"max_size_mb"`
}

// ///////////////////////////////////////////////
// Default Configuration
// ///////////////////////////////////////////////

// DefaultConfig returns a Config populated with defaults matching the
// original editor extension's settings.
func DefaultConfig() *Config {
	return &Config{
		Version: Migrations.CurrentVersion,
		Discord: DiscordConfig{
			ClientID: "",
		},
		Display: DisplayConfig{
			LargeIcon:  IconEditorVersion,
			SmallIcon:  IconNone,
			TopLine:    LineFolderName,
			BottomLine: LineFileName,
		},
		Timer: TimerConfig{
			Mode:                TimerWithinFolder,
			Resume:              false,
			ResumeMaxAgeMinutes: 120,
		},
		Behavior: BehaviorConfig{
			UpdateIntervalSeconds: 5,
			CheckUpdates:          true,
		},
		Privacy: PrivacyConfig{
			Ignore: []string{},
		},
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 10,
		},
	}
}

// ExampleConfig returns a Config suitable for generating config.default.toml.
func ExampleConfig() *Config {
	return DefaultConfig()
}

// Clone returns a deep copy so a snapshot handed to one component cannot be
// mutated through another.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := *c
	out.Privacy.Ignore = slices.Clone(c.Privacy.Ignore)
	return &out
}

// ResolveClientID returns the configured client ID, or [DefaultClientID] when
// it is unset or blank.
func (c *Config) ResolveClientID() string {
	if id := strings.TrimSpace(c.Discord.ClientID); id != "" {
		return id
	}
	return DefaultClientID
}

// ///////////////////////////////////////////////
// PeekVersion
// ///////////////////////////////////////////////

// PeekVersion reads just the version field from raw TOML bytes.
// Returns 1 if the version field is missing or zero, which is the flat
// camelCase layout inherited from the editor extension.
func PeekVersion(data []byte) int {
	var v struct {
		Version int `toml:"version"`
	}
	if err := toml.Unmarshal(data, &v); err != nil {
		return 1
	}
	if v.Version == 0 {
		return 1
	}
	return v.Version
}

// ///////////////////////////////////////////////
// Loading and Saving
// ///////////////////////////////////////////////

// Load reads and parses dataDir/config.toml. If the file doesn't exist,
// returns DefaultConfig.
func Load(dataDir string) (*Config, error) {
	return LoadFile(filepath.Join(dataDir, paths.ConfigFile))
}

// LoadFile reads, migrates and validates the config at path. A migrated
// config is backed up to path+".bak" and re-saved in the current schema.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	version := PeekVersion(data)
	migrated := Migrations.NeedsMigration(version)
	if migrated {
		if backupErr := os.WriteFile(path+".bak", data, 0o644); backupErr != nil {
			slog.Warn("failed to write config backup", "error", backupErr)
		}
		data, err = Migrations.Run(data, version)
		if err != nil {
			return nil, fmt.Errorf("migrate config: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Version = Migrations.CurrentVersion

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if migrated {
		if err := cfg.Save(path); err != nil {
			slog.Warn("failed to save migrated config", "error", err)
		}
	}
	return cfg, nil
}

// Save writes the config to disk as TOML using atomic file write.
func (c *Config) Save(path string) error {
	return atomicfile.WriteFunc(path, 0o644, func(w io.Writer) error {
		if err := toml.NewEncoder(w).Encode(c); err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
		return nil
	})
}

// ///////////////////////////////////////////////
// Validation
// ///////////////////////////////////////////////

// validLogLevels is the set of accepted log level strings.
var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks that all configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	for _, slot := range []struct {
		key string
		val IconOption
	}{
		{"display.large_icon", c.Display.LargeIcon},
		{"display.small_icon", c.Display.SmallIcon},
	} {
		switch slot.val {
		case IconNone, IconEditorVersion, IconFileExtension:
		default:
			return fmt.Errorf("invalid %s %q: must be none, editor_version, or file_extension", slot.key, slot.val)
		}
	}

	for _, line := range []struct {
		key string
		val LineOption
	}{
		{"display.top_line", c.Display.TopLine},
		{"display.bottom_line", c.Display.BottomLine},
	} {
		switch line.val {
		case LineEmpty, LineFileName, LineFolderName, LineEditorVersion:
		default:
			return fmt.Errorf("invalid %s %q: must be empty, file_name, folder_name, or editor_version", line.key, line.val)
		}
	}

	switch c.Timer.Mode {
	case TimerDisabled, TimerWithinFiles, TimerWithinFolder:
	default:
		return fmt.Errorf("invalid timer.mode %q: must be disabled, within_files, or within_folder", c.Timer.Mode)
	}

	if c.Timer.ResumeMaxAgeMinutes < 0 {
		return fmt.Errorf("timer.resume_max_age_minutes must be >= 0, got %d", c.Timer.ResumeMaxAgeMinutes)
	}

	if c.Behavior.UpdateIntervalSeconds <= 0 {
		return fmt.Errorf("update_interval_seconds must be > 0, got %d", c.Behavior.UpdateIntervalSeconds)
	}

	for _, pattern := range c.Privacy.Ignore {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid privacy.ignore pattern %q", pattern)
		}
	}

	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log.level %q: must be trace, debug, info, warn, or error", c.Log.Level)
	}

	if c.Log.MaxSizeMB <= 0 {
		return fmt.Errorf("log.max_size_mb must be > 0, got %d", c.Log.MaxSizeMB)
	}

	return nil
}

// ///////////////////////////////////////////////
// Privacy Helpers
// ///////////////////////////////////////////////

// IsIgnored reports whether folderPath matches any of the configured ignore
// patterns. Paths are compared in slash form so patterns are portable.
func (c *Config) IsIgnored(folderPath string) bool {
	if folderPath == "" {
		return false
	}
	p := filepath.ToSlash(folderPath)
	for _, pattern := range c.Privacy.Ignore {
		matched, err := doublestar.Match(pattern, p)
		if err != nil {
			slog.Warn("invalid glob pattern", "pattern", pattern, "error", err)
			continue
		}
		if matched {
			return true
		}
	}
	return false
}
