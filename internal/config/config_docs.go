package config

// ///////////////////////////////////////////////
// Documentation Types
// ///////////////////////////////////////////////

// FieldDoc holds documentation and alternative examples for a single config field.
// The genconfig tool uses [FieldDoc] values to annotate the generated config.default.toml.
type FieldDoc struct {
	// Comment is shown as a header comment above the field in the example config.
	Comment string

	// Alternatives are shown as commented-out lines below the active value.
	Alternatives []string
}

// ///////////////////////////////////////////////
// Field Documentation Map
// ///////////////////////////////////////////////

// ConfigDocs maps TOML field paths (dot-separated, e.g. "display.large_icon")
// to their [FieldDoc] entries.
var ConfigDocs = map[string]FieldDoc{
	"version": {
		Comment: "Config schema version. Do not edit.",
	},

	// ── Discord ──────────────────────────────────────────────────
	"discord.client_id": {
		Comment: "Discord application ID. Leave blank to use the public editorcord app.\nSet your own to use custom image assets.",
		Alternatives: []string{
			`client_id = "123456789012345678"`,
		},
	},

	// ── Display ──────────────────────────────────────────────────
	"display.large_icon": {
		Comment: "Image slots. Options: \"none\", \"editor_version\", \"file_extension\"\n  editor_version: the editor logo, tooltip shows the version\n  file_extension: an asset named after the extension (\"go\", \"ts\"); upload them to your app",
		Alternatives: []string{
			`large_icon = "file_extension"`,
		},
	},
	"display.small_icon": {
		Alternatives: []string{
			`small_icon = "editor_version"`,
		},
	},
	"display.top_line": {
		Comment: "Text lines. Options: \"empty\", \"file_name\", \"folder_name\", \"editor_version\"\ntop_line = details, bottom_line = state",
		Alternatives: []string{
			`top_line = "editor_version"`,
		},
	},
	"display.bottom_line": {},

	// ── Timer ────────────────────────────────────────────────────
	"timer.mode": {
		Comment: "When the elapsed timer resets. Options: \"disabled\", \"within_files\", \"within_folder\"\n  within_files:  reset when you switch to a different file\n  within_folder: reset when the workspace folders change",
		Alternatives: []string{
			`mode = "within_files"`,
			`mode = "disabled"`,
		},
	},
	"timer.resume": {
		Comment: "Resume the timer from the last checkpoint after a restart",
	},
	"timer.resume_max_age_minutes": {
		Comment: "Ignore checkpoints older than this when resuming (0 = any age)",
	},

	// ── Behavior ─────────────────────────────────────────────────
	"behavior.update_interval_seconds": {
		Comment: "How often presence is re-sent while connected",
	},
	"behavior.check_updates": {
		Comment: "Log a notice at startup when a newer release is available",
	},

	// ── Privacy ──────────────────────────────────────────────────
	"privacy.ignore": {
		Comment: "Glob patterns for workspace folders where presence is cleared",
		Alternatives: []string{
			`ignore = ["**/work/**", "/home/me/secret-*"]`,
		},
	},

	// ── Log ──────────────────────────────────────────────────────
	"log.level": {
		Comment: "Options: \"trace\", \"debug\", \"info\", \"warn\", \"error\"",
	},
	"log.max_size_mb": {},
}
