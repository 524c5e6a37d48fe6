// Tests for the config package covering [Load] behavior (defaults, overrides,
// missing files, malformed input, migration of the flat extension layout),
// [Config.ResolveClientID], [Config.IsIgnored], [Config.Validate],
// [Config.Save] round-trips, and [ConfigDocs] completeness.

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
)

// writeConfig writes content to dir/config.toml.
func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// ///////////////////////////////////////////////
// Load
// ///////////////////////////////////////////////

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		noFile  bool
		wantErr bool
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name:   "defaults from minimal config",
			config: "version = 2\n",
			check: func(t *testing.T, cfg *Config) {
				t.Helper()
				def := DefaultConfig()
				if cfg.Display != def.Display {
					t.Errorf("Display = %+v, want %+v", cfg.Display, def.Display)
				}
				if cfg.Timer.Mode != TimerWithinFolder {
					t.Errorf("Timer.Mode = %q, want %q", cfg.Timer.Mode, TimerWithinFolder)
				}
			},
		},
		{
			name: "user overrides applied",
			config: `
version = 2

[display]
large_icon = "file_extension"
top_line = "editor_version"

[timer]
mode = "within_files"
`,
			check: func(t *testing.T, cfg *Config) {
				t.Helper()
				if cfg.Display.LargeIcon != IconFileExtension {
					t.Errorf("LargeIcon = %q, want %q", cfg.Display.LargeIcon, IconFileExtension)
				}
				if cfg.Display.TopLine != LineEditorVersion {
					t.Errorf("TopLine = %q, want %q", cfg.Display.TopLine, LineEditorVersion)
				}
				if cfg.Display.BottomLine != LineFileName {
					t.Errorf("BottomLine = %q, want default %q", cfg.Display.BottomLine, LineFileName)
				}
				if cfg.Timer.Mode != TimerWithinFiles {
					t.Errorf("Timer.Mode = %q, want %q", cfg.Timer.Mode, TimerWithinFiles)
				}
			},
		},
		{
			name:   "missing file returns defaults",
			noFile: true,
			check: func(t *testing.T, cfg *Config) {
				t.Helper()
				if cfg.Version != DefaultConfig().Version {
					t.Errorf("Version = %d, want %d", cfg.Version, DefaultConfig().Version)
				}
			},
		},
		{
			name:    "malformed TOML returns error",
			config:  "this is not valid toml [[[",
			wantErr: true,
		},
		{
			name:    "invalid enum rejected",
			config:  "version = 2\n[timer]\nmode = \"forever\"\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if !tt.noFile {
				writeConfig(t, dir, tt.config)
			}

			cfg, err := Load(dir)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

// ///////////////////////////////////////////////
// Migration
// ///////////////////////////////////////////////

func TestLoad_MigratesFlatExtensionSettings(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
clientId = "42"
largeIcon = "fileExtension"
smallIcon = "vscodeVersion"
topLineText = "fileName"
bottomLineText = "empty"
timerMode = "withinFiles"
someRemovedSetting = true

[log]
level = "debug"
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Version != 2 {
		t.Errorf("Version = %d, want 2", cfg.Version)
	}
	if cfg.Discord.ClientID != "42" {
		t.Errorf("ClientID = %q, want 42", cfg.Discord.ClientID)
	}
	want := DisplayConfig{
		LargeIcon:  IconFileExtension,
		SmallIcon:  IconEditorVersion,
		TopLine:    LineFileName,
		BottomLine: LineEmpty,
	}
	if cfg.Display != want {
		t.Errorf("Display = %+v, want %+v", cfg.Display, want)
	}
	if cfg.Timer.Mode != TimerWithinFiles {
		t.Errorf("Timer.Mode = %q, want %q", cfg.Timer.Mode, TimerWithinFiles)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want existing table carried over", cfg.Log.Level)
	}

	if _, err := os.Stat(filepath.Join(dir, "config.toml.bak")); err != nil {
		t.Errorf("expected backup of v1 config: %v", err)
	}
	saved, _ := os.ReadFile(filepath.Join(dir, "config.toml"))
	if PeekVersion(saved) != 2 {
		t.Errorf("re-saved config version = %d, want 2", PeekVersion(saved))
	}
}

func TestLoad_MigratesNamespacedSettings(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[vsnocodeDiscordRPC]
timerMode = "disabled"
topLineText = "folderName"
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Timer.Mode != TimerDisabled {
		t.Errorf("Timer.Mode = %q, want %q", cfg.Timer.Mode, TimerDisabled)
	}
	if cfg.Display.TopLine != LineFolderName {
		t.Errorf("TopLine = %q, want %q", cfg.Display.TopLine, LineFolderName)
	}
}

func TestLoad_RejectsNewerSchema(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "version = 9\n")

	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for config newer than supported")
	}
}

func TestPeekVersion(t *testing.T) {
	tests := []struct {
		name string
		data string
		want int
	}{
		{"reads version", "version = 3\n[discord]\nclient_id = \"x\"\n", 3},
		{"missing version is legacy", "largeIcon = \"none\"\n", 1},
		{"garbage is legacy", "[[[", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PeekVersion([]byte(tt.data)); got != tt.want {
				t.Errorf("PeekVersion() = %d, want %d", got, tt.want)
			}
		})
	}
}

// ///////////////////////////////////////////////
// Client ID
// ///////////////////////////////////////////////

func TestConfig_ResolveClientID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want string
	}{
		{"unset", "", DefaultClientID},
		{"blank", "   ", DefaultClientID},
		{"custom", "1234", "1234"},
		{"custom trimmed", " 1234 ", "1234"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Discord.ClientID = tt.id
			if got := cfg.ResolveClientID(); got != tt.want {
				t.Errorf("ResolveClientID() = %q, want %q", got, tt.want)
			}
		})
	}
}

// ///////////////////////////////////////////////
// Privacy
// ///////////////////////////////////////////////

func TestConfig_IsIgnored(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		path     string
		want     bool
	}{
		{"no patterns", nil, "/home/me/proj", false},
		{"empty path", []string{"**"}, "", false},
		{"exact match", []string{"/home/me/secret"}, "/home/me/secret", true},
		{"double star", []string{"**/work/**"}, "/home/me/work/client-a", true},
		{"no match", []string{"**/work/**"}, "/home/me/play/game", false},
		{"invalid pattern skipped", []string{"[", "/home/me/*"}, "/home/me/x", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Privacy.Ignore = tt.patterns
			if got := cfg.IsIgnored(tt.path); got != tt.want {
				t.Errorf("IsIgnored(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

// ///////////////////////////////////////////////
// Clone
// ///////////////////////////////////////////////

func TestConfig_CloneIsDeep(t *testing.T) {
	orig := DefaultConfig()
	orig.Privacy.Ignore = []string{"a"}

	c := orig.Clone()
	c.Privacy.Ignore[0] = "b"
	c.Display.TopLine = LineEmpty

	if orig.Privacy.Ignore[0] != "a" {
		t.Error("Clone shares the ignore slice with the original")
	}
	if orig.Display.TopLine != LineFolderName {
		t.Error("Clone shares display settings with the original")
	}
	if (*Config)(nil).Clone() != nil {
		t.Error("Clone of nil should be nil")
	}
}

// ///////////////////////////////////////////////
// Validate
// ///////////////////////////////////////////////

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(cfg *Config)
		wantErr bool
	}{
		{"default config passes", func(cfg *Config) {}, false},
		{"every option valid", func(cfg *Config) {
			cfg.Display.LargeIcon = IconFileExtension
			cfg.Display.SmallIcon = IconEditorVersion
			cfg.Display.TopLine = LineEmpty
			cfg.Display.BottomLine = LineEditorVersion
			cfg.Timer.Mode = TimerDisabled
		}, false},
		{"invalid large_icon", func(cfg *Config) { cfg.Display.LargeIcon = "vscodeVersion" }, true},
		{"invalid small_icon", func(cfg *Config) { cfg.Display.SmallIcon = "" }, true},
		{"invalid top_line", func(cfg *Config) { cfg.Display.TopLine = "branch" }, true},
		{"invalid bottom_line", func(cfg *Config) { cfg.Display.BottomLine = "x" }, true},
		{"invalid timer.mode", func(cfg *Config) { cfg.Timer.Mode = "session" }, true},
		{"negative resume age", func(cfg *Config) { cfg.Timer.ResumeMaxAgeMinutes = -1 }, true},
		{"zero update interval", func(cfg *Config) { cfg.Behavior.UpdateIntervalSeconds = 0 }, true},
		{"bad ignore glob", func(cfg *Config) { cfg.Privacy.Ignore = []string{"["} }, true},
		{"invalid log.level", func(cfg *Config) { cfg.Log.Level = "verbose" }, true},
		{"zero log size", func(cfg *Config) { cfg.Log.MaxSizeMB = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.setup(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// ///////////////////////////////////////////////
// Save
// ///////////////////////////////////////////////

func TestConfig_Save_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	orig := DefaultConfig()
	orig.Discord.ClientID = "round-trip-test"
	orig.Timer.Mode = TimerWithinFiles
	orig.Privacy.Ignore = []string{"**/secret/**"}

	if err := orig.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if !reflect.DeepEqual(loaded, orig) {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", loaded, orig)
	}
}

// ///////////////////////////////////////////////
// Docs
// ///////////////////////////////////////////////

func TestExampleConfigMarshals(t *testing.T) {
	var buf strings.Builder
	if err := toml.NewEncoder(&buf).Encode(ExampleConfig()); err != nil {
		t.Fatalf("failed to marshal ExampleConfig: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"[discord]", "[display]", "[timer]", "[log]"} {
		if !strings.Contains(out, want) {
			t.Errorf("marshaled config missing %s", want)
		}
	}
}

func TestConfigDocsComplete(t *testing.T) {
	for _, field := range collectTOMLFields(reflect.TypeOf(Config{}), "") {
		if _, ok := ConfigDocs[field]; !ok {
			t.Errorf("ConfigDocs missing entry for field %q", field)
		}
	}
}

// collectTOMLFields recursively walks a struct type and returns the
// dot-separated TOML key path for every tagged field.
func collectTOMLFields(typ reflect.Type, prefix string) []string {
	var fields []string
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("toml")
		if tag == "" || tag == "-" {
			continue
		}
		if idx := strings.Index(tag, ","); idx != -1 {
			tag = tag[:idx]
		}
		path := tag
		if prefix != "" {
			path = prefix + "." + tag
		}
		if f.Type.Kind() == reflect.Struct {
			fields = append(fields, collectTOMLFields(f.Type, path)...)
		} else {
			fields = append(fields, path)
		}
	}
	return fields
}
