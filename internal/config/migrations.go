package config

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/BurntSushi/toml"
	"tools.zach/dev/editorcord/internal/migrate"
)

// Migrations is the schema registry for config.toml.
//
// Version 1 is the flat camelCase layout used by the editor extension's
// settings (optionally nested under a "vsnocodeDiscordRPC" table). Version 2
// is the sectioned snake_case layout of [Config].
var Migrations = &migrate.Registry{CurrentVersion: 2}

func init() {
	Migrations.Register(migrate.Migration{
		Version:     2,
		Description: "move flat extension settings into sections",
		Upgrade:     upgradeFlatSettings,
	})
}

// legacySettingsTable is the settings namespace the editor extension used.
const legacySettingsTable = "vsnocodeDiscordRPC"

// legacyKeys maps v1 flat keys to their v2 section and key.
var legacyKeys = map[string][2]string{
	"clientId":       {"discord", "client_id"},
	"largeIcon":      {"display", "large_icon"},
	"smallIcon":      {"display", "small_icon"},
	"topLineText":    {"display", "top_line"},
	"bottomLineText": {"display", "bottom_line"},
	"timerMode":      {"timer", "mode"},
}

// legacyValues maps v1 camelCase enum values to their v2 spelling.
var legacyValues = map[string]string{
	"vscodeVersion": string(IconEditorVersion),
	"fileExtension": string(IconFileExtension),
	"fileName":      string(LineFileName),
	"folderName":    string(LineFolderName),
	"withinFiles":   string(TimerWithinFiles),
	"withinFolder":  string(TimerWithinFolder),
}

// upgradeFlatSettings rewrites v1 flat keys into v2 sections. Tables already
// in sectioned form are carried over; unknown flat keys are dropped with a
// warning.
func upgradeFlatSettings(data []byte) ([]byte, error) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse v1 config: %w", err)
	}

	flat := map[string]any{}
	out := map[string]any{}
	for k, v := range raw {
		switch {
		case k == "version":
		case k == legacySettingsTable:
			if tbl, ok := v.(map[string]any); ok {
				for lk, lv := range tbl {
					flat[lk] = lv
				}
			}
		default:
			if _, isTable := v.(map[string]any); isTable {
				out[k] = v
			} else {
				flat[k] = v
			}
		}
	}

	for k, v := range flat {
		dest, ok := legacyKeys[k]
		if !ok {
			slog.Warn("dropping unknown legacy config key", "key", k)
			continue
		}
		if s, isStr := v.(string); isStr {
			if renamed, known := legacyValues[s]; known {
				v = renamed
			}
		}
		section, _ := out[dest[0]].(map[string]any)
		if section == nil {
			section = map[string]any{}
			out[dest[0]] = section
		}
		section[dest[1]] = v
	}
	out["version"] = 2

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(out); err != nil {
		return nil, fmt.Errorf("encode v2 config: %w", err)
	}
	return buf.Bytes(), nil
}
