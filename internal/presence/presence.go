// Package presence turns an editor snapshot and the display settings into
// the payload shown on the Discord presence card.
package presence

import (
	"strings"

	"tools.zach/dev/editorcord/internal/config"
	"tools.zach/dev/editorcord/internal/discord"
	"tools.zach/dev/editorcord/internal/host"
)

const (
	// NoFile is shown in place of a file name when no file is open.
	NoFile = "No File"
	// NoFolder is shown in place of a folder name when no folder is open.
	NoFolder = "No Folder"

	prefixFile          = "File "
	prefixFolder        = "Folder "
	prefixEditorVersion = "Editor Version "

	// EditorAssetKey is the image key of the editor logo uploaded to the
	// Discord application.
	EditorAssetKey = "vscode"
	// EditorLabel is the large image tooltip when no other text applies.
	EditorLabel = "Visual Studio Code"
)

// Payload is one presence card. Empty strings are absent fields.
type Payload struct {
	Details        string
	State          string
	StartTimestamp int64 // epoch ms
	LargeImageKey  string
	SmallImageKey  string
	LargeImageText string
	SmallImageText string
	Instance       bool
}

// Build resolves the card for cfg and ctx. It has no failure mode and reads
// nothing but its arguments; start is the timer's current epoch-ms value.
func Build(cfg *config.Config, ctx host.EditorContext, start int64) Payload {
	d := cfg.Display
	return Payload{
		Details:        line(d.TopLine, ctx),
		State:          line(d.BottomLine, ctx),
		StartTimestamp: start,
		LargeImageKey:  iconKey(d.LargeIcon, ctx),
		SmallImageKey:  iconKey(d.SmallIcon, ctx),
		LargeImageText: iconText(d.LargeIcon, ctx, EditorLabel),
		SmallImageText: iconText(d.SmallIcon, ctx, ""),
		Instance:       false,
	}
}

// line resolves a text line. Placeholders pass through without a prefix.
func line(opt config.LineOption, ctx host.EditorContext) string {
	switch opt {
	case config.LineFileName:
		if ctx.ActiveFileName == "" {
			return NoFile
		}
		return prefixFile + ctx.ActiveFileName
	case config.LineFolderName:
		if ctx.WorkspaceFolderName == "" {
			return NoFolder
		}
		return prefixFolder + ctx.WorkspaceFolderName
	case config.LineEditorVersion:
		if ctx.EditorVersion == "" {
			return ""
		}
		return prefixEditorVersion + ctx.EditorVersion
	default:
		return ""
	}
}

func extension(ctx host.EditorContext) string {
	if ctx.ActiveFileName == "" {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(ctx.ActiveFileExtension, "."))
}

func iconKey(opt config.IconOption, ctx host.EditorContext) string {
	switch opt {
	case config.IconEditorVersion:
		return EditorAssetKey
	case config.IconFileExtension:
		return extension(ctx)
	default:
		return ""
	}
}

// iconText resolves a tooltip, falling back to fallback when the icon has
// nothing specific to say.
func iconText(opt config.IconOption, ctx host.EditorContext, fallback string) string {
	switch opt {
	case config.IconFileExtension:
		if ext := extension(ctx); ext != "" {
			return "." + ext + " file"
		}
	case config.IconEditorVersion:
		if ctx.EditorVersion != "" {
			return "Editor " + ctx.EditorVersion
		}
	}
	return fallback
}

// ToActivity maps p onto the IPC wire type, dropping empty sections.
func ToActivity(p Payload) *discord.Activity {
	a := &discord.Activity{
		Details:  p.Details,
		State:    p.State,
		Instance: p.Instance,
	}
	if p.StartTimestamp > 0 {
		a.Timestamps = &discord.Timestamps{Start: p.StartTimestamp}
	}
	assets := discord.Assets{
		LargeImage: p.LargeImageKey,
		LargeText:  p.LargeImageText,
		SmallImage: p.SmallImageKey,
		SmallText:  p.SmallImageText,
	}
	if assets != (discord.Assets{}) {
		a.Assets = &assets
	}
	return a
}
