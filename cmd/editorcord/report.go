package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"tools.zach/dev/editorcord/internal/editor"
	"tools.zach/dev/editorcord/internal/paths"
)

// ///////////////////////////////////////////////
// Report Command
// ///////////////////////////////////////////////

// folderList collects repeated -folder flags. Each value is either PATH or
// NAME=PATH.
type folderList []editor.Folder

func (l *folderList) String() string {
	parts := make([]string, len(*l))
	for i, f := range *l {
		parts[i] = f.Name + "=" + f.Path
	}
	return strings.Join(parts, ",")
}

func (l *folderList) Set(v string) error {
	if v == "" {
		return fmt.Errorf("empty folder")
	}
	name, path, ok := strings.Cut(v, "=")
	if !ok {
		path = v
		name = filepath.Base(filepath.Clean(v))
	}
	if path == "" {
		return fmt.Errorf("folder %q has no path", v)
	}
	*l = append(*l, editor.Folder{Name: name, Path: path})
	return nil
}

// runReport writes editor.json from its arguments so editor integrations can
// publish focus changes by invoking the binary:
//
//	editorcord report -file /w/proj/main.go -folder proj=/w/proj -editor-version 1.90.0
func runReport(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dataDir := fs.String("data-dir", defaultDataDir(), "Data directory the daemon watches")
	file := fs.String("file", "", "Absolute path of the focused document (empty when none)")
	editorVersion := fs.String("editor-version", "", "Editor version string")
	var folders folderList
	fs.Var(&folders, "folder", "Workspace folder as PATH or NAME=PATH (repeatable; first is shown)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	dir := paths.DataDir{Root: *dataDir}
	if err := os.MkdirAll(dir.Root, 0o755); err != nil {
		fmt.Fprintf(stderr, "report: %v\n", err)
		return 1
	}
	state := &editor.State{
		ActiveFile:       *file,
		WorkspaceFolders: folders,
		EditorVersion:    *editorVersion,
	}
	if err := editor.WriteState(dir.Editor(), state); err != nil {
		fmt.Fprintf(stderr, "report: %v\n", err)
		return 1
	}
	return 0
}
