// Package editor implements [host.Host] on top of files in the data
// directory. An editor integration rewrites editor.json whenever focus or
// workspace folders change; the daemon watches it and config.toml and turns
// rewrites into host events.
package editor

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"tools.zach/dev/editorcord/internal/atomicfile"
	"tools.zach/dev/editorcord/internal/host"
)

// StateVersion is the editor.json schema version this build writes.
const StateVersion = 1

// Folder is one workspace folder.
type Folder struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// State is the editor.json schema.
type State struct {
	// Version is the schema version. See [StateVersion].
	Version int `json:"$version"`
	// ActiveFile is the absolute path of the focused document, or empty.
	ActiveFile string `json:"activeFile,omitempty"`
	// WorkspaceFolders lists the open folders; the first one is shown.
	WorkspaceFolders []Folder `json:"workspaceFolders"`
	// EditorVersion is the host editor's version string.
	EditorVersion string `json:"editorVersion"`
}

// ReadState reads and parses the state file at path.
func ReadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading editor state: %w", err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing editor state: %w", err)
	}
	if s.Version == 0 {
		s.Version = 1
	}
	if s.Version > StateVersion {
		slog.Warn("newer editor state version, reading known fields", "version", s.Version, "current", StateVersion)
	}
	return &s, nil
}

// WriteState atomically writes s to path, stamping the current version.
func WriteState(path string, s *State) error {
	out := *s
	out.Version = StateVersion
	if out.WorkspaceFolders == nil {
		out.WorkspaceFolders = []Folder{}
	}
	return atomicfile.WriteFunc(path, 0o644, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(&out)
	})
}

// Context derives the editor snapshot from the state.
func (s *State) Context() host.EditorContext {
	ctx := host.EditorContext{EditorVersion: s.EditorVersion}
	if s.ActiveFile != "" {
		ctx.ActiveFilePath = s.ActiveFile
		ctx.ActiveFileName = baseName(s.ActiveFile)
		// A leading dot alone (".gitignore") is not an extension.
		if ext := filepath.Ext(ctx.ActiveFileName); ext != ctx.ActiveFileName {
			ctx.ActiveFileExtension = strings.TrimPrefix(ext, ".")
		}
	}
	if len(s.WorkspaceFolders) > 0 {
		f := s.WorkspaceFolders[0]
		ctx.WorkspaceFolderPath = f.Path
		ctx.WorkspaceFolderName = f.Name
		if ctx.WorkspaceFolderName == "" && f.Path != "" {
			ctx.WorkspaceFolderName = baseName(f.Path)
		}
	}
	return ctx
}

// baseName handles both separators so Windows paths reported to a Unix
// daemon (WSL) still yield a file name.
func baseName(p string) string {
	p = strings.TrimRight(p, `/\`)
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		return p[i+1:]
	}
	return p
}
