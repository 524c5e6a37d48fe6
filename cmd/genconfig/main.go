// Package main renders config.default.toml from config.ExampleConfig and the
// field docs in config.ConfigDocs. It runs through the go:generate directive in
// internal/config/config.go.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"tools.zach/dev/editorcord/internal/atomicfile"
	"tools.zach/dev/editorcord/internal/config"
)

func main() {
	// go generate runs in internal/config; the root package embeds the file.
	outPath := flag.String("o", "../../config.default.toml", "Output path")
	check := flag.Bool("check", false, "Exit 1 if the output file is stale instead of writing it")
	flag.Parse()

	rendered, err := render(config.ExampleConfig(), config.ConfigDocs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "render: %v\n", err)
		os.Exit(1)
	}

	if *check {
		current, err := os.ReadFile(*outPath)
		if err != nil || !bytes.Equal(current, []byte(rendered)) {
			fmt.Fprintf(os.Stderr, "%s is stale; run go generate ./internal/config\n", *outPath)
			os.Exit(1)
		}
		return
	}

	if err := atomicfile.Write(*outPath, []byte(rendered), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write %s: %v\n", *outPath, err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s\n", *outPath)
}

// ///////////////////////////////////////////////
// Rendering
// ///////////////////////////////////////////////

// render encodes cfg and annotates every key with its docs.
func render(cfg *config.Config, docs map[string]config.FieldDoc) (string, error) {
	var raw bytes.Buffer
	if err := toml.NewEncoder(&raw).Encode(cfg); err != nil {
		return "", fmt.Errorf("encoding config: %w", err)
	}

	a := &annotator{docs: docs, emitted: map[string]bool{}}
	a.out = append(a.out,
		"# ///////////////////////////////////////////////",
		"# editorcord Configuration",
		"# Generated by cmd/genconfig. Edit internal/config/config_docs.go, not this file.",
		"# ///////////////////////////////////////////////",
		"",
	)
	for line := range strings.Lines(raw.String()) {
		a.line(strings.TrimSpace(line))
	}
	a.flushOmitted()

	return strings.TrimRight(strings.Join(a.out, "\n"), "\n") + "\n", nil
}

// annotator walks encoder output line by line, tracking the current section.
type annotator struct {
	docs    map[string]config.FieldDoc
	out     []string
	section string
	emitted map[string]bool
}

func (a *annotator) comment(text string) {
	if text == "" {
		return
	}
	for cl := range strings.SplitSeq(text, "\n") {
		a.out = append(a.out, "# "+cl)
	}
}

func (a *annotator) alternatives(doc config.FieldDoc) {
	for _, alt := range doc.Alternatives {
		a.out = append(a.out, "# "+alt)
	}
}

func (a *annotator) line(trimmed string) {
	switch {
	case trimmed == "":
		// Spacing is ours, not the encoder's.
	case strings.HasPrefix(trimmed, "[") && !strings.HasPrefix(trimmed, "[["):
		a.flushOmitted()
		a.section = strings.Trim(trimmed, "[] ")
		a.out = append(a.out, "", "# ///// "+sectionTitle(a.section)+" /////", "")
		a.comment(a.docs[a.section].Comment)
		a.out = append(a.out, trimmed)
	case strings.HasPrefix(trimmed, "#") || !strings.Contains(trimmed, "="):
		a.out = append(a.out, trimmed)
	default:
		key, _, _ := strings.Cut(trimmed, "=")
		path := keyPath(a.section, strings.TrimSpace(key))
		a.emitted[path] = true
		doc, ok := a.docs[path]
		if ok {
			a.comment(doc.Comment)
		}
		a.out = append(a.out, trimmed)
		if ok {
			a.alternatives(doc)
		}
	}
}

// flushOmitted documents keys of the current section that the encoder left
// out (omitempty zero values), in sorted order.
func (a *annotator) flushOmitted() {
	if a.section == "" {
		return
	}
	prefix := a.section + "."
	var omitted []string
	for path := range a.docs {
		rest, ok := strings.CutPrefix(path, prefix)
		if !ok || strings.Contains(rest, ".") || a.emitted[path] {
			continue
		}
		omitted = append(omitted, path)
	}
	slices.Sort(omitted)

	for _, path := range omitted {
		doc := a.docs[path]
		a.out = append(a.out, "")
		a.comment(doc.Comment)
		a.alternatives(doc)
		a.emitted[path] = true
	}
}

func keyPath(section, key string) string {
	if section == "" {
		return key
	}
	return section + "." + key
}

// sectionTitle capitalizes the last segment of a dotted section name.
func sectionTitle(section string) string {
	last := section[strings.LastIndex(section, ".")+1:]
	if last == "" {
		return ""
	}
	return strings.ToUpper(last[:1]) + last[1:]
}
