// Package main prints the editorcord build version for -X main.version.
//
//	on tag v0.1.0:         0.1.0
//	dirty tag:             0.1.0-dirty
//	3 commits past v0.1.0: 0.1.0-dev.3+g1234567[.dirty]
//	no tags:               0.0.0-dev+1234567[.dirty]
//
// The base version for untagged trees comes from the release manifest.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"tools.zach/dev/editorcord/internal/paths"
)

func main() {
	fmt.Print(buildVersion())
}

func git(args ...string) (string, bool) {
	out, err := exec.Command("git", args...).Output()
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(out)), true
}

func buildVersion() string {
	if desc, ok := git("describe", "--tags", "--match", "v*", "--dirty"); ok {
		return parseDescribe(desc).String()
	}

	base := baseVersion(paths.ReleaseManifest)
	hash, ok := git("rev-parse", "--short=7", "HEAD")
	if !ok {
		return base + "-dev"
	}
	status, _ := git("status", "--porcelain")
	d := describe{tag: base, hash: hash, dirty: status != "", untagged: true}
	return d.String()
}

// ///////////////////////////////////////////////
// git describe
// ///////////////////////////////////////////////

// describe is a parsed `git describe --dirty` result.
type describe struct {
	tag      string
	ahead    string
	hash     string
	dirty    bool
	untagged bool
}

var describeRe = regexp.MustCompile(`^v?(.+?)(?:-(\d+)-(g[0-9a-f]+))?(-dirty)?$`)

func parseDescribe(s string) describe {
	m := describeRe.FindStringSubmatch(s)
	if m == nil {
		return describe{tag: strings.TrimPrefix(s, "v")}
	}
	return describe{tag: m[1], ahead: m[2], hash: m[3], dirty: m[4] != ""}
}

func (d describe) String() string {
	var meta string
	switch {
	case d.untagged:
		meta = d.tag + "-dev+" + d.hash
	case d.ahead != "":
		meta = d.tag + "-dev." + d.ahead + "+" + d.hash
	case d.dirty:
		return d.tag + "-dirty"
	default:
		return d.tag
	}
	if d.dirty {
		meta += ".dirty"
	}
	return meta
}

// baseVersion reads the "." entry of the manifest at path, or "0.0.0".
func baseVersion(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return "0.0.0"
	}
	var manifest map[string]string
	if err := json.Unmarshal(data, &manifest); err != nil || manifest["."] == "" {
		return "0.0.0"
	}
	return manifest["."]
}
