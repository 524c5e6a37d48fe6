package update

import (
	"context"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"
)

// repository is "owner/name", set at build time via
//
//	-X tools.zach/dev/editorcord/internal/update.repository=owner/name
var repository string

var (
	resolveOnce sync.Once
	resolved    string
)

var githubRemote = regexp.MustCompile(`github\.com[:/]([^/\s]+)/([^/\s]+?)(?:\.git)?\s*$`)

// repoFromRemote extracts "owner/name" from a GitHub remote URL in HTTPS or
// SSH form.
func repoFromRemote(url string) string {
	m := githubRemote.FindStringSubmatch(strings.TrimSpace(url))
	if m == nil {
		return ""
	}
	return m[1] + "/" + m[2]
}

func resolveRepository() string {
	resolveOnce.Do(func() {
		if repository != "" {
			resolved = repository
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		out, err := exec.CommandContext(ctx, "git", "remote", "get-url", "origin").Output()
		if err != nil {
			return
		}
		resolved = repoFromRemote(string(out))
	})
	return resolved
}

// ManifestURL returns the raw GitHub URL of path on the main branch, or "" if
// the repository could not be determined.
func ManifestURL(path string) string {
	repo := resolveRepository()
	if repo == "" {
		return ""
	}
	return "https://raw.githubusercontent.com/" + repo + "/main/" + path
}
