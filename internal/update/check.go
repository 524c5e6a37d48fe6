// Package update checks the release manifest for a newer editorcord build.
package update

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"tools.zach/dev/editorcord/internal/logger"
	"tools.zach/dev/editorcord/internal/paths"
)

// maxManifestSize bounds the manifest body read.
const maxManifestSize = 64 << 10

// ///////////////////////////////////////////////
// Checker
// ///////////////////////////////////////////////

// Result is the outcome of a version check.
type Result struct {
	Current string
	Latest  string
	// Newer is true when Latest is a strictly greater version than Current.
	Newer bool
}

// Checker fetches the release manifest over a retrying HTTP client.
type Checker struct {
	url    string
	client *retryablehttp.Client
}

// NewChecker returns a checker for the manifest at url. retries is the number
// of additional attempts made on transient failures.
func NewChecker(url string, retries int) *Checker {
	client := retryablehttp.NewClient()
	client.RetryMax = retries
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.HTTPClient.Timeout = 10 * time.Second
	client.Logger = nil
	return &Checker{url: url, client: client}
}

// Latest returns the version published under the manifest's "." key.
func (c *Checker) Latest(ctx context.Context) (string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return "", fmt.Errorf("building manifest request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching manifest: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching manifest: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestSize))
	if err != nil {
		return "", fmt.Errorf("reading manifest: %w", err)
	}
	var manifest map[string]string
	if err := json.Unmarshal(body, &manifest); err != nil {
		return "", fmt.Errorf("parsing manifest: %w", err)
	}
	return manifest["."], nil
}

// Check compares current against the latest published version.
func (c *Checker) Check(ctx context.Context, current string) (Result, error) {
	latest, err := c.Latest(ctx)
	if err != nil {
		return Result{Current: current}, err
	}
	return Result{
		Current: current,
		Latest:  latest,
		Newer:   latest != "" && compareVersions(current, latest) < 0,
	}, nil
}

// ///////////////////////////////////////////////
// Background Check
// ///////////////////////////////////////////////

// Run performs a single check against the project's manifest and logs when a
// newer release exists. Failures are logged at debug and otherwise ignored.
func Run(ctx context.Context, current string) {
	url := ManifestURL(paths.ReleaseManifest)
	log := logger.Component("update")
	if url == "" {
		log.Debug("skipping version check: repository unknown")
		return
	}
	res, err := NewChecker(url, 2).Check(ctx, current)
	if err != nil {
		log.Debug("version check failed", "error", err)
		return
	}
	if res.Newer {
		log.Info("new version available", "current", res.Current, "latest", res.Latest)
	}
}

// ///////////////////////////////////////////////
// Version Comparison
// ///////////////////////////////////////////////

type semver struct {
	major, minor, patch int
	pre                 bool
}

// parseVersion reads "v1.2.3", "1.2.3-rc.1" or "1.2.3+build". Build metadata
// is ignored.
func parseVersion(s string) (semver, bool) {
	s = strings.TrimPrefix(s, "v")
	if i := strings.IndexByte(s, '+'); i >= 0 {
		s = s[:i]
	}
	var v semver
	if i := strings.IndexByte(s, '-'); i >= 0 {
		v.pre = true
		s = s[:i]
	}
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return semver{}, false
	}
	nums := [3]*int{&v.major, &v.minor, &v.patch}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return semver{}, false
		}
		*nums[i] = n
	}
	return v, true
}

// compareVersions returns -1, 0 or 1. Unparseable versions compare equal so
// dev builds never report an update.
func compareVersions(a, b string) int {
	va, okA := parseVersion(a)
	vb, okB := parseVersion(b)
	if !okA || !okB {
		return 0
	}
	for _, d := range [...]int{va.major - vb.major, va.minor - vb.minor, va.patch - vb.patch} {
		switch {
		case d < 0:
			return -1
		case d > 0:
			return 1
		}
	}
	switch {
	case va.pre && !vb.pre:
		return -1
	case !va.pre && vb.pre:
		return 1
	}
	return 0
}
