// Package source reports the installed and latest published version of a
// managed tool.
package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/pilgrims/utilup/internal/update"
)

// VersionSource obtains the current and latest version strings for one tool.
// An empty string means "not available"; failures are logged, never returned.
type VersionSource interface {
	CurrentVersion(ctx context.Context, executablePath string) string
	LatestVersion(ctx context.Context) string
}

// DefaultUserAgent is sent with release metadata requests. GitHub rejects
// requests without one.
const DefaultUserAgent = "utilup"

// maxReleaseBody bounds how much of a release metadata response is read.
const maxReleaseBody = 4 << 20

var (
	genericVersion = regexp.MustCompile(`\b(\d+\.\d+(?:\.\d+)?(?:\.\d+)?(?:-\w+)?)\b`)
	tagNameField   = regexp.MustCompile(`"tag_name"\s*:\s*"([^"]+)"`)
)

// Options configures a VersionSource.
type Options struct {
	// ReleaseURL overrides the tool's release metadata endpoint.
	ReleaseURL string
	UserAgent  string
	Client     *http.Client
	Logger     *slog.Logger
}

func (o Options) withDefaults(releaseURL string) Options {
	if o.ReleaseURL == "" {
		o.ReleaseURL = releaseURL
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.Client == nil {
		o.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// queryVersion runs the executable with versionFlag and extracts a version
// from its standard output. The path is checked before anything is spawned.
func queryVersion(ctx context.Context, logger *slog.Logger, path, versionFlag string, pattern *regexp.Regexp) string {
	if strings.TrimSpace(path) == "" {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		logger.Debug("executable not found", "path", path, "error", err)
		return ""
	}

	out, err := exec.CommandContext(ctx, path, versionFlag).Output()
	if err != nil {
		logger.Warn("version query failed", "path", path, "flag", versionFlag, "error", err)
		return ""
	}

	v := extractVersion(string(out), pattern)
	if v == "" {
		logger.Warn("no version in command output", "path", path)
	}
	return v
}

// extractVersion applies the tool-specific pattern first and falls back to a
// generic dotted-numeric match.
func extractVersion(output string, pattern *regexp.Regexp) string {
	if pattern != nil {
		if m := pattern.FindStringSubmatch(output); len(m) > 1 {
			return update.NormalizeVersion(m[1])
		}
	}
	if m := genericVersion.FindStringSubmatch(output); len(m) > 1 {
		return update.NormalizeVersion(m[1])
	}
	return ""
}

// fetchLatestTag issues one GET against a GitHub-style release endpoint and
// returns the tag_name field, or "" on any failure.
func fetchLatestTag(ctx context.Context, opts Options) string {
	tag, err := latestTag(ctx, opts)
	if err != nil {
		opts.Logger.Warn("failed to fetch latest release", "url", opts.ReleaseURL, "error", err)
		return ""
	}
	return tag
}

func latestTag(ctx context.Context, opts Options) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.ReleaseURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", opts.UserAgent)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := opts.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("release endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReleaseBody))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	m := tagNameField.FindSubmatch(body)
	if len(m) < 2 {
		return "", fmt.Errorf("tag_name not found in response")
	}
	return string(m[1]), nil
}
