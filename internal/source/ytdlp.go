package source

import (
	"context"
	"regexp"

	"github.com/pilgrims/utilup/internal/update"
)

// YtDlpReleaseURL is the release metadata endpoint for yt-dlp.
const YtDlpReleaseURL = "https://api.github.com/repos/yt-dlp/yt-dlp/releases/latest"

// YtDlpVersionFlag is the flag yt-dlp accepts for printing its version.
const YtDlpVersionFlag = "--version"

// yt-dlp uses date versions (2024.01.01, sometimes with a fourth build
// component). Plain "--version" prints the bare date.
var ytDlpOutput = regexp.MustCompile(`(?i)(?:yt-dlp\s+version\s+)?(\d{4}\.\d{2}\.\d{2}(?:\.\d+)?)`)

// YtDlpSource reports yt-dlp versions.
type YtDlpSource struct {
	opts Options
}

// NewYtDlpSource creates a VersionSource for yt-dlp.
func NewYtDlpSource(opts Options) *YtDlpSource {
	return &YtDlpSource{opts: opts.withDefaults(YtDlpReleaseURL)}
}

func (s *YtDlpSource) CurrentVersion(ctx context.Context, executablePath string) string {
	return queryVersion(ctx, s.opts.Logger, executablePath, YtDlpVersionFlag, ytDlpOutput)
}

func (s *YtDlpSource) LatestVersion(ctx context.Context) string {
	tag := fetchLatestTag(ctx, s.opts)
	if tag == "" {
		return ""
	}
	return update.NormalizeVersion(tag)
}
