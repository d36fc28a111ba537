package source

import (
	"context"
	"regexp"
	"strings"

	"github.com/pilgrims/utilup/internal/update"
)

// FFmpegReleaseURL is the release metadata endpoint for FFmpeg.
const FFmpegReleaseURL = "https://api.github.com/repos/FFmpeg/FFmpeg/releases/latest"

// FFmpegVersionFlag is the flag ffmpeg accepts for printing its version.
const FFmpegVersionFlag = "-version"

var ffmpegOutput = regexp.MustCompile(`(?i)ffmpeg\s+version\s+(\d+\.\d+(?:\.\d+)?(?:\.\d+)?(?:-\w+)?)`)

// FFmpegSource reads the version banner of an ffmpeg build. FFmpeg tags
// releases as "n6.1", so the leading "n" is dropped from the latest tag.
type FFmpegSource struct {
	opts Options
}

// NewFFmpegSource creates a VersionSource for FFmpeg.
func NewFFmpegSource(opts Options) *FFmpegSource {
	return &FFmpegSource{opts: opts.withDefaults(FFmpegReleaseURL)}
}

// CurrentVersion runs "ffmpeg -version" and parses the banner.
func (s *FFmpegSource) CurrentVersion(ctx context.Context, executablePath string) string {
	return queryVersion(ctx, s.opts.Logger, executablePath, FFmpegVersionFlag, ffmpegOutput)
}

// LatestVersion returns the newest published FFmpeg release.
func (s *FFmpegSource) LatestVersion(ctx context.Context) string {
	tag := fetchLatestTag(ctx, s.opts)
	if tag == "" {
		return ""
	}
	return update.NormalizeVersion(strings.TrimPrefix(tag, "n"))
}
