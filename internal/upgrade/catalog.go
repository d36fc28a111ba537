package upgrade

import (
	"github.com/pilgrims/utilup/internal/source"
	"github.com/pilgrims/utilup/internal/update"
)

// Distribution is how a tool's releases are packaged.
type Distribution int

const (
	// SingleExecutable releases are the program file itself.
	SingleExecutable Distribution = iota
	// Archive releases must be unpacked; the executable sits somewhere inside.
	Archive
)

func (d Distribution) String() string {
	if d == Archive {
		return "archive"
	}
	return "single-executable"
}

// Tool describes a managed tool and where its releases come from. Download
// and checksum tables are keyed by "os/arch" or plain "os".
type Tool struct {
	Name         string
	DisplayName  string
	Distribution Distribution
	VersionFlag  string
	ReleaseURL   string
	DownloadURLs map[string]string
	ChecksumURLs map[string]string
	// Companions are extra executables installed alongside Name when an
	// archive contains them.
	Companions []string
	// ArchiveExt names the archive type when the download URL has no
	// recognizable extension.
	ArchiveExt string
	// NewSource builds the tool's version source.
	NewSource func(opts source.Options) source.VersionSource
}

// DownloadURL picks the release asset for p.
func (t Tool) DownloadURL(p update.Platform) (string, bool) {
	return p.Select(t.DownloadURLs)
}

// ChecksumURL returns the manifest for p's asset, or "".
func (t Tool) ChecksumURL(p update.Platform) string {
	u, _ := p.Select(t.ChecksumURLs)
	return u
}

// Label is the name used in user-facing messages.
func (t Tool) Label() string {
	if t.DisplayName != "" {
		return t.DisplayName
	}
	return t.Name
}

const (
	btbnBase  = "https://github.com/BtbN/FFmpeg-Builds/releases/download/latest"
	ytDlpBase = "https://github.com/yt-dlp/yt-dlp/releases/latest/download"
)

// FFmpeg is distributed as an archive holding ffmpeg, ffprobe and ffplay.
func FFmpeg() Tool {
	return Tool{
		Name:         "ffmpeg",
		DisplayName:  "FFmpeg",
		Distribution: Archive,
		VersionFlag:  source.FFmpegVersionFlag,
		ReleaseURL:   source.FFmpegReleaseURL,
		DownloadURLs: map[string]string{
			"windows":       btbnBase + "/ffmpeg-master-latest-win64-gpl.zip",
			"windows/arm64": btbnBase + "/ffmpeg-master-latest-winarm64-gpl.zip",
			"linux":         btbnBase + "/ffmpeg-master-latest-linux64-gpl.tar.xz",
			"linux/arm64":   btbnBase + "/ffmpeg-master-latest-linuxarm64-gpl.tar.xz",
			"darwin":        "https://evermeet.cx/ffmpeg/getrelease/zip",
		},
		ChecksumURLs: map[string]string{
			"windows": btbnBase + "/checksums.sha256",
			"linux":   btbnBase + "/checksums.sha256",
		},
		Companions: []string{"ffprobe", "ffplay"},
		ArchiveExt: ".zip",
		NewSource: func(opts source.Options) source.VersionSource {
			return source.NewFFmpegSource(opts)
		},
	}
}

// YtDlp ships as one self-contained executable per platform.
func YtDlp() Tool {
	return Tool{
		Name:         "yt-dlp",
		DisplayName:  "yt-dlp",
		Distribution: SingleExecutable,
		VersionFlag:  source.YtDlpVersionFlag,
		ReleaseURL:   source.YtDlpReleaseURL,
		DownloadURLs: map[string]string{
			"windows":     ytDlpBase + "/yt-dlp.exe",
			"darwin":      ytDlpBase + "/yt-dlp_macos",
			"linux":       ytDlpBase + "/yt-dlp_linux",
			"linux/arm64": ytDlpBase + "/yt-dlp_linux_aarch64",
		},
		ChecksumURLs: map[string]string{
			"windows": ytDlpBase + "/SHA2-256SUMS",
			"darwin":  ytDlpBase + "/SHA2-256SUMS",
			"linux":   ytDlpBase + "/SHA2-256SUMS",
		},
		NewSource: func(opts source.Options) source.VersionSource {
			return source.NewYtDlpSource(opts)
		},
	}
}

// Lookup returns the catalog entry for name.
func Lookup(name string) (Tool, bool) {
	for _, t := range DefaultTools() {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}

// DefaultTools is the built-in catalog.
func DefaultTools() []Tool {
	return []Tool{FFmpeg(), YtDlp()}
}
