package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilgrims/utilup/internal/update"
	"github.com/pilgrims/utilup/internal/upgrade"
)

func TestInfoReportText(t *testing.T) {
	disableColor(t)
	report := infoReport{
		{
			Name:            "ffmpeg",
			CurrentVersion:  "6.1",
			LatestVersion:   "7.1",
			ExecutablePath:  "/usr/local/bin/ffmpeg",
			UpdateStatus:    update.UpdateAvailable,
			StatusMessage:   "Update available: 6.1 → 7.1",
			SuggestedAction: "Run 'utilup upgrade ffmpeg'",
			DownloadSize:    80_000_000,
		},
		{
			Name:            "yt-dlp",
			LatestVersion:   "2024.10.22",
			UpdateStatus:    update.ComparisonFailed,
			StatusMessage:   "Unable to compare versions",
			SuggestedAction: "Check configuration",
			ErrorMessage:    "check: could not determine installed yt-dlp version",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, report.RenderText(&buf))
	out := buf.String()

	lines := strings.Split(out, "\n")
	assert.True(t, strings.HasPrefix(lines[0], "TOOL"))
	assert.Contains(t, lines[1], "80 MB")
	assert.Contains(t, lines[2], "-")
	assert.Contains(t, out, "ffmpeg: Update available: 6.1 → 7.1 (Run 'utilup upgrade ffmpeg')")
	assert.Contains(t, out, "  check: could not determine installed yt-dlp version")
}

func TestCheckReportText(t *testing.T) {
	disableColor(t)
	report := checkReport{
		{Name: "ffmpeg", UpdateAvailable: true, Status: update.UpdateAvailable, CurrentVersion: "6.1", LatestVersion: "7.1"},
		{Name: "yt-dlp", Status: update.UpToDate, CurrentVersion: "2024.10.22", LatestVersion: "2024.10.22"},
		{Name: "other", Status: update.ComparisonFailed, ErrorMessage: "offline"},
	}

	var buf bytes.Buffer
	require.NoError(t, report.RenderText(&buf))
	assert.Equal(t,
		"ffmpeg: update available (6.1 → 7.1)\n"+
			"yt-dlp: up to date (2024.10.22)\n"+
			"other: unable to check: offline\n",
		buf.String())
}

func TestUpgradeReportText(t *testing.T) {
	disableColor(t)
	tests := []struct {
		name string
		res  upgrade.UpgradeResult
		want string
	}{
		{
			name: "success",
			res:  upgrade.UpgradeResult{Success: true, State: upgrade.PhaseCompleted, Message: "FFmpeg upgraded successfully from 6.1 to 7.1"},
			want: "✓ FFmpeg upgraded successfully from 6.1 to 7.1\n",
		},
		{
			name: "success with backup",
			res:  upgrade.UpgradeResult{Success: true, State: upgrade.PhaseCompleted, Message: "yt-dlp upgraded", BackupID: "2024-10-22-101500.000000"},
			want: "✓ yt-dlp upgraded\n  previous executables saved as backup 2024-10-22-101500.000000\n",
		},
		{
			name: "failed",
			res:  upgrade.UpgradeResult{State: upgrade.PhaseFailed, Message: "Download validation failed", ErrorMessage: "checksum mismatch"},
			want: "✗ Download validation failed: checksum mismatch\n",
		},
		{
			name: "cancelled",
			res:  upgrade.UpgradeResult{State: upgrade.PhaseCancelled, Message: "FFmpeg upgrade cancelled", ErrorMessage: "operation cancelled"},
			want: "! FFmpeg upgrade cancelled (operation cancelled)\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, upgradeReport(tt.res).RenderText(&buf))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}
