package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilgrims/utilup/internal/interactive"
	"github.com/pilgrims/utilup/internal/output"
	"github.com/pilgrims/utilup/internal/update"
)

func TestBackupCommands(t *testing.T) {
	resetFlags(t)
	disableColor(t)
	svc, err := newServices(testConfig(t), io.Discard, update.Detect())
	require.NoError(t, err)
	defer svc.Close()

	var out bytes.Buffer
	require.NoError(t, runBackupList(output.NewWriter(&out, output.FormatText), svc.backups, "yt-dlp"))
	assert.True(t, strings.HasPrefix(out.String(), "No backups found in "), out.String())

	exe := filepath.Join(t.TempDir(), "yt-dlp")
	require.NoError(t, os.WriteFile(exe, []byte("old"), 0o755))
	b, err := svc.backups.Create("yt-dlp", "2024.01.01", []string{exe})
	require.NoError(t, err)
	require.NotNil(t, b)
	require.NoError(t, os.WriteFile(exe, []byte("new"), 0o755))

	out.Reset()
	require.NoError(t, runBackupList(output.NewWriter(&out, output.FormatText), svc.backups, "yt-dlp"))
	assert.Contains(t, out.String(), b.ID)
	assert.Contains(t, out.String(), "2024.01.01")

	out.Reset()
	require.NoError(t, runBackupList(output.NewWriter(&out, output.FormatJSON), svc.backups, "yt-dlp"))
	var listed backupList
	require.NoError(t, json.Unmarshal(out.Bytes(), &listed))
	require.Len(t, listed.Backups, 1)
	assert.Greater(t, listed.Backups[0].Size, int64(len("old")))

	t.Run("declined", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, runBackupRestore(&out, interactive.NewPrompterWithIO(strings.NewReader("n\n"), &out), svc.backups, "yt-dlp", "latest"))
		assert.Contains(t, out.String(), "Restore cancelled.")
		got, _ := os.ReadFile(exe)
		assert.Equal(t, "new", string(got))
	})

	t.Run("confirmed", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, runBackupRestore(&out, interactive.NewPrompterWithIO(strings.NewReader("yes\n"), &out), svc.backups, "yt-dlp", b.ID))
		assert.Contains(t, out.String(), "Restoring yt-dlp 2024.01.01 from backup "+b.ID)
		assert.Contains(t, out.String(), "Restored successfully")
		got, _ := os.ReadFile(exe)
		assert.Equal(t, "old", string(got))
	})

	t.Run("unknown id", func(t *testing.T) {
		err := runBackupRestore(io.Discard, nil, svc.backups, "yt-dlp", "nope")
		assert.Error(t, err)
	})

	out.Reset()
	require.NoError(t, runBackupPrune(output.NewWriter(&out, output.FormatText), svc.backups, "yt-dlp", 1))
	assert.Equal(t, "No backups to prune. Keeping 1 backups.\n", out.String())

	out.Reset()
	require.NoError(t, runBackupPrune(output.NewWriter(&out, output.FormatText), svc.backups, "yt-dlp", 0))
	assert.True(t, strings.HasPrefix(out.String(), "Pruned 1 backup(s), keeping 0:"), out.String())
}

func TestBackupKeepZeroDisablesSnapshots(t *testing.T) {
	resetFlags(t)
	disableColor(t)

	installDir := t.TempDir()
	exe := filepath.Join(installDir, "yt-dlp")
	writeScript(t, exe, "echo 2024.01.01")
	srv := releaseServer(t, "2024.10.22", "yt-dlp_bin", []byte("#!/bin/sh\necho 2024.10.22\n"))

	p := update.Detect()
	cfg := testConfig(t)
	cfg.BackupKeep = 0
	cfg.Tools["yt-dlp"] = toolOverride(srv.URL, p, exe)

	svc, err := newServices(cfg, io.Discard, p)
	require.NoError(t, err)
	defer svc.Close()

	var out bytes.Buffer
	require.NoError(t, runUpgrade(t.Context(), svc, output.NewWriter(&out, output.FormatText), io.Discard, "yt-dlp", false))
	assert.Equal(t, "✓ yt-dlp upgraded successfully from 2024.01.01 to 2024.10.22\n", out.String())

	backups, err := svc.backups.List("yt-dlp")
	require.NoError(t, err)
	assert.Empty(t, backups)
}
