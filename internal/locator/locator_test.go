package locator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilgrims/utilup/internal/update"
)

var linux = update.Platform{OS: "linux", Arch: "amd64"}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fakes require a POSIX shell")
	}
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestSetPathPersists(t *testing.T) {
	dataDir := t.TempDir()

	l := New(Options{DataDir: dataDir, Platform: linux})
	require.NoError(t, l.SetPath("ffmpeg", "/opt/ffmpeg/bin/ffmpeg"))
	assert.Equal(t, "/opt/ffmpeg/bin/ffmpeg", l.GetPath("ffmpeg"))

	reopened := New(Options{DataDir: dataDir, Platform: linux})
	assert.Equal(t, "/opt/ffmpeg/bin/ffmpeg", reopened.GetPath("ffmpeg"))
	assert.Empty(t, reopened.GetPath("yt-dlp"))

	_, err := os.Stat(filepath.Join(dataDir, StoreFileName))
	assert.NoError(t, err)
}

func TestCorruptStoreIsEmpty(t *testing.T) {
	dataDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, StoreFileName), []byte("{not json"), 0o644))

	l := New(Options{DataDir: dataDir, Platform: linux})
	assert.Empty(t, l.GetPath("ffmpeg"))
	assert.Empty(t, l.Paths())

	require.NoError(t, l.SetPath("ffmpeg", "/usr/bin/ffmpeg"))
	assert.Equal(t, map[string]string{"ffmpeg": "/usr/bin/ffmpeg"}, New(Options{DataDir: dataDir}).Paths())
}

func TestClearCacheRereadsStore(t *testing.T) {
	dataDir := t.TempDir()
	l := New(Options{DataDir: dataDir, Platform: linux})
	require.NoError(t, l.SetPath("yt-dlp", "/a/yt-dlp"))

	other := New(Options{DataDir: dataDir, Platform: linux})
	require.NoError(t, other.SetPath("yt-dlp", "/b/yt-dlp"))

	assert.Equal(t, "/a/yt-dlp", l.GetPath("yt-dlp"))
	l.ClearCache()
	assert.Equal(t, "/b/yt-dlp", l.GetPath("yt-dlp"))
}

func TestOverridesWin(t *testing.T) {
	l := New(Options{
		DataDir:   t.TempDir(),
		Platform:  linux,
		Overrides: map[string]string{"ffmpeg": "/pinned/ffmpeg"},
	})
	require.NoError(t, l.SetPath("ffmpeg", "/stored/ffmpeg"))
	assert.Equal(t, "/pinned/ffmpeg", l.GetPath("ffmpeg"))
}

func TestResolvePathOrder(t *testing.T) {
	dataDir := t.TempDir()
	binDir := t.TempDir()
	onPath := writeScript(t, binDir, "yt-dlp", "exit 0")
	t.Setenv("PATH", binDir)

	l := New(Options{DataDir: dataDir, Platform: linux})

	// nothing configured: PATH wins over the default
	assert.Equal(t, onPath, l.ResolvePath("yt-dlp"))

	// configured and present
	configured := writeScript(t, filepath.Join(dataDir, "custom"), "yt-dlp", "exit 0")
	require.NoError(t, l.SetPath("yt-dlp", configured))
	assert.Equal(t, configured, l.ResolvePath("yt-dlp"))

	// configured but missing falls through to PATH
	require.NoError(t, l.SetPath("yt-dlp", filepath.Join(dataDir, "gone", "yt-dlp")))
	assert.Equal(t, onPath, l.ResolvePath("yt-dlp"))

	// nowhere: the default location
	assert.Equal(t, filepath.Join(dataDir, "tools", "ffmpeg", "ffmpeg"), l.ResolvePath("ffmpeg"))
}

func TestExecutableName(t *testing.T) {
	tests := []struct {
		platform update.Platform
		name     string
		want     string
	}{
		{linux, "ffmpeg", "ffmpeg"},
		{update.Platform{OS: "darwin", Arch: "arm64"}, "yt-dlp", "yt-dlp"},
		{update.Platform{OS: "windows", Arch: "amd64"}, "ffmpeg", "ffmpeg.exe"},
		{update.Platform{OS: "windows", Arch: "amd64"}, "yt-dlp.exe", "yt-dlp.exe"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.platform.OS, tt.name), func(t *testing.T) {
			l := New(Options{DataDir: t.TempDir(), Platform: tt.platform})
			assert.Equal(t, tt.want, l.ExecutableName(tt.name))
		})
	}
}

func TestValidatePath(t *testing.T) {
	dir := t.TempDir()
	ok := writeScript(t, dir, "ffmpeg", `[ "$1" = "-version" ] || exit 2; echo "ffmpeg version 6.1"`)
	failing := writeScript(t, dir, "broken", "exit 1")
	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(empty, nil, 0o755))

	l := New(Options{
		DataDir:      t.TempDir(),
		Platform:     linux,
		VersionFlags: map[string]string{"ffmpeg": "-version"},
	})
	ctx := context.Background()

	assert.True(t, l.ValidatePath(ctx, "ffmpeg", ok))
	assert.False(t, l.ValidatePath(ctx, "yt-dlp", ok), "default flag is rejected by the fake")
	assert.False(t, l.ValidatePath(ctx, "ffmpeg", failing))
	assert.False(t, l.ValidatePath(ctx, "ffmpeg", empty))
	assert.False(t, l.ValidatePath(ctx, "ffmpeg", filepath.Join(dir, "missing")))
	assert.False(t, l.ValidatePath(ctx, "ffmpeg", dir))
}

func TestValidatePath_WindowsExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte("MZ"), 0o644))

	l := New(Options{DataDir: t.TempDir(), Platform: update.Platform{OS: "windows", Arch: "amd64"}})
	assert.False(t, l.ValidatePath(context.Background(), "ffmpeg", path))
}

func TestTempDir(t *testing.T) {
	tmp := filepath.Join(t.TempDir(), "scratch")
	l := New(Options{DataDir: t.TempDir(), TempDir: tmp})

	assert.Equal(t, tmp, l.TempDir())
	info, err := os.Stat(tmp)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestConcurrentSetPath(t *testing.T) {
	dataDir := t.TempDir()
	l := New(Options{DataDir: dataDir, Platform: linux})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = l.SetPath(fmt.Sprintf("tool-%d", i), fmt.Sprintf("/bin/tool-%d", i))
			_ = l.ResolvePath(fmt.Sprintf("tool-%d", i))
		}(i)
	}
	wg.Wait()

	paths := New(Options{DataDir: dataDir}).Paths()
	assert.Len(t, paths, 20)
}
