package download

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

func TestDownload_ExactBytes(t *testing.T) {
	content := payload(100_000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "utilup-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Length", strconv.Itoa(len(content)))
		_, _ = w.Write(content)
	}))
	defer server.Close()

	dst := filepath.Join(t.TempDir(), "nested", "dir", "asset.bin")
	var reports []Progress

	d := New(Options{UserAgent: "utilup-test"})
	err := d.Download(context.Background(), server.URL, dst, func(p Progress) {
		reports = append(reports, p)
	})
	require.NoError(t, err)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(content, got), "downloaded content differs")

	require.NotEmpty(t, reports)
	last := reports[len(reports)-1]
	assert.Equal(t, int64(len(content)), last.TotalBytes)
	assert.Equal(t, last.TotalBytes, last.BytesDownloaded)

	for i := 1; i < len(reports); i++ {
		assert.GreaterOrEqual(t, reports[i].BytesDownloaded, reports[i-1].BytesDownloaded)
		assert.LessOrEqual(t, reports[i].BytesDownloaded, reports[i].TotalBytes)
	}
}

func TestDownload_SamplesAtInterval(t *testing.T) {
	content := payload(64 * 1024)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(content)
	}))
	defer server.Close()

	var count int
	d := New(Options{SampleInterval: time.Hour})
	err := d.Download(context.Background(), server.URL, filepath.Join(t.TempDir(), "a"), func(Progress) {
		count++
	})
	require.NoError(t, err)

	// start and final report only
	assert.Equal(t, 2, count)
}

func TestDownload_UnknownLength(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("part one "))
		w.(http.Flusher).Flush()
		_, _ = w.Write([]byte("part two"))
	}))
	defer server.Close()

	var last Progress
	dst := filepath.Join(t.TempDir(), "stream.txt")
	err := New(Options{}).Download(context.Background(), server.URL, dst, func(p Progress) { last = p })
	require.NoError(t, err)

	assert.Equal(t, int64(-1), last.TotalBytes)
	assert.Equal(t, int64(len("part one part two")), last.BytesDownloaded)
	_, ok := last.Percentage()
	assert.False(t, ok, "percentage must be indeterminate without a length")
}

func TestDownload_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	dst := filepath.Join(t.TempDir(), "asset.bin")
	err := New(Options{}).Download(context.Background(), server.URL, dst, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	_, statErr := os.Stat(dst)
	assert.True(t, os.IsNotExist(statErr), "file should not exist after failed download")
}

func TestDownload_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	err := New(Options{}).Download(context.Background(), url, filepath.Join(t.TempDir(), "a"), nil)
	assert.Error(t, err)
}

func TestDownload_CancelRemovesPartialFile(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1048576")
		_, _ = w.Write(payload(16 * 1024))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dst := filepath.Join(t.TempDir(), "partial.bin")
	d := New(Options{SampleInterval: time.Nanosecond})
	err := d.Download(ctx, server.URL, dst, func(p Progress) {
		if p.BytesDownloaded > 0 {
			cancel()
		}
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled), "expected context.Canceled, got %v", err)

	_, statErr := os.Stat(dst)
	assert.True(t, os.IsNotExist(statErr), "partial file must be removed on cancel")
}

func TestDownload_RequiresArguments(t *testing.T) {
	d := New(Options{})
	assert.Error(t, d.Download(context.Background(), "", filepath.Join(t.TempDir(), "a"), nil))
	assert.Error(t, d.Download(context.Background(), "http://example.invalid", " ", nil))
}

func TestFileSize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Length", "12345")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	d := New(Options{})

	size, ok := d.FileSize(context.Background(), server.URL+"/asset.zip")
	require.True(t, ok)
	assert.Equal(t, int64(12345), size)

	_, ok = d.FileSize(context.Background(), server.URL+"/missing")
	assert.False(t, ok)

	_, ok = d.FileSize(context.Background(), "://bad url")
	assert.False(t, ok)
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "asset.bin")
	content := []byte("binary content")
	require.NoError(t, os.WriteFile(file, content, 0o644))

	empty := filepath.Join(dir, "empty.bin")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))

	sum := sha256.Sum256(content)
	good := hex.EncodeToString(sum[:])

	tests := []struct {
		name     string
		path     string
		checksum string
		want     bool
	}{
		{"correct checksum", file, good, true},
		{"uppercase checksum", file, strings.ToUpper(good), true},
		{"no checksum", file, "", true},
		{"wrong checksum", file, strings.Repeat("0", 64), false},
		{"missing file", filepath.Join(dir, "nope"), good, false},
		{"missing file without checksum", filepath.Join(dir, "nope"), "", false},
		{"empty file", empty, "", false},
		{"directory", dir, "", false},
	}

	d := New(Options{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Validate(tt.path, tt.checksum))
		})
	}
}

func TestVerify_Errors(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "asset.bin")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	assert.ErrorIs(t, Verify(file, strings.Repeat("a", 64)), ErrChecksumMismatch)
	assert.ErrorIs(t, Verify(filepath.Join(dir, "nope"), ""), ErrEmptyFile)
}

func TestSHA256File(t *testing.T) {
	file := filepath.Join(t.TempDir(), "test.txt")
	require.NoError(t, os.WriteFile(file, []byte("hello world"), 0o644))

	got, err := SHA256File(file)
	require.NoError(t, err)
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", got)

	_, err = SHA256File("/path/that/does/not/exist")
	assert.Error(t, err)
}

func TestProgressPercentageAndETA(t *testing.T) {
	p := Progress{TotalBytes: 200, BytesDownloaded: 50, BytesPerSecond: 50}

	pct, ok := p.Percentage()
	require.True(t, ok)
	assert.InDelta(t, 25.0, pct, 0.001)

	eta, ok := p.ETA()
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, eta)

	_, ok = Progress{TotalBytes: -1, BytesDownloaded: 10, BytesPerSecond: 5}.ETA()
	assert.False(t, ok)
}
