package upgrade

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pilgrims/utilup/internal/archive"
	"github.com/pilgrims/utilup/internal/download"
	"github.com/pilgrims/utilup/internal/update"
)

var testPlatform = update.Platform{OS: "linux", Arch: "amd64"}

type fakeSource struct {
	current string
	latest  string
	panics  bool
}

func (s *fakeSource) CurrentVersion(ctx context.Context, path string) string { return s.current }

func (s *fakeSource) LatestVersion(ctx context.Context) string {
	if s.panics {
		panic("release feed exploded")
	}
	return s.latest
}

type fakeLocator struct {
	mu         sync.Mutex
	paths      map[string]string
	resolved   string
	tempDir    string
	defaultDir string
	setErr     error
}

func newFakeLocator(t *testing.T, resolved string) *fakeLocator {
	return &fakeLocator{
		paths:      map[string]string{},
		resolved:   resolved,
		tempDir:    t.TempDir(),
		defaultDir: filepath.Join(t.TempDir(), "default"),
	}
}

func (l *fakeLocator) GetPath(name string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.paths[name]
}

func (l *fakeLocator) SetPath(name, path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.setErr != nil {
		return l.setErr
	}
	l.paths[name] = path
	return nil
}

func (l *fakeLocator) ResolvePath(name string) string   { return l.resolved }
func (l *fakeLocator) ExecutableName(name string) string { return name }
func (l *fakeLocator) DefaultDir(name string) string     { return filepath.Join(l.defaultDir, name) }
func (l *fakeLocator) TempDir() string                   { return l.tempDir }

type fakeDownloader struct {
	mu           sync.Mutex
	assets       map[string][]byte
	checksums    map[string]string
	checksumsErr error
	sizeOverride int64
	downloadErr  error
	block        chan struct{}
	started      chan struct{}
	downloads    int
	sizeProbes   int
}

func (d *fakeDownloader) Download(ctx context.Context, url, dst string, progress download.ProgressFunc) error {
	d.mu.Lock()
	d.downloads++
	d.mu.Unlock()

	if d.started != nil {
		close(d.started)
	}
	if d.block != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.block:
		}
	}
	if d.downloadErr != nil {
		return d.downloadErr
	}

	body, ok := d.assets[url]
	if !ok {
		return errors.New("unexpected status code: 404")
	}
	total := int64(len(body))
	progress(download.Progress{TotalBytes: total})
	progress(download.Progress{TotalBytes: total, BytesDownloaded: total / 2, BytesPerSecond: 1024})
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(dst, body, 0o644); err != nil {
		return err
	}
	progress(download.Progress{TotalBytes: total, BytesDownloaded: total, BytesPerSecond: 2048})
	return nil
}

func (d *fakeDownloader) FileSize(ctx context.Context, url string) (int64, bool) {
	d.mu.Lock()
	d.sizeProbes++
	d.mu.Unlock()
	if d.sizeOverride != 0 {
		return d.sizeOverride, true
	}
	body, ok := d.assets[url]
	return int64(len(body)), ok
}

func (d *fakeDownloader) Validate(path, expected string) bool {
	return download.Verify(path, expected) == nil
}

func (d *fakeDownloader) FetchChecksums(ctx context.Context, url string) (map[string]string, error) {
	if d.checksumsErr != nil {
		return nil, d.checksumsErr
	}
	return d.checksums, nil
}

// countingExtractor wraps the real extractor and counts calls.
type countingExtractor struct {
	inner *archive.Extractor
	calls int
}

func (e *countingExtractor) Extract(ctx context.Context, archivePath, destDir string, progress archive.ProgressFunc) error {
	e.calls++
	return e.inner.Extract(ctx, archivePath, destDir, progress)
}

func (e *countingExtractor) Supports(path string) bool { return e.inner.Supports(path) }

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		hdr := &zip.FileHeader{Name: name, Method: zip.Deflate}
		hdr.SetMode(0o755)
		w, err := zw.CreateHeader(hdr)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// recorder collects progress values.
type recorder struct {
	mu     sync.Mutex
	events []UpgradeProgress
}

func (r *recorder) record(p UpgradeProgress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, p)
}

func (r *recorder) phases() []Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Phase
	for _, e := range r.events {
		if len(out) == 0 || out[len(out)-1] != e.Phase {
			out = append(out, e.Phase)
		}
	}
	return out
}

func (r *recorder) assertMonotonic(t *testing.T) {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 1; i < len(r.events); i++ {
		require.GreaterOrEqual(t, r.events[i].Percentage, r.events[i-1].Percentage,
			"progress went backwards at event %d (%s)", i, r.events[i].CurrentOperation)
	}
}

func (r *recorder) last() UpgradeProgress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func dirEntries(t *testing.T, dir string) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return entries
}
