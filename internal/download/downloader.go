// Package download streams release assets to disk and verifies them.
package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// DefaultChunkSize is the read buffer used while streaming a body.
	DefaultChunkSize = 8 * 1024
	// DefaultSampleInterval is the minimum gap between progress reports.
	DefaultSampleInterval = time.Second
)

// Options configures a Downloader.
type Options struct {
	Client         *http.Client
	UserAgent      string
	ChunkSize      int
	SampleInterval time.Duration
	Logger         *slog.Logger
}

// Downloader fetches files over HTTP.
type Downloader struct {
	client         *http.Client
	userAgent      string
	chunkSize      int
	sampleInterval time.Duration
	logger         *slog.Logger
}

// New creates a Downloader. The client should not carry a short overall
// timeout because bodies can be large; cancel through the context instead.
func New(opts Options) *Downloader {
	d := &Downloader{
		client:         opts.Client,
		userAgent:      opts.UserAgent,
		chunkSize:      opts.ChunkSize,
		sampleInterval: opts.SampleInterval,
		logger:         opts.Logger,
	}
	if d.client == nil {
		d.client = &http.Client{}
	}
	if d.chunkSize <= 0 {
		d.chunkSize = DefaultChunkSize
	}
	if d.sampleInterval <= 0 {
		d.sampleInterval = DefaultSampleInterval
	}
	if d.logger == nil {
		d.logger = slog.New(slog.DiscardHandler)
	}
	return d
}

// Download streams url into dst, creating dst's parent directory if needed.
// Progress is reported once when the response arrives, at most once per
// sample interval while streaming, and once more at the end.
//
// If ctx is cancelled the partial file is removed and the returned error
// wraps ctx.Err().
func (d *Downloader) Download(ctx context.Context, url, dst string, progress ProgressFunc) error {
	if strings.TrimSpace(url) == "" || strings.TrimSpace(dst) == "" {
		return fmt.Errorf("download: url and destination are required")
	}
	if progress == nil {
		progress = func(Progress) {}
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	d.setHeaders(req)

	resp, err := d.client.Do(req)
	if err != nil {
		return d.fail(ctx, "", fmt.Errorf("request failed: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}

	written, err := d.stream(ctx, resp.Body, f, resp.ContentLength, progress)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close destination file: %w", cerr)
	}
	if err != nil {
		return d.fail(ctx, dst, err)
	}

	d.logger.Debug("download complete", "url", url, "path", dst, "bytes", written)
	return nil
}

// stream copies body into w in chunkSize reads, sampling throughput.
func (d *Downloader) stream(ctx context.Context, body io.Reader, w io.Writer, total int64, progress ProgressFunc) (int64, error) {
	if total <= 0 {
		total = -1
	}

	start := time.Now()
	lastSample := start
	var lastBytes, downloaded int64
	var rate float64

	progress(Progress{TotalBytes: total})

	buf := make([]byte, d.chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return downloaded, err
		}

		n, rerr := body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return downloaded, fmt.Errorf("failed to write file: %w", werr)
			}
			downloaded += int64(n)

			now := time.Now()
			if elapsed := now.Sub(lastSample); elapsed >= d.sampleInterval {
				rate = float64(downloaded-lastBytes) / elapsed.Seconds()
				lastSample, lastBytes = now, downloaded
				progress(Progress{TotalBytes: total, BytesDownloaded: downloaded, BytesPerSecond: rate})
			}
		}

		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return downloaded, fmt.Errorf("failed to read response: %w", rerr)
		}
	}

	if elapsed := time.Since(start).Seconds(); elapsed > 0 {
		rate = float64(downloaded) / elapsed
	}
	progress(Progress{TotalBytes: total, BytesDownloaded: downloaded, BytesPerSecond: rate})
	return downloaded, nil
}

// fail removes a partial file and normalizes cancellation errors so callers
// can test them with errors.Is(err, context.Canceled).
func (d *Downloader) fail(ctx context.Context, partial string, err error) error {
	if partial != "" {
		if rerr := os.Remove(partial); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			d.logger.Warn("failed to remove partial download", "path", partial, "error", rerr)
		}
	}
	if cerr := ctx.Err(); cerr != nil {
		return fmt.Errorf("download cancelled: %w", cerr)
	}
	return err
}

// FileSize issues a HEAD request and returns the announced Content-Length.
func (d *Downloader) FileSize(ctx context.Context, url string) (int64, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		d.logger.Debug("invalid size probe url", "url", url, "error", err)
		return 0, false
	}
	d.setHeaders(req)

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Debug("size probe failed", "url", url, "error", err)
		return 0, false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 || resp.ContentLength < 0 {
		return 0, false
	}
	return resp.ContentLength, true
}

// Validate reports whether path exists, is non-empty and, when expected is
// set, has that SHA-256 digest (hex, case-insensitive).
func (d *Downloader) Validate(path, expected string) bool {
	if err := Verify(path, expected); err != nil {
		d.logger.Warn("download validation failed", "path", path, "error", err)
		return false
	}
	return true
}

// Verify is Validate with the reason for failure.
func Verify(path, expected string) error {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Size() == 0 {
		return fmt.Errorf("%s: %w", path, ErrEmptyFile)
	}

	expected = strings.TrimSpace(expected)
	if expected == "" {
		return nil
	}

	actual, err := SHA256File(path)
	if err != nil {
		return err
	}
	if !strings.EqualFold(actual, expected) {
		return fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, expected, actual)
	}
	return nil
}

// SHA256File returns the hex-encoded SHA-256 digest of the file at path.
func SHA256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (d *Downloader) setHeaders(req *http.Request) {
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}
}
