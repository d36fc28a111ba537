package download

import (
	"errors"
	"time"
)

var (
	// ErrChecksumMismatch means the file digest differs from the published one.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrEmptyFile means the downloaded file is missing or has zero length.
	ErrEmptyFile = errors.New("file is missing or empty")
	// ErrInsufficientSpace means the target volume cannot hold the download.
	ErrInsufficientSpace = errors.New("insufficient disk space")
)

// Progress is a snapshot of a running transfer. TotalBytes is -1 when the
// server did not announce a length.
type Progress struct {
	TotalBytes      int64   `json:"total_bytes"`
	BytesDownloaded int64   `json:"bytes_downloaded"`
	BytesPerSecond  float64 `json:"bytes_per_second"`
}

// ProgressFunc receives transfer snapshots. It is called on the downloading
// goroutine and must not block.
type ProgressFunc func(Progress)

// Percentage returns the completed share in 0..100. ok is false while the
// total size is unknown.
func (p Progress) Percentage() (pct float64, ok bool) {
	if p.TotalBytes <= 0 {
		return 0, false
	}
	pct = float64(p.BytesDownloaded) * 100 / float64(p.TotalBytes)
	if pct > 100 {
		pct = 100
	}
	return pct, true
}

// ETA estimates the remaining transfer time at the current rate.
func (p Progress) ETA() (time.Duration, bool) {
	if p.TotalBytes <= 0 || p.BytesPerSecond <= 0 {
		return 0, false
	}
	remaining := p.TotalBytes - p.BytesDownloaded
	if remaining < 0 {
		remaining = 0
	}
	return time.Duration(float64(remaining) / p.BytesPerSecond * float64(time.Second)), true
}
