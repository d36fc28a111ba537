// Package archive unpacks downloaded release archives.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupportedFormat means the file extension is not a known archive.
	ErrUnsupportedFormat = errors.New("unsupported archive format")
	// ErrNotImplemented means the format is recognized but cannot be unpacked.
	ErrNotImplemented = errors.New("archive format not implemented")
	// ErrUnsafePath means an entry would be written outside the destination.
	ErrUnsafePath = errors.New("archive entry escapes destination")
)

// Progress describes an extraction in flight.
type Progress struct {
	TotalFiles     int    `json:"total_files"`
	ExtractedFiles int    `json:"extracted_files"`
	CurrentFile    string `json:"current_file"`
	TotalBytes     int64  `json:"total_bytes"`
	ExtractedBytes int64  `json:"extracted_bytes"`
	IsComplete     bool   `json:"is_complete"`
}

// Percentage returns the share of files extracted, 0..100.
func (p Progress) Percentage() float64 {
	if p.IsComplete {
		return 100
	}
	if p.TotalFiles <= 0 {
		return 0
	}
	return float64(p.ExtractedFiles) * 100 / float64(p.TotalFiles)
}

// ProgressFunc receives extraction snapshots.
type ProgressFunc func(Progress)

// Extractor unpacks archives chosen by file extension.
type Extractor struct {
	logger *slog.Logger
}

// New creates an Extractor. A nil logger discards output.
func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Extractor{logger: logger}
}

// Supports reports whether archivePath has a recognized extension.
func (e *Extractor) Supports(archivePath string) bool {
	return Supports(archivePath)
}

// Extract unpacks archivePath into destDir, overwriting existing files.
// Progress is reported after every file entry and once more with
// IsComplete set. Cancellation is observed between entries.
func (e *Extractor) Extract(ctx context.Context, archivePath, destDir string, progress ProgressFunc) error {
	if progress == nil {
		progress = func(Progress) {}
	}

	format, ok := DetectFormat(archivePath)
	if !ok {
		e.logger.Warn("unsupported archive", "path", archivePath)
		return fmt.Errorf("%s: %w", filepath.Base(archivePath), ErrUnsupportedFormat)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}

	var err error
	switch format {
	case FormatZip:
		err = extractZip(ctx, archivePath, destDir, progress)
	case FormatTarGz, FormatTarBz, FormatTarXz:
		err = extractTar(ctx, archivePath, format, destDir, progress)
	default:
		e.logger.Warn("archive format recognized but not implemented", "path", archivePath, "format", format)
		return fmt.Errorf("%s: %w", format, ErrNotImplemented)
	}

	if err != nil {
		e.logger.Error("extraction failed", "path", archivePath, "format", format, "error", err)
		return err
	}
	e.logger.Debug("extraction complete", "path", archivePath, "dest", destDir)
	return nil
}

// Progress estimates how much of archivePath is already present in destDir
// by checking which entry paths exist. It does not inspect file contents.
func (e *Extractor) Progress(archivePath, destDir string) (Progress, error) {
	format, ok := DetectFormat(archivePath)
	if !ok {
		return Progress{}, fmt.Errorf("%s: %w", filepath.Base(archivePath), ErrUnsupportedFormat)
	}

	var entries []entryInfo
	var err error
	switch format {
	case FormatZip:
		entries, err = zipEntries(archivePath)
	case FormatTarGz, FormatTarBz, FormatTarXz:
		entries, err = tarEntries(archivePath, format)
	default:
		return Progress{}, fmt.Errorf("%s: %w", format, ErrNotImplemented)
	}
	if err != nil {
		return Progress{}, err
	}

	var p Progress
	for _, ent := range entries {
		p.TotalFiles++
		p.TotalBytes += ent.size
		target, err := safeJoin(destDir, ent.name)
		if err != nil {
			continue
		}
		if _, err := os.Stat(target); err == nil {
			p.ExtractedFiles++
			p.ExtractedBytes += ent.size
		}
	}
	p.IsComplete = p.TotalFiles > 0 && p.ExtractedFiles == p.TotalFiles
	return p, nil
}

type entryInfo struct {
	name string
	size int64
}

// safeJoin resolves an entry name under destDir, rejecting absolute names
// and names that climb out of it.
func safeJoin(destDir, name string) (string, error) {
	name = strings.ReplaceAll(name, `\`, "/")
	if name == "" || strings.HasPrefix(name, "/") || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", fmt.Errorf("%q: %w", name, ErrUnsafePath)
	}
	target := filepath.Join(destDir, filepath.FromSlash(name))
	rel, err := filepath.Rel(destDir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%q: %w", name, ErrUnsafePath)
	}
	return target, nil
}

// filePerm keeps an entry's permission bits (so executables stay
// executable) while guaranteeing the owner can rewrite the file.
func filePerm(mode os.FileMode) os.FileMode {
	perm := mode.Perm()
	if perm == 0 {
		perm = 0o644
	}
	return perm | 0o600
}
