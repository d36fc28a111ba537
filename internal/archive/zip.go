package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

func isZipDir(f *zip.File) bool {
	return f.Name == "" || strings.HasSuffix(f.Name, "/") || f.FileInfo().IsDir()
}

// openZip opens archivePath. With GODEBUG=zipinsecurepath=0 the standard
// library flags unsafe names itself; that is reported as ErrUnsafePath.
func openZip(archivePath string) (*zip.ReadCloser, error) {
	r, err := zip.OpenReader(archivePath)
	if errors.Is(err, zip.ErrInsecurePath) {
		_ = r.Close()
		return nil, fmt.Errorf("%s: %w", filepath.Base(archivePath), ErrUnsafePath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open zip: %w", err)
	}
	return r, nil
}

func extractZip(ctx context.Context, archivePath, destDir string, progress ProgressFunc) error {
	r, err := openZip(archivePath)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	var p Progress
	for _, f := range r.File {
		if !isZipDir(f) {
			p.TotalFiles++
			p.TotalBytes += int64(f.UncompressedSize64)
		}
	}

	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		if f.Name == "" {
			continue
		}

		target, err := safeJoin(destDir, f.Name)
		if err != nil {
			return err
		}

		if isZipDir(f) {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", f.Name, err)
			}
			continue
		}

		n, err := writeZipEntry(f, target)
		if err != nil {
			return err
		}

		p.ExtractedFiles++
		p.ExtractedBytes += n
		p.CurrentFile = f.Name
		progress(p)
	}

	p.IsComplete = true
	progress(p)
	return nil
}

func writeZipEntry(f *zip.File, target string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create directory for %s: %w", f.Name, err)
	}

	src, err := f.Open()
	if err != nil {
		return 0, fmt.Errorf("failed to open entry %s: %w", f.Name, err)
	}
	defer func() { _ = src.Close() }()

	return writeFile(target, src, filePerm(f.Mode()))
}

// writeFile creates or truncates target and copies r into it.
func writeFile(target string, r io.Reader, perm os.FileMode) (int64, error) {
	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", target, err)
	}
	n, err := io.Copy(dst, r)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("failed to write %s: %w", target, err)
	}
	return n, nil
}

func zipEntries(archivePath string) ([]entryInfo, error) {
	r, err := openZip(archivePath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	var entries []entryInfo
	for _, f := range r.File {
		if isZipDir(f) {
			continue
		}
		entries = append(entries, entryInfo{name: f.Name, size: int64(f.UncompressedSize64)})
	}
	return entries, nil
}
