package archive

import (
	"archive/tar"
	"bufio"
	"compress/bzip2"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ulikunitz/xz"
)

// openTar opens archivePath and wraps it in the decompressor for format.
// The returned closer releases the underlying file.
func openTar(archivePath string, format Format) (*tar.Reader, io.Closer, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open archive: %w", err)
	}

	var r io.Reader = bufio.NewReader(f)
	switch format {
	case FormatTarGz:
		gz, err := gzip.NewReader(r)
		if err != nil {
			_ = f.Close()
			return nil, nil, fmt.Errorf("failed to read gzip stream: %w", err)
		}
		r = gz
	case FormatTarBz:
		r = bzip2.NewReader(r)
	case FormatTarXz:
		xr, err := xz.NewReader(r)
		if err != nil {
			_ = f.Close()
			return nil, nil, fmt.Errorf("failed to read xz stream: %w", err)
		}
		r = xr
	default:
		_ = f.Close()
		return nil, nil, fmt.Errorf("%s: %w", format, ErrUnsupportedFormat)
	}

	return tar.NewReader(r), f, nil
}

// headerError maps tar.ErrInsecurePath (raised under
// GODEBUG=tarinsecurepath=0) onto ErrUnsafePath.
func headerError(hdr *tar.Header, err error) error {
	if errors.Is(err, tar.ErrInsecurePath) && hdr != nil {
		return fmt.Errorf("%q: %w", hdr.Name, ErrUnsafePath)
	}
	return fmt.Errorf("failed to read tar header: %w", err)
}

// tarEntries lists regular files in a compressed tarball. Tarballs carry no
// index, so this is a full decompression pass.
func tarEntries(archivePath string, format Format) ([]entryInfo, error) {
	tr, closer, err := openTar(archivePath, format)
	if err != nil {
		return nil, err
	}
	defer func() { _ = closer.Close() }()

	var entries []entryInfo
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return nil, headerError(hdr, err)
		}
		if hdr.Typeflag == tar.TypeReg {
			entries = append(entries, entryInfo{name: hdr.Name, size: hdr.Size})
		}
	}
}

func extractTar(ctx context.Context, archivePath string, format Format, destDir string, progress ProgressFunc) error {
	entries, err := tarEntries(archivePath, format)
	if err != nil {
		return err
	}

	var p Progress
	for _, ent := range entries {
		p.TotalFiles++
		p.TotalBytes += ent.size
	}

	tr, closer, err := openTar(archivePath, format)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return headerError(hdr, err)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			target, err := safeJoin(destDir, hdr.Name)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", hdr.Name, err)
			}
		case tar.TypeReg:
			target, err := safeJoin(destDir, hdr.Name)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("failed to create directory for %s: %w", hdr.Name, err)
			}
			n, err := writeFile(target, tr, filePerm(hdr.FileInfo().Mode()))
			if err != nil {
				return err
			}
			p.ExtractedFiles++
			p.ExtractedBytes += n
			p.CurrentFile = hdr.Name
			progress(p)
		default:
			// links and device nodes are not needed to install a tool
			continue
		}
	}

	p.IsComplete = true
	progress(p)
	return nil
}
