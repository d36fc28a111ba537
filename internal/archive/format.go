package archive

import (
	"path/filepath"
	"strings"
)

// Format identifies an archive container.
type Format string

const (
	FormatZip   Format = "zip"
	FormatTarGz Format = "tar.gz"
	FormatTarBz Format = "tar.bz2"
	FormatTarXz Format = "tar.xz"
	Format7z    Format = "7z"
)

// formats maps a lower-case extension (compound for tarballs) to its format.
var formats = map[string]Format{
	".zip":     FormatZip,
	".tar.gz":  FormatTarGz,
	".tgz":     FormatTarGz,
	".tar.bz2": FormatTarBz,
	".tar.xz":  FormatTarXz,
	".7z":      Format7z,
}

// compressionExts are outer extensions that only count when wrapping a tar.
var compressionExts = map[string]bool{".gz": true, ".bz2": true, ".xz": true}

// extensionKey returns the dispatch key for path: ".tar.gz" for
// "x.tar.gz", ".gz" for a bare "x.gz".
func extensionKey(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if compressionExts[ext] {
		stem := strings.TrimSuffix(path, filepath.Ext(path))
		if strings.EqualFold(filepath.Ext(stem), ".tar") {
			return ".tar" + ext
		}
	}
	return ext
}

// DetectFormat returns the archive format of path by its extension.
func DetectFormat(path string) (Format, bool) {
	f, ok := formats[extensionKey(path)]
	return f, ok
}

// Supports reports whether path has a recognized archive extension. Formats
// that are recognized but cannot be extracted yet still count.
func Supports(path string) bool {
	_, ok := DetectFormat(path)
	return ok
}
