package update

import (
	"runtime"
)

// Platform describes the current system platform
type Platform struct {
	OS   string // Operating system (windows, darwin, linux)
	Arch string // Architecture (amd64, arm64)
}

// Detect returns the current platform (OS and architecture)
func Detect() Platform {
	return Platform{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
	}
}

// Key returns the "os/arch" lookup key, e.g. "linux/arm64".
func (p Platform) Key() string {
	return p.OS + "/" + p.Arch
}

// IsWindows reports whether executables need an .exe suffix.
func (p Platform) IsWindows() bool {
	return p.OS == "windows"
}

// Select picks the entry for this platform from a table keyed by "os/arch"
// or plain "os". The more specific key wins.
func (p Platform) Select(table map[string]string) (string, bool) {
	if v, ok := table[p.Key()]; ok && v != "" {
		return v, true
	}
	if v, ok := table[p.OS]; ok && v != "" {
		return v, true
	}
	return "", false
}

// IsSupported returns true if this platform has an entry in table.
func (p Platform) IsSupported(table map[string]string) bool {
	_, ok := p.Select(table)
	return ok
}
