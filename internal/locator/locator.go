// Package locator resolves and remembers where managed tools are installed.
package locator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pilgrims/utilup/internal/update"
)

// StoreFileName is the name of the persisted name-to-path mapping.
const StoreFileName = "utility-config.json"

// DefaultVersionFlag is passed to a tool by ValidatePath unless the tool
// registered another flag.
const DefaultVersionFlag = "--version"

// Options configures a Locator.
type Options struct {
	// DataDir holds the path store and default install locations.
	DataDir string
	// StorePath overrides DataDir/utility-config.json.
	StorePath string
	TempDir   string
	// Overrides are paths pinned by configuration. They win over the store.
	Overrides map[string]string
	// VersionFlags maps tool name to the flag used to probe it.
	VersionFlags map[string]string
	Platform     update.Platform
	Logger       *slog.Logger
}

// Locator persists tool paths as a small JSON object on disk. It is safe for
// concurrent use; concurrent writers race with last-writer-wins semantics.
type Locator struct {
	mu           sync.Mutex
	paths        map[string]string
	storePath    string
	dataDir      string
	tempDir      string
	overrides    map[string]string
	versionFlags map[string]string
	platform     update.Platform
	logger       *slog.Logger
}

// New creates a Locator. The store is read lazily on first use.
func New(opts Options) *Locator {
	l := &Locator{
		storePath:    opts.StorePath,
		dataDir:      opts.DataDir,
		tempDir:      opts.TempDir,
		overrides:    opts.Overrides,
		versionFlags: opts.VersionFlags,
		platform:     opts.Platform,
		logger:       opts.Logger,
	}
	if l.dataDir == "" {
		l.dataDir = filepath.Join(os.TempDir(), "utilup")
	}
	if l.storePath == "" {
		l.storePath = filepath.Join(l.dataDir, StoreFileName)
	}
	if l.tempDir == "" {
		l.tempDir = filepath.Join(os.TempDir(), "utilup")
	}
	if l.platform.OS == "" {
		l.platform = update.Detect()
	}
	if l.logger == nil {
		l.logger = slog.New(slog.DiscardHandler)
	}
	return l
}

// GetPath returns the configured path for name, or "" when none is known.
func (l *Locator) GetPath(name string) string {
	if p := strings.TrimSpace(l.overrides[name]); p != "" {
		return p
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.loadLocked()
	return l.paths[name]
}

// SetPath records path for name and writes the store to disk.
func (l *Locator) SetPath(name, path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.loadLocked()
	l.paths[name] = path
	if err := l.saveLocked(); err != nil {
		l.logger.Error("failed to persist tool path", "tool", name, "path", path, "error", err)
		return err
	}
	l.logger.Info("tool path updated", "tool", name, "path", path)
	return nil
}

// ResolvePath finds name's executable: the configured path if it exists,
// then a PATH search, then the default install location. The default path
// is returned even when nothing is installed there yet.
func (l *Locator) ResolvePath(name string) string {
	if p := l.GetPath(name); p != "" {
		if fileExists(p) {
			return p
		}
		l.logger.Debug("configured path does not exist", "tool", name, "path", p)
	}

	if p, err := exec.LookPath(l.ExecutableName(name)); err == nil {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		return p
	}

	return l.DefaultPath(name)
}

// ExecutableName returns the platform file name for name ("ffmpeg.exe" on
// Windows, "ffmpeg" elsewhere).
func (l *Locator) ExecutableName(name string) string {
	if l.platform.IsWindows() && !strings.EqualFold(filepath.Ext(name), ".exe") {
		return name + ".exe"
	}
	return name
}

// DefaultDir is where name is installed when no other location is known.
func (l *Locator) DefaultDir(name string) string {
	return filepath.Join(l.dataDir, "tools", name)
}

// DefaultPath is the executable path inside DefaultDir.
func (l *Locator) DefaultPath(name string) string {
	return filepath.Join(l.DefaultDir(name), l.ExecutableName(name))
}

// TempDir returns the scratch directory for downloads, creating it if needed.
func (l *Locator) TempDir() string {
	if err := os.MkdirAll(l.tempDir, 0o755); err != nil {
		l.logger.Warn("failed to create temp directory", "path", l.tempDir, "error", err)
	}
	return l.tempDir
}

// ValidatePath reports whether path is a runnable copy of name: it must
// exist, be non-empty, carry an executable extension on Windows, and exit 0
// when asked for its version.
func (l *Locator) ValidatePath(ctx context.Context, name, path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Size() == 0 {
		return false
	}

	if l.platform.IsWindows() {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".exe", ".bat", ".cmd":
		default:
			return false
		}
	}

	flag := l.versionFlags[name]
	if flag == "" {
		flag = DefaultVersionFlag
	}
	if err := exec.CommandContext(ctx, path, flag).Run(); err != nil {
		l.logger.Debug("tool probe failed", "tool", name, "path", path, "error", err)
		return false
	}
	return true
}

// ClearCache drops the in-memory mapping; the next lookup rereads the store.
func (l *Locator) ClearCache() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paths = nil
}

// Paths returns a copy of the persisted mapping.
func (l *Locator) Paths() map[string]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loadLocked()

	out := make(map[string]string, len(l.paths))
	for k, v := range l.paths {
		out[k] = v
	}
	return out
}

func (l *Locator) loadLocked() {
	if l.paths != nil {
		return
	}
	l.paths = make(map[string]string)

	data, err := os.ReadFile(l.storePath)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		l.logger.Warn("failed to read tool path store", "path", l.storePath, "error", err)
		return
	}

	var stored map[string]string
	if err := json.Unmarshal(data, &stored); err != nil {
		l.logger.Warn("tool path store is corrupt, starting empty", "path", l.storePath, "error", err)
		return
	}
	for k, v := range stored {
		l.paths[k] = v
	}
}

func (l *Locator) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(l.storePath), 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	data, err := json.MarshalIndent(l.paths, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode tool paths: %w", err)
	}

	tmp := l.storePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write tool paths: %w", err)
	}
	if err := os.Rename(tmp, l.storePath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace tool path store: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
