// Package backup keeps copies of executables replaced by upgrades so a
// previous release can be put back.
package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const manifestName = "backup.json"

// ErrNotFound is returned for unknown backup IDs.
var ErrNotFound = errors.New("backup not found")

// Backup is one snapshot of a tool's executables.
type Backup struct {
	ID        string    `json:"id" yaml:"id"`
	Tool      string    `json:"tool" yaml:"tool"`
	Version   string    `json:"version,omitempty" yaml:"version,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	// SourceDir is the install directory the files were copied from.
	SourceDir string   `json:"source_dir" yaml:"source_dir"`
	Files     []string `json:"files" yaml:"files"`
}

// BackupInfo summarizes a backup for listing.
type BackupInfo struct {
	ID        string    `json:"id" yaml:"id"`
	Tool      string    `json:"tool" yaml:"tool"`
	Version   string    `json:"version,omitempty" yaml:"version,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Size      int64     `json:"size" yaml:"size"`
}

// Manager stores backups under dir/<tool>/<id>/.
type Manager struct {
	dir  string
	keep int
	now  func() time.Time
}

// NewManager creates a Manager rooted at dir. After each Create only the
// newest keep backups of that tool are retained; keep <= 0 retains all.
func NewManager(dir string, keep int) *Manager {
	return &Manager{dir: dir, keep: keep, now: time.Now}
}

// Dir returns the backup root.
func (m *Manager) Dir() string {
	return m.dir
}

// Create copies the existing files among paths into a new backup. Paths
// that do not exist are skipped; if none exist no backup is made and Create
// returns nil.
func (m *Manager) Create(tool, version string, paths []string) (*Backup, error) {
	var present []string
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			present = append(present, p)
		}
	}
	if len(present) == 0 {
		return nil, nil
	}

	now := m.now()
	b := &Backup{
		ID:        now.UTC().Format("2006-01-02-150405.000000"),
		Tool:      tool,
		Version:   version,
		CreatedAt: now,
		SourceDir: filepath.Dir(present[0]),
	}

	dir := m.backupDir(tool, b.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	for _, p := range present {
		name := filepath.Base(p)
		if err := copyFile(p, filepath.Join(dir, name)); err != nil {
			_ = os.RemoveAll(dir)
			return nil, err
		}
		b.Files = append(b.Files, name)
	}

	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to marshal backup: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, manifestName), data, 0o644); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to write backup manifest: %w", err)
	}

	if m.keep > 0 {
		if _, err := m.Prune(tool, m.keep); err != nil {
			return b, fmt.Errorf("backup created but pruning failed: %w", err)
		}
	}
	return b, nil
}

// List returns tool's backups, newest first.
func (m *Manager) List(tool string) ([]BackupInfo, error) {
	entries, err := os.ReadDir(filepath.Join(m.dir, tool))
	if err != nil {
		if os.IsNotExist(err) {
			return []BackupInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	backups := []BackupInfo{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		b, err := m.load(tool, entry.Name())
		if err != nil {
			continue
		}
		backups = append(backups, BackupInfo{
			ID:        b.ID,
			Tool:      b.Tool,
			Version:   b.Version,
			CreatedAt: b.CreatedAt,
			Size:      dirSize(m.backupDir(tool, b.ID)),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups, nil
}

// Get returns a backup by ID. "latest" selects the newest.
func (m *Manager) Get(tool, id string) (*Backup, error) {
	if id == "latest" || id == "" {
		backups, err := m.List(tool)
		if err != nil {
			return nil, err
		}
		if len(backups) == 0 {
			return nil, fmt.Errorf("%w: no backups of %s", ErrNotFound, tool)
		}
		id = backups[0].ID
	}
	return m.load(tool, id)
}

// Restore copies a backup's files back into the directory they came from.
func (m *Manager) Restore(tool, id string) (*Backup, error) {
	b, err := m.Get(tool, id)
	if err != nil {
		return nil, err
	}
	src := m.backupDir(tool, b.ID)
	if err := os.MkdirAll(b.SourceDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", b.SourceDir, err)
	}
	for _, name := range b.Files {
		if err := copyFile(filepath.Join(src, name), filepath.Join(b.SourceDir, name)); err != nil {
			return nil, fmt.Errorf("failed to restore %s: %w", name, err)
		}
	}
	return b, nil
}

// Delete removes a backup.
func (m *Manager) Delete(tool, id string) error {
	dir := m.backupDir(tool, id)
	if _, err := os.Stat(filepath.Join(dir, manifestName)); os.IsNotExist(err) {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, tool, id)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete backup: %w", err)
	}
	return nil
}

func (m *Manager) backupDir(tool, id string) string {
	return filepath.Join(m.dir, tool, id)
}

func (m *Manager) load(tool, id string) (*Backup, error) {
	if id != filepath.Base(id) || id == "." || id == ".." {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, tool, id)
	}
	data, err := os.ReadFile(filepath.Join(m.backupDir(tool, id), manifestName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, tool, id)
		}
		return nil, fmt.Errorf("failed to read backup manifest: %w", err)
	}

	var b Backup
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse backup manifest: %w", err)
	}
	return &b, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	// O_CREATE's mode is masked and ignored for existing files
	return os.Chmod(dst, info.Mode().Perm())
}

func dirSize(dir string) int64 {
	var total int64
	_ = filepath.WalkDir(dir, func(_ string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}
