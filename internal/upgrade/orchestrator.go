// Package upgrade drives the check, download, validate, extract and install
// sequence for managed tools.
package upgrade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/pilgrims/utilup/internal/archive"
	"github.com/pilgrims/utilup/internal/backup"
	"github.com/pilgrims/utilup/internal/download"
	"github.com/pilgrims/utilup/internal/source"
	"github.com/pilgrims/utilup/internal/update"
)

// Locator resolves and records where tools are installed.
type Locator interface {
	GetPath(name string) string
	SetPath(name, path string) error
	ResolvePath(name string) string
	ExecutableName(name string) string
	DefaultDir(name string) string
	TempDir() string
}

// Downloader fetches and verifies release assets.
type Downloader interface {
	Download(ctx context.Context, url, dst string, progress download.ProgressFunc) error
	FileSize(ctx context.Context, url string) (int64, bool)
	Validate(path, expectedChecksum string) bool
	FetchChecksums(ctx context.Context, url string) (map[string]string, error)
}

// Extractor unpacks release archives.
type Extractor interface {
	Extract(ctx context.Context, archivePath, destDir string, progress archive.ProgressFunc) error
	Supports(archivePath string) bool
}

// Backups snapshots executables before an install overwrites them.
type Backups interface {
	Create(tool, version string, paths []string) (*backup.Backup, error)
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Source     source.VersionSource
	Locator    Locator
	Downloader Downloader
	Extractor  Extractor
	// Backups is optional; nil disables snapshots.
	Backups  Backups
	Platform update.Platform
	// FreeSpaceFactor is how many times the download size must be free in
	// the temp directory. Zero disables the check.
	FreeSpaceFactor uint64
	Logger          *slog.Logger
}

// UpgradeOptions tunes a single run.
type UpgradeOptions struct {
	// Force installs the latest release even when the installed version is
	// current or cannot be determined.
	Force bool
}

// Orchestrator runs upgrades for one tool. Runs are strictly sequential; a
// second Upgrade while one is active fails immediately.
type Orchestrator struct {
	tool       Tool
	deps       Deps
	logger     *slog.Logger
	checkSpace func(dir string, need uint64) error
	running    atomic.Bool
}

// NewOrchestrator creates an Orchestrator for tool.
func NewOrchestrator(tool Tool, deps Deps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if deps.Platform.OS == "" {
		deps.Platform = update.Detect()
	}
	return &Orchestrator{
		tool:       tool,
		deps:       deps,
		logger:     logger.With("tool", tool.Name),
		checkSpace: download.CheckFreeSpace,
	}
}

// Tool returns the tool this orchestrator manages.
func (o *Orchestrator) Tool() Tool {
	return o.tool
}

type versionState struct {
	path      string
	available bool
	current   string
	latest    string
	status    update.ComparisonResult
}

func (o *Orchestrator) versions(ctx context.Context) versionState {
	path := o.deps.Locator.ResolvePath(o.tool.Name)
	st := versionState{path: path, available: fileExists(path)}
	st.current = o.deps.Source.CurrentVersion(ctx, path)
	st.latest = o.deps.Source.LatestVersion(ctx)
	st.status = update.Compare(st.current, st.latest)
	return st
}

func (o *Orchestrator) comparisonError(st versionState) error {
	label := o.tool.Label()
	switch {
	case st.current == "":
		return &Error{Kind: KindNotFound, Op: "check", Err: fmt.Errorf("could not determine installed %s version at %s", label, st.path)}
	case st.latest == "":
		return &Error{Kind: KindNetworkFailure, Op: "check", Err: fmt.Errorf("could not determine latest %s release", label)}
	default:
		return &Error{Kind: KindInvalidInput, Op: "check", Err: fmt.Errorf("cannot compare versions %q and %q", st.current, st.latest)}
	}
}

// Info reports the installed and latest versions of the tool.
func (o *Orchestrator) Info(ctx context.Context) ToolInfo {
	st := o.versions(ctx)
	label := o.tool.Label()

	info := ToolInfo{
		Name:            o.tool.Name,
		CurrentVersion:  st.current,
		LatestVersion:   st.latest,
		ExecutablePath:  st.path,
		IsAvailable:     st.available,
		UpdateStatus:    st.status,
		StatusMessage:   statusMessage(label, st),
		SuggestedAction: suggestedAction(o.tool.Name, st.status),
	}

	if st.status == update.ComparisonFailed {
		info.ErrorMessage = o.comparisonError(st).Error()
	}

	if url, ok := o.tool.DownloadURL(o.deps.Platform); ok {
		info.DownloadURL = url
		if size, ok := o.deps.Downloader.FileSize(ctx, url); ok {
			info.DownloadSize = size
		}
	} else if info.ErrorMessage == "" {
		info.ErrorMessage = fmt.Sprintf("no %s release for %s", label, o.deps.Platform.Key())
	}
	return info
}

// CheckForUpdate compares the installed version with the latest release.
func (o *Orchestrator) CheckForUpdate(ctx context.Context) UpdateCheck {
	st := o.versions(ctx)
	check := UpdateCheck{
		Name:            o.tool.Name,
		UpdateAvailable: st.status == update.UpdateAvailable,
		Status:          st.status,
		CurrentVersion:  st.current,
		LatestVersion:   st.latest,
	}
	if st.status == update.ComparisonFailed {
		check.ErrorMessage = o.comparisonError(st).Error()
	}
	return check
}

// Upgrade runs a default upgrade.
func (o *Orchestrator) Upgrade(ctx context.Context, progress ProgressFunc) UpgradeResult {
	return o.UpgradeWith(ctx, UpgradeOptions{}, progress)
}

// UpgradeWith checks for a newer release and installs it. It never panics
// and never returns an error; the outcome is described by the result.
func (o *Orchestrator) UpgradeWith(ctx context.Context, opts UpgradeOptions, progress ProgressFunc) (res UpgradeResult) {
	r := o.newRun(progress)

	if !o.running.CompareAndSwap(false, true) {
		return r.fail("Upgrade already in progress", &Error{Kind: KindInvalidInput, Op: "upgrade", Err: fmt.Errorf("an upgrade of %s is already running", o.tool.Label())})
	}
	defer o.running.Store(false)

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("upgrade panicked", "panic", rec, "stack", string(debug.Stack()))
			res = r.fail(fmt.Sprintf("%s upgrade failed", o.tool.Label()), &Error{Kind: KindUnknownFault, Op: "upgrade", Err: fmt.Errorf("%v", rec)})
		}
	}()

	return o.execute(ctx, r, opts)
}

func (o *Orchestrator) execute(ctx context.Context, r *run, opts UpgradeOptions) UpgradeResult {
	label := o.tool.Label()
	downloadFailed := fmt.Sprintf("Failed to download %s", label)
	installFailed := fmt.Sprintf("Failed to install %s", label)

	r.emit(pctStarted, fmt.Sprintf("Starting %s upgrade", label))

	if err := r.enter(ctx, PhaseChecking, pctChecking, "Checking for updates"); err != nil {
		return r.cancel(err)
	}
	st := o.versions(ctx)
	if err := ctx.Err(); err != nil {
		return r.cancel(err)
	}
	r.logger.Info("version check", "current", st.current, "latest", st.latest, "status", st.status, "path", st.path)

	if !opts.Force {
		switch st.status {
		case update.UpToDate, update.NewerThanLatest:
			return r.complete(fmt.Sprintf("%s is already up to date", label), st.current, st.current, st.path)
		case update.ComparisonFailed:
			return r.fail("Failed to check for updates", o.comparisonError(st))
		}
	}

	if err := r.enter(ctx, PhaseDownloading, pctDownload, fmt.Sprintf("Downloading %s", label)); err != nil {
		return r.cancel(err)
	}
	url, ok := o.tool.DownloadURL(o.deps.Platform)
	if !ok {
		return r.fail(downloadFailed, &Error{Kind: KindInvalidInput, Op: "resolve download", Err: fmt.Errorf("no %s release for %s", label, o.deps.Platform.Key())})
	}

	size, sizeKnown := o.deps.Downloader.FileSize(ctx, url)
	tempDir := o.deps.Locator.TempDir()
	if sizeKnown {
		if err := o.ensureSpace(tempDir, size); err != nil {
			return r.fail(downloadFailed, err)
		}
	}

	r.scratch = filepath.Join(tempDir, o.tool.Name+"-"+r.id)
	assetPath := filepath.Join(r.scratch, o.assetFileName(url))
	if err := o.deps.Downloader.Download(ctx, url, assetPath, r.downloadProgress(label)); err != nil {
		return r.fail(downloadFailed, &Error{Kind: KindNetworkFailure, Op: "download", Err: err})
	}

	if err := r.enter(ctx, PhaseValidating, pctValidating, "Validating download"); err != nil {
		return r.cancel(err)
	}
	if err := o.validate(ctx, url, assetPath, size, sizeKnown); err != nil {
		return r.fail("Download validation failed", err)
	}

	installDir := o.installDir(st.path)
	var installed string
	var err error
	if o.tool.Distribution == Archive {
		if err := r.enter(ctx, PhaseExtracting, pctExtract, fmt.Sprintf("Extracting %s", label)); err != nil {
			return r.cancel(err)
		}
		extractDir := filepath.Join(r.scratch, "extracted")
		if err := o.extract(ctx, assetPath, extractDir, r); err != nil {
			return r.fail(fmt.Sprintf("Failed to extract %s", label), err)
		}

		if err := r.enter(ctx, PhaseInstalling, pctInstalling, fmt.Sprintf("Installing %s", label)); err != nil {
			return r.cancel(err)
		}
		o.backupExisting(r, installDir, st.current)
		installed, err = o.installFromArchive(extractDir, installDir)
	} else {
		if err := r.enter(ctx, PhaseInstalling, pctInstalling, fmt.Sprintf("Installing %s", label)); err != nil {
			return r.cancel(err)
		}
		o.backupExisting(r, installDir, st.current)
		installed, err = o.installExecutable(assetPath, installDir)
	}
	if err != nil {
		return r.fail(installFailed, err)
	}

	if err := o.deps.Locator.SetPath(o.tool.Name, installed); err != nil {
		return r.fail(installFailed, &Error{Kind: KindInstallFailure, Op: "record path", Err: err})
	}

	newVersion := st.latest
	if newVersion == "" {
		newVersion = o.deps.Source.CurrentVersion(ctx, installed)
	}
	msg := fmt.Sprintf("%s upgraded successfully from %s to %s", label, orUnknown(st.current), orUnknown(newVersion))
	return r.complete(msg, st.current, newVersion, installed)
}

// ensureSpace fails only when the probe positively reports too little
// space. A failing probe is logged and ignored.
func (o *Orchestrator) ensureSpace(dir string, size int64) error {
	if o.deps.FreeSpaceFactor == 0 || size <= 0 {
		return nil
	}
	need := uint64(size) * o.deps.FreeSpaceFactor
	err := o.checkSpace(dir, need)
	if errors.Is(err, download.ErrInsufficientSpace) {
		return &Error{Kind: KindInstallFailure, Op: "check free space", Err: err}
	}
	if err != nil {
		o.logger.Warn("free space probe failed", "dir", dir, "error", err)
	}
	return nil
}

// assetFileName names the downloaded file. Archive downloads keep a
// recognizable extension so the extractor can dispatch on it.
func (o *Orchestrator) assetFileName(url string) string {
	name := download.AssetName(url)
	if name == "" || name == "." || name == "/" {
		name = o.tool.Name
	}
	if o.tool.Distribution == Archive && !archive.Supports(name) {
		ext := o.tool.ArchiveExt
		if ext == "" {
			ext = ".zip"
		}
		name += ext
	}
	return name
}

func (o *Orchestrator) expectedChecksum(ctx context.Context, url string) string {
	manifest := o.tool.ChecksumURL(o.deps.Platform)
	if manifest == "" {
		o.logger.Debug("no checksum manifest published")
		return ""
	}

	sums, err := o.deps.Downloader.FetchChecksums(ctx, manifest)
	if err != nil {
		o.logger.Warn("checksum manifest unavailable, validating size only", "url", manifest, "error", err)
		return ""
	}

	asset := download.AssetName(url)
	sum, ok := sums[asset]
	if !ok {
		o.logger.Warn("asset not listed in checksum manifest", "asset", asset, "url", manifest)
		return ""
	}
	return sum
}

func (o *Orchestrator) validate(ctx context.Context, url, path string, size int64, sizeKnown bool) error {
	if sizeKnown {
		info, err := os.Stat(path)
		if err != nil {
			return &Error{Kind: KindValidationFailure, Op: "validate", Err: err}
		}
		if info.Size() != size {
			return &Error{Kind: KindValidationFailure, Op: "validate", Err: fmt.Errorf("expected %d bytes, got %d", size, info.Size())}
		}
	}

	checksum := o.expectedChecksum(ctx, url)
	if !o.deps.Downloader.Validate(path, checksum) {
		if checksum != "" {
			return &Error{Kind: KindValidationFailure, Op: "validate", Err: download.ErrChecksumMismatch}
		}
		return &Error{Kind: KindValidationFailure, Op: "validate", Err: download.ErrEmptyFile}
	}
	return nil
}

func (o *Orchestrator) extract(ctx context.Context, assetPath, dir string, r *run) error {
	if !o.deps.Extractor.Supports(assetPath) {
		return &Error{Kind: KindExtractionFailure, Op: "extract", Err: fmt.Errorf("%s: %w", filepath.Base(assetPath), archive.ErrUnsupportedFormat)}
	}
	err := o.deps.Extractor.Extract(ctx, assetPath, dir, func(p archive.Progress) {
		op := fmt.Sprintf("Extracting %s", o.tool.Label())
		if p.CurrentFile != "" {
			op = fmt.Sprintf("Extracting %s", p.CurrentFile)
		}
		r.emit(Remap(p.Percentage(), pctExtract, weightExtract), op)
	})
	if err != nil {
		if isCancellation(err) {
			return err
		}
		return &Error{Kind: KindExtractionFailure, Op: "extract", Err: err}
	}
	return nil
}

// backupExisting snapshots the executables about to be overwritten. A
// failed backup is logged and does not stop the install.
func (o *Orchestrator) backupExisting(r *run, installDir, version string) {
	if o.deps.Backups == nil {
		return
	}
	names := append([]string{o.tool.Name}, o.tool.Companions...)
	paths := make([]string, 0, len(names))
	for _, name := range names {
		paths = append(paths, filepath.Join(installDir, o.deps.Locator.ExecutableName(name)))
	}

	b, err := o.deps.Backups.Create(o.tool.Name, version, paths)
	if b != nil {
		r.backupID = b.ID
		r.logger.Info("backed up previous executables", "backup_id", b.ID, "files", len(b.Files))
	}
	if err != nil {
		r.logger.Warn("failed to back up previous executables", "error", err)
	}
}

// installDir is the directory of the resolved executable, or the default
// install location when nothing was resolved.
func (o *Orchestrator) installDir(resolved string) string {
	if resolved != "" {
		return filepath.Dir(resolved)
	}
	return o.deps.Locator.DefaultDir(o.tool.Name)
}

func (o *Orchestrator) installFromArchive(extractDir, installDir string) (string, error) {
	mainName := o.deps.Locator.ExecutableName(o.tool.Name)
	src, ok := findExecutable(extractDir, mainName)
	if !ok {
		return "", &Error{Kind: KindNotFound, Op: "install", Err: fmt.Errorf("%s not found in archive", mainName)}
	}

	target := filepath.Join(installDir, mainName)
	if err := o.place(src, target); err != nil {
		return "", err
	}

	for _, companion := range o.tool.Companions {
		name := o.deps.Locator.ExecutableName(companion)
		src, ok := findExecutable(extractDir, name)
		if !ok {
			o.logger.Debug("companion not in archive", "name", name)
			continue
		}
		if err := o.place(src, filepath.Join(installDir, name)); err != nil {
			return "", err
		}
	}
	return target, nil
}

func (o *Orchestrator) installExecutable(assetPath, installDir string) (string, error) {
	target := filepath.Join(installDir, o.deps.Locator.ExecutableName(o.tool.Name))
	if err := o.place(assetPath, target); err != nil {
		return "", err
	}
	return target, nil
}

// place copies src over dst and marks it executable. A failed chmod is
// logged, not fatal.
func (o *Orchestrator) place(src, dst string) error {
	if err := copyFile(src, dst); err != nil {
		return &Error{Kind: KindInstallFailure, Op: "install", Err: err}
	}
	if err := makeExecutable(dst); err != nil {
		o.logger.Warn("failed to mark executable", "path", dst, "error", err)
	}
	o.logger.Info("installed", "path", dst)
	return nil
}

func statusMessage(label string, st versionState) string {
	switch st.status {
	case update.UpToDate:
		return fmt.Sprintf("%s is up to date", label)
	case update.UpdateAvailable:
		return fmt.Sprintf("Update available: %s → %s", st.current, st.latest)
	case update.NewerThanLatest:
		return fmt.Sprintf("%s version is newer than latest release", label)
	default:
		return "Unable to compare versions"
	}
}

func suggestedAction(name string, status update.ComparisonResult) string {
	switch status {
	case update.UpdateAvailable:
		return fmt.Sprintf("Run 'utilup upgrade %s'", name)
	case update.UpToDate, update.NewerThanLatest:
		return "No action needed"
	default:
		return "Check configuration"
	}
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func newRunID() string {
	return uuid.NewString()
}
