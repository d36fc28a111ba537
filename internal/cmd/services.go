package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"

	"github.com/pilgrims/utilup/internal/archive"
	"github.com/pilgrims/utilup/internal/backup"
	"github.com/pilgrims/utilup/internal/config"
	"github.com/pilgrims/utilup/internal/download"
	"github.com/pilgrims/utilup/internal/locator"
	"github.com/pilgrims/utilup/internal/logging"
	"github.com/pilgrims/utilup/internal/output"
	"github.com/pilgrims/utilup/internal/source"
	"github.com/pilgrims/utilup/internal/update"
	"github.com/pilgrims/utilup/internal/upgrade"
)

// services is everything a command needs, built once per invocation.
type services struct {
	cfg     *config.Config
	logger  *slog.Logger
	closer  io.Closer
	locator *locator.Locator
	backups *backup.Manager
	manager *upgrade.Manager
}

// loadServices finds and loads the config file and builds services from it.
func loadServices() (*services, error) {
	path, err := config.Find(configPath)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	svc, err := newServices(cfg, os.Stderr, update.Detect())
	if err != nil {
		return nil, err
	}
	if path != "" {
		svc.logger.Debug("loaded config", "path", path)
	}
	return svc, nil
}

func newServices(cfg *config.Config, logOut io.Writer, platform update.Platform) (*services, error) {
	logCfg := cfg.Log
	switch {
	case verbose:
		logCfg.Level = "debug"
	case quiet:
		logCfg.Level = "error"
	}
	logger, closer, err := logging.New(logCfg, logOut)
	if err != nil {
		return nil, err
	}

	tools := upgrade.DefaultTools()
	versionFlags := make(map[string]string, len(tools))
	for i := range tools {
		tools[i] = applyToolConfig(tools[i], cfg.Tools[tools[i].Name], platform)
		versionFlags[tools[i].Name] = tools[i].VersionFlag
	}
	for name := range cfg.Tools {
		if _, ok := upgrade.Lookup(name); !ok {
			logger.Warn("ignoring config for unknown tool", "tool", name)
		}
	}

	loc := locator.New(locator.Options{
		DataDir:      cfg.DataDir,
		TempDir:      cfg.TempDir,
		Overrides:    cfg.Overrides(),
		VersionFlags: versionFlags,
		Platform:     platform,
		Logger:       logger.With("component", "locator"),
	})

	// Release metadata calls are small and get an overall timeout. Asset
	// downloads only bound the wait for response headers.
	apiClient := &http.Client{Timeout: cfg.HTTPTimeout}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.HTTPTimeout
	dl := download.New(download.Options{
		Client:    &http.Client{Transport: transport},
		UserAgent: cfg.UserAgent,
		Logger:    logger.With("component", "download"),
	})
	ex := archive.New(logger.With("component", "archive"))

	// restore stays available when backup_keep is 0
	backups := backup.NewManager(filepath.Join(cfg.DataDir, "backups"), cfg.BackupKeep)
	var snapshots upgrade.Backups
	if cfg.BackupKeep > 0 {
		snapshots = backups
	}

	orchestrators := make([]*upgrade.Orchestrator, 0, len(tools))
	for _, tool := range tools {
		src := tool.NewSource(source.Options{
			ReleaseURL: tool.ReleaseURL,
			UserAgent:  cfg.UserAgent,
			Client:     apiClient,
			Logger:     logger.With("component", "source", "tool", tool.Name),
		})
		orchestrators = append(orchestrators, upgrade.NewOrchestrator(tool, upgrade.Deps{
			Source:          src,
			Locator:         loc,
			Downloader:      dl,
			Extractor:       ex,
			Platform:        platform,
			Backups:         snapshots,
			FreeSpaceFactor: cfg.MinFreeSpaceFactor,
			Logger:          logger,
		}))
	}

	return &services{
		cfg:     cfg,
		logger:  logger,
		closer:  closer,
		locator: loc,
		backups: backups,
		manager: upgrade.NewManager(orchestrators...),
	}, nil
}

func (s *services) Close() error {
	return s.closer.Close()
}

// applyToolConfig layers config overrides onto a catalog entry.
func applyToolConfig(tool upgrade.Tool, tc config.ToolConfig, platform update.Platform) upgrade.Tool {
	if tc.ReleaseURL != "" {
		tool.ReleaseURL = tc.ReleaseURL
	}
	if len(tc.DownloadURLs) > 0 {
		merged := make(map[string]string, len(tool.DownloadURLs)+len(tc.DownloadURLs))
		for k, v := range tool.DownloadURLs {
			merged[k] = v
		}
		for k, v := range tc.DownloadURLs {
			merged[k] = v
		}
		tool.DownloadURLs = merged
	}
	if tc.ChecksumURL != "" {
		tool.ChecksumURLs = map[string]string{
			platform.OS:    tc.ChecksumURL,
			platform.Key(): tc.ChecksumURL,
		}
	}
	return tool
}

func toolNames() []string {
	var names []string
	for _, t := range upgrade.DefaultTools() {
		names = append(names, t.Name)
	}
	slices.Sort(names)
	return names
}

func requireTool(name string) error {
	if _, ok := upgrade.Lookup(name); !ok {
		return fmt.Errorf("%w: %s (known tools: %v)", upgrade.ErrUnknownTool, name, toolNames())
	}
	return nil
}

func newWriter(w io.Writer) (*output.Writer, error) {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}
	return output.NewWriter(w, format), nil
}
