// Package config loads utilup settings and resolves the config file location.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pilgrims/utilup/internal/backup"
)

// EnvConfig names the environment variable holding an explicit config path.
const EnvConfig = "UTILUP_CONFIG"

const (
	DefaultUserAgent          = "utilup"
	DefaultOperationTimeout   = 30 * time.Minute
	DefaultHTTPTimeout        = 60 * time.Second
	DefaultMinFreeSpaceFactor = 3
	DefaultBackupKeep         = backup.DefaultKeepCount
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
)

// Config holds the resolved settings.
type Config struct {
	UserAgent        string
	OperationTimeout time.Duration
	HTTPTimeout      time.Duration
	// DataDir holds the path store and the default install root.
	DataDir            string
	TempDir            string
	Log                LogConfig
	MinFreeSpaceFactor uint64
	// BackupKeep is how many snapshots of replaced executables are kept
	// per tool. Zero disables backups.
	BackupKeep int
	Tools      map[string]ToolConfig
}

// LogConfig controls the logger built by the logging package.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level" json:"level"`
	Format string `yaml:"format" toml:"format" json:"format"`
	File   string `yaml:"file,omitempty" toml:"file,omitempty" json:"file,omitempty"`
}

// ToolConfig overrides catalog settings for one tool.
type ToolConfig struct {
	ReleaseURL   string            `yaml:"release_url,omitempty" toml:"release_url,omitempty" json:"release_url,omitempty"`
	ChecksumURL  string            `yaml:"checksum_url,omitempty" toml:"checksum_url,omitempty" json:"checksum_url,omitempty"`
	DownloadURLs map[string]string `yaml:"download_urls,omitempty" toml:"download_urls,omitempty" json:"download_urls,omitempty"`
	// Path pins the executable location ahead of the path store.
	Path string `yaml:"path,omitempty" toml:"path,omitempty" json:"path,omitempty"`
}

// Default returns the configuration used when no file is found.
func Default() *Config {
	return &Config{
		UserAgent:          DefaultUserAgent,
		OperationTimeout:   DefaultOperationTimeout,
		HTTPTimeout:        DefaultHTTPTimeout,
		DataDir:            defaultDataDir(),
		TempDir:            filepath.Join(os.TempDir(), "utilup"),
		Log:                LogConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
		MinFreeSpaceFactor: DefaultMinFreeSpaceFactor,
		BackupKeep:         DefaultBackupKeep,
		Tools:              map[string]ToolConfig{},
	}
}

// Overrides returns the configured executable paths keyed by tool name.
func (c *Config) Overrides() map[string]string {
	out := make(map[string]string)
	for name, t := range c.Tools {
		if t.Path != "" {
			out[name] = t.Path
		}
	}
	return out
}

func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "utilup")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "utilup-data")
	}
	return filepath.Join(home, ".local", "share", "utilup")
}

// Find returns the config file to load. An explicit path must exist. When
// nothing is found in the standard locations Find returns "" and no error.
func Find(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("specified config not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	if envPath := os.Getenv(EnvConfig); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	xdgConfig := configHome(home)

	var candidates []string
	for _, name := range []string{"config.yaml", "config.yml", "config.toml", "config.json"} {
		candidates = append(candidates, filepath.Join(xdgConfig, "utilup", name))
	}
	for _, name := range []string{".utilup.yaml", ".utilup.yml", ".utilup.toml", ".utilup.json"} {
		candidates = append(candidates, filepath.Join(home, name))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", nil
}

// DefaultPath is where init writes a new config file with the given
// extension ("yaml", "toml" or "json"). Find looks there first.
func DefaultPath(ext string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(configHome(home), "utilup", "config."+ext), nil
}

func configHome(home string) string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return xdg
	}
	return filepath.Join(home, ".config")
}

// Load reads the file at path over the defaults and validates the result.
// An empty path yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	format := detectFormat(path, content)
	if format == FormatUnknown {
		return nil, fmt.Errorf("unable to detect file format for %s", path)
	}

	return Parse(content, format)
}

// Parse decodes content over the defaults and validates the result.
func Parse(content []byte, format Format) (*Config, error) {
	cfg, err := parse(content, format)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
