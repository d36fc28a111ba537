package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a config file.
type Format int

const (
	FormatUnknown Format = iota
	FormatYAML
	FormatTOML
	FormatJSON
)

// detectFormat picks the format by extension, falling back to the content.
func detectFormat(path string, content []byte) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	case ".json":
		return FormatJSON
	}
	return sniffFormat(content)
}

func sniffFormat(content []byte) Format {
	trimmed := strings.TrimSpace(string(content))

	if strings.HasPrefix(trimmed, "{") {
		return FormatJSON
	}

	for _, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			return FormatTOML
		}
		eq, colon := strings.Index(line, "="), strings.Index(line, ":")
		if eq >= 0 && (colon < 0 || eq < colon) {
			return FormatTOML
		}
		if colon >= 0 {
			return FormatYAML
		}
	}
	return FormatUnknown
}

// rawConfig mirrors the file layout. Durations stay strings until
// conversion so all three formats accept "30m".
type rawConfig struct {
	UserAgent          string                `yaml:"user_agent" toml:"user_agent" json:"user_agent"`
	OperationTimeout   string                `yaml:"operation_timeout" toml:"operation_timeout" json:"operation_timeout"`
	HTTPTimeout        string                `yaml:"http_timeout" toml:"http_timeout" json:"http_timeout"`
	DataDir            string                `yaml:"data_dir" toml:"data_dir" json:"data_dir"`
	TempDir            string                `yaml:"temp_dir" toml:"temp_dir" json:"temp_dir"`
	Log                LogConfig             `yaml:"log" toml:"log" json:"log"`
	MinFreeSpaceFactor *int64                `yaml:"min_free_space_factor" toml:"min_free_space_factor" json:"min_free_space_factor"`
	BackupKeep         *int64                `yaml:"backup_keep" toml:"backup_keep" json:"backup_keep"`
	Tools              map[string]ToolConfig `yaml:"tools" toml:"tools" json:"tools"`
}

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandEnvVars(content []byte) []byte {
	return envVarPattern.ReplaceAllFunc(content, func(match []byte) []byte {
		parts := envVarPattern.FindSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		value := os.Getenv(string(parts[1]))
		if value == "" && len(parts) >= 3 && len(parts[2]) > 0 {
			value = string(parts[2])
		}
		return []byte(value)
	})
}

func parse(content []byte, format Format) (*Config, error) {
	content = expandEnvVars(content)

	var raw rawConfig
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(content, &raw); err != nil {
			return nil, fmt.Errorf("YAML parse error: %w", err)
		}
	case FormatTOML:
		if err := toml.Unmarshal(content, &raw); err != nil {
			return nil, fmt.Errorf("TOML parse error: %w", err)
		}
	case FormatJSON:
		if err := json.Unmarshal(content, &raw); err != nil {
			return nil, fmt.Errorf("JSON parse error: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown file format")
	}

	return raw.resolve()
}

// resolve layers the raw values over Default.
func (raw rawConfig) resolve() (*Config, error) {
	cfg := Default()
	var errs []string

	if raw.UserAgent != "" {
		cfg.UserAgent = raw.UserAgent
	}
	if raw.OperationTimeout != "" {
		d, err := time.ParseDuration(raw.OperationTimeout)
		if err != nil {
			errs = append(errs, ValidationError{Field: "operation_timeout", Message: err.Error()}.Error())
		}
		cfg.OperationTimeout = d
	}
	if raw.HTTPTimeout != "" {
		d, err := time.ParseDuration(raw.HTTPTimeout)
		if err != nil {
			errs = append(errs, ValidationError{Field: "http_timeout", Message: err.Error()}.Error())
		}
		cfg.HTTPTimeout = d
	}
	if raw.DataDir != "" {
		cfg.DataDir = expandHome(raw.DataDir)
	}
	if raw.TempDir != "" {
		cfg.TempDir = expandHome(raw.TempDir)
	}
	if raw.Log.Level != "" {
		cfg.Log.Level = strings.ToLower(raw.Log.Level)
	}
	if raw.Log.Format != "" {
		cfg.Log.Format = strings.ToLower(raw.Log.Format)
	}
	cfg.Log.File = expandHome(raw.Log.File)
	if raw.MinFreeSpaceFactor != nil {
		if *raw.MinFreeSpaceFactor < 0 {
			errs = append(errs, ValidationError{Field: "min_free_space_factor", Message: "must not be negative"}.Error())
		} else {
			cfg.MinFreeSpaceFactor = uint64(*raw.MinFreeSpaceFactor)
		}
	}
	if raw.BackupKeep != nil {
		if *raw.BackupKeep < 0 {
			errs = append(errs, ValidationError{Field: "backup_keep", Message: "must not be negative"}.Error())
		} else {
			cfg.BackupKeep = int(*raw.BackupKeep)
		}
	}
	for name, t := range raw.Tools {
		t.Path = expandHome(t.Path)
		cfg.Tools[name] = t
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return cfg, nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
