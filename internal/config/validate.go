package config

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"sort"
	"strings"
)

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}

	// platformKeyPattern accepts "os" or "os/arch".
	platformKeyPattern = regexp.MustCompile(`^[a-z0-9]+(/[a-z0-9]+)?$`)
)

// ValidationError is one invalid config field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks every field and reports all problems at once.
func Validate(c *Config) error {
	var errs []string

	if c.OperationTimeout <= 0 {
		errs = append(errs, ValidationError{Field: "operation_timeout", Message: "must be positive"}.Error())
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, ValidationError{Field: "http_timeout", Message: "must be positive"}.Error())
	}
	if c.BackupKeep < 0 {
		errs = append(errs, ValidationError{Field: "backup_keep", Message: "must not be negative"}.Error())
	}
	if c.DataDir == "" {
		errs = append(errs, ValidationError{Field: "data_dir", Message: "is required"}.Error())
	}
	if !slices.Contains(logLevels, c.Log.Level) {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level %q (must be one of %s)", c.Log.Level, strings.Join(logLevels, ", ")),
		}.Error())
	}
	if !slices.Contains(logFormats, c.Log.Format) {
		errs = append(errs, ValidationError{
			Field:   "log.format",
			Message: fmt.Sprintf("invalid format %q (must be text or json)", c.Log.Format),
		}.Error())
	}

	names := make([]string, 0, len(c.Tools))
	for name := range c.Tools {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		errs = append(errs, validateTool(name, c.Tools[name])...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func validateTool(name string, t ToolConfig) []string {
	var errs []string
	prefix := "tools." + name

	if err := validateURL(t.ReleaseURL); err != nil {
		errs = append(errs, ValidationError{Field: prefix + ".release_url", Message: err.Error()}.Error())
	}
	if err := validateURL(t.ChecksumURL); err != nil {
		errs = append(errs, ValidationError{Field: prefix + ".checksum_url", Message: err.Error()}.Error())
	}

	keys := make([]string, 0, len(t.DownloadURLs))
	for k := range t.DownloadURLs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		field := fmt.Sprintf("%s.download_urls.%s", prefix, key)
		if !platformKeyPattern.MatchString(key) {
			errs = append(errs, ValidationError{Field: field, Message: "key must be os or os/arch"}.Error())
			continue
		}
		if t.DownloadURLs[key] == "" {
			errs = append(errs, ValidationError{Field: field, Message: "url is required"}.Error())
			continue
		}
		if err := validateURL(t.DownloadURLs[key]); err != nil {
			errs = append(errs, ValidationError{Field: field, Message: err.Error()}.Error())
		}
	}
	return errs
}

// validateURL accepts empty strings and absolute http(s) URLs.
func validateURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid url %q (must be an absolute http or https url)", raw)
	}
	return nil
}
