// Package templates provides embedded starter config files for utilup init.
package templates

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/pilgrims/utilup/internal/config"
)

//go:embed *.yaml *.toml
var templatesFS embed.FS

// Template is one starter config in one format.
type Template struct {
	Name        string
	Description string
	// Ext is the file extension without the dot, "yaml" or "toml".
	Ext     string
	Content []byte
}

// Format returns the config format matching Ext.
func (t *Template) Format() config.Format {
	switch t.Ext {
	case "toml":
		return config.FormatTOML
	case "json":
		return config.FormatJSON
	default:
		return config.FormatYAML
	}
}

var templateDescriptions = map[string]string{
	"minimal": "Log level and backups only",
	"full":    "Every option with its default",
}

// List returns all template names sorted alphabetically.
func List() []string {
	entries, err := templatesFS.ReadDir(".")
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), path.Ext(entry.Name()))
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	sort.Strings(names)
	return names
}

// Get returns a template by name and extension. An empty ext means yaml.
func Get(name, ext string) (*Template, error) {
	if ext == "" || ext == "yml" {
		ext = "yaml"
	}
	content, err := templatesFS.ReadFile(name + "." + ext)
	if err != nil {
		if _, ok := err.(*fs.PathError); ok {
			return nil, fmt.Errorf("template '%s' not available as %s", name, ext)
		}
		return nil, fmt.Errorf("failed to read template '%s': %w", name, err)
	}

	return &Template{
		Name:        name,
		Description: GetDescription(name),
		Ext:         ext,
		Content:     content,
	}, nil
}

// GetDescription returns the description for a template.
func GetDescription(name string) string {
	if desc, ok := templateDescriptions[name]; ok {
		return desc
	}
	return "Custom template"
}
