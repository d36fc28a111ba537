package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pilgrims/utilup/internal/config"
	"github.com/pilgrims/utilup/internal/interactive"
	"github.com/pilgrims/utilup/internal/templates"
)

func newInitCmd() *cobra.Command {
	var templateName string
	var format string
	var outputPath string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a config file from a template",
		Long: `Create a utilup config file from a built-in template.

Available templates:
  minimal    - Log level and backups only
  full       - Every option with its default

Examples:
  utilup init                            # minimal.yaml to the default location
  utilup init --template=full --format=toml
  utilup init --path ./utilup.yaml --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var prompter *interactive.Prompter
			if !force {
				prompter = interactive.NewPrompterWithIO(cmd.InOrStdin(), cmd.OutOrStdout())
			}
			return runInit(cmd.OutOrStdout(), prompter, templateName, format, outputPath)
		},
	}

	cmd.Flags().StringVarP(&templateName, "template", "t", "minimal", "Template name")
	cmd.Flags().StringVar(&format, "format", "yaml", "File format: yaml, toml")
	cmd.Flags().StringVar(&outputPath, "path", "", "Output path (default $XDG_CONFIG_HOME/utilup/config.<format>)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file without asking")

	_ = cmd.RegisterFlagCompletionFunc("template", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		var completions []string
		for _, name := range templates.List() {
			completions = append(completions, fmt.Sprintf("%s\t%s", name, templates.GetDescription(name)))
		}
		return completions, cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"yaml", "toml"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// runInit writes the template to outputPath. An existing file is only
// replaced when p is nil or the user confirms.
func runInit(stdout io.Writer, p *interactive.Prompter, templateName, format, outputPath string) error {
	tmpl, err := templates.Get(templateName, strings.ToLower(format))
	if err != nil {
		return fmt.Errorf("failed to load template: %w (available: %s)", err, strings.Join(templates.List(), ", "))
	}

	// templates must load as written
	if _, err := config.Parse(tmpl.Content, tmpl.Format()); err != nil {
		return fmt.Errorf("invalid template: %w", err)
	}

	if outputPath == "" {
		outputPath, err = config.DefaultPath(tmpl.Ext)
		if err != nil {
			return err
		}
	}

	if _, err := os.Stat(outputPath); err == nil && p != nil {
		if !p.Confirm("%s already exists. Overwrite?", outputPath) {
			_, _ = fmt.Fprintln(stdout, "Aborted.")
			return nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", filepath.Dir(outputPath), err)
	}
	if err := os.WriteFile(outputPath, tmpl.Content, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	_, _ = fmt.Fprintf(stdout, "Created %s from the %s template\n", outputPath, tmpl.Name)
	_, _ = fmt.Fprintln(stdout, "\nNext steps:")
	_, _ = fmt.Fprintln(stdout, "  1. Edit the file to customize")
	_, _ = fmt.Fprintln(stdout, "  2. Run 'utilup check' to see available updates")
	return nil
}
