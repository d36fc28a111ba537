package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pilgrims/utilup/internal/locator"
)

var skipValidate bool

func newPathCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "path",
		Short: "Show or change where tools are installed",
	}

	getCmd := &cobra.Command{
		Use:               "get <tool>",
		Short:             "Print the executable path utilup uses for a tool",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeTools,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLocator(args[0], func(loc *locator.Locator) error {
				return runPathGet(cmd.OutOrStdout(), loc, args[0])
			})
		},
	}

	setCmd := &cobra.Command{
		Use:               "set <tool> <path>",
		Short:             "Record the executable path for a tool",
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeTools,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLocator(args[0], func(loc *locator.Locator) error {
				return runPathSet(cmd.Context(), cmd.OutOrStdout(), loc, args[0], args[1], !skipValidate)
			})
		},
	}
	setCmd.Flags().BoolVar(&skipValidate, "no-validate", false, "Record the path without running the executable")

	validateCmd := &cobra.Command{
		Use:               "validate <tool> [path]",
		Short:             "Check that a path holds a working executable",
		Args:              cobra.RangeArgs(1, 2),
		ValidArgsFunction: completeTools,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLocator(args[0], func(loc *locator.Locator) error {
				path := ""
				if len(args) == 2 {
					path = args[1]
				}
				return runPathValidate(cmd.Context(), cmd.OutOrStdout(), loc, args[0], path)
			})
		},
	}

	cmd.AddCommand(getCmd, setCmd, validateCmd)
	return cmd
}

func withLocator(name string, fn func(loc *locator.Locator) error) error {
	if err := requireTool(name); err != nil {
		return err
	}
	svc, err := loadServices()
	if err != nil {
		return err
	}
	defer svc.Close()
	return fn(svc.locator)
}

func runPathGet(w io.Writer, loc *locator.Locator, name string) error {
	path := loc.ResolvePath(name)
	if path == "" {
		return fmt.Errorf("no path known for %s", name)
	}
	_, err := fmt.Fprintln(w, path)
	return err
}

func runPathSet(ctx context.Context, w io.Writer, loc *locator.Locator, name, path string, validate bool) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if validate && !loc.ValidatePath(ctx, name, abs) {
		return fmt.Errorf("%s is not a working %s executable", abs, name)
	}
	if err := loc.SetPath(name, abs); err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s path set to %s\n", name, abs)
	return err
}

func runPathValidate(ctx context.Context, w io.Writer, loc *locator.Locator, name, path string) error {
	if path == "" {
		path = loc.ResolvePath(name)
	}
	if !loc.ValidatePath(ctx, name, path) {
		return fmt.Errorf("%s is not a working %s executable", path, name)
	}
	_, err := fmt.Fprintf(w, "%s: %s is valid\n", name, path)
	return err
}
