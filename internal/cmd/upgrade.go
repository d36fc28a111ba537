package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pilgrims/utilup/internal/interactive"
	"github.com/pilgrims/utilup/internal/output"
	"github.com/pilgrims/utilup/internal/upgrade"
)

var (
	forceUpgrade       bool
	upgradeAll         bool
	upgradeInteractive bool
)

func newUpgradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upgrade [tool...]",
		Short: "Download and install the latest release of a tool",
		Long: `Upgrade checks the installed version against the latest release and, when a
newer one exists, downloads, verifies and installs it next to the current
executable. Press Ctrl-C to cancel; partial downloads are removed.

With --all every tool with an update available is upgraded in turn; add
--interactive to choose which.

Examples:
  utilup upgrade ffmpeg
  utilup upgrade yt-dlp --force
  utilup upgrade --all -i
  utilup upgrade ffmpeg -o json`,
		ValidArgsFunction: completeTools,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !upgradeAll {
				return fmt.Errorf("specify a tool or use --all (known tools: %v)", toolNames())
			}
			for _, name := range args {
				if err := requireTool(name); err != nil {
					return err
				}
			}
			var prompter *interactive.Prompter
			if upgradeInteractive {
				if !interactive.IsTerminal() {
					return fmt.Errorf("interactive mode requires a terminal")
				}
				prompter = interactive.NewPrompterWithIO(cmd.InOrStdin(), cmd.ErrOrStderr())
			}

			svc, err := loadServices()
			if err != nil {
				return err
			}
			defer svc.Close()

			w, err := newWriter(cmd.OutOrStdout())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if upgradeAll {
				return runUpgradeAll(ctx, svc, w, cmd.ErrOrStderr(), prompter, forceUpgrade)
			}
			if len(args) == 1 {
				return runUpgrade(ctx, svc, w, cmd.ErrOrStderr(), args[0], forceUpgrade)
			}
			return runUpgrades(ctx, svc, w, cmd.ErrOrStderr(), args, forceUpgrade)
		},
	}

	cmd.Flags().BoolVar(&forceUpgrade, "force", false, "Install the latest release even if the installed version is current or unknown")
	cmd.Flags().BoolVar(&upgradeAll, "all", false, "Upgrade every tool with an update available")
	cmd.Flags().BoolVarP(&upgradeInteractive, "interactive", "i", false, "Ask before upgrading each tool")

	return cmd
}

// upgradeOne runs a single upgrade with the operation timeout applied and
// progress drawn on stderr for text output.
func upgradeOne(ctx context.Context, svc *services, structured bool, stderr io.Writer, name string, force bool) (upgrade.UpgradeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, svc.cfg.OperationTimeout)
	defer cancel()

	var printer *progressPrinter
	var sink upgrade.ProgressFunc
	if !quiet && !structured {
		printer = newProgressPrinter(stderr, isTerminal(stderr))
		sink = printer.Render
	}

	res, err := svc.manager.Upgrade(ctx, name, upgrade.UpgradeOptions{Force: force}, sink)
	if printer != nil {
		printer.Done()
	}
	return res, err
}

func runUpgrade(ctx context.Context, svc *services, w *output.Writer, stderr io.Writer, name string, force bool) error {
	res, err := upgradeOne(ctx, svc, w.Structured(), stderr, name, force)
	if err != nil {
		return err
	}
	if err := w.Write(upgradeReport(res)); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("%s upgrade %s", name, res.State)
	}
	return nil
}

// runUpgrades upgrades names in order. A failed upgrade does not stop the
// rest unless the run was cancelled.
func runUpgrades(ctx context.Context, svc *services, w *output.Writer, stderr io.Writer, names []string, force bool) error {
	var results upgradeReports
	var errs []error
	for _, name := range names {
		if ctx.Err() != nil {
			break
		}
		res, err := upgradeOne(ctx, svc, w.Structured(), stderr, name, force)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !w.Structured() {
			if err := w.Write(upgradeReport(res)); err != nil {
				return err
			}
		}
		results = append(results, upgradeReport(res))
		if !res.Success {
			errs = append(errs, fmt.Errorf("%s upgrade %s", name, res.State))
		}
	}
	if w.Structured() {
		if err := w.Write(results); err != nil {
			return err
		}
	}
	return errors.Join(errs...)
}

// runUpgradeAll checks every tool and upgrades those with an update
// available, or all of them when force is set. A non-nil p asks first.
func runUpgradeAll(ctx context.Context, svc *services, w *output.Writer, stderr io.Writer, p *interactive.Prompter, force bool) error {
	checks := svc.manager.CheckAll(ctx)

	var names []string
	for _, c := range checks {
		if c.UpdateAvailable || force {
			names = append(names, c.Name)
		}
	}
	if len(names) == 0 {
		return w.Write(upgradeReports{})
	}

	if p != nil {
		candidates := make([]upgrade.UpdateCheck, 0, len(names))
		for _, c := range checks {
			if slices.Contains(names, c.Name) {
				c.UpdateAvailable = true
				candidates = append(candidates, c)
			}
		}
		selected, proceed := p.SelectUpgrades(candidates)
		if !proceed {
			return nil
		}
		names = selected
	}
	return runUpgrades(ctx, svc, w, stderr, names, force)
}
