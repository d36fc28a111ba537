package cmd

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/pilgrims/utilup/internal/output"
	"github.com/pilgrims/utilup/internal/update"
	"github.com/pilgrims/utilup/internal/upgrade"
)

func statusColor(status update.ComparisonResult) *color.Color {
	switch status {
	case update.UpToDate, update.NewerThanLatest:
		return color.New(color.FgGreen)
	case update.UpdateAvailable:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}

type infoReport []upgrade.ToolInfo

func (r infoReport) RenderText(w io.Writer) error {
	rows := make([][]string, 0, len(r))
	for _, info := range r {
		size := ""
		if info.DownloadSize > 0 {
			size = humanize.Bytes(uint64(info.DownloadSize))
		}
		rows = append(rows, []string{info.Name, info.CurrentVersion, info.LatestVersion, info.ExecutablePath, size})
	}
	if err := output.Table(w, []string{"TOOL", "INSTALLED", "LATEST", "PATH", "DOWNLOAD"}, rows); err != nil {
		return err
	}

	for _, info := range r {
		line := fmt.Sprintf("%s: %s", info.Name, info.StatusMessage)
		if info.SuggestedAction != "" {
			line += fmt.Sprintf(" (%s)", info.SuggestedAction)
		}
		if _, err := fmt.Fprintln(w, statusColor(info.UpdateStatus).Sprint(line)); err != nil {
			return err
		}
		if info.ErrorMessage != "" {
			if _, err := fmt.Fprintf(w, "  %s\n", info.ErrorMessage); err != nil {
				return err
			}
		}
	}
	return nil
}

type checkReport []upgrade.UpdateCheck

func (r checkReport) RenderText(w io.Writer) error {
	for _, c := range r {
		var line string
		switch c.Status {
		case update.UpdateAvailable:
			line = fmt.Sprintf("%s: update available (%s → %s)", c.Name, c.CurrentVersion, c.LatestVersion)
		case update.UpToDate, update.NewerThanLatest:
			line = fmt.Sprintf("%s: up to date (%s)", c.Name, c.CurrentVersion)
		default:
			line = fmt.Sprintf("%s: unable to check: %s", c.Name, c.ErrorMessage)
		}
		if _, err := fmt.Fprintln(w, statusColor(c.Status).Sprint(line)); err != nil {
			return err
		}
	}
	return nil
}

type upgradeReport upgrade.UpgradeResult

func (r upgradeReport) RenderText(w io.Writer) error {
	if r.Success {
		if _, err := fmt.Fprintln(w, color.GreenString("✓ %s", r.Message)); err != nil {
			return err
		}
		if r.BackupID != "" {
			_, err := fmt.Fprintf(w, "  previous executables saved as backup %s\n", r.BackupID)
			return err
		}
		return nil
	}
	if r.State == upgrade.PhaseCancelled {
		_, err := fmt.Fprintln(w, color.YellowString("! %s (%s)", r.Message, r.ErrorMessage))
		return err
	}
	_, err := fmt.Fprintln(w, color.RedString("✗ %s: %s", r.Message, r.ErrorMessage))
	return err
}

type upgradeReports []upgradeReport

func (r upgradeReports) RenderText(w io.Writer) error {
	if len(r) == 0 {
		_, err := fmt.Fprintln(w, "All tools are up to date")
		return err
	}
	for _, res := range r {
		if err := res.RenderText(w); err != nil {
			return err
		}
	}
	return nil
}
