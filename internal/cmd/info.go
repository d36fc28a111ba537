package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/pilgrims/utilup/internal/upgrade"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "info [tool...]",
		Short:             "Show installed and latest versions",
		Long:              `Info reports where each tool is installed, its version, the latest release and the download that an upgrade would fetch.`,
		ValidArgsFunction: completeTools,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := loadServices()
			if err != nil {
				return err
			}
			defer svc.Close()

			w, err := newWriter(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			report, err := collectInfo(cmd.Context(), svc.manager, args)
			if err != nil {
				return err
			}
			return w.Write(report)
		},
	}
}

func collectInfo(ctx context.Context, m *upgrade.Manager, names []string) (infoReport, error) {
	if len(names) == 0 {
		return infoReport(m.InfoAll(ctx)), nil
	}
	report := make(infoReport, 0, len(names))
	for _, name := range names {
		info, err := m.Info(ctx, name)
		if err != nil {
			return nil, err
		}
		report = append(report, info)
	}
	return report, nil
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "check [tool...]",
		Short:             "Check for newer releases",
		ValidArgsFunction: completeTools,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := loadServices()
			if err != nil {
				return err
			}
			defer svc.Close()

			w, err := newWriter(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			report, err := collectChecks(cmd.Context(), svc.manager, args)
			if err != nil {
				return err
			}
			return w.Write(report)
		},
	}
}

func collectChecks(ctx context.Context, m *upgrade.Manager, names []string) (checkReport, error) {
	if len(names) == 0 {
		return checkReport(m.CheckAll(ctx)), nil
	}
	report := make(checkReport, 0, len(names))
	for _, name := range names {
		check, err := m.CheckForUpdate(ctx, name)
		if err != nil {
			return nil, err
		}
		report = append(report, check)
	}
	return report, nil
}
