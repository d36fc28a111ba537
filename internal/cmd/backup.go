package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pilgrims/utilup/internal/backup"
	"github.com/pilgrims/utilup/internal/interactive"
	"github.com/pilgrims/utilup/internal/output"
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "List and restore executables replaced by upgrades",
		Long: `Before an upgrade overwrites a tool, utilup copies the executables it
replaces into <data_dir>/backups/<tool>/. The newest backup_keep snapshots
per tool are retained (default 3, 0 disables snapshots).

Use 'utilup backup restore <tool>' to put the most recent snapshot back.`,
	}

	cmd.AddCommand(newBackupListCmd())
	cmd.AddCommand(newBackupRestoreCmd())
	cmd.AddCommand(newBackupDeleteCmd())
	cmd.AddCommand(newBackupPruneCmd())

	return cmd
}

func newBackupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "list <tool>",
		Short:             "List a tool's backups, newest first",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeTools,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackups(args[0], func(m *backup.Manager) error {
				w, err := newWriter(cmd.OutOrStdout())
				if err != nil {
					return err
				}
				return runBackupList(w, m, args[0])
			})
		},
	}
}

func newBackupRestoreCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "restore <tool> [id]",
		Short: "Copy a backup over the installed executables",
		Long: `Restore copies the files of a backup back into the directory they were
taken from. Without an id, or with 'latest', the newest backup is used.`,
		Args:              cobra.RangeArgs(1, 2),
		ValidArgsFunction: completeTools,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := "latest"
			if len(args) == 2 {
				id = args[1]
			}
			return withBackups(args[0], func(m *backup.Manager) error {
				var prompter *interactive.Prompter
				if !yes {
					prompter = interactive.NewPrompterWithIO(cmd.InOrStdin(), cmd.OutOrStdout())
				}
				return runBackupRestore(cmd.OutOrStdout(), prompter, m, args[0], id)
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation prompt")

	return cmd
}

func newBackupDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "delete <tool> <id>",
		Short:             "Delete a backup",
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeTools,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackups(args[0], func(m *backup.Manager) error {
				if err := m.Delete(args[0], args[1]); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "Backup deleted: %s/%s\n", args[0], args[1])
				return err
			})
		},
	}
}

func newBackupPruneCmd() *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:               "prune <tool>",
		Short:             "Remove old backups of a tool",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeTools,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackups(args[0], func(m *backup.Manager) error {
				w, err := newWriter(cmd.OutOrStdout())
				if err != nil {
					return err
				}
				return runBackupPrune(w, m, args[0], keep)
			})
		},
	}

	cmd.Flags().IntVar(&keep, "keep", backup.DefaultKeepCount, "Number of backups to keep")

	return cmd
}

func withBackups(name string, fn func(m *backup.Manager) error) error {
	if err := requireTool(name); err != nil {
		return err
	}
	svc, err := loadServices()
	if err != nil {
		return err
	}
	defer svc.Close()
	return fn(svc.backups)
}

type backupList struct {
	Dir     string              `json:"dir" yaml:"dir"`
	Backups []backup.BackupInfo `json:"backups" yaml:"backups"`
}

func (l backupList) RenderText(w io.Writer) error {
	if len(l.Backups) == 0 {
		_, err := fmt.Fprintf(w, "No backups found in %s\n", l.Dir)
		return err
	}
	rows := make([][]string, 0, len(l.Backups))
	for _, b := range l.Backups {
		rows = append(rows, []string{
			b.ID,
			b.Version,
			b.CreatedAt.Format("2006-01-02 15:04:05"),
			humanize.Bytes(uint64(b.Size)),
		})
	}
	return output.Table(w, []string{"ID", "VERSION", "CREATED", "SIZE"}, rows)
}

func runBackupList(w *output.Writer, m *backup.Manager, name string) error {
	backups, err := m.List(name)
	if err != nil {
		return err
	}
	return w.Write(backupList{Dir: m.Dir(), Backups: backups})
}

// runBackupRestore asks p for confirmation before restoring. A nil p skips
// the prompt.
func runBackupRestore(w io.Writer, p *interactive.Prompter, m *backup.Manager, name, id string) error {
	b, err := m.Get(name, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Restoring %s %s from backup %s\n", name, displayVersion(b.Version), b.ID)
	for _, f := range b.Files {
		fmt.Fprintf(w, "  %s\n", filepath.Join(b.SourceDir, f))
	}

	if p != nil && !p.Confirm("Proceed?") {
		_, err := fmt.Fprintln(w, "Restore cancelled.")
		return err
	}

	if _, err := m.Restore(name, b.ID); err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, "Restored successfully")
	return err
}

type pruneReport backup.PruneResult

func (r pruneReport) RenderText(w io.Writer) error {
	if len(r.Deleted) == 0 {
		_, err := fmt.Fprintf(w, "No backups to prune. Keeping %d backups.\n", r.Kept)
		return err
	}
	if _, err := fmt.Fprintf(w, "Pruned %d backup(s), keeping %d:\n", len(r.Deleted), r.Kept); err != nil {
		return err
	}
	for _, b := range r.Deleted {
		if _, err := fmt.Fprintf(w, "  - %s (%s)\n", b.ID, b.CreatedAt.Format("2006-01-02 15:04:05")); err != nil {
			return err
		}
	}
	return nil
}

func runBackupPrune(w *output.Writer, m *backup.Manager, name string, keep int) error {
	result, err := m.Prune(name, keep)
	if err != nil {
		return err
	}
	return w.Write(pruneReport(*result))
}

func displayVersion(v string) string {
	if v == "" {
		return "(unknown version)"
	}
	return v
}
