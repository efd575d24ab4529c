package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/sarth-shah20/quay/internal/backup"
	"github.com/sarth-shah20/quay/internal/docker"
	"github.com/sarth-shah20/quay/internal/source"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "List, run and restore volume backups",
	RunE:  func(cmd *cobra.Command, args []string) error { return backupListCmd.RunE(cmd, args) },
}

var backupJSON bool

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the backups stored in S3, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := backup.NewClient(cmd.Context(), cfg.Backup)
		if err != nil {
			return err
		}
		backups, err := client.List(cmd.Context())
		if err != nil {
			return err
		}
		if backupJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(backups)
		}
		if len(backups) == 0 {
			fmt.Println("No backups found.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "NAME\tTYPE\tSIZE\tCREATED")
		for _, b := range backups {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", b.Name, b.Type, formatBytes(b.Size), b.Created.Local().Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var backupType string

var backupRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a backup now in the system backup container",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Backup == nil {
			return backup.ErrNotConfigured
		}
		mgr, err := docker.NewManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		out.Info("Triggering %s backup...", backupType)
		output, err := backup.Trigger(cmd.Context(), mgr, backup.Type(backupType))
		if err != nil {
			if output != "" {
				out.Dim("%s", output)
			}
			return err
		}
		out.Ok("Backup completed successfully")
		return nil
	},
}

var restoreOpts struct {
	id     string
	stack  string
	volume string
	output string
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Download a backup and restore a stack's volumes from it",
	Long: `Download a backup, decrypt it with the configured backup password and unpack
it. With --stack, the stack is stopped and its volume folders are replaced
by the ones in the backup; start it again with 'quay start'. Without --stack
the backup is only unpacked into --output.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		client, err := backup.NewClient(ctx, cfg.Backup)
		if err != nil {
			return err
		}
		if restoreOpts.id == "" {
			backups, err := client.List(ctx)
			if err != nil {
				return err
			}
			if len(backups) == 0 {
				return fmt.Errorf("no backups found")
			}
			restoreOpts.id = backups[0].Name
			out.Info("Using latest backup %s", restoreOpts.id)
		}

		work, err := os.MkdirTemp("", "quay-restore-")
		if err != nil {
			return err
		}
		defer os.RemoveAll(work)

		archive := filepath.Join(work, filepath.Base(restoreOpts.id))
		out.Info("Downloading %s...", restoreOpts.id)
		if err := client.Download(ctx, restoreOpts.id, archive); err != nil {
			return err
		}
		plain, err := backup.Decrypt(ctx, archive, cfg.Backup.Password)
		if err != nil {
			return err
		}

		fs := afero.NewOsFs()
		extracted := restoreOpts.output
		switch {
		case restoreOpts.stack != "":
			extracted = filepath.Join(work, "extracted")
		case extracted == "":
			extracted = filepath.Join(paths.Data, "restore", strings.SplitN(filepath.Base(restoreOpts.id), ".", 2)[0])
		}
		if err := backup.Extract(fs, plain, extracted); err != nil {
			return err
		}
		if restoreOpts.stack == "" {
			out.Ok("Backup unpacked into %s", extracted)
			return nil
		}
		return restoreStack(cmd, fs, extracted)
	},
}

func restoreStack(cmd *cobra.Command, fs afero.Fs, extracted string) error {
	name := restoreOpts.stack
	from := backup.VolumePath(extracted, name, restoreOpts.volume)
	if ok, _ := afero.DirExists(fs, from); !ok {
		return fmt.Errorf("backup has no data for %s", filepath.Join(name, restoreOpts.volume))
	}
	to := paths.StackVolumesDir(name)
	if restoreOpts.volume != "" {
		to = filepath.Join(to, restoreOpts.volume)
	}

	ctl, err := newController()
	if err != nil {
		return err
	}
	if err := ctl.Stop(cmd.Context(), name, true); err != nil {
		return err
	}
	if err := fs.RemoveAll(to); err != nil {
		return fmt.Errorf("clear %s: %w", to, err)
	}
	if err := source.CopyTree(fs, from, to); err != nil {
		return err
	}
	out.Ok("Restored %s into %s", filepath.Join(name, restoreOpts.volume), to)
	return nil
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

func init() {
	backupListCmd.Flags().BoolVar(&backupJSON, "json", false, "print backups as JSON")
	backupRunCmd.Flags().StringVar(&backupType, "type", string(backup.Manual), "backup type: manual, daily, weekly or monthly")
	f := backupRestoreCmd.Flags()
	f.StringVar(&restoreOpts.id, "id", "", "backup file to restore (default: the newest)")
	f.StringVar(&restoreOpts.stack, "stack", "", "stack whose volumes are replaced")
	f.StringVar(&restoreOpts.volume, "volume", "", "restore only this volume of --stack")
	f.StringVarP(&restoreOpts.output, "output", "o", "", "directory to unpack into when no --stack is given (default: <data-dir>/restore/<backup>)")
	backupCmd.AddCommand(backupListCmd, backupRunCmd, backupRestoreCmd)
	rootCmd.AddCommand(backupCmd)
}
