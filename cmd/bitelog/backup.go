package bitelog

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/saadjs/bitelog/internal/service"
)

var (
	snapshotOut  string
	snapshotDir  string
	restoreForce bool
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Snapshot the food log database and restore it",
	Long: "Snapshots are consistent copies of the whole database (catalog and log) taken with VACUUM INTO.\n" +
		"Each one gets a .sha256 sidecar that restore checks before replacing the live file.",
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Write a snapshot of the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			out := snapshotOut
			if out == "" {
				dir, err := snapshotDirectory()
				if err != nil {
					return err
				}
				out = snapshotPath(dir, "")
			}
			info, err := service.CreateBackup(sqldb, out)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Snapshot %s (%d bytes, sha256 %s)\n", info.Path, info.SizeBytes, info.Checksum)
			return nil
		})
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show snapshots, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := snapshotDirectory()
		if err != nil {
			return err
		}
		snaps, err := service.ListBackups(dir)
		if err != nil {
			return err
		}
		if len(snaps) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No snapshots in %s\n", dir)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), "TAKEN\tBYTES\tSHA256\tPATH")
		for _, s := range snaps {
			sum := s.Checksum
			if sum == "" {
				sum = "-"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%s\t%s\n", s.CreatedAt.Local().Format("2006-01-02 15:04"), s.SizeBytes, sum, s.Path)
		}
		return nil
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore <snapshot.db>",
	Short: "Replace the database with a verified snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := resolveDBPath()
		if err != nil {
			return err
		}
		src := strings.TrimSpace(args[0])
		if err := service.RestoreBackup(src, target, restoreForce); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Database %s now matches snapshot %s\n", target, src)
		return nil
	},
}

// snapshotDirectory is --dir, or a backups folder beside the database.
func snapshotDirectory() (string, error) {
	if snapshotDir != "" {
		return snapshotDir, nil
	}
	path, err := resolveDBPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(path), "backups"), nil
}

// snapshotPath names a timestamped snapshot in dir. A non-empty reason is
// folded into the name, e.g. bitelog-pre-import-20260301-080000.db.
func snapshotPath(dir, reason string) string {
	name := "bitelog-"
	if reason != "" {
		name += reason + "-"
	}
	return filepath.Join(dir, name+time.Now().Format("20060102-150405")+".db")
}

func init() {
	rootCmd.AddCommand(backupCmd)
	backupCmd.AddCommand(backupCreateCmd, backupListCmd, backupRestoreCmd)

	backupCmd.PersistentFlags().StringVar(&snapshotDir, "dir", "", "Snapshot folder (default: backups/ beside the database)")
	backupCreateCmd.Flags().StringVar(&snapshotOut, "out", "", "Write the snapshot to this exact file instead of a timestamped name")
	backupRestoreCmd.Flags().BoolVar(&restoreForce, "force", false, "Replace a database that already exists")
}
