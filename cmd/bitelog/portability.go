package bitelog

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/saadjs/bitelog/internal/fsgateway"
	"github.com/saadjs/bitelog/internal/portability"
	"github.com/saadjs/bitelog/internal/service"
)

var (
	exportFormat   string
	exportOut      string
	exportProgress bool

	importIn       string
	importMode     string
	importBackup   bool
	importProgress bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the food log, newest first (csv or xlsx)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(exportOut) == "" {
			return fmt.Errorf("--out is required")
		}
		opts := portability.ExportOptions{ProgressEvery: cfg.Export.ProgressEvery}
		if exportProgress {
			opts.Progress = func(p portability.Progress) bool {
				fmt.Fprintf(cmd.ErrOrStderr(), "exported %d/%d (%.0f%%)\n", p.Current, p.Total, p.Fraction*100)
				return false
			}
		}
		return withDB(func(sqldb *sql.DB) error {
			store := service.NewLogStore(sqldb)
			var (
				n   int
				err error
			)
			switch strings.ToLower(strings.TrimSpace(exportFormat)) {
			case "csv":
				n, err = portability.ExportCSV(cmd.Context(), fsgateway.OS{}, exportOut, store, opts)
			case "xlsx":
				n, err = portability.ExportXLSX(cmd.Context(), exportOut, store, opts)
			default:
				return fmt.Errorf("unsupported --format %q (want csv or xlsx)", exportFormat)
			}
			if err != nil {
				return err
			}
			if cmd.Context().Err() != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Export interrupted; wrote %d entries to %s\n", n, exportOut)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d entries to %s\n", n, exportOut)
			return nil
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a CSV food log as standalone entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(importIn) == "" {
			return fmt.Errorf("--in is required")
		}
		modeFlag := importMode
		if modeFlag == "" {
			modeFlag = cfg.Import.Mode
		}
		mode, err := portability.ParseImportMode(modeFlag)
		if err != nil {
			return err
		}
		opts := portability.ImportOptions{Mode: mode}
		if importProgress {
			opts.Progress = func(p portability.Progress) bool {
				fmt.Fprintf(cmd.ErrOrStderr(), "imported %d/%d\n", p.Current, p.Total)
				return false
			}
		}
		return withDB(func(sqldb *sql.DB) error {
			if importBackup {
				path, err := resolveDBPath()
				if err != nil {
					return err
				}
				out := snapshotPath(filepath.Join(filepath.Dir(path), "backups"), "pre-import")
				if _, err := service.CreateBackup(sqldb, out); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Backup: %s\n", out)
			}

			res, err := portability.ImportCSV(cmd.Context(), fsgateway.OS{}, importIn, service.NewLogStore(sqldb), opts)
			if err != nil {
				if res.Imported > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d rows before the error (batch %s)\n", res.Imported, res.Total, res.BatchID)
				}
				return err
			}
			if res.Cancelled {
				fmt.Fprintf(cmd.OutOrStdout(), "Import cancelled after %d of %d rows (batch %s)\n", res.Imported, res.Total, res.BatchID)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d rows (batch %s)\n", res.Imported, res.BatchID)
			return nil
		})
	},
}

var undoImportCmd = &cobra.Command{
	Use:   "undo-import <batch-id>",
	Short: "Delete every log entry created by one import",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			n, err := service.DeleteImportBatch(sqldb, strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries from batch %s\n", n, args[0])
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(exportCmd, importCmd, undoImportCmd)

	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "Export format (csv or xlsx)")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "Output file path")
	exportCmd.Flags().BoolVar(&exportProgress, "progress", false, "Print progress to stderr")

	importCmd.Flags().StringVar(&importIn, "in", "", "CSV file to import")
	importCmd.Flags().StringVar(&importMode, "mode", "", "Commit mode: row or atomic (default from config)")
	importCmd.Flags().BoolVar(&importBackup, "backup", false, "Back up the database before importing")
	importCmd.Flags().BoolVar(&importProgress, "progress", false, "Print progress to stderr")
}
