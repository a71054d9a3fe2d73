package bitelog

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/saadjs/bitelog/internal/service"
)

var doctorFix bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check usage counters and catalog links",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(sqldb *sql.DB) error {
			report, err := service.RunDoctor(sqldb, doctorFix)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Usage drift: %d\n", report.UsageDrift)
			fmt.Fprintf(out, "Dangling links: %d\n", report.DanglingLinks)
			fmt.Fprintf(out, "Detached entries: %d\n", report.DetachedEntries)
			fmt.Fprintf(out, "Standalone entries: %d\n", report.StandaloneEntries)
			if doctorFix {
				fmt.Fprintf(out, "Fixed usage rows: %d\n", report.FixedUsageRows)
				fmt.Fprintf(out, "Fixed links: %d\n", report.FixedLinks)
				report, err = service.RunDoctor(sqldb, false)
				if err != nil {
					return err
				}
			}
			if report.UsageDrift > 0 || report.DanglingLinks > 0 {
				return fmt.Errorf("doctor found integrity issues")
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "Recompute usage counters and detach dangling links")
}
