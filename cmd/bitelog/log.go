package bitelog

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/saadjs/bitelog/internal/model"
	"github.com/saadjs/bitelog/internal/service"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Record and review what you ate",
}

var (
	logCatalogID int64
	logMeal      string
	logServings  float64
	logDate      string
	logTime      string

	logBrand       string
	logProduct     string
	logPortionUnit string
	logCalories    float64
	logProtein     float64
	logFat         float64
	logNetCarbs    float64
	logFiber       float64

	listDate string
	listMeal string
	listFrom string
	listTo   string

	copyFrom string
	copyTo   string

	summaryDate string
)

var logAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Log a food, from the catalog (--catalog) or by hand",
	RunE: func(cmd *cobra.Command, args []string) error {
		meal, err := model.ParseMealType(logMeal)
		if err != nil {
			return err
		}
		at, err := parseDateTimeOrNow(logDate, logTime)
		if err != nil {
			return err
		}
		in := service.CreateLogEntryInput{ConsumedAt: at, MealType: meal, Servings: logServings}
		if logCatalogID > 0 {
			id := logCatalogID
			in.CatalogID = &id
		} else if strings.TrimSpace(logProduct) != "" {
			in.Snapshot = &model.NutritionSnapshot{
				Brand:       logBrand,
				Product:     logProduct,
				PortionSize: 1,
				PortionUnit: logPortionUnit,
				Calories:    logCalories,
				ProteinG:    logProtein,
				FatG:        logFat,
				NetCarbsG:   logNetCarbs,
				FiberG:      logFiber,
			}
		}
		return withDB(func(sqldb *sql.DB) error {
			e, err := service.CreateLogEntry(sqldb, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged entry %d (%.0f kcal)\n", e.ID, e.Calories())
			return nil
		})
	},
}

var logListCmd = &cobra.Command{
	Use:   "list",
	Short: "List log entries for a day or a date range",
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := logQueryFromFlags()
		if err != nil {
			return err
		}
		return withDB(func(sqldb *sql.DB) error {
			entries, err := service.QueryLogEntries(sqldb, q)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "ID\tTIME\tMEAL\tFOOD\tSERVINGS\tKCAL\tP\tC\tF\tLINK")
			for _, e := range entries {
				n := e.Nutrition()
				fmt.Fprintf(out, "%d\t%s\t%s\t%s\t%g\t%.0f\t%.1f\t%.1f\t%.1f\t%s\n",
					e.ID, e.ConsumedAt.Format("2006-01-02 15:04"), e.MealType, foodLabel(n), e.Servings,
					e.Calories(), e.ProteinG(), e.CarbsG(), e.FatG(), linkLabel(e))
			}
			return nil
		})
	},
}

func logQueryFromFlags() (service.LogQuery, error) {
	meal, err := parseMealFlag(listMeal)
	if err != nil {
		return service.LogQuery{}, err
	}
	q := service.LogQuery{MealType: meal}
	if listFrom == "" && listTo == "" {
		day, err := parseDateOrToday("date", listDate)
		if err != nil {
			return q, err
		}
		start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.Local)
		q.From, q.To = start, start.AddDate(0, 0, 1)
		return q, nil
	}
	if listFrom != "" {
		from, err := parseDateOrToday("from", listFrom)
		if err != nil {
			return q, err
		}
		q.From = from
	}
	if listTo != "" {
		to, err := parseDateOrToday("to", listTo)
		if err != nil {
			return q, err
		}
		// --to is inclusive on the command line.
		q.To = to.AddDate(0, 0, 1)
	}
	return q, nil
}

func foodLabel(n model.NutritionSnapshot) string {
	if n.Brand == "" {
		return n.Product
	}
	return n.Brand + " " + n.Product
}

var logShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a log entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseInt64Arg("log id", args[0])
		if err != nil {
			return err
		}
		return withDB(func(sqldb *sql.DB) error {
			e, err := service.LogEntryByID(sqldb, id)
			if err != nil {
				return err
			}
			n := e.Nutrition()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID: %d\n", e.ID)
			fmt.Fprintf(out, "Consumed: %s\n", e.ConsumedAt.Format(time.RFC3339))
			fmt.Fprintf(out, "Meal: %s\n", e.MealType)
			fmt.Fprintf(out, "Food: %s (%g %s)\n", foodLabel(n), n.PortionSize, n.PortionUnit)
			fmt.Fprintf(out, "Servings: %g\n", e.Servings)
			fmt.Fprintf(out, "Calories: %.0f\nProtein: %.1f\nFat: %.1f\nCarbs: %.1f (fiber %.1f)\n",
				e.Calories(), e.ProteinG(), e.FatG(), e.CarbsG(), e.FiberG())
			fmt.Fprintf(out, "Link: %s\n", linkLabel(*e))
			if e.ImportBatch != "" {
				fmt.Fprintf(out, "Import batch: %s\n", e.ImportBatch)
			}
			return nil
		})
	},
}

var logDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a log entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseInt64Arg("log id", args[0])
		if err != nil {
			return err
		}
		return withDB(func(sqldb *sql.DB) error {
			if err := service.DeleteLogEntry(sqldb, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted log entry %d\n", id)
			return nil
		})
	},
}

var logServingsCmd = &cobra.Command{
	Use:   "servings <id> <servings>",
	Short: "Change how many servings a log entry counts",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseInt64Arg("log id", args[0])
		if err != nil {
			return err
		}
		servings, err := parseFloatArg("servings", args[1])
		if err != nil {
			return err
		}
		return withDB(func(sqldb *sql.DB) error {
			if err := service.UpdateLogEntryServings(sqldb, id, servings); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Log entry %d now counts %g servings\n", id, servings)
			return nil
		})
	},
}

var logRelinkCmd = &cobra.Command{
	Use:   "relink <id> <catalog-id>",
	Short: "Point a linked or standalone log entry at another catalog entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseInt64Arg("log id", args[0])
		if err != nil {
			return err
		}
		catalogID, err := parseInt64Arg("catalog id", args[1])
		if err != nil {
			return err
		}
		return withDB(func(sqldb *sql.DB) error {
			if err := service.RelinkLogEntry(sqldb, id, catalogID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Linked log entry %d to catalog entry %d\n", id, catalogID)
			return nil
		})
	},
}

var logCopyDayCmd = &cobra.Command{
	Use:   "copy-day",
	Short: "Copy every entry of one day onto another",
	RunE: func(cmd *cobra.Command, args []string) error {
		if copyFrom == "" || copyTo == "" {
			return fmt.Errorf("--from and --to are required")
		}
		from, err := parseDateOrToday("from", copyFrom)
		if err != nil {
			return err
		}
		to, err := parseDateOrToday("to", copyTo)
		if err != nil {
			return err
		}
		return withDB(func(sqldb *sql.DB) error {
			n, err := service.CopyDay(sqldb, from, to)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Copied %d entries from %s to %s\n", n, copyFrom, copyTo)
			return nil
		})
	},
}

var logSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show per-meal and daily totals against your goals",
	RunE: func(cmd *cobra.Command, args []string) error {
		day, err := parseDateOrToday("date", summaryDate)
		if err != nil {
			return err
		}
		goals := service.NutritionGoals{
			Calories: cfg.Goals.Calories,
			ProteinG: cfg.Goals.ProteinG,
			CarbsG:   cfg.Goals.CarbsG,
			FatG:     cfg.Goals.FatG,
		}
		return withDB(func(sqldb *sql.DB) error {
			s, err := service.DailySummary(sqldb, day, goals)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Date: %s\n", s.Date)
			fmt.Fprintln(out, "MEAL\tENTRIES\tKCAL\tP\tC\tF")
			for _, m := range s.Meals {
				fmt.Fprintf(out, "%s\t%d\t%.0f\t%.1f\t%.1f\t%.1f\n", m.MealType, m.Entries, m.Calories, m.ProteinG, m.CarbsG, m.FatG)
			}
			fmt.Fprintf(out, "total\t%d\t%.0f\t%.1f\t%.1f\t%.1f\n", s.Total.Entries, s.Total.Calories, s.Total.ProteinG, s.Total.CarbsG, s.Total.FatG)
			if s.HasGoals {
				fmt.Fprintf(out, "remaining\t-\t%.0f\t%.1f\t%.1f\t%.1f\n", s.RemainingCalories, s.RemainingProteinG, s.RemainingCarbsG, s.RemainingFatG)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(logCmd)
	logCmd.AddCommand(logAddCmd, logListCmd, logShowCmd, logDeleteCmd, logServingsCmd, logRelinkCmd, logCopyDayCmd, logSummaryCmd)

	logAddCmd.Flags().Int64Var(&logCatalogID, "catalog", 0, "Catalog entry id to log")
	logAddCmd.Flags().StringVar(&logMeal, "meal", "", "Meal type (breakfast, lunch, dinner, snack)")
	logAddCmd.Flags().Float64Var(&logServings, "servings", 1, "Number of servings")
	logAddCmd.Flags().StringVar(&logDate, "date", "", "Date (YYYY-MM-DD, default now)")
	logAddCmd.Flags().StringVar(&logTime, "time", "", "Time (HH:MM)")
	logAddCmd.Flags().StringVar(&logBrand, "brand", "", "Brand for a manual entry")
	logAddCmd.Flags().StringVar(&logProduct, "product", "", "Product for a manual entry")
	logAddCmd.Flags().StringVar(&logPortionUnit, "portion-unit", "serving", "Portion unit for a manual entry")
	logAddCmd.Flags().Float64Var(&logCalories, "calories", 0, "Calories per serving for a manual entry")
	logAddCmd.Flags().Float64Var(&logProtein, "protein", 0, "Protein grams per serving for a manual entry")
	logAddCmd.Flags().Float64Var(&logFat, "fat", 0, "Fat grams per serving for a manual entry")
	logAddCmd.Flags().Float64Var(&logNetCarbs, "net-carbs", 0, "Net carbs grams per serving for a manual entry")
	logAddCmd.Flags().Float64Var(&logFiber, "fiber", 0, "Fiber grams per serving for a manual entry")
	_ = logAddCmd.MarkFlagRequired("meal")

	logListCmd.Flags().StringVar(&listDate, "date", "", "Day to list (YYYY-MM-DD, default today)")
	logListCmd.Flags().StringVar(&listFrom, "from", "", "First day of a range (YYYY-MM-DD)")
	logListCmd.Flags().StringVar(&listTo, "to", "", "Last day of a range, inclusive (YYYY-MM-DD)")
	logListCmd.Flags().StringVar(&listMeal, "meal", "", "Only this meal type")

	logCopyDayCmd.Flags().StringVar(&copyFrom, "from", "", "Source day (YYYY-MM-DD)")
	logCopyDayCmd.Flags().StringVar(&copyTo, "to", "", "Target day (YYYY-MM-DD)")

	logSummaryCmd.Flags().StringVar(&summaryDate, "date", "", "Day to summarize (YYYY-MM-DD, default today)")
}
