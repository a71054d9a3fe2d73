package bitelog

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/saadjs/bitelog/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage bitelog local configuration",
}

var (
	cfgDBPath        string
	cfgLogLevel      string
	cfgLogFormat     string
	cfgLogFile       string
	cfgLanguage      string
	cfgGoalCalories  float64
	cfgGoalProtein   float64
	cfgGoalCarbs     float64
	cfgGoalFat       float64
	cfgImportMode    string
	cfgProgressEvery int
)

var configSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set configuration values",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveConfigPath()
		if err != nil {
			return err
		}
		next := cfg
		updates := 0
		set := func(flag string, apply func()) {
			if cmd.Flags().Changed(flag) {
				apply()
				updates++
			}
		}
		set("db-path", func() { next.Database.Path = cfgDBPath })
		set("default-log-level", func() { next.Log.Level = cfgLogLevel })
		set("log-format", func() { next.Log.Format = cfgLogFormat })
		set("log-file", func() { next.Log.File = cfgLogFile })
		set("language", func() { next.Language = cfgLanguage })
		set("goal-calories", func() { next.Goals.Calories = cfgGoalCalories })
		set("goal-protein", func() { next.Goals.ProteinG = cfgGoalProtein })
		set("goal-carbs", func() { next.Goals.CarbsG = cfgGoalCarbs })
		set("goal-fat", func() { next.Goals.FatG = cfgGoalFat })
		set("import-mode", func() { next.Import.Mode = cfgImportMode })
		set("progress-every", func() { next.Export.ProgressEvery = cfgProgressEvery })
		if updates == 0 {
			return fmt.Errorf("set at least one flag")
		}
		if err := config.Save(path, next); err != nil {
			return err
		}
		cfg = next
		fmt.Fprintf(cmd.OutOrStdout(), "Updated %d config value(s) in %s\n", updates, path)
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		rows := [][2]string{
			{"database.path", cfg.Database.Path},
			{"log.level", cfg.Log.Level},
			{"log.format", cfg.Log.Format},
			{"log.file", cfg.Log.File},
			{"language", cfg.Language},
			{"goals.calories", fmt.Sprint(cfg.Goals.Calories)},
			{"goals.protein_g", fmt.Sprint(cfg.Goals.ProteinG)},
			{"goals.carbs_g", fmt.Sprint(cfg.Goals.CarbsG)},
			{"goals.fat_g", fmt.Sprint(cfg.Goals.FatG)},
			{"import.mode", cfg.Import.Mode},
			{"export.progress_every", fmt.Sprint(cfg.Export.ProgressEvery)},
		}
		fmt.Fprintln(cmd.OutOrStdout(), "KEY\tVALUE")
		for _, r := range rows {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", r[0], r[1])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configSetCmd, configGetCmd)

	configSetCmd.Flags().StringVar(&cfgDBPath, "db-path", "", "Default database path")
	configSetCmd.Flags().StringVar(&cfgLogLevel, "default-log-level", "", "Log level (debug, info, warn, error)")
	configSetCmd.Flags().StringVar(&cfgLogFormat, "log-format", "", "Log format (text or json)")
	configSetCmd.Flags().StringVar(&cfgLogFile, "log-file", "", "Rotated log file (empty logs to stderr)")
	configSetCmd.Flags().StringVar(&cfgLanguage, "language", "", "Display language")
	configSetCmd.Flags().Float64Var(&cfgGoalCalories, "goal-calories", 0, "Daily calorie goal (0 clears)")
	configSetCmd.Flags().Float64Var(&cfgGoalProtein, "goal-protein", 0, "Daily protein goal in grams")
	configSetCmd.Flags().Float64Var(&cfgGoalCarbs, "goal-carbs", 0, "Daily carbs goal in grams")
	configSetCmd.Flags().Float64Var(&cfgGoalFat, "goal-fat", 0, "Daily fat goal in grams")
	configSetCmd.Flags().StringVar(&cfgImportMode, "import-mode", "", "Default import mode (row or atomic)")
	configSetCmd.Flags().IntVar(&cfgProgressEvery, "progress-every", 0, "Export progress cadence in rows")
}
