package bitelog

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/saadjs/bitelog/internal/app"
	"github.com/saadjs/bitelog/internal/config"
	"github.com/saadjs/bitelog/internal/logging"
)

var (
	dbPath     string
	configPath string
	logLevel   string

	// cfg is loaded before every command runs.
	cfg = config.Default()

	// closeLog releases the log file opened by loadConfig.
	closeLog = func() error { return nil }
)

var rootCmd = &cobra.Command{
	Use:           "bitelog",
	Short:         "bitelog tracks what you eat against a reusable food catalog",
	Long:          "bitelog is a local-first food log with a nutrition catalog, usage-ranked search, and CSV/XLSX import and export.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig()
	},
}

// Execute runs the CLI. Ctrl-C cancels the running command's context, which
// long imports and exports poll between rows.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if cerr := closeLog(); cerr != nil {
		fmt.Fprintln(os.Stderr, "close log file:", cerr)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to SQLite database")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: user config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
}

func loadConfig() error {
	path, err := resolveConfigPath()
	if err != nil {
		return err
	}
	loaded, err := config.Load(path)
	if err != nil {
		return err
	}
	if strings.TrimSpace(logLevel) != "" {
		loaded.Log.Level = logLevel
	}
	cfg = loaded
	// A command run in-process after another must not leak the earlier file.
	_ = closeLog()
	_, closeLog = logging.Setup(cfg.Log)
	return nil
}

func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return app.DefaultConfigPath()
}

func resolveDBPath() (string, error) {
	if dbPath != "" {
		return dbPath, nil
	}
	if strings.TrimSpace(cfg.Database.Path) != "" {
		return cfg.Database.Path, nil
	}
	return app.DefaultDBPath()
}
