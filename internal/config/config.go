// Package config loads and saves the bitelog settings file.
//
// Settings are injected into the commands that need them; nothing in the
// core reads global state.
package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/saadjs/bitelog/internal/errors"
)

const envPrefix = "BITELOG"

// Import modes.
const (
	ImportModeRow    = "row"
	ImportModeAtomic = "atomic"
)

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// GoalsConfig holds the daily nutrition targets used by the summary.
type GoalsConfig struct {
	Calories float64 `mapstructure:"calories" validate:"gte=0"`
	ProteinG float64 `mapstructure:"protein_g" validate:"gte=0"`
	CarbsG   float64 `mapstructure:"carbs_g" validate:"gte=0"`
	FatG     float64 `mapstructure:"fat_g" validate:"gte=0"`
}

type ImportConfig struct {
	Mode string `mapstructure:"mode" validate:"oneof=row atomic"`
}

type ExportConfig struct {
	ProgressEvery int `mapstructure:"progress_every" validate:"gt=0"`
}

type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Language string         `mapstructure:"language"`
	Goals    GoalsConfig    `mapstructure:"goals"`
	Import   ImportConfig   `mapstructure:"import"`
	Export   ExportConfig   `mapstructure:"export"`
}

// Default returns the settings used when no file exists.
func Default() Config {
	return Config{
		Log:      LogConfig{Level: "warn", Format: "text"},
		Language: "en",
		Import:   ImportConfig{Mode: ImportModeRow},
		Export:   ExportConfig{ProgressEvery: 10},
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	def := Default()
	v.SetDefault("database.path", def.Database.Path)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)
	v.SetDefault("log.file", def.Log.File)
	v.SetDefault("language", def.Language)
	v.SetDefault("goals.calories", def.Goals.Calories)
	v.SetDefault("goals.protein_g", def.Goals.ProteinG)
	v.SetDefault("goals.carbs_g", def.Goals.CarbsG)
	v.SetDefault("goals.fat_g", def.Goals.FatG)
	v.SetDefault("import.mode", def.Import.Mode)
	v.SetDefault("export.progress_every", def.Export.ProgressEvery)

	// e.g. BITELOG_IMPORT_MODE=atomic
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the YAML file at path. A missing file yields the defaults
// (still subject to environment overrides).
func Load(path string) (Config, error) {
	v := newViper()
	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil && !isNotExist(err) {
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, errors.Wrap(err, "unmarshal config")
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Save writes c to path as YAML, creating the parent directory.
func Save(path string, c Config) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("config path is required")
	}
	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create config directory")
	}
	v := viper.New()
	v.SetConfigType("yaml")
	v.Set("database.path", c.Database.Path)
	v.Set("log.level", c.Log.Level)
	v.Set("log.format", c.Log.Format)
	v.Set("log.file", c.Log.File)
	v.Set("language", c.Language)
	v.Set("goals.calories", c.Goals.Calories)
	v.Set("goals.protein_g", c.Goals.ProteinG)
	v.Set("goals.carbs_g", c.Goals.CarbsG)
	v.Set("goals.fat_g", c.Goals.FatG)
	v.Set("import.mode", c.Import.Mode)
	v.Set("export.progress_every", c.Export.ProgressEvery)
	if err := v.WriteConfigAs(path); err != nil {
		return errors.Wrapf(err, "write config %s", path)
	}
	return nil
}

var validate = newValidator()

// newValidator reports fields by their settings key (import.mode) rather
// than the Go field name.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks c against the rules in its validate tags and reports the
// first violation.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return errors.Wrap(err, "validate config")
	}
	fe := fieldErrs[0]
	key := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "oneof":
		return errors.Errorf("%s must be one of [%s], got %q", key, fe.Param(), fe.Value())
	case "gt":
		return errors.Errorf("%s must be > %s", key, fe.Param())
	case "gte":
		return errors.Errorf("%s must be >= %s", key, fe.Param())
	default:
		return errors.Errorf("%s failed %s validation", key, fe.Tag())
	}
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
}
