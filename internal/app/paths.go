package app

import (
	"os"
	"path/filepath"

	"github.com/saadjs/bitelog/internal/errors"
)

const (
	appDirName     = "bitelog"
	dbFileName     = "bitelog.db"
	configFileName = "config.yaml"
)

func DefaultDBPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, dbFileName), nil
}

func DefaultConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

func EnsureDBDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create db directory")
	}
	return nil
}

func configDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "resolve user config dir")
	}
	return filepath.Join(base, appDirName), nil
}
