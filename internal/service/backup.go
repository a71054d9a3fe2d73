package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/saadjs/bitelog/internal/errors"
	"github.com/saadjs/bitelog/internal/fsgateway"
)

// ErrChecksumMismatch is returned by RestoreBackup when the backup does not
// match its .sha256 sidecar.
var ErrChecksumMismatch = errors.New("backup checksum mismatch")

type BackupInfo struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	CreatedAt time.Time `json:"created_at"`
	SizeBytes int64     `json:"size_bytes"`
}

// CreateBackup writes a consistent copy of the open database to outPath
// with VACUUM INTO and stores its SHA-256 next to it as outPath.sha256.
func CreateBackup(db *sql.DB, outPath string) (BackupInfo, error) {
	if strings.TrimSpace(outPath) == "" {
		return BackupInfo{}, errors.New("backup output path is required")
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return BackupInfo{}, errors.Wrap(err, "create backup directory")
	}

	// VACUUM INTO refuses to overwrite, so go through a fresh temp name.
	tmp := filepath.Join(filepath.Dir(outPath), "."+filepath.Base(outPath)+"."+uuid.NewString())
	if _, err := db.Exec(`VACUUM INTO ?`, tmp); err != nil {
		_ = os.Remove(tmp)
		return BackupInfo{}, errors.Wrap(err, "vacuum into backup file")
	}
	if err := os.Rename(tmp, outPath); err != nil {
		_ = os.Remove(tmp)
		return BackupInfo{}, errors.Wrap(err, "move backup into place")
	}

	checksum, err := fileSHA256(outPath)
	if err != nil {
		return BackupInfo{}, err
	}
	if err := (fsgateway.OS{}).WriteTextAtomically(context.Background(), outPath+".sha256", checksum+"\n"); err != nil {
		return BackupInfo{}, errors.Wrap(err, "write checksum file")
	}
	st, err := os.Stat(outPath)
	if err != nil {
		return BackupInfo{}, errors.Wrap(err, "stat backup")
	}
	slog.Info("created backup", "path", outPath, "bytes", st.Size())
	return BackupInfo{Path: outPath, Checksum: checksum, CreatedAt: st.ModTime(), SizeBytes: st.Size()}, nil
}

// RestoreBackup replaces dbPath with backupPath. The database must not be
// open. An existing target is only overwritten with force.
func RestoreBackup(backupPath, dbPath string, force bool) error {
	if strings.TrimSpace(backupPath) == "" || strings.TrimSpace(dbPath) == "" {
		return errors.New("backup path and db path are required")
	}
	if !force {
		if _, err := os.Stat(dbPath); err == nil {
			return errors.New("target db already exists; use --force to overwrite")
		}
	}
	if expected, err := os.ReadFile(backupPath + ".sha256"); err == nil {
		actual, err := fileSHA256(backupPath)
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(expected)) != actual {
			return errors.Wrap(ErrChecksumMismatch, backupPath)
		}
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return errors.Wrap(err, "create db directory")
	}

	in, err := os.Open(backupPath)
	if err != nil {
		return errors.Wrap(err, "open backup")
	}
	defer in.Close()
	if err := fsgateway.CommitFile(dbPath, 0o644, func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	}); err != nil {
		return err
	}
	slog.Info("restored backup", "from", backupPath, "to", dbPath)
	return nil
}

// ListBackups returns the .db files in dir, newest first. A missing
// directory has no backups.
func ListBackups(dir string) ([]BackupInfo, error) {
	files, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read backup dir")
	}
	var out []BackupInfo
	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != ".db" {
			continue
		}
		full := filepath.Join(dir, f.Name())
		st, err := f.Info()
		if err != nil {
			continue
		}
		info := BackupInfo{Path: full, CreatedAt: st.ModTime(), SizeBytes: st.Size()}
		if b, err := os.ReadFile(full + ".sha256"); err == nil {
			info.Checksum = strings.TrimSpace(string(b))
		}
		out = append(out, info)
	}
	slices.SortFunc(out, func(a, b BackupInfo) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "open file for checksum")
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.Wrap(err, "hash file")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
