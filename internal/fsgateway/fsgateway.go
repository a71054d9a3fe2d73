// Package fsgateway is the file access boundary used by bulk import and
// export. Every call acquires the file for its own duration and releases
// it on every return path.
package fsgateway

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Gateway reads and writes whole text files.
type Gateway interface {
	ReadText(ctx context.Context, path string) (string, error)
	WriteTextAtomically(ctx context.Context, path, text string) error
}

// IOError reports a failed file operation.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// OS is a Gateway on the local file system.
type OS struct {
	// Perm is applied to newly written files; zero means 0o644.
	Perm os.FileMode
}

var _ Gateway = OS{}

func (g OS) ReadText(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", &IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return "", &IOError{Op: "read", Path: path, Err: err}
	}
	return string(b), nil
}

// WriteTextAtomically writes text to a temp file in the target directory
// and renames it over path. Readers see either the old file or the new
// one, never a partial write.
func (g OS) WriteTextAtomically(ctx context.Context, path, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(path) == "" {
		return &IOError{Op: "write", Path: path, Err: os.ErrInvalid}
	}
	return CommitFile(path, g.perm(), func(w io.Writer) error {
		_, err := io.WriteString(w, text)
		return err
	})
}

func (g OS) perm() os.FileMode {
	if g.Perm == 0 {
		return 0o644
	}
	return g.Perm
}

// CommitFile streams write into a temp file next to path and renames it
// into place once write and fsync succeed. The temp file is removed on
// any failure.
func CommitFile(path string, perm os.FileMode, write func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return &IOError{Op: "create temp", Path: path, Err: err}
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err = write(tmp); err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}
	if err = tmp.Sync(); err != nil {
		return &IOError{Op: "sync", Path: path, Err: err}
	}
	if err = tmp.Chmod(perm); err != nil {
		return &IOError{Op: "chmod", Path: path, Err: err}
	}
	if err = tmp.Close(); err != nil {
		return &IOError{Op: "close", Path: path, Err: err}
	}
	if err = os.Rename(tmpName, path); err != nil {
		return &IOError{Op: "rename", Path: path, Err: err}
	}
	return nil
}
