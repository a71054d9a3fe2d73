package service

import (
	"fmt"

	"github.com/saadjs/bitelog/internal/errors"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicateKey     = errors.New("duplicate catalog entry")
	ErrInvalidServings  = errors.New("servings must be > 0")
	ErrMissingNutrition = errors.New("log entry needs a catalog entry or a nutrition snapshot")
	ErrDetached         = errors.New("log entry is detached from its catalog entry")
)

// DuplicateKeyError is returned when a catalog write would collide with an
// existing entry's dedup key. It matches ErrDuplicateKey.
type DuplicateKeyError struct {
	Key        string
	ExistingID int64
}

func (e *DuplicateKeyError) Error() string {
	if e.ExistingID > 0 {
		return fmt.Sprintf("duplicate catalog entry: matches entry %d", e.ExistingID)
	}
	return "duplicate catalog entry"
}

func (e *DuplicateKeyError) Is(target error) bool {
	return target == ErrDuplicateKey
}

func notFound(kind string, id int64) error {
	return errors.Wrapf(ErrNotFound, "%s %d", kind, id)
}
