package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/saadjs/bitelog/internal/errors"
	"github.com/saadjs/bitelog/internal/model"
)

// LogStore exposes the log table to the bulk export and import engines.
type LogStore struct {
	db *sql.DB
}

func NewLogStore(db *sql.DB) *LogStore {
	return &LogStore{db: db}
}

// ExportLogEntries returns every log entry, newest first, with live
// catalog values attached to linked entries.
func (s *LogStore) ExportLogEntries(ctx context.Context) ([]model.LogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return queryLogEntries(s.db, LogQuery{}, true)
}

// InsertLogEntry stores one imported entry as a standalone record.
func (s *LogStore) InsertLogEntry(ctx context.Context, e model.LogEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return withTx(s.db, func(tx *sql.Tx) error {
		_, err := createLogEntry(tx, standaloneInput(e), time.Now())
		return err
	})
}

// InsertLogEntries stores all entries in one transaction: either every
// entry is committed or none is.
func (s *LogStore) InsertLogEntries(ctx context.Context, entries []model.LogEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return withTx(s.db, func(tx *sql.Tx) error {
		now := time.Now()
		for i, e := range entries {
			if _, err := createLogEntry(tx, standaloneInput(e), now); err != nil {
				return errors.Wrapf(err, "insert entry %d of %d", i+1, len(entries))
			}
		}
		return nil
	})
}

func standaloneInput(e model.LogEntry) CreateLogEntryInput {
	snap := e.Snapshot
	return CreateLogEntryInput{
		ConsumedAt:  e.ConsumedAt,
		MealType:    e.MealType,
		Servings:    e.Servings,
		Snapshot:    &snap,
		ImportBatch: e.ImportBatch,
	}
}
