package service

import (
	"database/sql"
	"math"
	"strings"
	"time"

	"github.com/saadjs/bitelog/internal/errors"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

func withTx(db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

func validateNonNegativeFloat(name string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return errors.Errorf("%s must be a finite number", name)
	}
	if value < 0 {
		return errors.Errorf("%s must be >= 0", name)
	}
	return nil
}

func validServings(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

// Timestamps are stored as UTC RFC3339 text so they sort lexically.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parse timestamp %q", value)
	}
	return t.Local(), nil
}

func parseNullTime(value sql.NullString) (*time.Time, error) {
	if !value.Valid || strings.TrimSpace(value.String) == "" {
		return nil, nil
	}
	t, err := parseTime(value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// dayBounds returns [start of day, start of next day) in local time.
func dayBounds(day time.Time) (time.Time, time.Time) {
	y, m, d := day.In(time.Local).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.Local)
	return start, start.AddDate(0, 0, 1)
}

// ParseDate parses YYYY-MM-DD as a local calendar day.
func ParseDate(value string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(value), time.Local)
	if err != nil {
		return time.Time{}, errors.Errorf("invalid date %q, expected YYYY-MM-DD", value)
	}
	return t, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
