package service

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/saadjs/bitelog/internal/errors"
)

type DoctorReport struct {
	// UsageDrift counts catalog entries whose usage_count differs from the
	// number of log entries linked to them.
	UsageDrift int `json:"usage_drift"`
	// DanglingLinks counts log entries pointing at a missing catalog row.
	DanglingLinks     int `json:"dangling_links"`
	DetachedEntries   int `json:"detached_entries"`
	StandaloneEntries int `json:"standalone_entries"`
	FixedUsageRows    int `json:"fixed_usage_rows,omitempty"`
	FixedLinks        int `json:"fixed_links,omitempty"`
}

// RunDoctor checks the catalog/log bookkeeping. With fix it recomputes
// drifted usage counts and detaches dangling links onto their snapshot.
func RunDoctor(db *sql.DB, fix bool) (DoctorReport, error) {
	report := DoctorReport{}
	if err := db.QueryRow(`
SELECT COUNT(1) FROM catalog_entries c
WHERE c.usage_count != (SELECT COUNT(1) FROM log_entries l WHERE l.catalog_id = c.id)
`).Scan(&report.UsageDrift); err != nil {
		return report, errors.Wrap(err, "doctor usage check")
	}
	if err := db.QueryRow(`
SELECT COUNT(1) FROM log_entries l
LEFT JOIN catalog_entries c ON c.id = l.catalog_id
WHERE l.catalog_id IS NOT NULL AND c.id IS NULL
`).Scan(&report.DanglingLinks); err != nil {
		return report, errors.Wrap(err, "doctor link check")
	}
	if err := db.QueryRow(`
SELECT
  COALESCE(SUM(CASE WHEN master_deleted = 1 THEN 1 ELSE 0 END), 0),
  COALESCE(SUM(CASE WHEN master_deleted = 0 AND catalog_id IS NULL THEN 1 ELSE 0 END), 0)
FROM log_entries
`).Scan(&report.DetachedEntries, &report.StandaloneEntries); err != nil {
		return report, errors.Wrap(err, "doctor link state counts")
	}

	if !fix || (report.UsageDrift == 0 && report.DanglingLinks == 0) {
		return report, nil
	}
	err := withTx(db, func(tx *sql.Tx) error {
		res, err := tx.Exec(`
UPDATE catalog_entries
SET usage_count = (SELECT COUNT(1) FROM log_entries l WHERE l.catalog_id = catalog_entries.id)
WHERE usage_count != (SELECT COUNT(1) FROM log_entries l WHERE l.catalog_id = catalog_entries.id)
`)
		if err != nil {
			return errors.Wrap(err, "doctor fix usage counts")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return errors.Wrap(err, "doctor fix usage counts")
		}
		report.FixedUsageRows = int(n)

		res, err = tx.Exec(`
UPDATE log_entries
SET catalog_id = NULL, master_deleted = 1, updated_at = ?
WHERE catalog_id IS NOT NULL
  AND NOT EXISTS (SELECT 1 FROM catalog_entries c WHERE c.id = log_entries.catalog_id)
`, formatTime(time.Now()))
		if err != nil {
			return errors.Wrap(err, "doctor fix dangling links")
		}
		if n, err = res.RowsAffected(); err != nil {
			return errors.Wrap(err, "doctor fix dangling links")
		}
		report.FixedLinks = int(n)
		return nil
	})
	if err != nil {
		return report, err
	}
	slog.Info("doctor repaired bookkeeping", "usage_rows", report.FixedUsageRows, "links", report.FixedLinks)
	return report, nil
}
