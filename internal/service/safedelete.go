package service

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/saadjs/bitelog/internal/errors"
)

// SafeDeleteReport describes one catalog deletion.
type SafeDeleteReport struct {
	CatalogID int64
	Product   string
	// Detached is the number of log entries that lost their link and now
	// resolve from their snapshot.
	Detached int
}

// SafeDeleteCatalogEntry removes a catalog entry without losing history.
// Every log entry still referencing it gets a fresh snapshot of the current
// catalog values, its link cleared and master_deleted set; then the catalog
// row is deleted. All of it happens in one transaction, so on error nothing
// has changed and the call can simply be retried.
func SafeDeleteCatalogEntry(db *sql.DB, id int64) (SafeDeleteReport, error) {
	report := SafeDeleteReport{CatalogID: id}
	err := withTx(db, func(tx *sql.Tx) error {
		entry, err := catalogEntryByID(tx, id)
		if err != nil {
			return err
		}
		report.Product = entry.Product
		snap := entry.Snapshot()

		res, err := tx.Exec(`
UPDATE log_entries
SET catalog_id = NULL, master_deleted = 1,
    snap_brand = ?, snap_product = ?, snap_portion_size = ?, snap_portion_unit = ?,
    snap_calories = ?, snap_protein_g = ?, snap_fat_g = ?, snap_net_carbs_g = ?, snap_fiber_g = ?,
    updated_at = ?
WHERE catalog_id = ?
`,
			snap.Brand,
			snap.Product,
			snap.PortionSize,
			snap.PortionUnit,
			snap.Calories,
			snap.ProteinG,
			snap.FatG,
			snap.NetCarbsG,
			snap.FiberG,
			formatTime(time.Now()),
			id,
		)
		if err != nil {
			return errors.Wrapf(err, "detach log entries of catalog entry %d", id)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return errors.Wrap(err, "count detached log entries")
		}
		report.Detached = int(n)

		return deleteCatalogEntry(tx, id)
	})
	if err != nil {
		return SafeDeleteReport{CatalogID: id}, err
	}
	slog.Info("deleted catalog entry", "id", id, "product", report.Product, "detached", report.Detached)
	return report, nil
}
