package service

import (
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/saadjs/bitelog/internal/errors"
	"github.com/saadjs/bitelog/internal/model"
)

type CreateLogEntryInput struct {
	ConsumedAt time.Time
	MealType   model.MealType
	Servings   float64
	// CatalogID links the entry to a catalog entry; its values are
	// snapshotted and its usage counter incremented.
	CatalogID *int64
	// Snapshot is used for standalone entries when CatalogID is nil.
	Snapshot    *model.NutritionSnapshot
	ImportBatch string
}

// LogQuery filters log entries. To is exclusive; zero bounds are open.
type LogQuery struct {
	From     time.Time
	To       time.Time
	MealType model.MealType
}

// CreateLogEntry records a consumption event.
func CreateLogEntry(db *sql.DB, in CreateLogEntryInput) (*model.LogEntry, error) {
	var id int64
	err := withTx(db, func(tx *sql.Tx) error {
		var err error
		id, err = createLogEntry(tx, in, time.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return LogEntryByID(db, id)
}

func createLogEntry(q dbtx, in CreateLogEntryInput, now time.Time) (int64, error) {
	if !validServings(in.Servings) {
		return 0, ErrInvalidServings
	}
	if !in.MealType.Valid() {
		return 0, errors.Errorf("invalid meal type %q", in.MealType)
	}
	if in.ConsumedAt.IsZero() {
		in.ConsumedAt = now
	}

	var snap model.NutritionSnapshot
	switch {
	case in.CatalogID != nil:
		entry, err := catalogEntryByID(q, *in.CatalogID)
		if err != nil {
			return 0, err
		}
		snap = entry.Snapshot()
	case in.Snapshot != nil:
		var err error
		if snap, err = normalizeSnapshot(*in.Snapshot); err != nil {
			return 0, err
		}
	default:
		return 0, ErrMissingNutrition
	}

	var batch any
	if b := strings.TrimSpace(in.ImportBatch); b != "" {
		batch = b
	}
	ts := formatTime(now)
	res, err := q.Exec(`
INSERT INTO log_entries(
  consumed_at, meal_type, servings, catalog_id,
  snap_brand, snap_product, snap_portion_size, snap_portion_unit,
  snap_calories, snap_protein_g, snap_fat_g, snap_net_carbs_g, snap_fiber_g,
  import_batch, created_at, updated_at
) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		formatTime(in.ConsumedAt),
		string(in.MealType),
		in.Servings,
		in.CatalogID,
		snap.Brand,
		snap.Product,
		snap.PortionSize,
		snap.PortionUnit,
		snap.Calories,
		snap.ProteinG,
		snap.FatG,
		snap.NetCarbsG,
		snap.FiberG,
		batch,
		ts,
		ts,
	)
	if err != nil {
		return 0, errors.Wrap(err, "insert log entry")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "resolve log entry id")
	}
	if in.CatalogID != nil {
		if err := incrementUsage(q, *in.CatalogID, now); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// DeleteLogEntry removes a log entry. If it was still linked, the catalog
// usage counter is decremented in the same transaction.
func DeleteLogEntry(db *sql.DB, id int64) error {
	return withTx(db, func(tx *sql.Tx) error {
		return deleteLogEntry(tx, id)
	})
}

func deleteLogEntry(q dbtx, id int64) error {
	var catalogID sql.NullInt64
	err := q.QueryRow(`SELECT catalog_id FROM log_entries WHERE id = ?`, id).Scan(&catalogID)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound("log entry", id)
	}
	if err != nil {
		return errors.Wrapf(err, "load log entry %d", id)
	}
	if _, err := q.Exec(`DELETE FROM log_entries WHERE id = ?`, id); err != nil {
		return errors.Wrapf(err, "delete log entry %d", id)
	}
	if catalogID.Valid {
		if err := decrementUsage(q, catalogID.Int64); err != nil {
			return err
		}
	}
	return nil
}

// UpdateLogEntryServings changes the serving count of an entry.
func UpdateLogEntryServings(db *sql.DB, id int64, servings float64) error {
	if !validServings(servings) {
		return ErrInvalidServings
	}
	res, err := db.Exec(`UPDATE log_entries SET servings = ?, updated_at = ? WHERE id = ?`, servings, formatTime(time.Now()), id)
	if err != nil {
		return errors.Wrapf(err, "update servings of log entry %d", id)
	}
	return expectAffected(res, "log entry", id)
}

// RelinkLogEntry points an entry at a different catalog entry, moving the
// usage count and refreshing the snapshot. Detached entries stay detached.
func RelinkLogEntry(db *sql.DB, id, catalogID int64) error {
	return withTx(db, func(tx *sql.Tx) error {
		current, err := logEntryByID(tx, id)
		if err != nil {
			return err
		}
		if current.MasterDeleted {
			return errors.Wrapf(ErrDetached, "log entry %d", id)
		}
		if current.CatalogID != nil && *current.CatalogID == catalogID {
			return nil
		}
		target, err := catalogEntryByID(tx, catalogID)
		if err != nil {
			return err
		}
		now := time.Now()
		if current.CatalogID != nil {
			if err := decrementUsage(tx, *current.CatalogID); err != nil {
				return err
			}
		}
		if err := linkSnapshot(tx, id, catalogID, target.Snapshot(), now); err != nil {
			return err
		}
		return incrementUsage(tx, catalogID, now)
	})
}

func LogEntryByID(db *sql.DB, id int64) (*model.LogEntry, error) {
	return logEntryByID(db, id)
}

// QueryLogEntries returns matching entries in ascending time order.
func QueryLogEntries(db *sql.DB, f LogQuery) ([]model.LogEntry, error) {
	return queryLogEntries(db, f, false)
}

// DeleteImportBatch removes every entry created by one import run and
// returns how many were removed.
func DeleteImportBatch(db *sql.DB, batch string) (int, error) {
	batch = strings.TrimSpace(batch)
	if batch == "" {
		return 0, errors.New("import batch id is required")
	}
	removed := 0
	err := withTx(db, func(tx *sql.Tx) error {
		ids, err := collectIDs(tx, `SELECT id FROM log_entries WHERE import_batch = ?`, batch)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := deleteLogEntry(tx, id); err != nil {
				return err
			}
		}
		removed = len(ids)
		return nil
	})
	if err != nil {
		return 0, err
	}
	slog.Info("removed import batch", "batch", batch, "entries", removed)
	return removed, nil
}

// CopyDay copies every entry of day from onto day to, keeping the time of
// day. Linked entries stay linked and count as new uses; the others copy
// their snapshot as standalone entries.
func CopyDay(db *sql.DB, from, to time.Time) (int, error) {
	fromStart, fromNext := dayBounds(from)
	toStart, _ := dayBounds(to)
	if fromStart.Equal(toStart) {
		return 0, errors.New("source and target day are the same")
	}
	copied := 0
	err := withTx(db, func(tx *sql.Tx) error {
		entries, err := queryLogEntries(tx, LogQuery{From: fromStart, To: fromNext}, false)
		if err != nil {
			return err
		}
		now := time.Now()
		for _, e := range entries {
			local := e.ConsumedAt.In(time.Local)
			in := CreateLogEntryInput{
				ConsumedAt: time.Date(toStart.Year(), toStart.Month(), toStart.Day(),
					local.Hour(), local.Minute(), local.Second(), 0, time.Local),
				MealType: e.MealType,
				Servings: e.Servings,
			}
			if e.Link() == model.LinkLinked {
				in.CatalogID = e.CatalogID
			} else {
				snap := e.Snapshot
				in.Snapshot = &snap
			}
			if _, err := createLogEntry(tx, in, now); err != nil {
				return errors.Wrapf(err, "copy log entry %d", e.ID)
			}
		}
		copied = len(entries)
		return nil
	})
	if err != nil {
		return 0, err
	}
	slog.Info("copied day", "from", fromStart.Format("2006-01-02"), "to", toStart.Format("2006-01-02"), "entries", copied)
	return copied, nil
}

func queryLogEntries(q dbtx, f LogQuery, newestFirst bool) ([]model.LogEntry, error) {
	query := `SELECT ` + logColumns + ` FROM log_entries WHERE 1=1`
	args := make([]any, 0, 3)
	if !f.From.IsZero() {
		query += ` AND consumed_at >= ?`
		args = append(args, formatTime(f.From))
	}
	if !f.To.IsZero() {
		query += ` AND consumed_at < ?`
		args = append(args, formatTime(f.To))
	}
	if f.MealType != "" {
		if !f.MealType.Valid() {
			return nil, errors.Errorf("invalid meal type %q", f.MealType)
		}
		query += ` AND meal_type = ?`
		args = append(args, string(f.MealType))
	}
	if newestFirst {
		query += ` ORDER BY consumed_at DESC, id DESC`
	} else {
		query += ` ORDER BY consumed_at ASC, id ASC`
	}

	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query log entries")
	}
	entries := make([]model.LogEntry, 0)
	for rows.Next() {
		e, err := scanLogEntry(rows)
		if err != nil {
			_ = rows.Close()
			return nil, errors.Wrap(err, "scan log entry")
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, errors.Wrap(err, "iterate log entries")
	}
	_ = rows.Close()

	// The single pooled connection is free again; load live catalog values.
	if err := attachCatalog(q, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func logEntryByID(q dbtx, id int64) (*model.LogEntry, error) {
	e, err := scanLogEntry(q.QueryRow(`SELECT `+logColumns+` FROM log_entries WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("log entry", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load log entry %d", id)
	}
	entries := []model.LogEntry{*e}
	if err := attachCatalog(q, entries); err != nil {
		return nil, err
	}
	return &entries[0], nil
}

func attachCatalog(q dbtx, entries []model.LogEntry) error {
	cache := map[int64]*model.CatalogEntry{}
	for i := range entries {
		if entries[i].CatalogID == nil {
			continue
		}
		id := *entries[i].CatalogID
		c, ok := cache[id]
		if !ok {
			var err error
			if c, err = catalogEntryByID(q, id); err != nil {
				return err
			}
			cache[id] = c
		}
		entries[i].Catalog = c
	}
	return nil
}

// linkSnapshot points a log entry at catalogID and stores snap as its
// fallback values.
func linkSnapshot(q dbtx, id, catalogID int64, snap model.NutritionSnapshot, now time.Time) error {
	res, err := q.Exec(`
UPDATE log_entries
SET catalog_id = ?,
    snap_brand = ?, snap_product = ?, snap_portion_size = ?, snap_portion_unit = ?,
    snap_calories = ?, snap_protein_g = ?, snap_fat_g = ?, snap_net_carbs_g = ?, snap_fiber_g = ?,
    updated_at = ?
WHERE id = ?
`,
		catalogID,
		snap.Brand,
		snap.Product,
		snap.PortionSize,
		snap.PortionUnit,
		snap.Calories,
		snap.ProteinG,
		snap.FatG,
		snap.NetCarbsG,
		snap.FiberG,
		formatTime(now),
		id,
	)
	if err != nil {
		return errors.Wrapf(err, "write snapshot of log entry %d", id)
	}
	return expectAffected(res, "log entry", id)
}

func normalizeSnapshot(s model.NutritionSnapshot) (model.NutritionSnapshot, error) {
	s.Brand = strings.TrimSpace(s.Brand)
	s.Product = strings.TrimSpace(s.Product)
	s.PortionUnit = strings.TrimSpace(s.PortionUnit)
	if s.PortionSize <= 0 {
		s.PortionSize = 1
	}
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"calories", s.Calories},
		{"protein", s.ProteinG},
		{"fat", s.FatG},
		{"net carbs", s.NetCarbsG},
		{"fiber", s.FiberG},
	} {
		if err := validateNonNegativeFloat(f.name, f.value); err != nil {
			return s, err
		}
	}
	return s, nil
}

func collectIDs(q dbtx, query string, args ...any) ([]int64, error) {
	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query ids")
	}
	defer rows.Close()
	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate ids")
	}
	return ids, nil
}

const logColumns = `id, consumed_at, meal_type, servings, catalog_id,
  snap_brand, snap_product, snap_portion_size, snap_portion_unit,
  snap_calories, snap_protein_g, snap_fat_g, snap_net_carbs_g, snap_fiber_g,
  master_deleted, IFNULL(import_batch, ''), created_at, updated_at`

func scanLogEntry(row rowScanner) (*model.LogEntry, error) {
	var e model.LogEntry
	var consumedAt, createdAt, updatedAt, mealType string
	var catalogID sql.NullInt64
	var masterDeleted int
	if err := row.Scan(
		&e.ID,
		&consumedAt,
		&mealType,
		&e.Servings,
		&catalogID,
		&e.Snapshot.Brand,
		&e.Snapshot.Product,
		&e.Snapshot.PortionSize,
		&e.Snapshot.PortionUnit,
		&e.Snapshot.Calories,
		&e.Snapshot.ProteinG,
		&e.Snapshot.FatG,
		&e.Snapshot.NetCarbsG,
		&e.Snapshot.FiberG,
		&masterDeleted,
		&e.ImportBatch,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	e.MealType = model.MealType(mealType)
	e.MasterDeleted = masterDeleted == 1
	if catalogID.Valid {
		v := catalogID.Int64
		e.CatalogID = &v
	}
	var err error
	if e.ConsumedAt, err = parseTime(consumedAt); err != nil {
		return nil, err
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}
