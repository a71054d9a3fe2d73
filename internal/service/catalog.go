package service

import (
	"database/sql"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/saadjs/bitelog/internal/errors"
	"github.com/saadjs/bitelog/internal/model"
)

const defaultCatalogPageSize = 50

// CatalogInput carries the editable fields of a catalog entry.
type CatalogInput struct {
	Brand       string
	Product     string
	PortionSize float64
	PortionUnit string
	Calories    float64
	ProteinG    float64
	FatG        float64
	NetCarbsG   float64
	FiberG      float64
}

// CatalogQuery selects one page of a catalog search.
type CatalogQuery struct {
	Query  string
	Offset int
	Limit  int
}

func (in CatalogInput) normalize() (CatalogInput, error) {
	in.Brand = strings.TrimSpace(in.Brand)
	in.Product = strings.TrimSpace(in.Product)
	in.PortionUnit = strings.TrimSpace(in.PortionUnit)
	if in.Product == "" {
		return in, errors.New("product name is required")
	}
	if in.PortionSize <= 0 {
		in.PortionSize = 1
	}
	if in.PortionUnit == "" {
		in.PortionUnit = "serving"
	}
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"calories", in.Calories},
		{"protein", in.ProteinG},
		{"fat", in.FatG},
		{"net carbs", in.NetCarbsG},
		{"fiber", in.FiberG},
	} {
		if err := validateNonNegativeFloat(f.name, f.value); err != nil {
			return in, err
		}
	}
	return in, nil
}

// DedupKey returns the key this input would be stored under.
func (in CatalogInput) DedupKey() string {
	return DedupKey(in.Brand, in.Product, in.Calories, in.FatG, in.ProteinG, in.NetCarbsG, in.PortionUnit)
}

// CatalogInputFromSnapshot converts frozen log values back into catalog
// fields, e.g. to re-save a detached entry.
func CatalogInputFromSnapshot(s model.NutritionSnapshot) CatalogInput {
	return CatalogInput{
		Brand:       s.Brand,
		Product:     s.Product,
		PortionSize: s.PortionSize,
		PortionUnit: s.PortionUnit,
		Calories:    s.Calories,
		ProteinG:    s.ProteinG,
		FatG:        s.FatG,
		NetCarbsG:   s.NetCarbsG,
		FiberG:      s.FiberG,
	}
}

// CreateCatalogEntry inserts a new entry. It fails with a
// *DuplicateKeyError when an entry with the same dedup key exists; it never
// merges.
func CreateCatalogEntry(db *sql.DB, in CatalogInput) (*model.CatalogEntry, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	key := in.DedupKey()
	existing, err := catalogEntryByDedupKey(db, key)
	switch {
	case err == nil:
		return nil, &DuplicateKeyError{Key: key, ExistingID: existing.ID}
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	ts := formatTime(time.Now())
	res, err := db.Exec(`
INSERT INTO catalog_entries(
  brand, product, portion_size, portion_unit,
  calories, protein_g, fat_g, net_carbs_g, fiber_g,
  dedup_key, search_text, created_at, updated_at
) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		in.Brand,
		in.Product,
		in.PortionSize,
		in.PortionUnit,
		in.Calories,
		in.ProteinG,
		in.FatG,
		in.NetCarbsG,
		in.FiberG,
		key,
		searchText(in.Brand, in.Product),
		ts,
		ts,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &DuplicateKeyError{Key: key}
		}
		return nil, errors.Wrap(err, "create catalog entry")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, errors.Wrap(err, "resolve catalog entry id")
	}
	slog.Debug("created catalog entry", "id", id, "product", in.Product)
	return CatalogEntryByID(db, id)
}

// FindOrCreateCatalogEntry returns the existing entry for in's dedup key,
// creating one when none exists. created reports which happened.
func FindOrCreateCatalogEntry(db *sql.DB, in CatalogInput) (entry *model.CatalogEntry, created bool, err error) {
	entry, err = CreateCatalogEntry(db, in)
	if err == nil {
		return entry, true, nil
	}
	var dup *DuplicateKeyError
	if !errors.As(err, &dup) {
		return nil, false, err
	}
	entry, err = catalogEntryByDedupKey(db, dup.Key)
	if err != nil {
		return nil, false, err
	}
	return entry, false, nil
}

// UpdateCatalogEntry replaces the editable fields and re-derives the dedup
// key. Linked log entries see the new values immediately.
func UpdateCatalogEntry(db *sql.DB, id int64, in CatalogInput) (*model.CatalogEntry, error) {
	if _, err := CatalogEntryByID(db, id); err != nil {
		return nil, err
	}
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	key := in.DedupKey()
	existing, err := catalogEntryByDedupKey(db, key)
	switch {
	case err == nil && existing.ID != id:
		return nil, &DuplicateKeyError{Key: key, ExistingID: existing.ID}
	case err != nil && !errors.Is(err, ErrNotFound):
		return nil, err
	}

	_, err = db.Exec(`
UPDATE catalog_entries
SET brand = ?, product = ?, portion_size = ?, portion_unit = ?,
    calories = ?, protein_g = ?, fat_g = ?, net_carbs_g = ?, fiber_g = ?,
    dedup_key = ?, search_text = ?, updated_at = ?
WHERE id = ?
`,
		in.Brand,
		in.Product,
		in.PortionSize,
		in.PortionUnit,
		in.Calories,
		in.ProteinG,
		in.FatG,
		in.NetCarbsG,
		in.FiberG,
		key,
		searchText(in.Brand, in.Product),
		formatTime(time.Now()),
		id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, &DuplicateKeyError{Key: key}
		}
		return nil, errors.Wrapf(err, "update catalog entry %d", id)
	}
	return CatalogEntryByID(db, id)
}

// SearchCatalog returns one page of entries whose brand or product contains
// the query, most used first. Every call is an independent query.
func SearchCatalog(db *sql.DB, q CatalogQuery) ([]model.CatalogEntry, error) {
	if q.Offset < 0 {
		return nil, errors.New("offset must be >= 0")
	}
	if q.Limit <= 0 {
		q.Limit = defaultCatalogPageSize
	}
	query := `SELECT ` + catalogColumns + ` FROM catalog_entries WHERE 1=1`
	args := make([]any, 0, 3)
	if needle := normalizeText(q.Query); needle != "" {
		query += ` AND instr(search_text, ?) > 0`
		args = append(args, needle)
	}
	query += ` ORDER BY usage_count DESC, last_used_at IS NULL, last_used_at DESC, product COLLATE NOCASE ASC, id ASC LIMIT ? OFFSET ?`
	args = append(args, q.Limit, q.Offset)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "search catalog")
	}
	defer rows.Close()
	out := make([]model.CatalogEntry, 0)
	for rows.Next() {
		item, err := scanCatalogEntry(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan catalog entry")
		}
		out = append(out, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate catalog entries")
	}
	return out, nil
}

// CatalogSearchSeq walks every match page by page. Pages are fetched
// lazily, so ranging again restarts from the first page.
func CatalogSearchSeq(db *sql.DB, query string, pageSize int) iter.Seq2[model.CatalogEntry, error] {
	if pageSize <= 0 {
		pageSize = defaultCatalogPageSize
	}
	return func(yield func(model.CatalogEntry, error) bool) {
		for offset := 0; ; offset += pageSize {
			page, err := SearchCatalog(db, CatalogQuery{Query: query, Offset: offset, Limit: pageSize})
			if err != nil {
				yield(model.CatalogEntry{}, err)
				return
			}
			for _, item := range page {
				if !yield(item, nil) {
					return
				}
			}
			if len(page) < pageSize {
				return
			}
		}
	}
}

func CatalogEntryByID(db *sql.DB, id int64) (*model.CatalogEntry, error) {
	return catalogEntryByID(db, id)
}

// IncrementUsage bumps the usage counter and stamps last_used_at.
func IncrementUsage(db *sql.DB, id int64) error {
	return incrementUsage(db, id, time.Now())
}

// DecrementUsage lowers the usage counter, never below zero.
func DecrementUsage(db *sql.DB, id int64) error {
	return decrementUsage(db, id)
}

func incrementUsage(q dbtx, id int64, at time.Time) error {
	res, err := q.Exec(`UPDATE catalog_entries SET usage_count = usage_count + 1, last_used_at = ? WHERE id = ?`, formatTime(at), id)
	if err != nil {
		return errors.Wrapf(err, "increment usage of catalog entry %d", id)
	}
	return expectAffected(res, "catalog entry", id)
}

func decrementUsage(q dbtx, id int64) error {
	res, err := q.Exec(`UPDATE catalog_entries SET usage_count = MAX(usage_count - 1, 0) WHERE id = ?`, id)
	if err != nil {
		return errors.Wrapf(err, "decrement usage of catalog entry %d", id)
	}
	return expectAffected(res, "catalog entry", id)
}

// deleteCatalogEntry is the raw removal. Only the safe-delete path calls
// it; the foreign key rejects it while log entries still reference id.
func deleteCatalogEntry(q dbtx, id int64) error {
	res, err := q.Exec(`DELETE FROM catalog_entries WHERE id = ?`, id)
	if err != nil {
		return errors.Wrapf(err, "delete catalog entry %d", id)
	}
	return expectAffected(res, "catalog entry", id)
}

const catalogColumns = `id, brand, product, portion_size, portion_unit,
  calories, protein_g, fat_g, net_carbs_g, fiber_g,
  usage_count, last_used_at, dedup_key, created_at, updated_at`

func catalogEntryByID(q dbtx, id int64) (*model.CatalogEntry, error) {
	item, err := scanCatalogEntry(q.QueryRow(`SELECT `+catalogColumns+` FROM catalog_entries WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("catalog entry", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load catalog entry %d", id)
	}
	return item, nil
}

func catalogEntryByDedupKey(q dbtx, key string) (*model.CatalogEntry, error) {
	item, err := scanCatalogEntry(q.QueryRow(`SELECT `+catalogColumns+` FROM catalog_entries WHERE dedup_key = ?`, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrap(ErrNotFound, "catalog entry by dedup key")
	}
	if err != nil {
		return nil, errors.Wrap(err, "load catalog entry by dedup key")
	}
	return item, nil
}

func scanCatalogEntry(row rowScanner) (*model.CatalogEntry, error) {
	var item model.CatalogEntry
	var lastUsed sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(
		&item.ID,
		&item.Brand,
		&item.Product,
		&item.PortionSize,
		&item.PortionUnit,
		&item.Calories,
		&item.ProteinG,
		&item.FatG,
		&item.NetCarbsG,
		&item.FiberG,
		&item.UsageCount,
		&lastUsed,
		&item.DedupKey,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	var err error
	if item.LastUsedAt, err = parseNullTime(lastUsed); err != nil {
		return nil, err
	}
	if item.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if item.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &item, nil
}

func searchText(brand, product string) string {
	return normalizeText(brand + " " + product)
}

func expectAffected(res sql.Result, kind string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "read rows affected for %s %d", kind, id)
	}
	if n == 0 {
		return notFound(kind, id)
	}
	return nil
}
