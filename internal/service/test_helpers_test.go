package service_test

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/saadjs/bitelog/internal/db"
	"github.com/saadjs/bitelog/internal/model"
	"github.com/saadjs/bitelog/internal/service"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bitelog.db")
	sqldb, err := db.Open(path)
	require.NoError(t, err, "open db")
	require.NoError(t, db.ApplyMigrations(sqldb), "apply migrations")
	t.Cleanup(func() { _ = sqldb.Close() })
	return sqldb
}

func yogurt() service.CatalogInput {
	return service.CatalogInput{
		Brand:       "Fage",
		Product:     "Greek Yogurt",
		PortionSize: 170,
		PortionUnit: "g",
		Calories:    150,
		ProteinG:    15,
		FatG:        5,
		NetCarbsG:   8,
		FiberG:      2,
	}
}

func mustCatalog(t *testing.T, sqldb *sql.DB, in service.CatalogInput) *model.CatalogEntry {
	t.Helper()
	entry, err := service.CreateCatalogEntry(sqldb, in)
	require.NoError(t, err, "create catalog entry %q", in.Product)
	return entry
}

func mustLogLinked(t *testing.T, sqldb *sql.DB, catalogID int64, at time.Time, servings float64) *model.LogEntry {
	t.Helper()
	entry, err := service.CreateLogEntry(sqldb, service.CreateLogEntryInput{
		ConsumedAt: at,
		MealType:   model.MealLunch,
		Servings:   servings,
		CatalogID:  &catalogID,
	})
	require.NoError(t, err, "create linked log entry")
	return entry
}
