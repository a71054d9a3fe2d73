package service_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saadjs/bitelog/internal/model"
	"github.com/saadjs/bitelog/internal/service"
)

type totals struct {
	calories, protein, fat, netCarbs, fiber, carbs float64
}

func sumEntries(entries []model.LogEntry) totals {
	var s totals
	for _, e := range entries {
		s.calories += e.Calories()
		s.protein += e.ProteinG()
		s.fat += e.FatG()
		s.netCarbs += e.NetCarbsG()
		s.fiber += e.FiberG()
		s.carbs += e.CarbsG()
	}
	return s
}

func TestSafeDeletePreservesTotals(t *testing.T) {
	t.Parallel()
	sqldb := newTestDB(t)
	food := mustCatalog(t, sqldb, yogurt())
	otherIn := yogurt()
	otherIn.Product = "Skyr"
	other := mustCatalog(t, sqldb, otherIn)

	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.Local)
	const n = 7
	for i := 0; i < n; i++ {
		mustLogLinked(t, sqldb, food.ID, base.Add(time.Duration(i)*time.Hour), float64(i)+0.5)
	}
	untouched := mustLogLinked(t, sqldb, other.ID, base, 1)

	// Edit after logging: the live values, not the creation-time snapshot,
	// are what the user currently sees.
	edited := yogurt()
	edited.Calories = 175
	edited.FiberG = 3
	_, err := service.UpdateCatalogEntry(sqldb, food.ID, edited)
	require.NoError(t, err)

	before, err := service.QueryLogEntries(sqldb, service.LogQuery{})
	require.NoError(t, err)
	wantTotals := sumEntries(before)

	report, err := service.SafeDeleteCatalogEntry(sqldb, food.ID)
	require.NoError(t, err)
	assert.Equal(t, n, report.Detached)
	assert.Equal(t, "Greek Yogurt", report.Product)

	after, err := service.QueryLogEntries(sqldb, service.LogQuery{})
	require.NoError(t, err)
	require.Len(t, after, n+1)
	assert.InDelta(t, wantTotals.calories, sumEntries(after).calories, 1e-9)
	assert.Equal(t, wantTotals, sumEntries(after))

	detached := 0
	for _, e := range after {
		assert.Equal(t, e.NetCarbsG()+e.FiberG(), e.CarbsG())
		if e.ID == untouched.ID {
			assert.Equal(t, model.LinkLinked, e.Link())
			continue
		}
		detached++
		assert.True(t, e.MasterDeleted)
		assert.Nil(t, e.CatalogID)
		assert.Nil(t, e.Catalog)
		assert.Equal(t, model.LinkDetached, e.Link())
		assert.Equal(t, 175.0, e.Snapshot.Calories)
	}
	assert.Equal(t, n, detached)

	_, err = service.CatalogEntryByID(sqldb, food.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestSafeDeleteUnreferencedAndMissing(t *testing.T) {
	t.Parallel()
	sqldb := newTestDB(t)
	food := mustCatalog(t, sqldb, yogurt())

	report, err := service.SafeDeleteCatalogEntry(sqldb, food.ID)
	require.NoError(t, err)
	assert.Zero(t, report.Detached)

	_, err = service.SafeDeleteCatalogEntry(sqldb, food.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestRawCatalogDeleteRejectedWhileReferenced(t *testing.T) {
	t.Parallel()
	sqldb := newTestDB(t)
	food := mustCatalog(t, sqldb, yogurt())
	mustLogLinked(t, sqldb, food.ID, time.Now(), 1)

	_, err := sqldb.Exec(`DELETE FROM catalog_entries WHERE id = ?`, food.ID)
	assert.Error(t, err)
}

func TestDetachedEntryCannotBeUndetached(t *testing.T) {
	t.Parallel()
	sqldb := newTestDB(t)
	food := mustCatalog(t, sqldb, yogurt())
	entry := mustLogLinked(t, sqldb, food.ID, time.Now(), 1)
	_, err := service.SafeDeleteCatalogEntry(sqldb, food.ID)
	require.NoError(t, err)

	_, err = sqldb.Exec(`UPDATE log_entries SET master_deleted = 0 WHERE id = ?`, entry.ID)
	assert.Error(t, err)

	// Deleting a detached entry touches no catalog row.
	require.NoError(t, service.DeleteLogEntry(sqldb, entry.ID))
}
