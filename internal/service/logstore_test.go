package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saadjs/bitelog/internal/model"
	"github.com/saadjs/bitelog/internal/service"
)

func TestLogStoreExportNewestFirst(t *testing.T) {
	t.Parallel()
	sqldb := newTestDB(t)
	food := mustCatalog(t, sqldb, yogurt())
	base := time.Date(2026, 1, 10, 8, 0, 0, 0, time.Local)
	for i := 0; i < 3; i++ {
		mustLogLinked(t, sqldb, food.ID, base.AddDate(0, 0, i), 1)
	}

	got, err := service.NewLogStore(sqldb).ExportLogEntries(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 12, got[0].ConsumedAt.Day())
	assert.Equal(t, 10, got[2].ConsumedAt.Day())
	assert.NotNil(t, got[0].Catalog)
}

func TestLogStoreInsertIsStandalone(t *testing.T) {
	t.Parallel()
	sqldb := newTestDB(t)
	food := mustCatalog(t, sqldb, yogurt())
	store := service.NewLogStore(sqldb)

	e := model.LogEntry{
		ConsumedAt:  time.Date(2026, 1, 10, 0, 0, 0, 0, time.Local),
		MealType:    model.MealDinner,
		Servings:    1,
		CatalogID:   &food.ID,
		Snapshot:    food.Snapshot(),
		ImportBatch: "b1",
	}
	require.NoError(t, store.InsertLogEntry(context.Background(), e))

	all, err := service.QueryLogEntries(sqldb, service.LogQuery{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, model.LinkStandalone, all[0].Link())
	assert.Equal(t, "b1", all[0].ImportBatch)

	got, err := service.CatalogEntryByID(sqldb, food.ID)
	require.NoError(t, err)
	assert.Zero(t, got.UsageCount)
}

func TestLogStoreInsertEntriesAllOrNothing(t *testing.T) {
	t.Parallel()
	sqldb := newTestDB(t)
	store := service.NewLogStore(sqldb)

	good := model.LogEntry{MealType: model.MealLunch, Servings: 1, Snapshot: model.NutritionSnapshot{Product: "Soup", Calories: 10}}
	bad := good
	bad.Servings = 0
	err := store.InsertLogEntries(context.Background(), []model.LogEntry{good, good, bad})
	require.ErrorIs(t, err, service.ErrInvalidServings)

	all, err := service.QueryLogEntries(sqldb, service.LogQuery{})
	require.NoError(t, err)
	assert.Empty(t, all)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, store.InsertLogEntry(ctx, good), context.Canceled)
}
